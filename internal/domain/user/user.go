package user

import (
	"database/sql"
	"time"
)

// User represents a member of the reminder group.
// BirthDate is stored as a plain "YYYY-MM-DD" string; only the month and day
// are meaningful for recurrence matching, the year is ignored.
type User struct {
	ID                     int64
	TelegramID             int64
	Username               sql.NullString // To handle users without @username
	FirstName              string
	LastName               sql.NullString // To handle optional last name
	BirthDate              string
	IsAdmin                bool
	IsSubscribed           bool // Consented to group reminders / being celebrated
	IsNotificationsEnabled bool // Receives anything at all
	CreatedAt              time.Time
	UpdatedAt              time.Time
}

// FullName returns "FirstName LastName" with the last name omitted when absent.
func (u *User) FullName() string {
	if u.LastName.Valid && u.LastName.String != "" {
		return u.FirstName + " " + u.LastName.String
	}
	return u.FirstName
}
