package user

import (
	"context"
)

// Repository defines the operations for persisting and retrieving User entities.
type Repository interface {
	Create(ctx context.Context, u *User) error
	GetByID(ctx context.Context, id int64) (*User, error)
	GetByTelegramID(ctx context.Context, telegramID int64) (*User, error)
	GetByUsername(ctx context.Context, username string) (*User, error)
	Update(ctx context.Context, u *User) error // Handles updates to names, birth date and flags
	Delete(ctx context.Context, id int64) error
	ListAll(ctx context.Context) ([]*User, error) // For admin purposes
	ListAdmins(ctx context.Context) ([]*User, error)

	// ListUpcomingBirthdays returns subscribed users whose birthday month-day
	// falls inside [startMD, endMD] inclusive, both "MM-DD" strings. A start
	// greater than the end means the window wraps across the year boundary
	// (December into January).
	ListUpcomingBirthdays(ctx context.Context, startMD, endMD string) ([]*User, error)

	// ListRecipients returns everyone who should receive reminders about
	// someone else: subscribed, notifications enabled, excluding the
	// celebrated person's Telegram ID.
	ListRecipients(ctx context.Context, excludeTelegramID int64) ([]*User, error)
}
