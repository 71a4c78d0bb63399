package notification

import (
	"database/sql"
	"time"
)

// DeliveryStatus is the outcome of a single delivery attempt.
type DeliveryStatus string

const (
	StatusSuccess DeliveryStatus = "success"
	StatusError   DeliveryStatus = "error"
	StatusWarning DeliveryStatus = "warning"
)

// LogEntry is one append-only audit record of a delivery attempt.
// Corresponds to the 'notification_logs' table.
type LogEntry struct {
	ID           int64
	UserID       int64 // Recipient
	Message      string
	Status       DeliveryStatus
	ErrorMessage sql.NullString
	CreatedAt    time.Time
}
