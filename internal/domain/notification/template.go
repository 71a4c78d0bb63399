package notification

import "time"

// Template is a reusable message body with {variable} placeholders and a
// limited set of Telegram HTML tags. Bodies are validated before being
// persisted; an invalid body must never reach an active template.
// Corresponds to the 'notification_templates' table.
type Template struct {
	ID        int64
	Name      string
	Category  string
	Body      string
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}
