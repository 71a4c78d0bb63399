package notification

import "time"

// Rule describes when and with what template to remind the group about an
// upcoming birthday: fire at TimeOfDay when a birthday is DaysBefore days away.
// Corresponds to the 'notification_rules' table.
type Rule struct {
	ID         int64
	TemplateID int64
	DaysBefore int    // >= 0; 0 means "on the day"
	TimeOfDay  string // "HH:MM", 24h, compared in the business timezone
	IsActive   bool
	CreatedAt  time.Time
}

// ActiveRule is one row of the scheduler's snapshot: an active rule joined
// with its active template. Snapshot rows are immutable; the scheduler swaps
// the whole list atomically on reload and never mutates it in place.
type ActiveRule struct {
	Rule
	TemplateName string
	TemplateBody string
}
