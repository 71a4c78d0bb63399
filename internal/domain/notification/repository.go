package notification

import (
	"context"
	"time"
)

// Repository defines operations for Rules, Templates and LogEntries.
type Repository interface {
	// Template methods
	CreateTemplate(ctx context.Context, t *Template) error
	GetTemplateByID(ctx context.Context, id int64) (*Template, error)
	UpdateTemplate(ctx context.Context, t *Template) error
	ListTemplates(ctx context.Context) ([]*Template, error)

	// Rule methods
	CreateRule(ctx context.Context, r *Rule) error
	GetRuleByID(ctx context.Context, id int64) (*Rule, error)
	UpdateRule(ctx context.Context, r *Rule) error
	DeleteRule(ctx context.Context, id int64) error
	ListRules(ctx context.Context) ([]*Rule, error)

	// ListActiveRules returns the join of active rules with their active
	// templates, ordered by days_before descending then time of day. This is
	// the query behind the scheduler's snapshot.
	ListActiveRules(ctx context.Context) ([]*ActiveRule, error)

	// Log methods
	AppendLog(ctx context.Context, e *LogEntry) error
	ListRecentLogs(ctx context.Context, limit int) ([]*LogEntry, error)
	DeleteLogsBefore(ctx context.Context, cutoff time.Time) (int64, error)
}
