// internal/infra/database/postgres_notification_repository.go
package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"birthday_notification_bot/internal/domain/notification"

	_ "github.com/lib/pq" // PostgreSQL driver
)

// Custom errors specific to notification repository
var ErrTemplateNotFound = fmt.Errorf("notification template not found")
var ErrRuleNotFound = fmt.Errorf("notification rule not found")

type PostgresNotificationRepository struct {
	db *sql.DB
}

func NewPostgresNotificationRepository(db *sql.DB) *PostgresNotificationRepository {
	return &PostgresNotificationRepository{db: db}
}

// --- Template Methods ---

func (r *PostgresNotificationRepository) CreateTemplate(ctx context.Context, t *notification.Template) error {
	query := `INSERT INTO notification_templates (name, category, body, is_active)
			VALUES ($1, $2, $3, $4)
			RETURNING id, created_at, updated_at`
	err := r.db.QueryRowContext(ctx, query, t.Name, t.Category, t.Body, t.IsActive).
		Scan(&t.ID, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return fmt.Errorf("error creating notification template: %w", err)
	}
	return nil
}

func (r *PostgresNotificationRepository) GetTemplateByID(ctx context.Context, id int64) (*notification.Template, error) {
	query := `SELECT id, name, category, body, is_active, created_at, updated_at
			FROM notification_templates WHERE id = $1`
	t := &notification.Template{}
	err := r.db.QueryRowContext(ctx, query, id).
		Scan(&t.ID, &t.Name, &t.Category, &t.Body, &t.IsActive, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrTemplateNotFound
		}
		return nil, fmt.Errorf("error getting notification template by ID: %w", err)
	}
	return t, nil
}

func (r *PostgresNotificationRepository) UpdateTemplate(ctx context.Context, t *notification.Template) error {
	query := `UPDATE notification_templates
			SET name = $1, category = $2, body = $3, is_active = $4, updated_at = NOW()
			WHERE id = $5
			RETURNING updated_at`
	err := r.db.QueryRowContext(ctx, query, t.Name, t.Category, t.Body, t.IsActive, t.ID).Scan(&t.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return ErrTemplateNotFound
		}
		return fmt.Errorf("error updating notification template: %w", err)
	}
	return nil
}

func (r *PostgresNotificationRepository) ListTemplates(ctx context.Context) ([]*notification.Template, error) {
	query := `SELECT id, name, category, body, is_active, created_at, updated_at
			FROM notification_templates ORDER BY id`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("error listing notification templates: %w", err)
	}
	defer rows.Close()

	templates := make([]*notification.Template, 0)
	for rows.Next() {
		t := &notification.Template{}
		if err := rows.Scan(&t.ID, &t.Name, &t.Category, &t.Body, &t.IsActive, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, fmt.Errorf("error scanning notification template: %w", err)
		}
		templates = append(templates, t)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating notification templates: %w", err)
	}
	return templates, nil
}

// --- Rule Methods ---

func (r *PostgresNotificationRepository) CreateRule(ctx context.Context, rule *notification.Rule) error {
	query := `INSERT INTO notification_rules (template_id, days_before, time_of_day, is_active)
			VALUES ($1, $2, $3, $4)
			RETURNING id, created_at`
	err := r.db.QueryRowContext(ctx, query, rule.TemplateID, rule.DaysBefore, rule.TimeOfDay, rule.IsActive).
		Scan(&rule.ID, &rule.CreatedAt)
	if err != nil {
		return fmt.Errorf("error creating notification rule: %w", err)
	}
	return nil
}

func (r *PostgresNotificationRepository) GetRuleByID(ctx context.Context, id int64) (*notification.Rule, error) {
	query := `SELECT id, template_id, days_before, time_of_day, is_active, created_at
			FROM notification_rules WHERE id = $1`
	rule := &notification.Rule{}
	err := r.db.QueryRowContext(ctx, query, id).
		Scan(&rule.ID, &rule.TemplateID, &rule.DaysBefore, &rule.TimeOfDay, &rule.IsActive, &rule.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrRuleNotFound
		}
		return nil, fmt.Errorf("error getting notification rule by ID: %w", err)
	}
	return rule, nil
}

func (r *PostgresNotificationRepository) UpdateRule(ctx context.Context, rule *notification.Rule) error {
	query := `UPDATE notification_rules
			SET template_id = $1, days_before = $2, time_of_day = $3, is_active = $4
			WHERE id = $5`
	res, err := r.db.ExecContext(ctx, query, rule.TemplateID, rule.DaysBefore, rule.TimeOfDay, rule.IsActive, rule.ID)
	if err != nil {
		return fmt.Errorf("error updating notification rule: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("error checking updated rule rows: %w", err)
	}
	if affected == 0 {
		return ErrRuleNotFound
	}
	return nil
}

func (r *PostgresNotificationRepository) DeleteRule(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM notification_rules WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("error deleting notification rule: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("error checking deleted rule rows: %w", err)
	}
	if affected == 0 {
		return ErrRuleNotFound
	}
	return nil
}

func (r *PostgresNotificationRepository) ListRules(ctx context.Context) ([]*notification.Rule, error) {
	query := `SELECT id, template_id, days_before, time_of_day, is_active, created_at
			FROM notification_rules ORDER BY days_before DESC, time_of_day`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("error listing notification rules: %w", err)
	}
	defer rows.Close()

	rules := make([]*notification.Rule, 0)
	for rows.Next() {
		rule := &notification.Rule{}
		if err := rows.Scan(&rule.ID, &rule.TemplateID, &rule.DaysBefore, &rule.TimeOfDay, &rule.IsActive, &rule.CreatedAt); err != nil {
			return nil, fmt.Errorf("error scanning notification rule: %w", err)
		}
		rules = append(rules, rule)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating notification rules: %w", err)
	}
	return rules, nil
}

// ListActiveRules returns active rules joined with their active templates.
// Only (rule active AND template active) pairs are ever evaluated by the
// scheduler; the ordering matches the snapshot contract.
func (r *PostgresNotificationRepository) ListActiveRules(ctx context.Context) ([]*notification.ActiveRule, error) {
	query := `SELECT nr.id, nr.template_id, nr.days_before, nr.time_of_day, nr.is_active, nr.created_at,
				nt.name, nt.body
			FROM notification_rules nr
			JOIN notification_templates nt ON nr.template_id = nt.id
			WHERE nr.is_active = TRUE
				AND nt.is_active = TRUE
			ORDER BY nr.days_before DESC, nr.time_of_day`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("error listing active notification rules: %w", err)
	}
	defer rows.Close()

	rules := make([]*notification.ActiveRule, 0)
	for rows.Next() {
		ar := &notification.ActiveRule{}
		if err := rows.Scan(&ar.ID, &ar.TemplateID, &ar.DaysBefore, &ar.TimeOfDay, &ar.IsActive, &ar.CreatedAt,
			&ar.TemplateName, &ar.TemplateBody); err != nil {
			return nil, fmt.Errorf("error scanning active notification rule: %w", err)
		}
		rules = append(rules, ar)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating active notification rules: %w", err)
	}
	return rules, nil
}

// --- Log Methods ---

func (r *PostgresNotificationRepository) AppendLog(ctx context.Context, e *notification.LogEntry) error {
	query := `INSERT INTO notification_logs (user_id, message_text, status, error_message)
			VALUES ($1, $2, $3, $4)
			RETURNING id, created_at`
	err := r.db.QueryRowContext(ctx, query, e.UserID, e.Message, e.Status, e.ErrorMessage).
		Scan(&e.ID, &e.CreatedAt)
	if err != nil {
		return fmt.Errorf("error appending notification log: %w", err)
	}
	return nil
}

func (r *PostgresNotificationRepository) ListRecentLogs(ctx context.Context, limit int) ([]*notification.LogEntry, error) {
	query := `SELECT id, user_id, message_text, status, error_message, created_at
			FROM notification_logs ORDER BY created_at DESC LIMIT $1`
	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("error listing notification logs: %w", err)
	}
	defer rows.Close()

	entries := make([]*notification.LogEntry, 0)
	for rows.Next() {
		e := &notification.LogEntry{}
		if err := rows.Scan(&e.ID, &e.UserID, &e.Message, &e.Status, &e.ErrorMessage, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("error scanning notification log: %w", err)
		}
		entries = append(entries, e)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating notification logs: %w", err)
	}
	return entries, nil
}

func (r *PostgresNotificationRepository) DeleteLogsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM notification_logs WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("error deleting old notification logs: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("error checking deleted log rows: %w", err)
	}
	return affected, nil
}
