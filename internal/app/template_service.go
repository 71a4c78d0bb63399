package app

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"birthday_notification_bot/internal/domain/notification"
	idb "birthday_notification_bot/internal/infra/database"
)

// Custom application-level errors for template/rule management
var ErrInvalidTimeOfDay = fmt.Errorf("time of day must be in HH:MM 24h format")
var ErrInvalidDaysBefore = fmt.Errorf("days before must be zero or positive")

var timeOfDayPattern = regexp.MustCompile(`^([01][0-9]|2[0-3]):[0-5][0-9]$`)

// TemplateService manages message templates and the rules that reference
// them. Every template write passes through validation first: a body with a
// disallowed variable or tag is rejected with the offending tokens and never
// persisted, so the scheduler only ever sees valid templates.
type TemplateService struct {
	notifRepo notification.Repository
	location  *time.Location
	phonePay  string
	namePay   string
}

func NewTemplateService(nr notification.Repository, location *time.Location, phonePay, namePay string) *TemplateService {
	return &TemplateService{
		notifRepo: nr,
		location:  location,
		phonePay:  phonePay,
		namePay:   namePay,
	}
}

// CreateTemplate validates and stores a new template.
func (s *TemplateService) CreateTemplate(ctx context.Context, name, category, body string) (*notification.Template, error) {
	if err := notification.ValidateTemplate(body); err != nil {
		return nil, err
	}
	t := &notification.Template{
		Name:     name,
		Category: category,
		Body:     body,
		IsActive: true,
	}
	if err := s.notifRepo.CreateTemplate(ctx, t); err != nil {
		return nil, fmt.Errorf("failed to create template: %w", err)
	}
	return t, nil
}

// UpdateTemplateBody validates and replaces the body of an existing template.
func (s *TemplateService) UpdateTemplateBody(ctx context.Context, id int64, body string) (*notification.Template, error) {
	if err := notification.ValidateTemplate(body); err != nil {
		return nil, err
	}
	t, err := s.notifRepo.GetTemplateByID(ctx, id)
	if err != nil {
		return nil, err
	}
	t.Body = body
	if err := s.notifRepo.UpdateTemplate(ctx, t); err != nil {
		return nil, fmt.Errorf("failed to update template: %w", err)
	}
	return t, nil
}

func (s *TemplateService) ListTemplates(ctx context.Context) ([]*notification.Template, error) {
	return s.notifRepo.ListTemplates(ctx)
}

// ToggleTemplateActive flips a template's active flag and returns the new value.
// Rules referencing an inactive template drop out of the scheduler snapshot on
// its next reload.
func (s *TemplateService) ToggleTemplateActive(ctx context.Context, id int64) (bool, error) {
	t, err := s.notifRepo.GetTemplateByID(ctx, id)
	if err != nil {
		return false, err
	}
	t.IsActive = !t.IsActive
	if err := s.notifRepo.UpdateTemplate(ctx, t); err != nil {
		return false, fmt.Errorf("failed to toggle template: %w", err)
	}
	return t.IsActive, nil
}

// PreviewTemplate renders a body against sample contexts without persisting
// anything. The body is validated first so the preview also reports errors.
func (s *TemplateService) PreviewTemplate(ctx context.Context, body string) ([]string, error) {
	if err := notification.ValidateTemplate(body); err != nil {
		return nil, err
	}

	now := time.Now().In(s.location)
	previews := make([]string, 0, 3)
	for _, days := range []int{0, 1, 3} {
		sampleBirthday := now.AddDate(0, 0, days).Format("2006-01-02")
		renderCtx := notification.NewRenderContext("Анна", "Иванова", sampleBirthday, days, now, s.phonePay, s.namePay)
		previews = append(previews, notification.Render(body, renderCtx))
	}
	return previews, nil
}

// CreateRule validates and stores a new delivery rule.
func (s *TemplateService) CreateRule(ctx context.Context, templateID int64, daysBefore int, timeOfDay string) (*notification.Rule, error) {
	if daysBefore < 0 {
		return nil, ErrInvalidDaysBefore
	}
	if !timeOfDayPattern.MatchString(timeOfDay) {
		return nil, ErrInvalidTimeOfDay
	}
	// The referenced template must exist; an inactive one is allowed (the
	// rule just stays invisible to the scheduler until both are active).
	if _, err := s.notifRepo.GetTemplateByID(ctx, templateID); err != nil {
		if err == idb.ErrTemplateNotFound {
			return nil, idb.ErrTemplateNotFound
		}
		return nil, fmt.Errorf("failed to check template for rule: %w", err)
	}

	r := &notification.Rule{
		TemplateID: templateID,
		DaysBefore: daysBefore,
		TimeOfDay:  timeOfDay,
		IsActive:   true,
	}
	if err := s.notifRepo.CreateRule(ctx, r); err != nil {
		return nil, fmt.Errorf("failed to create rule: %w", err)
	}
	return r, nil
}

func (s *TemplateService) ListRules(ctx context.Context) ([]*notification.Rule, error) {
	return s.notifRepo.ListRules(ctx)
}

// ToggleRuleActive flips a rule's active flag and returns the new value.
func (s *TemplateService) ToggleRuleActive(ctx context.Context, id int64) (bool, error) {
	r, err := s.notifRepo.GetRuleByID(ctx, id)
	if err != nil {
		return false, err
	}
	r.IsActive = !r.IsActive
	if err := s.notifRepo.UpdateRule(ctx, r); err != nil {
		return false, fmt.Errorf("failed to toggle rule: %w", err)
	}
	return r.IsActive, nil
}

func (s *TemplateService) DeleteRule(ctx context.Context, id int64) error {
	return s.notifRepo.DeleteRule(ctx, id)
}
