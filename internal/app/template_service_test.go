package app

import (
	"context"
	"testing"
	"time"

	"birthday_notification_bot/internal/domain/notification"
	idb "birthday_notification_bot/internal/infra/database"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTemplateService(nr notification.Repository) *TemplateService {
	return NewTemplateService(nr, time.UTC, "7 900 000 0000", "Получатель")
}

func TestCreateTemplateValid(t *testing.T) {
	notifs := &fakeNotifRepo{}
	svc := newTestTemplateService(notifs)

	tpl, err := svc.CreateTemplate(context.Background(), "за 3 дня", "birthday", "Через {days_until} дн. ДР у <b>{name}</b>")
	require.NoError(t, err)
	assert.True(t, tpl.IsActive)
	assert.NotZero(t, tpl.ID)
	assert.Len(t, notifs.templates, 1)
}

func TestCreateTemplateRejectsUnknownVariable(t *testing.T) {
	notifs := &fakeNotifRepo{}
	svc := newTestTemplateService(notifs)

	_, err := svc.CreateTemplate(context.Background(), "bad", "birthday", "Привет {nickname} и {name}")
	require.Error(t, err)

	var verr *notification.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, []string{"nickname"}, verr.InvalidVariables)
	assert.Empty(t, verr.InvalidTags)
	assert.Empty(t, notifs.templates, "invalid template must not be persisted")
}

func TestCreateTemplateRejectsDisallowedTag(t *testing.T) {
	notifs := &fakeNotifRepo{}
	svc := newTestTemplateService(notifs)

	_, err := svc.CreateTemplate(context.Background(), "bad", "birthday", `<script>alert(1)</script><b>{name}</b>`)
	require.Error(t, err)

	var verr *notification.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, []string{"script"}, verr.InvalidTags)
	assert.Empty(t, notifs.templates)
}

func TestUpdateTemplateBodyValidatesBeforeLoad(t *testing.T) {
	notifs := &fakeNotifRepo{}
	svc := newTestTemplateService(notifs)

	tpl, err := svc.CreateTemplate(context.Background(), "t", "birthday", "{name}")
	require.NoError(t, err)

	_, err = svc.UpdateTemplateBody(context.Background(), tpl.ID, "{bogus}")
	require.Error(t, err)
	assert.Equal(t, "{name}", notifs.templates[tpl.ID].Body, "stored body must be untouched")

	updated, err := svc.UpdateTemplateBody(context.Background(), tpl.ID, "С днём рождения, {first_name}!")
	require.NoError(t, err)
	assert.Equal(t, "С днём рождения, {first_name}!", updated.Body)
}

func TestToggleTemplateActive(t *testing.T) {
	notifs := &fakeNotifRepo{}
	svc := newTestTemplateService(notifs)

	tpl, err := svc.CreateTemplate(context.Background(), "t", "birthday", "{name}")
	require.NoError(t, err)

	active, err := svc.ToggleTemplateActive(context.Background(), tpl.ID)
	require.NoError(t, err)
	assert.False(t, active)

	active, err = svc.ToggleTemplateActive(context.Background(), tpl.ID)
	require.NoError(t, err)
	assert.True(t, active)
}

func TestPreviewTemplateRendersSamples(t *testing.T) {
	svc := newTestTemplateService(&fakeNotifRepo{})

	previews, err := svc.PreviewTemplate(context.Background(), "До ДР {name}: {days_until} дн.")
	require.NoError(t, err)
	require.Len(t, previews, 3)
	assert.Contains(t, previews[0], "Анна Иванова")
	assert.Contains(t, previews[0], "0 дн.")
	assert.Contains(t, previews[2], "3 дн.")
}

func TestPreviewTemplateReportsValidationError(t *testing.T) {
	svc := newTestTemplateService(&fakeNotifRepo{})

	_, err := svc.PreviewTemplate(context.Background(), "{oops}")
	assert.Error(t, err)
}

func TestCreateRuleValidation(t *testing.T) {
	notifs := &fakeNotifRepo{}
	svc := newTestTemplateService(notifs)

	tpl, err := svc.CreateTemplate(context.Background(), "t", "birthday", "{name}")
	require.NoError(t, err)

	_, err = svc.CreateRule(context.Background(), tpl.ID, -1, "10:00")
	assert.Equal(t, ErrInvalidDaysBefore, err)

	for _, bad := range []string{"25:00", "9:00", "10:60", "1000", "10:00:00"} {
		_, err = svc.CreateRule(context.Background(), tpl.ID, 3, bad)
		assert.Equal(t, ErrInvalidTimeOfDay, err, "time %q must be rejected", bad)
	}

	_, err = svc.CreateRule(context.Background(), 999, 3, "10:00")
	assert.Equal(t, idb.ErrTemplateNotFound, err)

	rule, err := svc.CreateRule(context.Background(), tpl.ID, 3, "10:00")
	require.NoError(t, err)
	assert.True(t, rule.IsActive)
	assert.Equal(t, 3, rule.DaysBefore)
	assert.Equal(t, "10:00", rule.TimeOfDay)
}
