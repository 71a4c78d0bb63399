package app

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"testing"
	"time"

	"birthday_notification_bot/internal/domain/notification"
	"birthday_notification_bot/internal/domain/user"
	idb "birthday_notification_bot/internal/infra/database"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/telebot.v3"
)

// --- fakes ---

type fakeUserRepo struct {
	users []*user.User
}

func (f *fakeUserRepo) Create(ctx context.Context, u *user.User) error {
	f.users = append(f.users, u)
	return nil
}
func (f *fakeUserRepo) GetByID(ctx context.Context, id int64) (*user.User, error) {
	for _, u := range f.users {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, idb.ErrUserNotFound
}
func (f *fakeUserRepo) GetByTelegramID(ctx context.Context, telegramID int64) (*user.User, error) {
	for _, u := range f.users {
		if u.TelegramID == telegramID {
			return u, nil
		}
	}
	return nil, idb.ErrUserNotFound
}
func (f *fakeUserRepo) GetByUsername(ctx context.Context, username string) (*user.User, error) {
	username = strings.TrimPrefix(username, "@")
	for _, u := range f.users {
		if u.Username.Valid && u.Username.String == username {
			return u, nil
		}
	}
	return nil, idb.ErrUserNotFound
}
func (f *fakeUserRepo) Update(ctx context.Context, u *user.User) error { return nil }
func (f *fakeUserRepo) Delete(ctx context.Context, id int64) error { return nil }
func (f *fakeUserRepo) ListAll(ctx context.Context) ([]*user.User, error) {
	return f.users, nil
}
func (f *fakeUserRepo) ListAdmins(ctx context.Context) ([]*user.User, error) { return nil, nil }

func (f *fakeUserRepo) ListUpcomingBirthdays(ctx context.Context, startMD, endMD string) ([]*user.User, error) {
	inWindow := func(md string) bool {
		if startMD <= endMD {
			return md >= startMD && md <= endMD
		}
		return (md >= startMD && md <= "12-31") || (md >= "01-01" && md <= endMD)
	}
	var out []*user.User
	for _, u := range f.users {
		if u.IsSubscribed && len(u.BirthDate) == 10 && inWindow(u.BirthDate[5:]) {
			out = append(out, u)
		}
	}
	return out, nil
}

func (f *fakeUserRepo) ListRecipients(ctx context.Context, excludeTelegramID int64) ([]*user.User, error) {
	var out []*user.User
	for _, u := range f.users {
		if u.TelegramID != excludeTelegramID && u.IsSubscribed && u.IsNotificationsEnabled {
			out = append(out, u)
		}
	}
	return out, nil
}

type failingWindowUserRepo struct {
	fakeUserRepo
}

func (f *failingWindowUserRepo) ListUpcomingBirthdays(ctx context.Context, startMD, endMD string) ([]*user.User, error) {
	return nil, fmt.Errorf("storage unavailable")
}

type fakeNotifRepo struct {
	activeRules []*notification.ActiveRule
	logs        []*notification.LogEntry
	templates   map[int64]*notification.Template
}

func (f *fakeNotifRepo) CreateTemplate(ctx context.Context, t *notification.Template) error {
	if f.templates == nil {
		f.templates = make(map[int64]*notification.Template)
	}
	t.ID = int64(len(f.templates) + 1)
	f.templates[t.ID] = t
	return nil
}
func (f *fakeNotifRepo) GetTemplateByID(ctx context.Context, id int64) (*notification.Template, error) {
	if t, ok := f.templates[id]; ok {
		return t, nil
	}
	return nil, idb.ErrTemplateNotFound
}
func (f *fakeNotifRepo) UpdateTemplate(ctx context.Context, t *notification.Template) error { return nil }
func (f *fakeNotifRepo) ListTemplates(ctx context.Context) ([]*notification.Template, error) {
	return nil, nil
}
func (f *fakeNotifRepo) CreateRule(ctx context.Context, r *notification.Rule) error { return nil }
func (f *fakeNotifRepo) GetRuleByID(ctx context.Context, id int64) (*notification.Rule, error) {
	return nil, idb.ErrRuleNotFound
}
func (f *fakeNotifRepo) UpdateRule(ctx context.Context, r *notification.Rule) error { return nil }
func (f *fakeNotifRepo) DeleteRule(ctx context.Context, id int64) error { return nil }
func (f *fakeNotifRepo) ListRules(ctx context.Context) ([]*notification.Rule, error) {
	return nil, nil
}
func (f *fakeNotifRepo) ListActiveRules(ctx context.Context) ([]*notification.ActiveRule, error) {
	return f.activeRules, nil
}
func (f *fakeNotifRepo) AppendLog(ctx context.Context, e *notification.LogEntry) error {
	f.logs = append(f.logs, e)
	return nil
}
func (f *fakeNotifRepo) ListRecentLogs(ctx context.Context, limit int) ([]*notification.LogEntry, error) {
	return f.logs, nil
}
func (f *fakeNotifRepo) DeleteLogsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	return 0, nil
}

type sentMessage struct {
	ChatID int64
	Text   string
}

type fakeTelegramClient struct {
	sent    []sentMessage
	failFor map[int64]error // per-chat injected failures
}

func (f *fakeTelegramClient) SendMessage(ctx context.Context, recipientChatID int64, text string, options *telebot.SendOptions) error {
	if err, ok := f.failFor[recipientChatID]; ok {
		return err
	}
	f.sent = append(f.sent, sentMessage{ChatID: recipientChatID, Text: text})
	return nil
}

// --- helpers ---

func testUser(id, telegramID int64, firstName, birthDate string, subscribed, notifEnabled bool) *user.User {
	return &user.User{
		ID:                     id,
		TelegramID:             telegramID,
		FirstName:              firstName,
		LastName:               sql.NullString{},
		BirthDate:              birthDate,
		IsSubscribed:           subscribed,
		IsNotificationsEnabled: notifEnabled,
	}
}

func newTestService(ur user.Repository, nr notification.Repository, tc *fakeTelegramClient) *NotificationServiceImpl {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return NewNotificationServiceImpl(
		ur, nr, tc,
		log.WithField("component", "test"),
		time.UTC,
		"7 900 000 0000", "Получатель",
		10*time.Minute, time.Second,
	)
}

// A fresh service performs maintenance on its first tick, so rules load from
// the store before the first evaluation.
var tickTime = time.Date(2025, time.May, 2, 10, 0, 5, 0, time.UTC)

func activeRule(id int64, daysBefore int, timeOfDay, body string) *notification.ActiveRule {
	return &notification.ActiveRule{
		Rule: notification.Rule{
			ID:         id,
			TemplateID: id,
			DaysBefore: daysBefore,
			TimeOfDay:  timeOfDay,
			IsActive:   true,
		},
		TemplateName: "t",
		TemplateBody: body,
	}
}

// --- tests ---

func TestProcessTickDispatchesToEligibleRecipients(t *testing.T) {
	users := &fakeUserRepo{users: []*user.User{
		testUser(1, 101, "Анна", "1990-05-05", true, true), // celebrated: 05-05 is 3 days out
		testUser(2, 102, "Борис", "1991-09-09", true, true),
		testUser(3, 103, "Вера", "1992-10-10", true, true),
	}}
	notifs := &fakeNotifRepo{activeRules: []*notification.ActiveRule{
		activeRule(1, 3, "10:00", "{date} день рождения у {name}!"),
	}}
	tg := &fakeTelegramClient{}

	svc := newTestService(users, notifs, tg)
	svc.ProcessTick(context.Background(), tickTime)

	require.Len(t, tg.sent, 2)
	assert.ElementsMatch(t, []int64{102, 103}, []int64{tg.sent[0].ChatID, tg.sent[1].ChatID})
	assert.Equal(t, "05 мая день рождения у Анна!", tg.sent[0].Text)

	require.Len(t, notifs.logs, 2)
	for _, e := range notifs.logs {
		assert.Equal(t, notification.StatusSuccess, e.Status)
		assert.Equal(t, tg.sent[0].Text, e.Message)
	}
}

func TestProcessTickIgnoresRulesAtOtherTimes(t *testing.T) {
	users := &fakeUserRepo{users: []*user.User{
		testUser(1, 101, "Анна", "1990-05-02", true, true),
		testUser(2, 102, "Борис", "1991-09-09", true, true),
	}}
	notifs := &fakeNotifRepo{activeRules: []*notification.ActiveRule{
		activeRule(1, 0, "09:00", "Сегодня ДР у {name}"),
	}}
	tg := &fakeTelegramClient{}

	svc := newTestService(users, notifs, tg)
	svc.ProcessTick(context.Background(), tickTime) // 10:00, rule wants 09:00

	assert.Empty(t, tg.sent)
	assert.Empty(t, notifs.logs)
}

func TestProcessTickIsIdempotentWithinBucket(t *testing.T) {
	users := &fakeUserRepo{users: []*user.User{
		testUser(1, 101, "Анна", "1990-05-02", true, true),
		testUser(2, 102, "Борис", "1991-09-09", true, true),
	}}
	notifs := &fakeNotifRepo{activeRules: []*notification.ActiveRule{
		activeRule(1, 0, "10:00", "Сегодня ДР у {name}"),
	}}
	tg := &fakeTelegramClient{}

	svc := newTestService(users, notifs, tg)
	svc.ProcessTick(context.Background(), tickTime)
	svc.ProcessTick(context.Background(), tickTime.Add(10*time.Second)) // same minute, same bucket

	assert.Len(t, tg.sent, 1, "second evaluation in the same bucket must be suppressed")
	assert.Len(t, notifs.logs, 1)
}

func TestRuleFiresAgainAfterBucketRollover(t *testing.T) {
	users := &fakeUserRepo{users: []*user.User{
		testUser(1, 101, "Анна", "1990-05-02", true, true),
		testUser(2, 102, "Борис", "1991-09-09", true, true),
	}}
	notifs := &fakeNotifRepo{activeRules: []*notification.ActiveRule{
		activeRule(1, 0, "10:00", "Сегодня ДР у {name}"),
	}}
	tg := &fakeTelegramClient{}

	svc := newTestService(users, notifs, tg)
	svc.ProcessTick(context.Background(), tickTime)
	require.Len(t, tg.sent, 1)

	// Next day, same wall-clock time: new bucket, and 05-03 birthday is
	// elsewhere, so use the same person with the rule re-resolving 05-03.
	users.users[0].BirthDate = "1990-05-03"
	svc.ProcessTick(context.Background(), tickTime.AddDate(0, 0, 1))
	assert.Len(t, tg.sent, 2, "cache must not suppress the rule permanently")
}

func TestDeliveryFailureDoesNotStopOtherRecipients(t *testing.T) {
	users := &fakeUserRepo{users: []*user.User{
		testUser(1, 101, "Анна", "1990-05-02", true, true),
		testUser(2, 102, "Борис", "1991-09-09", true, true),
		testUser(3, 103, "Вера", "1992-10-10", true, true),
		testUser(4, 104, "Глеб", "1993-11-11", true, true),
	}}
	notifs := &fakeNotifRepo{activeRules: []*notification.ActiveRule{
		activeRule(1, 0, "10:00", "Сегодня ДР у {name}"),
	}}
	tg := &fakeTelegramClient{failFor: map[int64]error{103: fmt.Errorf("blocked by user")}}

	svc := newTestService(users, notifs, tg)
	svc.ProcessTick(context.Background(), tickTime)

	// Two deliveries succeeded, all three were attempted and logged.
	assert.Len(t, tg.sent, 2)
	require.Len(t, notifs.logs, 3)

	var successes, errors int
	for _, e := range notifs.logs {
		switch e.Status {
		case notification.StatusSuccess:
			successes++
		case notification.StatusError:
			errors++
			assert.True(t, e.ErrorMessage.Valid)
			assert.Contains(t, e.ErrorMessage.String, "blocked by user")
		}
	}
	assert.Equal(t, 2, successes)
	assert.Equal(t, 1, errors)
}

func TestRecipientsExcludeDisabledAndUnsubscribed(t *testing.T) {
	users := &fakeUserRepo{users: []*user.User{
		testUser(1, 101, "Анна", "1990-05-02", true, true),   // celebrated
		testUser(2, 102, "Борис", "1991-09-09", true, false), // notifications disabled
		testUser(3, 103, "Вера", "1992-10-10", false, true),  // not subscribed
		testUser(4, 104, "Глеб", "1993-11-11", true, true),   // eligible
	}}
	notifs := &fakeNotifRepo{activeRules: []*notification.ActiveRule{
		activeRule(1, 0, "10:00", "Сегодня ДР у {name}"),
	}}
	tg := &fakeTelegramClient{}

	svc := newTestService(users, notifs, tg)
	svc.ProcessTick(context.Background(), tickTime)

	require.Len(t, tg.sent, 1)
	assert.Equal(t, int64(104), tg.sent[0].ChatID)
}

func TestUnsubscribedPersonIsNotCelebrated(t *testing.T) {
	users := &fakeUserRepo{users: []*user.User{
		testUser(1, 101, "Анна", "1990-05-02", false, true), // birthday today but unsubscribed
		testUser(2, 102, "Борис", "1991-09-09", true, true),
	}}
	notifs := &fakeNotifRepo{activeRules: []*notification.ActiveRule{
		activeRule(1, 0, "10:00", "Сегодня ДР у {name}"),
	}}
	tg := &fakeTelegramClient{}

	svc := newTestService(users, notifs, tg)
	svc.ProcessTick(context.Background(), tickTime)

	assert.Empty(t, tg.sent)
}

func TestRuleEvaluationErrorDoesNotStopOtherRules(t *testing.T) {
	users := &failingWindowUserRepo{}
	notifs := &fakeNotifRepo{activeRules: []*notification.ActiveRule{
		activeRule(1, 3, "10:00", "a"),
		activeRule(2, 0, "10:00", "b"),
	}}
	tg := &fakeTelegramClient{}

	svc := newTestService(users, notifs, tg)
	// Both rules fail to resolve their window; the tick must survive both.
	assert.NotPanics(t, func() {
		svc.ProcessTick(context.Background(), tickTime)
	})
	assert.Empty(t, tg.sent)
}

func TestRefreshRulesSwapsSnapshot(t *testing.T) {
	users := &fakeUserRepo{users: []*user.User{
		testUser(1, 101, "Анна", "1990-05-02", true, true),
		testUser(2, 102, "Борис", "1991-09-09", true, true),
	}}
	notifs := &fakeNotifRepo{}
	tg := &fakeTelegramClient{}

	svc := newTestService(users, notifs, tg)

	// First tick takes the snapshot while the rule set is still empty.
	svc.ProcessTick(context.Background(), tickTime)

	// Rule appears in the store after the snapshot was taken: ticks within the
	// reload interval must not see it.
	notifs.activeRules = []*notification.ActiveRule{activeRule(1, 0, "10:03", "x")}
	later := tickTime.Add(3 * time.Minute)
	svc.ProcessTick(context.Background(), later)
	assert.Empty(t, tg.sent, "edit must stay invisible until the snapshot reload")

	require.NoError(t, svc.RefreshRules(context.Background()))
	svc.ProcessTick(context.Background(), later)
	assert.Len(t, tg.sent, 1)
}

func TestMaintenanceRunsRegardlessOfTickPhase(t *testing.T) {
	users := &fakeUserRepo{users: []*user.User{
		testUser(1, 101, "Анна", "1990-05-02", true, true),
		testUser(2, 102, "Борис", "1991-09-09", true, true),
	}}
	notifs := &fakeNotifRepo{}
	tg := &fakeTelegramClient{}

	svc := newTestService(users, notifs, tg)

	// A process booted mid-minute produces ticks that all land at second 45.
	boot := time.Date(2025, time.May, 2, 9, 59, 45, 0, time.UTC)
	svc.ProcessTick(context.Background(), boot)

	// A rule created after startup must become visible within one reload
	// interval even though no tick ever lands early in a minute.
	notifs.activeRules = []*notification.ActiveRule{
		activeRule(1, 0, "10:10", "Сегодня ДР у {name}"),
	}
	for i := 1; i <= 11; i++ {
		svc.ProcessTick(context.Background(), boot.Add(time.Duration(i)*time.Minute))
	}

	require.Len(t, tg.sent, 1, "rule must fire once the snapshot catches up")
	assert.Equal(t, "Сегодня ДР у Анна", tg.sent[0].Text)
}

func TestForceSendDeliversAndLogs(t *testing.T) {
	users := &fakeUserRepo{users: []*user.User{
		testUser(1, 101, "Анна", "1990-05-05", true, true),
	}}
	notifs := &fakeNotifRepo{}
	tg := &fakeTelegramClient{}

	svc := newTestService(users, notifs, tg)
	require.NoError(t, svc.ForceSend(context.Background(), 101, "Привет, {first_name}!"))

	require.Len(t, tg.sent, 1)
	assert.Equal(t, int64(101), tg.sent[0].ChatID)
	assert.Equal(t, "Привет, Анна!", tg.sent[0].Text)
	require.Len(t, notifs.logs, 1)
	assert.Equal(t, notification.StatusSuccess, notifs.logs[0].Status)
}

func TestForceSendUnknownUser(t *testing.T) {
	svc := newTestService(&fakeUserRepo{}, &fakeNotifRepo{}, &fakeTelegramClient{})
	err := svc.ForceSend(context.Background(), 999, "x")
	assert.Equal(t, idb.ErrUserNotFound, err)
}
