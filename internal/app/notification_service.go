// internal/app/notification_service.go
package app

import (
	"context"
	"database/sql"
	"fmt"
	"sync/atomic"
	"time"

	"birthday_notification_bot/internal/domain/notification"
	domainTelegram "birthday_notification_bot/internal/domain/telegram"
	"birthday_notification_bot/internal/domain/user"
	idb "birthday_notification_bot/internal/infra/database"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

// NotificationService defines the operations of the reminder engine: the
// per-tick evaluation driven by the scheduler, snapshot reloads, and the
// admin-triggered direct send.
type NotificationService interface {
	// ProcessTick runs one evaluation cycle for the given wall-clock moment,
	// which must already be in the business timezone.
	ProcessTick(ctx context.Context, now time.Time)
	// RefreshRules rebuilds the active-rule snapshot from the store and swaps
	// it in atomically.
	RefreshRules(ctx context.Context) error
	// ForceSend renders templateBody for the given user (as an on-the-day
	// reminder) and delivers it to that user only, logging the attempt.
	ForceSend(ctx context.Context, targetTelegramID int64, templateBody string) error
}

// NotificationServiceImpl implements the NotificationService interface.
type NotificationServiceImpl struct {
	userRepo        user.Repository
	notifRepo       notification.Repository
	telegramClient  domainTelegram.Client
	logger          *logrus.Entry
	location        *time.Location
	phonePay        string
	namePay         string
	reloadInterval  time.Duration
	deliveryTimeout time.Duration

	// lastMaintenance is only touched from the scheduler goroutine, like dedup.
	lastMaintenance time.Time

	// snapshot holds the immutable list of active (rule, template) pairs.
	// Reload builds a brand-new slice and swaps the pointer; a concurrently
	// running reader always sees either the old or the new list in full.
	snapshot atomic.Pointer[[]*notification.ActiveRule]
	dedup    *dedupCache
}

func NewNotificationServiceImpl(
	ur user.Repository,
	nr notification.Repository,
	tc domainTelegram.Client,
	logger *logrus.Entry,
	location *time.Location,
	phonePay, namePay string,
	reloadInterval, deliveryTimeout time.Duration,
) *NotificationServiceImpl {
	s := &NotificationServiceImpl{
		userRepo:        ur,
		notifRepo:       nr,
		telegramClient:  tc,
		logger:          logger,
		location:        location,
		phonePay:        phonePay,
		namePay:         namePay,
		reloadInterval:  reloadInterval,
		deliveryTimeout: deliveryTimeout,
		dedup:           newDedupCache(),
	}
	empty := make([]*notification.ActiveRule, 0)
	s.snapshot.Store(&empty)
	return s
}

// RefreshRules reloads all active rules joined with their active templates and
// atomically replaces the snapshot the tick loop reads.
func (s *NotificationServiceImpl) RefreshRules(ctx context.Context) error {
	rules, err := s.notifRepo.ListActiveRules(ctx)
	if err != nil {
		return fmt.Errorf("failed to reload active rules: %w", err)
	}
	s.snapshot.Store(&rules)
	s.logger.WithField("rule_count", len(rules)).Info("Rule snapshot reloaded")
	return nil
}

// ProcessTick is invoked by the scheduler once a minute. On the first tick and
// once per reload interval after it, it refreshes the rule snapshot and prunes
// the dedup cache; this is the only moment rule edits become visible to
// evaluation. The check is interval-based rather than matching a wall-clock
// second pattern: the ticker's phase depends on boot time, and a loop whose
// ticks all land in the second half of a minute would otherwise never hit a
// pattern like minute%10==0 && second<30. It then evaluates every rule whose
// time of day matches the current minute. A failure in one rule never stops
// the others.
func (s *NotificationServiceImpl) ProcessTick(ctx context.Context, now time.Time) {
	if s.lastMaintenance.IsZero() || now.Sub(s.lastMaintenance) >= s.reloadInterval {
		if err := s.RefreshRules(ctx); err != nil {
			s.logger.WithError(err).Error("Snapshot reload failed; keeping previous snapshot")
		}
		s.dedup.Prune(now)
		s.logger.WithField("cached_keys", s.dedup.Len()).Debug("Dedup cache pruned")
		s.lastMaintenance = now
	}

	currentHHMM := now.Format("15:04")
	for _, rule := range *s.snapshot.Load() {
		if rule.TimeOfDay != currentHHMM {
			continue
		}
		if err := s.safeEvaluateRule(ctx, rule, now); err != nil {
			s.logger.WithError(err).WithFields(logrus.Fields{
				"rule_id":     rule.ID,
				"days_before": rule.DaysBefore,
			}).Error("Rule evaluation failed; continuing with next rule")
		}
	}
}

// safeEvaluateRule contains both errors and panics to the single rule being
// evaluated, so one poisoned rule cannot take down the scheduler goroutine.
func (s *NotificationServiceImpl) safeEvaluateRule(ctx context.Context, rule *notification.ActiveRule, now time.Time) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic during rule evaluation: %v", r)
		}
	}()
	return s.evaluateRule(ctx, rule, now)
}

func (s *NotificationServiceImpl) evaluateRule(ctx context.Context, rule *notification.ActiveRule, now time.Time) error {
	startMD, endMD := user.BirthdayWindow(now, rule.DaysBefore)
	celebrated, err := s.userRepo.ListUpcomingBirthdays(ctx, startMD, endMD)
	if err != nil {
		return fmt.Errorf("failed to resolve birthday window [%s, %s]: %w", startMD, endMD, err)
	}
	if len(celebrated) == 0 {
		return nil
	}

	if s.dedup.Contains(rule.ID, now) {
		s.logger.WithField("rule_id", rule.ID).Debug("Rule already fired in this bucket, skipping")
		return nil
	}

	s.logger.WithFields(logrus.Fields{
		"rule_id":     rule.ID,
		"days_before": rule.DaysBefore,
		"celebrated":  len(celebrated),
	}).Info("Rule fired, dispatching reminders")

	for _, person := range celebrated {
		s.dispatchForPerson(ctx, rule, person, now)
	}

	// Recorded only after the full dispatch pass; within one bucket the rule
	// will not fire again.
	s.dedup.Record(rule.ID, now)
	return nil
}

// dispatchForPerson renders the rule's template for one celebrated person and
// fans the result out to every eligible recipient. Dispatch is per-recipient
// and independent: a failure for one recipient does not prevent attempts to
// the rest, and every attempt produces exactly one audit log entry.
func (s *NotificationServiceImpl) dispatchForPerson(ctx context.Context, rule *notification.ActiveRule, person *user.User, now time.Time) {
	renderCtx := notification.NewRenderContext(
		person.FirstName, person.LastName.String, person.BirthDate,
		rule.DaysBefore, now, s.phonePay, s.namePay,
	)
	text := notification.Render(rule.TemplateBody, renderCtx)

	recipients, err := s.userRepo.ListRecipients(ctx, person.TelegramID)
	if err != nil {
		s.logger.WithError(err).WithField("celebrated_id", person.ID).Error("Failed to list recipients")
		return
	}

	for _, recipient := range recipients {
		s.deliver(ctx, recipient, text)
	}
}

// deliver sends one message to one recipient under the per-attempt timeout
// and appends the audit log entry for the attempt.
func (s *NotificationServiceImpl) deliver(ctx context.Context, recipient *user.User, text string) {
	sendCtx, cancel := context.WithTimeout(ctx, s.deliveryTimeout)
	defer cancel()

	sendErr := s.telegramClient.SendMessage(sendCtx, recipient.TelegramID, text, &telebot.SendOptions{
		ParseMode: telebot.ModeHTML,
	})

	entry := &notification.LogEntry{
		UserID:  recipient.ID,
		Message: text,
		Status:  notification.StatusSuccess,
	}
	if sendErr != nil {
		entry.Status = notification.StatusError
		entry.ErrorMessage = sql.NullString{
			String: fmt.Sprintf("ошибка отправки уведомления пользователю %d: %v", recipient.TelegramID, sendErr),
			Valid:  true,
		}
		s.logger.WithError(sendErr).WithField("recipient_telegram_id", recipient.TelegramID).Error("Delivery failed")
	}

	if err := s.notifRepo.AppendLog(ctx, entry); err != nil {
		s.logger.WithError(err).WithField("recipient_id", recipient.ID).Error("Failed to append notification log")
	}
}

// ForceSend delivers a rendered template directly to one user, bypassing the
// schedule. Used by the admin /notify command.
func (s *NotificationServiceImpl) ForceSend(ctx context.Context, targetTelegramID int64, templateBody string) error {
	target, err := s.userRepo.GetByTelegramID(ctx, targetTelegramID)
	if err != nil {
		if err == idb.ErrUserNotFound {
			return err
		}
		return fmt.Errorf("failed to load target user: %w", err)
	}

	renderCtx := notification.NewRenderContext(
		target.FirstName, target.LastName.String, target.BirthDate,
		0, time.Now().In(s.location), s.phonePay, s.namePay,
	)
	text := notification.Render(templateBody, renderCtx)

	s.deliver(ctx, target, text)
	return nil
}
