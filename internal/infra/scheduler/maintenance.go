package scheduler

import (
	"context"
	"time"

	"birthday_notification_bot/internal/app"
	"birthday_notification_bot/internal/domain/notification"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// MaintenanceScheduler runs the housekeeping jobs that are independent of the
// minute loop: the daily backup export and the periodic audit log cleanup.
type MaintenanceScheduler struct {
	cronEngine       *cron.Cron
	backupService    *app.BackupService
	notifRepo        notification.Repository
	logger           *logrus.Entry
	backupCronSpec   string
	logCleanupSpec   string
	logRetentionDays int
	location         *time.Location
}

func NewMaintenanceScheduler(
	backupService *app.BackupService,
	notifRepo notification.Repository,
	logger *logrus.Entry,
	location *time.Location,
	backupCronSpec string, // e.g. "0 3 * * *" (03:00 daily)
	logCleanupSpec string, // e.g. "30 3 * * 0" (03:30 on Sundays)
	logRetentionDays int,
) *MaintenanceScheduler {
	return &MaintenanceScheduler{
		cronEngine:       cron.New(cron.WithLocation(location)),
		backupService:    backupService,
		notifRepo:        notifRepo,
		logger:           logger,
		backupCronSpec:   backupCronSpec,
		logCleanupSpec:   logCleanupSpec,
		logRetentionDays: logRetentionDays,
		location:         location,
	}
}

// Start registers the cron jobs and starts the engine. Invalid cron specs are
// a startup error.
func (s *MaintenanceScheduler) Start() error {
	_, err := s.cronEngine.AddFunc(s.backupCronSpec, func() {
		s.logger.Info("Cron job triggered for daily backup")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		if _, err := s.backupService.CreateBackup(ctx); err != nil {
			s.logger.WithError(err).Error("Scheduled backup failed")
		}
	})
	if err != nil {
		return err
	}

	_, err = s.cronEngine.AddFunc(s.logCleanupSpec, func() {
		s.logger.Info("Cron job triggered for notification log cleanup")
		ctx, cancel := context.WithTimeout(context.Background(), 1*time.Minute)
		defer cancel()
		cutoff := time.Now().In(s.location).AddDate(0, 0, -s.logRetentionDays)
		removed, err := s.notifRepo.DeleteLogsBefore(ctx, cutoff)
		if err != nil {
			s.logger.WithError(err).Error("Notification log cleanup failed")
			return
		}
		s.logger.WithField("removed", removed).Info("Notification log cleanup finished")
	})
	if err != nil {
		return err
	}

	s.cronEngine.Start()
	s.logger.Info("Maintenance scheduler started with jobs")
	return nil
}

// Stop stops the cron engine and waits for any running job to finish.
func (s *MaintenanceScheduler) Stop() {
	s.logger.Info("Stopping maintenance scheduler...")
	ctx := s.cronEngine.Stop()
	<-ctx.Done()
	s.logger.Info("Maintenance scheduler gracefully stopped")
}
