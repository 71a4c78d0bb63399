package scheduler

import (
	"context"
	"time"

	"birthday_notification_bot/internal/app"

	"github.com/sirupsen/logrus"
)

// BirthdayScheduler drives the reminder engine: one cooperative loop that
// wakes every tick interval, obtains the current time in the business
// timezone and hands it to the notification service. Ticks are strictly
// sequential; there is never more than one evaluation in flight.
type BirthdayScheduler struct {
	notifService app.NotificationService
	logger       *logrus.Entry
	location     *time.Location
	tickInterval time.Duration

	cancel context.CancelFunc
	done   chan struct{}
}

func NewBirthdayScheduler(
	notifService app.NotificationService,
	logger *logrus.Entry,
	location *time.Location,
	tickInterval time.Duration,
) *BirthdayScheduler {
	return &BirthdayScheduler{
		notifService: notifService,
		logger:       logger,
		location:     location,
		tickInterval: tickInterval,
	}
}

// Start launches the loop on its own goroutine. The first snapshot load
// happens immediately so rules fire without waiting for the first 10-minute
// maintenance boundary.
func (s *BirthdayScheduler) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})

	if err := s.notifService.RefreshRules(ctx); err != nil {
		s.logger.WithError(err).Error("Initial rule snapshot load failed; will retry on next maintenance window")
	}

	go s.run(ctx)
	s.logger.WithField("tick_interval", s.tickInterval.String()).Info("Birthday scheduler started")
}

func (s *BirthdayScheduler) run(ctx context.Context) {
	defer close(s.done)

	ticker := time.NewTicker(s.tickInterval)
	defer ticker.Stop()

	for {
		// Cancellation is observed at the top of each iteration; a tick that
		// already started always runs to completion.
		select {
		case <-ctx.Done():
			s.logger.Info("Birthday scheduler loop observed stop signal, exiting")
			return
		case <-ticker.C:
			now := time.Now().In(s.location)
			// The tick runs under its own context: once started it completes
			// its dispatch and logging even if Stop was called meanwhile.
			// Stop blocks until the loop returns, so nothing is abandoned.
			s.notifService.ProcessTick(context.Background(), now)
		}
	}
}

// Stop signals the loop to exit and blocks until it has observed the signal
// and returned, so the process never abandons a partially started tick.
func (s *BirthdayScheduler) Stop() {
	if s.cancel == nil {
		return
	}
	s.logger.Info("Stopping birthday scheduler...")
	s.cancel()
	<-s.done
	s.logger.Info("Birthday scheduler gracefully stopped")
}
