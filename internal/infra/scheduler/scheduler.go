package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"recurring_events/internal/app"
)

// ReminderRunner is one reminder pass; implemented by app.ReminderDispatcher.
type ReminderRunner interface {
	Run(ctx context.Context, now time.Time) app.Summary
}

// ReminderScheduler fires the reminder pass on a cron schedule. The pass itself holds no
// timers; this is only one of its triggers.
type ReminderScheduler struct {
	cronEngine *cron.Cron
	runner     ReminderRunner
	logger     *logrus.Entry
	cronSpec   string
	timeout    time.Duration
}

func NewReminderScheduler(
	runner ReminderRunner,
	logger *logrus.Entry,
	cronSpec string, // e.g., "0 8 * * *" (08:00 daily)
	timeout time.Duration,
	loc *time.Location,
) *ReminderScheduler {
	if loc == nil {
		loc = time.Local
	}
	return &ReminderScheduler{
		cronEngine: cron.New(cron.WithLocation(loc)),
		runner:     runner,
		logger:     logger.WithField("component", "scheduler"),
		cronSpec:   cronSpec,
		timeout:    timeout,
	}
}

// Start registers the daily job and starts the cron engine.
func (s *ReminderScheduler) Start() error {
	s.logger.WithField("cron_spec", s.cronSpec).Info("Starting reminder scheduler")

	if _, err := s.cronEngine.AddFunc(s.cronSpec, s.RunOnce); err != nil {
		return err
	}

	s.cronEngine.Start()
	return nil
}

// RunOnce executes one pass under the configured timeout.
func (s *ReminderScheduler) RunOnce() {
	s.logger.Info("Cron job triggered for reminder pass")
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	summary := s.runner.Run(ctx, time.Now())
	if summary.Failed > 0 || summary.ExpansionFailures > 0 {
		s.logger.WithFields(logrus.Fields{
			"failed":             summary.Failed,
			"expansion_failures": summary.ExpansionFailures,
		}).Warn("Reminder pass finished with failures")
	}
}

func (s *ReminderScheduler) Stop() {
	s.logger.Info("Stopping reminder scheduler")
	ctx := s.cronEngine.Stop() // waits for running jobs
	<-ctx.Done()
	s.logger.Info("Reminder scheduler stopped")
}
