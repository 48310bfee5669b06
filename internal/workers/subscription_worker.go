package workers

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/EnowBibi/KontriVibeBackend/internal/logger"
	"github.com/EnowBibi/KontriVibeBackend/internal/services/subscription"
)

const workerName = "subscription_worker"

// NotificationCleaner drops notifications past their retention.
type NotificationCleaner interface {
	CleanExpired(ctx context.Context) (int64, error)
}

// Schedules are cron expressions (robfig syntax, "@every 5m" accepted).
type Schedules struct {
	Expiry              string
	StaleAttempts       string
	Reminders           string
	NotificationCleanup string
}

// SubscriptionWorker runs the subscription sweeps on a cron schedule.
// Entitlement never waits on it: reads recompute expiry on every call.
type SubscriptionWorker struct {
	subscriptions  subscription.Service
	notifications  NotificationCleaner
	schedules      Schedules
	reminderWindow time.Duration
	jobTimeout     time.Duration
	cron           *cron.Cron
}

func NewSubscriptionWorker(
	subscriptions subscription.Service,
	notifications NotificationCleaner,
	schedules Schedules,
	reminderDays int,
) *SubscriptionWorker {
	window := subscription.DefaultReminderWindow
	if reminderDays > 0 {
		window = time.Duration(reminderDays) * 24 * time.Hour
	}
	if schedules.NotificationCleanup == "" {
		schedules.NotificationCleanup = "@daily"
	}

	cl := cronLogger{}
	return &SubscriptionWorker{
		subscriptions:  subscriptions,
		notifications:  notifications,
		schedules:      schedules,
		reminderWindow: window,
		jobTimeout:     5 * time.Minute,
		cron: cron.New(
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
	}
}

// Start registers the jobs and starts the scheduler. Every run derives its
// context from ctx, so cancelling it aborts running sweeps.
func (w *SubscriptionWorker) Start(ctx context.Context) error {
	jobs := []struct {
		spec string
		name string
		run  func(context.Context) (int, error)
	}{
		{w.schedules.Expiry, "sweep_expired", w.subscriptions.SweepExpired},
		{w.schedules.StaleAttempts, "sweep_stale_attempts", w.subscriptions.SweepStaleAttempts},
		{w.schedules.Reminders, "remind_expiring", w.remindExpiring},
		{w.schedules.NotificationCleanup, "clean_notifications", w.cleanNotifications},
	}

	for _, job := range jobs {
		if job.spec == "" {
			continue
		}
		if _, err := w.cron.AddFunc(job.spec, func() { w.runJob(ctx, job.name, job.run) }); err != nil {
			return fmt.Errorf("schedule %s (%q): %w", job.name, job.spec, err)
		}
	}

	w.cron.Start()
	logger.Info("Subscription worker started",
		"expiry", w.schedules.Expiry,
		"stale_attempts", w.schedules.StaleAttempts,
		"reminders", w.schedules.Reminders,
		"notification_cleanup", w.schedules.NotificationCleanup,
	)
	return nil
}

// Stop halts scheduling and waits for running jobs.
func (w *SubscriptionWorker) Stop() {
	<-w.cron.Stop().Done()
	logger.Info("Subscription worker stopped")
}

// RunOnce runs every job once, in order. Used by the sweep command.
func (w *SubscriptionWorker) RunOnce(ctx context.Context) error {
	steps := []struct {
		name string
		run  func(context.Context) (int, error)
	}{
		{"sweep_stale_attempts", w.subscriptions.SweepStaleAttempts},
		{"sweep_expired", w.subscriptions.SweepExpired},
		{"remind_expiring", w.remindExpiring},
		{"clean_notifications", w.cleanNotifications},
	}
	for _, step := range steps {
		if err := w.runJob(ctx, step.name, step.run); err != nil {
			return fmt.Errorf("%s: %w", step.name, err)
		}
	}
	return nil
}

func (w *SubscriptionWorker) runJob(parent context.Context, name string, run func(context.Context) (int, error)) error {
	if parent.Err() != nil {
		return parent.Err()
	}
	ctx, cancel := context.WithTimeout(parent, w.jobTimeout)
	defer cancel()

	start := time.Now()
	n, err := run(ctx)
	logger.WorkerLog(workerName, name, err, "affected", n, "duration_ms", time.Since(start).Milliseconds())
	return err
}

func (w *SubscriptionWorker) remindExpiring(ctx context.Context) (int, error) {
	return w.subscriptions.RemindExpiring(ctx, w.reminderWindow)
}

func (w *SubscriptionWorker) cleanNotifications(ctx context.Context) (int, error) {
	if w.notifications == nil {
		return 0, nil
	}
	n, err := w.notifications.CleanExpired(ctx)
	return int(n), err
}

// cronLogger routes robfig/cron's own messages to the app logger.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	logger.Debug("cron: "+msg, keysAndValues...)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	logger.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
