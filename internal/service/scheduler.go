package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/webitel/im-realtime-service/internal/domain/registry"
)

var cronParser = cron.NewParser(
	cron.SecondOptional |
		cron.Minute |
		cron.Hour |
		cron.Dom |
		cron.Month |
		cron.Dow |
		cron.Descriptor,
)

type SchedulerConfig struct {
	DueSpec       string
	RetentionSpec string
	ReconcileSpec string
	Retention     time.Duration
	// JobTimeout bounds a single run of any job.
	JobTimeout time.Duration
}

// Scheduler runs the periodic sweeps: due scheduled notifications, retention
// of read notifications and reconciliation of the durable status projection
// with live presence.
type Scheduler struct {
	cron     *cron.Cron
	notifier *Notifier
	users    UserDirectory
	hub      registry.Hubber
	cfg      SchedulerConfig
	logger   *slog.Logger
	clock    func() time.Time
}

func NewScheduler(cfg SchedulerConfig, notifier *Notifier, users UserDirectory, hub registry.Hubber, logger *slog.Logger) (*Scheduler, error) {
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = 5 * time.Minute
	}
	cl := cronLogger{logger: logger}
	s := &Scheduler{
		cron: cron.New(
			cron.WithParser(cronParser),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		notifier: notifier,
		users:    users,
		hub:      hub,
		cfg:      cfg,
		logger:   logger,
		clock:    time.Now,
	}

	jobs := []struct {
		name string
		spec string
		run  func(context.Context) error
	}{
		{"due_notifications", cfg.DueSpec, s.RunDue},
		{"notification_retention", cfg.RetentionSpec, s.Retention},
		{"status_reconcile", cfg.ReconcileSpec, s.Reconcile},
	}
	for _, j := range jobs {
		if j.spec == "" {
			continue
		}
		if _, err := s.cron.AddFunc(j.spec, s.wrap(j.name, j.run)); err != nil {
			return nil, fmt.Errorf("schedule %s (%q): %w", j.name, j.spec, err)
		}
	}
	return s, nil
}

// Start resets status rows left online by a previous run, then starts the
// cron loop.
func (s *Scheduler) Start(ctx context.Context) error {
	if err := s.Reconcile(ctx); err != nil {
		return err
	}
	s.cron.Start()
	s.logger.Info("SCHEDULER_STARTED", slog.Int("jobs", len(s.cron.Entries())))
	return nil
}

// Stop waits for running jobs or for ctx, whichever comes first.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Scheduler) RunDue(ctx context.Context) error {
	n, err := s.notifier.RunDue(ctx)
	if n > 0 {
		s.logger.Info("SCHEDULED_NOTIFICATIONS_SENT", slog.Int("entries", n))
	}
	return err
}

func (s *Scheduler) Retention(ctx context.Context) error {
	_, err := s.notifier.PurgeOld(ctx, s.cfg.Retention)
	return err
}

// Reconcile marks offline every durable status row whose identity has no
// live connection in this process.
func (s *Scheduler) Reconcile(ctx context.Context) error {
	n, err := s.users.ResetStale(ctx, s.hub.Presence().Online(), s.clock().UTC())
	if err != nil {
		return fmt.Errorf("reset stale status: %w", err)
	}
	if n > 0 {
		s.logger.Info("STALE_STATUS_RESET", slog.Int64("rows", n))
	}
	return nil
}

func (s *Scheduler) wrap(name string, run func(context.Context) error) func() {
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.cfg.JobTimeout)
		defer cancel()

		start := time.Now()
		if err := run(ctx); err != nil {
			s.logger.Error("SCHEDULED_JOB_FAILED",
				slog.String("job", name),
				slog.Any("err", err),
				slog.Int64("duration_ms", time.Since(start).Milliseconds()),
			)
			return
		}
		s.logger.Debug("SCHEDULED_JOB_COMPLETED",
			slog.String("job", name),
			slog.Int64("duration_ms", time.Since(start).Milliseconds()),
		)
	}
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, kv ...any) {
	l.logger.Debug(msg, kv...)
}

func (l cronLogger) Error(err error, msg string, kv ...any) {
	l.logger.Error(msg, append(kv, "err", err)...)
}
