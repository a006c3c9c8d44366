// Package cron runs the periodic maintenance sweeps: clearing the active
// flag on role grants past their end timestamp and deleting expired login
// sessions. The resolver never trusts a stale active flag, so the sweeps
// keep stored state honest rather than guarding correctness.
package cron

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/courtsidehq/courtside/internal/metrics"
)

type grantSweeper interface {
	ExpireEndedGrants(ctx context.Context) (int64, error)
}

type sessionSweeper interface {
	CleanExpiredSessions(ctx context.Context) (int64, error)
}

// Runner schedules the background sweeps.
type Runner struct {
	cron     *cron.Cron
	grants   grantSweeper
	sessions sessionSweeper
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

// NewRunner creates a sweep runner. Metrics may be nil in tests.
func NewRunner(grants grantSweeper, sessions sessionSweeper, m *metrics.Metrics, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		cron:     cron.New(),
		grants:   grants,
		sessions: sessions,
		metrics:  m,
		logger:   logger,
	}
}

// Start registers the hourly sweeps and starts the scheduler. Both sweeps
// also run once immediately so a restart never leaves stale rows sitting
// until the next full hour.
func (r *Runner) Start() error {
	if _, err := r.cron.AddFunc("@hourly", func() { r.runSweep("expire_grants") }); err != nil {
		return err
	}
	if _, err := r.cron.AddFunc("@hourly", func() { r.runSweep("clean_sessions") }); err != nil {
		return err
	}

	go r.runSweep("expire_grants")
	go r.runSweep("clean_sessions")

	r.cron.Start()
	r.logger.Info("background sweeps started", "schedule", "@hourly")
	return nil
}

// Stop stops the scheduler and waits for any running sweep to finish.
func (r *Runner) Stop() {
	ctx := r.cron.Stop()
	<-ctx.Done()
	r.logger.Info("background sweeps stopped")
}

func (r *Runner) runSweep(name string) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	start := time.Now()
	var rows int64
	var err error
	switch name {
	case "expire_grants":
		rows, err = r.grants.ExpireEndedGrants(ctx)
	case "clean_sessions":
		rows, err = r.sessions.CleanExpiredSessions(ctx)
	}
	elapsed := time.Since(start)

	if r.metrics != nil {
		r.metrics.ObserveSweep(name, rows, elapsed.Seconds(), err)
	}
	if err != nil {
		r.logger.Error("sweep failed", "sweep", name, "error", err)
		return
	}
	if rows > 0 {
		r.logger.Info("sweep completed", "sweep", name, "rows", rows, "duration", elapsed)
	}
}
