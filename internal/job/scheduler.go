package job

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// RunOncer is satisfied by *Runner.
type RunOncer interface {
	RunOnce(ctx context.Context) error
}

// Scheduler triggers runs from a standard five-field cron expression.
type Scheduler struct {
	Runner   RunOncer
	Schedule string
	// RunAtStart triggers one run before waiting for the first tick.
	RunAtStart bool
	Logger     *slog.Logger
}

// ParseSchedule validates a cron expression.
func ParseSchedule(expr string) (cron.Schedule, error) {
	sched, err := cron.ParseStandard(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid schedule %q: %w", expr, err)
	}
	return sched, nil
}

// Run blocks until ctx is done. Ticks that arrive while a run is still in
// progress are skipped.
func (s *Scheduler) Run(ctx context.Context) error {
	if s.Runner == nil {
		return errors.New("scheduler runner is not configured")
	}
	sched, err := ParseSchedule(s.Schedule)
	if err != nil {
		return err
	}
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}

	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	c.Schedule(sched, cron.FuncJob(func() {
		s.trigger(ctx, logger, "scheduled")
	}))

	if s.RunAtStart {
		s.trigger(ctx, logger, "initial")
	}

	c.Start()
	logger.Info("scheduler started", "schedule", s.Schedule, "next", sched.Next(time.Now()).UTC().Format(time.RFC3339))
	<-ctx.Done()
	stopped := c.Stop()
	<-stopped.Done()
	logger.Info("scheduler stopped")
	return nil
}

func (s *Scheduler) trigger(ctx context.Context, logger *slog.Logger, kind string) {
	if ctx.Err() != nil {
		return
	}
	err := s.Runner.RunOnce(ctx)
	switch {
	case err == nil:
	case errors.Is(err, ErrRunAlreadyInProgress):
		logger.Warn(kind+" run skipped; previous run still in progress")
	case errors.Is(err, context.Canceled):
	default:
		logger.Error(kind+" run failed", "err", err)
	}
}
