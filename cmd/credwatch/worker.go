package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/open-sspm/credwatch/internal/job"
	"github.com/open-sspm/credwatch/internal/metrics"
)

var workerRunNowFlag bool

var workerCmd = &cobra.Command{
	Use:         "worker",
	Short:       "Run credential checks on the SCHEDULE cron expression and serve metrics.",
	Args:        cobra.NoArgs,
	Annotations: structuredLog(),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runWorker(workerRunNowFlag)
	},
}

func init() {
	workerCmd.Flags().BoolVar(&workerRunNowFlag, "run-now", false, "run once at startup before waiting for the schedule")
}

func runWorker(runNow bool) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig(ctx)
	if err != nil {
		return preRunError(err)
	}
	if _, err := job.ParseSchedule(cfg.Schedule); err != nil {
		return preRunError(err)
	}
	runner, err := newRunner(ctx, cfg, setupOptions{}, slog.Default())
	if err != nil {
		return preRunError(err)
	}

	scheduler := job.Scheduler{Runner: runner, Schedule: cfg.Schedule, RunAtStart: runNow}
	metricsServer, metricsErrCh := metrics.StartServer(ctx, cfg.MetricsAddr)

	doneCh := make(chan error, 1)
	go func() {
		doneCh <- scheduler.Run(ctx)
	}()

	var metricsErr error
	var schedErr error
	schedulerDone := false
	select {
	case <-ctx.Done():
	case err := <-metricsErrCh:
		if err != nil {
			metricsErr = err
			slog.Error("metrics server failed", "err", err)
			stop()
		}
	case schedErr = <-doneCh:
		schedulerDone = true
	}

	if !schedulerDone {
		schedErr = <-doneCh
	}
	if metricsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}
	if metricsErr != nil {
		return metricsErr
	}
	return schedErr
}
