// Package job runs the monitor pipeline: collect, export and prune, classify,
// notify.
package job

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/open-sspm/credwatch/internal/expiry"
	"github.com/open-sspm/credwatch/internal/inventory"
	"github.com/open-sspm/credwatch/internal/logging"
	"github.com/open-sspm/credwatch/internal/metrics"
	"github.com/open-sspm/credwatch/internal/notify"
	"github.com/open-sspm/credwatch/internal/report"
)

// ErrRunAlreadyInProgress is returned when a run is requested while another
// one on the same Runner has not finished.
var ErrRunAlreadyInProgress = errors.New("credential run already in progress")

type Collector interface {
	Collect(ctx context.Context) (inventory.Result, error)
}

type Reporter interface {
	Export(ctx context.Context, runDate time.Time, records []inventory.Record) (string, error)
	Prune(ctx context.Context, runDate time.Time) report.PruneResult
}

type Notifier interface {
	Dispatch(ctx context.Context, events []expiry.Event) notify.Summary
}

// Summary is the outcome of one run. It is logged once at the end.
type Summary struct {
	RunID   string
	RunDate time.Time

	Applications       int
	Records            int
	SkippedCredentials int
	CollectionFailures int

	Snapshot     string
	ExportFailed bool
	Pruned       int
	PruneFailed  int

	Events        int
	Notifications notify.Summary

	Duration time.Duration
}

type Runner struct {
	Collector  Collector
	Reports    Reporter
	Classifier expiry.Classifier
	Notifier   Notifier
	Logger     *slog.Logger
	// DryRun skips snapshot export and pruning. The caller is expected to
	// wire a non-sending Mailer into the Notifier as well.
	DryRun bool
	// Now defaults to time.Now.
	Now func() time.Time

	mu sync.Mutex
}

// RunOnce runs for the current UTC day.
func (r *Runner) RunOnce(ctx context.Context) error {
	_, err := r.Run(ctx, r.now())
	return err
}

// Run executes the pipeline for runDate. Only a failed application listing
// (or a concurrent run) is returned as an error; every per-item failure is
// logged and counted in the summary.
func (r *Runner) Run(ctx context.Context, runDate time.Time) (Summary, error) {
	if !r.mu.TryLock() {
		return Summary{}, ErrRunAlreadyInProgress
	}
	defer r.mu.Unlock()

	if r.Collector == nil || r.Notifier == nil {
		return Summary{}, errors.New("job runner is not configured")
	}

	started := r.now()
	sum := Summary{RunID: uuid.NewString(), RunDate: inventory.DateOf(runDate)}
	logger := logging.ForRun(r.Logger, sum.RunID, sum.RunDate)
	logger.Info("credential run started", "dry_run", r.DryRun, "thresholds", r.Classifier.Thresholds.String())

	result, err := r.Collector.Collect(ctx)
	if err != nil {
		sum.Duration = r.now().Sub(started)
		metrics.RunsTotal.WithLabelValues("failed").Inc()
		metrics.RunDuration.Observe(sum.Duration.Seconds())
		logger.Error("credential collection failed", "err", err)
		return sum, fmt.Errorf("collect credentials: %w", err)
	}
	sum.Applications = result.Applications
	sum.Records = len(result.Records)
	sum.SkippedCredentials = result.Skipped
	sum.CollectionFailures = len(result.Failures)

	if len(result.Records) == 0 {
		logger.Info("no credential records collected; export and notification skipped",
			"applications", result.Applications,
		)
		r.finish(logger, &sum, started)
		return sum, nil
	}

	r.report(ctx, logger, &sum, result.Records)

	events := r.Classifier.ClassifyAll(result.Records, sum.RunDate)
	sum.Events = len(events)
	if len(events) == 0 {
		logger.Info("no credentials at an alert threshold", "records", sum.Records)
	} else {
		sum.Notifications = r.Notifier.Dispatch(ctx, events)
	}

	r.finish(logger, &sum, started)
	return sum, nil
}

func (r *Runner) report(ctx context.Context, logger *slog.Logger, sum *Summary, records []inventory.Record) {
	if r.Reports == nil {
		return
	}
	if r.DryRun {
		logger.Info("dry run: snapshot export and retention skipped", "records", len(records))
		return
	}

	key, err := r.Reports.Export(ctx, sum.RunDate, records)
	switch {
	case errors.Is(err, report.ErrNothingToExport):
	case err != nil:
		sum.ExportFailed = true
		logger.Error("snapshot export failed", "err", err)
	default:
		sum.Snapshot = key
	}

	pruned := r.Reports.Prune(ctx, sum.RunDate)
	sum.Pruned = pruned.Deleted
	sum.PruneFailed = pruned.Failed
}

func (r *Runner) finish(logger *slog.Logger, sum *Summary, started time.Time) {
	sum.Duration = r.now().Sub(started)
	metrics.RunsTotal.WithLabelValues("completed").Inc()
	metrics.RunDuration.Observe(sum.Duration.Seconds())
	metrics.RunLastSuccessTimestamp.SetToCurrentTime()

	logger.Info("credential run complete",
		"applications", sum.Applications,
		"records", sum.Records,
		"skipped_credentials", sum.SkippedCredentials,
		"collection_failures", sum.CollectionFailures,
		"snapshot", sum.Snapshot,
		"export_failed", sum.ExportFailed,
		"pruned", sum.Pruned,
		"prune_failed", sum.PruneFailed,
		"events", sum.Events,
		"sent", sum.Notifications.Sent,
		"skipped", sum.Notifications.Skipped,
		"failed", sum.Notifications.Failed,
		"duration", sum.Duration.String(),
	)
}

func (r *Runner) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}
