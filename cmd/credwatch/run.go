package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/open-sspm/credwatch/internal/report"
)

var (
	runDateFlag   string
	runDryRunFlag bool
)

var runCmd = &cobra.Command{
	Use:         "run",
	Short:       "Collect credentials, export the snapshot, prune old snapshots, and send expiry alerts once.",
	Args:        cobra.NoArgs,
	Annotations: structuredLog(),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runOnce(runDateFlag, runDryRunFlag)
	},
}

func init() {
	runCmd.Flags().StringVar(&runDateFlag, "date", "", "run as of this UTC day (YYYY-MM-DD) instead of today")
	runCmd.Flags().BoolVar(&runDryRunFlag, "dry-run", false, "log notifications instead of sending them and skip snapshot export and pruning")
}

func parseRunDate(raw string, now time.Time) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return now.UTC(), nil
	}
	d, err := time.Parse(report.DateLayout, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("--date must be YYYY-MM-DD: %w", err)
	}
	return d, nil
}

func runOnce(dateFlag string, dryRun bool) error {
	runDate, err := parseRunDate(dateFlag, time.Now())
	if err != nil {
		return usageError(err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg, err := loadConfig(ctx)
	if err != nil {
		return preRunError(err)
	}
	runner, err := newRunner(ctx, cfg, setupOptions{DryRun: dryRun}, slog.Default())
	if err != nil {
		return preRunError(err)
	}

	_, err = runner.Run(ctx, runDate)
	return runError(err)
}
