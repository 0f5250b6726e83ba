package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/open-sspm/credwatch/internal/config"
	"github.com/open-sspm/credwatch/internal/job"
)

var configCheckCmd = &cobra.Command{
	Use:   "config-check",
	Short: "Validate configuration (including Vault secret resolution) and print the effective settings.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd.Context())
		if err != nil {
			return preRunError(err)
		}
		if _, err := job.ParseSchedule(cfg.Schedule); err != nil {
			return preRunError(err)
		}
		return printConfig(cmd.OutOrStdout(), cfg)
	},
}

func printConfig(w io.Writer, cfg config.Config) error {
	if w == nil {
		w = os.Stdout
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	rows := [][2]string{
		{"tenant", cfg.EntraTenantID},
		{"client", cfg.EntraClientID},
		{"client secret", redact(cfg.EntraClientSecret)},
		{"thresholds", cfg.Thresholds.String()},
		{"retention days", fmt.Sprint(cfg.RetentionDays)},
		{"dataset", cfg.DatasetName},
		{"report dir", cfg.ReportDir},
		{"storage", cfg.Storage.Backend},
		{"container", cfg.Storage.Container},
		{"mail transport", cfg.MailTransport},
		{"mail from", cfg.MailFromAddress},
		{"fallback recipient", cfg.AdminFallbackEmail},
		{"schedule", cfg.Schedule},
	}
	for _, r := range rows {
		if _, err := fmt.Fprintf(tw, "%s\t%s\n", r[0], r[1]); err != nil {
			return err
		}
	}
	return tw.Flush()
}

func redact(s string) string {
	if s == "" {
		return ""
	}
	return "(set)"
}
