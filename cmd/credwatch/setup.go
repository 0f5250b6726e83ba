package main

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/time/rate"

	"github.com/open-sspm/credwatch/internal/config"
	"github.com/open-sspm/credwatch/internal/directory"
	"github.com/open-sspm/credwatch/internal/expiry"
	"github.com/open-sspm/credwatch/internal/inventory"
	"github.com/open-sspm/credwatch/internal/job"
	"github.com/open-sspm/credwatch/internal/notify"
	"github.com/open-sspm/credwatch/internal/report"
	"github.com/open-sspm/credwatch/internal/secrets"
	"github.com/open-sspm/credwatch/internal/storage"
)

type setupOptions struct {
	DryRun bool
}

// loadConfig reads configuration, fills missing secrets from Vault when it is
// configured, and validates the result. Every error here is a pre-run
// failure.
func loadConfig(ctx context.Context) (config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return cfg, err
	}
	if err := resolveSecrets(ctx, &cfg); err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func resolveSecrets(ctx context.Context, cfg *config.Config) error {
	if !cfg.VaultEnabled() {
		return nil
	}
	needSMTP := cfg.MailTransport == config.MailTransportSMTP && cfg.SMTPUsername != "" && cfg.SMTPPassword == ""
	if cfg.EntraClientSecret != "" && !needSMTP {
		return nil
	}

	vault, err := secrets.NewVault(secrets.Options{
		Address:       cfg.VaultAddr,
		Namespace:     cfg.VaultNamespace,
		Token:         cfg.VaultToken,
		KVMount:       cfg.VaultKVMount,
		SecretPath:    cfg.VaultSecretPath,
		TLSSkipVerify: cfg.VaultSkipVerify,
		TLSCACertFile: cfg.VaultCACert,
	})
	if err != nil {
		return err
	}

	cfg.EntraClientSecret, err = secrets.Resolve(ctx, vault, "ENTRA_CLIENT_SECRET", cfg.EntraClientSecret)
	if err != nil {
		return fmt.Errorf("resolve ENTRA_CLIENT_SECRET: %w", err)
	}
	if needSMTP {
		cfg.SMTPPassword, err = secrets.Resolve(ctx, vault, "SMTP_PASSWORD", cfg.SMTPPassword)
		if err != nil {
			return fmt.Errorf("resolve SMTP_PASSWORD: %w", err)
		}
	}
	return nil
}

// newRunner wires the pipeline from cfg.
func newRunner(ctx context.Context, cfg config.Config, opts setupOptions, logger *slog.Logger) (*job.Runner, error) {
	if logger == nil {
		logger = slog.Default()
	}

	dir, err := directory.New(cfg.EntraTenantID, cfg.EntraClientID, cfg.EntraClientSecret)
	if err != nil {
		return nil, fmt.Errorf("directory client: %w", err)
	}

	remote, err := storage.Open(ctx, cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("storage %s: %w", cfg.Storage.Backend, err)
	}
	var local storage.ObjectStore
	if cfg.ReportDir != "" {
		fs, err := storage.NewFileStore(cfg.ReportDir)
		if err != nil {
			return nil, fmt.Errorf("report directory: %w", err)
		}
		local = fs
	}

	mailer, err := newMailer(cfg, dir, opts, logger)
	if err != nil {
		return nil, err
	}
	var limiter *rate.Limiter
	if cfg.MailRatePerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.MailRatePerSecond), 1)
	}

	return &job.Runner{
		Collector: inventory.NewCollector(dir, logger),
		Reports: &report.Store{
			Local:         local,
			Remote:        remote,
			Dataset:       cfg.DatasetName,
			RetentionDays: cfg.RetentionDays,
			Logger:        logger,
		},
		Classifier: expiry.NewClassifier(cfg.Thresholds),
		Notifier: &notify.Dispatcher{
			Mailer:            mailer,
			FromAddress:       cfg.MailFromAddress,
			FromName:          cfg.MailFromName,
			FallbackRecipient: cfg.AdminFallbackEmail,
			Limiter:           limiter,
			Logger:            logger,
		},
		Logger: logger,
		DryRun: opts.DryRun,
	}, nil
}

func newMailer(cfg config.Config, dir *directory.Client, opts setupOptions, logger *slog.Logger) (notify.Mailer, error) {
	if opts.DryRun {
		return notify.LogMailer{Logf: logger.Info}, nil
	}
	switch cfg.MailTransport {
	case config.MailTransportSMTP:
		m, err := notify.NewSMTPMailer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword)
		if err != nil {
			return nil, fmt.Errorf("smtp mailer: %w", err)
		}
		return m, nil
	default:
		return notify.GraphMailer{Client: dir}, nil
	}
}
