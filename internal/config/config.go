package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"github.com/open-sspm/credwatch/internal/expiry"
	"github.com/open-sspm/credwatch/internal/report"
	"github.com/open-sspm/credwatch/internal/storage"
)

const (
	MailTransportGraph = "graph"
	MailTransportSMTP  = "smtp"

	defaultSchedule      = "0 6 * * *"
	defaultMetricsAddr   = ":9090"
	defaultSMTPPort      = 587
	defaultMailRate      = 2.0
	defaultVaultKVMount  = "secret"
	defaultMailTransport = MailTransportGraph
)

type Config struct {
	EntraTenantID     string
	EntraClientID     string
	EntraClientSecret string

	Thresholds    expiry.Thresholds
	RetentionDays int
	DatasetName   string
	ReportDir     string

	Storage storage.Options

	MailTransport      string
	MailFromAddress    string
	MailFromName       string
	SMTPHost           string
	SMTPPort           int
	SMTPUsername       string
	SMTPPassword       string
	MailRatePerSecond  float64
	AdminFallbackEmail string

	VaultAddr       string
	VaultToken      string
	VaultNamespace  string
	VaultSecretPath string
	VaultKVMount    string
	VaultSkipVerify bool
	VaultCACert     string

	Schedule    string
	MetricsAddr string
}

// Load reads .env (when present) and the process environment. Malformed
// values are errors; required values are checked later by Validate so that
// secrets can first be resolved from Vault.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil {
		var pathErr *os.PathError
		if !errors.As(err, &pathErr) {
			return Config{}, err
		}
	}

	cfg := Config{
		EntraTenantID:     strings.TrimSpace(os.Getenv("ENTRA_TENANT_ID")),
		EntraClientID:     strings.TrimSpace(os.Getenv("ENTRA_CLIENT_ID")),
		EntraClientSecret: os.Getenv("ENTRA_CLIENT_SECRET"),

		DatasetName: getenvDefault("DATASET_NAME", report.DefaultDataset),
		ReportDir:   strings.TrimSpace(os.Getenv("REPORT_DIR")),

		Storage: storage.Options{
			Backend:               strings.ToLower(getenvDefault("STORAGE_BACKEND", storage.BackendFile)),
			Container:             strings.TrimSpace(os.Getenv("STORAGE_CONTAINER")),
			Prefix:                strings.TrimSpace(os.Getenv("STORAGE_PREFIX")),
			AzureAccountName:      strings.TrimSpace(os.Getenv("AZURE_STORAGE_ACCOUNT")),
			AzureAccountKey:       os.Getenv("AZURE_STORAGE_KEY"),
			AzureConnectionString: os.Getenv("AZURE_STORAGE_CONNECTION_STRING"),
			S3Region:              strings.TrimSpace(os.Getenv("S3_REGION")),
			S3Endpoint:            strings.TrimSpace(os.Getenv("S3_ENDPOINT")),
			S3AccessKeyID:         strings.TrimSpace(os.Getenv("S3_ACCESS_KEY_ID")),
			S3SecretAccessKey:     os.Getenv("S3_SECRET_ACCESS_KEY"),
			S3UsePathStyle:        getenvBoolDefault("S3_USE_PATH_STYLE", false),
			GCSCredentialsFile:    strings.TrimSpace(os.Getenv("GCS_CREDENTIALS_FILE")),
			Dir:                   strings.TrimSpace(os.Getenv("STORAGE_DIR")),
		},

		MailTransport:      strings.ToLower(getenvDefault("MAIL_TRANSPORT", defaultMailTransport)),
		MailFromAddress:    strings.TrimSpace(os.Getenv("MAIL_FROM_ADDRESS")),
		MailFromName:       strings.TrimSpace(os.Getenv("MAIL_FROM_NAME")),
		SMTPHost:           strings.TrimSpace(os.Getenv("SMTP_HOST")),
		SMTPPort:           getenvIntDefault("SMTP_PORT", defaultSMTPPort),
		SMTPUsername:       strings.TrimSpace(os.Getenv("SMTP_USERNAME")),
		SMTPPassword:       os.Getenv("SMTP_PASSWORD"),
		AdminFallbackEmail: strings.TrimSpace(os.Getenv("ADMIN_FALLBACK_EMAIL")),

		VaultAddr:       strings.TrimSpace(os.Getenv("VAULT_ADDR")),
		VaultToken:      os.Getenv("VAULT_TOKEN"),
		VaultNamespace:  strings.TrimSpace(os.Getenv("VAULT_NAMESPACE")),
		VaultSecretPath: strings.TrimSpace(os.Getenv("VAULT_SECRET_PATH")),
		VaultKVMount:    getenvDefault("VAULT_KV_MOUNT", defaultVaultKVMount),
		VaultSkipVerify: getenvBoolDefault("VAULT_SKIP_VERIFY", false),
		VaultCACert:     strings.TrimSpace(os.Getenv("VAULT_CACERT")),

		Schedule:    getenvDefault("SCHEDULE", defaultSchedule),
		MetricsAddr: getenvDefault("METRICS_ADDR", defaultMetricsAddr),
	}

	thresholds, err := expiry.ParseThresholds(os.Getenv("ALERT_THRESHOLDS"))
	if err != nil {
		return cfg, fmt.Errorf("ALERT_THRESHOLDS: %w", err)
	}
	cfg.Thresholds = thresholds

	cfg.RetentionDays = report.DefaultRetentionDays
	if v := strings.TrimSpace(os.Getenv("RETENTION_DAYS")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return cfg, fmt.Errorf("RETENTION_DAYS must be a positive integer, got %q", v)
		}
		cfg.RetentionDays = n
	}

	cfg.MailRatePerSecond = defaultMailRate
	if v := strings.TrimSpace(os.Getenv("MAIL_RATE_PER_SECOND")); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f < 0 {
			return cfg, fmt.Errorf("MAIL_RATE_PER_SECOND must be a non-negative number, got %q", v)
		}
		cfg.MailRatePerSecond = f
	}

	switch cfg.MailTransport {
	case MailTransportGraph, MailTransportSMTP:
	default:
		return cfg, fmt.Errorf("MAIL_TRANSPORT must be one of: %s, %s", MailTransportGraph, MailTransportSMTP)
	}

	return cfg, nil
}

// VaultEnabled reports whether missing secrets should be read from Vault.
func (c Config) VaultEnabled() bool {
	return c.VaultAddr != ""
}

// Validate checks the values a run cannot start without.
func (c Config) Validate() error {
	var missing []string
	if c.EntraTenantID == "" {
		missing = append(missing, "ENTRA_TENANT_ID")
	}
	if c.EntraClientID == "" {
		missing = append(missing, "ENTRA_CLIENT_ID")
	}
	if strings.TrimSpace(c.EntraClientSecret) == "" {
		missing = append(missing, "ENTRA_CLIENT_SECRET")
	}
	if c.MailFromAddress == "" {
		missing = append(missing, "MAIL_FROM_ADDRESS")
	}
	if c.MailTransport == MailTransportSMTP && c.SMTPHost == "" {
		missing = append(missing, "SMTP_HOST")
	}
	if c.Storage.Backend != storage.BackendFile && c.Storage.Container == "" {
		missing = append(missing, "STORAGE_CONTAINER")
	}
	if c.Storage.Backend == storage.BackendFile && c.Storage.Dir == "" {
		missing = append(missing, "STORAGE_DIR")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%s required", strings.Join(missing, ", "))
	}
	return nil
}

func getenvDefault(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func getenvIntDefault(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		return def
	}
	return n
}

func getenvBoolDefault(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	switch v {
	case "1", "true":
		return true
	case "0", "false":
		return false
	default:
		return def
	}
}
