package inventory

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/open-sspm/credwatch/internal/directory"
	"github.com/open-sspm/credwatch/internal/metrics"
)

// Directory is the subset of the Graph client the collector reads from.
type Directory interface {
	ListApplications(ctx context.Context) ([]directory.Application, error)
	ListApplicationOwners(ctx context.Context, applicationID string) ([]directory.DirectoryOwner, error)
}

// Failure records a per-application error that did not stop collection.
type Failure struct {
	ApplicationID   string
	ApplicationName string
	Stage           string
	Err             error
}

type Result struct {
	Records      []Record
	Applications int
	// Skipped counts credential entries without a parseable end date.
	Skipped  int
	Failures []Failure
}

type Collector struct {
	Directory Directory
	Logger    *slog.Logger
}

func NewCollector(dir Directory, logger *slog.Logger) *Collector {
	return &Collector{Directory: dir, Logger: logger}
}

// Collect lists every application and flattens its credentials into records.
// Only the application listing itself is fatal; owner lookups and malformed
// credential entries are logged and skipped.
func (c *Collector) Collect(ctx context.Context) (Result, error) {
	logger := c.logger()

	apps, err := c.Directory.ListApplications(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("list applications: %w", err)
	}

	res := Result{Applications: len(apps)}
	for _, app := range apps {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if len(app.KeyCredentials) == 0 && len(app.PasswordCredentials) == 0 {
			continue
		}

		ownerNames, ownerEmails, err := c.owners(ctx, app)
		if err != nil {
			logger.Warn("application owner lookup failed",
				"application_id", app.ID,
				"application", app.DisplayName,
				"err", err,
			)
			metrics.CollectionFailuresTotal.WithLabelValues("owners").Inc()
			res.Failures = append(res.Failures, Failure{
				ApplicationID:   app.ID,
				ApplicationName: app.DisplayName,
				Stage:           "owners",
				Err:             err,
			})
			continue
		}

		for _, kc := range app.KeyCredentials {
			rec, ok := c.record(logger, app, kc.KeyID, kc.DisplayName, kc.EndDateTimeRaw, CredentialTypeCertificate, ownerNames, ownerEmails)
			if !ok {
				res.Skipped++
				continue
			}
			res.Records = append(res.Records, rec)
		}
		for _, pc := range app.PasswordCredentials {
			rec, ok := c.record(logger, app, pc.KeyID, pc.DisplayName, pc.EndDateTimeRaw, CredentialTypeSecret, ownerNames, ownerEmails)
			if !ok {
				res.Skipped++
				continue
			}
			res.Records = append(res.Records, rec)
		}
	}

	for _, rec := range res.Records {
		metrics.CredentialsCollectedTotal.WithLabelValues(string(rec.Type)).Inc()
	}
	return res, nil
}

func (c *Collector) owners(ctx context.Context, app directory.Application) ([]string, []string, error) {
	owners, err := c.Directory.ListApplicationOwners(ctx, app.ID)
	if err != nil {
		return nil, nil, err
	}
	names := make([]string, 0, len(owners))
	emails := make([]string, 0, len(owners))
	for _, o := range owners {
		if name := o.Name(); name != "" {
			names = append(names, name)
		}
		if email := o.Email(); email != "" {
			emails = append(emails, email)
		}
	}
	return names, emails, nil
}

func (c *Collector) record(logger *slog.Logger, app directory.Application, keyID, displayName, endRaw string, credType CredentialType, ownerNames, ownerEmails []string) (Record, bool) {
	expiry, ok := parseGraphTime(endRaw)
	if !ok {
		logger.Debug("credential has no usable expiry",
			"application", app.DisplayName,
			"credential_id", keyID,
			"type", string(credType),
		)
		return Record{}, false
	}

	name := app.DisplayName
	if strings.TrimSpace(name) == "" {
		name = app.AppID
	}
	rec, err := NewRecord(name, expiry, credType, ownerNames, ownerEmails)
	if err != nil {
		logger.Warn("skipping credential", "application_id", app.ID, "credential_id", keyID, "err", err)
		return Record{}, false
	}
	rec.ApplicationID = app.ID
	rec.AppID = app.AppID
	rec.CredentialID = keyID
	rec.CredentialName = strings.TrimSpace(displayName)
	return rec, true
}

func (c *Collector) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.Default()
}

func parseGraphTime(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
