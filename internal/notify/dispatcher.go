// Package notify renders expiry alerts and hands them to a mail transport.
package notify

import (
	"context"
	"log/slog"
	"strings"

	"golang.org/x/time/rate"

	"github.com/open-sspm/credwatch/internal/expiry"
	"github.com/open-sspm/credwatch/internal/inventory"
	"github.com/open-sspm/credwatch/internal/metrics"
	"github.com/open-sspm/credwatch/internal/normalize"
)

// Summary counts dispatch outcomes for one run.
type Summary struct {
	Sent    int
	Skipped int
	Failed  int
}

type Dispatcher struct {
	Mailer      Mailer
	FromAddress string
	FromName    string
	// FallbackRecipient, when set, receives alerts for credentials without
	// any owner mailbox. Empty keeps the skip-with-warning behavior.
	FallbackRecipient string
	// Limiter paces submissions; nil sends as fast as the transport accepts.
	Limiter *rate.Limiter
	Logger  *slog.Logger
}

// Recipients returns the owner emails of rec, trimmed, with empty entries
// removed and duplicates dropped.
func Recipients(rec inventory.Record) []string {
	return normalize.UniqueFold(rec.OwnerEmails)
}

// Dispatch sends one message per event. A failure on one event never stops
// the others; only context cancellation ends the loop early.
func (d *Dispatcher) Dispatch(ctx context.Context, events []expiry.Event) Summary {
	logger := d.logger()
	var sum Summary

	for _, ev := range events {
		if ctx.Err() != nil {
			break
		}
		attrs := []any{
			"application", ev.Record.ApplicationName,
			"type", string(ev.Record.Type),
			"credential_id", ev.Record.CredentialID,
			"days_remaining", ev.DaysRemaining,
		}

		to := Recipients(ev.Record)
		if len(to) == 0 {
			if fb := strings.TrimSpace(d.FallbackRecipient); fb != "" {
				logger.Info("no owner email, using fallback recipient", attrs...)
				to = []string{fb}
			} else {
				sum.Skipped++
				metrics.NotificationsTotal.WithLabelValues("skipped").Inc()
				logger.Warn("no owner email resolvable, notification skipped", attrs...)
				continue
			}
		}

		subject, body, err := Render(ev)
		if err != nil {
			sum.Failed++
			metrics.NotificationsTotal.WithLabelValues("failed").Inc()
			logger.Error("notification render failed", append(attrs, "err", err)...)
			continue
		}

		if d.Limiter != nil {
			if err := d.Limiter.Wait(ctx); err != nil {
				break
			}
		}

		err = d.Mailer.Send(ctx, Message{
			FromAddress: d.FromAddress,
			FromName:    d.FromName,
			To:          to,
			Subject:     subject,
			HTMLBody:    body,
		})
		if err != nil {
			sum.Failed++
			metrics.NotificationsTotal.WithLabelValues("failed").Inc()
			logger.Error("notification send failed", append(attrs, "recipients", len(to), "err", err)...)
			continue
		}
		sum.Sent++
		metrics.NotificationsTotal.WithLabelValues("sent").Inc()
		logger.Info("notification sent", append(attrs, "recipients", len(to))...)
	}
	return sum
}

func (d *Dispatcher) logger() *slog.Logger {
	if d.Logger != nil {
		return d.Logger
	}
	return slog.Default()
}
