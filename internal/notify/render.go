package notify

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	g "maragu.dev/gomponents"
	h "maragu.dev/gomponents/html"

	"github.com/open-sspm/credwatch/internal/expiry"
)

const dateLayout = "2006-01-02"

// Subject encodes type, application and days remaining so recipients can
// triage from the inbox.
func Subject(ev expiry.Event) string {
	return fmt.Sprintf("%s Expiry Alert: %s - %d Days Remaining", ev.Record.Type, ev.Record.ApplicationName, ev.DaysRemaining)
}

// Render returns the subject and a self-contained HTML body for ev.
func Render(ev expiry.Event) (string, string, error) {
	var buf bytes.Buffer
	if err := alertDocument(ev).Render(&buf); err != nil {
		return "", "", fmt.Errorf("render notification: %w", err)
	}
	return Subject(ev), buf.String(), nil
}

func alertDocument(ev expiry.Event) g.Node {
	rec := ev.Record
	owners := strings.Join(rec.OwnerNames, ", ")
	if owners == "" {
		owners = "No owners assigned"
	}
	title := Subject(ev)

	return h.Doctype(
		h.HTML(
			h.Lang("en"),
			h.Head(
				h.Meta(h.Charset("utf-8")),
				h.TitleEl(g.Text(title)),
			),
			h.Body(
				h.Style("font-family:Segoe UI,Arial,sans-serif;color:#1f2328;margin:0;padding:24px;"),
				h.H2(
					h.Style("margin:0 0 12px 0;color:"+urgencyColor(ev.DaysRemaining)+";"),
					g.Textf("%s expiring in %s", rec.Type, daysPhrase(ev.DaysRemaining)),
				),
				h.P(
					g.Text("The following application credential is approaching its expiry date. "),
					g.Text("Please rotate it before it expires to avoid an outage."),
				),
				h.Table(
					h.Style("border-collapse:collapse;margin-top:12px;"),
					h.TBody(
						detailRow("Application", rec.ApplicationName),
						detailRow("Credential type", string(rec.Type)),
						g.If(rec.CredentialName != "", detailRow("Credential name", rec.CredentialName)),
						detailRow("Expiry date", rec.ExpiryDate.Format(dateLayout)),
						detailRow("Days remaining", strconv.Itoa(ev.DaysRemaining)),
						detailRow("Owners", owners),
						g.If(rec.AppID != "", detailRow("Application (client) ID", rec.AppID)),
					),
				),
				h.P(
					h.Style("margin-top:24px;font-size:12px;color:#57606a;"),
					g.Textf("You are receiving this message because you are listed as an owner of %s.", rec.ApplicationName),
				),
			),
		),
	)
}

func detailRow(label, value string) g.Node {
	cell := "padding:6px 12px;border:1px solid #d0d7de;text-align:left;"
	return h.Tr(
		h.Th(h.Style(cell+"background:#f6f8fa;"), g.Text(label)),
		h.Td(h.Style(cell), g.Text(value)),
	)
}

func daysPhrase(days int) string {
	if days == 1 {
		return "1 day"
	}
	return strconv.Itoa(days) + " days"
}

func urgencyColor(days int) string {
	switch {
	case days <= 7:
		return "#cf222e"
	case days <= 30:
		return "#bf8700"
	default:
		return "#0969da"
	}
}
