// Package report writes the dated credential inventory snapshot and enforces
// its retention window.
package report

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strings"
	"time"

	"github.com/open-sspm/credwatch/internal/inventory"
)

const (
	DateLayout = "2006-01-02"

	ownerNameSeparator  = ", "
	ownerEmailSeparator = "; "
)

var header = []string{"Name", "ExpiryDate", "Type", "OwnerName", "OwnerEmail"}

// Row is one parsed snapshot line.
type Row struct {
	Name       string
	ExpiryDate string
	Type       string
	OwnerName  string
	OwnerEmail string
}

func RowOf(rec inventory.Record) Row {
	return Row{
		Name:       rec.ApplicationName,
		ExpiryDate: rec.ExpiryDate.Format(DateLayout),
		Type:       string(rec.Type),
		OwnerName:  strings.Join(rec.OwnerNames, ownerNameSeparator),
		OwnerEmail: strings.Join(rec.OwnerEmails, ownerEmailSeparator),
	}
}

// Encode renders records as CSV with a header line.
func Encode(records []inventory.Record) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(header); err != nil {
		return nil, err
	}
	for _, rec := range records {
		row := RowOf(rec)
		if err := w.Write([]string{row.Name, row.ExpiryDate, row.Type, row.OwnerName, row.OwnerEmail}); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Decode parses a snapshot produced by Encode.
func Decode(data []byte) ([]Row, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = len(header)
	lines, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse snapshot: %w", err)
	}
	if len(lines) == 0 {
		return nil, fmt.Errorf("parse snapshot: missing header")
	}
	for i, col := range header {
		if lines[0][i] != col {
			return nil, fmt.Errorf("parse snapshot: column %d is %q, want %q", i, lines[0][i], col)
		}
	}

	rows := make([]Row, 0, len(lines)-1)
	for n, line := range lines[1:] {
		if _, err := time.Parse(DateLayout, line[1]); err != nil {
			return nil, fmt.Errorf("parse snapshot: line %d: invalid expiry date %q", n+2, line[1])
		}
		rows = append(rows, Row{
			Name:       line[0],
			ExpiryDate: line[1],
			Type:       line[2],
			OwnerName:  line[3],
			OwnerEmail: line[4],
		})
	}
	return rows, nil
}

// Record rebuilds a record from a snapshot row. Owner lists are split on the
// separators Encode joined them with.
func (r Row) Record() (inventory.Record, error) {
	expiry, err := time.Parse(DateLayout, r.ExpiryDate)
	if err != nil {
		return inventory.Record{}, err
	}
	credType, err := inventory.ParseCredentialType(r.Type)
	if err != nil {
		return inventory.Record{}, err
	}
	return inventory.NewRecord(r.Name, expiry, credType, splitNonEmpty(r.OwnerName, ownerNameSeparator), splitNonEmpty(r.OwnerEmail, ownerEmailSeparator))
}

// SnapshotKey names the snapshot for a run day: <YYYY-MM-DD>-<dataset>.csv.
func SnapshotKey(runDate time.Time, dataset string) string {
	return inventory.DateOf(runDate).Format(DateLayout) + "-" + dataset + ".csv"
}

// IsSnapshotKey reports whether key is exactly a snapshot of dataset: a valid
// date followed by "-<dataset>.csv". Keys of other datasets sharing the suffix
// do not match.
func IsSnapshotKey(key, dataset string) bool {
	if len(key) <= len(DateLayout) {
		return false
	}
	if _, err := time.Parse(DateLayout, key[:len(DateLayout)]); err != nil {
		return false
	}
	return key[len(DateLayout):] == "-"+dataset+".csv"
}

func splitNonEmpty(s, sep string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return strings.Split(s, sep)
}
