// Package inventory turns directory application registrations into flat,
// per-credential records.
package inventory

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/open-sspm/credwatch/internal/normalize"
)

// CredentialType distinguishes certificate (key) credentials from client
// secrets (password credentials).
type CredentialType string

const (
	CredentialTypeCertificate CredentialType = "Certificate"
	CredentialTypeSecret      CredentialType = "Secret"
)

func (t CredentialType) Valid() bool {
	return t == CredentialTypeCertificate || t == CredentialTypeSecret
}

// ParseCredentialType accepts the exported type names case-insensitively.
func ParseCredentialType(raw string) (CredentialType, error) {
	switch normalize.Lower(raw) {
	case "certificate":
		return CredentialTypeCertificate, nil
	case "secret":
		return CredentialTypeSecret, nil
	default:
		return "", fmt.Errorf("unknown credential type %q", raw)
	}
}

var (
	ErrMissingApplicationName = errors.New("application name is required")
	ErrMissingExpiry          = errors.New("expiry date is required")
	ErrInvalidCredentialType  = errors.New("credential type must be Certificate or Secret")
)

// Record is one credential of one application. ExpiryDate is truncated to
// a UTC calendar day.
type Record struct {
	ApplicationName string
	ExpiryDate      time.Time
	Type            CredentialType
	OwnerNames      []string
	OwnerEmails     []string

	ApplicationID  string
	AppID          string
	CredentialID   string
	CredentialName string
}

// NewRecord validates the mandatory fields and normalizes owner data.
// Owner emails are trimmed and deduplicated case-insensitively, keeping the
// first spelling seen.
func NewRecord(applicationName string, expiry time.Time, credType CredentialType, ownerNames, ownerEmails []string) (Record, error) {
	applicationName = strings.TrimSpace(applicationName)
	if applicationName == "" {
		return Record{}, ErrMissingApplicationName
	}
	if expiry.IsZero() {
		return Record{}, ErrMissingExpiry
	}
	if !credType.Valid() {
		return Record{}, ErrInvalidCredentialType
	}

	return Record{
		ApplicationName: applicationName,
		ExpiryDate:      DateOf(expiry),
		Type:            credType,
		OwnerNames:      normalize.NonEmpty(ownerNames),
		OwnerEmails:     normalize.UniqueFold(ownerEmails),
	}, nil
}

// HasOwnerEmail reports whether the record can ever produce a notification.
func (r Record) HasOwnerEmail() bool {
	return len(r.OwnerEmails) > 0
}

// DateOf truncates t to midnight UTC of its UTC calendar day.
func DateOf(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
