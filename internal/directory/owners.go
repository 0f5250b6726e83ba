package directory

import (
	"strings"
)

// OwnerKind is the principal type of an application owner, derived from the
// Graph @odata.type discriminator.
type OwnerKind string

const (
	OwnerKindUser             OwnerKind = "user"
	OwnerKindGroup            OwnerKind = "group"
	OwnerKindServicePrincipal OwnerKind = "servicePrincipal"
	OwnerKindUnknown          OwnerKind = "unknown"
)

const odataTypePrefix = "#microsoft.graph."

func (o DirectoryOwner) Kind() OwnerKind {
	t := strings.TrimSpace(o.ODataType)
	t = strings.TrimPrefix(t, odataTypePrefix)
	switch {
	case strings.EqualFold(t, string(OwnerKindUser)):
		return OwnerKindUser
	case strings.EqualFold(t, string(OwnerKindGroup)):
		return OwnerKindGroup
	case strings.EqualFold(t, string(OwnerKindServicePrincipal)):
		return OwnerKindServicePrincipal
	default:
		return OwnerKindUnknown
	}
}

// Email returns the mailbox to notify for this owner. Only users and groups
// have one; any other principal kind yields "".
func (o DirectoryOwner) Email() string {
	switch o.Kind() {
	case OwnerKindUser:
		if v := strings.TrimSpace(o.Mail); looksLikeEmail(v) {
			return v
		}
		if v := strings.TrimSpace(o.UserPrincipalName); looksLikeEmail(v) && !o.isGuest() {
			return v
		}
		return ""
	case OwnerKindGroup:
		if v := strings.TrimSpace(o.Mail); looksLikeEmail(v) {
			return v
		}
		return ""
	default:
		return ""
	}
}

func (o DirectoryOwner) Name() string {
	if v := strings.TrimSpace(o.DisplayName); v != "" {
		return v
	}
	if v := strings.TrimSpace(o.UserPrincipalName); v != "" {
		return v
	}
	return strings.TrimSpace(o.ID)
}

// isGuest reports a B2B guest. Guest principal names such as
// alice_example.com#EXT#@tenant.onmicrosoft.com are not mailboxes.
func (o DirectoryOwner) isGuest() bool {
	if strings.EqualFold(strings.TrimSpace(o.UserType), "Guest") {
		return true
	}
	return strings.Contains(strings.ToUpper(o.UserPrincipalName), "#EXT#")
}

func looksLikeEmail(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return false
	}
	if strings.Contains(s, " ") {
		return false
	}
	return strings.Contains(s, "@")
}
