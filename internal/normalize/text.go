package normalize

import "strings"

func Trim(value string) string {
	return strings.TrimSpace(value)
}

func Lower(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}

func EqualFoldTrimmed(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

// NonEmpty trims values and drops the blank ones.
func NonEmpty(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = Trim(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// UniqueFold trims values, drops blanks and removes case-insensitive
// duplicates. The first spelling seen wins.
func UniqueFold(values []string) []string {
	out := make([]string, 0, len(values))
	seen := make(map[string]struct{}, len(values))
	for _, v := range values {
		v = Trim(v)
		if v == "" {
			continue
		}
		key := Lower(v)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, v)
	}
	return out
}
