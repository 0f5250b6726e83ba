package expiry

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// DefaultThresholds are the days-remaining values that trigger an alert.
var DefaultThresholds = Thresholds{1, 2, 3, 4, 5, 6, 7, 15, 30, 89, 90}

// Thresholds is a sorted set of days-remaining values.
type Thresholds []int

// NewThresholds sorts and deduplicates values.
func NewThresholds(values ...int) Thresholds {
	out := slices.Clone(values)
	slices.Sort(out)
	return Thresholds(slices.Compact(out))
}

// ParseThresholds reads a comma separated list such as "1,2,3,7,30".
// An empty string yields DefaultThresholds. Negative values are accepted so
// overdue alerts can be opted into explicitly.
func ParseThresholds(raw string) (Thresholds, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return slices.Clone(DefaultThresholds), nil
	}
	var values []int
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("invalid alert threshold %q: %w", part, err)
		}
		values = append(values, n)
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("alert thresholds %q contain no values", raw)
	}
	return NewThresholds(values...), nil
}

func (t Thresholds) Contains(days int) bool {
	_, found := slices.BinarySearch(t, days)
	return found
}

func (t Thresholds) String() string {
	parts := make([]string, len(t))
	for i, v := range t {
		parts[i] = strconv.Itoa(v)
	}
	return strings.Join(parts, ",")
}
