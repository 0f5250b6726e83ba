package normalize

import (
	"slices"
	"testing"
)

func TestUniqueFold(t *testing.T) {
	t.Parallel()

	got := UniqueFold([]string{" Alice@Example.com", "", "bob@example.com", "alice@example.com ", "  "})
	want := []string{"Alice@Example.com", "bob@example.com"}
	if !slices.Equal(got, want) {
		t.Fatalf("UniqueFold() = %v, want %v", got, want)
	}
}

func TestNonEmpty(t *testing.T) {
	t.Parallel()

	got := NonEmpty([]string{" Alice ", "", "Alice", "\t"})
	want := []string{"Alice", "Alice"}
	if !slices.Equal(got, want) {
		t.Fatalf("NonEmpty() = %v, want %v", got, want)
	}
}

func TestEqualFoldTrimmed(t *testing.T) {
	t.Parallel()

	if !EqualFoldTrimmed(" Secret", "secret ") {
		t.Fatal("EqualFoldTrimmed() = false, want true")
	}
	if EqualFoldTrimmed("secret", "certificate") {
		t.Fatal("EqualFoldTrimmed() = true, want false")
	}
}
