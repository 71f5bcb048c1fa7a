package ledger

import (
	"errors"
	"testing"
)

func TestCategoryColor(t *testing.T) {
	cases := []struct {
		in   string
		want string
		err  error
	}{
		{"", "", nil},
		{" #ff5733 ", "#FF5733", nil},
		{"#00AA11", "#00AA11", nil},
		{"ff5733", "", ErrInvalidColor},
		{"#FF573", "", ErrInvalidColor},
		{"#GG5733", "", ErrInvalidColor},
	}
	for _, tc := range cases {
		got, err := CategoryColor(tc.in)
		if !errors.Is(err, tc.err) || got != tc.want {
			t.Fatalf("CategoryColor(%q) = %q, %v; want %q, %v", tc.in, got, err, tc.want, tc.err)
		}
	}
}

func TestCatalogName(t *testing.T) {
	if _, err := CatalogName("   "); !errors.Is(err, ErrEmptyCatalogName) {
		t.Fatalf("expected ErrEmptyCatalogName, got %v", err)
	}
	if got, err := CatalogName("  Corralon Sur "); err != nil || got != "Corralon Sur" {
		t.Fatalf("unexpected name %q %v", got, err)
	}
}
