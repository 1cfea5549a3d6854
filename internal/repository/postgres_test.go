package repository

import (
	"strings"
	"testing"
)

func TestShortageError_NamesProduct(t *testing.T) {
	err := &ShortageError{ProductTitle: "Netflix Premium", Requested: 3, Available: 1}

	msg := err.Error()
	if !strings.Contains(msg, "Netflix Premium") {
		t.Fatalf("message %q must name the product", msg)
	}
	if !strings.Contains(msg, "requested 3") || !strings.Contains(msg, "available 1") {
		t.Fatalf("message %q must include requested and available counts", msg)
	}
}

func TestEscapeLike(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"netflix", "netflix"},
		{"100%", `100\%`},
		{"flash_sale", `flash\_sale`},
		{`a\b`, `a\\b`},
		{"%_", `\%\_`},
	}

	for _, tt := range tests {
		if got := escapeLike(tt.in); got != tt.want {
			t.Fatalf("escapeLike(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestLimitOffset(t *testing.T) {
	tests := []struct {
		name       string
		page       int
		perPage    int
		wantLimit  int
		wantOffset int
	}{
		{"defaults", 0, 0, defaultPerPage, 0},
		{"second page", 2, 10, 10, 10},
		{"per page capped", 1, 1000, maxPerPage, 0},
		{"negative page", -3, 5, 5, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			limit, offset := limitOffset(tt.page, tt.perPage)
			if limit != tt.wantLimit || offset != tt.wantOffset {
				t.Fatalf("limitOffset(%d, %d) = (%d, %d), want (%d, %d)",
					tt.page, tt.perPage, limit, offset, tt.wantLimit, tt.wantOffset)
			}
		})
	}
}
