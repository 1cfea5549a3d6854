package validation

import "testing"

func TestIsValidEmail(t *testing.T) {
	tests := []struct {
		email string
		want  bool
	}{
		{"user@example.com", true},
		{"a.b-c@sub.domain.org", true},
		{"", false},
		{"no-at-sign", false},
		{"two@@example.com", false},
		{"@example.com", false},
		{"user@", false},
		{"user@nodot", false},
		{"user@domain.", false},
		{"user name@example.com", false},
	}

	for _, tt := range tests {
		if got := IsValidEmail(tt.email); got != tt.want {
			t.Errorf("IsValidEmail(%q) = %v, want %v", tt.email, got, tt.want)
		}
	}
}

func TestIsValidVoucherCode(t *testing.T) {
	tests := []struct {
		code string
		want bool
	}{
		{"SALE", true},
		{"SUMMER-2026", true},
		{"abc1", true},
		{"ab", false},
		{"WITH SPACE", false},
		{"КОД-2026", false},
		{"way-too-long-voucher-code-over-32-chars", false},
	}

	for _, tt := range tests {
		if got := IsValidVoucherCode(tt.code); got != tt.want {
			t.Errorf("IsValidVoucherCode(%q) = %v, want %v", tt.code, got, tt.want)
		}
	}
}

func TestNormalizeCode(t *testing.T) {
	if got := NormalizeCode("  as-1a2b3c  "); got != "AS-1A2B3C" {
		t.Fatalf("NormalizeCode = %q, want AS-1A2B3C", got)
	}
}

func TestIsValidSlug(t *testing.T) {
	tests := []struct {
		slug string
		want bool
	}{
		{"netflix-premium", true},
		{"spotify2", true},
		{"", false},
		{"-leading", false},
		{"trailing-", false},
		{"UpperCase", false},
		{"with space", false},
	}

	for _, tt := range tests {
		if got := IsValidSlug(tt.slug); got != tt.want {
			t.Errorf("IsValidSlug(%q) = %v, want %v", tt.slug, got, tt.want)
		}
	}
}

func TestIsValidRating(t *testing.T) {
	for rating, want := range map[int]bool{0: false, 1: true, 5: true, 6: false} {
		if got := IsValidRating(rating); got != want {
			t.Errorf("IsValidRating(%d) = %v, want %v", rating, got, want)
		}
	}
}
