package language_test

import (
	"testing"

	"scribe/internal/language"
)

func TestToISO2(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"ru", "ru"},
		{"rus", "ru"},
		{"Russian", "ru"},
		{"ENG", "en"},
		{"fre", "fr"},
		{"xx", "xx"},
		{"klingon", ""},
		{"", ""},
		{"  en  ", "en"},
	}
	for _, tc := range cases {
		if got := language.ToISO2(tc.in); got != tc.want {
			t.Errorf("ToISO2(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestDisplayName(t *testing.T) {
	if got := language.DisplayName("rus"); got != "Russian" {
		t.Fatalf("DisplayName(rus) = %q", got)
	}
	if got := language.DisplayName(""); got != "Unknown" {
		t.Fatalf("DisplayName(empty) = %q", got)
	}
	if got := language.DisplayName("qq"); got != "QQ" {
		t.Fatalf("DisplayName(qq) = %q", got)
	}
}
