package storage_test

import (
	"testing"

	"scribe/internal/storage"
)

func TestNormalizeKey(t *testing.T) {
	cases := []struct {
		bucket string
		in     string
		want   string
	}{
		{"recordings", "recordings/meeting-123/user-456.ogg", "meeting-123/user-456.ogg"},
		{"recordings", "meeting-123/user-456.ogg", "meeting-123/user-456.ogg"},
		{"recordings", "recordings-archive/user.ogg", "recordings-archive/user.ogg"},
		{"recordings", "recordings/", ""},
		{"other", "recordings/user.ogg", "recordings/user.ogg"},
	}
	for _, tc := range cases {
		if got := storage.NormalizeKey(tc.bucket, tc.in); got != tc.want {
			t.Errorf("NormalizeKey(%q, %q) = %q, want %q", tc.bucket, tc.in, got, tc.want)
		}
	}
}
