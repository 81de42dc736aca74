// ABOUTME: Tests for relative time formatting
// ABOUTME: Covers each duration bucket and the nil-pointer fallback

package timeutil

import (
	"strings"
	"testing"
	"time"
)

func TestRelative(t *testing.T) {
	now := time.Now()
	tests := []struct {
		name string
		t    time.Time
		want string
	}{
		{"just now", now.Add(-30 * time.Second), "just now"},
		{"minutes", now.Add(-5 * time.Minute), "5m ago"},
		{"hours", now.Add(-3 * time.Hour), "3h ago"},
		{"days", now.Add(-48 * time.Hour), "2d ago"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Relative(tt.t); got != tt.want {
				t.Errorf("Relative() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRelativeOldDatesUseAbsoluteFormat(t *testing.T) {
	old := time.Date(2020, 3, 14, 12, 0, 0, 0, time.UTC)
	got := Relative(old)
	if !strings.HasPrefix(got, "2020-03-") {
		t.Errorf("old date: got %q, want absolute date", got)
	}
}

func TestRelativePtr(t *testing.T) {
	if got := RelativePtr(nil, "never"); got != "never" {
		t.Errorf("nil pointer: got %q, want %q", got, "never")
	}
	ts := time.Now().Add(-10 * time.Minute)
	if got := RelativePtr(&ts, "never"); got != "10m ago" {
		t.Errorf("got %q, want %q", got, "10m ago")
	}
}
