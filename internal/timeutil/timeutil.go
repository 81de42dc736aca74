// ABOUTME: Time formatting helpers for CLI output
// ABOUTME: Renders timestamps as compact relative durations like "3h ago"

package timeutil

import (
	"fmt"
	"time"
)

// Relative renders t as a compact distance from now.
func Relative(t time.Time) string {
	d := time.Since(t)
	switch {
	case d < 0:
		return t.Format("2006-01-02")
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	case d < 30*24*time.Hour:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	default:
		return t.Format("2006-01-02")
	}
}

// RelativePtr renders an optional timestamp, using fallback when nil.
func RelativePtr(t *time.Time, fallback string) string {
	if t == nil {
		return fallback
	}
	return Relative(*t)
}
