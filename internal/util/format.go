package util //nolint:revive // package name util hosts shared formatting helpers used across CLI output

import "time"

// FormatDuration formats a time.Duration for display, handling edge cases.
// Returns "n/a" for zero or negative durations, truncates to milliseconds
// for readability.
func FormatDuration(d time.Duration) string {
	switch {
	case d <= 0:
		return "n/a"
	case d < time.Millisecond:
		return d.String()
	default:
		return d.Truncate(time.Millisecond).String()
	}
}

// FormatAge renders how long ago t was, relative to now.
func FormatAge(t, now time.Time) string {
	if t.IsZero() || now.Before(t) {
		return "n/a"
	}
	return FormatDuration(now.Sub(t))
}
