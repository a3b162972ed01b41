package util

import (
	"time"
)

const (
	// DateLayout is the canonical day format used across the service.
	DateLayout = "2006-01-02"

	// CompactDateLayout is the digits-only day format used by upstream feeds.
	CompactDateLayout = "20060102"
)

// ParseDate parses a day string in either the canonical or compact
// layout. Returns (t, true) if any worked.
func ParseDate(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(DateLayout, s); err == nil {
		return t, true
	}
	if t, err := time.Parse(CompactDateLayout, s); err == nil {
		return t, true
	}
	return time.Time{}, false
}

// ParseDateDefault parses a day string or returns def if empty/invalid.
func ParseDateDefault(s string, def time.Time) time.Time {
	if t, ok := ParseDate(s); ok {
		return t
	}
	return def
}

// FormatDate renders a time as a canonical day string.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// TruncateToDay drops the time-of-day component, keeping the location.
func TruncateToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// SameDay reports whether two times fall on the same calendar day.
func SameDay(a, b time.Time) bool {
	return a.Year() == b.Year() && a.YearDay() == b.YearDay()
}
