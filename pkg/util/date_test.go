package util

import (
	"testing"
	"time"
)

func TestParseDate(t *testing.T) {
	cases := []struct {
		in   string
		want string
		ok   bool
	}{
		{"2025-06-02", "2025-06-02", true},
		{"20250602", "2025-06-02", true},
		{"", "", false},
		{"junk", "", false},
		{"2025/06/02", "", false},
	}
	for _, c := range cases {
		got, ok := ParseDate(c.in)
		if ok != c.ok {
			t.Fatalf("ParseDate(%q) ok = %v, want %v", c.in, ok, c.ok)
		}
		if ok && FormatDate(got) != c.want {
			t.Fatalf("ParseDate(%q) = %s, want %s", c.in, FormatDate(got), c.want)
		}
	}
}

func TestTruncateToDay(t *testing.T) {
	in := time.Date(2025, 6, 2, 14, 35, 12, 999, time.Local)
	got := TruncateToDay(in)
	if got.Hour() != 0 || got.Minute() != 0 || got.Second() != 0 || got.Nanosecond() != 0 {
		t.Fatalf("TruncateToDay left time-of-day: %v", got)
	}
	if !SameDay(in, got) {
		t.Fatal("TruncateToDay changed the day")
	}
}
