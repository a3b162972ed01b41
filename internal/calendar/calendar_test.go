package calendar

import (
	"context"
	"errors"
	"testing"
	"time"

	"StockPulse/pkg/cache"
	"StockPulse/pkg/logger"
)

type fixedClock struct {
	now time.Time
}

func (f *fixedClock) Now() time.Time { return f.now }

type fakeSource struct {
	days  []time.Time
	err   error
	calls int
}

func (f *fakeSource) FetchTradingDays(ctx context.Context, startYear, endYear int) ([]time.Time, error) {
	f.calls++
	return f.days, f.err
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.Local)
}

func testConfig() Config {
	return Config{StartYear: 2025, EndYear: 2025, RefreshTTL: 7 * 24 * time.Hour}
}

// Mon 2025-06-02 .. Fri 2025-06-06, with Wednesday closed.
func weekWithHoliday() []time.Time {
	return []time.Time{
		day(2025, 6, 2),
		day(2025, 6, 3),
		day(2025, 6, 5),
		day(2025, 6, 6),
		day(2025, 6, 9),
	}
}

func TestTradingDayQueries(t *testing.T) {
	ctx := context.Background()
	clock := &fixedClock{now: time.Date(2025, 6, 2, 10, 0, 0, 0, time.Local)}
	cal := New(testConfig(), &fakeSource{days: weekWithHoliday()}, nil, clock, logger.Nop())
	if err := cal.Refresh(ctx); err != nil {
		t.Fatal(err)
	}

	if !cal.IsTradingDay(ctx, day(2025, 6, 3)) {
		t.Error("2025-06-03 should be a trading day")
	}
	if cal.IsTradingDay(ctx, day(2025, 6, 4)) {
		t.Error("2025-06-04 is closed")
	}
	if cal.IsTradingDay(ctx, day(2025, 6, 7)) {
		t.Error("saturday is not a trading day")
	}

	next, err := cal.NextTradingDay(ctx, day(2025, 6, 3), 1)
	if err != nil {
		t.Fatal(err)
	}
	if !next.Equal(day(2025, 6, 5)) {
		t.Errorf("next after holiday = %v, want 2025-06-05", next)
	}

	prev, err := cal.PreviousTradingDay(ctx, day(2025, 6, 5), 1)
	if err != nil {
		t.Fatal(err)
	}
	if !prev.Equal(day(2025, 6, 3)) {
		t.Errorf("prev across holiday = %v, want 2025-06-03", prev)
	}

	// next and previous round-trip for interior days
	for _, d := range weekWithHoliday()[1:4] {
		n, err := cal.NextTradingDay(ctx, d, 1)
		if err != nil {
			t.Fatal(err)
		}
		p, err := cal.PreviousTradingDay(ctx, n, 1)
		if err != nil {
			t.Fatal(err)
		}
		if !p.Equal(d) {
			t.Errorf("round-trip %v -> %v -> %v", d, n, p)
		}
	}
}

func TestCurrentTradingDay(t *testing.T) {
	ctx := context.Background()
	clock := &fixedClock{now: time.Date(2025, 6, 2, 10, 0, 0, 0, time.Local)}
	cal := New(testConfig(), &fakeSource{days: weekWithHoliday()}, nil, clock, logger.Nop())
	if err := cal.Refresh(ctx); err != nil {
		t.Fatal(err)
	}

	got, err := cal.CurrentTradingDay(ctx, day(2025, 6, 3))
	if err != nil {
		t.Fatal(err)
	}
	if !got.Equal(day(2025, 6, 3)) {
		t.Errorf("trading day maps to itself, got %v", got)
	}

	got, err = cal.CurrentTradingDay(ctx, day(2025, 6, 4))
	if err != nil {
		t.Fatal(err)
	}
	if !got.Equal(day(2025, 6, 3)) {
		t.Errorf("holiday maps to previous trading day, got %v", got)
	}
}

func TestRange(t *testing.T) {
	ctx := context.Background()
	clock := &fixedClock{now: time.Date(2025, 6, 2, 10, 0, 0, 0, time.Local)}
	cal := New(testConfig(), &fakeSource{days: weekWithHoliday()}, nil, clock, logger.Nop())
	if err := cal.Refresh(ctx); err != nil {
		t.Fatal(err)
	}

	got := cal.Range(ctx, day(2025, 6, 3), day(2025, 6, 6))
	if len(got) != 3 {
		t.Fatalf("range length = %d, want 3", len(got))
	}
	if !got[0].Equal(day(2025, 6, 3)) || !got[2].Equal(day(2025, 6, 6)) {
		t.Errorf("range bounds wrong: %v", got)
	}
}

func TestWeekdayFallback(t *testing.T) {
	ctx := context.Background()
	clock := &fixedClock{now: time.Date(2025, 6, 2, 10, 0, 0, 0, time.Local)}
	cal := New(testConfig(), &fakeSource{err: errors.New("upstream down")}, nil, clock, logger.Nop())
	if err := cal.Refresh(ctx); err != nil {
		t.Fatal(err)
	}

	if !cal.IsFallback() {
		t.Fatal("expected weekday fallback")
	}
	if !cal.IsTradingDay(ctx, day(2025, 6, 4)) {
		t.Error("fallback treats weekdays as trading days")
	}
	if cal.IsTradingDay(ctx, day(2025, 6, 7)) {
		t.Error("fallback excludes weekends")
	}
}

func TestPersistedCalendarSurvivesRestart(t *testing.T) {
	ctx := context.Background()
	clock := &fixedClock{now: time.Date(2025, 6, 2, 10, 0, 0, 0, time.Local)}
	store := cache.NewMemoryStore()
	src := &fakeSource{days: weekWithHoliday()}

	cal := New(testConfig(), src, store, clock, logger.Nop())
	if err := cal.Refresh(ctx); err != nil {
		t.Fatal(err)
	}
	if src.calls != 1 {
		t.Fatalf("source calls = %d, want 1", src.calls)
	}

	// A new instance with the same store should not hit the source.
	cal2 := New(testConfig(), src, store, clock, logger.Nop())
	if err := cal2.Refresh(ctx); err != nil {
		t.Fatal(err)
	}
	if src.calls != 1 {
		t.Fatalf("source calls after restart = %d, want 1", src.calls)
	}
	if !cal2.IsTradingDay(ctx, day(2025, 6, 3)) {
		t.Error("restarted calendar lost trading days")
	}
}

func TestStaleCacheTriggersRefetch(t *testing.T) {
	ctx := context.Background()
	clock := &fixedClock{now: time.Date(2025, 6, 2, 10, 0, 0, 0, time.Local)}
	store := cache.NewMemoryStore()
	src := &fakeSource{days: weekWithHoliday()}

	cal := New(testConfig(), src, store, clock, logger.Nop())
	if err := cal.Refresh(ctx); err != nil {
		t.Fatal(err)
	}

	clock.now = clock.now.Add(8 * 24 * time.Hour)
	cal2 := New(testConfig(), src, store, clock, logger.Nop())
	if err := cal2.Refresh(ctx); err != nil {
		t.Fatal(err)
	}
	if src.calls != 2 {
		t.Fatalf("source calls after stale cache = %d, want 2", src.calls)
	}
}

func TestIsTradingTime(t *testing.T) {
	ctx := context.Background()
	clock := &fixedClock{now: time.Date(2025, 6, 2, 10, 0, 0, 0, time.Local)}
	cal := New(testConfig(), &fakeSource{days: weekWithHoliday()}, nil, clock, logger.Nop())
	if err := cal.Refresh(ctx); err != nil {
		t.Fatal(err)
	}

	cases := []struct {
		at   time.Time
		want bool
	}{
		{time.Date(2025, 6, 2, 9, 29, 0, 0, time.Local), false},
		{time.Date(2025, 6, 2, 9, 30, 0, 0, time.Local), true},
		{time.Date(2025, 6, 2, 11, 30, 0, 0, time.Local), true},
		{time.Date(2025, 6, 2, 12, 0, 0, 0, time.Local), false},
		{time.Date(2025, 6, 2, 13, 0, 0, 0, time.Local), true},
		{time.Date(2025, 6, 2, 15, 0, 0, 0, time.Local), true},
		{time.Date(2025, 6, 2, 15, 1, 0, 0, time.Local), false},
		{time.Date(2025, 6, 4, 10, 0, 0, 0, time.Local), false}, // holiday
	}
	for _, c := range cases {
		if got := cal.IsTradingTime(ctx, c.at); got != c.want {
			t.Errorf("IsTradingTime(%v) = %v, want %v", c.at, got, c.want)
		}
	}
}

func TestNextTradingHoursStart(t *testing.T) {
	ctx := context.Background()
	clock := &fixedClock{now: time.Date(2025, 6, 2, 8, 0, 0, 0, time.Local)}
	cal := New(testConfig(), &fakeSource{days: weekWithHoliday()}, nil, clock, logger.Nop())
	if err := cal.Refresh(ctx); err != nil {
		t.Fatal(err)
	}

	cases := []struct {
		name string
		at   time.Time
		want time.Time
	}{
		{
			name: "before open on trading day",
			at:   time.Date(2025, 6, 2, 8, 0, 0, 0, time.Local),
			want: time.Date(2025, 6, 2, 9, 30, 0, 0, time.Local),
		},
		{
			name: "after close rolls to next day",
			at:   time.Date(2025, 6, 2, 15, 30, 0, 0, time.Local),
			want: time.Date(2025, 6, 3, 9, 30, 0, 0, time.Local),
		},
		{
			name: "holiday rolls past closed day",
			at:   time.Date(2025, 6, 4, 8, 0, 0, 0, time.Local),
			want: time.Date(2025, 6, 5, 9, 30, 0, 0, time.Local),
		},
		{
			name: "weekend rolls to monday",
			at:   time.Date(2025, 6, 7, 12, 0, 0, 0, time.Local),
			want: time.Date(2025, 6, 9, 9, 30, 0, 0, time.Local),
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := cal.NextTradingHoursStart(ctx, tc.at)
			if err != nil {
				t.Fatal(err)
			}
			if !got.Equal(tc.want) {
				t.Errorf("next session start = %v, want %v", got, tc.want)
			}
		})
	}
}
