package fetch

import (
	"context"
	"errors"
	"testing"
	"time"

	"StockPulse/internal/calendar"
	"StockPulse/internal/domain/models"
	domrepo "StockPulse/internal/domain/repository"
	"StockPulse/internal/repository"
	"StockPulse/pkg/logger"
	"StockPulse/pkg/retry"
)

type fixedClock struct {
	now time.Time
}

func (f *fixedClock) Now() time.Time { return f.now }

type fakeProvider struct {
	name  string
	bars  []models.Bar
	err   error
	calls int
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) FetchDaily(ctx context.Context, symbol string, from, to time.Time) ([]models.Bar, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	var out []models.Bar
	for _, b := range f.bars {
		if !b.Date.Before(from) && !b.Date.After(to) {
			out = append(out, b)
		}
	}
	return out, nil
}

type nopMetrics struct{}

func (nopMetrics) RecordFetch(string, string)       {}
func (nopMetrics) RecordCacheLookup(string, string) {}
func (nopMetrics) RecordSignal(string)              {}
func (nopMetrics) RecordError(string)               {}
func (nopMetrics) RecordProbability(string, float64) {}
func (nopMetrics) RecordLatency(string, float64)    {}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.Local)
}

// tradingWeek returns Mon 2025-06-02 .. Fri 2025-06-06 as trading days.
func tradingWeek(t *testing.T, clock calendar.Clock) *calendar.Calendar {
	t.Helper()
	days := []time.Time{
		day(2025, 6, 2), day(2025, 6, 3), day(2025, 6, 4), day(2025, 6, 5), day(2025, 6, 6),
	}
	cal := calendar.New(
		calendar.Config{StartYear: 2025, EndYear: 2025, RefreshTTL: 7 * 24 * time.Hour},
		staticSource(days), nil, clock, logger.Nop(),
	)
	if err := cal.Refresh(context.Background()); err != nil {
		t.Fatal(err)
	}
	return cal
}

type staticSource []time.Time

func (s staticSource) FetchTradingDays(context.Context, int, int) ([]time.Time, error) {
	return s, nil
}

func history(symbol string, end time.Time, n int, updated time.Time) []models.Bar {
	bars := make([]models.Bar, n)
	for i := range bars {
		d := end.AddDate(0, 0, i-n+1)
		bars[i] = models.Bar{
			Symbol:     symbol,
			Date:       d,
			Open:       10,
			High:       11,
			Low:        9,
			Close:      10,
			Volume:     1000,
			UpdateTime: updated,
		}
	}
	return bars
}

func newService(store *repository.MemoryBarStore, primary, secondary domrepo.BarProvider, cal *calendar.Calendar, clock calendar.Clock) *Service {
	cfg := Config{
		Epoch:         day(2010, 1, 1),
		TrailingYears: 3,
		Retry:         retry.Policy{MaxAttempts: 3, Delay: time.Millisecond},
	}
	return New(cfg, store, primary, secondary, cal, clock, nopMetrics{}, logger.Nop())
}

func TestStoreHitWhenCurrent(t *testing.T) {
	ctx := context.Background()
	// after close on Tuesday, store ends at Tuesday and was updated after close
	clock := &fixedClock{now: time.Date(2025, 6, 3, 16, 0, 0, 0, time.Local)}
	cal := tradingWeek(t, clock)

	store := repository.NewMemoryBarStore()
	updated := time.Date(2025, 6, 3, 15, 10, 0, 0, time.Local)
	if err := store.Upsert(ctx, history("600000", day(2025, 6, 3), 150, updated)); err != nil {
		t.Fatal(err)
	}

	primary := &fakeProvider{name: "primary"}
	secondary := &fakeProvider{name: "secondary"}
	svc := newService(store, primary, secondary, cal, clock)

	res, err := svc.Bars(ctx, "600000")
	if err != nil {
		t.Fatal(err)
	}
	if res.Source != models.SourceStore {
		t.Fatalf("source = %s, want store", res.Source)
	}
	if len(res.Bars) != 150 {
		t.Fatalf("rows = %d, want 150", len(res.Bars))
	}
	if primary.calls != 0 {
		t.Errorf("primary was called %d times for a current store", primary.calls)
	}
}

func TestStaleStoreFallsToPrimary(t *testing.T) {
	ctx := context.Background()
	clock := &fixedClock{now: time.Date(2025, 6, 4, 16, 0, 0, 0, time.Local)}
	cal := tradingWeek(t, clock)

	store := repository.NewMemoryBarStore()
	// store ends the day before the current trading day
	updated := time.Date(2025, 6, 3, 15, 10, 0, 0, time.Local)
	if err := store.Upsert(ctx, history("600000", day(2025, 6, 3), 150, updated)); err != nil {
		t.Fatal(err)
	}

	primary := &fakeProvider{name: "primary", bars: history("600000", day(2025, 6, 4), 151, clock.now)}
	secondary := &fakeProvider{name: "secondary"}
	svc := newService(store, primary, secondary, cal, clock)

	res, err := svc.Bars(ctx, "600000")
	if err != nil {
		t.Fatal(err)
	}
	if res.Source != models.SourcePrimary {
		t.Fatalf("source = %s, want primary", res.Source)
	}
	if primary.calls != 1 {
		t.Errorf("primary calls = %d, want 1", primary.calls)
	}

	// provider pull must be written back to the store
	latest, found, err := store.Latest(ctx, "600000")
	if err != nil || !found {
		t.Fatalf("store latest missing after primary fetch: %v", err)
	}
	if !latest.Date.Equal(day(2025, 6, 4)) {
		t.Errorf("store latest = %v, want 2025-06-04", latest.Date)
	}
}

func TestPrimaryFailureFallsToSecondary(t *testing.T) {
	ctx := context.Background()
	clock := &fixedClock{now: time.Date(2025, 6, 4, 16, 0, 0, 0, time.Local)}
	cal := tradingWeek(t, clock)

	store := repository.NewMemoryBarStore()
	primary := &fakeProvider{name: "primary", err: errors.New("upstream 502")}
	secondary := &fakeProvider{name: "secondary", bars: history("600000", day(2025, 6, 4), 120, clock.now)}
	svc := newService(store, primary, secondary, cal, clock)

	res, err := svc.Bars(ctx, "600000")
	if err != nil {
		t.Fatal(err)
	}
	if res.Source != models.SourceSecondary {
		t.Fatalf("source = %s, want secondary", res.Source)
	}
	if len(res.Bars) != 120 {
		t.Fatalf("rows = %d, want 120", len(res.Bars))
	}
}

func TestTransientPrimaryErrorIsRetried(t *testing.T) {
	ctx := context.Background()
	clock := &fixedClock{now: time.Date(2025, 6, 4, 16, 0, 0, 0, time.Local)}
	cal := tradingWeek(t, clock)

	store := repository.NewMemoryBarStore()
	primary := &flakyProvider{
		failures: 2,
		bars:     history("600000", day(2025, 6, 4), 151, clock.now),
	}
	secondary := &fakeProvider{name: "secondary"}
	svc := newService(store, primary, secondary, cal, clock)

	res, err := svc.Bars(ctx, "600000")
	if err != nil {
		t.Fatal(err)
	}
	if res.Source != models.SourcePrimary {
		t.Fatalf("source = %s, want primary after retries", res.Source)
	}
	if primary.calls != 3 {
		t.Errorf("primary calls = %d, want 3", primary.calls)
	}
}

type flakyProvider struct {
	failures int
	bars     []models.Bar
	calls    int
}

func (f *flakyProvider) Name() string { return "primary" }

func (f *flakyProvider) FetchDaily(ctx context.Context, symbol string, from, to time.Time) ([]models.Bar, error) {
	f.calls++
	if f.calls <= f.failures {
		return nil, retry.Mark(errors.New("connection reset"))
	}
	return f.bars, nil
}

func TestBothSourcesFailYieldsEmptyResult(t *testing.T) {
	ctx := context.Background()
	clock := &fixedClock{now: time.Date(2025, 6, 4, 16, 0, 0, 0, time.Local)}
	cal := tradingWeek(t, clock)

	store := repository.NewMemoryBarStore()
	primary := &fakeProvider{name: "primary", err: errors.New("down")}
	secondary := &fakeProvider{name: "secondary", err: errors.New("down")}
	svc := newService(store, primary, secondary, cal, clock)

	res, err := svc.Bars(ctx, "600000")
	if err != nil {
		t.Fatal(err)
	}
	if res.Source != models.SourceNone {
		t.Fatalf("source = %s, want none", res.Source)
	}
	if len(res.Bars) != 0 {
		t.Fatalf("rows = %d, want 0", len(res.Bars))
	}
}

func TestTruncatedPrimaryHistoryIsRejected(t *testing.T) {
	ctx := context.Background()
	clock := &fixedClock{now: time.Date(2025, 6, 4, 16, 0, 0, 0, time.Local)}
	cal := tradingWeek(t, clock)

	store := repository.NewMemoryBarStore()
	primary := &fakeProvider{name: "primary", bars: history("600000", day(2025, 6, 4), 20, clock.now)}
	secondary := &fakeProvider{name: "secondary", bars: history("600000", day(2025, 6, 4), 120, clock.now)}
	svc := newService(store, primary, secondary, cal, clock)

	res, err := svc.Bars(ctx, "600000")
	if err != nil {
		t.Fatal(err)
	}
	if res.Source != models.SourceSecondary {
		t.Fatalf("source = %s, want secondary after truncated primary", res.Source)
	}
}

func TestUnfinalizedBarAfterCloseFallsThrough(t *testing.T) {
	ctx := context.Background()
	// after close on Wednesday; today's bar was last written mid-session
	clock := &fixedClock{now: time.Date(2025, 6, 4, 16, 0, 0, 0, time.Local)}
	cal := tradingWeek(t, clock)

	store := repository.NewMemoryBarStore()
	stale := time.Date(2025, 6, 4, 14, 0, 0, 0, time.Local)
	if err := store.Upsert(ctx, history("600000", day(2025, 6, 4), 150, stale)); err != nil {
		t.Fatal(err)
	}

	primary := &fakeProvider{name: "primary", err: errors.New("down")}
	secondary := &fakeProvider{name: "secondary", bars: history("600000", day(2025, 6, 4), 120, clock.now)}
	svc := newService(store, primary, secondary, cal, clock)

	res, err := svc.Bars(ctx, "600000")
	if err != nil {
		t.Fatal(err)
	}
	if res.Source == models.SourceStore {
		t.Fatalf("unfinalized store served as source=store, want provider fallback")
	}
	if res.Source != models.SourceSecondary {
		t.Fatalf("source = %s, want secondary", res.Source)
	}
}

func TestUnfinalizedBarAfterCloseIsRefreshedInPlace(t *testing.T) {
	ctx := context.Background()
	clock := &fixedClock{now: time.Date(2025, 6, 4, 16, 0, 0, 0, time.Local)}
	cal := tradingWeek(t, clock)

	store := repository.NewMemoryBarStore()
	stale := time.Date(2025, 6, 4, 14, 0, 0, 0, time.Local)
	if err := store.Upsert(ctx, history("600000", day(2025, 6, 4), 150, stale)); err != nil {
		t.Fatal(err)
	}

	final := models.Bar{
		Symbol: "600000", Date: day(2025, 6, 4),
		Open: 10, High: 12, Low: 9, Close: 11.8, Volume: 3000,
		UpdateTime: clock.now,
	}
	primary := &fakeProvider{name: "primary", bars: []models.Bar{final}}
	secondary := &fakeProvider{name: "secondary"}
	svc := newService(store, primary, secondary, cal, clock)

	res, err := svc.Bars(ctx, "600000")
	if err != nil {
		t.Fatal(err)
	}
	if res.Source != models.SourceStore {
		t.Fatalf("source = %s, want store after successful finalize", res.Source)
	}
	last, ok := res.Latest()
	if !ok || last.Close != 11.8 {
		t.Errorf("latest close = %v, want finalized 11.8", last.Close)
	}
}

func TestIntradayRefreshReplacesTodayBar(t *testing.T) {
	ctx := context.Background()
	// inside the morning session on Wednesday
	clock := &fixedClock{now: time.Date(2025, 6, 4, 10, 30, 0, 0, time.Local)}
	cal := tradingWeek(t, clock)

	store := repository.NewMemoryBarStore()
	stale := time.Date(2025, 6, 4, 9, 45, 0, 0, time.Local)
	if err := store.Upsert(ctx, history("600000", day(2025, 6, 4), 150, stale)); err != nil {
		t.Fatal(err)
	}

	fresh := models.Bar{
		Symbol: "600000", Date: day(2025, 6, 4),
		Open: 10, High: 12, Low: 9, Close: 11.5, Volume: 2000,
		UpdateTime: clock.now,
	}
	primary := &fakeProvider{name: "primary", bars: []models.Bar{fresh}}
	secondary := &fakeProvider{name: "secondary"}
	svc := newService(store, primary, secondary, cal, clock)

	res, err := svc.Bars(ctx, "600000")
	if err != nil {
		t.Fatal(err)
	}
	if res.Source != models.SourceStore {
		t.Fatalf("source = %s, want store", res.Source)
	}
	if primary.calls != 1 {
		t.Fatalf("primary calls = %d, want 1 intraday refresh", primary.calls)
	}
	last, ok := res.Latest()
	if !ok || last.Close != 11.5 {
		t.Errorf("latest close = %v, want refreshed 11.5", last.Close)
	}
}
