package resultcache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"StockPulse/pkg/cache"
	"StockPulse/pkg/logger"
)

type fixedClock struct {
	mu  sync.Mutex
	now time.Time
}

func (f *fixedClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fixedClock) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}

type nopMetrics struct{}

func (nopMetrics) RecordFetch(string, string)        {}
func (nopMetrics) RecordCacheLookup(string, string)  {}
func (nopMetrics) RecordSignal(string)               {}
func (nopMetrics) RecordError(string)                {}
func (nopMetrics) RecordProbability(string, float64) {}
func (nopMetrics) RecordLatency(string, float64)     {}

type predParams struct {
	Symbol string
	Date   string
}

type predValue struct {
	Prob float64
}

func newService(clock *fixedClock) *Service {
	return New(cache.NewMemoryStore(), clock, nopMetrics{}, logger.Nop())
}

func TestGetOrComputeCachesWithinTTL(t *testing.T) {
	ctx := context.Background()
	clock := &fixedClock{now: time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)}
	svc := newService(clock)

	var calls atomic.Int64
	compute := func(ctx context.Context) (interface{}, error) {
		calls.Add(1)
		return predValue{Prob: 0.61}, nil
	}
	params := predParams{Symbol: "600000", Date: "2025-06-03"}

	var got predValue
	if err := svc.GetOrCompute(ctx, "prediction", params, 24*time.Hour, &got, compute); err != nil {
		t.Fatal(err)
	}
	if got.Prob != 0.61 {
		t.Fatalf("prob = %v, want 0.61", got.Prob)
	}

	clock.Advance(23 * time.Hour)
	var again predValue
	if err := svc.GetOrCompute(ctx, "prediction", params, 24*time.Hour, &again, compute); err != nil {
		t.Fatal(err)
	}
	if calls.Load() != 1 {
		t.Errorf("compute calls = %d, want 1 within ttl", calls.Load())
	}
}

func TestGetOrComputeRecomputesAfterTTL(t *testing.T) {
	ctx := context.Background()
	clock := &fixedClock{now: time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)}
	svc := newService(clock)

	var calls atomic.Int64
	compute := func(ctx context.Context) (interface{}, error) {
		calls.Add(1)
		return predValue{Prob: 0.55}, nil
	}
	params := predParams{Symbol: "600000", Date: "2025-06-03"}

	var got predValue
	if err := svc.GetOrCompute(ctx, "prediction", params, 24*time.Hour, &got, compute); err != nil {
		t.Fatal(err)
	}
	clock.Advance(25 * time.Hour)
	if err := svc.GetOrCompute(ctx, "prediction", params, 24*time.Hour, &got, compute); err != nil {
		t.Fatal(err)
	}
	if calls.Load() != 2 {
		t.Errorf("compute calls = %d, want 2 after expiry", calls.Load())
	}
}

func TestDifferentParamsDifferentEntries(t *testing.T) {
	ctx := context.Background()
	clock := &fixedClock{now: time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)}
	svc := newService(clock)

	var calls atomic.Int64
	compute := func(ctx context.Context) (interface{}, error) {
		calls.Add(1)
		return predValue{Prob: 0.5}, nil
	}

	var got predValue
	_ = svc.GetOrCompute(ctx, "prediction", predParams{Symbol: "600000"}, time.Hour, &got, compute)
	_ = svc.GetOrCompute(ctx, "prediction", predParams{Symbol: "600001"}, time.Hour, &got, compute)
	_ = svc.GetOrCompute(ctx, "backtest", predParams{Symbol: "600000"}, time.Hour, &got, compute)
	if calls.Load() != 3 {
		t.Errorf("compute calls = %d, want 3 distinct entries", calls.Load())
	}
}

func TestInvalidateForcesRecompute(t *testing.T) {
	ctx := context.Background()
	clock := &fixedClock{now: time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)}
	svc := newService(clock)

	var calls atomic.Int64
	compute := func(ctx context.Context) (interface{}, error) {
		calls.Add(1)
		return predValue{Prob: 0.5}, nil
	}
	params := predParams{Symbol: "600000"}

	var got predValue
	_ = svc.GetOrCompute(ctx, "prediction", params, time.Hour, &got, compute)
	if err := svc.Invalidate(ctx, "prediction", params); err != nil {
		t.Fatal(err)
	}
	_ = svc.GetOrCompute(ctx, "prediction", params, time.Hour, &got, compute)
	if calls.Load() != 2 {
		t.Errorf("compute calls = %d, want 2 after invalidate", calls.Load())
	}
}

func TestComputeErrorNotCached(t *testing.T) {
	ctx := context.Background()
	clock := &fixedClock{now: time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)}
	svc := newService(clock)

	boom := errors.New("upstream down")
	var calls atomic.Int64
	failing := func(ctx context.Context) (interface{}, error) {
		calls.Add(1)
		return nil, boom
	}
	params := predParams{Symbol: "600000"}

	var got predValue
	if err := svc.GetOrCompute(ctx, "prediction", params, time.Hour, &got, failing); !errors.Is(err, boom) {
		t.Fatalf("err = %v, want %v", err, boom)
	}
	ok := func(ctx context.Context) (interface{}, error) {
		calls.Add(1)
		return predValue{Prob: 0.7}, nil
	}
	if err := svc.GetOrCompute(ctx, "prediction", params, time.Hour, &got, ok); err != nil {
		t.Fatal(err)
	}
	if got.Prob != 0.7 {
		t.Errorf("prob = %v, want recomputed 0.7", got.Prob)
	}
	if calls.Load() != 2 {
		t.Errorf("compute calls = %d, want 2", calls.Load())
	}
}

func TestConcurrentRequestsShareOneFlight(t *testing.T) {
	ctx := context.Background()
	clock := &fixedClock{now: time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)}
	svc := newService(clock)

	var calls atomic.Int64
	release := make(chan struct{})
	compute := func(ctx context.Context) (interface{}, error) {
		calls.Add(1)
		<-release
		return predValue{Prob: 0.52}, nil
	}
	params := predParams{Symbol: "600000"}

	const workers = 8
	var wg sync.WaitGroup
	errs := make([]error, workers)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			var got predValue
			errs[w] = svc.GetOrCompute(ctx, "prediction", params, time.Hour, &got, compute)
		}(w)
	}
	// let the goroutines pile onto the flight, then let it finish
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	for w, err := range errs {
		if err != nil {
			t.Fatalf("worker %d: %v", w, err)
		}
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("compute calls = %d, want 1 shared flight", got)
	}
}
