package usecase

import (
	"context"
	"testing"
	"time"

	"StockPulse/internal/calendar"
	"StockPulse/internal/domain/models"
	"StockPulse/internal/repository"
	"StockPulse/internal/service/resultcache"
	"StockPulse/pkg/cache"
	"StockPulse/pkg/logger"
)

type fixedClock struct {
	now time.Time
}

func (f *fixedClock) Now() time.Time { return f.now }

type fakeCalSource struct {
	days []time.Time
}

func (f *fakeCalSource) FetchTradingDays(ctx context.Context, startYear, endYear int) ([]time.Time, error) {
	return f.days, nil
}

func tradingWeek() []time.Time {
	out := make([]time.Time, 0, 5)
	for d := 2; d <= 6; d++ {
		out = append(out, time.Date(2025, 6, d, 0, 0, 0, 0, time.Local))
	}
	return out
}

func TestWarmStartSeedsCache(t *testing.T) {
	ctx := context.Background()
	clock := &fixedClock{now: time.Date(2025, 6, 2, 16, 0, 0, 0, time.Local)}
	cal := calendar.New(
		calendar.Config{StartYear: 2025, EndYear: 2025, RefreshTTL: time.Hour},
		&fakeCalSource{days: tradingWeek()}, nil, clock, logger.Nop(),
	)
	preds := repository.NewMemoryPredictionStore()
	rc := resultcache.New(cache.NewMemoryStore(), clock, nopMetrics{}, logger.Nop())

	stored := &models.Prediction{
		Symbol:      "600000",
		PredictDate: time.Date(2025, 6, 3, 0, 0, 0, 0, time.Local),
		BaseDate:    time.Date(2025, 6, 2, 0, 0, 0, 0, time.Local),
		ProbUp:      0.71,
		Signal:      models.SignalEnter,
	}
	if err := preds.Upsert(ctx, stored); err != nil {
		t.Fatal(err)
	}

	// nil predictor: a cache miss after warm start would panic, which
	// is exactly what the test guards against
	u := NewPredictUsecase(nil, preds, rc, cal, clock, time.Hour, logger.Nop())
	if err := u.WarmStart(ctx); err != nil {
		t.Fatal(err)
	}

	got, err := u.Predict(ctx, "600000", "")
	if err != nil {
		t.Fatal(err)
	}
	if got.ProbUp != stored.ProbUp || got.Signal != stored.Signal {
		t.Errorf("warmed prediction = %+v, want stored %+v", got, stored)
	}
}
