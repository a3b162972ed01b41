package usecase

import (
	"context"
	"time"

	"StockPulse/internal/calendar"
	"StockPulse/internal/domain/models"
	domrepo "StockPulse/internal/domain/repository"
	"StockPulse/internal/predictor"
	"StockPulse/internal/service/resultcache"
	applogger "StockPulse/pkg/logger"
	"StockPulse/pkg/util"
)

// PredictUsecase serves predictions through the result cache: one
// training run per (symbol, trading day) no matter how many callers
// ask.
type PredictUsecase struct {
	pred  *predictor.Predictor
	preds domrepo.PredictionStore
	cache *resultcache.Service
	cal   *calendar.Calendar
	clock calendar.Clock
	ttl   time.Duration
	l     *applogger.Logger
}

func NewPredictUsecase(
	pred *predictor.Predictor,
	preds domrepo.PredictionStore,
	cache *resultcache.Service,
	cal *calendar.Calendar,
	clock calendar.Clock,
	ttl time.Duration,
	l *applogger.Logger,
) *PredictUsecase {
	if clock == nil {
		clock = calendar.RealClock()
	}
	return &PredictUsecase{pred: pred, preds: preds, cache: cache, cal: cal, clock: clock, ttl: ttl, l: l}
}

type predictKey struct {
	Symbol string `json:"symbol"`
	AsOf   string `json:"as_of"`
}

// Predict returns the cached prediction for symbol as of the current
// trading day, computing it on first request.
func (u *PredictUsecase) Predict(ctx context.Context, symbol, name string) (*models.Prediction, error) {
	asOf, err := u.cal.CurrentTradingDay(ctx, u.clock.Now())
	if err != nil {
		return nil, err
	}
	key := predictKey{Symbol: symbol, AsOf: util.FormatDate(asOf)}

	var out models.Prediction
	err = u.cache.GetOrCompute(ctx, "prediction", key, u.ttl, &out,
		func(ctx context.Context) (interface{}, error) {
			return u.pred.Predict(ctx, symbol, name)
		})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// WarmStart seeds the result cache with predictions already stored for
// the current trading day so a restarted process does not retrain.
func (u *PredictUsecase) WarmStart(ctx context.Context) error {
	asOf, err := u.cal.CurrentTradingDay(ctx, u.clock.Now())
	if err != nil {
		return err
	}
	predictDate, err := u.cal.NextTradingDay(ctx, asOf, 1)
	if err != nil {
		return err
	}
	stored, err := u.preds.ListByDate(ctx, predictDate)
	if err != nil {
		return err
	}

	for _, p := range stored {
		key := predictKey{Symbol: p.Symbol, AsOf: util.FormatDate(asOf)}
		var out models.Prediction
		err := u.cache.GetOrCompute(ctx, "prediction", key, u.ttl, &out,
			func(ctx context.Context) (interface{}, error) {
				return p, nil
			})
		if err != nil {
			u.l.Warn("prediction warm start failed",
				applogger.String("symbol", p.Symbol),
				applogger.Error(err),
			)
		}
	}
	if len(stored) > 0 {
		u.l.Info("prediction cache warmed", applogger.Int("entries", len(stored)))
	}
	return nil
}

// PredictBatch runs predictions for a watch list sequentially, keeping
// going past per-symbol failures.
func (u *PredictUsecase) PredictBatch(ctx context.Context, watched []models.Stock) []*models.Prediction {
	out := make([]*models.Prediction, 0, len(watched))
	for _, st := range watched {
		if err := ctx.Err(); err != nil {
			return out
		}
		p, err := u.Predict(ctx, st.Symbol, st.Name)
		if err != nil {
			u.l.Warn("watch list prediction failed",
				applogger.String("symbol", st.Symbol),
				applogger.Error(err),
			)
			continue
		}
		out = append(out, p)
	}
	return out
}
