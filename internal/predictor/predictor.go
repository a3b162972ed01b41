package predictor

import (
	"context"
	"fmt"
	"time"

	"StockPulse/internal/calendar"
	"StockPulse/internal/domain/models"
	domrepo "StockPulse/internal/domain/repository"
	"StockPulse/internal/features"
	"StockPulse/internal/ml"
	applogger "StockPulse/pkg/logger"
)

// BarResolver yields the daily history for a symbol. Implemented by
// the fetch service.
type BarResolver interface {
	Bars(ctx context.Context, symbol string) (*models.FetchResult, error)
}

// minTrainExamples is the smallest usable training set.
const minTrainExamples = 50

// Config holds prediction settings.
type Config struct {
	TrainWindow int
	Boost       ml.Config
}

// Predictor trains a fresh walk-forward model per request and turns
// its next-day probability into a persisted, published signal.
type Predictor struct {
	cfg       Config
	fetcher   BarResolver
	cal       *calendar.Calendar
	sentiment domrepo.SentimentProvider
	preds     domrepo.PredictionStore
	publisher domrepo.Publisher
	metrics   domrepo.Metrics
	clock     calendar.Clock
	l         *applogger.Logger
}

func New(
	cfg Config,
	fetcher BarResolver,
	cal *calendar.Calendar,
	sentiment domrepo.SentimentProvider,
	preds domrepo.PredictionStore,
	publisher domrepo.Publisher,
	metrics domrepo.Metrics,
	clock calendar.Clock,
	l *applogger.Logger,
) *Predictor {
	if clock == nil {
		clock = calendar.RealClock()
	}
	if cfg.Boost.Trees == 0 {
		cfg.Boost = ml.DefaultConfig()
	}
	return &Predictor{
		cfg:       cfg,
		fetcher:   fetcher,
		cal:       cal,
		sentiment: sentiment,
		preds:     preds,
		publisher: publisher,
		metrics:   metrics,
		clock:     clock,
		l:         l,
	}
}

// Predict resolves bars, trains on the trailing window and returns the
// stored prediction for the next trading day.
func (p *Predictor) Predict(ctx context.Context, symbol, name string) (*models.Prediction, error) {
	started := time.Now()
	defer func() {
		p.metrics.RecordLatency("predict", time.Since(started).Seconds())
	}()

	res, err := p.fetcher.Bars(ctx, symbol)
	if err != nil {
		return nil, err
	}
	if len(res.Bars) < features.MinBars+1 {
		return nil, fmt.Errorf("predict %s: %d bars, need %d", symbol, len(res.Bars), features.MinBars+1)
	}

	pred, err := p.predictFromBars(ctx, symbol, name, res.Bars)
	if err != nil {
		p.metrics.RecordError("predict")
		return nil, err
	}

	if err := p.preds.Upsert(ctx, pred); err != nil {
		return nil, fmt.Errorf("store prediction %s: %w", symbol, err)
	}
	p.publish(ctx, pred)

	p.metrics.RecordProbability(symbol, pred.ProbUp)
	p.metrics.RecordSignal(string(pred.Signal))
	p.l.Info("prediction stored",
		applogger.String("symbol", symbol),
		applogger.Float64("prob_up", pred.ProbUp),
		applogger.String("signal", string(pred.Signal)),
		applogger.Int("train_rows", pred.TrainRows),
	)
	return pred, nil
}

func (p *Predictor) predictFromBars(ctx context.Context, symbol, name string, bars []models.Bar) (pred *models.Prediction, err error) {
	// model training must never take the whole request down
	defer func() {
		if r := recover(); r != nil {
			pred = nil
			err = fmt.Errorf("predict %s: training panicked: %v", symbol, r)
		}
	}()

	series, err := features.NewSeries(bars)
	if err != nil {
		return nil, err
	}
	n := series.Len()

	X, y, err := p.trainingSet(series, n)
	if err != nil {
		return nil, err
	}

	clf, err := ml.Train(X, y, ml.BalancedWeights(y), p.cfg.Boost)
	if err != nil {
		return nil, fmt.Errorf("train %s: %w", symbol, err)
	}

	last, err := series.Last()
	if err != nil {
		return nil, err
	}
	prob, err := clf.PredictProba(last.Vector())
	if err != nil {
		return nil, err
	}

	closes := series.Closes()
	senti, _ := p.sentiment.Score(ctx, symbol)
	factors := Factors{
		ProbUp:     prob,
		RSI:        last.RSI14,
		AboveBB:    series.AboveUpperBand(n - 1),
		MomWeak:    features.MomentumWeakening(closes, n-1),
		Drawdown5D: features.Drawdown5D(closes, n-1),
		Sentiment:  senti.Score,
	}
	sig := Decide(factors)

	baseDate := bars[n-1].Date
	predictDate, err := p.cal.NextTradingDay(ctx, baseDate, 1)
	if err != nil {
		return nil, fmt.Errorf("predict date for %s: %w", symbol, err)
	}

	return &models.Prediction{
		Symbol:      symbol,
		Name:        name,
		Board:       models.BoardFor(symbol),
		Price:       bars[n-1].Close,
		PredictDate: predictDate,
		BaseDate:    baseDate,
		ProbUp:      prob,
		Signal:      sig,
		Reason:      Rationale(factors, sig),
		RSI:         factors.RSI,
		AboveBB:     factors.AboveBB,
		MomWeak:     factors.MomWeak,
		Drawdown5D:  factors.Drawdown5D,
		Sentiment:   factors.Sentiment,
		TrainRows:   len(y),
		CreatedAt:   p.clock.Now(),
	}, nil
}

// trainingSet builds the trailing walk-forward window: one example per
// day with a known next-day label, the last bar excluded.
func (p *Predictor) trainingSet(series *features.Series, n int) ([][]float64, []int, error) {
	closes := series.Closes()
	start := n - 1 - p.cfg.TrainWindow
	if start < features.MinBars-1 {
		start = features.MinBars - 1
	}

	var X [][]float64
	var y []int
	for i := start; i < n-1; i++ {
		f, err := series.At(i)
		if err != nil {
			return nil, nil, err
		}
		X = append(X, f.Vector())
		if closes[i+1] > closes[i] {
			y = append(y, 1)
		} else {
			y = append(y, 0)
		}
	}
	if len(X) < minTrainExamples {
		return nil, nil, fmt.Errorf("training set too small: %d examples, need %d", len(X), minTrainExamples)
	}
	return X, y, nil
}

func (p *Predictor) publish(ctx context.Context, pred *models.Prediction) {
	ev := &models.SignalEvent{
		Symbol:      pred.Symbol,
		PredictDate: pred.PredictDate.Format("2006-01-02"),
		Price:       pred.Price,
		ProbUp:      pred.ProbUp,
		Signal:      pred.Signal,
		Reason:      pred.Reason,
		EmittedAt:   p.clock.Now(),
	}
	if err := p.publisher.PublishSignal(ctx, ev); err != nil {
		p.l.Warn("signal publish failed",
			applogger.String("symbol", pred.Symbol),
			applogger.Error(err),
		)
		p.metrics.RecordError("publish")
	}
}
