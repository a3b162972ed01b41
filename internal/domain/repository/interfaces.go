package repository

import (
	"context"
	"time"

	"StockPulse/internal/domain/models"
)

// BarStore persists daily bars. Writes are idempotent upserts keyed by
// (symbol, date); the newest update_time wins.
type BarStore interface {
	Init(ctx context.Context) error // ensure tables, health checks
	Upsert(ctx context.Context, bars []models.Bar) error
	Query(ctx context.Context, symbol string, from, to time.Time) ([]models.Bar, error)
	Latest(ctx context.Context, symbol string) (models.Bar, bool, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) error
	Health(ctx context.Context) error
	Close() error
}

// PredictionStore persists predictions keyed by (symbol, predict_date).
type PredictionStore interface {
	Upsert(ctx context.Context, p *models.Prediction) error
	Get(ctx context.Context, symbol string, predictDate time.Time) (*models.Prediction, bool, error)
	ListByDate(ctx context.Context, predictDate time.Time) ([]*models.Prediction, error)
}

// BacktestStore persists completed backtest runs.
type BacktestStore interface {
	SaveSingle(ctx context.Context, r *models.BacktestResult) error
	SaveScan(ctx context.Context, r *models.ScanResult) error
}

// StockStore persists the tradable universe.
type StockStore interface {
	Replace(ctx context.Context, stocks []models.Stock) error
	List(ctx context.Context, board models.Board) ([]models.Stock, error)
}

// BarProvider fetches daily bar history from an upstream feed.
type BarProvider interface {
	FetchDaily(ctx context.Context, symbol string, from, to time.Time) ([]models.Bar, error)
	Name() string
}

// UniverseProvider lists all tradable symbols from an upstream feed.
type UniverseProvider interface {
	FetchUniverse(ctx context.Context) ([]models.Stock, error)
}

// SentimentProvider scores market mood for a symbol.
type SentimentProvider interface {
	Score(ctx context.Context, symbol string) (models.Sentiment, error)
}

// Publisher emits signal events to downstream consumers.
type Publisher interface {
	PublishSignal(ctx context.Context, ev *models.SignalEvent) error
	Close() error
}

// Metrics records operational telemetry.
type Metrics interface {
	RecordFetch(source, outcome string)
	RecordCacheLookup(kind, outcome string)
	RecordSignal(signal string)
	RecordError(kind string)
	RecordProbability(symbol string, p float64)
	RecordLatency(op string, seconds float64)
}
