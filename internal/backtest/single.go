package backtest

import (
	"context"
	"fmt"
	"math"
	"time"

	"StockPulse/internal/domain/models"
	domrepo "StockPulse/internal/domain/repository"
	"StockPulse/internal/features"
	"StockPulse/internal/ml"
	applogger "StockPulse/pkg/logger"
)

const (
	trainWindow      = 100
	testWindow       = 10
	minPeriodRows    = 200
	minTrainExamples = 50

	buyThreshold  = 0.6
	sellThreshold = 0.4
	lotSize       = 100
)

// BarResolver yields the daily history for a symbol.
type BarResolver interface {
	Bars(ctx context.Context, symbol string) (*models.FetchResult, error)
}

// Config holds backtest settings.
type Config struct {
	InitialCapital  float64
	TransactionCost float64
	Boost           ml.Config
}

// Engine replays a walk-forward strategy over stored history: retrain
// every ten days on the trailing hundred, buy conviction, sell doubt.
type Engine struct {
	cfg     Config
	fetcher BarResolver
	store   domrepo.BacktestStore
	metrics domrepo.Metrics
	l       *applogger.Logger
}

func NewEngine(cfg Config, fetcher BarResolver, store domrepo.BacktestStore, metrics domrepo.Metrics, l *applogger.Logger) *Engine {
	if cfg.Boost.Trees == 0 {
		cfg.Boost = ml.DefaultConfig()
	}
	return &Engine{cfg: cfg, fetcher: fetcher, store: store, metrics: metrics, l: l}
}

// RunSingle backtests one symbol over [start, end] and persists the
// result.
func (e *Engine) RunSingle(ctx context.Context, symbol string, start, end time.Time) (*models.BacktestResult, error) {
	began := time.Now()
	defer func() {
		e.metrics.RecordLatency("backtest_single", time.Since(began).Seconds())
	}()

	res, err := e.fetcher.Bars(ctx, symbol)
	if err != nil {
		return nil, err
	}
	bars := clipPeriod(res.Bars, start, end)
	if len(bars) < minPeriodRows {
		return nil, fmt.Errorf("backtest %s: %d bars in period, need %d", symbol, len(bars), minPeriodRows)
	}

	result, err := e.replay(ctx, symbol, bars)
	if err != nil {
		e.metrics.RecordError("backtest")
		return nil, err
	}

	if err := e.store.SaveSingle(ctx, result); err != nil {
		return nil, fmt.Errorf("save backtest %s: %w", symbol, err)
	}
	e.l.Info("backtest complete",
		applogger.String("symbol", symbol),
		applogger.Float64("cumulative_return", result.CumulativeReturn),
		applogger.Float64("max_drawdown", result.MaxDrawdown),
		applogger.Int("trades", result.TradeCount),
	)
	return result, nil
}

func (e *Engine) replay(ctx context.Context, symbol string, bars []models.Bar) (*models.BacktestResult, error) {
	series, err := features.NewSeries(bars)
	if err != nil {
		return nil, err
	}
	closes := series.Closes()
	n := len(bars)

	cash := e.cfg.InitialCapital
	shares := 0
	var trades []models.Trade
	equity := make([]float64, 0, n)

	firstTradable := features.MinBars + trainWindow
	for block := firstTradable; block < n; block += testWindow {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		clf := e.trainBlock(series, closes, block)

		blockEnd := block + testWindow
		if blockEnd > n {
			blockEnd = n
		}
		for i := block; i < blockEnd; i++ {
			price := closes[i]
			if clf != nil {
				f, err := series.At(i)
				if err != nil {
					return nil, err
				}
				prob, err := clf.PredictProba(f.Vector())
				if err != nil {
					return nil, err
				}

				switch {
				case prob > buyThreshold && shares == 0:
					lots := int(cash / (price * lotSize * (1 + e.cfg.TransactionCost)))
					if lots > 0 {
						qty := lots * lotSize
						cost := float64(qty) * price * e.cfg.TransactionCost
						cash -= float64(qty)*price + cost
						shares = qty
						trades = append(trades, models.Trade{
							Date: bars[i].Date, Action: "buy", Price: price,
							Shares: qty, Cost: cost,
							TotalValue: cash + float64(shares)*price,
						})
					}
				case prob < sellThreshold && shares > 0:
					proceeds := float64(shares) * price
					cost := proceeds * e.cfg.TransactionCost
					cash += proceeds - cost
					trades = append(trades, models.Trade{
						Date: bars[i].Date, Action: "sell", Price: price,
						Shares: shares, Cost: cost,
						TotalValue: cash,
					})
					shares = 0
				}
			}
			equity = append(equity, cash+float64(shares)*price)
		}
	}

	if len(equity) == 0 {
		return nil, fmt.Errorf("backtest %s: period too short to trade", symbol)
	}

	final := equity[len(equity)-1]
	cum := final/e.cfg.InitialCapital - 1
	days := bars[n-1].Date.Sub(bars[0].Date).Hours() / 24
	annualized := 0.0
	if days > 0 {
		annualized = math.Pow(1+cum, 365/days) - 1
	}

	var sells, wins int
	for _, t := range trades {
		if t.Action != "sell" {
			continue
		}
		sells++
		if t.TotalValue > e.cfg.InitialCapital {
			wins++
		}
	}
	winRate := 0.0
	if sells > 0 {
		winRate = float64(wins) / float64(sells)
	}

	return &models.BacktestResult{
		Symbol:           symbol,
		Start:            bars[0].Date,
		End:              bars[n-1].Date,
		InitialCapital:   e.cfg.InitialCapital,
		FinalValue:       final,
		CumulativeReturn: cum,
		AnnualizedReturn: annualized,
		MaxDrawdown:      maxDrawdown(equity),
		SharpeRatio:      sharpe(dailyReturns(equity)),
		WinRate:          winRate,
		TradeCount:       len(trades),
		Trades:           trades,
		CreatedAt:        time.Now(),
	}, nil
}

// trainBlock fits a model on the hundred days preceding block. Blocks
// without enough labeled history trade nothing.
func (e *Engine) trainBlock(series *features.Series, closes []float64, block int) *ml.Classifier {
	start := block - trainWindow
	if start < features.MinBars-1 {
		start = features.MinBars - 1
	}

	var X [][]float64
	var y []int
	for i := start; i < block-1; i++ {
		f, err := series.At(i)
		if err != nil {
			continue
		}
		X = append(X, f.Vector())
		if closes[i+1] > closes[i] {
			y = append(y, 1)
		} else {
			y = append(y, 0)
		}
	}
	if len(X) < minTrainExamples {
		return nil
	}
	clf, err := ml.Train(X, y, ml.BalancedWeights(y), e.cfg.Boost)
	if err != nil {
		return nil
	}
	return clf
}

func clipPeriod(bars []models.Bar, start, end time.Time) []models.Bar {
	var out []models.Bar
	for _, b := range bars {
		if !b.Date.Before(start) && !b.Date.After(end) {
			out = append(out, b)
		}
	}
	return out
}
