package usecase

import (
	"context"
	"time"

	"StockPulse/internal/backtest"
	"StockPulse/internal/domain/models"
	"StockPulse/internal/service/resultcache"
	"StockPulse/pkg/util"
)

// BacktestUsecase serves backtest runs through the result cache.
type BacktestUsecase struct {
	engine   *backtest.Engine
	universe *UniverseUsecase
	cache    *resultcache.Service
	ttl      time.Duration
}

func NewBacktestUsecase(
	engine *backtest.Engine,
	universe *UniverseUsecase,
	cache *resultcache.Service,
	ttl time.Duration,
) *BacktestUsecase {
	return &BacktestUsecase{engine: engine, universe: universe, cache: cache, ttl: ttl}
}

type singleKey struct {
	Symbol string `json:"symbol"`
	Start  string `json:"start"`
	End    string `json:"end"`
}

// RunSingle backtests one symbol over a period, cached by parameters.
func (u *BacktestUsecase) RunSingle(ctx context.Context, symbol string, start, end time.Time) (*models.BacktestResult, error) {
	key := singleKey{
		Symbol: symbol,
		Start:  util.FormatDate(start),
		End:    util.FormatDate(end),
	}
	var out models.BacktestResult
	err := u.cache.GetOrCompute(ctx, "backtest", key, u.ttl, &out,
		func(ctx context.Context) (interface{}, error) {
			return u.engine.RunSingle(ctx, symbol, start, end)
		})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

type scanKey struct {
	Board   string  `json:"board"`
	Start   string  `json:"start"`
	End     string  `json:"end"`
	TopK    int     `json:"top_k"`
	MinProb float64 `json:"min_prob"`
}

// RunScan backtests the cross-sectional rotation over a board, cached
// by parameters.
func (u *BacktestUsecase) RunScan(ctx context.Context, params backtest.ScanParams) (*models.ScanResult, error) {
	key := scanKey{
		Board:   string(params.Board),
		Start:   util.FormatDate(params.Start),
		End:     util.FormatDate(params.End),
		TopK:    params.TopK,
		MinProb: params.MinProb,
	}
	var out models.ScanResult
	err := u.cache.GetOrCompute(ctx, "scan", key, u.ttl, &out,
		func(ctx context.Context) (interface{}, error) {
			stocks, err := u.universe.List(ctx, params.Board)
			if err != nil {
				return nil, err
			}
			return u.engine.RunScan(ctx, stocks, params)
		})
	if err != nil {
		return nil, err
	}
	return &out, nil
}
