package repository

import (
	"context"
	"database/sql"
	"fmt"

	"StockPulse/internal/domain/models"
	pkgch "StockPulse/pkg/clickhouse"
	applogger "StockPulse/pkg/logger"
	"StockPulse/pkg/util"
)

// CHBacktestStore implements BacktestStore backed by ClickHouse.
type CHBacktestStore struct {
	db *sql.DB
	l  *applogger.Logger
}

func NewCHBacktestStore(ch *pkgch.Client, l *applogger.Logger) *CHBacktestStore {
	return &CHBacktestStore{db: ch.DB(), l: l}
}

func (s *CHBacktestStore) SaveSingle(ctx context.Context, r *models.BacktestResult) error {
	const q = `
        INSERT INTO stockpulse.backtests
        (symbol, start_date, end_date, initial_capital, final_value,
         cumulative_return, annualized_return, max_drawdown, sharpe_ratio,
         win_rate, trade_count, created_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
    `
	_, err := s.db.ExecContext(ctx, q,
		r.Symbol,
		util.TruncateToDay(r.Start),
		util.TruncateToDay(r.End),
		r.InitialCapital,
		r.FinalValue,
		r.CumulativeReturn,
		r.AnnualizedReturn,
		r.MaxDrawdown,
		r.SharpeRatio,
		r.WinRate,
		int32(r.TradeCount),
		r.CreatedAt,
	)
	if err != nil {
		s.l.Error("clickhouse backtest save error",
			applogger.String("symbol", r.Symbol),
			applogger.Error(err),
		)
		return fmt.Errorf("save backtest: %w", err)
	}
	return nil
}

func (s *CHBacktestStore) SaveScan(ctx context.Context, r *models.ScanResult) error {
	const q = `
        INSERT INTO stockpulse.scan_backtests
        (board, start_date, end_date, top_k, min_prob, symbols, days,
         total_return, annualized_return, volatility, sharpe_ratio,
         max_drawdown, win_rate, created_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
    `
	_, err := s.db.ExecContext(ctx, q,
		r.Board,
		util.TruncateToDay(r.Start),
		util.TruncateToDay(r.End),
		int32(r.TopK),
		r.MinProb,
		int32(r.Symbols),
		int32(r.Days),
		r.TotalReturn,
		r.AnnualizedReturn,
		r.Volatility,
		r.SharpeRatio,
		r.MaxDrawdown,
		r.WinRate,
		r.CreatedAt,
	)
	if err != nil {
		s.l.Error("clickhouse scan backtest save error",
			applogger.String("board", r.Board),
			applogger.Error(err),
		)
		return fmt.Errorf("save scan backtest: %w", err)
	}
	return nil
}
