package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"StockPulse/internal/domain/models"
	pkgch "StockPulse/pkg/clickhouse"
	applogger "StockPulse/pkg/logger"
	"StockPulse/pkg/util"
)

// CHBarStore implements BarStore backed by ClickHouse. The table is a
// ReplacingMergeTree keyed by (symbol, date) so re-inserting a day is
// an upsert; reads use FINAL to collapse duplicates.
type CHBarStore struct {
	client *pkgch.Client
	db     *sql.DB
	l      *applogger.Logger
}

func NewCHBarStore(ch *pkgch.Client, l *applogger.Logger) *CHBarStore {
	return &CHBarStore{client: ch, db: ch.DB(), l: l}
}

func (s *CHBarStore) Init(ctx context.Context) error {
	return s.client.InitSchema(ctx, SchemaStatements())
}

func (s *CHBarStore) Upsert(ctx context.Context, bars []models.Bar) error {
	if len(bars) == 0 {
		return nil
	}
	start := time.Now()
	const chunkSize = 2000
	for lo := 0; lo < len(bars); lo += chunkSize {
		hi := lo + chunkSize
		if hi > len(bars) {
			hi = len(bars)
		}

		values := make([]string, 0, hi-lo)
		args := make([]interface{}, 0, (hi-lo)*8)
		for _, b := range bars[lo:hi] {
			if b.Symbol == "" || b.Date.IsZero() {
				continue
			}
			values = append(values, "(?, ?, ?, ?, ?, ?, ?, ?)")
			args = append(args,
				b.Symbol,
				util.TruncateToDay(b.Date),
				b.Open,
				b.High,
				b.Low,
				b.Close,
				b.Volume,
				b.UpdateTime,
			)
		}
		if len(values) == 0 {
			continue
		}
		q := "INSERT INTO stockpulse.daily_bars (symbol, date, open, high, low, close, volume, update_time) VALUES " +
			strings.Join(values, ",")
		if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
			s.l.Error("clickhouse bar upsert error",
				applogger.Int("rows", len(values)),
				applogger.Error(err),
			)
			return fmt.Errorf("upsert bars: %w", err)
		}
	}
	s.l.Debug("clickhouse bar upsert ok",
		applogger.String("symbol", bars[0].Symbol),
		applogger.Int("rows", len(bars)),
		applogger.Duration("duration_ms", time.Since(start)),
	)
	return nil
}

func (s *CHBarStore) Query(ctx context.Context, symbol string, from, to time.Time) ([]models.Bar, error) {
	const q = `
        SELECT symbol, date, open, high, low, close, volume, update_time
        FROM stockpulse.daily_bars FINAL
        WHERE symbol = ? AND date >= ? AND date <= ?
        ORDER BY date ASC
    `
	rows, err := s.db.QueryContext(ctx, q, symbol, util.TruncateToDay(from), util.TruncateToDay(to))
	if err != nil {
		s.l.Error("clickhouse bar query error",
			applogger.String("symbol", symbol),
			applogger.Error(err),
		)
		return nil, fmt.Errorf("query bars: %w", err)
	}
	defer rows.Close()

	out := make([]models.Bar, 0, 1024)
	for rows.Next() {
		var b models.Bar
		if err := rows.Scan(&b.Symbol, &b.Date, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume, &b.UpdateTime); err != nil {
			return nil, fmt.Errorf("scan bar: %w", err)
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return out, nil
}

func (s *CHBarStore) Latest(ctx context.Context, symbol string) (models.Bar, bool, error) {
	const q = `
        SELECT symbol, date, open, high, low, close, volume, update_time
        FROM stockpulse.daily_bars FINAL
        WHERE symbol = ?
        ORDER BY date DESC
        LIMIT 1
    `
	var b models.Bar
	err := s.db.QueryRowContext(ctx, q, symbol).
		Scan(&b.Symbol, &b.Date, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume, &b.UpdateTime)
	if err == sql.ErrNoRows {
		return models.Bar{}, false, nil
	}
	if err != nil {
		return models.Bar{}, false, fmt.Errorf("latest bar: %w", err)
	}
	return b, true, nil
}

func (s *CHBarStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) error {
	const q = `ALTER TABLE stockpulse.daily_bars DELETE WHERE date < ?`
	if _, err := s.db.ExecContext(ctx, q, util.TruncateToDay(cutoff)); err != nil {
		return fmt.Errorf("prune bars: %w", err)
	}
	s.l.Info("pruned bars", applogger.String("cutoff", util.FormatDate(cutoff)))
	return nil
}

func (s *CHBarStore) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *CHBarStore) Close() error {
	return nil // pool managed by pkg client
}
