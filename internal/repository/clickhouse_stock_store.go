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
)

// CHStockStore implements StockStore backed by ClickHouse.
type CHStockStore struct {
	db *sql.DB
	l  *applogger.Logger
}

func NewCHStockStore(ch *pkgch.Client, l *applogger.Logger) *CHStockStore {
	return &CHStockStore{db: ch.DB(), l: l}
}

func (s *CHStockStore) Replace(ctx context.Context, stocks []models.Stock) error {
	if len(stocks) == 0 {
		return nil
	}
	now := time.Now()
	const chunkSize = 2000
	for lo := 0; lo < len(stocks); lo += chunkSize {
		hi := lo + chunkSize
		if hi > len(stocks) {
			hi = len(stocks)
		}
		values := make([]string, 0, hi-lo)
		args := make([]interface{}, 0, (hi-lo)*4)
		for _, st := range stocks[lo:hi] {
			values = append(values, "(?, ?, ?, ?)")
			args = append(args, st.Symbol, st.Name, string(st.Board), now)
		}
		q := "INSERT INTO stockpulse.stocks (symbol, name, board, updated_at) VALUES " +
			strings.Join(values, ",")
		if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
			s.l.Error("clickhouse stock replace error", applogger.Error(err))
			return fmt.Errorf("replace stocks: %w", err)
		}
	}
	return nil
}

func (s *CHStockStore) List(ctx context.Context, board models.Board) ([]models.Stock, error) {
	q := `SELECT symbol, name, board FROM stockpulse.stocks FINAL`
	var args []interface{}
	if board != "" {
		q += ` WHERE board = ?`
		args = append(args, string(board))
	}
	q += ` ORDER BY symbol ASC`

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list stocks: %w", err)
	}
	defer rows.Close()

	var out []models.Stock
	for rows.Next() {
		var st models.Stock
		var b string
		if err := rows.Scan(&st.Symbol, &st.Name, &b); err != nil {
			return nil, fmt.Errorf("scan stock: %w", err)
		}
		st.Board = models.Board(b)
		out = append(out, st)
	}
	return out, rows.Err()
}
