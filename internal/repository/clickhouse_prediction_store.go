package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"StockPulse/internal/domain/models"
	pkgch "StockPulse/pkg/clickhouse"
	applogger "StockPulse/pkg/logger"
	"StockPulse/pkg/util"
)

// CHPredictionStore implements PredictionStore backed by ClickHouse.
// Rows are keyed by (symbol, predict_date); the newest created_at wins.
type CHPredictionStore struct {
	db *sql.DB
	l  *applogger.Logger
}

func NewCHPredictionStore(ch *pkgch.Client, l *applogger.Logger) *CHPredictionStore {
	return &CHPredictionStore{db: ch.DB(), l: l}
}

func (s *CHPredictionStore) Upsert(ctx context.Context, p *models.Prediction) error {
	const q = `
        INSERT INTO stockpulse.predictions
        (symbol, name, board, price, predict_date, base_date, prob_up, signal, reason,
         rsi, above_bb, mom_weak, drawdown_5d, sentiment, train_rows, created_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
    `
	_, err := s.db.ExecContext(ctx, q,
		p.Symbol,
		p.Name,
		string(p.Board),
		p.Price,
		util.TruncateToDay(p.PredictDate),
		util.TruncateToDay(p.BaseDate),
		p.ProbUp,
		string(p.Signal),
		p.Reason,
		p.RSI,
		boolToUInt8(p.AboveBB),
		boolToUInt8(p.MomWeak),
		p.Drawdown5D,
		p.Sentiment,
		int32(p.TrainRows),
		p.CreatedAt,
	)
	if err != nil {
		s.l.Error("clickhouse prediction upsert error",
			applogger.String("symbol", p.Symbol),
			applogger.Error(err),
		)
		return fmt.Errorf("upsert prediction: %w", err)
	}
	return nil
}

func (s *CHPredictionStore) Get(ctx context.Context, symbol string, predictDate time.Time) (*models.Prediction, bool, error) {
	const q = `
        SELECT symbol, name, board, price, predict_date, base_date, prob_up, signal, reason,
               rsi, above_bb, mom_weak, drawdown_5d, sentiment, train_rows, created_at
        FROM stockpulse.predictions FINAL
        WHERE symbol = ? AND predict_date = ?
        LIMIT 1
    `
	p, err := scanPrediction(s.db.QueryRowContext(ctx, q, symbol, util.TruncateToDay(predictDate)))
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get prediction: %w", err)
	}
	return p, true, nil
}

func (s *CHPredictionStore) ListByDate(ctx context.Context, predictDate time.Time) ([]*models.Prediction, error) {
	const q = `
        SELECT symbol, name, board, price, predict_date, base_date, prob_up, signal, reason,
               rsi, above_bb, mom_weak, drawdown_5d, sentiment, train_rows, created_at
        FROM stockpulse.predictions FINAL
        WHERE predict_date = ?
        ORDER BY prob_up DESC
    `
	rows, err := s.db.QueryContext(ctx, q, util.TruncateToDay(predictDate))
	if err != nil {
		return nil, fmt.Errorf("list predictions: %w", err)
	}
	defer rows.Close()

	var out []*models.Prediction
	for rows.Next() {
		p, err := scanPrediction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan prediction: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanPrediction(r rowScanner) (*models.Prediction, error) {
	var p models.Prediction
	var board, signal string
	var aboveBB, momWeak uint8
	var trainRows int32
	err := r.Scan(&p.Symbol, &p.Name, &board, &p.Price, &p.PredictDate, &p.BaseDate, &p.ProbUp, &signal, &p.Reason,
		&p.RSI, &aboveBB, &momWeak, &p.Drawdown5D, &p.Sentiment, &trainRows, &p.CreatedAt)
	if err != nil {
		return nil, err
	}
	p.Board = models.Board(board)
	p.Signal = models.Signal(signal)
	p.AboveBB = aboveBB != 0
	p.MomWeak = momWeak != 0
	p.TrainRows = int(trainRows)
	return &p, nil
}

func boolToUInt8(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}
