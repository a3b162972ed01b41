package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"StockPulse/internal/domain/models"
	"StockPulse/pkg/util"
)

// MemoryBarStore is an in-memory BarStore used in tests and local runs.
type MemoryBarStore struct {
	mu   sync.RWMutex
	bars map[string]map[string]models.Bar // symbol -> date -> bar
}

func NewMemoryBarStore() *MemoryBarStore {
	return &MemoryBarStore{bars: make(map[string]map[string]models.Bar)}
}

func (s *MemoryBarStore) Init(ctx context.Context) error { return nil }

func (s *MemoryBarStore) Upsert(ctx context.Context, bars []models.Bar) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, b := range bars {
		if b.Symbol == "" || b.Date.IsZero() {
			continue
		}
		days, ok := s.bars[b.Symbol]
		if !ok {
			days = make(map[string]models.Bar)
			s.bars[b.Symbol] = days
		}
		key := util.FormatDate(b.Date)
		if old, ok := days[key]; !ok || !b.UpdateTime.Before(old.UpdateTime) {
			days[key] = b
		}
	}
	return nil
}

func (s *MemoryBarStore) Query(ctx context.Context, symbol string, from, to time.Time) ([]models.Bar, error) {
	from = util.TruncateToDay(from)
	to = util.TruncateToDay(to)

	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Bar
	for _, b := range s.bars[symbol] {
		d := util.TruncateToDay(b.Date)
		if !d.Before(from) && !d.After(to) {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

func (s *MemoryBarStore) Latest(ctx context.Context, symbol string) (models.Bar, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var latest models.Bar
	found := false
	for _, b := range s.bars[symbol] {
		if !found || b.Date.After(latest.Date) {
			latest = b
			found = true
		}
	}
	return latest, found, nil
}

func (s *MemoryBarStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) error {
	cutoff = util.TruncateToDay(cutoff)
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, days := range s.bars {
		for key, b := range days {
			if util.TruncateToDay(b.Date).Before(cutoff) {
				delete(days, key)
			}
		}
	}
	return nil
}

func (s *MemoryBarStore) Health(ctx context.Context) error { return nil }
func (s *MemoryBarStore) Close() error                     { return nil }

// MemoryPredictionStore is an in-memory PredictionStore.
type MemoryPredictionStore struct {
	mu    sync.RWMutex
	preds map[string]*models.Prediction // symbol|date -> prediction
}

func NewMemoryPredictionStore() *MemoryPredictionStore {
	return &MemoryPredictionStore{preds: make(map[string]*models.Prediction)}
}

func predKey(symbol string, date time.Time) string {
	return symbol + "|" + util.FormatDate(date)
}

func (s *MemoryPredictionStore) Upsert(ctx context.Context, p *models.Prediction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *p
	s.preds[predKey(p.Symbol, p.PredictDate)] = &cp
	return nil
}

func (s *MemoryPredictionStore) Get(ctx context.Context, symbol string, predictDate time.Time) (*models.Prediction, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.preds[predKey(symbol, predictDate)]
	if !ok {
		return nil, false, nil
	}
	cp := *p
	return &cp, true, nil
}

func (s *MemoryPredictionStore) ListByDate(ctx context.Context, predictDate time.Time) ([]*models.Prediction, error) {
	day := util.FormatDate(predictDate)
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Prediction
	for _, p := range s.preds {
		if util.FormatDate(p.PredictDate) == day {
			cp := *p
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProbUp > out[j].ProbUp })
	return out, nil
}

// MemoryBacktestStore is an in-memory BacktestStore.
type MemoryBacktestStore struct {
	mu      sync.Mutex
	Singles []*models.BacktestResult
	Scans   []*models.ScanResult
}

func NewMemoryBacktestStore() *MemoryBacktestStore { return &MemoryBacktestStore{} }

func (s *MemoryBacktestStore) SaveSingle(ctx context.Context, r *models.BacktestResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *r
	s.Singles = append(s.Singles, &cp)
	return nil
}

func (s *MemoryBacktestStore) SaveScan(ctx context.Context, r *models.ScanResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *r
	s.Scans = append(s.Scans, &cp)
	return nil
}

// MemoryStockStore is an in-memory StockStore.
type MemoryStockStore struct {
	mu     sync.RWMutex
	stocks []models.Stock
}

func NewMemoryStockStore() *MemoryStockStore { return &MemoryStockStore{} }

func (s *MemoryStockStore) Replace(ctx context.Context, stocks []models.Stock) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stocks = append([]models.Stock(nil), stocks...)
	return nil
}

func (s *MemoryStockStore) List(ctx context.Context, board models.Board) ([]models.Stock, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Stock
	for _, st := range s.stocks {
		if board == "" || st.Board == board {
			out = append(out, st)
		}
	}
	return out, nil
}
