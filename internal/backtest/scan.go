package backtest

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"StockPulse/internal/domain/models"
	"StockPulse/internal/features"
	"StockPulse/internal/ml"
	applogger "StockPulse/pkg/logger"
	"StockPulse/pkg/util"
)

const (
	scanLookback = trainWindow
	// scanMinRows is the lookback plus headroom a symbol needs to
	// participate in the cross-section.
	scanMinRows = scanLookback + 50
	// commonDateProbe is how many symbols vote on the shared date axis.
	commonDateProbe = 5
)

// ScanParams parametrize a cross-sectional run.
type ScanParams struct {
	Board      models.Board
	Start      time.Time
	End        time.Time
	TopK       int
	MinProb    float64
	MaxSymbols int
}

// RunScan replays an equal-weight top-k rotation across a board: each
// day rank all symbols by model probability and hold the best k for
// the next day.
func (e *Engine) RunScan(ctx context.Context, universe []models.Stock, params ScanParams) (*models.ScanResult, error) {
	began := time.Now()
	defer func() {
		e.metrics.RecordLatency("backtest_scan", time.Since(began).Seconds())
	}()

	if params.TopK <= 0 {
		params.TopK = 5
	}
	if params.MaxSymbols <= 0 {
		params.MaxSymbols = 100
	}

	histories := e.collect(ctx, universe, params)
	if len(histories) == 0 {
		return nil, fmt.Errorf("scan %s: no symbol has %d rows in period", params.Board, scanMinRows)
	}

	dates := commonDates(histories)
	if len(dates) <= scanLookback+1 {
		return nil, fmt.Errorf("scan %s: %d shared dates, need more than %d", params.Board, len(dates), scanLookback+1)
	}

	probs, closes, err := e.probabilities(ctx, histories, dates)
	if err != nil {
		return nil, err
	}

	nav := []float64{1}
	var winDays int
	// day i ranks with data through i, earns the i -> i+1 move
	for i := scanLookback; i < len(dates)-1; i++ {
		picks := topPicks(probs, i, params.TopK, params.MinProb)
		ret := 0.0
		held := 0
		for _, sym := range picks {
			prev := closes[sym][i]
			next := closes[sym][i+1]
			// a symbol absent on either side of the move sits out
			if prev <= 0 || next <= 0 {
				continue
			}
			ret += next/prev - 1
			held++
		}
		if held > 0 {
			ret /= float64(held)
		}
		nav = append(nav, nav[len(nav)-1]*(1+ret))
		if ret > 0 {
			winDays++
		}
	}

	n := len(nav) - 1
	total := nav[len(nav)-1] - 1
	annualized := 0.0
	if n > 0 {
		annualized = math.Pow(1+total, tradingDaysPerYear/float64(n)) - 1
	}
	rets := dailyReturns(nav)

	result := &models.ScanResult{
		Board:            string(params.Board),
		Start:            dates[scanLookback],
		End:              dates[len(dates)-1],
		TopK:             params.TopK,
		MinProb:          params.MinProb,
		Symbols:          len(histories),
		Days:             n,
		TotalReturn:      total,
		AnnualizedReturn: annualized,
		Volatility:       annualizedVol(rets),
		SharpeRatio:      scanSharpe(annualized, rets),
		MaxDrawdown:      maxDrawdown(nav),
		WinRate:          float64(winDays) / float64(n),
		NAV:              nav,
		CreatedAt:        time.Now(),
	}

	if err := e.store.SaveScan(ctx, result); err != nil {
		return nil, fmt.Errorf("save scan %s: %w", params.Board, err)
	}
	e.l.Info("scan backtest complete",
		applogger.String("board", result.Board),
		applogger.Int("symbols", result.Symbols),
		applogger.Int("days", result.Days),
		applogger.Float64("total_return", result.TotalReturn),
	)
	return result, nil
}

// collect resolves and clips each candidate history, dropping symbols
// with too little data and capping the cross-section size.
func (e *Engine) collect(ctx context.Context, universe []models.Stock, params ScanParams) map[string][]models.Bar {
	histories := make(map[string][]models.Bar)
	for _, st := range universe {
		if len(histories) >= params.MaxSymbols {
			break
		}
		if params.Board != "" && st.Board != params.Board {
			continue
		}
		res, err := e.fetcher.Bars(ctx, st.Symbol)
		if err != nil {
			continue
		}
		bars := clipPeriod(res.Bars, params.Start, params.End)
		if len(bars) < scanMinRows {
			continue
		}
		histories[st.Symbol] = bars
	}
	return histories
}

// commonDates intersects the date axes of the first few symbols; the
// rest are aligned to it by lookup.
func commonDates(histories map[string][]models.Bar) []time.Time {
	symbols := make([]string, 0, len(histories))
	for sym := range histories {
		symbols = append(symbols, sym)
	}
	sort.Strings(symbols)
	probe := symbols
	if len(probe) > commonDateProbe {
		probe = probe[:commonDateProbe]
	}

	counts := make(map[string]int)
	var order []time.Time
	for _, sym := range probe {
		for _, b := range histories[sym] {
			key := util.FormatDate(b.Date)
			counts[key]++
			if counts[key] == len(probe) {
				order = append(order, util.TruncateToDay(b.Date))
			}
		}
	}
	sort.Slice(order, func(i, j int) bool { return order[i].Before(order[j]) })
	return order
}

// probabilities trains per-symbol walk-forward models and fills a
// probability and close matrix aligned to the shared dates. Symbols
// missing a date carry a zero probability for it.
func (e *Engine) probabilities(ctx context.Context, histories map[string][]models.Bar, dates []time.Time) (map[string][]float64, map[string][]float64, error) {
	probs := make(map[string][]float64, len(histories))
	closes := make(map[string][]float64, len(histories))

	for sym, bars := range histories {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		idxByDate := make(map[string]int, len(bars))
		for i, b := range bars {
			idxByDate[util.FormatDate(b.Date)] = i
		}

		series, err := features.NewSeries(bars)
		if err != nil {
			continue
		}
		cl := series.Closes()

		symProbs := make([]float64, len(dates))
		symCloses := make([]float64, len(dates))

		var clf *ml.Classifier
		lastTrained := -1
		for di, d := range dates {
			bi, ok := idxByDate[util.FormatDate(d)]
			if !ok {
				continue
			}
			symCloses[di] = cl[bi]
			if bi < features.MinBars-1 {
				continue
			}
			if lastTrained < 0 || bi-lastTrained >= testWindow {
				clf = e.trainBlock(series, cl, bi)
				lastTrained = bi
			}
			if clf == nil {
				continue
			}
			f, err := series.At(bi)
			if err != nil {
				continue
			}
			p, err := clf.PredictProba(f.Vector())
			if err != nil {
				continue
			}
			symProbs[di] = p
		}
		probs[sym] = symProbs
		closes[sym] = symCloses
	}
	if len(probs) == 0 {
		return nil, nil, fmt.Errorf("no symbol produced probabilities")
	}
	return probs, closes, nil
}

// topPicks returns up to k symbols whose probability at day idx clears
// the floor, best first. Ties break by symbol for determinism.
func topPicks(probs map[string][]float64, idx, k int, minProb float64) []string {
	type cand struct {
		sym string
		p   float64
	}
	var cands []cand
	for sym, ps := range probs {
		if idx < len(ps) && ps[idx] >= minProb && ps[idx] > 0 {
			cands = append(cands, cand{sym, ps[idx]})
		}
	}
	sort.Slice(cands, func(i, j int) bool {
		if cands[i].p != cands[j].p {
			return cands[i].p > cands[j].p
		}
		return cands[i].sym < cands[j].sym
	})
	if len(cands) > k {
		cands = cands[:k]
	}
	out := make([]string, len(cands))
	for i, c := range cands {
		out[i] = c.sym
	}
	return out
}
