package features

import (
	"fmt"
	"math"

	"github.com/markcheno/go-talib"

	"StockPulse/internal/domain/models"
)

// MinBars is the shortest history the feature set can be computed on.
const MinBars = 60

// Features is one row of model input computed at a single bar.
type Features struct {
	Mom5        float64
	Mom20       float64
	MA5         float64
	MA20        float64
	MA60        float64
	MAAlign     float64
	PriceToMA20 float64
	RSI14       float64
	MACDDif     float64
	MACDDea     float64
	MACDHist    float64
	VolRatio5   float64
	BBPosition  float64
	BBWidth     float64
	MACDBull    float64 // 1 when the MACD histogram is positive
	AboveUpper  float64 // 1 when the close breaks the upper band
	BelowLower  float64 // 1 when the close breaks the lower band
}

// MACDBullish reports whether the MACD histogram is positive.
func (f *Features) MACDBullish() bool { return f.MACDHist > 0 }

// Columns returns the feature names in vector order.
func Columns() []string {
	return []string{
		"mom_5", "mom_20", "ma5", "ma20", "ma60", "ma_align",
		"price_to_ma20", "rsi_14", "macd_dif", "macd_dea", "macd_hist",
		"vol_ratio_5", "bb_position", "bb_width", "macd_bullish",
		"price_above_bb_upper", "price_below_bb_lower",
	}
}

// Vector renders the features in the fixed column order.
func (f *Features) Vector() []float64 {
	return []float64{
		f.Mom5, f.Mom20, f.MA5, f.MA20, f.MA60, f.MAAlign,
		f.PriceToMA20, f.RSI14, f.MACDDif, f.MACDDea, f.MACDHist,
		f.VolRatio5, f.BBPosition, f.BBWidth, f.MACDBull,
		f.AboveUpper, f.BelowLower,
	}
}

// Series precomputes rolling state over a bar history so features at
// any index can be read off cheaply.
type Series struct {
	closes  []float64
	volumes []float64
	dif     []float64
}

// NewSeries builds the rolling state for bars. Needs at least MinBars rows.
func NewSeries(bars []models.Bar) (*Series, error) {
	if len(bars) < MinBars {
		return nil, fmt.Errorf("need at least %d bars, have %d", MinBars, len(bars))
	}
	closes := make([]float64, len(bars))
	volumes := make([]float64, len(bars))
	for i, b := range bars {
		closes[i] = b.Close
		volumes[i] = b.Volume
	}

	ema12 := talib.Ema(closes, 12)
	ema26 := talib.Ema(closes, 26)
	dif := make([]float64, len(closes))
	for i := range dif {
		dif[i] = ema12[i] - ema26[i]
	}

	return &Series{closes: closes, volumes: volumes, dif: dif}, nil
}

// Len returns the number of bars in the series.
func (s *Series) Len() int { return len(s.closes) }

// At computes the feature row at index idx. idx must be at least
// MinBars-1.
func (s *Series) At(idx int) (*Features, error) {
	if idx < MinBars-1 || idx >= len(s.closes) {
		return nil, fmt.Errorf("index %d outside computable range [%d, %d]", idx, MinBars-1, len(s.closes)-1)
	}

	c := s.closes[idx]
	f := &Features{}

	f.Mom5 = momentum(s.closes, idx, 5)
	f.Mom20 = momentum(s.closes, idx, 20)

	f.MA5 = mean(s.closes[idx-4 : idx+1])
	f.MA20 = mean(s.closes[idx-19 : idx+1])
	f.MA60 = mean(s.closes[idx-59 : idx+1])

	if f.MA5 > f.MA20 && f.MA20 > f.MA60 {
		f.MAAlign = 1
	}
	if f.MA20 != 0 {
		f.PriceToMA20 = c/f.MA20 - 1
	}

	f.RSI14 = rsi14(s.closes, idx)
	f.MACDDif = s.dif[idx]
	f.MACDDea = mean(s.dif[idx-8 : idx+1])
	f.MACDHist = (f.MACDDif - f.MACDDea) * 2

	f.VolRatio5 = volRatio(s.volumes, idx, 5)
	f.BBPosition, f.BBWidth = bollinger(s.closes, idx)
	f.MACDBull = flag(f.MACDHist > 0)
	f.AboveUpper = flag(s.AboveUpperBand(idx))
	f.BelowLower = flag(s.BelowLowerBand(idx))

	return f, nil
}

func flag(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// Last computes the feature row at the final bar.
func (s *Series) Last() (*Features, error) {
	return s.At(len(s.closes) - 1)
}

// Compute builds the feature row for the latest bar of a history.
func Compute(bars []models.Bar) (*Features, error) {
	s, err := NewSeries(bars)
	if err != nil {
		return nil, err
	}
	return s.Last()
}

func momentum(closes []float64, idx, n int) float64 {
	if idx < n || closes[idx-n] == 0 {
		return 0
	}
	return closes[idx]/closes[idx-n] - 1
}

// rsi14 is a plain-average RSI over the last 14 close-to-close moves.
// A flat or loss-free window degrades to the neutral 50.
func rsi14(closes []float64, idx int) float64 {
	const period = 14
	if idx < period {
		return 50
	}
	var gain, loss float64
	for i := idx - period + 1; i <= idx; i++ {
		d := closes[i] - closes[i-1]
		if d > 0 {
			gain += d
		} else {
			loss -= d
		}
	}
	gain /= period
	loss /= period
	if loss == 0 {
		return 50
	}
	rs := gain / loss
	return 100 - 100/(1+rs)
}

func volRatio(volumes []float64, idx, n int) float64 {
	if idx < n-1 {
		return 1
	}
	m := mean(volumes[idx-n+1 : idx+1])
	if m == 0 {
		return 1
	}
	return volumes[idx] / m
}

// bollinger places the close inside 20-day two-sigma Bollinger bands,
// using the sample standard deviation, and reports the band width
// relative to the middle band. Collapsed bands give position 0.5.
func bollinger(closes []float64, idx int) (position, width float64) {
	const period = 20
	if idx < period-1 {
		return 0.5, 0
	}
	window := closes[idx-period+1 : idx+1]
	mid := mean(window)
	sd := sampleStd(window, mid)
	upper := mid + 2*sd
	lower := mid - 2*sd
	if mid != 0 {
		width = (upper - lower) / mid
	}
	if upper == lower {
		return 0.5, width
	}
	return (closes[idx] - lower) / (upper - lower), width
}

// AboveUpperBand reports whether the close at idx sits above the upper
// Bollinger band.
func (s *Series) AboveUpperBand(idx int) bool {
	const period = 20
	if idx < period-1 {
		return false
	}
	window := s.closes[idx-period+1 : idx+1]
	mid := mean(window)
	sd := sampleStd(window, mid)
	return s.closes[idx] > mid+2*sd
}

// BelowLowerBand reports whether the close at idx sits below the lower
// Bollinger band.
func (s *Series) BelowLowerBand(idx int) bool {
	const period = 20
	if idx < period-1 {
		return false
	}
	window := s.closes[idx-period+1 : idx+1]
	mid := mean(window)
	sd := sampleStd(window, mid)
	return s.closes[idx] < mid-2*sd
}

// MomentumWeakening reports whether 5-day momentum dropped to less
// than half of the preceding 5-day stretch. Needs 11 bars.
func MomentumWeakening(closes []float64, idx int) bool {
	if idx < 10 {
		return false
	}
	if closes[idx-5] == 0 || closes[idx-10] == 0 {
		return false
	}
	recent := closes[idx]/closes[idx-5] - 1
	prev := closes[idx-5]/closes[idx-10] - 1
	if prev == 0 {
		return false
	}
	return recent < prev*0.5
}

// Drawdown5D is the pullback of the close from its 5-day high.
func Drawdown5D(closes []float64, idx int) float64 {
	if idx < 0 {
		return 0
	}
	lo := idx - 4
	if lo < 0 {
		lo = 0
	}
	high := closes[lo]
	for _, c := range closes[lo : idx+1] {
		if c > high {
			high = c
		}
	}
	if high == 0 {
		return 0
	}
	return (high - closes[idx]) / high
}

// Closes exposes the underlying close series for factor helpers.
func (s *Series) Closes() []float64 { return s.closes }

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

func sampleStd(xs []float64, m float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	var ss float64
	for _, x := range xs {
		d := x - m
		ss += d * d
	}
	return math.Sqrt(ss / float64(len(xs)-1))
}
