package backtest

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

const tradingDaysPerYear = 252

// maxDrawdown is the deepest peak-to-trough loss of an equity curve.
func maxDrawdown(equity []float64) float64 {
	var peak, worst float64
	for _, v := range equity {
		if v > peak {
			peak = v
		}
		if peak > 0 {
			dd := (peak - v) / peak
			if dd > worst {
				worst = dd
			}
		}
	}
	return worst
}

// sharpe annualizes the mean/vol ratio of daily returns. A flat return
// stream has no meaningful ratio and yields 0.
func sharpe(dailyReturns []float64) float64 {
	if len(dailyReturns) < 2 {
		return 0
	}
	mean := stat.Mean(dailyReturns, nil)
	sd := stat.StdDev(dailyReturns, nil)
	if sd == 0 {
		return 0
	}
	return mean / sd * math.Sqrt(tradingDaysPerYear)
}

// scanSharpe is the annualized compound return over annualized
// volatility, the form the cross-sectional rotation reports. Zero
// volatility yields 0.
func scanSharpe(annualizedReturn float64, dailyReturns []float64) float64 {
	vol := annualizedVol(dailyReturns)
	if vol == 0 {
		return 0
	}
	return annualizedReturn / vol
}

// annualizedVol scales daily return volatility to a yearly figure.
func annualizedVol(dailyReturns []float64) float64 {
	if len(dailyReturns) < 2 {
		return 0
	}
	return stat.StdDev(dailyReturns, nil) * math.Sqrt(tradingDaysPerYear)
}

// dailyReturns derives simple returns from an equity curve.
func dailyReturns(equity []float64) []float64 {
	if len(equity) < 2 {
		return nil
	}
	out := make([]float64, 0, len(equity)-1)
	for i := 1; i < len(equity); i++ {
		if equity[i-1] == 0 {
			out = append(out, 0)
			continue
		}
		out = append(out, equity[i]/equity[i-1]-1)
	}
	return out
}
