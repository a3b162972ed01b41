package backtest

import (
	"math"
	"testing"
)

func TestScanSharpeIsReturnOverVol(t *testing.T) {
	rets := []float64{0.01, -0.005, 0.008, 0.002, -0.001}
	annualized := 0.25

	got := scanSharpe(annualized, rets)
	want := annualized / annualizedVol(rets)
	if math.Abs(got-want) > 1e-12 {
		t.Errorf("scan sharpe = %v, want %v", got, want)
	}
}

func TestScanSharpeZeroVol(t *testing.T) {
	if got := scanSharpe(0.1, []float64{0.01, 0.01, 0.01}); got != 0 {
		t.Errorf("zero-vol sharpe = %v, want 0", got)
	}
	if got := scanSharpe(0.1, []float64{0.01}); got != 0 {
		t.Errorf("short-series sharpe = %v, want 0", got)
	}
}

func TestMaxDrawdown(t *testing.T) {
	equity := []float64{1, 1.2, 0.9, 1.1, 1.3}
	want := (1.2 - 0.9) / 1.2
	if got := maxDrawdown(equity); math.Abs(got-want) > 1e-12 {
		t.Errorf("max drawdown = %v, want %v", got, want)
	}
}
