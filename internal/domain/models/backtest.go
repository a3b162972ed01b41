package models

import "time"

// Trade is one executed round-trip leg in a single-symbol backtest.
type Trade struct {
	Date       time.Time
	Action     string // "buy" or "sell"
	Price      float64
	Shares     int
	Cost       float64
	TotalValue float64
}

// BacktestResult holds the metrics of a single-symbol walk-forward run.
type BacktestResult struct {
	Symbol           string
	Start            time.Time
	End              time.Time
	InitialCapital   float64
	FinalValue       float64
	CumulativeReturn float64
	AnnualizedReturn float64
	MaxDrawdown      float64
	SharpeRatio      float64
	WinRate          float64
	TradeCount       int
	Trades           []Trade
	CreatedAt        time.Time
}

// ScanResult holds the metrics of a cross-sectional top-k strategy run.
type ScanResult struct {
	Board            string
	Start            time.Time
	End              time.Time
	TopK             int
	MinProb          float64
	Symbols          int
	Days             int
	TotalReturn      float64
	AnnualizedReturn float64
	Volatility       float64
	SharpeRatio      float64
	MaxDrawdown      float64
	WinRate          float64
	NAV              []float64
	CreatedAt        time.Time
}
