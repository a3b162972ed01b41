package models

import "time"

// Bar represents one daily OHLCV record for a symbol.
type Bar struct {
	Symbol     string
	Date       time.Time
	Open       float64
	High       float64
	Low        float64
	Close      float64
	Volume     float64 // shares, not lots
	UpdateTime time.Time
}

// FetchSource identifies where a batch of bars came from.
type FetchSource string

const (
	SourceStore     FetchSource = "store"
	SourcePrimary   FetchSource = "primary"
	SourceSecondary FetchSource = "secondary"
	SourceNone      FetchSource = "none"
)

// FetchResult is the outcome of resolving bars for one symbol.
type FetchResult struct {
	Symbol string
	Bars   []Bar
	Source FetchSource
}

// Latest returns the most recent bar, or false when empty.
func (r *FetchResult) Latest() (Bar, bool) {
	if len(r.Bars) == 0 {
		return Bar{}, false
	}
	return r.Bars[len(r.Bars)-1], true
}
