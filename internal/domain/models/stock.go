package models

import "strings"

// Board classifies a listing venue segment.
type Board string

const (
	BoardMain    Board = "main"
	BoardChiNext Board = "chinext"
	BoardSTAR    Board = "star"
)

// Stock is one tradable listing in the universe.
type Stock struct {
	Symbol string
	Name   string
	Board  Board
}

// BoardFor derives the board segment from a symbol prefix.
func BoardFor(symbol string) Board {
	switch {
	case strings.HasPrefix(symbol, "688"):
		return BoardSTAR
	case strings.HasPrefix(symbol, "300"):
		return BoardChiNext
	default:
		return BoardMain
	}
}

// Sentiment is a per-symbol market mood score in [-1, 1].
type Sentiment struct {
	Symbol string
	Score  float64
	Label  string // "bullish", "bearish", "neutral" or "unknown"
}
