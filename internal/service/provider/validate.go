package provider

import (
	"StockPulse/internal/domain/models"
)

const (
	minValidClose = 0.1
	maxValidClose = 1000
)

// validBar reports whether a bar passes sanity checks. Upstream feeds
// occasionally emit zero-priced or negative-volume rows around halts.
func validBar(b models.Bar) bool {
	if b.Close <= minValidClose || b.Close >= maxValidClose {
		return false
	}
	if b.Volume < 0 {
		return false
	}
	if b.Open <= 0 || b.High <= 0 || b.Low <= 0 {
		return false
	}
	return true
}

// filterValid drops invalid bars, keeping order.
func filterValid(bars []models.Bar) []models.Bar {
	out := bars[:0]
	for _, b := range bars {
		if validBar(b) {
			out = append(out, b)
		}
	}
	return out
}
