package predictor

import (
	"fmt"
	"strings"

	"StockPulse/internal/domain/models"
)

// Factors is the snapshot a signal decision is made from.
type Factors struct {
	ProbUp     float64
	RSI        float64
	AboveBB    bool
	MomWeak    bool
	Drawdown5D float64
	Sentiment  float64
}

// Decide maps a probability and its risk factors to a trading signal.
// Entry requires conviction with none of the overheating marks set;
// any single risk mark is enough to cut back.
func Decide(f Factors) models.Signal {
	switch {
	case f.ProbUp > 0.60 && f.RSI < 70 && !f.AboveBB && !f.MomWeak:
		return models.SignalEnter
	case f.ProbUp > 0.55 && f.RSI < 75:
		return models.SignalHold
	case f.ProbUp < 0.50 || f.RSI > 75 || (f.AboveBB && f.MomWeak) || f.Drawdown5D > 0.08:
		return models.SignalReduce
	default:
		return models.SignalHold
	}
}

// Rationale renders the factor snapshot as a human-readable reason.
func Rationale(f Factors, sig models.Signal) string {
	parts := []string{
		fmt.Sprintf("up probability %.1f%%", f.ProbUp*100),
		fmt.Sprintf("rsi %.1f", f.RSI),
	}
	if f.AboveBB {
		parts = append(parts, "close above upper band")
	}
	if f.MomWeak {
		parts = append(parts, "momentum weakening")
	}
	if f.Drawdown5D > 0.08 {
		parts = append(parts, fmt.Sprintf("pulled back %.1f%% from 5-day high", f.Drawdown5D*100))
	}
	switch {
	case f.Sentiment > 0.2:
		parts = append(parts, "sentiment positive")
	case f.Sentiment < -0.2:
		parts = append(parts, "sentiment negative")
	}
	return string(sig) + ": " + strings.Join(parts, ", ")
}
