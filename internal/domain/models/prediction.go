package models

import "time"

// Signal is the discrete trading action derived from a prediction.
type Signal string

const (
	SignalEnter  Signal = "enter"
	SignalHold   Signal = "hold"
	SignalReduce Signal = "reduce"
)

// Prediction is a next-day up-probability for one symbol, together with
// the signal and the factor snapshot it was derived from.
type Prediction struct {
	Symbol      string
	Name        string
	Board       Board
	Price       float64   // close on the base date
	PredictDate time.Time // the trading day being predicted
	BaseDate    time.Time // the latest bar the model saw
	ProbUp      float64
	Signal      Signal
	Reason      string

	// Factor snapshot at the base date.
	RSI        float64
	AboveBB    bool
	MomWeak    bool
	Drawdown5D float64
	Sentiment  float64

	TrainRows int
	CreatedAt time.Time
}

// SignalEvent is the payload published to the signal topic.
type SignalEvent struct {
	Symbol      string    `json:"symbol"`
	PredictDate string    `json:"predict_date"`
	Price       float64   `json:"price"`
	ProbUp      float64   `json:"prob_up"`
	Signal      Signal    `json:"signal"`
	Reason      string    `json:"reason"`
	EmittedAt   time.Time `json:"emitted_at"`
}
