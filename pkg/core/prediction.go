package core

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// Signal is the model verdict. The set is open: besides the known values
// the upstream has been seen returning composites such as "Hold/Sell".
type Signal string

const (
	Buy      Signal = "Buy"
	Sell     Signal = "Sell"
	Hold     Signal = "Hold"
	HoldSell Signal = "Hold/Sell"
)

// Tone is the colour family a signal is rendered with.
type Tone string

const (
	Bullish Tone = "bullish"
	Bearish Tone = "bearish"
	Neutral Tone = "neutral"
)

// Tone classifies s. A confident Hold reads as bearish; anything unknown is neutral.
func (s Signal) Tone(confidence float64) Tone {
	switch {
	case s == Buy:
		return Bullish
	case s == Sell:
		return Bearish
	case s == Hold && confidence > 75:
		return Bearish
	default:
		return Neutral
	}
}

// Hint is the one line explanation shown under Buy and Sell results.
func (s Signal) Hint() string {
	switch s {
	case Buy:
		return "Indicates a likely price increase."
	case Sell:
		return "Indicates a potential price decline."
	}
	return ""
}

var (
	ErrPredictionEmpty     = errors.New("prediction carries neither a signal nor an error")
	ErrPredictionAmbiguous = errors.New("prediction carries both a signal and an error")
)

// Prediction is the body of GET /predict. Either the signal triple or
// Error is populated.
type Prediction struct {
	Ticker      string  `json:"ticker,omitempty"`
	Signal      Signal  `json:"signal,omitempty"`
	Confidence  float64 `json:"confidence,omitempty"`
	Explanation string  `json:"explanation,omitempty"`
	Error       string  `json:"error,omitempty"`
}

// Failed reports whether the prediction is an error outcome.
func (p Prediction) Failed() bool { return p.Error != "" }

// Validate enforces the exclusive signal/error shape and the confidence range.
func (p Prediction) Validate() error {
	hasSignal := p.Signal != ""
	switch {
	case hasSignal && p.Failed():
		return ErrPredictionAmbiguous
	case !hasSignal && !p.Failed():
		return ErrPredictionEmpty
	case hasSignal && (math.IsNaN(p.Confidence) || p.Confidence < 0 || p.Confidence > 100):
		return fmt.Errorf("confidence %v outside [0, 100]", p.Confidence)
	}
	return nil
}

// HistoryEntry is one successful prediction kept in the session history.
type HistoryEntry struct {
	Prediction
	At time.Time `json:"at"`
}

// Label renders the entry the way the history list shows it, e.g. "AAPL Buy (82%)".
func (e HistoryEntry) Label() string {
	return fmt.Sprintf("%s %s (%s%%)", e.Ticker, e.Signal, FormatPercent(e.Confidence))
}

// FormatPercent prints whole numbers without decimals and anything else with one.
func FormatPercent(v float64) string {
	if v == math.Trunc(v) {
		return fmt.Sprintf("%.0f", v)
	}
	return fmt.Sprintf("%.1f", v)
}
