package dashboard

import (
	"time"

	"github.com/raykavin/signalsense/pkg/animation"
	"github.com/raykavin/signalsense/pkg/core"
	"github.com/raykavin/signalsense/pkg/metric"
)

// View is a by-value snapshot of everything the page renders.
type View struct {
	Symbol   string       `json:"symbol"`
	Ticker   string       `json:"ticker"`
	Range    core.Range   `json:"range"`
	Ranges   []RangeView  `json:"ranges"`
	Loading  bool         `json:"loading"`
	Splash   bool         `json:"splash"`
	DarkMode bool         `json:"darkMode"`
	Toggles  core.Toggles `json:"toggles"`

	Result      *ResultView     `json:"result,omitempty"`
	ResultError string          `json:"resultError,omitempty"`
	InputError  string          `json:"inputError,omitempty"`
	Confidence  animation.Gauge `json:"confidence"`

	History      []HistoryView  `json:"history"`
	Summary      metric.Summary `json:"summary"`
	HistoryError string         `json:"historyError,omitempty"`
	Candles      int            `json:"candles"`
	Overlays     []string       `json:"overlays"`
	Latest       *LatestView    `json:"latest,omitempty"`

	Glossary map[string]string `json:"glossary,omitempty"`
}

// RangeView is one button of the range selector.
type RangeView struct {
	Value    core.Range `json:"value"`
	Label    string     `json:"label"`
	Selected bool       `json:"selected"`
}

// ResultView is the prediction panel.
type ResultView struct {
	Ticker      string    `json:"ticker"`
	Signal      string    `json:"signal"`
	Tone        core.Tone `json:"tone"`
	Hint        string    `json:"hint,omitempty"`
	Confidence  float64   `json:"confidence"`
	Explanation []Token   `json:"explanation"`
}

// HistoryView is one line of the prediction history list.
type HistoryView struct {
	Label      string    `json:"label"`
	Ticker     string    `json:"ticker"`
	Signal     string    `json:"signal"`
	Confidence float64   `json:"confidence"`
	Tone       core.Tone `json:"tone"`
	At         time.Time `json:"at"`
}

// LatestView is the most recent polled close.
type LatestView struct {
	Ticker string  `json:"ticker"`
	Date   string  `json:"date"`
	Close  float64 `json:"close"`
}

func newResultView(p core.Prediction, glossary map[string]string) *ResultView {
	return &ResultView{
		Ticker:      p.Ticker,
		Signal:      string(p.Signal),
		Tone:        p.Signal.Tone(p.Confidence),
		Hint:        p.Signal.Hint(),
		Confidence:  p.Confidence,
		Explanation: Tokenize(p.Explanation, glossary),
	}
}

func newHistoryView(e core.HistoryEntry) HistoryView {
	return HistoryView{
		Label:      e.Label(),
		Ticker:     e.Ticker,
		Signal:     string(e.Signal),
		Confidence: e.Confidence,
		Tone:       e.Signal.Tone(e.Confidence),
		At:         e.At,
	}
}
