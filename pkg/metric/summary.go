// Package metric holds the prometheus collectors and the statistics shown
// for the prediction history.
package metric

import (
	"slices"

	"github.com/raykavin/signalsense/pkg/core"
	"github.com/samber/lo"
	"gonum.org/v1/gonum/stat"
)

// Summary describes the predictions collected during a session.
type Summary struct {
	Count            int                 `json:"count"`
	MeanConfidence   float64             `json:"meanConfidence"`
	StdDevConfidence float64             `json:"stddevConfidence"`
	MedianConfidence float64             `json:"medianConfidence"`
	BySignal         map[core.Signal]int `json:"bySignal"`
	ByTone           map[core.Tone]int   `json:"byTone"`
	Tickers          []string            `json:"tickers"`
}

// Summarize computes the confidence statistics of entries.
func Summarize(entries []core.HistoryEntry) Summary {
	summary := Summary{
		Count:    len(entries),
		BySignal: make(map[core.Signal]int),
		ByTone:   make(map[core.Tone]int),
		Tickers:  []string{},
	}
	if len(entries) == 0 {
		return summary
	}

	confidences := lo.Map(entries, func(e core.HistoryEntry, _ int) float64 { return e.Confidence })
	for _, e := range entries {
		summary.BySignal[e.Signal]++
		summary.ByTone[e.Signal.Tone(e.Confidence)]++
	}

	summary.Tickers = lo.Uniq(lo.Map(entries, func(e core.HistoryEntry, _ int) string { return e.Ticker }))

	if len(confidences) > 1 {
		summary.MeanConfidence, summary.StdDevConfidence = stat.MeanStdDev(confidences, nil)
	} else {
		summary.MeanConfidence = confidences[0]
	}

	sorted := slices.Clone(confidences)
	slices.Sort(sorted)
	summary.MedianConfidence = stat.Quantile(0.5, stat.Empirical, sorted, nil)

	return summary
}

// DailyReturns converts ascending closes into fractional period returns.
func DailyReturns(closes []float64) []float64 {
	returns := make([]float64, 0, max(len(closes)-1, 0))
	for i := 1; i < len(closes); i++ {
		if closes[i-1] == 0 {
			continue
		}
		returns = append(returns, closes[i]/closes[i-1]-1)
	}
	return returns
}
