package core

import "golang.org/x/exp/constraints"

// SeriesPoint is a render ready sample of a line series. Value is finite.
type SeriesPoint struct {
	Time  int64   `json:"time"`
	Value float64 `json:"value"`
}

// CandlePoint is a render ready OHLC sample.
type CandlePoint struct {
	Time  int64   `json:"time"`
	Open  float64 `json:"open"`
	High  float64 `json:"high"`
	Low   float64 `json:"low"`
	Close float64 `json:"close"`
}

// Clamp bounds v to [lo, hi].
func Clamp[T constraints.Ordered](v, lo, hi T) T {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
