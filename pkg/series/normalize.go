// Package series turns raw history rows into the sorted, validated series
// the chart consumes.
package series

import (
	"slices"

	"github.com/raykavin/signalsense/pkg/core"
	"github.com/samber/lo"
)

// MinLinePoints is the fewest points an overlay needs to be drawn.
const MinLinePoints = 2

// Set is every render ready series derived from one history payload.
type Set struct {
	Candles  []core.CandlePoint
	Close    []core.SeriesPoint
	Overlays map[core.IndicatorKey][]core.SeriesPoint
}

// Overlay returns the series for key, or nil when it is too short to draw.
func (s Set) Overlay(key core.IndicatorKey) []core.SeriesPoint {
	return s.Overlays[key]
}

// Empty reports whether there is nothing to plot.
func (s Set) Empty() bool {
	return len(s.Candles) == 0
}

// Normalize derives every series from points. Overlays with fewer than
// MinLinePoints samples are left out. points is not modified.
func Normalize(points []core.PricePoint) Set {
	set := Set{
		Candles:  Candles(points),
		Close:    Line(points, core.Close),
		Overlays: make(map[core.IndicatorKey][]core.SeriesPoint),
	}

	for _, key := range core.OverlayOrder {
		if line := Line(points, key); len(line) >= MinLinePoints {
			set.Overlays[key] = line
		}
	}

	return set
}

// Candles keeps points whose OHLC fields are all finite, sorted by time.
func Candles(points []core.PricePoint) []core.CandlePoint {
	candles := lo.FilterMap(points, func(p core.PricePoint, _ int) (core.CandlePoint, bool) {
		ts, err := ParseTime(p)
		if err != nil {
			return core.CandlePoint{}, false
		}

		open, okOpen := p.Open.Float()
		high, okHigh := p.High.Float()
		low, okLow := p.Low.Float()
		closing, okClose := p.Close.Float()
		if !okOpen || !okHigh || !okLow || !okClose {
			return core.CandlePoint{}, false
		}

		return core.CandlePoint{Time: ts, Open: open, High: high, Low: low, Close: closing}, true
	})

	return sortUnique(candles, func(c core.CandlePoint) int64 { return c.Time })
}

// Line keeps points whose key column is a finite number, sorted by time.
func Line(points []core.PricePoint, key core.IndicatorKey) []core.SeriesPoint {
	line := lo.FilterMap(points, func(p core.PricePoint, _ int) (core.SeriesPoint, bool) {
		v, ok := p.Field(key).Float()
		if !ok {
			return core.SeriesPoint{}, false
		}
		ts, err := ParseTime(p)
		if err != nil {
			return core.SeriesPoint{}, false
		}
		return core.SeriesPoint{Time: ts, Value: v}, true
	})

	return sortUnique(line, func(s core.SeriesPoint) int64 { return s.Time })
}

// sortUnique orders items by time; for repeated timestamps the item that
// arrived last wins.
func sortUnique[T any](items []T, timeOf func(T) int64) []T {
	slices.SortStableFunc(items, func(a, b T) int {
		ta, tb := timeOf(a), timeOf(b)
		switch {
		case ta < tb:
			return -1
		case ta > tb:
			return 1
		}
		return 0
	})

	out := items[:0]
	for i, item := range items {
		if i+1 < len(items) && timeOf(items[i+1]) == timeOf(item) {
			continue
		}
		out = append(out, item)
	}
	return out
}
