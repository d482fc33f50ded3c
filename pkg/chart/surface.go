// Package chart owns the single live chart instance of a dashboard and
// rebuilds it whenever the data, the visible overlays, the theme or the
// container change.
package chart

import (
	"errors"

	"github.com/raykavin/signalsense/pkg/core"
)

var ErrNoContainer = errors.New("chart container is not available")

// Surface is one live chart instance. After Dispose no method may be called.
type Surface interface {
	ID() string
	SetCandles(candles []core.CandlePoint)
	AddLine(spec LineSpec) Line
	FitContent()
	Dispose()
}

// Line is a line series attached to a Surface.
type Line interface {
	SetData(points []core.SeriesPoint)
}

// Factory creates surfaces inside a container.
type Factory interface {
	Create(container string, options Options) (Surface, error)
}

// Options sizes and colours a new surface.
type Options struct {
	Width  int   `json:"width"`
	Height int   `json:"height"`
	Theme  Theme `json:"theme"`
}

// Margins reserve a fraction of the pane above and below a price scale.
type Margins struct {
	Top    float64 `json:"top"`
	Bottom float64 `json:"bottom"`
}

// LineSpec describes a line series. An empty PriceScale shares the main
// price axis.
type LineSpec struct {
	Key        core.IndicatorKey `json:"key"`
	Color      string            `json:"color"`
	Width      int               `json:"width"`
	PriceScale string            `json:"priceScaleId,omitempty"`
	Margins    *Margins          `json:"scaleMargins,omitempty"`
}

// RSIScale is the separate price scale the RSI line lives on, anchored to
// the bottom quarter of the pane.
const RSIScale = "rsi"

var rsiMargins = Margins{Top: 0.75, Bottom: 0}
