package plot

import (
	"github.com/raykavin/signalsense/pkg/chart"
	"github.com/raykavin/signalsense/pkg/core"
)

// Message types understood by the dashboard page.
const (
	TypeState       = "state"
	TypeChartCreate = "chart.create"
	TypeCandles     = "chart.candles"
	TypeLineAdd     = "chart.line.add"
	TypeLineData    = "chart.line.data"
	TypeFit         = "chart.fit"
	TypeDispose     = "chart.dispose"
)

// Message is one websocket frame.
type Message struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

type createPayload struct {
	ID        string        `json:"id"`
	Container string        `json:"container"`
	Options   chart.Options `json:"options"`
}

type candlesPayload struct {
	ID   string             `json:"id"`
	Data []core.CandlePoint `json:"data"`
}

type lineAddPayload struct {
	ID   string         `json:"id"`
	Line chart.LineSpec `json:"line"`
}

type lineDataPayload struct {
	ID   string             `json:"id"`
	Key  core.IndicatorKey  `json:"key"`
	Data []core.SeriesPoint `json:"data"`
}

type surfacePayload struct {
	ID string `json:"id"`
}
