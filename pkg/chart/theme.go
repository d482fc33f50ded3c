package chart

import "github.com/raykavin/signalsense/pkg/core"

// Theme holds the surface colours of one appearance mode.
type Theme struct {
	Name       string `json:"name"`
	Background string `json:"background"`
	Text       string `json:"text"`
	Grid       string `json:"grid"`
	Line       string `json:"line"`
	Up         string `json:"up"`
	Down       string `json:"down"`
}

var (
	DarkTheme = Theme{
		Name:       "dark",
		Background: "#111827",
		Text:       "#d1d5db",
		Grid:       "#1f2937",
		Line:       "#60a5fa",
		Up:         "#22c55e",
		Down:       "#ef4444",
	}
	LightTheme = Theme{
		Name:       "light",
		Background: "#ffffff",
		Text:       "#111827",
		Grid:       "#e5e7eb",
		Line:       "#2563eb",
		Up:         "#16a34a",
		Down:       "#dc2626",
	}
)

// ThemeFor picks the theme of the given appearance mode.
func ThemeFor(dark bool) Theme {
	if dark {
		return DarkTheme
	}
	return LightTheme
}

// FallbackColor is used for an indicator missing from Palette.
const FallbackColor = "#999999"

// Palette assigns every known indicator one fixed colour.
var Palette = map[core.IndicatorKey]string{
	core.SMA20:  "#f59e0b",
	core.EMA9:   "#f97316",
	core.EMA20:  "#3b82f6",
	core.EMA50:  "#10b981",
	core.EMA100: "#ec4899",
	core.EMA200: "#8b5cf6",
	core.RSI:    "#a855f7",
}

// ColorFor returns the palette colour of key.
func ColorFor(key core.IndicatorKey) string {
	if color, ok := Palette[key]; ok {
		return color
	}
	return FallbackColor
}
