package notification

import (
	"strings"
	"testing"
	"time"

	"github.com/raykavin/signalsense/pkg/core"
	"github.com/raykavin/signalsense/pkg/metric"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func entry(ticker string, signal core.Signal, confidence float64, minute int) core.HistoryEntry {
	return core.HistoryEntry{
		Prediction: core.Prediction{Ticker: ticker, Signal: signal, Confidence: confidence},
		At:         time.Date(2024, 3, 1, 14, minute, 0, 0, time.UTC),
	}
}

func TestParseSignalCommand(t *testing.T) {
	tests := []struct {
		text   string
		ticker string
		ok     bool
	}{
		{"/signal aapl", "AAPL", true},
		{"/signal@signal_bot BRK.B ", "BRK.B", true},
		{"/signal ^GSPC", "^GSPC", true},
		{"/signal", "", false},
		{"/signal AAPL MSFT", "", false},
		{"/history AAPL", "", false},
	}

	for _, tt := range tests {
		ticker, ok := ParseSignalCommand(tt.text)
		assert.Equal(t, tt.ok, ok, tt.text)
		assert.Equal(t, tt.ticker, ticker, tt.text)
	}
}

func TestFormatPrediction(t *testing.T) {
	e := entry("AAPL", core.Buy, 82.5, 0)
	e.Explanation = "Price above SMA_20."

	msg := FormatPrediction(e)
	lines := strings.Split(msg, "\n")
	require.Len(t, lines, 5)
	assert.Equal(t, "🟢 *AAPL* Buy", lines[0])
	assert.Equal(t, "Confidence: `82.5%`", lines[1])
	assert.Equal(t, "Indicates a likely price increase.", lines[2])
	assert.Equal(t, `Price above SMA\_20.`, lines[4])

	assert.Equal(t, "⚪ *MSFT* Hold/Sell\nConfidence: `60%`", FormatPrediction(entry("MSFT", core.HoldSell, 60, 0)))
}

func TestFormatHistory(t *testing.T) {
	assert.Equal(t, "No predictions yet.", FormatHistory(nil, 5))

	entries := []core.HistoryEntry{
		entry("AAPL", core.Buy, 82, 1),
		entry("TSLA", core.Sell, 70, 2),
		entry("MSFT", core.Hold, 90, 3),
	}

	lines := strings.Split(FormatHistory(entries, 2), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "*HISTORY*", lines[0])
	assert.Equal(t, "🔴 MSFT Hold (90%) `2024-03-01 14:03`", lines[1])
	assert.Equal(t, "🔴 TSLA Sell (70%) `2024-03-01 14:02`", lines[2])
}

func TestFormatSummary(t *testing.T) {
	assert.Equal(t, "No predictions yet.", FormatSummary(metric.Summary{}))

	summary := metric.Summarize([]core.HistoryEntry{
		entry("AAPL", core.Buy, 80, 1),
		entry("TSLA", core.Sell, 60, 2),
		entry("AAPL", core.Buy, 70, 3),
	})

	msg := FormatSummary(summary)
	assert.Contains(t, msg, "Predictions: `3`")
	assert.Contains(t, msg, "Mean confidence: `70.0%`")
	assert.Contains(t, msg, "Buy: `2`\nSell: `1`")
}

func TestMailMessage(t *testing.T) {
	msg := string(mailMessage("bot@example.com", "me@example.com", "SIGNAL - AAPL Buy (82%)", "Confidence: 82%\n"))

	assert.True(t, strings.HasPrefix(msg, "To: <me@example.com>\r\n"))
	assert.Contains(t, msg, "Subject: SIGNAL - AAPL Buy (82%)\r\n\r\nConfidence: 82%\n")
}
