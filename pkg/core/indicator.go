package core

// IndicatorKey names a column of PricePoint that can be drawn as a line.
type IndicatorKey string

const (
	Close  IndicatorKey = "close"
	SMA20  IndicatorKey = "sma20"
	EMA9   IndicatorKey = "ema9"
	EMA20  IndicatorKey = "ema20"
	EMA50  IndicatorKey = "ema50"
	EMA100 IndicatorKey = "ema100"
	EMA200 IndicatorKey = "ema200"
	RSI    IndicatorKey = "rsi"
)

// EMAKeys lists the EMA periods in ascending order.
var EMAKeys = []IndicatorKey{EMA9, EMA20, EMA50, EMA100, EMA200}

// OverlayOrder is the order overlays are added to a chart: SMA, EMAs, RSI.
var OverlayOrder = []IndicatorKey{SMA20, EMA9, EMA20, EMA50, EMA100, EMA200, RSI}

// IsEMA reports whether k is one of EMAKeys.
func (k IndicatorKey) IsEMA() bool {
	for _, e := range EMAKeys {
		if e == k {
			return true
		}
	}
	return false
}
