package core

// PricePoint is one trading period as returned by GET /history. Order and
// uniqueness of Date are not guaranteed.
type PricePoint struct {
	Date string `json:"date,omitempty"`
	// Time is the unix-seconds form some upstream versions send instead of Date.
	Time Num `json:"time"`

	Open  Num `json:"open"`
	High  Num `json:"high"`
	Low   Num `json:"low"`
	Close Num `json:"close"`

	SMA20  Num `json:"sma20"`
	EMA9   Num `json:"ema9"`
	EMA20  Num `json:"ema20"`
	EMA50  Num `json:"ema50"`
	EMA100 Num `json:"ema100"`
	EMA200 Num `json:"ema200"`
	RSI    Num `json:"rsi"`
}

// Field returns the indicator column named by key.
func (p PricePoint) Field(key IndicatorKey) Num {
	switch key {
	case SMA20:
		return p.SMA20
	case EMA9:
		return p.EMA9
	case EMA20:
		return p.EMA20
	case EMA50:
		return p.EMA50
	case EMA100:
		return p.EMA100
	case EMA200:
		return p.EMA200
	case RSI:
		return p.RSI
	case Close:
		return p.Close
	}
	return Num{}
}

// LatestPrice is the payload of GET /latest-price.
type LatestPrice struct {
	Date  string `json:"date"`
	Close Num    `json:"close"`
}
