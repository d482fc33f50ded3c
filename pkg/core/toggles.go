package core

import "maps"

// Toggles is the user controlled indicator visibility set.
type Toggles struct {
	ShowCandles bool                  `json:"showCandles"`
	ShowSMA     bool                  `json:"showSMA"`
	ShowRSI     bool                  `json:"showRSI"`
	ShowEMAs    map[IndicatorKey]bool `json:"showEMAs"`
}

// DefaultToggles has the SMA overlay on and everything else off.
func DefaultToggles() Toggles {
	return Toggles{ShowSMA: true, ShowEMAs: DefaultEMAs()}
}

// DefaultEMAs returns every EMA period switched off.
func DefaultEMAs() map[IndicatorKey]bool {
	emas := make(map[IndicatorKey]bool, len(EMAKeys))
	for _, k := range EMAKeys {
		emas[k] = false
	}
	return emas
}

// Visible reports whether the overlay k should be drawn.
func (t Toggles) Visible(k IndicatorKey) bool {
	switch {
	case k == SMA20:
		return t.ShowSMA
	case k == RSI:
		return t.ShowRSI
	case k.IsEMA():
		return t.ShowEMAs[k]
	}
	return false
}

// Clone returns a copy that shares no map with t.
func (t Toggles) Clone() Toggles {
	c := t
	c.ShowEMAs = DefaultEMAs()
	for k, v := range t.ShowEMAs {
		if k.IsEMA() {
			c.ShowEMAs[k] = v
		}
	}
	return c
}

// Equal compares visibility flags, treating missing EMA keys as off.
func (t Toggles) Equal(o Toggles) bool {
	return t.ShowCandles == o.ShowCandles &&
		t.ShowSMA == o.ShowSMA &&
		t.ShowRSI == o.ShowRSI &&
		maps.Equal(t.Clone().ShowEMAs, o.Clone().ShowEMAs)
}
