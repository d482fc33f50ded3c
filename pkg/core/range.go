package core

import "fmt"

// Range is the historical window requested from GET /history.
type Range string

const (
	Range1M  Range = "1mo"
	Range3M  Range = "3mo"
	Range6M  Range = "6mo"
	RangeYTD Range = "ytd"
	Range1Y  Range = "1y"

	DefaultRange = Range1M
)

// Ranges lists the selectable windows in display order.
var Ranges = []Range{Range1M, Range3M, Range6M, RangeYTD, Range1Y}

// Label is the short button caption for r.
func (r Range) Label() string {
	switch r {
	case Range1M:
		return "1M"
	case Range3M:
		return "3M"
	case Range6M:
		return "6M"
	case RangeYTD:
		return "YTD"
	case Range1Y:
		return "1Y"
	}
	return string(r)
}

// ParseRange validates a range query value.
func ParseRange(s string) (Range, error) {
	for _, r := range Ranges {
		if string(r) == s {
			return r, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidRange, s)
}
