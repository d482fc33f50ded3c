package series

import (
	"errors"
	"math"
	"strings"
	"time"

	"github.com/raykavin/signalsense/pkg/core"
)

var ErrNoTimestamp = errors.New("point has no parseable date")

// Zone-less layouts are read as UTC so a date maps to the same instant for
// every viewer.
var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04:05-07:00",
	time.DateOnly,
}

// ParseTime returns the whole unix second a point belongs to.
func ParseTime(p core.PricePoint) (int64, error) {
	if date := strings.TrimSpace(p.Date); date != "" {
		for _, layout := range dateLayouts {
			if t, err := time.ParseInLocation(layout, date, time.UTC); err == nil {
				return t.Unix(), nil
			}
		}
		return 0, ErrNoTimestamp
	}

	if ts, ok := p.Time.Float(); ok {
		return int64(math.Floor(ts)), nil
	}
	return 0, ErrNoTimestamp
}
