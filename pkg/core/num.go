package core

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Num is a nullable decimal as delivered by the history API. Upstream
// columns may be numbers, numeric strings, null or missing altogether; a
// value that cannot be coerced decodes as "not a number" instead of
// failing the surrounding payload.
type Num struct {
	v  float64
	ok bool
}

// NumOf returns a valid Num holding v.
func NumOf(v float64) Num {
	return Num{v: v, ok: true}
}

// Float returns the value and whether it is a finite number.
func (n Num) Float() (float64, bool) {
	if !n.ok || math.IsNaN(n.v) || math.IsInf(n.v, 0) {
		return 0, false
	}
	return n.v, true
}

// Valid reports whether Float would succeed.
func (n Num) Valid() bool {
	_, ok := n.Float()
	return ok
}

func (n *Num) UnmarshalJSON(data []byte) error {
	*n = Num{}

	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}

	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return nil
		}
		if v, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
			*n = Num{v: v, ok: true}
		}
		return nil
	}

	if v, err := strconv.ParseFloat(string(data), 64); err == nil {
		*n = Num{v: v, ok: true}
	}
	return nil
}

func (n Num) MarshalJSON() ([]byte, error) {
	v, ok := n.Float()
	if !ok {
		return []byte("null"), nil
	}
	return json.Marshal(v)
}
