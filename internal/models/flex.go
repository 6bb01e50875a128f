package models

import (
	"bytes"
	"strconv"
	"time"
)

// FlexFloat is a float64 that tolerates the loose numerics the remote store
// delivers: JSON numbers, numeric strings, null, or garbage. Anything that
// cannot be parsed decodes to 0 instead of failing the record.
type FlexFloat float64

// UnmarshalJSON implements json.Unmarshaler.
func (f *FlexFloat) UnmarshalJSON(data []byte) error {
	*f = FlexFloat(CoerceFloat(string(bytes.Trim(data, `"`))))
	return nil
}

// Float64 returns the underlying value.
func (f FlexFloat) Float64() float64 { return float64(f) }

// CoerceFloat parses s as a float, returning 0 for anything non-numeric.
func CoerceFloat(s string) float64 {
	if s == "" || s == "null" {
		return 0
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}

// FlexTime is a timestamp that accepts the two representations the remote
// store delivers: epoch milliseconds as a JSON number, or an ISO-8601 string.
// Unparseable values decode to the zero time instead of failing the record.
type FlexTime struct {
	time.Time
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *FlexTime) UnmarshalJSON(data []byte) error {
	s := string(bytes.Trim(data, `"`))
	if s == "" || s == "null" {
		t.Time = time.Time{}
		return nil
	}
	if millis, err := strconv.ParseInt(s, 10, 64); err == nil {
		t.Time = time.UnixMilli(millis).UTC()
		return nil
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02"} {
		if parsed, err := time.Parse(layout, s); err == nil {
			t.Time = parsed
			return nil
		}
	}
	t.Time = time.Time{}
	return nil
}

// MarshalJSON emits epoch milliseconds, the store's native representation.
func (t FlexTime) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("0"), nil
	}
	return []byte(strconv.FormatInt(t.UnixMilli(), 10)), nil
}
