package domain

import (
	"bytes"
	"math"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
)

// Number is a float64 that decodes leniently from JSON. Numbers and numeric
// strings are accepted; null, booleans, objects, garbage and non-finite values
// decode to 0 instead of failing the whole document.
type Number float64

// UnmarshalJSON implements json.Unmarshaler.
func (n *Number) UnmarshalJSON(data []byte) error {
	*n = 0

	raw := bytes.TrimSpace(data)
	if len(raw) == 0 {
		return nil
	}

	text := string(raw)
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil
		}
		text = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "%"))
	}

	f, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return nil
	}
	*n = Number(Finite(f))
	return nil
}

// Float returns the value as float64.
func (n Number) Float() float64 {
	return float64(n)
}

// Finite coerces NaN and infinities to 0.
func Finite(f float64) float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

// Text is a string that decodes leniently from JSON. Strings are taken as-is,
// numbers keep their literal form, and null, booleans, objects and arrays
// decode to "".
type Text string

// UnmarshalJSON implements json.Unmarshaler.
func (t *Text) UnmarshalJSON(data []byte) error {
	*t = ""
	raw := bytes.TrimSpace(data)
	if len(raw) == 0 {
		return nil
	}
	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			*t = Text(s)
		}
	case 'n', 't', 'f', '{', '[':
	default:
		*t = Text(raw)
	}
	return nil
}

// String returns the value trimmed of surrounding whitespace.
func (t Text) String() string {
	return strings.TrimSpace(string(t))
}
