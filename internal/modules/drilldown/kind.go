// Package drilldown fetches the top-N customer lists shown under an expanded KPI tile.
package drilldown

import (
	"errors"
	"fmt"
	"strings"
)

// Kind selects which top-N list the backend returns
type Kind string

const (
	KindLatest      Kind = "latest"      // Newest customers
	KindFlagged     Kind = "flagged"     // Recently updated high-risk customers
	KindUtilisation Kind = "utilisation" // Highest credit utilisation
	KindCash        Kind = "cash"        // Highest cash-withdrawal share
)

// ErrUnknownKind is returned by ParseKind for unrecognised values
var ErrUnknownKind = errors.New("unknown drill-down kind")

// Kinds lists every kind
func Kinds() []Kind {
	return []Kind{KindLatest, KindFlagged, KindUtilisation, KindCash}
}

// ParseKind parses a kind case-insensitively
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Kinds() {
		if k == known {
			return k, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
}

// Limits for the number of rows a drill-down returns
const (
	DefaultLimit = 10
	MaxLimit     = 50
)

// ClampLimit maps a requested limit onto 1..MaxLimit; zero or negative means DefaultLimit
func ClampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultLimit
	case limit > MaxLimit:
		return MaxLimit
	default:
		return limit
	}
}
