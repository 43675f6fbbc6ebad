package domain

import (
	"fmt"
	"sort"
	"strings"
)

// Band is a categorical delinquency risk classification produced by the scoring service.
type Band string

// Canonical band names. Backends emit either the three-band or the five-band variant.
const (
	BandVeryLow  Band = "Very Low"
	BandLow      Band = "Low"
	BandMedium   Band = "Medium"
	BandHigh     Band = "High"
	BandCritical Band = "Critical"
)

var canonicalBands = []Band{BandVeryLow, BandLow, BandMedium, BandHigh, BandCritical}

// CanonicalBand normalises a raw band label. Known names are matched case-insensitively
// and ignoring surrounding whitespace; anything else is returned trimmed.
func CanonicalBand(raw string) Band {
	trimmed := strings.TrimSpace(raw)
	for _, b := range canonicalBands {
		if strings.EqualFold(trimmed, string(b)) {
			return b
		}
	}
	return Band(trimmed)
}

// BandScheme is an ordered band enumeration. Order is the rendering order of the
// band distribution (lowest risk first).
type BandScheme struct {
	bands []Band
	index map[Band]int
}

// Presets for the two backend generations.
var (
	ThreeBand = MustBandScheme(BandLow, BandMedium, BandHigh)
	FiveBand  = MustBandScheme(BandVeryLow, BandLow, BandMedium, BandHigh, BandCritical)
)

// NewBandScheme builds a scheme from an ordered list of bands.
func NewBandScheme(bands ...Band) (BandScheme, error) {
	if len(bands) == 0 {
		return BandScheme{}, fmt.Errorf("band scheme needs at least one band")
	}

	s := BandScheme{
		bands: make([]Band, 0, len(bands)),
		index: make(map[Band]int, len(bands)),
	}
	for _, raw := range bands {
		b := CanonicalBand(string(raw))
		if b == "" {
			return BandScheme{}, fmt.Errorf("band scheme contains an empty band name")
		}
		if _, dup := s.index[b]; dup {
			return BandScheme{}, fmt.Errorf("band %q listed twice", b)
		}
		s.index[b] = len(s.bands)
		s.bands = append(s.bands, b)
	}
	return s, nil
}

// MustBandScheme is NewBandScheme for static presets.
func MustBandScheme(bands ...Band) BandScheme {
	s, err := NewBandScheme(bands...)
	if err != nil {
		panic(err)
	}
	return s
}

// ParseBandScheme builds a scheme from configuration strings.
func ParseBandScheme(names []string) (BandScheme, error) {
	bands := make([]Band, len(names))
	for i, n := range names {
		bands[i] = Band(n)
	}
	return NewBandScheme(bands...)
}

// Bands returns the bands in canonical order.
func (s BandScheme) Bands() []Band {
	out := make([]Band, len(s.bands))
	copy(out, s.bands)
	return out
}

// Len returns the number of bands.
func (s BandScheme) Len() int {
	return len(s.bands)
}

// Index returns the position of b in the scheme.
func (s BandScheme) Index(b Band) (int, bool) {
	i, ok := s.index[b]
	return i, ok
}

// Contains reports whether b is part of the scheme.
func (s BandScheme) Contains(b Band) bool {
	_, ok := s.index[b]
	return ok
}

// Names returns the band names as strings, for serialisation.
func (s BandScheme) Names() []string {
	out := make([]string, len(s.bands))
	for i, b := range s.bands {
		out[i] = string(b)
	}
	return out
}

// BandSet is an unordered set of bands, e.g. the "flagged" policy.
type BandSet map[Band]struct{}

// NewBandSet builds a set from bands, canonicalising each one.
func NewBandSet(bands ...Band) BandSet {
	set := make(BandSet, len(bands))
	for _, b := range bands {
		if c := CanonicalBand(string(b)); c != "" {
			set[c] = struct{}{}
		}
	}
	return set
}

// ParseBandSet builds a set from configuration strings.
func ParseBandSet(names []string) BandSet {
	bands := make([]Band, len(names))
	for i, n := range names {
		bands[i] = Band(n)
	}
	return NewBandSet(bands...)
}

// Has reports whether b is in the set. A nil set contains nothing.
func (s BandSet) Has(b Band) bool {
	_, ok := s[b]
	return ok
}

// Names returns the members sorted by canonical risk order, unknown bands last
// in lexical order.
func (s BandSet) Names() []string {
	rank := func(b Band) int {
		for i, c := range canonicalBands {
			if c == b {
				return i
			}
		}
		return len(canonicalBands)
	}

	out := make([]Band, 0, len(s))
	for b := range s {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool {
		ri, rj := rank(out[i]), rank(out[j])
		if ri != rj {
			return ri < rj
		}
		return out[i] < out[j]
	})

	names := make([]string, len(out))
	for i, b := range out {
		names[i] = string(b)
	}
	return names
}
