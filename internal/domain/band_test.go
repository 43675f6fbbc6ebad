package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanonicalBand(t *testing.T) {
	assert.Equal(t, BandVeryLow, CanonicalBand("  very low "))
	assert.Equal(t, BandHigh, CanonicalBand("HIGH"))
	assert.Equal(t, Band("Severe"), CanonicalBand(" Severe "))
	assert.Equal(t, Band(""), CanonicalBand("   "))
}

func TestPresets(t *testing.T) {
	assert.Equal(t, []Band{BandLow, BandMedium, BandHigh}, ThreeBand.Bands())
	assert.Equal(t, 5, FiveBand.Len())

	i, ok := FiveBand.Index(BandCritical)
	require.True(t, ok)
	assert.Equal(t, 4, i)

	assert.False(t, ThreeBand.Contains(BandCritical))
}

func TestNewBandScheme_Errors(t *testing.T) {
	_, err := NewBandScheme()
	assert.Error(t, err)

	_, err = NewBandScheme(BandLow, "low")
	assert.Error(t, err, "duplicates are detected after canonicalisation")

	_, err = NewBandScheme(BandLow, " ")
	assert.Error(t, err)
}

func TestParseBandScheme_CustomBands(t *testing.T) {
	s, err := ParseBandScheme([]string{"low", "Elevated", "high"})
	require.NoError(t, err)

	assert.Equal(t, []string{"Low", "Elevated", "High"}, s.Names())
	assert.True(t, s.Contains("Elevated"))
}

func TestBands_ReturnsCopy(t *testing.T) {
	bands := ThreeBand.Bands()
	bands[0] = "mutated"

	assert.Equal(t, BandLow, ThreeBand.Bands()[0])
}

func TestBandSet(t *testing.T) {
	set := ParseBandSet([]string{"critical", "High", "medium", "", "Watchlist"})

	assert.True(t, set.Has(BandHigh))
	assert.True(t, set.Has(BandCritical))
	assert.False(t, set.Has(BandLow))
	assert.Equal(t, []string{"Medium", "High", "Critical", "Watchlist"}, set.Names())

	var empty BandSet
	assert.False(t, empty.Has(BandHigh))
}
