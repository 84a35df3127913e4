package partition

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLabel_YearBoundary(t *testing.T) {
	// Everything before the cutoff shares the consolidated label.
	assert.Equal(t, PreCutoffLabel, Label("2008"))
	assert.Equal(t, Label("2005"), Label("2008"))

	// The cutoff year and later map 1:1.
	assert.Equal(t, "2009", Label("2009"))
	assert.Equal(t, "2015", Label("2015"))

	// Labels pass through unchanged.
	assert.Equal(t, PreCutoffLabel, Label(PreCutoffLabel))
}

func TestURL_Template(t *testing.T) {
	assert.Equal(t,
		"https://example.org/data/2015/OH_2015.json",
		URL("https://example.org/data", "OH", "2015"),
	)
	assert.Equal(t,
		"https://example.org/data/PREFY2009/TX_PREFY2009.json",
		URL("https://example.org/data", "TX", "2006"),
	)
}

func TestRegions_FixedSet(t *testing.T) {
	assert.Len(t, Regions, 49)
	assert.True(t, IsRegion("OH"))
	assert.True(t, IsRegion("DC"))
	assert.False(t, IsRegion("ZZ"))
	assert.False(t, IsRegion(AllRegions))
}
