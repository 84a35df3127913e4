package refdata

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// registryRow builds a 13-column row with lat/lon in columns 11 and 12.
func registryRow(name, lat, lon string) string {
	cols := make([]string, 13)
	cols[0] = name
	cols[11] = lat
	cols[12] = lon
	return strings.Join(cols, ",")
}

func TestLoad_SkipsHeaderAndParsesCoordinates(t *testing.T) {
	src := strings.Join([]string{
		registryRow("Name", "Latitude", "Longitude"), // header
		registryRow("Plant A", "41.501", "-81.499"),
		registryRow("Plant B", "39.962", "-83.001"),
	}, "\n")

	refs, err := Load(strings.NewReader(src), DefaultLatColumn, DefaultLonColumn)
	require.NoError(t, err)
	require.Len(t, refs, 2)
	assert.InDelta(t, 41.501, refs[0].Lat, 1e-9)
	assert.InDelta(t, -81.499, refs[0].Lon, 1e-9)
}

func TestLoad_DropsMalformedRowsSilently(t *testing.T) {
	src := strings.Join([]string{
		registryRow("Name", "Latitude", "Longitude"),
		registryRow("Good", "41.5", "-81.5"),
		registryRow("BadLat", "not-a-number", "-81.5"),
		registryRow("BadLon", "41.5", ""),
		"short,row", // fewer columns than the coordinate positions
	}, "\n")

	refs, err := Load(strings.NewReader(src), DefaultLatColumn, DefaultLonColumn)
	require.NoError(t, err)
	require.Len(t, refs, 1)
	assert.InDelta(t, 41.5, refs[0].Lat, 1e-9)
}

func TestLoad_EmptySourceYieldsNoLocations(t *testing.T) {
	refs, err := Load(strings.NewReader(""), DefaultLatColumn, DefaultLonColumn)
	require.NoError(t, err)
	assert.Empty(t, refs)
}

func TestLoadFile_MissingIsError(t *testing.T) {
	_, err := LoadFile("/nonexistent/registry.csv", DefaultLatColumn, DefaultLonColumn)
	assert.Error(t, err)
}
