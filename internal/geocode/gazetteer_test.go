package geocode

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/weather-assistant/internal/observability"
)

const testPlaces = `USPS,name,lat,long
TX,Austin city,30.2672,-97.7431
MN,Austin city,43.6666,-92.9746
TX,San Marcos city,29.8833,-97.9414
ID,Boise City city,43.6150,-116.2023
CA,Sacramento city,38.5816,-121.4944
MD,Baltimore city,39.2904,-76.6122
`

const testZIPs = `zip,lat,long
78705,30.2896,-97.7392
`

func newTestGazetteer(t *testing.T) *Gazetteer {
	t.Helper()
	g, err := NewGazetteer(strings.NewReader(testPlaces), strings.NewReader(testZIPs), 0, observability.NewMetricsForTesting())
	require.NoError(t, err)
	return g
}

func TestGazetteer_ForwardGeocode(t *testing.T) {
	g := newTestGazetteer(t)
	require.Equal(t, 6, g.Len())

	tests := []struct {
		name, query, state string
		lat, confidence    float64
	}{
		{"exact in state", "Austin", "TX", 30.2672, 1},
		{"same name other state", "Austin", "MN", 43.6666, 1},
		{"no state searches all", "San Marcos", "", 29.8833, 1},
		{"unknown state searches all", "Baltimore", "ZZ", 39.2904, 1},
		{"no match in state searches all", "San Marcos", "CA", 29.8833, 1},
		{"substring", "Boise", "ID", 43.6150, 0.5},
		{"fuzzy", "Sacramnto", "CA", 38.5816, 0.9},
		{"zip", "78705", "", 30.2896, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := g.ForwardGeocode(context.Background(), tt.query, tt.state)
			require.NoError(t, err)
			assert.Equal(t, tt.lat, r.Lat)
			assert.InDelta(t, tt.confidence, r.Confidence, 0.001)
		})
	}
}

func TestGazetteer_ForwardGeocode_Miss(t *testing.T) {
	g := newTestGazetteer(t)

	for _, q := range []string{"Zzyzx", "99999", ""} {
		r, err := g.ForwardGeocode(context.Background(), q, "CA")
		require.NoError(t, err)
		assert.False(t, r.Found(), "query %q", q)
	}
}

func TestGazetteer_FormattedAddress(t *testing.T) {
	g := newTestGazetteer(t)

	r, err := g.ForwardGeocode(context.Background(), "san marcos", "TX")
	require.NoError(t, err)
	assert.Equal(t, "San Marcos, TX", r.FormattedAddress)
}

func TestLoadGazetteer_Embedded(t *testing.T) {
	g, err := LoadGazetteer("", 0, nil)
	require.NoError(t, err)
	assert.Greater(t, g.Len(), 100)

	r, err := g.ForwardGeocode(context.Background(), "Austin", "TX")
	require.NoError(t, err)
	assert.Equal(t, 30.2672, r.Lat)
	assert.Equal(t, -97.7431, r.Lon)
}

func TestLoadGazetteer_MissingFile(t *testing.T) {
	_, err := LoadGazetteer("/nonexistent/us_places.csv", 0, nil)
	require.Error(t, err)
}

func TestNewGazetteer_MissingColumn(t *testing.T) {
	_, err := NewGazetteer(strings.NewReader("USPS,name,lat\nTX,Austin,30\n"), nil, 0, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"long"`)
}

func TestNewGazetteer_BadCoordinate(t *testing.T) {
	_, err := NewGazetteer(strings.NewReader("USPS,name,lat,long\nTX,Austin,north,-97\n"), nil, 0, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 2")
}

func TestPlaceKey(t *testing.T) {
	assert.Equal(t, "austin", placeKey("Austin city"))
	assert.Equal(t, "boise city", placeKey("Boise City city"))
	assert.Equal(t, "nashville-davidson", placeKey("Nashville-Davidson metropolitan government (balance)"))
	assert.Equal(t, "honolulu", placeKey("Honolulu CDP"))
	assert.Equal(t, "juneau", placeKey("Juneau city and borough"))
	assert.Equal(t, "city", placeKey("City"))
}

func TestSimilarity(t *testing.T) {
	assert.Equal(t, 100, similarity("austin", "austin"))
	assert.Equal(t, 90, similarity("sacramnto", "sacramento"))
	assert.Less(t, similarity("zzyzx", "austin"), DefaultFuzzyCutoff)
}

func TestGazetteer_Names(t *testing.T) {
	g := newTestGazetteer(t)
	assert.Equal(t, []string{"austin", "san marcos", "boise city", "sacramento", "baltimore"}, g.Names())
}
