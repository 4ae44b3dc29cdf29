//go:build mapbox

package mapbox

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/weather-assistant/internal/observability"
)

// These tests hit the real Mapbox API and require a valid MAPBOX_TOKEN env var.
// Run with: go test -tags=mapbox ./internal/adapter/mapbox/ -v -count=1

func smokeClient(t *testing.T) *Client {
	t.Helper()
	token := os.Getenv("MAPBOX_TOKEN")
	if token == "" {
		t.Fatal("MAPBOX_TOKEN must be set to run smoke tests")
	}
	return NewClient(token, 10*time.Second, observability.DiscardLogger(), observability.NewMetricsForTesting())
}

func TestSmoke_ForwardGeocode(t *testing.T) {
	c := smokeClient(t)

	result, err := c.ForwardGeocode(context.Background(), "Austin", "TX")
	require.NoError(t, err)

	assert.InDelta(t, 30.27, result.Lat, 0.1, "lat should be near Austin")
	assert.InDelta(t, -97.74, result.Lon, 0.1, "lon should be near Austin")
	assert.Contains(t, result.FormattedAddress, "Austin")
	assert.Greater(t, result.Confidence, 0.5)
}

func TestSmoke_ForwardGeocode_Postcode(t *testing.T) {
	c := smokeClient(t)

	result, err := c.ForwardGeocode(context.Background(), "78705", "")
	require.NoError(t, err)
	assert.InDelta(t, 30.29, result.Lat, 0.2)
}
