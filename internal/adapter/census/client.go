// Package census implements domain.Geocoder with the US Census one-line
// address geocoder.
package census

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/couchcryptid/weather-assistant/internal/domain"
	"github.com/couchcryptid/weather-assistant/internal/observability"
)

const (
	// DefaultBaseURL is the public Census geocoder.
	DefaultBaseURL = "https://geocoding.geo.census.gov"
	// DefaultBenchmark selects the current address ranges.
	DefaultBenchmark = "Public_AR_Current"

	upstream = "census"
	maxBody  = 1 << 20
)

// Client queries /geocoder/locations/onelineaddress and takes the first
// address match.
type Client struct {
	baseURL    string
	benchmark  string
	userAgent  string
	httpClient *http.Client
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates a Census geocoding client. Empty baseURL or benchmark
// fall back to the public defaults.
func NewClient(baseURL, benchmark, userAgent string, timeout time.Duration, logger *slog.Logger, metrics *observability.Metrics) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if benchmark == "" {
		benchmark = DefaultBenchmark
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		benchmark:  benchmark,
		userAgent:  userAgent,
		httpClient: &http.Client{Timeout: timeout},
		metrics:    metrics,
		logger:     logger,
	}
}

// Name identifies the provider.
func (c *Client) Name() string { return upstream }

// ForwardGeocode resolves "name, state" (or a bare ZIP) as a one-line address.
func (c *Client) ForwardGeocode(ctx context.Context, name, state string) (domain.GeocodingResult, error) {
	address := name
	if state != "" {
		address = name + ", " + state
	}

	start := time.Now()
	result, err := c.fetch(ctx, address)
	outcome := "success"
	switch {
	case err != nil:
		outcome = "error"
	case !result.Found():
		outcome = "empty"
	}
	c.metrics.ObserveUpstream(upstream, outcome, time.Since(start).Seconds())
	return result, err
}

func (c *Client) fetch(ctx context.Context, address string) (domain.GeocodingResult, error) {
	params := url.Values{
		"address":   {address},
		"benchmark": {c.benchmark},
		"format":    {"json"},
	}
	u := c.baseURL + "/geocoder/locations/onelineaddress?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return domain.GeocodingResult{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.GeocodingResult{}, fmt.Errorf("census geocode request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return domain.GeocodingResult{}, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return domain.GeocodingResult{}, fmt.Errorf("census API error: status %d", resp.StatusCode)
	}
	if !gjson.ValidBytes(body) {
		return domain.GeocodingResult{}, fmt.Errorf("decode response: invalid JSON")
	}

	match := gjson.GetBytes(body, "result.addressMatches.0")
	x, y := match.Get("coordinates.x"), match.Get("coordinates.y")
	if !match.Exists() || x.Type != gjson.Number || y.Type != gjson.Number {
		c.logger.Debug("census returned no address match", "address", address)
		return domain.GeocodingResult{}, nil
	}

	return domain.GeocodingResult{
		Lat:              y.Float(),
		Lon:              x.Float(),
		FormattedAddress: match.Get("matchedAddress").String(),
		PlaceName:        address,
		Confidence:       1,
	}, nil
}
