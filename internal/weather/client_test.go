package weather

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/weather-assistant/internal/domain"
	"github.com/couchcryptid/weather-assistant/internal/geocode"
	"github.com/couchcryptid/weather-assistant/internal/observability"
)

type stubLocator struct {
	known map[string]domain.Coordinates
}

func (l stubLocator) Canonicalize(text string) string { return geocode.Canonicalize(text) }

func (l stubLocator) Geocode(_ context.Context, text string) (domain.Coordinates, bool) {
	c, ok := l.known[geocode.Canonicalize(text)]
	return c, ok
}

type stubSource struct {
	mu          sync.Mutex
	points      int
	forecasts   int
	alertCalls  int
	periods     []domain.Period
	alerts      []domain.Alert
	pointsErr   error
	forecastErr error
	alertsErr   error
}

func (s *stubSource) ForecastURL(context.Context, domain.Coordinates) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.points++
	return "https://api.weather.gov/gridpoints/EWX/156,91/forecast", s.pointsErr
}

func (s *stubSource) Periods(context.Context, string) ([]domain.Period, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.forecasts++
	return s.periods, s.forecastErr
}

func (s *stubSource) ActiveAlerts(context.Context, domain.Coordinates) ([]domain.Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alertCalls++
	return s.alerts, s.alertsErr
}

func intp(v int) *int { return &v }

var startToday = time.Date(2024, time.April, 26, 6, 0, 0, 0, time.FixedZone("CDT", -5*3600))

func testPeriods() []domain.Period {
	return []domain.Period{
		{Name: "Today", StartTime: startToday, EndTime: startToday.Add(12 * time.Hour), Temperature: intp(77), TemperatureUnit: "F", ShortForecast: "Sunny"},
		{Name: "Tonight", StartTime: startToday.Add(12 * time.Hour), Temperature: intp(60), TemperatureUnit: "F", ShortForecast: "Clear"},
		{Name: "Saturday", Temperature: nil, TemperatureUnit: "F"},
	}
}

func newTestClient(src *stubSource) (*Client, *clockwork.FakeClock, *observability.Metrics) {
	clock := clockwork.NewFakeClock()
	metrics := observability.NewMetricsForTesting()
	loc := stubLocator{known: map[string]domain.Coordinates{
		"Austin, TX": {Lat: 30.2672, Lon: -97.7431},
	}}
	c := NewClient(loc, src, Config{}, clock, observability.DiscardLogger(), metrics)
	return c, clock, metrics
}

func TestGetForecast_Success(t *testing.T) {
	src := &stubSource{periods: testPeriods()}
	c, _, _ := newTestClient(src)

	got := c.GetForecast(context.Background(), "Austin, TX", domain.TimeToday, domain.UnitsImperial)

	require.False(t, got.Failed())
	assert.Equal(t, "Austin, TX", got.Location)
	assert.Equal(t, "Today", got.Period)
	assert.Equal(t, "Sunny", got.ShortForecast)
	require.NotNil(t, got.Temperature)
	assert.Equal(t, 77, *got.Temperature)
	assert.Equal(t, "F", got.Unit)
	assert.Equal(t, "F", got.SourceUnit)
	assert.Equal(t, startToday, got.StartTime)
	assert.Equal(t, "weather:Austin, TX:2024-04-26T06:00:F", got.CacheKey)
}

func TestGetForecast_ConvertsToMetric(t *testing.T) {
	src := &stubSource{periods: testPeriods()}
	c, _, _ := newTestClient(src)

	got := c.GetForecast(context.Background(), "Austin, TX", domain.TimeToday, domain.UnitsMetric)

	require.NotNil(t, got.Temperature)
	assert.Equal(t, 25, *got.Temperature)
	assert.Equal(t, "C", got.Unit)
	assert.Equal(t, "F", got.SourceUnit)
}

func TestGetForecast_CachedWithinTTL(t *testing.T) {
	src := &stubSource{periods: testPeriods()}
	c, clock, metrics := newTestClient(src)
	ctx := context.Background()

	first := c.GetForecast(ctx, "Austin, TX", domain.TimeToday, domain.UnitsImperial)
	second := c.GetForecast(ctx, "austin, tx", "Today", domain.UnitsImperial)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, src.points)
	assert.Equal(t, 1, src.forecasts)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.CacheLookups.WithLabelValues("forecast", "hit")))

	clock.Advance(DefaultForecastTTL)
	c.GetForecast(ctx, "Austin, TX", domain.TimeToday, domain.UnitsImperial)
	assert.Equal(t, 2, src.forecasts)
}

func TestGetForecast_KeyedByWhenAndUnit(t *testing.T) {
	src := &stubSource{periods: testPeriods()}
	c, _, _ := newTestClient(src)
	ctx := context.Background()

	c.GetForecast(ctx, "Austin, TX", domain.TimeToday, domain.UnitsImperial)
	tonight := c.GetForecast(ctx, "Austin, TX", domain.TimeTonight, domain.UnitsImperial)
	c.GetForecast(ctx, "Austin, TX", domain.TimeToday, domain.UnitsMetric)

	assert.Equal(t, "Tonight", tonight.Period)
	assert.Equal(t, 3, src.forecasts)
}

func TestGetForecast_UnknownLocation(t *testing.T) {
	src := &stubSource{periods: testPeriods()}
	c, _, _ := newTestClient(src)

	got := c.GetForecast(context.Background(), "Atlantis", domain.TimeToday, domain.UnitsImperial)

	assert.True(t, got.Failed())
	assert.Equal(t, "Unknown location: Atlantis", got.Error)
	assert.Equal(t, "Atlantis", got.Location)
	assert.Zero(t, src.points)
}

func TestGetForecast_UpstreamFailures(t *testing.T) {
	tests := []struct {
		name string
		src  *stubSource
		want string
	}{
		{"points error", &stubSource{pointsErr: errors.New("503 Service Unavailable")}, "HTTP error: 503 Service Unavailable"},
		{"no forecast url", &stubSource{pointsErr: domain.ErrNoForecastURL}, "Forecast URL not available"},
		{"forecast error", &stubSource{forecastErr: errors.New("timeout")}, "HTTP error: timeout"},
		{"no periods", &stubSource{}, "No forecast periods available"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _, _ := newTestClient(tt.src)
			got := c.GetForecast(context.Background(), "Austin, TX", domain.TimeToday, domain.UnitsImperial)
			assert.Equal(t, tt.want, got.Error)

			// failures are not cached
			c.GetForecast(context.Background(), "Austin, TX", domain.TimeToday, domain.UnitsImperial)
			assert.Equal(t, 2, tt.src.points)
		})
	}
}

func TestGetForecast_Defaults(t *testing.T) {
	src := &stubSource{periods: testPeriods()}
	c, _, _ := newTestClient(src)

	got := c.GetForecast(context.Background(), "Austin, TX", domain.TimeWeekend, domain.UnitsMetric)

	assert.Equal(t, "Saturday", got.Period)
	assert.Equal(t, "Forecast unavailable", got.ShortForecast)
	assert.Nil(t, got.Temperature)
	assert.Equal(t, "weather:Austin, TX:weekend:C", got.CacheKey)
}

func TestGetAlerts(t *testing.T) {
	want := []domain.Alert{{Event: "Flood Advisory", Headline: "Low-lying areas prone to flooding"}}
	src := &stubSource{alerts: want}
	c, clock, _ := newTestClient(src)
	ctx := context.Background()

	assert.Equal(t, want, c.GetAlerts(ctx, "Austin, TX"))
	assert.Equal(t, want, c.GetAlerts(ctx, "austin"))
	assert.Equal(t, 1, src.alertCalls)

	clock.Advance(DefaultAlertsTTL)
	c.GetAlerts(ctx, "Austin, TX")
	assert.Equal(t, 2, src.alertCalls)
}

func TestGetAlerts_FailureIsEmpty(t *testing.T) {
	src := &stubSource{alertsErr: errors.New("connection reset")}
	c, _, _ := newTestClient(src)

	got := c.GetAlerts(context.Background(), "Austin, TX")
	assert.NotNil(t, got)
	assert.Empty(t, got)

	c.GetAlerts(context.Background(), "Austin, TX")
	assert.Equal(t, 2, src.alertCalls, "failures are not cached")
}

func TestGetAlerts_UnknownLocation(t *testing.T) {
	src := &stubSource{}
	c, _, _ := newTestClient(src)

	assert.Empty(t, c.GetAlerts(context.Background(), "Atlantis"))
	assert.Zero(t, src.alertCalls)
}

func TestTTLAccessors(t *testing.T) {
	c, _, _ := newTestClient(&stubSource{})
	assert.Equal(t, DefaultForecastTTL, c.ForecastTTL())
	assert.Equal(t, DefaultAlertsTTL, c.AlertsTTL())
}
