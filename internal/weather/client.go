// Package weather answers forecast and alert requests for free-text
// locations. It selects the forecast period for a time reference, converts
// temperature units, and caches both kinds of result with TTL and capacity
// bounds. Upstream failures become values, never errors.
package weather

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/weather-assistant/internal/cache"
	"github.com/couchcryptid/weather-assistant/internal/domain"
	"github.com/couchcryptid/weather-assistant/internal/observability"
)

// Defaults used when Config fields are unset.
const (
	DefaultForecastTTL  = 30 * time.Minute
	DefaultAlertsTTL    = 2 * time.Minute
	DefaultCacheEntries = 5000
)

// signatureLayout truncates a period start time to the minute.
const signatureLayout = "2006-01-02T15:04"

// Locator resolves free-text locations. A miss reports false.
type Locator interface {
	Canonicalize(text string) string
	Geocode(ctx context.Context, text string) (domain.Coordinates, bool)
}

// Source fetches raw forecast and alert data for coordinates.
type Source interface {
	ForecastURL(ctx context.Context, coords domain.Coordinates) (string, error)
	Periods(ctx context.Context, forecastURL string) ([]domain.Period, error)
	ActiveAlerts(ctx context.Context, coords domain.Coordinates) ([]domain.Alert, error)
}

// Config bounds the forecast and alerts caches.
type Config struct {
	ForecastTTL     time.Duration
	ForecastEntries int
	AlertsTTL       time.Duration
	AlertsEntries   int
}

// Client serves forecasts and alerts through bounded TTL caches.
type Client struct {
	locator   Locator
	source    Source
	cfg       Config
	forecasts *cache.Cache[domain.ForecastResult]
	alerts    *cache.Cache[[]domain.Alert]
	logger    *slog.Logger
	metrics   *observability.Metrics
}

// NewClient creates a Client. A nil clock means the real clock.
func NewClient(locator Locator, source Source, cfg Config, clock clockwork.Clock, logger *slog.Logger, metrics *observability.Metrics) *Client {
	if cfg.ForecastTTL <= 0 {
		cfg.ForecastTTL = DefaultForecastTTL
	}
	if cfg.ForecastEntries <= 0 {
		cfg.ForecastEntries = DefaultCacheEntries
	}
	if cfg.AlertsTTL <= 0 {
		cfg.AlertsTTL = DefaultAlertsTTL
	}
	if cfg.AlertsEntries <= 0 {
		cfg.AlertsEntries = DefaultCacheEntries
	}
	return &Client{
		locator:   locator,
		source:    source,
		cfg:       cfg,
		forecasts: cache.New[domain.ForecastResult](cfg.ForecastTTL, cfg.ForecastEntries, clock),
		alerts:    cache.New[[]domain.Alert](cfg.AlertsTTL, cfg.AlertsEntries, clock),
		logger:    logger,
		metrics:   metrics,
	}
}

// ForecastTTL returns the forecast cache lifetime.
func (c *Client) ForecastTTL() time.Duration { return c.cfg.ForecastTTL }

// AlertsTTL returns the alerts cache lifetime.
func (c *Client) AlertsTTL() time.Duration { return c.cfg.AlertsTTL }

// GetForecast returns the period answering when at loc, in the requested
// unit system. Failures are reported in the result's Error field.
func (c *Client) GetForecast(ctx context.Context, loc string, when domain.TimeRef, units domain.Units) domain.ForecastResult {
	coords, ok := c.locator.Geocode(ctx, loc)
	if !ok {
		return domain.ForecastResult{Location: loc, Error: "Unknown location: " + loc}
	}

	when = when.Normalize()
	if when == "" {
		when = domain.TimeToday
	}
	unit := units.Symbol()
	display := c.displayLocation(loc)
	key := strings.ToLower(display) + "|" + string(when) + "|" + unit

	if hit, ok := c.forecasts.Get(key); ok {
		c.metrics.CacheResult("forecast", true)
		return hit
	}
	c.metrics.CacheResult("forecast", false)

	forecastURL, err := c.source.ForecastURL(ctx, coords)
	if err != nil {
		return c.forecastError(loc, err)
	}
	periods, err := c.source.Periods(ctx, forecastURL)
	if err != nil {
		return c.forecastError(loc, err)
	}
	period, ok := SelectPeriod(periods, when)
	if !ok {
		return domain.ForecastResult{Location: loc, Error: "No forecast periods available"}
	}

	result := buildResult(loc, display, when, unit, period)
	c.forecasts.Set(key, result)
	return result
}

// GetAlerts returns the active alerts near loc. An unresolved location or an
// upstream failure yields an empty list, indistinguishable from no alerts.
func (c *Client) GetAlerts(ctx context.Context, loc string) []domain.Alert {
	coords, ok := c.locator.Geocode(ctx, loc)
	if !ok {
		return []domain.Alert{}
	}

	key := strings.ToLower(c.displayLocation(loc))
	if hit, ok := c.alerts.Get(key); ok {
		c.metrics.CacheResult("alerts", true)
		return hit
	}
	c.metrics.CacheResult("alerts", false)

	alerts, err := c.source.ActiveAlerts(ctx, coords)
	if err != nil {
		c.logger.Warn("alerts fetch failed", "location", loc, "error", err)
		return []domain.Alert{}
	}
	if alerts == nil {
		alerts = []domain.Alert{}
	}
	c.alerts.Set(key, alerts)
	return alerts
}

func (c *Client) displayLocation(loc string) string {
	if d := c.locator.Canonicalize(loc); d != "" {
		return d
	}
	return strings.TrimSpace(loc)
}

func (c *Client) forecastError(loc string, err error) domain.ForecastResult {
	c.logger.Warn("forecast fetch failed", "location", loc, "error", err)
	msg := "HTTP error: " + err.Error()
	if errors.Is(err, domain.ErrNoForecastURL) {
		msg = "Forecast URL not available"
	}
	return domain.ForecastResult{Location: loc, Error: msg}
}

func buildResult(loc, display string, when domain.TimeRef, unit string, p domain.Period) domain.ForecastResult {
	name := p.Name
	if name == "" {
		name = titleToken(when)
	}
	short := p.ShortForecast
	if short == "" {
		short = "Forecast unavailable"
	}
	source := strings.ToUpper(strings.TrimSpace(p.TemperatureUnit))
	if source == "" {
		source = "F"
	}

	var temp *int
	if p.Temperature != nil {
		t := domain.ConvertTemperature(*p.Temperature, source, unit)
		temp = &t
	}

	freshness := string(when)
	if !p.StartTime.IsZero() {
		freshness = p.StartTime.Format(signatureLayout)
	}

	return domain.ForecastResult{
		Location:      loc,
		Period:        name,
		ShortForecast: short,
		Temperature:   temp,
		Unit:          unit,
		SourceUnit:    source,
		StartTime:     p.StartTime,
		EndTime:       p.EndTime,
		CacheKey:      "weather:" + display + ":" + freshness + ":" + unit,
	}
}

// titleToken renders a token like "tomorrow_night" as "Tomorrow Night".
func titleToken(t domain.TimeRef) string {
	words := strings.Fields(strings.ReplaceAll(string(t), "_", " "))
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
