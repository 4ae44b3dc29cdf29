// Package nws is a client for the National Weather Service API: point
// metadata, period forecasts, and active alerts.
package nws

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/tidwall/gjson"

	"github.com/couchcryptid/weather-assistant/internal/domain"
	"github.com/couchcryptid/weather-assistant/internal/observability"
)

// Defaults used when Config fields are unset.
const (
	DefaultBaseURL    = "https://api.weather.gov"
	DefaultUserAgent  = "weather-assistant/0.1 (ops@example.com)"
	DefaultTimeout    = 10 * time.Second
	DefaultRetryDelay = 200 * time.Millisecond

	maxBody = 4 << 20
)

// Config configures the NWS client.
type Config struct {
	BaseURL   string
	UserAgent string
	Timeout   time.Duration
	// RetryAttempts is the number of retries after the first try for
	// transport errors, 429, and 5xx responses.
	RetryAttempts int
	RetryDelay    time.Duration
}

// Client fetches NWS documents. NWS requires an identifying User-Agent.
type Client struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
	attempts   uint
	delay      time.Duration
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates an NWS client.
func NewClient(cfg Config, logger *slog.Logger, metrics *observability.Metrics) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.RetryAttempts < 0 {
		cfg.RetryAttempts = 0
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = DefaultRetryDelay
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		userAgent:  cfg.UserAgent,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		attempts:   uint(cfg.RetryAttempts) + 1,
		delay:      cfg.RetryDelay,
		metrics:    metrics,
		logger:     logger,
	}
}

// ForecastURL fetches point metadata for c and returns the forecast document URL.
func (c *Client) ForecastURL(ctx context.Context, coords domain.Coordinates) (string, error) {
	body, err := c.getJSON(ctx, "nws_points", fmt.Sprintf("%s/points/%s", c.baseURL, point(coords)))
	if err != nil {
		return "", fmt.Errorf("fetch points: %w", err)
	}
	u := gjson.GetBytes(body, "properties.forecast").String()
	if u == "" {
		return "", domain.ErrNoForecastURL
	}
	return u, nil
}

// Periods fetches the forecast document at forecastURL and returns its
// periods in order.
func (c *Client) Periods(ctx context.Context, forecastURL string) ([]domain.Period, error) {
	body, err := c.getJSON(ctx, "nws_forecast", forecastURL)
	if err != nil {
		return nil, fmt.Errorf("fetch forecast: %w", err)
	}

	raw := gjson.GetBytes(body, "properties.periods").Array()
	periods := make([]domain.Period, 0, len(raw))
	for _, p := range raw {
		periods = append(periods, parsePeriod(p))
	}
	return periods, nil
}

// ActiveAlerts returns {event, headline} pairs for alerts active at coords,
// skipping features that carry neither.
func (c *Client) ActiveAlerts(ctx context.Context, coords domain.Coordinates) ([]domain.Alert, error) {
	body, err := c.getJSON(ctx, "nws_alerts", fmt.Sprintf("%s/alerts/active?point=%s", c.baseURL, point(coords)))
	if err != nil {
		return nil, fmt.Errorf("fetch alerts: %w", err)
	}

	alerts := []domain.Alert{}
	gjson.GetBytes(body, "features").ForEach(func(_, f gjson.Result) bool {
		a := domain.Alert{
			Event:    f.Get("properties.event").String(),
			Headline: f.Get("properties.headline").String(),
		}
		if a.Event != "" || a.Headline != "" {
			alerts = append(alerts, a)
		}
		return true
	})
	return alerts, nil
}

// StatusError is a non-200 upstream response.
type StatusError struct {
	Code int
	URL  string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%d %s for url: %s", e.Code, http.StatusText(e.Code), e.URL)
}

func (c *Client) getJSON(ctx context.Context, upstream, url string) ([]byte, error) {
	start := time.Now()
	var body []byte
	err := retry.Do(
		func() error {
			b, err := c.get(ctx, url)
			if err != nil {
				return err
			}
			body = b
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(c.attempts),
		retry.Delay(c.delay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(retryable),
		retry.OnRetry(func(n uint, err error) {
			c.logger.Debug("retrying nws request", "upstream", upstream, "attempt", n+1, "error", err)
		}),
	)

	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	c.metrics.ObserveUpstream(upstream, outcome, time.Since(start).Seconds())
	return body, err
}

func (c *Client) get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, retry.Unrecoverable(fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/geo+json, application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{Code: resp.StatusCode, URL: url}
	}
	if !gjson.ValidBytes(body) {
		return nil, retry.Unrecoverable(errors.New("decode response: invalid JSON"))
	}
	return body, nil
}

func retryable(err error) bool {
	if !retry.IsRecoverable(err) {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code == http.StatusTooManyRequests || se.Code >= http.StatusInternalServerError
	}
	return !errors.Is(err, context.Canceled)
}

func point(c domain.Coordinates) string {
	return fmt.Sprintf("%.4f,%.4f", c.Lat, c.Lon)
}

// parsePeriod reads one forecast period. Temperature may be a bare number or
// a quantitative value object; missing or null temperatures stay nil.
func parsePeriod(p gjson.Result) domain.Period {
	out := domain.Period{
		Number:           int(p.Get("number").Int()),
		Name:             p.Get("name").String(),
		IsDaytime:        p.Get("isDaytime").Bool(),
		TemperatureUnit:  p.Get("temperatureUnit").String(),
		ShortForecast:    p.Get("shortForecast").String(),
		DetailedForecast: p.Get("detailedForecast").String(),
	}
	out.StartTime, _ = time.Parse(time.RFC3339, p.Get("startTime").String())
	out.EndTime, _ = time.Parse(time.RFC3339, p.Get("endTime").String())

	temp := p.Get("temperature")
	if temp.IsObject() {
		if strings.HasSuffix(temp.Get("unitCode").String(), "degC") && out.TemperatureUnit == "" {
			out.TemperatureUnit = "C"
		}
		temp = temp.Get("value")
	}
	if temp.Type == gjson.Number {
		t := int(math.Round(temp.Float()))
		out.Temperature = &t
	}
	return out
}
