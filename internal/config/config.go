package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
	"github.com/hashicorp/go-multierror"
	"github.com/joho/godotenv"
)

// Geocoding providers.
const (
	ProviderGazetteer = "gazetteer"
	ProviderCensus    = "census"
	ProviderMapbox    = "mapbox"
)

// Interaction sinks.
const (
	SinkNone     = "none"
	SinkLog      = "log"
	SinkKafka    = "kafka"
	SinkPostgres = "postgres"
)

// minSessionTTL is the floor applied to SESSION_TTL.
const minSessionTTL = time.Minute

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	SessionTTL        time.Duration
	SessionMaxEntries int
	TurnHistoryLimit  int

	// Geocoding.
	GeoProvider      string
	PlacesCSV        string
	GeocodeCacheTTL  time.Duration
	GeocodeCacheSize int
	CacheMisses      bool
	FuzzyCutoff      int
	CensusURL        string
	CensusBenchmark  string
	MapboxToken      string
	MapboxTimeout    time.Duration

	// National Weather Service.
	NWSBaseURL       string
	NWSUserAgent     string
	NWSTimeout       time.Duration
	NWSRetryAttempts int

	ForecastCacheTTL  time.Duration
	ForecastCacheSize int
	AlertsCacheTTL    time.Duration
	AlertsCacheSize   int

	IntentDataPath    string
	IntentTemperature float64

	// Interaction log.
	InteractionSinks      []string
	KafkaBrokers          []string
	KafkaInteractionTopic string
	PostgresDSN           string
	BatchSize             int
	BatchFlushInterval    time.Duration
	InteractionQueueSize  int
}

// LoadDotEnv seeds the environment from .env files. Variables that are
// already set win, and missing files are ignored.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

// Load reads configuration from environment variables, applying defaults
// where unset. Every invalid setting is reported in the returned error.
func Load() (*Config, error) {
	var errs *multierror.Error
	collect := func(err error) {
		if err != nil {
			errs = multierror.Append(errs, err)
		}
	}

	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	collect(err)
	batchSize, err := sharedcfg.ParseBatchSize()
	collect(err)
	flushInterval, err := sharedcfg.ParseBatchFlushInterval()
	collect(err)

	p := parser{collect: collect}
	cfg := &Config{
		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		SessionTTL:        max(p.duration("SESSION_TTL", "30m"), minSessionTTL),
		SessionMaxEntries: p.integer("SESSION_MAX_ENTRIES", 5000, 1, 1_000_000),
		TurnHistoryLimit:  p.integer("TURN_HISTORY_LIMIT", 20, 1, 1000),

		GeoProvider:      strings.ToLower(sharedcfg.EnvOrDefault("GEO_PROVIDER", ProviderGazetteer)),
		PlacesCSV:        os.Getenv("US_PLACES_CSV"),
		GeocodeCacheTTL:  p.duration("GEOCODE_CACHE_TTL", "1h"),
		GeocodeCacheSize: p.integer("GEOCODE_CACHE_SIZE", 5000, 1, 1_000_000),
		CacheMisses:      p.boolean("GEOCODE_CACHE_MISSES", true),
		FuzzyCutoff:      p.integer("GEOCODE_FUZZY_CUTOFF", 80, 0, 100),
		CensusURL:        sharedcfg.EnvOrDefault("CENSUS_GEOCODER_URL", "https://geocoding.geo.census.gov"),
		CensusBenchmark:  sharedcfg.EnvOrDefault("CENSUS_BENCHMARK", "Public_AR_Current"),
		MapboxToken:      os.Getenv("MAPBOX_TOKEN"),
		MapboxTimeout:    p.duration("MAPBOX_TIMEOUT", "5s"),

		NWSBaseURL:       sharedcfg.EnvOrDefault("NWS_BASE_URL", "https://api.weather.gov"),
		NWSUserAgent:     sharedcfg.EnvOrDefault("NWS_USER_AGENT", "weather-assistant/0.1 (ops@example.com)"),
		NWSTimeout:       p.duration("NWS_TIMEOUT", "10s"),
		NWSRetryAttempts: p.integer("NWS_RETRY_ATTEMPTS", 2, 0, 10),

		ForecastCacheTTL:  p.duration("FORECAST_CACHE_TTL", "30m"),
		ForecastCacheSize: p.integer("FORECAST_CACHE_SIZE", 5000, 1, 1_000_000),
		AlertsCacheTTL:    p.duration("ALERTS_CACHE_TTL", "2m"),
		AlertsCacheSize:   p.integer("ALERTS_CACHE_SIZE", 5000, 1, 1_000_000),

		IntentDataPath:    os.Getenv("INTENT_DATA_PATH"),
		IntentTemperature: p.float("INTENT_CONF_TEMPERATURE", 0.75),

		InteractionSinks:      parseList(sharedcfg.EnvOrDefault("INTERACTION_SINK", SinkLog)),
		KafkaBrokers:          sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaInteractionTopic: sharedcfg.EnvOrDefault("KAFKA_INTERACTION_TOPIC", "assistant-interactions"),
		PostgresDSN:           os.Getenv("POSTGRES_DSN"),
		BatchSize:             batchSize,
		BatchFlushInterval:    flushInterval,
		InteractionQueueSize:  p.integer("INTERACTION_QUEUE_SIZE", 1024, 1, 1_000_000),
	}

	collect(cfg.validate())
	if err := errs.ErrorOrNil(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	var errs *multierror.Error

	switch c.GeoProvider {
	case ProviderGazetteer, ProviderCensus:
	case ProviderMapbox:
		if c.MapboxToken == "" {
			errs = multierror.Append(errs, errors.New("GEO_PROVIDER is mapbox but MAPBOX_TOKEN is not set"))
		}
	default:
		errs = multierror.Append(errs, fmt.Errorf("GEO_PROVIDER %q is not one of gazetteer, census, mapbox", c.GeoProvider))
	}

	if len(c.InteractionSinks) == 0 {
		errs = multierror.Append(errs, errors.New("INTERACTION_SINK must name at least one sink"))
	}
	for _, sink := range c.InteractionSinks {
		switch sink {
		case SinkLog:
		case SinkNone:
			if len(c.InteractionSinks) > 1 {
				errs = multierror.Append(errs, errors.New("INTERACTION_SINK none cannot be combined with other sinks"))
			}
		case SinkKafka:
			if len(c.KafkaBrokers) == 0 {
				errs = multierror.Append(errs, errors.New("KAFKA_BROKERS is required for the kafka sink"))
			}
			if c.KafkaInteractionTopic == "" {
				errs = multierror.Append(errs, errors.New("KAFKA_INTERACTION_TOPIC is required for the kafka sink"))
			}
		case SinkPostgres:
			if c.PostgresDSN == "" {
				errs = multierror.Append(errs, errors.New("POSTGRES_DSN is required for the postgres sink"))
			}
		default:
			errs = multierror.Append(errs, fmt.Errorf("INTERACTION_SINK %q is not one of none, log, kafka, postgres", sink))
		}
	}

	if c.IntentTemperature <= 0 {
		errs = multierror.Append(errs, errors.New("INTENT_CONF_TEMPERATURE must be positive"))
	}
	return errs.ErrorOrNil()
}

// parseList splits a comma-separated list, lowercasing and dropping blanks.
func parseList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.ToLower(strings.TrimSpace(part)); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// parser reads typed variables, reporting failures through collect and
// falling back to the default.
type parser struct {
	collect func(error)
}

func (p parser) duration(name, def string) time.Duration {
	raw := sharedcfg.EnvOrDefault(name, def)
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		p.collect(fmt.Errorf("invalid %s %q: must be a positive duration", name, raw))
		d, _ = time.ParseDuration(def)
	}
	return d
}

func (p parser) integer(name string, def, lo, hi int) int {
	raw := os.Getenv(name)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < lo || n > hi {
		p.collect(fmt.Errorf("invalid %s %q: must be an integer in [%d, %d]", name, raw, lo, hi))
		return def
	}
	return n
}

func (p parser) float(name string, def float64) float64 {
	raw := os.Getenv(name)
	if raw == "" {
		return def
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		p.collect(fmt.Errorf("invalid %s %q: must be a number", name, raw))
		return def
	}
	return f
}

func (p parser) boolean(name string, def bool) bool {
	raw := os.Getenv(name)
	if raw == "" {
		return def
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		p.collect(fmt.Errorf("invalid %s %q: must be a boolean", name, raw))
		return def
	}
	return b
}
