package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/weather-assistant/internal/adapter/census"
	kafkaadapter "github.com/couchcryptid/weather-assistant/internal/adapter/kafka"
	"github.com/couchcryptid/weather-assistant/internal/adapter/mapbox"
	"github.com/couchcryptid/weather-assistant/internal/adapter/nws"
	"github.com/couchcryptid/weather-assistant/internal/adapter/postgres"
	"github.com/couchcryptid/weather-assistant/internal/assistant"
	"github.com/couchcryptid/weather-assistant/internal/config"
	"github.com/couchcryptid/weather-assistant/internal/domain"
	"github.com/couchcryptid/weather-assistant/internal/geocode"
	"github.com/couchcryptid/weather-assistant/internal/interaction"
	"github.com/couchcryptid/weather-assistant/internal/nlu"
	"github.com/couchcryptid/weather-assistant/internal/observability"
	"github.com/couchcryptid/weather-assistant/internal/policy"
	"github.com/couchcryptid/weather-assistant/internal/session"
	"github.com/couchcryptid/weather-assistant/internal/weather"
)

// app is the fully wired assistant.
type app struct {
	service  *assistant.Service
	resolver *geocode.Resolver
	weather  *weather.Client
	store    *session.Store
	pipeline *interaction.Pipeline // nil when interactions are not logged
	closers  []io.Closer
	logger   *slog.Logger
}

// newApp builds every component from cfg. sinks overrides the configured
// interaction sinks when non-nil.
func newApp(cfg *config.Config, sinks []string, logger *slog.Logger, metrics *observability.Metrics) (*app, error) {
	clock := clockwork.NewRealClock()
	a := &app{logger: logger}

	gazetteer, err := geocode.LoadGazetteer(cfg.PlacesCSV, cfg.FuzzyCutoff, metrics)
	if err != nil {
		return nil, fmt.Errorf("load gazetteer: %w", err)
	}
	logger.Info("gazetteer loaded", "places", gazetteer.Len())

	var provider domain.Geocoder
	switch cfg.GeoProvider {
	case config.ProviderCensus:
		provider = census.NewClient(cfg.CensusURL, cfg.CensusBenchmark, cfg.NWSUserAgent, cfg.NWSTimeout, logger, metrics)
	case config.ProviderMapbox:
		provider = mapbox.NewClient(cfg.MapboxToken, cfg.MapboxTimeout, logger, metrics)
	default:
		provider = gazetteer
	}
	a.resolver = geocode.NewResolver(provider, geocode.ResolverConfig{
		CacheTTL:      cfg.GeocodeCacheTTL,
		CacheSize:     cfg.GeocodeCacheSize,
		SkipMissCache: !cfg.CacheMisses,
	}, clock, logger, metrics)
	logger.Info("geocoding configured", "provider", provider.Name(), "cache_ttl", cfg.GeocodeCacheTTL)

	source := nws.NewClient(nws.Config{
		BaseURL:       cfg.NWSBaseURL,
		UserAgent:     cfg.NWSUserAgent,
		Timeout:       cfg.NWSTimeout,
		RetryAttempts: cfg.NWSRetryAttempts,
	}, logger, metrics)
	a.weather = weather.NewClient(a.resolver, source, weather.Config{
		ForecastTTL:     cfg.ForecastCacheTTL,
		ForecastEntries: cfg.ForecastCacheSize,
		AlertsTTL:       cfg.AlertsCacheTTL,
		AlertsEntries:   cfg.AlertsCacheSize,
	}, clock, logger, metrics)

	a.store = session.NewStore(session.Config{
		TTL:          cfg.SessionTTL,
		MaxSessions:  cfg.SessionMaxEntries,
		TurnCapacity: cfg.TurnHistoryLimit,
	}, clock, metrics)

	classifier, examples, err := nlu.Train(cfg.IntentDataPath, cfg.IntentTemperature)
	if err != nil {
		return nil, fmt.Errorf("load intent model: %w", err)
	}
	logger.Info("intent classifier trained", "examples", len(examples), "intents", len(classifier.Classes()))

	if sinks == nil {
		sinks = cfg.InteractionSinks
	}
	sink, backends, err := a.openSinks(cfg, sinks, logger)
	if err != nil {
		a.Close()
		return nil, err
	}

	deps := assistant.Deps{
		Classifier: classifier,
		Extractor:  nlu.Extractor{Recognizer: nlu.NewPlaceRecognizer(gazetteer.Names())},
		Policy:     policy.New(a.store, a.weather, logger),
		Store:      a.store,
		Locator:    a.resolver,
		Backends:   backends,
		Clock:      clock,
		Logger:     logger,
		Metrics:    metrics,
	}
	if sink != nil {
		a.pipeline = interaction.NewPipeline(sink, interaction.Config{
			QueueSize:     cfg.InteractionQueueSize,
			BatchSize:     cfg.BatchSize,
			FlushInterval: cfg.BatchFlushInterval,
		}, logger, metrics)
		deps.Interactions = a.pipeline
	}
	a.service = assistant.NewService(deps)
	return a, nil
}

// openSinks opens the named interaction sinks. It returns a nil sink when
// interactions should not be logged.
func (a *app) openSinks(cfg *config.Config, names []string, logger *slog.Logger) (interaction.Sink, []assistant.Pinger, error) {
	var (
		sinks    interaction.Fanout
		backends []assistant.Pinger
	)
	for _, name := range names {
		switch name {
		case config.SinkNone:
			return nil, nil, nil
		case config.SinkLog:
			sinks = append(sinks, interaction.NewLogSink(logger))
		case config.SinkKafka:
			w := kafkaadapter.NewWriter(cfg.KafkaBrokers, cfg.KafkaInteractionTopic, logger)
			a.closers = append(a.closers, w)
			sinks = append(sinks, w)
		case config.SinkPostgres:
			store, err := postgres.Open(cfg.PostgresDSN, logger)
			if err != nil {
				return nil, nil, fmt.Errorf("open postgres sink: %w", err)
			}
			a.closers = append(a.closers, store)
			backends = append(backends, store)
			sinks = append(sinks, store)
		default:
			return nil, nil, fmt.Errorf("unknown interaction sink %q", name)
		}
	}
	switch len(sinks) {
	case 0:
		return nil, backends, nil
	case 1:
		return sinks[0], backends, nil
	}
	return sinks, backends, nil
}

// runPipeline writes interactions until ctx is done and returns once the
// queue has drained. It returns a closed channel when nothing is logged.
func (a *app) runPipeline(ctx context.Context) <-chan struct{} {
	done := make(chan struct{})
	if a.pipeline == nil {
		close(done)
		return done
	}
	go func() {
		defer close(done)
		if err := a.pipeline.Run(ctx); err != nil {
			a.logger.Error("interaction pipeline error", "error", err)
		}
	}()
	return done
}

// Close releases sink connections.
func (a *app) Close() {
	for _, c := range a.closers {
		if err := c.Close(); err != nil {
			a.logger.Error("close error", "error", err)
		}
	}
}
