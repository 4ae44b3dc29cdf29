package geocode

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/weather-assistant/internal/cache"
	"github.com/couchcryptid/weather-assistant/internal/domain"
	"github.com/couchcryptid/weather-assistant/internal/observability"
)

// Defaults used when ResolverConfig fields are unset.
const (
	DefaultCacheTTL  = time.Hour
	DefaultCacheSize = 5000
)

// ResolverConfig tunes the resolver cache.
type ResolverConfig struct {
	CacheTTL  time.Duration
	CacheSize int
	// SkipMissCache disables caching of "not found" outcomes.
	SkipMissCache bool
}

// lookup is a cached provider outcome; found=false caches a miss.
type lookup struct {
	coords domain.Coordinates
	found  bool
}

// Resolver canonicalizes locations and resolves them through a provider,
// caching outcomes keyed by (provider, normalized query).
type Resolver struct {
	provider domain.Geocoder
	cache    *cache.Cache[lookup]
	cfg      ResolverConfig
	logger   *slog.Logger
	metrics  *observability.Metrics
}

// NewResolver creates a caching resolver around provider.
func NewResolver(provider domain.Geocoder, cfg ResolverConfig, clock clockwork.Clock, logger *slog.Logger, metrics *observability.Metrics) *Resolver {
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = DefaultCacheTTL
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = DefaultCacheSize
	}
	return &Resolver{
		provider: provider,
		cache:    cache.New[lookup](cfg.CacheTTL, cfg.CacheSize, clock),
		cfg:      cfg,
		logger:   logger,
		metrics:  metrics,
	}
}

// ProviderName identifies the configured provider.
func (r *Resolver) ProviderName() string {
	return r.provider.Name()
}

// CacheTTL returns the lifetime of cached outcomes.
func (r *Resolver) CacheTTL() time.Duration {
	return r.cfg.CacheTTL
}

// Canonicalize normalizes a location for display and cache keys.
func (r *Resolver) Canonicalize(text string) string {
	return Canonicalize(text)
}

// Geocode resolves text to coordinates. An unresolvable location, or a
// provider failure, reports false; failures are logged and not cached.
func (r *Resolver) Geocode(ctx context.Context, text string) (domain.Coordinates, bool) {
	canonical := Canonicalize(text)
	if canonical == "" {
		return domain.Coordinates{}, false
	}

	key := r.provider.Name() + "|" + strings.ToLower(canonical)
	if hit, ok := r.cache.Get(key); ok {
		r.metrics.CacheResult("geocode", true)
		return hit.coords, hit.found
	}
	r.metrics.CacheResult("geocode", false)

	name, state := SplitCityState(canonical)
	result, err := r.provider.ForwardGeocode(ctx, name, state)
	if err != nil {
		r.logger.Warn("geocoding failed",
			"provider", r.provider.Name(),
			"location", canonical,
			"error", err,
		)
		return domain.Coordinates{}, false
	}

	if !result.Found() {
		if !r.cfg.SkipMissCache {
			r.cache.Set(key, lookup{})
		}
		return domain.Coordinates{}, false
	}

	coords := result.Coordinates()
	r.cache.Set(key, lookup{coords: coords, found: true})
	return coords, true
}
