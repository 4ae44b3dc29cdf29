package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "weather_assistant"

// Metrics holds the Prometheus counters, histograms, and gauges for the assistant.
type Metrics struct {
	// Request handling.
	Requests      *prometheus.CounterVec // labels: intent
	LowConfidence prometheus.Counter
	ReplyDuration prometheus.Histogram

	// Session memory.
	SessionsLive    prometheus.Gauge
	SessionsEvicted *prometheus.CounterVec // labels: reason={expired,capacity}

	// Caches: cache={geocode,forecast,alerts}, result={hit,miss}.
	CacheLookups *prometheus.CounterVec

	// Upstream calls: upstream={nws_points,nws_forecast,nws_alerts,census,mapbox,gazetteer}.
	UpstreamRequests *prometheus.CounterVec   // labels: upstream, outcome={success,error,empty}
	UpstreamDuration *prometheus.HistogramVec // labels: upstream

	// Interaction log pipeline.
	InteractionsQueued  prometheus.Counter
	InteractionsDropped prometheus.Counter
	InteractionsWritten prometheus.Counter
	InteractionErrors   prometheus.Counter
}

// NewMetrics creates and registers all assistant metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := NewMetricsForTesting()
	prometheus.MustRegister(
		m.Requests,
		m.LowConfidence,
		m.ReplyDuration,
		m.SessionsLive,
		m.SessionsEvicted,
		m.CacheLookups,
		m.UpstreamRequests,
		m.UpstreamDuration,
		m.InteractionsQueued,
		m.InteractionsDropped,
		m.InteractionsWritten,
		m.InteractionErrors,
	)
	return m
}

// NewMetricsForTesting creates Metrics without registering them, avoiding
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return &Metrics{
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Handled queries by classified intent.",
		}, []string{"intent"}),
		LowConfidence: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "low_confidence_total",
			Help:      "Queries classified below the low-confidence threshold.",
		}),
		ReplyDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "reply_duration_seconds",
			Help:      "End-to-end time to produce a reply.",
			Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
		SessionsLive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_live",
			Help:      "Sessions currently held in memory.",
		}),
		SessionsEvicted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_evicted_total",
			Help:      "Sessions dropped by reason.",
		}, []string{"reason"}),
		CacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_lookups_total",
			Help:      "Cache lookups by cache and result.",
		}, []string{"cache", "result"}),
		UpstreamRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_requests_total",
			Help:      "Upstream data requests by upstream and outcome.",
		}, []string{"upstream", "outcome"}),
		UpstreamDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "upstream_duration_seconds",
			Help:      "Upstream data request duration in seconds.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"upstream"}),
		InteractionsQueued: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "interactions_queued_total",
			Help:      "Interaction records accepted by the log queue.",
		}),
		InteractionsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "interactions_dropped_total",
			Help:      "Interaction records dropped because the queue was full.",
		}),
		InteractionsWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "interactions_written_total",
			Help:      "Interaction records persisted by the sink.",
		}),
		InteractionErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "interaction_sink_errors_total",
			Help:      "Failed interaction sink writes.",
		}),
	}
}

// CacheResult records a cache lookup outcome. A nil receiver is a no-op.
func (m *Metrics) CacheResult(cache string, hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.CacheLookups.WithLabelValues(cache, result).Inc()
}

// ObserveUpstream records one upstream call. A nil receiver is a no-op.
func (m *Metrics) ObserveUpstream(upstream, outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.UpstreamRequests.WithLabelValues(upstream, outcome).Inc()
	m.UpstreamDuration.WithLabelValues(upstream).Observe(seconds)
}

// ObserveQueued records an interaction accepted by or dropped from the log
// queue. A nil receiver is a no-op.
func (m *Metrics) ObserveQueued(accepted bool) {
	if m == nil {
		return
	}
	if accepted {
		m.InteractionsQueued.Inc()
		return
	}
	m.InteractionsDropped.Inc()
}

// ObserveBatch records one interaction batch write attempt. A nil receiver is
// a no-op.
func (m *Metrics) ObserveBatch(size int, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.InteractionErrors.Inc()
		return
	}
	m.InteractionsWritten.Add(float64(size))
}

// ObserveDropped records interactions abandoned after failed writes. A nil
// receiver is a no-op.
func (m *Metrics) ObserveDropped(n int) {
	if m == nil {
		return
	}
	m.InteractionsDropped.Add(float64(n))
}

// ObserveRequest records one handled query. A nil receiver is a no-op.
func (m *Metrics) ObserveRequest(intent string, lowConfidence bool, seconds float64) {
	if m == nil {
		return
	}
	m.Requests.WithLabelValues(intent).Inc()
	if lowConfidence {
		m.LowConfidence.Inc()
	}
	m.ReplyDuration.Observe(seconds)
}
