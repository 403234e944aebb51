// Package observability holds the Prometheus metrics of the engine.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics. A nil *Metrics is valid and records nothing.
type Metrics struct {
	PriceCacheHits    prometheus.Counter
	PriceCacheMisses  prometheus.Counter
	PriceLookups      *prometheus.CounterVec
	Valuations        *prometheus.CounterVec
	Computations      *prometheus.CounterVec
	ComputationLength prometheus.Histogram
}

// NewMetrics registers the metrics on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)

	return &Metrics{
		PriceCacheHits: f.NewCounter(prometheus.CounterOpts{
			Name: "costbasis_price_cache_hits_total",
			Help: "Historical native price lookups served from the cache.",
		}),
		PriceCacheMisses: f.NewCounter(prometheus.CounterOpts{
			Name: "costbasis_price_cache_misses_total",
			Help: "Historical native price lookups not found in the cache.",
		}),
		PriceLookups: f.NewCounterVec(prometheus.CounterOpts{
			Name: "costbasis_price_remote_lookups_total",
			Help: "Remote historical price lookups by outcome.",
		}, []string{"source", "outcome"}),
		Valuations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "costbasis_valuations_total",
			Help: "Transfer valuations by provenance.",
		}, []string{"provenance"}),
		Computations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "costbasis_computations_total",
			Help: "Portfolio computations by outcome.",
		}, []string{"outcome"}),
		ComputationLength: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "costbasis_computation_transfers",
			Help:    "Number of transfers folded per computation.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		}),
	}
}

// CacheHit records a price cache hit.
func (m *Metrics) CacheHit() {
	if m == nil {
		return
	}
	m.PriceCacheHits.Inc()
}

// CacheMiss records a price cache miss.
func (m *Metrics) CacheMiss() {
	if m == nil {
		return
	}
	m.PriceCacheMisses.Inc()
}

// PriceLookup records a remote price lookup outcome.
func (m *Metrics) PriceLookup(source, outcome string) {
	if m == nil {
		return
	}
	m.PriceLookups.WithLabelValues(source, outcome).Inc()
}

// Valuation records the provenance of one valuation.
func (m *Metrics) Valuation(provenance string) {
	if m == nil {
		return
	}
	m.Valuations.WithLabelValues(provenance).Inc()
}

// Computation records a finished computation.
func (m *Metrics) Computation(outcome string, transfers int) {
	if m == nil {
		return
	}
	m.Computations.WithLabelValues(outcome).Inc()
	m.ComputationLength.Observe(float64(transfers))
}
