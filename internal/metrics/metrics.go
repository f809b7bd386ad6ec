// Package metrics holds the Prometheus collectors for classification, the
// anchor cache and embedding providers. A nil *Metrics records nothing.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "anchorsense"

// Cache layers.
const (
	LayerMemory = "memory"
	LayerStore  = "store"
)

// Embedding request outcomes.
const (
	OutcomeSuccess  = "success"
	OutcomeError    = "error"
	OutcomeRejected = "rejected"
)

// NewRegistry creates a Prometheus registry with Go runtime and process collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return reg
}

// Handler serves the metrics in reg.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}

// Metrics is the set of application collectors.
type Metrics struct {
	Classifications   *prometheus.CounterVec
	Confidence        prometheus.Histogram
	CacheHits         *prometheus.CounterVec
	CacheMisses       *prometheus.CounterVec
	EmbeddingRequests *prometheus.CounterVec
	EmbeddingDuration *prometheus.HistogramVec
	BreakerState      *prometheus.GaugeVec
}

// New creates the collectors and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Classifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "classifications_total",
			Help:      "Total number of classified texts, by label.",
		}, []string{"label"}),
		Confidence: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "classification_confidence",
			Help:      "Ensemble confidence of classified texts.",
			Buckets:   prometheus.LinearBuckets(0.1, 0.1, 10),
		}),
		CacheHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "anchor_cache",
			Name:      "hits_total",
			Help:      "Total number of anchor cache hits, by layer.",
		}, []string{"layer"}),
		CacheMisses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "anchor_cache",
			Name:      "misses_total",
			Help:      "Total number of anchor cache misses, by layer.",
		}, []string{"layer"}),
		EmbeddingRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "embedding",
			Name:      "requests_total",
			Help:      "Total number of embedding provider calls, by provider and outcome.",
		}, []string{"provider", "outcome"}),
		EmbeddingDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "embedding",
			Name:      "request_duration_seconds",
			Help:      "Embedding provider call latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"provider"}),
		BreakerState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "embedding",
			Name:      "breaker_state",
			Help:      "Circuit breaker state (0=closed, 1=half-open, 2=open).",
		}, []string{"provider"}),
	}

	reg.MustRegister(
		m.Classifications, m.Confidence,
		m.CacheHits, m.CacheMisses,
		m.EmbeddingRequests, m.EmbeddingDuration, m.BreakerState,
	)
	return m
}

func (m *Metrics) RecordClassification(label string, confidence float64) {
	if m == nil {
		return
	}
	m.Classifications.WithLabelValues(label).Inc()
	m.Confidence.Observe(confidence)
}

func (m *Metrics) CacheHit(layer string) {
	if m == nil {
		return
	}
	m.CacheHits.WithLabelValues(layer).Inc()
}

func (m *Metrics) CacheMiss(layer string) {
	if m == nil {
		return
	}
	m.CacheMisses.WithLabelValues(layer).Inc()
}

func (m *Metrics) RecordEmbedding(provider, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.EmbeddingRequests.WithLabelValues(provider, outcome).Inc()
	if outcome != OutcomeRejected {
		m.EmbeddingDuration.WithLabelValues(provider).Observe(d.Seconds())
	}
}

// SetBreakerState records 0 for closed, 1 for half-open and 2 for open.
func (m *Metrics) SetBreakerState(provider string, state float64) {
	if m == nil {
		return
	}
	m.BreakerState.WithLabelValues(provider).Set(state)
}
