// Package metrics exposes Prometheus counters and histograms for the
// allocate/resolve hot paths, the Bloom Filter fast-path hit rate, and
// circuit-breaker state (spec_full §2 "Metrics", §6 "GET /metrics").
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Registry bundles every metric this service reports. A single instance is
// built at startup and threaded into the handler layer.
type Registry struct {
	AllocateTotal     *prometheus.CounterVec
	AllocateDuration  *prometheus.HistogramVec
	ResolveTotal      *prometheus.CounterVec
	ResolveDuration    *prometheus.HistogramVec
	BloomFastPathHits *prometheus.CounterVec
	BreakerState      *prometheus.GaugeVec
}

// New registers every metric against prometheus's default registerer and
// returns the bundle. Calling New twice in the same process will panic on
// duplicate registration, matching promauto's documented behavior.
func New() *Registry {
	return &Registry{
		AllocateTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "shortcore",
			Subsystem: "allocator",
			Name:      "allocate_total",
			Help:      "Total Allocate calls, labeled by outcome.",
		}, []string{"outcome"}),
		AllocateDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "shortcore",
			Subsystem: "allocator",
			Name:      "allocate_duration_seconds",
			Help:      "Allocate call latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"outcome"}),
		ResolveTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "shortcore",
			Subsystem: "resolver",
			Name:      "resolve_total",
			Help:      "Total Resolve calls, labeled by outcome.",
		}, []string{"outcome"}),
		ResolveDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "shortcore",
			Subsystem: "resolver",
			Name:      "resolve_duration_seconds",
			Help:      "Resolve call latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"outcome"}),
		BloomFastPathHits: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "shortcore",
			Subsystem: "bloomfilter",
			Name:      "fast_path_total",
			Help:      "Bloom filter fast-path outcomes: definite_negative, probe_required, not_ready.",
		}, []string{"result"}),
		BreakerState: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "shortcore",
			Subsystem: "circuit_breaker",
			Name:      "state",
			Help:      "Circuit breaker state: 0=closed, 1=half-open, 2=open.",
		}, []string{"name"}),
	}
}

// ObserveBreakerState maps gobreaker's State.String() onto the numeric
// gauge convention documented above.
func (r *Registry) ObserveBreakerState(name, state string) {
	var v float64
	switch state {
	case "closed":
		v = 0
	case "half-open":
		v = 1
	case "open":
		v = 2
	}
	r.BreakerState.WithLabelValues(name).Set(v)
}
