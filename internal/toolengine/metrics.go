package toolengine

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics collects execution engine counters. A nil *Metrics is valid and
// records nothing, so tests that do not care can pass nil.
type Metrics struct {
	executions  *prometheus.CounterVec
	cacheHits   prometheus.Counter
	cacheMisses prometheus.Counter
	dedupShares prometheus.Counter
	duration    *prometheus.HistogramVec
}

// NewMetrics builds and registers the engine collectors.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		executions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hyperfocus",
			Subsystem: "toolengine",
			Name:      "executions_total",
			Help:      "Tool executions by tool name and final status.",
		}, []string{"tool", "status"}),
		cacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "hyperfocus",
			Subsystem: "toolengine",
			Name:      "cache_hits_total",
			Help:      "Tool calls answered from the result cache.",
		}),
		cacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "hyperfocus",
			Subsystem: "toolengine",
			Name:      "cache_misses_total",
			Help:      "Cacheable tool calls that required execution.",
		}),
		dedupShares: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "hyperfocus",
			Subsystem: "toolengine",
			Name:      "dedup_shared_total",
			Help:      "Tool calls that shared an in-flight execution.",
		}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "hyperfocus",
			Subsystem: "toolengine",
			Name:      "execution_seconds",
			Help:      "Wall-clock handler execution time.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"tool"}),
	}
	if reg != nil {
		reg.MustRegister(m.executions, m.cacheHits, m.cacheMisses, m.dedupShares, m.duration)
	}
	return m
}

func (m *Metrics) execution(tool, status string, seconds float64) {
	if m == nil {
		return
	}
	m.executions.WithLabelValues(tool, status).Inc()
	m.duration.WithLabelValues(tool).Observe(seconds)
}

func (m *Metrics) cacheHit() {
	if m != nil {
		m.cacheHits.Inc()
	}
}

func (m *Metrics) cacheMiss() {
	if m != nil {
		m.cacheMisses.Inc()
	}
}

func (m *Metrics) dedupShare() {
	if m != nil {
		m.dedupShares.Inc()
	}
}
