// Package obsmetrics provides the Prometheus collectors shared across
// the analysis core.
package obsmetrics

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds every collector the core registers.
type Metrics struct {
	AnalysesTotal        *prometheus.CounterVec
	AnalysisDuration      *prometheus.HistogramVec
	EngineErrorsTotal     *prometheus.CounterVec
	CacheHitsTotal        prometheus.Counter
	CacheMissesTotal      prometheus.Counter
	BreakerStateGauge     *prometheus.GaugeVec
	RateLimitRejections   *prometheus.CounterVec
	QueueDepth            *prometheus.GaugeVec
}

// New creates a Metrics instance registered against the default
// registerer.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates a Metrics instance registered against a
// caller-supplied registerer, so tests can use a private registry.
func NewWithRegistry(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		AnalysesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "analysis_analyses_total",
			Help: "Total number of analyses completed, by consensus verdict.",
		}, []string{"verdict"}),
		AnalysisDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "analysis_duration_seconds",
			Help:    "Analysis processing duration in seconds.",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		}, []string{"status"}),
		EngineErrorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "analysis_engine_errors_total",
			Help: "Total number of engine failures degraded to Unknown detections.",
		}, []string{"engine"}),
		CacheHitsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "analysis_cache_hits_total",
			Help: "Total number of result-cache hits.",
		}),
		CacheMissesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "analysis_cache_misses_total",
			Help: "Total number of result-cache misses.",
		}),
		BreakerStateGauge: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "analysis_circuit_breaker_state",
			Help: "Circuit breaker state per source (0=closed, 1=half-open, 2=open).",
		}, []string{"source"}),
		RateLimitRejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "analysis_rate_limit_rejections_total",
			Help: "Total number of rate-limit backpressure events per source.",
		}, []string{"source"}),
		QueueDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "analysis_queue_depth",
			Help: "Current number of queued jobs per priority lane.",
		}, []string{"priority"}),
	}

	for _, c := range []prometheus.Collector{
		m.AnalysesTotal, m.AnalysisDuration, m.EngineErrorsTotal,
		m.CacheHitsTotal, m.CacheMissesTotal, m.BreakerStateGauge,
		m.RateLimitRejections, m.QueueDepth,
	} {
		_ = reg.Register(c)
	}

	return m
}
