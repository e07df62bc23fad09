package telemetry

import (
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics provides Prometheus metrics for the boundary operations.
type Metrics struct {
	config MetricsConfig

	// Call metrics
	calls        *prometheus.CounterVec
	callDuration *prometheus.HistogramVec

	// Failure metrics
	failuresByClass *prometheus.CounterVec
	panics          *prometheus.CounterVec

	// Ownership metrics
	allocations     *prometheus.CounterVec
	releases        *prometheus.CounterVec
	liveAllocations *prometheus.GaugeVec

	registry *prometheus.Registry
}

// NewMetrics creates a new metrics collector with the given configuration.
func NewMetrics(cfg MetricsConfig) (*Metrics, error) {
	if !cfg.Enabled {
		// Return a no-op metrics instance
		return &Metrics{config: cfg}, nil
	}

	namespace := cfg.Namespace
	buckets := cfg.DefaultHistogramBuckets
	if len(buckets) == 0 {
		buckets = prometheus.DefBuckets
	}

	registry := prometheus.NewRegistry()

	m := &Metrics{
		config:   cfg,
		registry: registry,

		calls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "calls_total",
				Help:      "Total number of boundary calls by operation and outcome",
			},
			[]string{"operation", "outcome"},
		),
		callDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "call_duration_seconds",
				Help:      "Duration of boundary calls in seconds",
				Buckets:   buckets,
			},
			[]string{"operation"},
		),

		failuresByClass: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "failures_total",
				Help:      "Total number of failed calls by error class",
			},
			[]string{"operation", "class"},
		),
		panics: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "engine_panics_total",
				Help:      "Total number of engine faults recovered at the boundary",
			},
			[]string{"operation"},
		),

		allocations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "allocations_total",
				Help:      "Total number of result allocations handed to callers",
			},
			[]string{"abi"},
		),
		releases: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "releases_total",
				Help:      "Total number of result allocations released by callers",
			},
			[]string{"abi"},
		),
		liveAllocations: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "live_allocations",
				Help:      "Result allocations currently owned by callers",
			},
			[]string{"abi"},
		),
	}

	registry.MustRegister(
		m.calls,
		m.callDuration,
		m.failuresByClass,
		m.panics,
		m.allocations,
		m.releases,
		m.liveAllocations,
	)

	return m, nil
}

// RecordCall records a finished boundary call with its outcome and duration.
func (m *Metrics) RecordCall(operation, outcome string, duration time.Duration) {
	if m == nil || m.calls == nil {
		return
	}
	m.calls.WithLabelValues(operation, outcome).Inc()
	m.callDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordFailure records a failed call by error class.
func (m *Metrics) RecordFailure(operation, class string) {
	if m == nil || m.failuresByClass == nil {
		return
	}
	m.failuresByClass.WithLabelValues(operation, class).Inc()
}

// RecordPanic records an engine fault that was recovered.
func (m *Metrics) RecordPanic(operation string) {
	if m == nil || m.panics == nil {
		return
	}
	m.panics.WithLabelValues(operation).Inc()
}

// RecordAllocation records a result graph handed to a caller.
func (m *Metrics) RecordAllocation(abi string) {
	if m == nil || m.allocations == nil {
		return
	}
	m.allocations.WithLabelValues(abi).Inc()
	m.liveAllocations.WithLabelValues(abi).Inc()
}

// RecordRelease records a result graph returned by a caller.
func (m *Metrics) RecordRelease(abi string) {
	if m == nil || m.releases == nil {
		return
	}
	m.releases.WithLabelValues(abi).Inc()
	m.liveAllocations.WithLabelValues(abi).Dec()
}

// Registry returns the private registry, or nil when metrics are disabled.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Timer provides a convenient way to time operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// Duration returns the elapsed time since the timer was created.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}

// ObserveDuration is a helper to time an operation and record it.
func (t *Timer) ObserveDuration(observer prometheus.Observer) {
	observer.Observe(t.Duration().Seconds())
}

// Handler returns an HTTP handler for the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil || m.registry == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// StartMetricsServer starts an HTTP server to expose metrics. It returns nil
// when metrics are disabled or no listen address is configured.
func (m *Metrics) StartMetricsServer(logger *Logger) *http.Server {
	if m == nil || !m.config.Enabled || m.config.ListenAddress == "" {
		return nil
	}
	if logger == nil {
		logger = NopLogger()
	}

	mux := http.NewServeMux()
	mux.Handle(m.config.Path, m.Handler())

	server := &http.Server{
		Addr:              m.config.ListenAddress,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			// Log error but don't fail the host process
			logger.WithError(err).Warn("metrics server stopped")
		}
	}()

	return server
}
