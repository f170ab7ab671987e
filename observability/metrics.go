package observability

import (
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// moduleMetrics tracks request volume, errors, and latency for the local
// API boundary (the HTTP surface clients submit signed envelopes and issue
// reads through).
type moduleMetrics struct {
	requests  *prometheus.CounterVec
	errors    *prometheus.CounterVec
	latency   *prometheus.HistogramVec
	throttles *prometheus.CounterVec
}

var (
	moduleMetricsOnce sync.Once
	moduleRegistry    *moduleMetrics

	engineMetricsOnce sync.Once
	engineRegistry    *engineMetrics
)

// ModuleMetrics returns the lazily-initialised module metrics registry used
// to record local API request activity.
func ModuleMetrics() *moduleMetrics {
	moduleMetricsOnce.Do(func() {
		moduleRegistry = &moduleMetrics{
			requests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "clawnet",
				Subsystem: "api",
				Name:      "requests_total",
				Help:      "Total local API requests segmented by module and method.",
			}, []string{"module", "method", "outcome"}),
			errors: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "clawnet",
				Subsystem: "api",
				Name:      "errors_total",
				Help:      "Total local API errors segmented by module, method, and status code.",
			}, []string{"module", "method", "status"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "clawnet",
				Subsystem: "api",
				Name:      "request_duration_seconds",
				Help:      "Latency distribution for local API handlers.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"module", "method"}),
			throttles: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "clawnet",
				Subsystem: "api",
				Name:      "throttles_total",
				Help:      "Count of requests rejected by the rate limiter.",
			}, []string{"module", "reason"}),
		}
		prometheus.MustRegister(
			moduleRegistry.requests,
			moduleRegistry.errors,
			moduleRegistry.latency,
			moduleRegistry.throttles,
		)
	})
	return moduleRegistry
}

// Observe records the outcome of a local API request. status should be the
// HTTP status ultimately written to the response writer.
func (m *moduleMetrics) Observe(module, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	if module == "" {
		module = "unknown"
	}
	if method == "" {
		method = "unknown"
	}
	outcome := "success"
	if status >= 400 {
		outcome = "error"
	}
	m.requests.WithLabelValues(module, method, outcome).Inc()
	if status >= 400 {
		m.errors.WithLabelValues(module, method, fmt.Sprintf("%d", status)).Inc()
	}
	m.latency.WithLabelValues(module, method).Observe(duration.Seconds())
}

// RecordThrottle increments the throttle counter for the supplied module and
// reason. Reasons should be stable strings such as "rate_limit" so
// dashboards and alerts remain consistent.
func (m *moduleMetrics) RecordThrottle(module, reason string) {
	if m == nil {
		return
	}
	if module == "" {
		module = "unknown"
	}
	if reason == "" {
		reason = "unspecified"
	}
	m.throttles.WithLabelValues(module, reason).Inc()
}

// engineMetrics tracks validate-apply pipeline latency, independent of
// which transport (local API or gossip) delivered the envelope.
type engineMetrics struct {
	validateApply *prometheus.HistogramVec
}

// EngineMetrics returns the lazily-initialised engine metrics registry.
func EngineMetrics() *engineMetrics {
	engineMetricsOnce.Do(func() {
		engineRegistry = &engineMetrics{
			validateApply: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "clawnet",
				Subsystem: "engine",
				Name:      "validate_apply_duration_seconds",
				Help:      "Latency of the validate-apply pipeline, by event type family.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"family"}),
		}
		prometheus.MustRegister(engineRegistry.validateApply)
	})
	return engineRegistry
}

// Observe records how long one ValidateAndApply call took for the given
// event type family.
func (m *engineMetrics) Observe(family string, duration time.Duration) {
	if m == nil {
		return
	}
	if family == "" {
		family = "unknown"
	}
	m.validateApply.WithLabelValues(family).Observe(duration.Seconds())
}
