package observability

import (
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// eventMetrics tracks accepted and rejected envelopes by subsystem.
type eventMetrics struct {
	applied  *prometheus.CounterVec
	rejected *prometheus.CounterVec
}

var (
	eventMetricsOnce sync.Once
	eventRegistry    *eventMetrics
)

// Events returns the metrics registry tracking validate-apply outcomes,
// lazily registering its collectors with the default Prometheus registry on
// first use.
func Events() *eventMetrics {
	eventMetricsOnce.Do(func() {
		eventRegistry = &eventMetrics{
			applied: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "clawnet",
				Subsystem: "events",
				Name:      "applied_total",
				Help:      "Count of envelopes successfully applied, by event type.",
			}, []string{"type"}),
			rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "clawnet",
				Subsystem: "events",
				Name:      "rejected_total",
				Help:      "Count of envelopes rejected by validate-apply, by error kind.",
			}, []string{"kind"}),
		}
		prometheus.MustRegister(eventRegistry.applied, eventRegistry.rejected)
	})
	return eventRegistry
}

// RecordApplied increments the applied counter for the given event type.
func (m *eventMetrics) RecordApplied(eventType string) {
	if m == nil {
		return
	}
	m.applied.WithLabelValues(normalizeLabel(eventType)).Inc()
}

// RecordRejected increments the rejected counter for the given error kind.
func (m *eventMetrics) RecordRejected(kind string) {
	if m == nil {
		return
	}
	m.rejected.WithLabelValues(normalizeLabel(kind)).Inc()
}

func normalizeLabel(v string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return "unknown"
	}
	return v
}
