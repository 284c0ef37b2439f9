package auth

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
)

// MetricsActivitySink counts activity events in Prometheus.
type MetricsActivitySink struct {
	events *prometheus.CounterVec
}

var _ ActivitySink = (*MetricsActivitySink)(nil)

// NewMetricsActivitySink creates the counter and registers it with reg.
func NewMetricsActivitySink(reg prometheus.Registerer) *MetricsActivitySink {
	events := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "authflow_activity_events_total",
			Help: "Total number of auth lifecycle events by type",
		},
		[]string{"event"},
	)
	if reg != nil {
		reg.MustRegister(events)
	}
	return &MetricsActivitySink{events: events}
}

// Record implements ActivitySink.
func (m *MetricsActivitySink) Record(_ context.Context, event ActivityEvent) error {
	m.events.WithLabelValues(string(event.EventType)).Inc()
	return nil
}

// Collector exposes the underlying counter, mainly for tests.
func (m *MetricsActivitySink) Collector() *prometheus.CounterVec {
	return m.events
}
