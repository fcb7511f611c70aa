package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus instruments for the capture pipeline.
type Metrics struct {
	registry *prometheus.Registry

	EventsEmitted *prometheus.CounterVec
	InsertsTotal  *prometheus.CounterVec
	StreamDrops   prometheus.Counter
	Repairs       prometheus.Counter
}

// New creates a Metrics instance on a private registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		EventsEmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chatlog_events_emitted_total",
			Help: "Message events emitted, by delivery path",
		}, []string{"path"}),
		InsertsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chatlog_sink_inserts_total",
			Help: "Sink insert attempts, by outcome",
		}, []string{"outcome"}),
		StreamDrops: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chatlog_stream_drops_total",
			Help: "Stream events dropped because the write queue was full",
		}),
		Repairs: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chatlog_repairs_total",
			Help: "Events re-inserted by the verify pass",
		}),
	}

	m.registry.MustRegister(m.EventsEmitted, m.InsertsTotal, m.StreamDrops, m.Repairs)
	return m
}

// Registry exposes the private registry, e.g. for a debug endpoint.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordEvent counts one emitted event for a delivery path
// ("stream" or "batch").
func (m *Metrics) RecordEvent(path string) {
	m.EventsEmitted.WithLabelValues(path).Inc()
}

// RecordInsert counts one sink insert attempt.
func (m *Metrics) RecordInsert(ok bool) {
	outcome := "ok"
	if !ok {
		outcome = "error"
	}
	m.InsertsTotal.WithLabelValues(outcome).Inc()
}

// RecordDrop counts one event dropped by the bounded stream queue.
func (m *Metrics) RecordDrop() {
	m.StreamDrops.Inc()
}

// RecordRepairs counts events restored by a verify pass.
func (m *Metrics) RecordRepairs(n int) {
	m.Repairs.Add(float64(n))
}

var (
	defaultMetrics *Metrics
	defaultOnce    sync.Once
)

// Default returns the process-wide Metrics instance.
func Default() *Metrics {
	defaultOnce.Do(func() {
		defaultMetrics = New()
	})
	return defaultMetrics
}
