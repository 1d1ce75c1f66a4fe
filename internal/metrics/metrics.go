// Package metrics exposes pipeline counters and latencies to Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics owns its registry so several instances can coexist in tests.
type Metrics struct {
	registry *prometheus.Registry

	// Mutations by operation and outcome (ok, validation, not_found, invariant, error)
	Mutations *prometheus.CounterVec

	// Persistence writes by collection and outcome
	Writes *prometheus.CounterVec

	WriteLatency *prometheus.HistogramVec

	HTTPRequests *prometheus.CounterVec
}

func New() *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(registry)
	return &Metrics{
		registry: registry,
		Mutations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "pipeline_mutations_total",
			Help: "Board mutations by operation and outcome",
		}, []string{"operation", "outcome"}),

		Writes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "pipeline_store_writes_total",
			Help: "Collection writes by key and outcome",
		}, []string{"collection", "outcome"}),

		WriteLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pipeline_store_write_duration_seconds",
			Help:    "Duration of whole-collection writes",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"collection"}),

		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "pipeline_http_requests_total",
			Help: "HTTP requests by method and status code",
		}, []string{"method", "status"}),
	}
}

// IncrementMutation records the outcome of one board operation.
func (m *Metrics) IncrementMutation(operation, outcome string) {
	if m != nil {
		m.Mutations.WithLabelValues(operation, outcome).Inc()
	}
}

// ObserveWrite records a persistence write and its latency.
func (m *Metrics) ObserveWrite(collection string, d time.Duration, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.Writes.WithLabelValues(collection, outcome).Inc()
	m.WriteLatency.WithLabelValues(collection).Observe(d.Seconds())
}

func (m *Metrics) IncrementRequest(method, status string) {
	if m != nil {
		m.HTTPRequests.WithLabelValues(method, status).Inc()
	}
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
