// Package metrics holds the Prometheus collectors exposed at /metrics.
//
// Import Path: approvedpremises.io/cas/internal/metrics
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups the service counters. A nil *Metrics is valid and records
// nothing.
type Metrics struct {
	registry *prometheus.Registry

	EventsPersisted  *prometheus.CounterVec
	EventsPublished  *prometheus.CounterVec
	SeedRows         *prometheus.CounterVec
	InboundMessages  *prometheus.CounterVec
	EmailsSent       *prometheus.CounterVec
	CacheLookups     *prometheus.CounterVec
	RequestDurations *prometheus.HistogramVec
}

// New registers every collector on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		EventsPersisted: f.NewCounterVec(prometheus.CounterOpts{
			Name: "cas_domain_events_persisted_total",
			Help: "Domain events written to the domain_events table by type",
		}, []string{"type"}),
		EventsPublished: f.NewCounterVec(prometheus.CounterOpts{
			Name: "cas_domain_events_published_total",
			Help: "Domain event publish attempts by type and outcome",
		}, []string{"type", "outcome"}),
		SeedRows: f.NewCounterVec(prometheus.CounterOpts{
			Name: "cas_seed_rows_total",
			Help: "Seed rows processed by seed type and outcome",
		}, []string{"seed_type", "outcome"}),
		InboundMessages: f.NewCounterVec(prometheus.CounterOpts{
			Name: "cas_inbound_messages_total",
			Help: "Inbound broker messages by event type and outcome",
		}, []string{"event_type", "outcome"}),
		EmailsSent: f.NewCounterVec(prometheus.CounterOpts{
			Name: "cas_emails_total",
			Help: "Notification emails by template and outcome",
		}, []string{"template", "outcome"}),
		CacheLookups: f.NewCounterVec(prometheus.CounterOpts{
			Name: "cas_reference_cache_lookups_total",
			Help: "Reference data cache lookups by kind and result",
		}, []string{"kind", "result"}),
		RequestDurations: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "cas_http_request_duration_seconds",
			Help:    "HTTP request latency by route and status class",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"method", "route", "status"}),
	}
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry exposes the underlying registry for tests.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

func (m *Metrics) EventPersisted(eventType string) {
	if m != nil {
		m.EventsPersisted.WithLabelValues(eventType).Inc()
	}
}

func (m *Metrics) EventPublished(eventType, outcome string) {
	if m != nil {
		m.EventsPublished.WithLabelValues(eventType, outcome).Inc()
	}
}

func (m *Metrics) SeedRow(seedType, outcome string) {
	if m != nil {
		m.SeedRows.WithLabelValues(seedType, outcome).Inc()
	}
}

func (m *Metrics) InboundMessage(eventType, outcome string) {
	if m != nil {
		m.InboundMessages.WithLabelValues(eventType, outcome).Inc()
	}
}

func (m *Metrics) Email(template, outcome string) {
	if m != nil {
		m.EmailsSent.WithLabelValues(template, outcome).Inc()
	}
}

func (m *Metrics) CacheLookup(kind, result string) {
	if m != nil {
		m.CacheLookups.WithLabelValues(kind, result).Inc()
	}
}

func (m *Metrics) ObserveRequest(method, route, status string, seconds float64) {
	if m != nil {
		m.RequestDurations.WithLabelValues(method, route, status).Observe(seconds)
	}
}
