// Package metrics provides Prometheus metrics for the cadence engine.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	RequestDuration    *prometheus.HistogramVec
	CompletionsTotal   *prometheus.CounterVec
	RegenerationsTotal *prometheus.CounterVec
	ItemsGenerated     prometheus.Counter
	DuplicateSkips     prometheus.Counter

	registry *prometheus.Registry
}

// New creates and registers all metrics.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "cadence_request_duration_seconds",
				Help:    "HTTP request duration by method and status.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "status"},
		),
		CompletionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cadence_completions_total",
				Help: "Completion events by direction (complete or uncomplete).",
			},
			[]string{"direction"},
		),
		RegenerationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cadence_regenerations_total",
				Help: "Full regeneration passes by outcome.",
			},
			[]string{"outcome"},
		),
		ItemsGenerated: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "cadence_items_generated_total",
				Help: "Itinerary items materialized from goal steps.",
			},
		),
		DuplicateSkips: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "cadence_duplicate_id_skips_total",
				Help: "Generation passes that skipped an id already owned by another goal.",
			},
		),
		registry: reg,
	}

	reg.MustRegister(m.RequestDuration)
	reg.MustRegister(m.CompletionsTotal)
	reg.MustRegister(m.RegenerationsTotal)
	reg.MustRegister(m.ItemsGenerated)
	reg.MustRegister(m.DuplicateSkips)

	return m
}

// Handler returns an http.Handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveRequest records one HTTP request duration. Nil-safe.
func (m *Metrics) ObserveRequest(method, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.RequestDuration.WithLabelValues(method, status).Observe(d.Seconds())
}

// RecordCompletion increments the completion counter. Nil-safe.
func (m *Metrics) RecordCompletion(completed bool) {
	if m == nil {
		return
	}
	direction := "complete"
	if !completed {
		direction = "uncomplete"
	}
	m.CompletionsTotal.WithLabelValues(direction).Inc()
}

// RecordRegeneration increments the regeneration counter. Nil-safe.
func (m *Metrics) RecordRegeneration(outcome string) {
	if m == nil {
		return
	}
	m.RegenerationsTotal.WithLabelValues(outcome).Inc()
}

// RecordItemsGenerated adds to the generated item counter. Nil-safe.
func (m *Metrics) RecordItemsGenerated(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.ItemsGenerated.Add(float64(n))
}

// RecordDuplicateSkip increments the duplicate-id skip counter. Nil-safe.
func (m *Metrics) RecordDuplicateSkip() {
	if m == nil {
		return
	}
	m.DuplicateSkips.Inc()
}
