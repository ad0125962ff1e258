// Package metric holds the Prometheus collectors for the plan workflow.
// A nil *Metrics is valid and records nothing.
package metric

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "oxiplan"

type Metrics struct {
	registry *prometheus.Registry

	gradingCalls    *prometheus.CounterVec
	gradingDuration *prometheus.HistogramVec
	verdicts        *prometheus.CounterVec
	transitions     *prometheus.CounterVec
	storeErrors     *prometheus.CounterVec
}

// New creates a registry with process and Go collectors plus the workflow
// collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		gradingCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "grading",
			Name:      "calls_total",
			Help:      "Grading calls per provider and outcome",
		}, []string{"provider", "outcome"}),
		gradingDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "grading",
			Name:      "duration_seconds",
			Help:      "Time spent grading a single answer",
			Buckets:   []float64{0.001, 0.01, 0.1, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"provider"}),
		verdicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "validation",
			Name:      "verdicts_total",
			Help:      "Validation verdicts by status",
		}, []string{"status"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "plan",
			Name:      "transitions_total",
			Help:      "Plan state transitions by action and resulting status",
		}, []string{"action", "status"}),
		storeErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "errors_total",
			Help:      "Failed document or blob store calls",
		}, []string{"backend", "op"}),
	}
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.gradingCalls,
		m.gradingDuration,
		m.verdicts,
		m.transitions,
		m.storeErrors,
	)
	return m
}

// Registry exposes the underlying registry, mostly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

func (m *Metrics) ObserveGrading(provider, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.gradingCalls.WithLabelValues(provider, outcome).Inc()
	m.gradingDuration.WithLabelValues(provider).Observe(d.Seconds())
}

func (m *Metrics) ObserveVerdict(status string) {
	if m == nil {
		return
	}
	m.verdicts.WithLabelValues(status).Inc()
}

func (m *Metrics) ObserveTransition(action, status string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(action, status).Inc()
}

func (m *Metrics) ObserveStoreError(backend, op string) {
	if m == nil {
		return
	}
	m.storeErrors.WithLabelValues(backend, op).Inc()
}
