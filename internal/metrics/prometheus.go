// Package metrics exposes Prometheus metrics for the scoring pipeline and the HTTP API.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Evaluations wait on an LLM, so the buckets reach a minute.
var defaultBuckets = []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 30, 60}

// Manager owns the collectors and the registry they live on. It implements
// scoring.Recorder.
type Manager struct {
	namespace string
	subsystem string
	buckets   []float64
	registry  *prometheus.Registry

	scorings           *prometheus.CounterVec
	scoringDuration    *prometheus.HistogramVec
	cvExtractions      *prometheus.CounterVec
	evaluations        *prometheus.CounterVec
	evaluationDuration *prometheus.HistogramVec

	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
}

func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace: "ats",
		subsystem: "scorer",
		buckets:   defaultBuckets,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.registry == nil {
		m.registry = prometheus.NewRegistry()
	}

	m.initializeMetrics()
	return m
}

func (m *Manager) initializeMetrics() {
	auto := promauto.With(m.registry)

	m.scorings = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "scorings_total",
		Help:      "Scoring runs by outcome",
	}, []string{"outcome"})

	m.scoringDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "scoring_duration_seconds",
		Help:      "End-to-end scoring duration",
		Buckets:   m.buckets,
	}, []string{"outcome"})

	m.cvExtractions = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "cv_extractions_total",
		Help:      "CV text extractions by outcome (ok, empty, missing, failed)",
	}, []string{"outcome"})

	m.evaluations = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "evaluations_total",
		Help:      "LLM evaluation calls by outcome",
	}, []string{"outcome"})

	m.evaluationDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "evaluation_duration_seconds",
		Help:      "LLM evaluation latency",
		Buckets:   m.buckets,
	}, []string{"outcome"})

	m.httpRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "http_requests_total",
		Help:      "HTTP requests by endpoint, method and status",
	}, []string{"endpoint", "method", "status"})

	m.httpRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request duration",
		Buckets:   m.buckets,
	}, []string{"endpoint", "method", "status"})
}

func (m *Manager) RecordScoring(outcome string, d time.Duration) {
	m.scorings.WithLabelValues(outcome).Inc()
	m.scoringDuration.WithLabelValues(outcome).Observe(d.Seconds())
}

func (m *Manager) RecordCVExtraction(outcome string) {
	m.cvExtractions.WithLabelValues(outcome).Inc()
}

func (m *Manager) RecordEvaluation(outcome string, d time.Duration) {
	m.evaluations.WithLabelValues(outcome).Inc()
	m.evaluationDuration.WithLabelValues(outcome).Observe(d.Seconds())
}

func (m *Manager) RecordHTTPRequest(endpoint, method, status string, d time.Duration) {
	m.httpRequests.WithLabelValues(endpoint, method, status).Inc()
	m.httpRequestDuration.WithLabelValues(endpoint, method, status).Observe(d.Seconds())
}

func (m *Manager) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Manager) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
