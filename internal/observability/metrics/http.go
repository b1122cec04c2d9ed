package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// APIMetrics aggregates HTTP server metrics and query-pipeline metrics
// for the api process. It implements usecase.PipelineMetrics.
type APIMetrics struct {
	registry *prometheus.Registry
	service  string

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	verdictTotal      *prometheus.CounterVec
	resultTotal       *prometheus.CounterVec
	stageDuration     *prometheus.HistogramVec
	cacheEventTotal   *prometheus.CounterVec
	retrievalDegraded prometheus.Counter
}

func NewAPIMetrics(service string) *APIMetrics {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cqa",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"service", "method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "cqa",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "cqa",
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of in-flight HTTP requests.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	verdictTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cqa",
			Subsystem: "pipeline",
			Name:      "verdicts_total",
			Help:      "Classification verdicts by kind.",
		},
		[]string{"service", "kind"},
	)
	resultTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cqa",
			Subsystem: "pipeline",
			Name:      "results_total",
			Help:      "Pipeline results by status and reason.",
		},
		[]string{"service", "status", "reason"},
	)
	stageDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "cqa",
			Subsystem: "pipeline",
			Name:      "stage_duration_seconds",
			Help:      "Pipeline stage duration in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"service", "stage"},
	)
	cacheEventTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cqa",
			Subsystem: "cache",
			Name:      "events_total",
			Help:      "Fingerprint cache events: hit, miss, join, store, invalidate.",
		},
		[]string{"service", "event"},
	)
	retrievalDegraded := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "cqa",
			Subsystem: "pipeline",
			Name:      "retrieval_degraded_total",
			Help:      "Retrievals served from fused order because the reranker was unavailable.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)

	registry.MustRegister(
		requestTotal,
		requestDuration,
		requestInFlight,
		verdictTotal,
		resultTotal,
		stageDuration,
		cacheEventTotal,
		retrievalDegraded,
	)

	return &APIMetrics{
		registry: registry,
		service:  service,

		requestTotal:    requestTotal,
		requestDuration: requestDuration,
		requestInFlight: requestInFlight,

		verdictTotal:      verdictTotal,
		resultTotal:       resultTotal,
		stageDuration:     stageDuration,
		cacheEventTotal:   cacheEventTotal,
		retrievalDegraded: retrievalDegraded,
	}
}

func (m *APIMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Middleware records request totals, durations, and in-flight gauge.
func (m *APIMetrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		m.requestInFlight.Inc()
		defer m.requestInFlight.Dec()

		recorder := &statusCapture{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(recorder, r)

		m.requestTotal.WithLabelValues(m.service, r.Method, r.URL.Path, strconv.Itoa(recorder.statusCode)).Inc()
		m.requestDuration.WithLabelValues(m.service, r.Method, r.URL.Path).Observe(time.Since(start).Seconds())
	})
}

func (m *APIMetrics) RecordVerdict(kind string) {
	m.verdictTotal.WithLabelValues(m.service, kind).Inc()
}

func (m *APIMetrics) RecordResult(status, reason string, degraded bool) {
	m.resultTotal.WithLabelValues(m.service, status, reason).Inc()
	if degraded {
		m.retrievalDegraded.Inc()
	}
}

func (m *APIMetrics) RecordStageDuration(stage string, seconds float64) {
	m.stageDuration.WithLabelValues(m.service, stage).Observe(seconds)
}

func (m *APIMetrics) RecordCacheEvent(event string) {
	m.cacheEventTotal.WithLabelValues(m.service, event).Inc()
}

type statusCapture struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusCapture) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}
