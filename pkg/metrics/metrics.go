// Package metrics exposes the engine's Prometheus instruments.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Status write sources.
const (
	SourceAdmin    = "admin"
	SourceHardware = "hardware"
)

// Metrics holds every instrument the engine records.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry prometheus.Gatherer

	statusUpdates    *prometheus.CounterVec
	statusRetries    prometheus.Counter
	duplicateEvents  prometheus.Counter
	ingestRejections *prometheus.CounterVec
	publishFailures  prometheus.Counter
	ingestDelay      prometheus.Histogram
	httpRequests     *prometheus.CounterVec
	httpDuration     *prometheus.HistogramVec
}

// New registers the engine metrics on reg.
func New(reg *prometheus.Registry) *Metrics {
	factory := promauto.With(reg)
	m := &Metrics{registry: reg}
	m.statusUpdates = factory.NewCounterVec(prometheus.CounterOpts{
		Name: "smartpark_slot_status_updates_total",
		Help: "number of applied slot status updates",
	}, []string{"source", "status"})
	m.statusRetries = factory.NewCounter(prometheus.CounterOpts{
		Name: "smartpark_slot_status_conflict_retries_total",
		Help: "number of status writes retried after a conflict",
	})
	m.duplicateEvents = factory.NewCounter(prometheus.CounterOpts{
		Name: "smartpark_slot_status_duplicate_events_total",
		Help: "number of hardware reports rejected as replays of a known event id",
	})
	m.ingestRejections = factory.NewCounterVec(prometheus.CounterOpts{
		Name: "smartpark_ingest_rejections_total",
		Help: "number of hardware reports rejected before processing",
	}, []string{"reason"})
	m.publishFailures = factory.NewCounter(prometheus.CounterOpts{
		Name: "smartpark_status_publish_failures_total",
		Help: "number of status change notifications that could not be published",
	})
	m.ingestDelay = factory.NewHistogram(prometheus.HistogramOpts{
		Name:    "smartpark_ingest_delay_seconds",
		Help:    "gap between a hardware observation and its arrival",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 300},
	})
	m.httpRequests = factory.NewCounterVec(prometheus.CounterOpts{
		Name: "smartpark_http_requests_total",
		Help: "number of HTTP requests served",
	}, []string{"method", "code"})
	m.httpDuration = factory.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "smartpark_http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method"})
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) StatusUpdated(source, status string) {
	if m == nil {
		return
	}
	m.statusUpdates.WithLabelValues(source, status).Inc()
}

func (m *Metrics) StatusRetried() {
	if m == nil {
		return
	}
	m.statusRetries.Inc()
}

func (m *Metrics) DuplicateEvent() {
	if m == nil {
		return
	}
	m.duplicateEvents.Inc()
}

func (m *Metrics) IngestRejected(reason string) {
	if m == nil {
		return
	}
	m.ingestRejections.WithLabelValues(reason).Inc()
}

func (m *Metrics) PublishFailed() {
	if m == nil {
		return
	}
	m.publishFailures.Inc()
}

// ObserveIngestDelay records seconds between occurred_at and received_at. Negative gaps are dropped.
func (m *Metrics) ObserveIngestDelay(seconds float64) {
	if m == nil || seconds < 0 {
		return
	}
	m.ingestDelay.Observe(seconds)
}

// ObserveRequest records one served HTTP request.
func (m *Metrics) ObserveRequest(method, code string, seconds float64) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, code).Inc()
	m.httpDuration.WithLabelValues(method).Observe(seconds)
}
