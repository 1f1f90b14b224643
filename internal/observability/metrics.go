package observability

import (
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const metricsNamespace = "autoreply"

// Metrics holds the responder's Prometheus collectors on a private registry.
// All methods are safe on a nil receiver so components can run unmetered.
type Metrics struct {
	registry *prometheus.Registry

	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	missedCallsTotal      prometheus.Counter
	staleMissedCallsTotal prometheus.Counter
	dispatchOutcomesTotal *prometheus.CounterVec
	storeAPIDuration      *prometheus.HistogramVec
	automationClicksTotal *prometheus.CounterVec
	workerInflight        prometheus.Gauge
}

func counter(name, help string) prometheus.Counter {
	return prometheus.NewCounter(prometheus.CounterOpts{Namespace: metricsNamespace, Name: name, Help: help})
}

func counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: metricsNamespace, Name: name, Help: help}, labels)
}

func histogramVec(name, help string, buckets []float64, labels ...string) *prometheus.HistogramVec {
	return prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: metricsNamespace,
		Name:      name,
		Help:      help,
		Buckets:   buckets,
	}, labels)
}

func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		httpRequestsTotal: counterVec("http_requests_total",
			"HTTP requests served, by method, route and status.", "method", "path", "status"),
		httpRequestDuration: histogramVec("http_request_duration_seconds",
			"HTTP request latency, by method and route.", prometheus.DefBuckets, "method", "path"),

		missedCallsTotal: counter("missed_calls_total",
			"Missed calls from numbers eligible for an automatic reply."),
		staleMissedCallsTotal: counter("stale_missed_calls_total",
			"Queued missed calls dropped because they waited longer than the maximum age."),
		dispatchOutcomesTotal: counterVec("dispatch_outcomes_total",
			"Recorded reply outcomes, by channel and result.", "channel", "result"),
		storeAPIDuration: histogramVec("store_api_duration_seconds",
			"Store API round trip latency, by endpoint.", prometheus.ExponentialBuckets(0.05, 2, 10), "endpoint"),
		automationClicksTotal: counterVec("automation_clicks_total",
			"Send button automation attempts, by result.", "result"),
		workerInflight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "worker_inflight",
			Help:      "Missed calls currently being answered.",
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequestsTotal,
		m.httpRequestDuration,
		m.missedCallsTotal,
		m.staleMissedCallsTotal,
		m.dispatchOutcomesTotal,
		m.storeAPIDuration,
		m.automationClicksTotal,
		m.workerInflight,
	)

	return m
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil || m.registry == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) IncMissedCall() {
	if m != nil {
		m.missedCallsTotal.Inc()
	}
}

func (m *Metrics) IncStaleMissedCall() {
	if m != nil {
		m.staleMissedCallsTotal.Inc()
	}
}

func (m *Metrics) IncDispatchOutcome(channel string, result string) {
	if m != nil {
		m.dispatchOutcomesTotal.WithLabelValues(labelValue(channel), labelValue(result)).Inc()
	}
}

func (m *Metrics) ObserveStoreAPIDuration(endpoint string, duration time.Duration) {
	if m == nil {
		return
	}
	m.storeAPIDuration.WithLabelValues(labelValue(endpoint)).Observe(max(duration, 0).Seconds())
}

// IncAutomationClick counts one attempt as clicked, not_found or stale.
func (m *Metrics) IncAutomationClick(result string) {
	if m != nil {
		m.automationClicksTotal.WithLabelValues(labelValue(result)).Inc()
	}
}

func (m *Metrics) IncWorkerInFlight() {
	if m != nil {
		m.workerInflight.Inc()
	}
}

func (m *Metrics) DecWorkerInFlight() {
	if m != nil {
		m.workerInflight.Dec()
	}
}

func labelValue(value string) string {
	if v := strings.ToLower(strings.TrimSpace(value)); v != "" {
		return v
	}
	return "unknown"
}
