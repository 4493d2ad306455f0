package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics bundles the Prometheus collectors exposed on /metrics.
type Metrics struct {
	registry *prometheus.Registry

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
	workflowOps  *prometheus.CounterVec
	cacheLookups *prometheus.CounterVec
	queueDepth   prometheus.Gauge
	cacheSize    prometheus.Gauge
}

// NewMetrics builds collectors on a private registry so tests can run in
// parallel without default-registry collisions.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		}, []string{"method", "path", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path"}),
		workflowOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ticket_workflow_operations_total",
			Help: "Ticket workflow operations by type and outcome.",
		}, []string{"operation", "outcome"}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cache_lookups_total",
			Help: "Cache lookups by key kind and result.",
		}, []string{"kind", "result"}),
		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "task_queue_depth",
			Help: "Pending maintenance tasks.",
		}),
		cacheSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "cache_keys",
			Help: "Number of keys held by the cache.",
		}),
	}
	m.registry.MustRegister(
		m.httpRequests,
		m.httpDuration,
		m.workflowOps,
		m.cacheLookups,
		m.queueDepth,
		m.cacheSize,
	)
	return m
}

// Handler serves the registry in Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveRequest records one completed HTTP request.
func (m *Metrics) ObserveRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordWorkflowOp counts a workflow operation result, e.g. ("change_state", "ok").
func (m *Metrics) RecordWorkflowOp(operation, outcome string) {
	if m == nil {
		return
	}
	m.workflowOps.WithLabelValues(operation, outcome).Inc()
}

// RecordCacheLookup counts a cache hit or miss for a key kind.
func (m *Metrics) RecordCacheLookup(kind string, hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookups.WithLabelValues(kind, result).Inc()
}

// SetQueueDepth reports the current queue length.
func (m *Metrics) SetQueueDepth(depth int64) {
	if m == nil {
		return
	}
	m.queueDepth.Set(float64(depth))
}

// SetCacheSize reports the current cache key count.
func (m *Metrics) SetCacheSize(size int64) {
	if m == nil {
		return
	}
	m.cacheSize.Set(float64(size))
}
