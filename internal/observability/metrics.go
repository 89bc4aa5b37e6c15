package observability

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the process collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	apiRequests *prometheus.CounterVec
	apiLatency  *prometheus.HistogramVec
	apiInflight prometheus.Gauge

	ingestRecords  *prometheus.CounterVec
	ingestBatches  *prometheus.CounterVec
	ingestBatchDur *prometheus.HistogramVec
	ingestRuns     *prometheus.CounterVec

	queryRequests *prometheus.CounterVec
	queryLatency  *prometheus.HistogramVec
	cacheLookups  *prometheus.CounterVec
}

var (
	initOnce sync.Once
	instance *Metrics
)

// Init builds the process-wide Metrics on first call.
func Init() *Metrics {
	initOnce.Do(func() {
		instance = NewMetrics(prometheus.NewRegistry())
	})
	return instance
}

func Current() *Metrics {
	return instance
}

// NewMetrics registers every collector on reg, along with the Go runtime and
// process collectors.
func NewMetrics(reg *prometheus.Registry) *Metrics {
	m := &Metrics{
		registry: reg,
		apiRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "wg_api_requests_total",
			Help: "API requests by method/route/status.",
		}, []string{"method", "route", "status"}),
		apiLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "wg_api_request_duration_seconds",
			Help:    "API request latency in seconds by method/route/status.",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		}, []string{"method", "route", "status"}),
		apiInflight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "wg_api_inflight_requests",
			Help: "In-flight API requests.",
		}),
		ingestRecords: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "wg_ingest_records_total",
			Help: "Ingested records by outcome (normalized, skipped, written, failed).",
		}, []string{"outcome"}),
		ingestBatches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "wg_ingest_batches_total",
			Help: "Batch transactions by status.",
		}, []string{"status"}),
		ingestBatchDur: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "wg_ingest_batch_duration_seconds",
			Help:    "Batch transaction duration in seconds by status.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60, 120},
		}, []string{"status"}),
		ingestRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "wg_ingest_runs_total",
			Help: "Ingestion runs by final status.",
		}, []string{"status"}),
		queryRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "wg_query_requests_total",
			Help: "Read queries by operation/outcome.",
		}, []string{"op", "outcome"}),
		queryLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "wg_query_duration_seconds",
			Help:    "Read query latency in seconds by operation.",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 5},
		}, []string{"op"}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "wg_query_cache_lookups_total",
			Help: "Query cache lookups by result (hit, miss, error).",
		}, []string{"result"}),
	}
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.apiRequests, m.apiLatency, m.apiInflight,
		m.ingestRecords, m.ingestBatches, m.ingestBatchDur, m.ingestRuns,
		m.queryRequests, m.queryLatency, m.cacheLookups,
	)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) IncInflight() {
	if m == nil {
		return
	}
	m.apiInflight.Inc()
}

func (m *Metrics) DecInflight() {
	if m == nil {
		return
	}
	m.apiInflight.Dec()
}

func (m *Metrics) ObserveAPI(method, route string, status int, dur time.Duration) {
	if m == nil {
		return
	}
	if route == "" {
		route = "unmatched"
	}
	code := strconv.Itoa(status)
	m.apiRequests.WithLabelValues(method, route, code).Inc()
	m.apiLatency.WithLabelValues(method, route, code).Observe(dur.Seconds())
}

func (m *Metrics) AddRecords(outcome string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.ingestRecords.WithLabelValues(outcome).Add(float64(n))
}

func (m *Metrics) ObserveBatch(status string, dur time.Duration) {
	if m == nil {
		return
	}
	m.ingestBatches.WithLabelValues(status).Inc()
	m.ingestBatchDur.WithLabelValues(status).Observe(dur.Seconds())
}

func (m *Metrics) IncRun(status string) {
	if m == nil {
		return
	}
	m.ingestRuns.WithLabelValues(status).Inc()
}

func (m *Metrics) ObserveQuery(op, outcome string, dur time.Duration) {
	if m == nil {
		return
	}
	m.queryRequests.WithLabelValues(op, outcome).Inc()
	m.queryLatency.WithLabelValues(op).Observe(dur.Seconds())
}

func (m *Metrics) IncCache(result string) {
	if m == nil {
		return
	}
	m.cacheLookups.WithLabelValues(result).Inc()
}
