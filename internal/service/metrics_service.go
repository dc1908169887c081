package service

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Ledger operations counted by MetricsService.
const (
	OpStudentCreated  = "student_created"
	OpStudentUpdated  = "student_updated"
	OpStudentDeleted  = "student_deleted"
	OpPaymentCreated  = "payment_created"
	OpPaymentDeleted  = "payment_deleted"
	OpReceiptAttached = "receipt_attached"
)

// MetricsService encapsulates Prometheus instrumentation.
type MetricsService struct {
	registry          *prometheus.Registry
	handler           http.Handler
	requestDuration   *prometheus.HistogramVec
	requestTotal      *prometheus.CounterVec
	cacheLatency      prometheus.Observer
	cacheWrite        prometheus.Observer
	cacheHits         prometheus.Counter
	cacheMisses       prometheus.Counter
	txDuration        *prometheus.HistogramVec
	ledgerMutations   *prometheus.CounterVec
	statusChanges     prometheus.Counter
	receiptsGenerated prometheus.Counter
	reportJobs        *prometheus.CounterVec
}

// NewMetricsService registers core Prometheus collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	cacheLatency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_latency_seconds",
		Help:    "Latency for cache lookups",
		Buckets: prometheus.DefBuckets,
	})

	cacheWrite := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_write_seconds",
		Help:    "Latency for cache set operations",
		Buckets: prometheus.DefBuckets,
	})

	cacheHits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_hits_total",
		Help: "Total cache hits",
	})

	cacheMisses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_misses_total",
		Help: "Total cache misses",
	})

	txDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ledger_tx_duration_seconds",
		Help:    "Duration of ledger transactions including reconciliation",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})

	ledgerMutations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_mutations_total",
		Help: "Committed ledger mutations by operation",
	}, []string{"operation"})

	statusChanges := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ledger_status_rows_changed_total",
		Help: "Payment rows whose settlement status was rewritten by reconciliation",
	})

	receiptsGenerated := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "receipts_generated_total",
		Help: "Receipt artifacts written",
	})

	reportJobs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "report_jobs_total",
		Help: "Report jobs by type and terminal status",
	}, []string{"type", "status"})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, cacheLatency, cacheWrite, cacheHits, cacheMisses,
		txDuration, ledgerMutations, statusChanges, receiptsGenerated, reportJobs, goroutines)

	return &MetricsService{
		registry:          registry,
		handler:           promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration:   requestDuration,
		requestTotal:      requestTotal,
		cacheLatency:      cacheLatency,
		cacheWrite:        cacheWrite,
		cacheHits:         cacheHits,
		cacheMisses:       cacheMisses,
		txDuration:        txDuration,
		ledgerMutations:   ledgerMutations,
		statusChanges:     statusChanges,
		receiptsGenerated: receiptsGenerated,
		reportJobs:        reportJobs,
	}
}

// Registry exposes the underlying registry, mainly for tests.
func (m *MetricsService) Registry() *prometheus.Registry {
	return m.registry
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveHTTPRequest records request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// RecordCacheOperation records a cache hit or miss.
func (m *MetricsService) RecordCacheOperation(hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheLatency.Observe(duration.Seconds())
	if hit {
		m.cacheHits.Inc()
	} else {
		m.cacheMisses.Inc()
	}
}

// ObserveCacheWrite tracks the duration for cache write operations.
func (m *MetricsService) ObserveCacheWrite(duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheWrite.Observe(duration.Seconds())
}

// ObserveLedgerTx records how long a ledger transaction took.
func (m *MetricsService) ObserveLedgerTx(operation string, duration time.Duration) {
	if m == nil {
		return
	}
	m.txDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordLedgerMutation counts one committed mutation.
func (m *MetricsService) RecordLedgerMutation(operation string) {
	if m == nil {
		return
	}
	m.ledgerMutations.WithLabelValues(operation).Inc()
}

// RecordStatusChanges counts payment rows rewritten by reconciliation.
func (m *MetricsService) RecordStatusChanges(rows int64) {
	if m == nil || rows <= 0 {
		return
	}
	m.statusChanges.Add(float64(rows))
}

// RecordReceipt counts one generated receipt.
func (m *MetricsService) RecordReceipt() {
	if m == nil {
		return
	}
	m.receiptsGenerated.Inc()
}

// RecordReportJob counts a report job reaching a terminal status.
func (m *MetricsService) RecordReportJob(reportType, status string) {
	if m == nil {
		return
	}
	m.reportJobs.WithLabelValues(reportType, status).Inc()
}
