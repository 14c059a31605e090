package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusMetrics holds all Prometheus metrics
type PrometheusMetrics struct {
	// HTTP request metrics
	HttpRequestsTotal   *prometheus.CounterVec
	HttpRequestDuration *prometheus.HistogramVec

	// Sync run metrics
	SyncRunsTotal   *prometheus.CounterVec
	SyncRunDuration *prometheus.HistogramVec
	SyncRunning     prometheus.Gauge
	ScanWaitSeconds prometheus.Histogram

	// Pipeline counters
	TablesScanned    prometheus.Counter
	RowsExtracted    prometheus.Counter
	DocumentsIndexed prometheus.Counter
	PipelineErrors   *prometheus.CounterVec
}

var (
	metrics *PrometheusMetrics
)

// InitMetrics initializes all Prometheus metrics
func InitMetrics() {
	metrics = &PrometheusMetrics{
		// HTTP request metrics
		HttpRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "connector_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status"},
		),
		HttpRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "connector_http_request_duration_seconds",
				Help:    "HTTP request latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "endpoint"},
		),

		// Sync run metrics
		SyncRunsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "connector_sync_runs_total",
				Help: "Total number of sync runs",
			},
			[]string{"trigger", "status"},
		),
		SyncRunDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "connector_sync_run_duration_seconds",
				Help:    "Sync run duration in seconds",
				Buckets: []float64{1, 5, 15, 60, 300, 900, 1800, 3600},
			},
			[]string{"trigger"},
		),
		SyncRunning: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "connector_sync_running",
				Help: "Whether a sync run is currently active (1=running, 0=idle)",
			},
		),
		ScanWaitSeconds: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "connector_scan_wait_seconds",
				Help:    "Time spent waiting for workspace scans to complete",
				Buckets: []float64{1, 5, 15, 60, 120, 300, 600},
			},
		),

		// Pipeline counters
		TablesScanned: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "connector_tables_scanned_total",
				Help: "Total number of tables handed to the extractor",
			},
		),
		RowsExtracted: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "connector_rows_extracted_total",
				Help: "Total number of rows extracted from tables",
			},
		),
		DocumentsIndexed: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "connector_documents_indexed_total",
				Help: "Total number of documents accepted by the index",
			},
		),
		PipelineErrors: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "connector_pipeline_errors_total",
				Help: "Total number of pipeline errors by stage",
			},
			[]string{"stage"},
		),
	}
}

// GetMetrics returns the initialized metrics
func GetMetrics() *PrometheusMetrics {
	return metrics
}

// PrometheusMiddleware is a Gin middleware that records HTTP metrics
func PrometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if metrics == nil {
			c.Next()
			return
		}

		// Start timer
		start := time.Now()

		// Process request
		c.Next()

		// Record metrics
		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())
		method := c.Request.Method
		endpoint := c.FullPath()

		if endpoint == "" {
			endpoint = c.Request.URL.Path
		}

		metrics.HttpRequestsTotal.WithLabelValues(method, endpoint, status).Inc()
		metrics.HttpRequestDuration.WithLabelValues(method, endpoint).Observe(duration)
	}
}

// RecordSyncRun records a completed sync run
func RecordSyncRun(trigger, status string, duration time.Duration) {
	if metrics == nil {
		return
	}

	metrics.SyncRunsTotal.WithLabelValues(trigger, status).Inc()
	metrics.SyncRunDuration.WithLabelValues(trigger).Observe(duration.Seconds())
}

// SetSyncRunning flips the active-run gauge
func SetSyncRunning(running bool) {
	if metrics == nil {
		return
	}

	value := 0.0
	if running {
		value = 1.0
	}
	metrics.SyncRunning.Set(value)
}

// ObserveScanWait records how long a workspace scan took to complete
func ObserveScanWait(duration time.Duration) {
	if metrics == nil {
		return
	}

	metrics.ScanWaitSeconds.Observe(duration.Seconds())
}

// RecordPipelineProgress adds per-run pipeline totals
func RecordPipelineProgress(tables, rows, documents int) {
	if metrics == nil {
		return
	}

	metrics.TablesScanned.Add(float64(tables))
	metrics.RowsExtracted.Add(float64(rows))
	metrics.DocumentsIndexed.Add(float64(documents))
}

// RecordPipelineError records a pipeline error for one stage
func RecordPipelineError(stage string) {
	if metrics == nil {
		return
	}

	metrics.PipelineErrors.WithLabelValues(stage).Inc()
}
