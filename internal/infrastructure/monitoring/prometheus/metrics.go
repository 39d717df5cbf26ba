package prometheus

import (
	"fmt"
	"time"
)

// AppMetrics holds all application metrics.
type AppMetrics struct {
	// HTTP layer
	HTTPRequestsTotal   CounterVec
	HTTPRequestDuration HistogramVec
	HTTPActiveRequests  GaugeVec

	// Pipeline layer
	RecordsReadTotal     CounterVec
	SitesProcessedTotal  CounterVec
	SamplesProducedTotal CounterVec
	RejectionsTotal      CounterVec
	StageDuration        HistogramVec
	RunDuration          HistogramVec
	ActiveWorkers        GaugeVec
	UniqueStructures     GaugeVec

	// Dataset layer
	DatasetSamples       GaugeVec
	DatasetBytes         GaugeVec
	DatasetWriteDuration HistogramVec

	// Infrastructure layer
	DBConnectionPoolSize   GaugeVec
	DBConnectionPoolActive GaugeVec
	DBQueryDuration        HistogramVec
	CacheHitsTotal         CounterVec
	CacheMissesTotal       CounterVec
	MessageProcessDuration HistogramVec

	// System health
	ServiceUptime     GaugeVec
	HealthCheckStatus GaugeVec
	ErrorsTotal       CounterVec
}

// Default buckets
var (
	DefaultHTTPDurationBuckets = []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10}
	DefaultRunDurationBuckets  = []float64{1, 5, 10, 30, 60, 120, 300, 600, 1800, 3600}
	DefaultStageBuckets        = []float64{.0001, .0005, .001, .005, .01, .05, .1, .5, 1}
	DefaultDBDurationBuckets   = []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 5}
)

// NewAppMetrics registers all metrics and returns the AppMetrics struct.
func NewAppMetrics(collector MetricsCollector) *AppMetrics {
	m := &AppMetrics{}

	// HTTP
	m.HTTPRequestsTotal = collector.RegisterCounter("http_requests_total", "Total HTTP requests", "method", "path", "status_code")
	m.HTTPRequestDuration = collector.RegisterHistogram("http_request_duration_seconds", "HTTP request duration", DefaultHTTPDurationBuckets, "method", "path")
	m.HTTPActiveRequests = collector.RegisterGauge("http_active_requests", "Active HTTP requests", "method", "path")

	// Pipeline
	m.RecordsReadTotal = collector.RegisterCounter("records_read_total", "Input molecule records read", "source")
	m.SitesProcessedTotal = collector.RegisterCounter("sites_processed_total", "Annotated sites entering the pipeline", "source")
	m.SamplesProducedTotal = collector.RegisterCounter("samples_produced_total", "Reaction samples produced", "dataset")
	m.RejectionsTotal = collector.RegisterCounter("rejections_total", "Non-fatal site rejections", "stage", "code")
	m.StageDuration = collector.RegisterHistogram("stage_duration_seconds", "Per-site stage processing duration", DefaultStageBuckets, "stage")
	m.RunDuration = collector.RegisterHistogram("run_duration_seconds", "End-to-end pipeline run duration", DefaultRunDurationBuckets, "dataset")
	m.ActiveWorkers = collector.RegisterGauge("active_workers", "Active pipeline workers", "stage")
	m.UniqueStructures = collector.RegisterGauge("unique_structures", "Distinct canonical structures admitted", "dataset")

	// Dataset
	m.DatasetSamples = collector.RegisterGauge("dataset_samples", "Samples in the assembled dataset", "dataset")
	m.DatasetBytes = collector.RegisterGauge("dataset_bytes", "Persisted dataset artifact size", "dataset")
	m.DatasetWriteDuration = collector.RegisterHistogram("dataset_write_duration_seconds", "Dataset artifact write duration", DefaultDBDurationBuckets, "store")

	// Infrastructure
	m.DBConnectionPoolSize = collector.RegisterGauge("db_pool_size", "Database connection pool size", "db")
	m.DBConnectionPoolActive = collector.RegisterGauge("db_pool_active", "Database active connections", "db")
	m.DBQueryDuration = collector.RegisterHistogram("db_query_duration_seconds", "Database query duration", DefaultDBDurationBuckets, "db", "operation")
	m.CacheHitsTotal = collector.RegisterCounter("cache_hits_total", "Cache hits", "cache")
	m.CacheMissesTotal = collector.RegisterCounter("cache_misses_total", "Cache misses", "cache")
	m.MessageProcessDuration = collector.RegisterHistogram("mq_process_duration_seconds", "Message processing duration", DefaultHTTPDurationBuckets, "queue", "message_type")

	// System health
	m.ServiceUptime = collector.RegisterGauge("service_uptime_seconds", "Service uptime", "service")
	m.HealthCheckStatus = collector.RegisterGauge("health_check_status", "Health check status (1=up, 0=down)", "component")
	m.ErrorsTotal = collector.RegisterCounter("errors_total", "Total errors", "component", "error_type", "severity")

	return m
}

// Helpers

func RecordHTTPRequest(metrics *AppMetrics, method, path string, statusCode int, duration time.Duration) {
	status := fmt.Sprintf("%d", statusCode)
	metrics.HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	metrics.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordRejection counts one non-fatal site rejection at a pipeline stage.
func RecordRejection(metrics *AppMetrics, stage, code string) {
	metrics.RejectionsTotal.WithLabelValues(stage, code).Inc()
}

func RecordDBQuery(metrics *AppMetrics, db, operation string, duration time.Duration, err error) {
	metrics.DBQueryDuration.WithLabelValues(db, operation).Observe(duration.Seconds())
	if err != nil {
		metrics.ErrorsTotal.WithLabelValues(db, "query_error", "error").Inc()
	}
}

func RecordCacheAccess(metrics *AppMetrics, cache string, hit bool) {
	if hit {
		metrics.CacheHitsTotal.WithLabelValues(cache).Inc()
	} else {
		metrics.CacheMissesTotal.WithLabelValues(cache).Inc()
	}
}

func RecordError(metrics *AppMetrics, component, errorType, severity string) {
	metrics.ErrorsTotal.WithLabelValues(component, errorType, severity).Inc()
}
