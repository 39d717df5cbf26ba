package prometheus

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/ProtonGraph/internal/infrastructure/monitoring/logging"
)

func newTestAppMetrics(t *testing.T) (*AppMetrics, MetricsCollector) {
	c, err := NewMetricsCollector(CollectorConfig{Namespace: "protongraph"}, logging.NewNopLogger())
	require.NoError(t, err)
	return NewAppMetrics(c), c
}

func TestNewAppMetrics_RegistersPipelineMetrics(t *testing.T) {
	m, c := newTestAppMetrics(t)

	m.RecordsReadTotal.WithLabelValues("sdfile").Inc()
	m.SamplesProducedTotal.WithLabelValues("chembl").Add(3)
	m.RejectionsTotal.WithLabelValues("normalizer", "PIPE_002").Inc()
	m.StageDuration.WithLabelValues("encoder").Observe(0.002)
	m.UniqueStructures.WithLabelValues("chembl").Set(42)

	output := scrapeMetrics(t, c)
	assert.Contains(t, output, "protongraph_records_read_total")
	assert.Contains(t, output, "protongraph_samples_produced_total")
	assert.Contains(t, output, `protongraph_rejections_total{code="PIPE_002",stage="normalizer"}`)
	assert.Contains(t, output, "protongraph_stage_duration_seconds_bucket")
	assert.Contains(t, output, "protongraph_unique_structures")
}

func TestRecordHTTPRequest(t *testing.T) {
	m, c := newTestAppMetrics(t)
	RecordHTTPRequest(m, "POST", "/api/v1/runs", 202, 15*time.Millisecond)

	output := scrapeMetrics(t, c)
	assert.Contains(t, output, `protongraph_http_requests_total{method="POST",path="/api/v1/runs",status_code="202"} 1`)
}

func TestRecordRejection(t *testing.T) {
	m, c := newTestAppMetrics(t)
	RecordRejection(m, "dedup", "duplicate")
	RecordRejection(m, "dedup", "duplicate")

	output := scrapeMetrics(t, c)
	assert.Contains(t, output, `protongraph_rejections_total{code="duplicate",stage="dedup"} 2`)
}

func TestRecordDBQuery_ErrorCountsError(t *testing.T) {
	m, c := newTestAppMetrics(t)
	RecordDBQuery(m, "postgres", "select", time.Millisecond, errors.New("boom"))

	output := scrapeMetrics(t, c)
	assert.Contains(t, output, "protongraph_db_query_duration_seconds")
	assert.Contains(t, output, `protongraph_errors_total{component="postgres",error_type="query_error",severity="error"} 1`)
}

func TestRecordCacheAccess(t *testing.T) {
	m, c := newTestAppMetrics(t)
	RecordCacheAccess(m, "exclusion", true)
	RecordCacheAccess(m, "exclusion", false)

	output := scrapeMetrics(t, c)
	assert.Contains(t, output, `protongraph_cache_hits_total{cache="exclusion"} 1`)
	assert.Contains(t, output, `protongraph_cache_misses_total{cache="exclusion"} 1`)
}
