package embedder

import (
	"time"

	"newswire-search/internal/observability/metrics"
)

// EmbeddingMetricsRecorder abstracts metrics recording so unit tests can
// inject a mock and all backends share one instrumentation surface.
type EmbeddingMetricsRecorder interface {
	// RecordVectors counts successfully generated vectors.
	RecordVectors(provider string, count int)

	// RecordFailure counts a failed embedding call.
	RecordFailure(provider string)

	// RecordBatchDuration records the wall time of one backend call.
	RecordBatchDuration(provider string, d time.Duration)
}

// PrometheusEmbeddingMetrics records to the shared Prometheus registry.
type PrometheusEmbeddingMetrics struct{}

// NewPrometheusEmbeddingMetrics creates the production metrics recorder.
func NewPrometheusEmbeddingMetrics() *PrometheusEmbeddingMetrics {
	return &PrometheusEmbeddingMetrics{}
}

// RecordVectors implements EmbeddingMetricsRecorder.RecordVectors.
func (p *PrometheusEmbeddingMetrics) RecordVectors(provider string, count int) {
	metrics.EmbeddingsGeneratedTotal.WithLabelValues(provider, "success").Add(float64(count))
}

// RecordFailure implements EmbeddingMetricsRecorder.RecordFailure.
func (p *PrometheusEmbeddingMetrics) RecordFailure(provider string) {
	metrics.EmbeddingsGeneratedTotal.WithLabelValues(provider, "failure").Inc()
}

// RecordBatchDuration implements EmbeddingMetricsRecorder.RecordBatchDuration.
func (p *PrometheusEmbeddingMetrics) RecordBatchDuration(provider string, d time.Duration) {
	metrics.EmbeddingBatchDuration.WithLabelValues(provider).Observe(d.Seconds())
}
