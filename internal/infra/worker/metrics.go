package worker

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"newswire-search/internal/pkg/config"
)

// WorkerMetrics provides Prometheus metrics for the ingestion worker. It
// embeds the standard ConfigMetrics for configuration monitoring and adds
// job-level metrics for scheduled ingestion runs.
//
// Embedded metrics (from ConfigMetrics):
//   - worker_config_load_timestamp: Unix timestamp of last configuration load
//   - worker_config_validation_errors_total: Total validation errors by field
//   - worker_config_fallbacks_total: Total fallback operations by field
//   - worker_config_fallback_active: 1 if any fallback active, 0 otherwise
//
// Worker-specific metrics:
//   - worker_ingest_job_runs_total: Total scheduled runs by status (success/failure)
//   - worker_ingest_job_duration_seconds: Duration histogram of run execution
//   - worker_ingest_job_articles_persisted_total: Total articles persisted across runs
//   - worker_ingest_job_last_success_timestamp: Unix timestamp of last successful run
type WorkerMetrics struct {
	*config.ConfigMetrics

	// IngestJobRunsTotal counts scheduled ingestion runs.
	// Labels: status (success, failure)
	IngestJobRunsTotal *prometheus.CounterVec

	// IngestJobDurationSeconds measures the duration of a scheduled run.
	// Buckets cover 1s through 30m, matching typical directory-scan sizes.
	IngestJobDurationSeconds prometheus.Histogram

	// IngestJobArticlesPersistedTotal counts articles persisted per run.
	IngestJobArticlesPersistedTotal prometheus.Counter

	// IngestJobLastSuccessTimestamp records the last successful run time.
	IngestJobLastSuccessTimestamp prometheus.Gauge
}

// NewWorkerMetrics creates a WorkerMetrics instance with all collectors
// initialized. Collectors are registered with the default registry via
// promauto at creation time.
func NewWorkerMetrics() *WorkerMetrics {
	return &WorkerMetrics{
		ConfigMetrics: config.NewConfigMetrics("worker"),

		IngestJobRunsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "worker_ingest_job_runs_total",
			Help: "Total number of scheduled ingestion runs by status (success/failure)",
		}, []string{"status"}),

		IngestJobDurationSeconds: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "worker_ingest_job_duration_seconds",
			Help:    "Duration of scheduled ingestion runs in seconds",
			Buckets: []float64{1, 5, 30, 60, 300, 900, 1800},
		}),

		IngestJobArticlesPersistedTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "worker_ingest_job_articles_persisted_total",
			Help: "Total number of articles persisted across all scheduled runs",
		}),

		IngestJobLastSuccessTimestamp: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "worker_ingest_job_last_success_timestamp",
			Help: "Unix timestamp of the last successful scheduled run",
		}),
	}
}

// MustRegister is a no-op kept for API symmetry. Collectors register
// automatically via promauto in NewWorkerMetrics.
func (m *WorkerMetrics) MustRegister() {}

// RecordJobRun increments the run counter for the given status
// ("success" or "failure").
func (m *WorkerMetrics) RecordJobRun(status string) {
	m.IngestJobRunsTotal.WithLabelValues(status).Inc()
}

// RecordJobDuration observes the duration of a scheduled run in seconds.
func (m *WorkerMetrics) RecordJobDuration(seconds float64) {
	m.IngestJobDurationSeconds.Observe(seconds)
}

// RecordArticlesPersisted adds the number of articles persisted by a run.
func (m *WorkerMetrics) RecordArticlesPersisted(count int64) {
	m.IngestJobArticlesPersistedTotal.Add(float64(count))
}

// RecordLastSuccess records the current time as the last successful run.
func (m *WorkerMetrics) RecordLastSuccess() {
	m.IngestJobLastSuccessTimestamp.SetToCurrentTime()
}
