// Package metrics provides centralized Prometheus metrics for the application.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics track HTTP request patterns and performance
var (
	// HTTPRequestsTotal counts total HTTP requests by method, path, and status
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestDuration measures HTTP request duration in seconds
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestSize measures HTTP request body size in bytes
	HTTPRequestSize = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_size_bytes",
			Help:    "HTTP request size in bytes",
			Buckets: prometheus.ExponentialBuckets(100, 10, 8),
		},
		[]string{"method", "path"},
	)

	// HTTPResponseSize measures HTTP response body size in bytes
	HTTPResponseSize = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_response_size_bytes",
			Help:    "HTTP response size in bytes",
			Buckets: prometheus.ExponentialBuckets(100, 10, 8),
		},
		[]string{"method", "path"},
	)

	// ActiveConnections tracks the number of active HTTP connections
	ActiveConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_active_connections",
			Help: "Number of active HTTP connections",
		},
	)
)

// Ingest pipeline metrics track article collection and processing
var (
	// ArticlesTotal tracks total number of articles in database
	ArticlesTotal = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "articles_total",
			Help: "Total number of articles in the database",
		},
	)

	// SourcesTotal tracks total number of sources in database
	SourcesTotal = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sources_total",
			Help: "Total number of sources in the database",
		},
	)

	// ArticlesIngestedTotal counts articles persisted per source
	ArticlesIngestedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "articles_ingested_total",
			Help: "Total number of articles persisted from sources",
		},
		[]string{"source"},
	)

	// ArticlesParsedTotal counts parse attempts by outcome
	ArticlesParsedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "articles_parsed_total",
			Help: "Total number of article parse attempts",
		},
		[]string{"status"}, // status: success, malformed, missing_identity
	)

	// DedupDecisionsTotal counts dedup decisions by kind
	DedupDecisionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dedup_decisions_total",
			Help: "Total number of dedup decisions",
		},
		[]string{"kind"}, // kind: unique, exact_duplicate, near_duplicate, title_duplicate
	)

	// IngestRunDuration measures time for a full ingest run per source
	IngestRunDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ingest_run_duration_seconds",
			Help:    "Time taken for one ingest run of a source",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		},
		[]string{"source_id"},
	)

	// IngestErrors counts errors during ingest runs
	IngestErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingest_errors_total",
			Help: "Total number of ingest errors",
		},
		[]string{"source_id", "error_type"},
	)
)

// Embedding and index metrics track the vector half of the pipeline
var (
	// EmbeddingsGeneratedTotal counts embedding calls by provider and result
	EmbeddingsGeneratedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "embeddings_generated_total",
			Help: "Total number of embedding vectors generated",
		},
		[]string{"provider", "status"},
	)

	// EmbeddingBatchDuration measures time to embed one batch of texts
	EmbeddingBatchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "embedding_batch_duration_seconds",
			Help:    "Time taken to embed one batch of texts",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
		},
		[]string{"provider"},
	)

	// IndexUpsertsTotal counts vector upserts by result
	IndexUpsertsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "index_upserts_total",
			Help: "Total number of vector index upserts",
		},
		[]string{"status"}, // status: success, failure
	)

	// IndexUpsertDuration measures time to upsert one batch of vectors
	IndexUpsertDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "index_upsert_duration_seconds",
			Help:    "Time taken to upsert one batch of vectors",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		},
	)

	// IndexVectorsTotal tracks the vector count of the active index
	IndexVectorsTotal = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "index_vectors_total",
			Help: "Number of vectors in the active ANN index",
		},
	)
)

// Query pipeline metrics track retrieval and answer generation
var (
	// QueriesTotal counts queries by retrieval mode
	QueriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "queries_total",
			Help: "Total number of search queries",
		},
		[]string{"mode"}, // mode: hybrid, vector, keyword, degraded
	)

	// QueryStageDuration measures per-stage query latency
	QueryStageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "query_stage_duration_seconds",
			Help:    "Query pipeline stage duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
		},
		[]string{"stage"}, // stage: analyze, retrieve, rerank, answer
	)

	// AnswersGeneratedTotal counts generated answers by provider and result
	AnswersGeneratedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "answers_generated_total",
			Help: "Total number of answers generated",
		},
		[]string{"provider", "status"},
	)

	// AnswerConfidence observes the confidence score of generated answers
	AnswerConfidence = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "answer_confidence",
			Help:    "Confidence score of generated answers",
			Buckets: prometheus.LinearBuckets(0.0, 0.1, 11),
		},
	)
)

// Enrichment metrics track publisher page fetches
var (
	// EnrichmentFetchAttemptsTotal counts enrichment fetch attempts by result
	EnrichmentFetchAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "enrichment_fetch_attempts_total",
			Help: "Total number of enrichment fetch attempts",
		},
		[]string{"result"}, // result: success, failure, skipped
	)

	// EnrichmentFetchDuration measures time to fetch a publisher page
	EnrichmentFetchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "enrichment_fetch_duration_seconds",
			Help:    "Time taken to fetch a publisher page",
			Buckets: []float64{0.1, 0.2, 0.4, 0.8, 1.6, 3.2, 6.4, 12.8},
		},
	)

	// EnrichmentFetchSize measures fetched content size in bytes
	EnrichmentFetchSize = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name: "enrichment_fetch_size_bytes",
			Help: "Fetched publisher page size in bytes",
			Buckets: []float64{
				100, 200, 400, 800, 1600, 3200, 6400, 12800,
				25600, 51200, 102400, 204800, 409600, 819200,
				1638400, 3276800, 6553600, 10485760, // up to 10MB
			},
		},
	)
)

// Database metrics track database performance
var (
	// DBQueryDuration measures database query duration
	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 10),
		},
		[]string{"operation"},
	)

	// DBConnectionsActive tracks active database connections
	DBConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "db_connections_active",
			Help: "Number of active database connections",
		},
	)

	// DBConnectionsIdle tracks idle database connections
	DBConnectionsIdle = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "db_connections_idle",
			Help: "Number of idle database connections",
		},
	)
)

// RecordHTTPRequest records an HTTP request with its metadata
func RecordHTTPRequest(method, path, status string, duration time.Duration, requestSize, responseSize int) {
	HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	HTTPRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())

	if requestSize > 0 {
		HTTPRequestSize.WithLabelValues(method, path).Observe(float64(requestSize))
	}
	if responseSize > 0 {
		HTTPResponseSize.WithLabelValues(method, path).Observe(float64(responseSize))
	}
}

// RecordOperationDuration records the duration of a named operation
func RecordOperationDuration(operation string, duration time.Duration) {
	DBQueryDuration.WithLabelValues(operation).Observe(duration.Seconds())
}
