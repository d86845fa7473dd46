package metrics

import (
	"fmt"
	"time"
)

// RecordArticlesIngested records the number of articles persisted from a source.
// This metric helps track ingest throughput and source activity.
func RecordArticlesIngested(sourceName string, count int) {
	ArticlesIngestedTotal.WithLabelValues(sourceName).Add(float64(count))
}

// RecordArticleParsed records the result of one parse attempt.
// Status should be one of "success", "malformed", "missing_identity".
func RecordArticleParsed(status string) {
	ArticlesParsedTotal.WithLabelValues(status).Inc()
}

// RecordDedupDecision records one dedup decision by kind.
// Kind matches the detector's decision kinds: unique, exact_duplicate,
// near_duplicate, title_duplicate.
func RecordDedupDecision(kind string) {
	DedupDecisionsTotal.WithLabelValues(kind).Inc()
}

// RecordIngestRun records the duration of a full ingest run for one source.
func RecordIngestRun(sourceID int64, duration time.Duration) {
	IngestRunDuration.WithLabelValues(
		fmt.Sprintf("%d", sourceID),
	).Observe(duration.Seconds())
}

// RecordIngestError records an error during an ingest run.
func RecordIngestError(sourceID int64, errorType string) {
	IngestErrors.WithLabelValues(
		fmt.Sprintf("%d", sourceID),
		errorType,
	).Inc()
}

// RecordEmbeddingBatch records one embedding batch call.
// Count is the number of vectors produced; provider identifies the backend
// ("openai", "local", "hash").
func RecordEmbeddingBatch(provider string, success bool, count int, duration time.Duration) {
	status := "success"
	if !success {
		status = "failure"
	}
	EmbeddingsGeneratedTotal.WithLabelValues(provider, status).Add(float64(count))
	EmbeddingBatchDuration.WithLabelValues(provider).Observe(duration.Seconds())
}

// RecordIndexUpsert records one vector upsert batch.
func RecordIndexUpsert(success bool, duration time.Duration) {
	status := "success"
	if !success {
		status = "failure"
	}
	IndexUpsertsTotal.WithLabelValues(status).Inc()
	IndexUpsertDuration.Observe(duration.Seconds())
}

// UpdateIndexVectorsTotal updates the vector count of the active index.
// This gauge should be updated after upserts and reconciliation.
func UpdateIndexVectorsTotal(count int64) {
	IndexVectorsTotal.Set(float64(count))
}

// RecordQuery records one search query by its retrieval mode.
// Mode is one of "hybrid", "vector", "keyword", "degraded".
func RecordQuery(mode string) {
	QueriesTotal.WithLabelValues(mode).Inc()
}

// RecordQueryStage records the duration of one query pipeline stage.
// Stage is one of "analyze", "retrieve", "rerank", "answer".
func RecordQueryStage(stage string, duration time.Duration) {
	QueryStageDuration.WithLabelValues(stage).Observe(duration.Seconds())
}

// RecordAnswerGenerated records one answer generation attempt and its
// confidence score. Failed attempts (provider error, fallback used) should
// pass success=false and the fallback confidence.
func RecordAnswerGenerated(provider string, success bool, confidence float64) {
	status := "success"
	if !success {
		status = "failure"
	}
	AnswersGeneratedTotal.WithLabelValues(provider, status).Inc()
	AnswerConfidence.Observe(confidence)
}

// UpdateArticlesTotal updates the total count of articles in the database.
// This gauge should be updated periodically to reflect the current state.
func UpdateArticlesTotal(count int) {
	ArticlesTotal.Set(float64(count))
}

// UpdateSourcesTotal updates the total count of sources in the database.
// This gauge should be updated periodically to reflect the current state.
func UpdateSourcesTotal(count int) {
	SourcesTotal.Set(float64(count))
}

// RecordEnrichmentFetchSuccess records a successful publisher page fetch.
// This tracks both the duration and size of fetched content.
//
// Parameters:
//   - duration: Time taken to fetch the content
//   - size: Size of fetched content in bytes
//
// Example:
//
//	start := time.Now()
//	content, err := fetcher.FetchContent(ctx, url)
//	if err == nil {
//	    RecordEnrichmentFetchSuccess(time.Since(start), len(content))
//	}
func RecordEnrichmentFetchSuccess(duration time.Duration, size int) {
	EnrichmentFetchAttemptsTotal.WithLabelValues("success").Inc()
	EnrichmentFetchDuration.Observe(duration.Seconds())
	EnrichmentFetchSize.Observe(float64(size))
}

// RecordEnrichmentFetchFailed records a failed publisher page fetch.
func RecordEnrichmentFetchFailed(duration time.Duration) {
	EnrichmentFetchAttemptsTotal.WithLabelValues("failure").Inc()
	EnrichmentFetchDuration.Observe(duration.Seconds())
}

// RecordEnrichmentFetchSkipped records a skipped enrichment fetch.
// This occurs when the wire body is already long enough and fetching the
// publisher page is unnecessary.
func RecordEnrichmentFetchSkipped() {
	EnrichmentFetchAttemptsTotal.WithLabelValues("skipped").Inc()
}

// RecordDBQuery records the duration of a database query operation.
// Operation should describe the query type (e.g., "select_articles", "insert_article").
func RecordDBQuery(operation string, duration time.Duration) {
	DBQueryDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// UpdateDBConnectionStats updates database connection pool statistics.
func UpdateDBConnectionStats(active, idle int) {
	DBConnectionsActive.Set(float64(active))
	DBConnectionsIdle.Set(float64(idle))
}
