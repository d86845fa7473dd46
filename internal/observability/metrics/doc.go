// Package metrics provides Prometheus metrics registry and recording utilities.
//
// This package centralizes all application metrics including:
//   - HTTP request metrics (duration, count, size)
//   - Ingest pipeline metrics (parse, dedup, embed, index)
//   - Query pipeline metrics (retrieval, rerank, answer)
//   - Database query metrics
//
// All metrics are automatically registered with the Prometheus default registry
// and exposed via the /metrics endpoint.
//
// Example usage:
//
//	import "newswire-search/internal/observability/metrics"
//
//	func runIngest(source string) {
//	    start := time.Now()
//	    // ... parse and persist articles ...
//	    count := 10
//
//	    metrics.RecordArticlesIngested(source, count)
//	    metrics.RecordOperationDuration("ingest_run", time.Since(start))
//	}
package metrics
