package metrics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRecordArticlesIngested(t *testing.T) {
	tests := []struct {
		name       string
		sourceName string
		count      int
	}{
		{
			name:       "single article",
			sourceName: "yonhap-wire",
			count:      1,
		},
		{
			name:       "multiple articles",
			sourceName: "infomax-wire",
			count:      10,
		},
		{
			name:       "zero articles",
			sourceName: "quiet-source",
			count:      0,
		},
		{
			name:       "empty source name",
			sourceName: "",
			count:      5,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotPanics(t, func() {
				RecordArticlesIngested(tt.sourceName, tt.count)
			})
		})
	}
}

func TestRecordArticleParsed(t *testing.T) {
	tests := []struct {
		name   string
		status string
	}{
		{
			name:   "success",
			status: "success",
		},
		{
			name:   "malformed",
			status: "malformed",
		},
		{
			name:   "missing identity",
			status: "missing_identity",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotPanics(t, func() {
				RecordArticleParsed(tt.status)
			})
		})
	}
}

func TestRecordDedupDecision(t *testing.T) {
	tests := []struct {
		name string
		kind string
	}{
		{
			name: "unique",
			kind: "unique",
		},
		{
			name: "exact duplicate",
			kind: "exact_duplicate",
		},
		{
			name: "near duplicate",
			kind: "near_duplicate",
		},
		{
			name: "title duplicate",
			kind: "title_duplicate",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotPanics(t, func() {
				RecordDedupDecision(tt.kind)
			})
		})
	}
}

func TestRecordIngestRun(t *testing.T) {
	tests := []struct {
		name     string
		sourceID int64
		duration time.Duration
	}{
		{
			name:     "fast run",
			sourceID: 1,
			duration: 500 * time.Millisecond,
		},
		{
			name:     "slow run",
			sourceID: 2,
			duration: 30 * time.Second,
		},
		{
			name:     "zero duration",
			sourceID: 3,
			duration: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotPanics(t, func() {
				RecordIngestRun(tt.sourceID, tt.duration)
			})
		})
	}
}

func TestRecordIngestError(t *testing.T) {
	tests := []struct {
		name      string
		sourceID  int64
		errorType string
	}{
		{
			name:      "discover failed",
			sourceID:  1,
			errorType: "discover_failed",
		},
		{
			name:      "parse error",
			sourceID:  2,
			errorType: "parse_error",
		},
		{
			name:      "persist error",
			sourceID:  3,
			errorType: "persist_error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotPanics(t, func() {
				RecordIngestError(tt.sourceID, tt.errorType)
			})
		})
	}
}

func TestRecordEmbeddingBatch(t *testing.T) {
	tests := []struct {
		name     string
		provider string
		success  bool
		count    int
		duration time.Duration
	}{
		{
			name:     "openai batch",
			provider: "openai",
			success:  true,
			count:    5,
			duration: 800 * time.Millisecond,
		},
		{
			name:     "local batch",
			provider: "local",
			success:  true,
			count:    32,
			duration: 200 * time.Millisecond,
		},
		{
			name:     "failed batch",
			provider: "openai",
			success:  false,
			count:    0,
			duration: 2 * time.Second,
		},
		{
			name:     "hash fallback",
			provider: "hash",
			success:  true,
			count:    10,
			duration: time.Millisecond,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotPanics(t, func() {
				RecordEmbeddingBatch(tt.provider, tt.success, tt.count, tt.duration)
			})
		})
	}
}

func TestRecordIndexUpsert(t *testing.T) {
	tests := []struct {
		name     string
		success  bool
		duration time.Duration
	}{
		{
			name:     "success",
			success:  true,
			duration: 50 * time.Millisecond,
		},
		{
			name:     "failure",
			success:  false,
			duration: 5 * time.Second,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotPanics(t, func() {
				RecordIndexUpsert(tt.success, tt.duration)
			})
		})
	}
}

func TestRecordQuery(t *testing.T) {
	tests := []struct {
		name string
		mode string
	}{
		{
			name: "hybrid",
			mode: "hybrid",
		},
		{
			name: "vector",
			mode: "vector",
		},
		{
			name: "keyword",
			mode: "keyword",
		},
		{
			name: "degraded",
			mode: "degraded",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotPanics(t, func() {
				RecordQuery(tt.mode)
			})
		})
	}
}

func TestRecordQueryStage(t *testing.T) {
	tests := []struct {
		name     string
		stage    string
		duration time.Duration
	}{
		{
			name:     "analyze",
			stage:    "analyze",
			duration: 2 * time.Millisecond,
		},
		{
			name:     "retrieve",
			stage:    "retrieve",
			duration: 80 * time.Millisecond,
		},
		{
			name:     "rerank",
			stage:    "rerank",
			duration: 5 * time.Millisecond,
		},
		{
			name:     "answer",
			stage:    "answer",
			duration: 3 * time.Second,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotPanics(t, func() {
				RecordQueryStage(tt.stage, tt.duration)
			})
		})
	}
}

func TestRecordAnswerGenerated(t *testing.T) {
	tests := []struct {
		name       string
		provider   string
		success    bool
		confidence float64
	}{
		{
			name:       "claude success",
			provider:   "claude",
			success:    true,
			confidence: 0.9,
		},
		{
			name:       "openai success",
			provider:   "openai",
			success:    true,
			confidence: 0.7,
		},
		{
			name:       "template fallback",
			provider:   "template",
			success:    false,
			confidence: 0.0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotPanics(t, func() {
				RecordAnswerGenerated(tt.provider, tt.success, tt.confidence)
			})
		})
	}
}

func TestUpdateArticlesTotal(t *testing.T) {
	tests := []struct {
		name  string
		count int
	}{
		{
			name:  "zero articles",
			count: 0,
		},
		{
			name:  "some articles",
			count: 100,
		},
		{
			name:  "many articles",
			count: 10000,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotPanics(t, func() {
				UpdateArticlesTotal(tt.count)
			})
		})
	}
}

func TestRecordDBQuery(t *testing.T) {
	tests := []struct {
		name      string
		operation string
		duration  time.Duration
	}{
		{
			name:      "select query",
			operation: "select_articles",
			duration:  10 * time.Millisecond,
		},
		{
			name:      "insert query",
			operation: "insert_article",
			duration:  5 * time.Millisecond,
		},
		{
			name:      "slow query",
			operation: "keyword_search",
			duration:  500 * time.Millisecond,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotPanics(t, func() {
				RecordDBQuery(tt.operation, tt.duration)
			})
		})
	}
}

func TestUpdateDBConnectionStats(t *testing.T) {
	tests := []struct {
		name   string
		active int
		idle   int
	}{
		{
			name:   "no connections",
			active: 0,
			idle:   0,
		},
		{
			name:   "some active",
			active: 5,
			idle:   10,
		},
		{
			name:   "all active",
			active: 25,
			idle:   0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotPanics(t, func() {
				UpdateDBConnectionStats(tt.active, tt.idle)
			})
		})
	}
}

func TestMetricsFunctions_AllCallable(t *testing.T) {
	// Test that all functions can be called in sequence without panic
	assert.NotPanics(t, func() {
		RecordArticlesIngested("yonhap-wire", 10)
		RecordArticleParsed("success")
		RecordDedupDecision("unique")
		RecordIngestRun(1, 2*time.Second)
		RecordIngestError(1, "test_error")
		RecordEmbeddingBatch("openai", true, 5, 800*time.Millisecond)
		RecordIndexUpsert(true, 50*time.Millisecond)
		UpdateIndexVectorsTotal(1234)
		RecordQuery("hybrid")
		RecordQueryStage("retrieve", 80*time.Millisecond)
		RecordAnswerGenerated("claude", true, 0.9)
		UpdateArticlesTotal(100)
		UpdateSourcesTotal(10)
		RecordEnrichmentFetchSuccess(400*time.Millisecond, 2048)
		RecordEnrichmentFetchFailed(time.Second)
		RecordEnrichmentFetchSkipped()
		RecordDBQuery("test_operation", 10*time.Millisecond)
		UpdateDBConnectionStats(5, 10)
	})
}
