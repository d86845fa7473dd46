package ingest_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"newswire-search/internal/domain/entity"
	"newswire-search/tests/fixtures"
)

func TestService_Stats_SnapshotsStoreAndPhases(t *testing.T) {
	inactive := testSource(2, "retired-wire")
	inactive.Active = false
	p := newPipeline([]*entity.Source{testSource(1, "economy-wire"), inactive})

	live := fixtures.NewTestArticle(
		fixtures.WithInternalID(1),
		fixtures.WithArticleExternalID("AKR20260302000001"),
		fixtures.WithContentHash("hash-one"),
	)
	gone := fixtures.NewTestArticle(
		fixtures.WithInternalID(2),
		fixtures.WithArticleExternalID("AKR20260302000002"),
		fixtures.WithContentHash("hash-two"),
	)
	gone.Tombstoned = true
	p.articles.seed(live, gone)

	require.NoError(t, p.vectors.UpsertBatch(context.Background(), []*entity.EmbeddingRecord{
		fixtures.NewTestEmbedding(fixtures.WithArticleID(1), fixtures.WithChunkIndex(0)),
		fixtures.NewTestEmbedding(fixtures.WithArticleID(1), fixtures.WithChunkIndex(1)),
	}))

	entries := []*entity.ProcessingLogEntry{
		{ArticleID: "AKR20260302000001", Phase: entity.PhaseParse, Status: entity.LogStatusOK},
		{ArticleID: "AKR20260302000002", Phase: entity.PhaseParse, Status: entity.LogStatusOK},
		{ArticleID: "broken.xml", Phase: entity.PhaseParse, Status: entity.LogStatusError},
		{ArticleID: "AKR20260302000002", Phase: entity.PhaseDedup, Status: entity.LogStatusSkipped},
		{ArticleID: "AKR20260302000001", Phase: entity.PhaseEmbed, Status: entity.LogStatusError},
	}
	require.NoError(t, p.logs.AppendBatch(context.Background(), entries))

	since := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	stats, err := p.svc.Stats(context.Background(), since)
	require.NoError(t, err)

	// 묘비 처리된 기사는 세지 않고, 소스는 비활성까지 포함한다.
	assert.Equal(t, int64(1), stats.Articles)
	assert.Equal(t, 2, stats.Sources)
	assert.Equal(t, int64(2), stats.Vectors)
	assert.Equal(t, since, stats.Since)

	assert.Equal(t, int64(2), stats.ParseCounts[entity.LogStatusOK])
	assert.Equal(t, int64(1), stats.ParseCounts[entity.LogStatusError])
	assert.Equal(t, int64(1), stats.DedupCounts[entity.LogStatusSkipped])
	assert.Equal(t, int64(1), stats.EmbedCounts[entity.LogStatusError])
}
