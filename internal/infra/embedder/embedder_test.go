package embedder_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"newswire-search/internal/domain/entity"
	"newswire-search/internal/infra/embedder"
	"newswire-search/internal/parser"
	"newswire-search/tests/fixtures"
)

/* ───────── EmbedArticle Assembly Tests ───────── */

func TestEmbedArticle_AssemblesResult(t *testing.T) {
	e := embedder.NewHashEmbedder(0)
	a := fixtures.NewTestArticle()

	before := time.Now().UTC()
	result, err := embedder.EmbedArticle(context.Background(), e, a)
	require.NoError(t, err)

	assert.Len(t, result.Vector, entity.DefaultDimensions)
	assert.Equal(t, embedder.InputHash(embedder.BuildInput(a)), result.TextHash)
	assert.Equal(t, parser.MetadataHash(a.ExternalID, a.Title, a.CategoryNames(), a.KeywordTexts()), result.MetadataHash)
	assert.Equal(t, "hash-fallback-768", result.ModelID)
	assert.Equal(t, entity.EmbeddingProviderHash, result.Provider)
	assert.False(t, result.CreatedAt.Before(before))
	assert.Equal(t, time.UTC, result.CreatedAt.Location())
}

func TestEmbedArticle_SameArticleSameHash(t *testing.T) {
	e := embedder.NewHashEmbedder(0)
	a := fixtures.NewTestArticle()

	r1, err := embedder.EmbedArticle(context.Background(), e, a)
	require.NoError(t, err)
	r2, err := embedder.EmbedArticle(context.Background(), e, a)
	require.NoError(t, err)

	assert.Equal(t, r1.TextHash, r2.TextHash)
	assert.Equal(t, r1.MetadataHash, r2.MetadataHash)
	assert.Equal(t, r1.Vector, r2.Vector)
}

func TestEmbedArticle_TitleChangeChangesHashes(t *testing.T) {
	e := embedder.NewHashEmbedder(0)

	r1, err := embedder.EmbedArticle(context.Background(), e, fixtures.NewTestArticle())
	require.NoError(t, err)
	r2, err := embedder.EmbedArticle(context.Background(), e, fixtures.NewTestArticle(fixtures.WithTitle("다른 제목")))
	require.NoError(t, err)

	assert.NotEqual(t, r1.TextHash, r2.TextHash)
	assert.NotEqual(t, r1.MetadataHash, r2.MetadataHash)
}

func TestEmbedArticle_NilArticle(t *testing.T) {
	_, err := embedder.EmbedArticle(context.Background(), embedder.NewHashEmbedder(0), nil)

	assert.Error(t, err)
}
