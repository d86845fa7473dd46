// Package embedder turns article text into dense vectors. It provides three
// interchangeable backends behind one capability set: a managed embeddings
// API (OpenAI), a local HTTP sidecar serving a multilingual model, and a
// deterministic hash fallback that keeps the pipeline functional when no
// model is reachable. Remote backends are wrapped in retry and circuit
// breaker logic with structured logging and Prometheus metrics.
package embedder

import (
	"context"
	"fmt"
	"time"

	"newswire-search/internal/domain/entity"
	"newswire-search/internal/parser"
)

// Embedder is the capability set every backend implements. Vectors returned
// by one instance always have the same width, reported by Dimensions.
type Embedder interface {
	// Embed returns the vector for a single preprocessed text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch returns one vector per input, in input order. Inputs
	// beyond the backend's per-call cap are split transparently.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions is the width of every vector this embedder produces.
	Dimensions() int

	// ModelID labels vectors in the store so mixed-model indexes can be
	// detected and re-embedded.
	ModelID() string

	// Provider identifies the backend family.
	Provider() entity.EmbeddingProvider
}

// ArticleEmbedding is the result of embedding one article's representative
// text. It carries everything needed to build a persistable EmbeddingRecord;
// assembling one never touches the store.
type ArticleEmbedding struct {
	Vector       []float32
	TextHash     string
	MetadataHash string
	ModelID      string
	Provider     entity.EmbeddingProvider
	CreatedAt    time.Time
}

// EmbedArticle builds the article's weighted input text, embeds it with e,
// and returns the assembled result. The text hash fingerprints the exact
// input that was embedded, so unchanged articles can skip re-embedding.
func EmbedArticle(ctx context.Context, e Embedder, a *entity.Article) (*ArticleEmbedding, error) {
	if a == nil {
		return nil, fmt.Errorf("EmbedArticle: article is nil")
	}

	input := BuildInput(a)
	vector, err := e.Embed(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("EmbedArticle: %s: %w", a.ExternalID, err)
	}

	return &ArticleEmbedding{
		Vector:       vector,
		TextHash:     InputHash(input),
		MetadataHash: parser.MetadataHash(a.ExternalID, a.Title, a.CategoryNames(), a.KeywordTexts()),
		ModelID:      e.ModelID(),
		Provider:     e.Provider(),
		CreatedAt:    time.Now().UTC(),
	}, nil
}
