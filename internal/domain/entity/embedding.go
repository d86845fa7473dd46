package entity

import (
	"fmt"
	"time"
)

// EmbeddingProvider identifies which backend produced a vector.
type EmbeddingProvider string

const (
	// EmbeddingProviderManaged is the hosted embeddings API.
	EmbeddingProviderManaged EmbeddingProvider = "managed"
	// EmbeddingProviderLocal is the self-hosted Korean embedding server.
	EmbeddingProviderLocal EmbeddingProvider = "local"
	// EmbeddingProviderHash is the deterministic lexical fallback used when
	// no model backend is reachable.
	EmbeddingProviderHash EmbeddingProvider = "hash"
)

// IsValid checks if the provider is one of the known backends.
func (p EmbeddingProvider) IsValid() bool {
	switch p {
	case EmbeddingProviderManaged, EmbeddingProviderLocal, EmbeddingProviderHash:
		return true
	}
	return false
}

// EmbeddingRecord is the dense vector for one chunk of an article, or for
// the whole article when it fits in a single chunk (ChunkIndex 0).
//
// (ArticleID, ChunkIndex) is unique in the store. TextHash fingerprints the
// exact text that was embedded so re-embedding can be skipped when neither
// the content nor the model changed.
type EmbeddingRecord struct {
	ID         int64
	ArticleID  int64
	ExternalID string
	ChunkIndex int

	Vector       []float32
	Dimension    int
	TextHash     string
	MetadataHash string

	Provider EmbeddingProvider
	ModelID  string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// DatapointID returns the identifier this record uses in the ANN index:
// the article's external ID and the chunk index joined with '#'.
func (e *EmbeddingRecord) DatapointID() string {
	return fmt.Sprintf("%s#%d", e.ExternalID, e.ChunkIndex)
}

// Validate checks the invariants an embedding record must satisfy before
// persistence or index upsert.
func (e *EmbeddingRecord) Validate() error {
	if e.ArticleID <= 0 {
		return &ValidationError{Field: "article_id", Message: "article_id must be positive"}
	}
	if e.ExternalID == "" {
		return &ValidationError{Field: "external_id", Message: "external_id is required"}
	}
	if e.ChunkIndex < 0 {
		return &ValidationError{Field: "chunk_index", Message: "chunk_index must not be negative"}
	}
	if len(e.Vector) == 0 {
		return &ValidationError{Field: "vector", Message: "vector is required"}
	}
	if e.Dimension != len(e.Vector) {
		return &ValidationError{
			Field:   "dimension",
			Message: fmt.Sprintf("dimension %d does not match vector length %d", e.Dimension, len(e.Vector)),
		}
	}
	if !e.Provider.IsValid() {
		return &ValidationError{Field: "provider", Message: "unknown provider: " + string(e.Provider)}
	}
	if e.ModelID == "" {
		return &ValidationError{Field: "model_id", Message: "model_id is required"}
	}
	return nil
}
