// Package fixtures provides reusable test data generators for integration tests.
package fixtures

import (
	"time"

	"newswire-search/internal/domain/entity"
)

// EmbeddingOption is a functional option for customizing test embedding records.
type EmbeddingOption func(*entity.EmbeddingRecord)

// NewTestEmbedding creates a valid EmbeddingRecord with sensible defaults.
// Use functional options to customize the record for specific test cases.
//
// Example:
//
//	record := NewTestEmbedding()
//	record := NewTestEmbedding(WithArticleID(100), WithChunkIndex(2))
func NewTestEmbedding(opts ...EmbeddingOption) *entity.EmbeddingRecord {
	now := time.Now()
	e := &entity.EmbeddingRecord{
		ID:         1,
		ArticleID:  1,
		ExternalID: "AKR20250801000001",
		ChunkIndex: 0,
		Vector:     GenerateTestVector(entity.DefaultDimensions, 0.1),
		Dimension:  entity.DefaultDimensions,
		TextHash:   "0f343b0931126a20f133d67c2b018a3b1e2f5c8d9a4b7e6f0123456789abcdef",
		Provider:   entity.EmbeddingProviderLocal,
		ModelID:    "kosimcse-roberta-768",
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// WithID sets the ID of the record.
func WithID(id int64) EmbeddingOption {
	return func(e *entity.EmbeddingRecord) {
		e.ID = id
	}
}

// WithArticleID sets the ArticleID of the record.
func WithArticleID(id int64) EmbeddingOption {
	return func(e *entity.EmbeddingRecord) {
		e.ArticleID = id
	}
}

// WithExternalID sets the ExternalID of the record.
func WithExternalID(id string) EmbeddingOption {
	return func(e *entity.EmbeddingRecord) {
		e.ExternalID = id
	}
}

// WithChunkIndex sets the ChunkIndex of the record.
func WithChunkIndex(index int) EmbeddingOption {
	return func(e *entity.EmbeddingRecord) {
		e.ChunkIndex = index
	}
}

// WithProvider sets the Provider of the record.
func WithProvider(p entity.EmbeddingProvider) EmbeddingOption {
	return func(e *entity.EmbeddingRecord) {
		e.Provider = p
	}
}

// WithModel sets the ModelID of the record.
func WithModel(model string) EmbeddingOption {
	return func(e *entity.EmbeddingRecord) {
		e.ModelID = model
	}
}

// WithDimension sets the Dimension and generates a matching vector.
func WithDimension(dim int) EmbeddingOption {
	return func(e *entity.EmbeddingRecord) {
		e.Dimension = dim
		e.Vector = GenerateTestVector(dim, 0.1)
	}
}

// WithVector sets the Vector and updates Dimension to match.
func WithVector(vector []float32) EmbeddingOption {
	return func(e *entity.EmbeddingRecord) {
		e.Vector = vector
		e.Dimension = len(vector)
	}
}

// WithTextHash sets the TextHash of the record.
func WithTextHash(hash string) EmbeddingOption {
	return func(e *entity.EmbeddingRecord) {
		e.TextHash = hash
	}
}

// WithTimestamps sets CreatedAt and UpdatedAt timestamps.
func WithTimestamps(createdAt, updatedAt time.Time) EmbeddingOption {
	return func(e *entity.EmbeddingRecord) {
		e.CreatedAt = createdAt
		e.UpdatedAt = updatedAt
	}
}

// GenerateTestVector creates a deterministic vector of the specified dimension.
// The seed value is used to generate predictable but different vectors for testing.
//
// Example:
//
//	vec := GenerateTestVector(768, 0.1) // [0.1, 0.101, 0.102, ...]
//	vec := GenerateTestVector(768, 0.5) // [0.5, 0.501, 0.502, ...]
func GenerateTestVector(dimension int, seed float32) []float32 {
	vec := make([]float32, dimension)
	for i := 0; i < dimension; i++ {
		vec[i] = seed + float32(i)*0.001
	}
	return vec
}

// ZeroVector creates a vector of zeros with the specified dimension.
// Useful for testing edge cases with zero vectors.
func ZeroVector(dimension int) []float32 {
	return make([]float32, dimension)
}

// UnitVector creates a unit vector with 1.0 at the specified index and 0.0 elsewhere.
// Useful for testing specific similarity calculations.
//
// Example:
//
//	vec := UnitVector(768, 0)    // [1.0, 0.0, 0.0, ...]
//	vec := UnitVector(768, 100)  // [0.0, ..., 1.0, 0.0, ...]
func UnitVector(dimension int, index int) []float32 {
	vec := make([]float32, dimension)
	if index >= 0 && index < dimension {
		vec[index] = 1.0
	}
	return vec
}

// NormalizedVector creates a normalized vector (unit length) from the seed.
// The resulting vector has a magnitude of 1.0, suitable for cosine similarity tests.
func NormalizedVector(dimension int, seed float32) []float32 {
	vec := GenerateTestVector(dimension, seed)

	// Calculate magnitude
	var magnitude float32
	for _, v := range vec {
		magnitude += v * v
	}
	magnitude = float32(sqrt64(float64(magnitude)))

	// Normalize
	if magnitude > 0 {
		for i := range vec {
			vec[i] /= magnitude
		}
	}

	return vec
}

// sqrt64 computes the square root of a float64.
// Using a simple Newton-Raphson method to avoid importing math package.
func sqrt64(x float64) float64 {
	if x <= 0 {
		return 0
	}
	z := x / 2
	for i := 0; i < 10; i++ {
		z = z - (z*z-x)/(2*z)
	}
	return z
}

// SimilarVector creates a vector directionally similar to the base vector.
// The retentionRatio parameter controls how much of the base vector is retained:
//   - 1.0 = identical to base vector (no perturbation)
//   - 0.0 = maximum perturbation (least similar)
//
// Note: This produces an approximate directionally similar vector for testing
// purposes. It does NOT guarantee a specific cosine similarity value.
func SimilarVector(base []float32, retentionRatio float32) []float32 {
	dimension := len(base)
	result := make([]float32, dimension)

	// Mix the base vector with a deterministic perturbation
	perturbation := 1.0 - retentionRatio
	for i := 0; i < dimension; i++ {
		// Add small perturbation based on index
		noise := perturbation * float32(i%10) * 0.01
		result[i] = base[i]*retentionRatio + noise
	}

	return result
}
