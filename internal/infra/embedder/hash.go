package embedder

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"math/rand"
	"strings"

	"newswire-search/internal/domain/entity"
)

// HashEmbedder is the deterministic fallback used when no model backend is
// reachable. It seeds a pseudo-random generator with the FNV-64 hash of the
// text and emits a unit vector, so the same text always maps to the same
// point and the pipeline stays exercisable end to end. The vectors carry no
// semantics; the model id labels them so they are never mistaken for real
// embeddings.
type HashEmbedder struct {
	dimensions int
}

// NewHashEmbedder creates a fallback embedder. Zero or negative dimensions
// select the default width.
func NewHashEmbedder(dimensions int) *HashEmbedder {
	if dimensions <= 0 {
		dimensions = entity.DefaultDimensions
	}
	return &HashEmbedder{dimensions: dimensions}
}

// Embed returns the seeded unit vector for text. Empty or whitespace-only
// input maps to the zero vector.
func (h *HashEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return make([]float32, h.dimensions), nil
	}

	seed := fnv.New64()
	_, _ = seed.Write([]byte(trimmed))

	// #nosec G404 -- deterministic reproducibility is the whole point;
	// these vectors carry no security weight.
	rng := rand.New(rand.NewSource(int64(seed.Sum64())))

	vector := make([]float32, h.dimensions)
	for i := range vector {
		vector[i] = float32(rng.NormFloat64())
	}

	return normalizeVector(vector), nil
}

// EmbedBatch embeds each text independently. No backend call, no cap.
func (h *HashEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vector, err := h.Embed(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("hash embed item %d: %w", i, err)
		}
		vectors[i] = vector
	}
	return vectors, nil
}

// Dimensions implements Embedder.Dimensions.
func (h *HashEmbedder) Dimensions() int {
	return h.dimensions
}

// ModelID implements Embedder.ModelID. The label makes fallback vectors
// identifiable in the store and the index.
func (h *HashEmbedder) ModelID() string {
	return fmt.Sprintf("hash-fallback-%d", h.dimensions)
}

// Provider implements Embedder.Provider.
func (h *HashEmbedder) Provider() entity.EmbeddingProvider {
	return entity.EmbeddingProviderHash
}

// normalizeVector scales v to unit length. The zero vector is returned
// as-is.
func normalizeVector(v []float32) []float32 {
	var sumSquares float64
	for _, val := range v {
		sumSquares += float64(val) * float64(val)
	}

	magnitude := math.Sqrt(sumSquares)
	if magnitude == 0 {
		return v
	}

	normalized := make([]float32, len(v))
	for i, val := range v {
		normalized[i] = float32(float64(val) / magnitude)
	}
	return normalized
}
