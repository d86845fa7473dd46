package embedder

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"newswire-search/internal/domain/entity"
)

// New builds the embedder selected by EMBEDDER_PROVIDER:
//
//   - "managed": OpenAI embeddings API; requires OPENAI_API_KEY
//   - "local":   HTTP sidecar on localhost
//   - "hash":    deterministic fallback, always available
//
// An explicitly selected backend that cannot be constructed is an error.
// When the variable is unset, selection degrades: managed if an API key is
// present, otherwise local if a sidecar URL is configured, otherwise hash
// with a warning.
func New() (Embedder, error) {
	selected := strings.ToLower(os.Getenv("EMBEDDER_PROVIDER"))

	switch entity.EmbeddingProvider(selected) {
	case entity.EmbeddingProviderManaged:
		apiKey := os.Getenv("OPENAI_API_KEY")
		if apiKey == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY is required when EMBEDDER_PROVIDER=managed")
		}
		return NewOpenAIEmbedder(apiKey), nil

	case entity.EmbeddingProviderLocal:
		return NewLocalEmbedder(), nil

	case entity.EmbeddingProviderHash:
		return NewHashEmbedder(entity.DefaultDimensions), nil
	}

	if selected != "" {
		return nil, fmt.Errorf("invalid EMBEDDER_PROVIDER %q, expected managed, local, or hash", selected)
	}

	if apiKey := os.Getenv("OPENAI_API_KEY"); apiKey != "" {
		return NewOpenAIEmbedder(apiKey), nil
	}

	if os.Getenv("EMBEDDER_LOCAL_URL") != "" {
		return NewLocalEmbedder(), nil
	}

	slog.Warn("No embedding backend configured, falling back to deterministic hash vectors",
		slog.String("model", fmt.Sprintf("hash-fallback-%d", entity.DefaultDimensions)))
	return NewHashEmbedder(entity.DefaultDimensions), nil
}
