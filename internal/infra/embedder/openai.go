package embedder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"
	openai "github.com/sashabaranov/go-openai"
	"github.com/sony/gobreaker"

	"newswire-search/internal/domain/entity"
	"newswire-search/internal/resilience/circuitbreaker"
	"newswire-search/internal/resilience/retry"
)

// managedBatchCap is the provider-side limit on texts per embeddings call.
const managedBatchCap = 5

// OpenAIEmbedderConfig holds configuration for the managed embedder.
// Configuration is loaded from environment variables with fallback to defaults.
type OpenAIEmbedderConfig struct {
	// Model is the embeddings API model identifier.
	Model string

	// Dimensions is the requested vector width. Must match the active
	// index; the store rejects mixed-width batches at upsert time.
	Dimensions int

	// BatchSize is how many texts go into one API call. Capped at the
	// provider limit of 5.
	BatchSize int

	// Timeout is the maximum duration for a single embeddings API call.
	Timeout time.Duration
}

// LoadOpenAIEmbedderConfig loads configuration from environment variables.
// Invalid values fall back to the default with a warning log.
//
// Environment variables:
//   - EMBEDDER_MODEL: Embeddings model (default: text-embedding-3-small)
//   - EMBEDDER_DIMENSIONS: Vector width (default: 768, range: 64-3072)
func LoadOpenAIEmbedderConfig() OpenAIEmbedderConfig {
	const (
		minDimensions = 64
		maxDimensions = 3072
	)

	dimensions := entity.DefaultDimensions

	if envDims := os.Getenv("EMBEDDER_DIMENSIONS"); envDims != "" {
		parsed, err := strconv.Atoi(envDims)
		if err != nil {
			slog.Warn("Invalid EMBEDDER_DIMENSIONS format, using default",
				slog.String("value", envDims),
				slog.Int("default", entity.DefaultDimensions),
				slog.String("error", err.Error()))
		} else if parsed < minDimensions || parsed > maxDimensions {
			slog.Warn("EMBEDDER_DIMENSIONS out of valid range, using default",
				slog.Int("value", parsed),
				slog.Int("min", minDimensions),
				slog.Int("max", maxDimensions),
				slog.Int("default", entity.DefaultDimensions))
		} else {
			dimensions = parsed
		}
	}

	model := os.Getenv("EMBEDDER_MODEL")
	if model == "" {
		model = string(openai.SmallEmbedding3)
	}

	return OpenAIEmbedderConfig{
		Model:      model,
		Dimensions: dimensions,
		BatchSize:  managedBatchCap,
		Timeout:    30 * time.Second,
	}
}

// OpenAIEmbedder implements the Embedder interface using OpenAI's embeddings
// API. It includes circuit breaker and retry logic for improved reliability.
type OpenAIEmbedder struct {
	client          *openai.Client
	circuitBreaker  *circuitbreaker.CircuitBreaker
	retryConfig     retry.Config
	config          OpenAIEmbedderConfig
	metricsRecorder EmbeddingMetricsRecorder
}

// NewOpenAIEmbedder creates a managed embedder with the given API key.
// It automatically configures circuit breaker, retry logic, and metrics.
func NewOpenAIEmbedder(apiKey string) *OpenAIEmbedder {
	config := LoadOpenAIEmbedderConfig()

	slog.Info("Initialized managed embedder with configuration",
		slog.String("model", config.Model),
		slog.Int("dimensions", config.Dimensions),
		slog.Int("batch_size", config.BatchSize))

	return &OpenAIEmbedder{
		client:          openai.NewClient(apiKey),
		circuitBreaker:  circuitbreaker.New(circuitbreaker.EmbeddingAPIConfig()),
		retryConfig:     retry.EmbeddingAPIConfig(),
		config:          config,
		metricsRecorder: NewPrometheusEmbeddingMetrics(),
	}
}

// Embed returns the vector for a single text.
func (o *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := o.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch embeds texts in provider-sized sub-batches, preserving input
// order. Each sub-batch call is wrapped in retry and circuit breaker logic;
// a sub-batch that exhausts its retries fails the whole call.
func (o *OpenAIEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	vectors := make([][]float32, 0, len(texts))

	for start := 0; start < len(texts); start += o.config.BatchSize {
		end := start + o.config.BatchSize
		if end > len(texts) {
			end = len(texts)
		}

		batch, err := o.embedSubBatch(ctx, texts[start:end])
		if err != nil {
			return nil, fmt.Errorf("openai embed batch [%d:%d]: %w", start, end, err)
		}
		vectors = append(vectors, batch...)
	}

	return vectors, nil
}

// embedSubBatch runs one provider call through the reliability wrappers.
func (o *OpenAIEmbedder) embedSubBatch(ctx context.Context, texts []string) ([][]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, o.config.Timeout)
	defer cancel()

	var result [][]float32

	retryErr := retry.WithBackoff(ctx, o.retryConfig, func() error {
		cbResult, err := o.circuitBreaker.Execute(func() (interface{}, error) {
			return o.doEmbed(ctx, texts)
		})

		if err != nil {
			if errors.Is(err, gobreaker.ErrOpenState) {
				slog.Warn("embeddings api circuit breaker open, request rejected",
					slog.String("service", "openai-embeddings"),
					slog.String("state", o.circuitBreaker.State().String()))
				return fmt.Errorf("embeddings api unavailable: circuit breaker open")
			}
			return err
		}

		result = cbResult.([][]float32)
		return nil
	})

	if retryErr != nil {
		return nil, fmt.Errorf("embed failed after retries: %w", retryErr)
	}

	return result, nil
}

// doEmbed performs the actual API call without retry or circuit breaker.
func (o *OpenAIEmbedder) doEmbed(ctx context.Context, texts []string) ([][]float32, error) {
	requestID := uuid.New().String()

	slog.InfoContext(ctx, "Starting embedding batch",
		slog.String("request_id", requestID),
		slog.String("model", o.config.Model),
		slog.Int("batch_size", len(texts)))

	start := time.Now()

	resp, err := o.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input:      texts,
		Model:      openai.EmbeddingModel(o.config.Model),
		Dimensions: o.config.Dimensions,
	})

	duration := time.Since(start)

	if err != nil {
		o.metricsRecorder.RecordFailure(string(entity.EmbeddingProviderManaged))
		slog.ErrorContext(ctx, "Embedding batch failed",
			slog.String("request_id", requestID),
			slog.Duration("duration", duration),
			slog.String("error", err.Error()))
		// Surface the HTTP status so rate limits and server errors get
		// retried while bad requests abort immediately.
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) {
			return nil, fmt.Errorf("openai embeddings api error: %w",
				&retry.HTTPError{StatusCode: apiErr.HTTPStatusCode, Message: apiErr.Message})
		}
		return nil, fmt.Errorf("openai embeddings api error: %w", err)
	}

	if len(resp.Data) != len(texts) {
		o.metricsRecorder.RecordFailure(string(entity.EmbeddingProviderManaged))
		slog.ErrorContext(ctx, "Embeddings API returned wrong vector count",
			slog.String("request_id", requestID),
			slog.Int("want", len(texts)),
			slog.Int("got", len(resp.Data)))
		return nil, fmt.Errorf("openai embeddings api returned %d vectors for %d inputs", len(resp.Data), len(texts))
	}

	// The API reports each vector's position; order by it rather than
	// trusting response ordering.
	vectors := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(vectors) {
			return nil, fmt.Errorf("openai embeddings api returned out-of-range index %d", d.Index)
		}
		vectors[d.Index] = d.Embedding
	}

	for i, v := range vectors {
		if len(v) != o.config.Dimensions {
			o.metricsRecorder.RecordFailure(string(entity.EmbeddingProviderManaged))
			return nil, fmt.Errorf("openai embeddings api returned %d dimensions for input %d, want %d",
				len(v), i, o.config.Dimensions)
		}
	}

	slog.InfoContext(ctx, "Embedding batch completed",
		slog.String("request_id", requestID),
		slog.Int("vectors", len(vectors)),
		slog.Duration("duration", duration))

	o.metricsRecorder.RecordVectors(string(entity.EmbeddingProviderManaged), len(vectors))
	o.metricsRecorder.RecordBatchDuration(string(entity.EmbeddingProviderManaged), duration)

	return vectors, nil
}

// Dimensions implements Embedder.Dimensions.
func (o *OpenAIEmbedder) Dimensions() int {
	return o.config.Dimensions
}

// ModelID implements Embedder.ModelID.
func (o *OpenAIEmbedder) ModelID() string {
	return o.config.Model
}

// Provider implements Embedder.Provider.
func (o *OpenAIEmbedder) Provider() entity.EmbeddingProvider {
	return entity.EmbeddingProviderManaged
}
