package embedder

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sony/gobreaker"

	"newswire-search/internal/domain/entity"
	"newswire-search/internal/resilience/circuitbreaker"
	"newswire-search/internal/resilience/retry"
)

// localBatchCap is how many texts one EmbedBatch slice processes before the
// next reliability-wrapped pass. The sidecar embeds one text per request.
const localBatchCap = 32

// LocalEmbedderConfig holds configuration for the sidecar embedder.
type LocalEmbedderConfig struct {
	// BaseURL is the sidecar's address. Loopback only; the transport
	// rejects anything else.
	BaseURL string

	// Model labels vectors produced by the sidecar.
	Model string

	// Dimensions is the vector width the sidecar model produces.
	Dimensions int

	// Timeout is the maximum duration for a single sidecar request.
	Timeout time.Duration
}

// LoadLocalEmbedderConfig loads configuration from environment variables.
//
// Environment variables:
//   - EMBEDDER_LOCAL_URL: Sidecar base URL (default: http://127.0.0.1:8086)
//   - EMBEDDER_LOCAL_MODEL: Model label (default: kosimcse-roberta-768)
func LoadLocalEmbedderConfig() LocalEmbedderConfig {
	baseURL := os.Getenv("EMBEDDER_LOCAL_URL")
	if baseURL == "" {
		baseURL = "http://127.0.0.1:8086"
	}

	model := os.Getenv("EMBEDDER_LOCAL_MODEL")
	if model == "" {
		model = "kosimcse-roberta-768"
	}

	return LocalEmbedderConfig{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		Model:      model,
		Dimensions: entity.DefaultDimensions,
		Timeout:    30 * time.Second,
	}
}

// localEmbeddingRequest is the sidecar's request body.
type localEmbeddingRequest struct {
	Content string `json:"content"`
}

// localEmbeddingResponse is the sidecar's response body.
type localEmbeddingResponse struct {
	Embedding []float32 `json:"embedding"`
}

// LocalEmbedder implements the Embedder interface against an HTTP sidecar
// serving a multilingual embedding model on localhost.
type LocalEmbedder struct {
	client          *http.Client
	circuitBreaker  *circuitbreaker.CircuitBreaker
	retryConfig     retry.Config
	config          LocalEmbedderConfig
	metricsRecorder EmbeddingMetricsRecorder
}

// NewLocalEmbedder creates a sidecar embedder from environment configuration.
func NewLocalEmbedder() *LocalEmbedder {
	config := LoadLocalEmbedderConfig()

	slog.Info("Initialized local embedder with configuration",
		slog.String("url", config.BaseURL),
		slog.String("model", config.Model),
		slog.Int("dimensions", config.Dimensions))

	return &LocalEmbedder{
		client: &http.Client{
			Timeout: config.Timeout,
			Transport: &http.Transport{
				// The sidecar never leaves the host. Reject any
				// non-loopback dial so a misconfigured URL cannot
				// send article text off the machine.
				DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
					host, _, err := net.SplitHostPort(addr)
					if err != nil {
						return nil, fmt.Errorf("invalid sidecar address %q: %w", addr, err)
					}
					if host != "localhost" {
						ip := net.ParseIP(host)
						if ip == nil || !ip.IsLoopback() {
							return nil, fmt.Errorf("refusing non-loopback sidecar address: %s", addr)
						}
					}
					return (&net.Dialer{}).DialContext(ctx, network, addr)
				},
			},
		},
		circuitBreaker:  circuitbreaker.New(circuitbreaker.EmbeddingAPIConfig()),
		retryConfig:     retry.EmbeddingAPIConfig(),
		config:          config,
		metricsRecorder: NewPrometheusEmbeddingMetrics(),
	}
}

// Embed returns the vector for a single text.
func (l *LocalEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, l.config.Timeout)
	defer cancel()

	var result []float32

	retryErr := retry.WithBackoff(ctx, l.retryConfig, func() error {
		cbResult, err := l.circuitBreaker.Execute(func() (interface{}, error) {
			return l.doEmbed(ctx, text)
		})

		if err != nil {
			if errors.Is(err, gobreaker.ErrOpenState) {
				slog.Warn("local embedder circuit breaker open, request rejected",
					slog.String("service", "local-embedder"),
					slog.String("state", l.circuitBreaker.State().String()))
				return fmt.Errorf("local embedder unavailable: circuit breaker open")
			}
			return err
		}

		result = cbResult.([]float32)
		return nil
	})

	if retryErr != nil {
		return nil, fmt.Errorf("local embed failed after retries: %w", retryErr)
	}

	return result, nil
}

// EmbedBatch embeds texts in slices of the batch cap, preserving input
// order. The sidecar takes one text per request, so a slice is a bounded
// run of sequential calls rather than one payload.
func (l *LocalEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	requestID := uuid.New().String()
	start := time.Now()
	vectors := make([][]float32, 0, len(texts))

	for sliceStart := 0; sliceStart < len(texts); sliceStart += localBatchCap {
		sliceEnd := sliceStart + localBatchCap
		if sliceEnd > len(texts) {
			sliceEnd = len(texts)
		}

		for i, text := range texts[sliceStart:sliceEnd] {
			vector, err := l.Embed(ctx, text)
			if err != nil {
				return nil, fmt.Errorf("local embed batch item %d: %w", sliceStart+i, err)
			}
			vectors = append(vectors, vector)
		}
	}

	slog.InfoContext(ctx, "Embedding batch completed",
		slog.String("request_id", requestID),
		slog.Int("vectors", len(vectors)),
		slog.Duration("duration", time.Since(start)))

	l.metricsRecorder.RecordBatchDuration(string(entity.EmbeddingProviderLocal), time.Since(start))

	return vectors, nil
}

// doEmbed performs one sidecar request without retry or circuit breaker.
func (l *LocalEmbedder) doEmbed(ctx context.Context, text string) ([]float32, error) {
	body, err := json.Marshal(localEmbeddingRequest{Content: text})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, l.config.BaseURL+"/embedding", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := l.client.Do(req)
	if err != nil {
		l.metricsRecorder.RecordFailure(string(entity.EmbeddingProviderLocal))
		// Keep the chain intact so connection and timeout errors stay
		// classified as retryable.
		return nil, fmt.Errorf("sidecar request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		l.metricsRecorder.RecordFailure(string(entity.EmbeddingProviderLocal))
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		l.metricsRecorder.RecordFailure(string(entity.EmbeddingProviderLocal))
		return nil, &retry.HTTPError{StatusCode: resp.StatusCode, Message: string(respBody)}
	}

	vector, err := decodeEmbedding(respBody)
	if err != nil {
		l.metricsRecorder.RecordFailure(string(entity.EmbeddingProviderLocal))
		return nil, err
	}

	if len(vector) != l.config.Dimensions {
		l.metricsRecorder.RecordFailure(string(entity.EmbeddingProviderLocal))
		return nil, fmt.Errorf("sidecar returned %d dimensions, want %d", len(vector), l.config.Dimensions)
	}

	l.metricsRecorder.RecordVectors(string(entity.EmbeddingProviderLocal), 1)

	return vector, nil
}

// decodeEmbedding accepts both response shapes sidecar builds emit: an
// object {"embedding": [...]} or a bare array [...].
func decodeEmbedding(body []byte) ([]float32, error) {
	var obj localEmbeddingResponse
	if err := json.Unmarshal(body, &obj); err == nil && len(obj.Embedding) > 0 {
		return obj.Embedding, nil
	}

	var flat []float32
	if err := json.Unmarshal(body, &flat); err == nil && len(flat) > 0 {
		return flat, nil
	}

	preview := body
	if len(preview) > 200 {
		preview = preview[:200]
	}
	return nil, fmt.Errorf("unrecognized embedding response: %s", preview)
}

// Dimensions implements Embedder.Dimensions.
func (l *LocalEmbedder) Dimensions() int {
	return l.config.Dimensions
}

// ModelID implements Embedder.ModelID.
func (l *LocalEmbedder) ModelID() string {
	return l.config.Model
}

// Provider implements Embedder.Provider.
func (l *LocalEmbedder) Provider() entity.EmbeddingProvider {
	return entity.EmbeddingProviderLocal
}
