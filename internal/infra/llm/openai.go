package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	openai "github.com/sashabaranov/go-openai"
	"github.com/sony/gobreaker"

	"newswire-search/internal/observability/metrics"
	"newswire-search/internal/resilience/circuitbreaker"
	"newswire-search/internal/resilience/retry"
	"newswire-search/internal/utils/text"
)

// OpenAI generates answers through the chat completions API. Same
// reliability envelope as Claude: circuit breaker inside retry.
type OpenAI struct {
	client         *openai.Client
	circuitBreaker *circuitbreaker.CircuitBreaker
	retryConfig    retry.Config
	config         Config
}

// NewOpenAI creates an OpenAI answer generator with the given API key.
func NewOpenAI(apiKey string, cfg Config) *OpenAI {
	slog.Info("Initialized OpenAI answer generator",
		slog.String("model", cfg.OpenAIModel),
		slog.Int("max_tokens", cfg.MaxTokens))

	return &OpenAI{
		client:         openai.NewClient(apiKey),
		circuitBreaker: circuitbreaker.New(circuitbreaker.LLMAPIConfig()),
		retryConfig:    retry.LLMAPIConfig(),
		config:         cfg,
	}
}

// ModelID implements Generator.
func (o *OpenAI) ModelID() string { return o.config.OpenAIModel }

// GenerateAnswer implements Generator.
func (o *OpenAI) GenerateAnswer(ctx context.Context, query, contextText string, refs []Reference) (*Answer, error) {
	ctx, cancel := context.WithTimeout(ctx, o.config.Timeout)
	defer cancel()

	var answerText string
	retryErr := retry.WithBackoff(ctx, o.retryConfig, func() error {
		cbResult, err := o.circuitBreaker.Execute(func() (interface{}, error) {
			return o.doGenerate(ctx, query, contextText)
		})
		if err != nil {
			if errors.Is(err, gobreaker.ErrOpenState) {
				slog.Warn("openai api circuit breaker open, request rejected",
					slog.String("state", o.circuitBreaker.State().String()))
				return fmt.Errorf("openai api unavailable: circuit breaker open")
			}
			return err
		}
		answerText = cbResult.(string)
		return nil
	})
	if retryErr != nil {
		metrics.AnswersGeneratedTotal.WithLabelValues(SourceOpenAI, "failure").Inc()
		return nil, fmt.Errorf("GenerateAnswer: %w", retryErr)
	}

	answer := &Answer{
		Text:       answerText,
		References: refs,
		Confidence: Confidence(answerText, len(refs), refs),
		ModelID:    o.config.OpenAIModel,
		Source:     SourceOpenAI,
		CreatedAt:  time.Now().UTC(),
	}
	metrics.AnswersGeneratedTotal.WithLabelValues(SourceOpenAI, "success").Inc()
	metrics.AnswerConfidence.Observe(answer.Confidence)
	return answer, nil
}

func (o *OpenAI) doGenerate(ctx context.Context, query, contextText string) (string, error) {
	requestID := uuid.New().String()
	prompt := buildPrompt(query, contextText, o.config.MaxQueryRunes)

	slog.InfoContext(ctx, "Starting answer generation",
		slog.String("request_id", requestID),
		slog.String("provider", SourceOpenAI),
		slog.Int("context_length", len(contextText)),
		slog.Int("query_length", text.CountRunes(query)))

	start := time.Now()
	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     o.config.OpenAIModel,
		MaxTokens: o.config.MaxTokens,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	duration := time.Since(start)

	if err != nil {
		slog.ErrorContext(ctx, "Answer generation failed",
			slog.String("request_id", requestID),
			slog.Duration("duration", duration),
			slog.String("error", err.Error()))
		// Rate limits and server errors retry; other API errors abort.
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) {
			return "", &retry.HTTPError{StatusCode: apiErr.HTTPStatusCode, Message: apiErr.Message}
		}
		return "", fmt.Errorf("openai api error: %w", err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", fmt.Errorf("openai api returned empty response")
	}

	answerText := resp.Choices[0].Message.Content
	slog.InfoContext(ctx, "Answer generation completed",
		slog.String("request_id", requestID),
		slog.Int("answer_length", text.CountRunes(answerText)),
		slog.Duration("duration", duration))
	return answerText, nil
}
