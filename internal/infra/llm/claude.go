package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/google/uuid"
	"github.com/sony/gobreaker"

	"newswire-search/internal/observability/metrics"
	"newswire-search/internal/resilience/circuitbreaker"
	"newswire-search/internal/resilience/retry"
	"newswire-search/internal/utils/text"
)

// Claude generates answers through Anthropic's Messages API. It carries a
// circuit breaker and retry logic; exhausted retries surface to the caller,
// which falls back to the template answer.
type Claude struct {
	client         anthropic.Client
	circuitBreaker *circuitbreaker.CircuitBreaker
	retryConfig    retry.Config
	config         Config
}

// NewClaude creates a Claude answer generator with the given API key.
func NewClaude(apiKey string, cfg Config) *Claude {
	slog.Info("Initialized Claude answer generator",
		slog.String("model", cfg.ClaudeModel),
		slog.Int("max_tokens", cfg.MaxTokens))

	return &Claude{
		client:         anthropic.NewClient(option.WithAPIKey(apiKey)),
		circuitBreaker: circuitbreaker.New(circuitbreaker.LLMAPIConfig()),
		retryConfig:    retry.LLMAPIConfig(),
		config:         cfg,
	}
}

// ModelID implements Generator.
func (c *Claude) ModelID() string { return c.config.ClaudeModel }

// GenerateAnswer implements Generator. The context string is assumed to be
// within the retrieval context budget; only the query is length-guarded.
func (c *Claude) GenerateAnswer(ctx context.Context, query, contextText string, refs []Reference) (*Answer, error) {
	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	var answerText string
	retryErr := retry.WithBackoff(ctx, c.retryConfig, func() error {
		cbResult, err := c.circuitBreaker.Execute(func() (interface{}, error) {
			return c.doGenerate(ctx, query, contextText)
		})
		if err != nil {
			if errors.Is(err, gobreaker.ErrOpenState) {
				slog.Warn("claude api circuit breaker open, request rejected",
					slog.String("state", c.circuitBreaker.State().String()))
				return fmt.Errorf("claude api unavailable: circuit breaker open")
			}
			return err
		}
		answerText = cbResult.(string)
		return nil
	})
	if retryErr != nil {
		metrics.AnswersGeneratedTotal.WithLabelValues(SourceClaude, "failure").Inc()
		return nil, fmt.Errorf("GenerateAnswer: %w", retryErr)
	}

	answer := &Answer{
		Text:       answerText,
		References: refs,
		Confidence: Confidence(answerText, len(refs), refs),
		ModelID:    c.config.ClaudeModel,
		Source:     SourceClaude,
		CreatedAt:  time.Now().UTC(),
	}
	metrics.AnswersGeneratedTotal.WithLabelValues(SourceClaude, "success").Inc()
	metrics.AnswerConfidence.Observe(answer.Confidence)
	return answer, nil
}

// doGenerate performs the plain API call without retry or circuit breaker.
func (c *Claude) doGenerate(ctx context.Context, query, contextText string) (string, error) {
	requestID := uuid.New().String()
	prompt := buildPrompt(query, contextText, c.config.MaxQueryRunes)

	slog.InfoContext(ctx, "Starting answer generation",
		slog.String("request_id", requestID),
		slog.String("provider", SourceClaude),
		slog.Int("context_length", len(contextText)),
		slog.Int("query_length", text.CountRunes(query)))

	start := time.Now()
	message, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(c.config.ClaudeModel),
		MaxTokens: int64(c.config.MaxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(
				anthropic.NewTextBlock(prompt),
			),
		},
	})
	duration := time.Since(start)

	if err != nil {
		slog.ErrorContext(ctx, "Answer generation failed",
			slog.String("request_id", requestID),
			slog.Duration("duration", duration),
			slog.String("error", err.Error()))
		return "", fmt.Errorf("claude api error: %w", err)
	}
	if len(message.Content) == 0 {
		slog.ErrorContext(ctx, "Claude API returned empty response",
			slog.String("request_id", requestID),
			slog.Duration("duration", duration))
		return "", fmt.Errorf("claude api returned empty response")
	}
	textBlock, ok := message.Content[0].AsAny().(anthropic.TextBlock)
	if !ok {
		return "", fmt.Errorf("claude api returned unexpected response type")
	}

	slog.InfoContext(ctx, "Answer generation completed",
		slog.String("request_id", requestID),
		slog.Int("answer_length", text.CountRunes(textBlock.Text)),
		slog.Duration("duration", duration))
	return textBlock.Text, nil
}

// buildPrompt assembles the grounded-answer prompt. The instruction pins the
// model to the supplied articles so answers cite retrieved content instead
// of its own priors.
func buildPrompt(query, contextText string, maxQueryRunes int) string {
	query = text.TruncateRunes(query, maxQueryRunes)
	if contextText == "" {
		return fmt.Sprintf("다음 질문에 한국어로 간결하게 답변해 주세요. 관련 기사를 찾지 못했다면 그 사실을 밝혀 주세요.\n\n[질문]\n%s", query)
	}
	return fmt.Sprintf(
		"다음 뉴스 기사들을 참고하여 질문에 답변해 주세요. 기사에 있는 정보만 사용하고, 기사에 없는 내용은 추측하지 마세요. 한국어로 답변해 주세요.\n\n[기사 내용]\n%s\n\n[질문]\n%s",
		contextText, query)
}
