package llm

import (
	"log/slog"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	openai "github.com/sashabaranov/go-openai"

	pkgconfig "newswire-search/internal/pkg/config"
)

// Config holds the knobs shared by the answer generators. Loaded from the
// environment with fail-open fallbacks; an unusable value never stops the
// process, it falls back with a warning.
type Config struct {
	// ClaudeModel is the Anthropic model identifier.
	ClaudeModel string

	// OpenAIModel is the OpenAI chat model identifier.
	OpenAIModel string

	// MaxTokens caps the generated answer length at the API.
	MaxTokens int

	// MaxQueryRunes guards against oversized queries reaching the prompt.
	MaxQueryRunes int

	// Timeout bounds one generation call including retries inside it.
	Timeout time.Duration
}

// DefaultConfig returns the production settings.
func DefaultConfig() Config {
	return Config{
		ClaudeModel:   string(anthropic.ModelClaudeSonnet4_5_20250929),
		OpenAIModel:   openai.GPT4oMini,
		MaxTokens:     1024,
		MaxQueryRunes: 2000,
		Timeout:       60 * time.Second,
	}
}

// LoadConfig reads the generator settings from the environment. Loading is
// fail-open: bad values fall back to defaults with a warning, they never
// stop the process.
//
// Environment variables:
//   - LLM_CLAUDE_MODEL, LLM_OPENAI_MODEL: model identifiers
//   - LLM_MAX_TOKENS: answer cap in tokens (default 1024, range 64-8192)
//   - LLM_TIMEOUT: per-call timeout (default 60s)
func LoadConfig() Config {
	d := DefaultConfig()

	maxTokens := pkgconfig.LoadEnvInt("LLM_MAX_TOKENS", d.MaxTokens, func(v int) error {
		return pkgconfig.ValidateIntRange(v, 64, 8192)
	})
	timeout := pkgconfig.LoadEnvDuration("LLM_TIMEOUT", d.Timeout, pkgconfig.ValidatePositiveDuration)
	warnLoadFallbacks(maxTokens, timeout)

	return Config{
		ClaudeModel:   pkgconfig.LoadEnvString("LLM_CLAUDE_MODEL", d.ClaudeModel),
		OpenAIModel:   pkgconfig.LoadEnvString("LLM_OPENAI_MODEL", d.OpenAIModel),
		MaxTokens:     maxTokens.Value.(int),
		MaxQueryRunes: d.MaxQueryRunes,
		Timeout:       timeout.Value.(time.Duration),
	}
}

func warnLoadFallbacks(results ...pkgconfig.ConfigLoadResult) {
	for _, res := range results {
		for _, w := range res.Warnings {
			slog.Warn(w)
		}
	}
}
