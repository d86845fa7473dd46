package llm

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
)

// New builds the answer generator selected by LLM_PROVIDER:
//
//   - "claude":   Anthropic Messages API; requires ANTHROPIC_API_KEY
//   - "openai":   chat completions; requires OPENAI_API_KEY
//   - "fallback": template answers, always available
//
// An explicitly selected backend that cannot be constructed is an error.
// When the variable is unset, selection degrades: claude if an Anthropic
// key is present, otherwise openai if its key is, otherwise the template
// fallback with a warning.
func New() (Generator, error) {
	cfg := LoadConfig()
	selected := strings.ToLower(os.Getenv("LLM_PROVIDER"))

	switch selected {
	case SourceClaude:
		apiKey := os.Getenv("ANTHROPIC_API_KEY")
		if apiKey == "" {
			return nil, fmt.Errorf("ANTHROPIC_API_KEY is required when LLM_PROVIDER=claude")
		}
		return NewClaude(apiKey, cfg), nil

	case SourceOpenAI:
		apiKey := os.Getenv("OPENAI_API_KEY")
		if apiKey == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY is required when LLM_PROVIDER=openai")
		}
		return NewOpenAI(apiKey, cfg), nil

	case SourceFallback:
		return NewFallback(), nil
	}

	if selected != "" {
		return nil, fmt.Errorf("invalid LLM_PROVIDER %q, expected claude, openai, or fallback", selected)
	}

	if apiKey := os.Getenv("ANTHROPIC_API_KEY"); apiKey != "" {
		return NewClaude(apiKey, cfg), nil
	}
	if apiKey := os.Getenv("OPENAI_API_KEY"); apiKey != "" {
		return NewOpenAI(apiKey, cfg), nil
	}

	slog.Warn("No answer-generation backend configured, falling back to template answers",
		slog.String("model", FallbackModelID))
	return NewFallback(), nil
}
