// Package llm generates natural-language answers from retrieved article
// context. It ships three interchangeable backends behind one Generator
// contract: Claude (default), OpenAI, and a template fallback that keeps
// the query path answering when no API is reachable. Remote backends are
// wrapped in retry and circuit breaker logic with structured logging and
// Prometheus metrics.
package llm

import (
	"context"
	"time"

	"newswire-search/internal/utils/text"
)

// Answer sources.
const (
	SourceClaude   = "claude"
	SourceOpenAI   = "openai"
	SourceFallback = "fallback"
)

// Reference points an answer back at a retrieved article.
type Reference struct {
	Title       string    `json:"title"`
	URL         string    `json:"url,omitempty"`
	PublishedAt time.Time `json:"published_at,omitempty"`
	Score       float64   `json:"score,omitempty"`
}

// Answer is one generated response with its provenance.
type Answer struct {
	Text       string      `json:"text"`
	References []Reference `json:"references,omitempty"`
	Confidence float64     `json:"confidence"`
	ModelID    string      `json:"model_id"`
	Source     string      `json:"source"`
	CreatedAt  time.Time   `json:"created_at"`
}

// Generator is the answer-synthesis contract the query service depends on.
type Generator interface {
	// GenerateAnswer synthesizes an answer to the query from the context
	// string. References ride through to the Answer untouched.
	GenerateAnswer(ctx context.Context, query, contextText string, refs []Reference) (*Answer, error)

	// ModelID labels answers so callers can tell backends apart.
	ModelID() string
}

// Confidence scores an answer from what went into it: 0.5 base, +0.2 for
// three or more context documents, +0.1 for at least one, +0.1 for an
// answer over 100 runes, +0.1 when references carry URLs, capped at 1.0.
func Confidence(answer string, docCount int, refs []Reference) float64 {
	score := 0.5
	switch {
	case docCount >= 3:
		score += 0.2
	case docCount >= 1:
		score += 0.1
	}
	if text.CountRunes(answer) > 100 {
		score += 0.1
	}
	for _, r := range refs {
		if r.URL != "" {
			score += 0.1
			break
		}
	}
	if score > 1.0 {
		score = 1.0
	}
	return score
}
