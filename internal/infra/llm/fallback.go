package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"newswire-search/internal/observability/metrics"
)

// FallbackModelID labels template answers in responses and logs.
const FallbackModelID = "template-fallback"

// Fallback produces a templated answer from the retrieved references alone.
// It never fails, which keeps the query path responding when no generation
// API is configured or the configured one is down. Answers are clearly
// marked with Source = "fallback".
type Fallback struct{}

// NewFallback creates the template answer generator.
func NewFallback() *Fallback { return &Fallback{} }

// ModelID implements Generator.
func (f *Fallback) ModelID() string { return FallbackModelID }

// GenerateAnswer implements Generator. Confidence is fixed: 0.6 when
// references back the answer, 0.0 when nothing was retrieved.
func (f *Fallback) GenerateAnswer(_ context.Context, query, _ string, refs []Reference) (*Answer, error) {
	answer := &Answer{
		Text:       buildFallbackText(query, refs),
		References: refs,
		ModelID:    FallbackModelID,
		Source:     SourceFallback,
		CreatedAt:  time.Now().UTC(),
	}
	if len(refs) > 0 {
		answer.Confidence = 0.6
	}
	metrics.AnswersGeneratedTotal.WithLabelValues(SourceFallback, "success").Inc()
	metrics.AnswerConfidence.Observe(answer.Confidence)
	return answer, nil
}

func buildFallbackText(query string, refs []Reference) string {
	if len(refs) == 0 {
		return fmt.Sprintf("'%s'에 대한 관련 기사를 찾지 못했습니다. 다른 검색어로 다시 시도해 주세요.", query)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "'%s'에 대한 관련 기사 %d건을 찾았습니다.\n", query, len(refs))
	for i, r := range refs {
		fmt.Fprintf(&b, "%d. %s", i+1, r.Title)
		if !r.PublishedAt.IsZero() {
			fmt.Fprintf(&b, " (%s)", r.PublishedAt.Format("2006-01-02"))
		}
		b.WriteString("\n")
	}
	b.WriteString("자세한 내용은 각 기사를 참고해 주세요.")
	return b.String()
}
