package query

import (
	"fmt"
	"strings"

	"newswire-search/internal/infra/llm"
	"newswire-search/internal/utils/text"
)

const (
	// DefaultContextBudget caps the generation context in bytes.
	DefaultContextBudget = 4000

	// summaryEllipsisRunes is where long summaries get cut inside a block.
	summaryEllipsisRunes = 500

	maxReferences = 5
)

// BuildContext renders retrieved documents into the bounded context string
// handed to the answer generator, plus the reference list for the response.
// Blocks append in rank order until the byte budget is reached; a block
// never splits, so the last article either fits whole or is dropped. The
// reference list covers the articles actually included, capped at five.
func BuildContext(docs []ScoredArticle, budget int) (string, []llm.Reference) {
	if budget <= 0 {
		budget = DefaultContextBudget
	}

	var (
		b    strings.Builder
		refs []llm.Reference
	)
	for i, doc := range docs {
		block := renderBlock(i+1, doc)
		if b.Len()+len(block) > budget {
			break
		}
		b.WriteString(block)
		if len(refs) < maxReferences {
			refs = append(refs, llm.Reference{
				Title:       doc.Article.Title,
				URL:         doc.Article.SourceURL,
				PublishedAt: doc.Article.PublishTime,
				Score:       doc.Final,
			})
		}
	}
	return b.String(), refs
}

// renderBlock formats one article as a numbered context block. The summary
// falls back to the leading body text and is ellipsized past 500 runes.
func renderBlock(n int, doc ScoredArticle) string {
	a := doc.Article

	summary := a.Summary
	if summary == "" {
		summary = a.Body
	}
	if text.CountRunes(summary) > summaryEllipsisRunes {
		summary = text.TruncateRunes(summary, summaryEllipsisRunes) + "..."
	}

	var b strings.Builder
	fmt.Fprintf(&b, "기사 %d:\n", n)
	fmt.Fprintf(&b, "제목: %s\n", a.Title)
	if summary != "" {
		fmt.Fprintf(&b, "요약: %s\n", summary)
	}
	if !a.PublishTime.IsZero() {
		fmt.Fprintf(&b, "발행일: %s\n", a.PublishTime.Format("2006-01-02"))
	}
	if a.SourceURL != "" {
		fmt.Fprintf(&b, "URL: %s\n", a.SourceURL)
	}
	b.WriteString("\n")
	return b.String()
}
