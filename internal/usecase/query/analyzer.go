package query

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"newswire-search/internal/domain/entity"
	"newswire-search/internal/parser"
	"newswire-search/internal/utils/text"
)

// Intent is the coarse question class of a query, inferred from keyword
// cues. It steers answer prompting, not retrieval.
type Intent string

const (
	IntentQuestion   Intent = "question"
	IntentSearch     Intent = "search"
	IntentComparison Intent = "comparison"
	IntentAnalysis   Intent = "analysis"
	IntentGeneral    Intent = "general"
)

// Complexity grades a query by length, keyword count, and entity count.
type Complexity string

const (
	ComplexitySimple  Complexity = "simple"
	ComplexityMedium  Complexity = "medium"
	ComplexityComplex Complexity = "complex"
)

// Filters restricts retrieval to articles matching every set field. The
// analyzer fills it from the query text; API callers may override or extend
// it before retrieval.
type Filters struct {
	From *time.Time
	To   *time.Time

	Categories []string
	Writers    []string

	// MinBodyLength drops articles with fewer body runes.
	MinBodyLength int

	// HasImages keeps only articles carrying image references.
	HasImages bool

	// RequiredKeywords must all occur somewhere in title, summary, or body.
	RequiredKeywords []string

	// StockCodes keeps only articles tagged with at least one of the codes.
	StockCodes []string
}

// IsZero reports whether no filter field is set.
func (f Filters) IsZero() bool {
	return f.From == nil && f.To == nil &&
		len(f.Categories) == 0 && len(f.Writers) == 0 &&
		f.MinBodyLength == 0 && !f.HasImages &&
		len(f.RequiredKeywords) == 0 && len(f.StockCodes) == 0
}

// AnalyzedQuery is the analyzer's output: everything the retrieval engine
// needs to run the hybrid search.
type AnalyzedQuery struct {
	Raw        string
	Normalized string
	Keywords   []string
	Entities   entity.EntityBuckets
	Intent     Intent
	Filters    Filters
	Complexity Complexity
}

const maxQueryKeywords = 10

// intentCues maps each intent to its Korean cue words. Order is the match
// priority; the first intent with any cue present wins.
var intentCues = []struct {
	intent Intent
	cues   []string
}{
	{IntentQuestion, []string{"?", "무엇", "뭐", "어떻게", "왜", "언제", "누가", "어디", "몇"}},
	{IntentSearch, []string{"찾아", "검색", "알려", "보여", "관련"}},
	{IntentComparison, []string{"비교", "차이", "대비", "versus", "vs"}},
	{IntentAnalysis, []string{"분석", "전망", "예측", "평가", "동향", "추이"}},
}

// categoryCues are the newswire's large-category display names the analyzer
// recognizes as filter hints inside query text.
var categoryCues = []string{
	"증권", "경제", "금융", "부동산", "산업", "정치", "사회", "국제", "문화", "스포츠",
}

var (
	absoluteDateRe = regexp.MustCompile(`\d{4}-\d{2}-\d{2}`)
	writerHintRe   = regexp.MustCompile(`([가-힣]{2,4})\s*기자`)
)

// Analyzer turns a raw query string into an AnalyzedQuery. It shares the
// entity pattern library with the metadata extractor, so query entities and
// article entities bucket identically. Analysis is pure except for the
// clock, which resolves relative date phrases.
type Analyzer struct {
	extractor *parser.Extractor
	now       func() time.Time
}

// AnalyzerOption configures the Analyzer.
type AnalyzerOption func(*Analyzer)

// WithClock fixes the clock used to resolve relative dates. Tests use it.
func WithClock(now func() time.Time) AnalyzerOption {
	return func(a *Analyzer) {
		if now != nil {
			a.now = now
		}
	}
}

// NewAnalyzer creates an Analyzer with the default pattern library.
func NewAnalyzer(opts ...AnalyzerOption) *Analyzer {
	a := &Analyzer{
		extractor: parser.NewExtractor(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Analyze derives the normalized text, ranked keywords, entity buckets,
// intent, filters, and complexity grade of one query.
func (a *Analyzer) Analyze(raw string) (*AnalyzedQuery, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, fmt.Errorf("Analyze: %w", ErrEmptyQuery)
	}

	q := &AnalyzedQuery{
		Raw:        trimmed,
		Normalized: text.Normalize(trimmed),
		Keywords:   text.TopKeywords(trimmed, maxQueryKeywords),
		Entities:   a.extractor.ExtractEntities(trimmed),
		Intent:     classifyIntent(trimmed),
		Filters:    a.extractFilters(trimmed),
	}
	q.Complexity = gradeComplexity(trimmed, q)
	return q, nil
}

// classifyIntent picks the first intent whose cue occurs in the query.
// Matching is case-insensitive so latin cues like "vs" work either way.
func classifyIntent(raw string) Intent {
	lower := strings.ToLower(raw)
	for _, ic := range intentCues {
		for _, cue := range ic.cues {
			if strings.Contains(lower, cue) {
				return ic.intent
			}
		}
	}
	return IntentGeneral
}

// extractFilters pulls date ranges, category hints, and writer hints out of
// the query text. Relative phrases resolve against the analyzer clock; two
// or more absolute dates become a range, a single one selects that day.
func (a *Analyzer) extractFilters(raw string) Filters {
	var f Filters

	if dates := absoluteDateRe.FindAllString(raw, -1); len(dates) > 0 {
		if from, err := time.Parse("2006-01-02", dates[0]); err == nil {
			f.From = &from
			if len(dates) == 1 {
				// A lone date means "articles from that day", not a
				// lower bound.
				to := from.Add(24*time.Hour - time.Nanosecond)
				f.To = &to
			}
		}
		if len(dates) > 1 {
			if to, err := time.Parse("2006-01-02", dates[len(dates)-1]); err == nil {
				to = to.Add(24*time.Hour - time.Nanosecond)
				f.To = &to
			}
		}
	}
	if f.From == nil {
		if from, to, ok := a.relativeRange(raw); ok {
			f.From, f.To = from, to
		}
	}

	for _, cue := range categoryCues {
		if strings.Contains(raw, cue) {
			f.Categories = append(f.Categories, cue)
		}
	}

	for _, m := range writerHintRe.FindAllStringSubmatch(raw, -1) {
		if len(m) > 1 && m[1] != "" {
			f.Writers = append(f.Writers, m[1])
		}
	}

	return f
}

// relativeRange resolves the supported relative date phrases. The range is
// [start of period, now], except yesterday which covers just that day;
// weeks start on Monday, matching Korean usage.
func (a *Analyzer) relativeRange(raw string) (*time.Time, *time.Time, bool) {
	now := a.now()
	to := now
	var from time.Time
	switch {
	case strings.Contains(raw, "오늘"):
		from = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	case strings.Contains(raw, "어제"):
		y := now.AddDate(0, 0, -1)
		from = time.Date(y.Year(), y.Month(), y.Day(), 0, 0, 0, 0, now.Location())
		to = from.Add(24*time.Hour - time.Nanosecond)
	case strings.Contains(raw, "이번 주"), strings.Contains(raw, "이번주"):
		weekday := int(now.Weekday())
		if weekday == 0 {
			weekday = 7
		}
		monday := now.AddDate(0, 0, -(weekday - 1))
		from = time.Date(monday.Year(), monday.Month(), monday.Day(), 0, 0, 0, 0, now.Location())
	case strings.Contains(raw, "이번 달"), strings.Contains(raw, "이번달"):
		from = time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	case strings.Contains(raw, "올해"):
		from = time.Date(now.Year(), 1, 1, 0, 0, 0, 0, now.Location())
	default:
		return nil, nil, false
	}
	return &from, &to, true
}

// gradeComplexity scores the query on length, keyword count, and entity
// count, one point per threshold crossed, and maps 0-1 to simple, 2-3 to
// medium, 4+ to complex.
func gradeComplexity(raw string, q *AnalyzedQuery) Complexity {
	score := 0
	runes := text.CountRunes(raw)
	if runes > 50 {
		score++
	}
	if runes > 100 {
		score++
	}
	if len(q.Keywords) > 3 {
		score++
	}
	if len(q.Keywords) > 6 {
		score++
	}
	entities := q.Entities.Total()
	if entities > 2 {
		score++
	}
	if entities > 5 {
		score++
	}

	switch {
	case score >= 4:
		return ComplexityComplex
	case score >= 2:
		return ComplexityMedium
	}
	return ComplexitySimple
}
