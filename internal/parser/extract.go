package parser

import (
	"crypto/md5"
	"encoding/hex"
	"math"
	"sort"
	"strings"

	"newswire-search/internal/domain/entity"
	"newswire-search/internal/utils/text"
)

// indexingTextByteBudget caps the weighted indexing text in UTF-8 bytes.
const indexingTextByteBudget = 2048

// Extractor derives a MetadataRecord from a parsed article: entity buckets,
// the article-type classification, the importance score, and the weighted
// indexing text. Extraction is pure and deterministic.
type Extractor struct {
	patterns entityPatterns
}

// NewExtractor creates an Extractor with the default pattern library.
func NewExtractor() *Extractor {
	return &Extractor{patterns: newEntityPatterns()}
}

// Extract builds the metadata record for a. It reads the article only; the
// caller decides which derived fields to copy back onto it.
func (e *Extractor) Extract(a *entity.Article) *entity.MetadataRecord {
	m := &entity.MetadataRecord{
		ArticleID:     a.InternalID,
		ExternalID:    a.ExternalID,
		TitleLength:   text.CountRunes(a.Title),
		BodyLength:    text.CountRunes(a.Body),
		SummaryLength: text.CountRunes(a.Summary),
		WordCount:     len(strings.Fields(a.Body)),
		HasSummary:    a.Summary != "",
	}
	m.TotalLength = m.TitleLength + m.BodyLength + m.SummaryLength

	m.Entities = e.ExtractEntities(a.Title + " " + a.Body)
	m.Categories = a.CategoryNames()
	m.Keywords = a.KeywordTexts()
	m.StockCodes = append([]string(nil), a.StockCodes...)

	if !a.PublishTime.IsZero() {
		m.Year = a.PublishTime.Year()
		m.Month = int(a.PublishTime.Month())
		m.Day = a.PublishTime.Day()
		m.Hour = a.PublishTime.Hour()
		m.Weekday = a.PublishTime.Weekday().String()
	}

	m.ArticleType = ClassifyArticleType(a.Title, a.Body)
	m.ImportanceScore = importanceScore(m)
	m.IndexingText = buildIndexingText(a, m)
	m.MetadataHash = MetadataHash(a.ExternalID, a.Title, m.Categories, m.Keywords)

	return m
}

// ExtractEntities runs the pattern library over s and returns the typed
// buckets, each deduplicated in first-occurrence order.
func (e *Extractor) ExtractEntities(s string) entity.EntityBuckets {
	return entity.EntityBuckets{
		Companies: extractOrdered(s, e.patterns.companies),
		Persons:   extractOrdered(s, e.patterns.persons),
		Locations: extractOrdered(s, e.patterns.locations),
		Dates:     extractOrdered(s, e.patterns.dates),
		Numbers:   extractOrdered(s, e.patterns.numbers),
	}
}

// articleTypeCues maps each classification to its keyword cues. Order is
// the match priority; the first cue found anywhere in title or body wins.
var articleTypeCues = []struct {
	articleType entity.ArticleType
	cues        []string
}{
	{entity.ArticleTypeFinancial, []string{"배당", "주가", "증시", "상장"}},
	{entity.ArticleTypeMNA, []string{"인수", "합병", "m&a", "투자"}},
	{entity.ArticleTypePeople, []string{"연봉", "채용", "인사"}},
	{entity.ArticleTypePolicy, []string{"정책", "법안", "규제"}},
	{entity.ArticleTypeTechnology, []string{"기술", "ai", "디지털", "스마트"}},
}

// ClassifyArticleType infers the topical classification from keyword cues
// in the title and body. Unmatched articles are general.
func ClassifyArticleType(title, body string) entity.ArticleType {
	titleLower := strings.ToLower(title)
	bodyLower := strings.ToLower(body)
	for _, tc := range articleTypeCues {
		for _, cue := range tc.cues {
			if strings.Contains(titleLower, cue) || strings.Contains(bodyLower, cue) {
				return tc.articleType
			}
		}
	}
	return entity.ArticleTypeGeneral
}

// importanceScore combines keyword count, stock-code presence, entity
// count, and body length into a bounded score, truncated to two decimals.
func importanceScore(m *entity.MetadataRecord) float64 {
	score := 0.5 * float64(len(m.Keywords))
	if len(m.StockCodes) > 0 {
		score += 2.0
	}
	score += 0.3 * float64(m.Entities.Total())
	switch {
	case m.BodyLength > 1000:
		score += 1.0
	case m.BodyLength > 500:
		score += 0.5
	}
	return math.Round(score*100) / 100
}

// buildIndexingText concatenates the weighted searchable text: the title
// twice, then summary, categories, keywords, and entities, capped at the
// byte budget on a rune boundary.
func buildIndexingText(a *entity.Article, m *entity.MetadataRecord) string {
	parts := make([]string, 0, 3+len(m.Categories)+len(m.Keywords)+m.Entities.Total())
	if a.Title != "" {
		parts = append(parts, a.Title, a.Title)
	}
	if a.Summary != "" {
		parts = append(parts, a.Summary)
	}
	parts = append(parts, m.Categories...)
	parts = append(parts, m.Keywords...)
	parts = append(parts, m.Entities.All()...)
	return text.TruncateBytes(strings.Join(parts, " "), indexingTextByteBudget)
}

// MetadataHash fingerprints the fields that drive re-indexing decisions:
// identity, title, and the sorted classification sets. Sorting keeps the
// hash independent of feed ordering. The embedding pipeline stores the same
// hash next to each vector so metadata-only edits can be detected without
// re-reading the article.
func MetadataHash(externalID, title string, categories, keywords []string) string {
	cats := append([]string(nil), categories...)
	kws := append([]string(nil), keywords...)
	sort.Strings(cats)
	sort.Strings(kws)

	h := md5.Sum([]byte(externalID + "|" + title + "|" + strings.Join(cats, ",") + "|" + strings.Join(kws, ",")))
	return hex.EncodeToString(h[:])
}
