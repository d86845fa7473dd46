package query

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"newswire-search/internal/domain/entity"
	"newswire-search/internal/infra/embedder"
	"newswire-search/internal/infra/vectorindex"
	"newswire-search/internal/observability/metrics"
	"newswire-search/internal/repository"
	"newswire-search/internal/utils/text"
)

// Weights blends the three retrieval signals. The components must be
// non-negative and sum to at most 1.0.
type Weights struct {
	Vector  float64
	Keyword float64
	Rerank  float64
}

// DefaultWeights returns the production blend.
func DefaultWeights() Weights {
	return Weights{Vector: 0.6, Keyword: 0.3, Rerank: 0.1}
}

// Validate rejects negative components and sums above 1.0.
func (w Weights) Validate() error {
	if w.Vector < 0 || w.Keyword < 0 || w.Rerank < 0 {
		return fmt.Errorf("weights must be non-negative, got %+v", w)
	}
	if sum := w.Vector + w.Keyword + w.Rerank; sum > 1.0+1e-9 {
		return fmt.Errorf("weights sum to %.3f, must be at most 1.0", sum)
	}
	return nil
}

// VectorSearcher is the slice of the index coordinator the engine queries.
type VectorSearcher interface {
	Query(ctx context.Context, vector []float32, topK int, filter *vectorindex.Filter) ([]vectorindex.Match, error)
}

// ScoredArticle is one retrieval hit with its per-component scores. Final
// is the weighted blend the result list is ordered by.
type ScoredArticle struct {
	Article *entity.Article

	VectorScore  float64
	KeywordScore float64
	RerankBonus  float64
	Final        float64
}

// Retrieval modes reported on the result.
const (
	ModeHybrid  = "hybrid"
	ModeVector  = "vector"
	ModeKeyword = "keyword"
)

// RetrievalResult is the ranked hit list plus how it was obtained. Degraded
// is set when one backend failed and the other carried the query alone.
type RetrievalResult struct {
	Docs     []ScoredArticle
	Mode     string
	Degraded bool
}

const (
	recencyFreshDays = 30
	recencyStaleDays = 365

	bonusRecencyWeight = 0.1
	bonusMultiSource   = 0.05
	bonusTitleMatch    = 0.1
)

// Engine fuses dense and lexical retrieval. Both searches run concurrently;
// candidates surviving the metadata filters are merged by article, blended
// with the configured weights, reranked with recency and title bonuses, and
// cut to top-k. One backend failing degrades the query to the other; both
// failing is ErrNoBackend.
type Engine struct {
	articles repository.ArticleRepository
	embed    embedder.Embedder
	vectors  VectorSearcher

	weights Weights
	now     func() time.Time
}

// EngineOption configures the Engine.
type EngineOption func(*Engine)

// WithWeights replaces the default score blend.
func WithWeights(w Weights) EngineOption {
	return func(e *Engine) {
		e.weights = w
	}
}

// WithEngineClock fixes the clock the recency bonus is computed against.
func WithEngineClock(now func() time.Time) EngineOption {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// NewEngine creates the hybrid retrieval engine.
func NewEngine(
	articles repository.ArticleRepository,
	embed embedder.Embedder,
	vectors VectorSearcher,
	opts ...EngineOption,
) *Engine {
	e := &Engine{
		articles: articles,
		embed:    embed,
		vectors:  vectors,
		weights:  DefaultWeights(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Retrieve runs the hybrid search for an analyzed query. Weights may
// override the engine default for this call; pass nil to keep it.
func (e *Engine) Retrieve(ctx context.Context, q *AnalyzedQuery, topK int, weights *Weights) (*RetrievalResult, error) {
	if topK <= 0 {
		topK = 10
	}
	w := e.weights
	if weights != nil {
		if err := weights.Validate(); err != nil {
			return nil, fmt.Errorf("Retrieve: %w", err)
		}
		w = *weights
	}
	fetch := topK * 2

	// Both backends run concurrently; each failure is held, not returned,
	// because one surviving backend still answers the query.
	var (
		wg          sync.WaitGroup
		vectorHits  map[int64]*ScoredArticle
		vectorErr   error
		keywordHits map[int64]*ScoredArticle
		keywordErr  error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		vectorHits, vectorErr = e.vectorSearch(ctx, q, fetch)
	}()
	go func() {
		defer wg.Done()
		keywordHits, keywordErr = e.keywordSearch(ctx, q, fetch)
	}()
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if vectorErr != nil && keywordErr != nil {
		return nil, fmt.Errorf("Retrieve: vector: %v; keyword: %v: %w", vectorErr, keywordErr, ErrNoBackend)
	}

	result := &RetrievalResult{Mode: ModeHybrid}
	switch {
	case vectorErr != nil:
		slog.Warn("vector search failed, degrading to keyword-only",
			slog.Any("error", vectorErr))
		result.Mode, result.Degraded = ModeKeyword, true
	case keywordErr != nil:
		slog.Warn("keyword search failed, degrading to vector-only",
			slog.Any("error", keywordErr))
		result.Mode, result.Degraded = ModeVector, true
	}
	metrics.QueriesTotal.WithLabelValues(result.Mode).Inc()

	rerankStart := time.Now()
	result.Docs = e.fuse(q, vectorHits, keywordHits, w, topK)
	metrics.QueryStageDuration.WithLabelValues("rerank").Observe(time.Since(rerankStart).Seconds())
	return result, nil
}

// vectorSearch embeds the query and runs the ANN search, hydrating hits from
// the store in one bulk read. Chunk hits collapse to their article, keeping
// the best score.
func (e *Engine) vectorSearch(ctx context.Context, q *AnalyzedQuery, fetch int) (map[int64]*ScoredArticle, error) {
	input := q.Normalized
	if input == "" {
		input = q.Raw
	}
	vector, err := e.embed.Embed(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	matches, err := e.vectors.Query(ctx, vector, fetch, buildIndexFilter(q.Filters))
	if err != nil {
		return nil, fmt.Errorf("ann query: %w", err)
	}
	if len(matches) == 0 {
		return map[int64]*ScoredArticle{}, nil
	}

	best := make(map[int64]float64, len(matches))
	ids := make([]int64, 0, len(matches))
	for _, m := range matches {
		if score, seen := best[m.ArticleID]; !seen || m.Score > score {
			if !seen {
				ids = append(ids, m.ArticleID)
			}
			best[m.ArticleID] = m.Score
		}
	}

	articles, err := e.articles.GetByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("hydrate articles: %w", err)
	}

	hits := make(map[int64]*ScoredArticle, len(articles))
	for _, a := range articles {
		if !matchesFilters(a, q.Filters) {
			continue
		}
		hits[a.InternalID] = &ScoredArticle{Article: a, VectorScore: best[a.InternalID]}
	}
	return hits, nil
}

// keywordSearch runs the lexical search through the store adapter and
// scores candidates by token overlap: 0.7 on the title, 0.3 on the summary.
func (e *Engine) keywordSearch(ctx context.Context, q *AnalyzedQuery, fetch int) (map[int64]*ScoredArticle, error) {
	tokens := q.Keywords
	if len(tokens) == 0 {
		tokens = text.ContentTokens(q.Raw)
	}
	if len(tokens) == 0 {
		return map[int64]*ScoredArticle{}, nil
	}

	filters := repository.ArticleSearchFilters{
		From:  q.Filters.From,
		To:    q.Filters.To,
		Limit: fetch,
	}
	if len(q.Filters.Categories) == 1 {
		// A single hint narrows the SQL; multiple hints are checked post-hoc.
		filters.Category = q.Filters.Categories[0]
	}

	articles, err := e.articles.SearchKeyword(ctx, tokens, filters)
	if err != nil {
		return nil, fmt.Errorf("keyword search: %w", err)
	}

	hits := make(map[int64]*ScoredArticle, len(articles))
	for _, a := range articles {
		if !matchesFilters(a, q.Filters) {
			continue
		}
		score := 0.7*text.OverlapRatio(tokens, text.Tokens(a.Title)) +
			0.3*text.OverlapRatio(tokens, text.Tokens(a.Summary))
		hits[a.InternalID] = &ScoredArticle{Article: a, KeywordScore: score}
	}
	return hits, nil
}

// fuse merges both hit streams by article, blends the component scores, and
// returns the top-k by final score with deterministic tie-breaking.
func (e *Engine) fuse(q *AnalyzedQuery, vectorHits, keywordHits map[int64]*ScoredArticle, w Weights, topK int) []ScoredArticle {
	merged := make(map[int64]*ScoredArticle, len(vectorHits)+len(keywordHits))
	for id, hit := range vectorHits {
		merged[id] = hit
	}
	for id, hit := range keywordHits {
		if existing, ok := merged[id]; ok {
			existing.KeywordScore = hit.KeywordScore
			continue
		}
		merged[id] = hit
	}

	now := e.now()
	docs := make([]ScoredArticle, 0, len(merged))
	for id, hit := range merged {
		_, inVector := vectorHits[id]
		_, inKeyword := keywordHits[id]
		hit.RerankBonus = e.rerankBonus(q, hit.Article, inVector && inKeyword, now)
		hit.Final = w.Vector*hit.VectorScore + w.Keyword*hit.KeywordScore + w.Rerank*hit.RerankBonus
		docs = append(docs, *hit)
	}

	sort.Slice(docs, func(i, j int) bool {
		if docs[i].Final != docs[j].Final {
			return docs[i].Final > docs[j].Final
		}
		ti, tj := docs[i].Article.PublishTime, docs[j].Article.PublishTime
		if !ti.Equal(tj) {
			return ti.After(tj)
		}
		li, lj := len(docs[i].Article.Body), len(docs[j].Article.Body)
		if li != lj {
			return li > lj
		}
		return docs[i].Article.InternalID < docs[j].Article.InternalID
	})

	if len(docs) > topK {
		docs = docs[:topK]
	}
	return docs
}

// rerankBonus combines recency, multi-source agreement, and a title match
// into the bounded rerank component.
func (e *Engine) rerankBonus(q *AnalyzedQuery, a *entity.Article, multiSource bool, now time.Time) float64 {
	bonus := bonusRecencyWeight * recencyScore(a.PublishTime, now)
	if multiSource {
		bonus += bonusMultiSource
	}
	if titleContainsToken(a.Title, q.Keywords) {
		bonus += bonusTitleMatch
	}
	return bonus
}

// recencyScore is 1.0 inside 30 days, 0.5 inside 365, else 0.
func recencyScore(published, now time.Time) float64 {
	if published.IsZero() {
		return 0
	}
	age := now.Sub(published)
	switch {
	case age <= recencyFreshDays*24*time.Hour:
		return 1.0
	case age <= recencyStaleDays*24*time.Hour:
		return 0.5
	}
	return 0
}

func titleContainsToken(title string, tokens []string) bool {
	if title == "" || len(tokens) == 0 {
		return false
	}
	normalized := text.Normalize(title)
	for _, tok := range tokens {
		if strings.Contains(normalized, tok) {
			return true
		}
	}
	return false
}

// buildIndexFilter translates analyzer filters into the ANN payload filter.
// Only fields the datapoint payload carries are pushed down; the rest are
// enforced post-hoc by matchesFilters, so pushdown stays a subset of the
// post-hoc filter.
func buildIndexFilter(f Filters) *vectorindex.Filter {
	var dateConds []vectorindex.Condition
	if f.From != nil {
		dateConds = append(dateConds, vectorindex.Gte(vectorindex.FieldPublished, *f.From))
	}
	if f.To != nil {
		dateConds = append(dateConds, vectorindex.Lte(vectorindex.FieldPublished, *f.To))
	}

	if len(f.Categories) == 0 {
		if len(dateConds) == 0 {
			return nil
		}
		return vectorindex.NewFilter(dateConds...)
	}

	// One clause per category: date range AND category, OR-ed across hints.
	var filter *vectorindex.Filter
	for _, cat := range f.Categories {
		clause := append(append([]vectorindex.Condition{}, dateConds...),
			vectorindex.Contains(vectorindex.FieldCategory, cat))
		if filter == nil {
			filter = vectorindex.NewFilter(clause...)
			continue
		}
		filter.Or(clause...)
	}
	return filter
}

// matchesFilters applies every analyzer filter to a hydrated article. It is
// the authoritative check; index-side pushdown only narrows the candidate
// set early.
func matchesFilters(a *entity.Article, f Filters) bool {
	if a == nil || a.Tombstoned {
		return false
	}
	if f.From != nil && a.PublishTime.Before(*f.From) {
		return false
	}
	if f.To != nil && a.PublishTime.After(*f.To) {
		return false
	}

	if len(f.Categories) > 0 && !anyOverlap(a.CategoryNames(), f.Categories) {
		return false
	}
	if len(f.Writers) > 0 && !anyOverlap(a.Writers, f.Writers) {
		return false
	}
	if f.MinBodyLength > 0 && text.CountRunes(a.Body) < f.MinBodyLength {
		return false
	}
	if f.HasImages && len(a.Images) == 0 {
		return false
	}
	if len(f.StockCodes) > 0 && !anyOverlap(a.StockCodes, f.StockCodes) {
		return false
	}

	if len(f.RequiredKeywords) > 0 {
		haystack := strings.ToLower(a.Title + " " + a.Summary + " " + a.Body)
		for _, kw := range f.RequiredKeywords {
			if !strings.Contains(haystack, strings.ToLower(kw)) {
				return false
			}
		}
	}
	return true
}

// anyOverlap reports whether have contains any of want, comparing after
// trimming. Category names may carry hierarchy suffixes, so membership is
// substring-based in that direction.
func anyOverlap(have, want []string) bool {
	for _, w := range want {
		w = strings.TrimSpace(w)
		if w == "" {
			continue
		}
		for _, h := range have {
			if strings.Contains(h, w) {
				return true
			}
		}
	}
	return false
}
