package query

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"newswire-search/internal/domain/entity"
	"newswire-search/internal/infra/llm"
	"newswire-search/internal/observability/metrics"
	"newswire-search/internal/repository"
)

const (
	defaultTopK = 10
	maxTopK     = 50
)

// Request is one query-API call. Zero values take defaults: TopK 10,
// engine weights, the analyzer's own filters, and the standard context
// budget. Caller filters are merged over the analyzer's.
type Request struct {
	Query            string
	TopK             int
	Weights          *Weights
	Filters          *Filters
	MaxContextLength int
}

// RetrievedDoc is one hit as surfaced to API clients.
type RetrievedDoc struct {
	ArticleID    int64     `json:"article_id"`
	ExternalID   string    `json:"external_id"`
	Title        string    `json:"title"`
	SourceURL    string    `json:"source_url,omitempty"`
	PublishedAt  time.Time `json:"published_at"`
	ArticleType  string    `json:"article_type,omitempty"`
	VectorScore  float64   `json:"vector_score"`
	KeywordScore float64   `json:"keyword_score"`
	RerankBonus  float64   `json:"rerank_bonus"`
	FinalScore   float64   `json:"final_score"`
}

// Response is the full query-API answer.
type Response struct {
	Answer        *llm.Answer    `json:"response"`
	Degraded      bool           `json:"degraded"`
	Mode          string         `json:"mode"`
	Intent        Intent         `json:"intent"`
	Complexity    Complexity     `json:"complexity"`
	RetrievedDocs []RetrievedDoc `json:"retrieved_docs"`
	ContextLength int            `json:"context_length"`
	ProcessingMS  int64          `json:"processing_time_ms"`
}

// Service is the query-side facade: analyze, retrieve, build context,
// generate. A generation failure never fails the query; the template
// fallback answers instead. Construct with NewService.
type Service struct {
	analyzer  *Analyzer
	engine    *Engine
	generator llm.Generator
	fallback  *llm.Fallback
	logs      repository.ProcessingLogRepository

	contextBudget int
}

// ServiceOption configures the Service.
type ServiceOption func(*Service)

// WithContextBudget replaces the default context byte budget.
func WithContextBudget(n int) ServiceOption {
	return func(s *Service) {
		if n > 0 {
			s.contextBudget = n
		}
	}
}

// WithProcessingLog enables query audit logging. The log is advisory;
// append failures never fail a query.
func WithProcessingLog(logs repository.ProcessingLogRepository) ServiceOption {
	return func(s *Service) {
		s.logs = logs
	}
}

// NewService creates the query service. generator may be nil, in which case
// every answer comes from the template fallback.
func NewService(analyzer *Analyzer, engine *Engine, generator llm.Generator, opts ...ServiceOption) *Service {
	s := &Service{
		analyzer:      analyzer,
		engine:        engine,
		generator:     generator,
		fallback:      llm.NewFallback(),
		contextBudget: DefaultContextBudget,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Query answers one natural-language query end to end.
//
// Parameters:
//   - ctx: context for cancellation and deadlines
//   - req: the query plus optional overrides
//
// Returns:
//   - *Response: the answer, ranked hits, and timing
//   - error: ErrEmptyQuery for blank input, ErrNoBackend when both
//     retrieval backends failed, context errors on cancellation
func (s *Service) Query(ctx context.Context, req Request) (*Response, error) {
	started := time.Now()

	analyzeStart := time.Now()
	analyzed, err := s.analyzer.Analyze(req.Query)
	if err != nil {
		return nil, err
	}
	metrics.QueryStageDuration.WithLabelValues("analyze").Observe(time.Since(analyzeStart).Seconds())

	if req.Filters != nil {
		analyzed.Filters = mergeFilters(analyzed.Filters, *req.Filters)
	}
	topK := req.TopK
	if topK <= 0 {
		topK = defaultTopK
	}
	if topK > maxTopK {
		topK = maxTopK
	}

	retrieveStart := time.Now()
	retrieval, err := s.engine.Retrieve(ctx, analyzed, topK, req.Weights)
	retrieveTook := time.Since(retrieveStart)
	metrics.QueryStageDuration.WithLabelValues("retrieve").Observe(retrieveTook.Seconds())
	if err != nil {
		s.appendLog(ctx, entity.LogStatusError, err.Error(), time.Since(started))
		return nil, err
	}

	contextText, refs := BuildContext(retrieval.Docs, s.effectiveBudget(req.MaxContextLength))

	answerStart := time.Now()
	answer := s.generate(ctx, analyzed.Raw, contextText, refs)
	metrics.QueryStageDuration.WithLabelValues("answer").Observe(time.Since(answerStart).Seconds())

	resp := &Response{
		Answer:        answer,
		Degraded:      retrieval.Degraded,
		Mode:          retrieval.Mode,
		Intent:        analyzed.Intent,
		Complexity:    analyzed.Complexity,
		RetrievedDocs: toRetrievedDocs(retrieval.Docs),
		ContextLength: len(contextText),
		ProcessingMS:  time.Since(started).Milliseconds(),
	}

	s.appendLog(ctx, entity.LogStatusOK,
		fmt.Sprintf("mode=%s docs=%d source=%s", resp.Mode, len(resp.RetrievedDocs), answer.Source),
		time.Since(started))

	slog.Info("query answered",
		slog.String("intent", string(analyzed.Intent)),
		slog.String("mode", resp.Mode),
		slog.Bool("degraded", resp.Degraded),
		slog.Int("docs", len(resp.RetrievedDocs)),
		slog.String("answer_source", answer.Source),
		slog.Int64("processing_ms", resp.ProcessingMS))
	return resp, nil
}

// generate asks the configured generator and falls back to the template
// answer on any failure. The fallback itself cannot fail.
func (s *Service) generate(ctx context.Context, query, contextText string, refs []llm.Reference) *llm.Answer {
	if s.generator != nil {
		answer, err := s.generator.GenerateAnswer(ctx, query, contextText, refs)
		if err == nil {
			return answer
		}
		slog.Warn("answer generation failed, using template fallback",
			slog.String("model", s.generator.ModelID()),
			slog.Any("error", err))
	}
	answer, _ := s.fallback.GenerateAnswer(ctx, query, contextText, refs)
	return answer
}

func (s *Service) effectiveBudget(requested int) int {
	if requested > 0 && requested < s.contextBudget {
		return requested
	}
	return s.contextBudget
}

// mergeFilters lays caller overrides over the analyzer's extraction.
// Set caller fields win; unset ones keep what the analyzer found.
func mergeFilters(base, override Filters) Filters {
	if override.From != nil {
		base.From = override.From
	}
	if override.To != nil {
		base.To = override.To
	}
	if len(override.Categories) > 0 {
		base.Categories = override.Categories
	}
	if len(override.Writers) > 0 {
		base.Writers = override.Writers
	}
	if override.MinBodyLength > 0 {
		base.MinBodyLength = override.MinBodyLength
	}
	if override.HasImages {
		base.HasImages = true
	}
	if len(override.RequiredKeywords) > 0 {
		base.RequiredKeywords = override.RequiredKeywords
	}
	if len(override.StockCodes) > 0 {
		base.StockCodes = override.StockCodes
	}
	return base
}

func toRetrievedDocs(docs []ScoredArticle) []RetrievedDoc {
	out := make([]RetrievedDoc, 0, len(docs))
	for _, d := range docs {
		out = append(out, RetrievedDoc{
			ArticleID:    d.Article.InternalID,
			ExternalID:   d.Article.ExternalID,
			Title:        d.Article.Title,
			SourceURL:    d.Article.SourceURL,
			PublishedAt:  d.Article.PublishTime,
			ArticleType:  string(d.Article.ArticleType),
			VectorScore:  d.VectorScore,
			KeywordScore: d.KeywordScore,
			RerankBonus:  d.RerankBonus,
			FinalScore:   d.Final,
		})
	}
	return out
}

func (s *Service) appendLog(ctx context.Context, status, message string, took time.Duration) {
	if s.logs == nil {
		return
	}
	entry := &entity.ProcessingLogEntry{
		Phase:      entity.PhaseQuery,
		Status:     status,
		Message:    message,
		DurationMS: took.Milliseconds(),
	}
	if err := s.logs.Append(ctx, entry); err != nil {
		slog.Warn("failed to append query log", slog.Any("error", err))
	}
}
