package ingest

import (
	"context"
	"fmt"
	"time"

	"newswire-search/internal/domain/entity"
	"newswire-search/internal/observability/metrics"
)

// PipelineStats is a point-in-time snapshot of the pipeline, combining
// store counts with processing-log aggregates over a window.
type PipelineStats struct {
	Articles int64
	Sources  int
	Vectors  int64

	Since       time.Time
	ParseCounts map[string]int64
	DedupCounts map[string]int64
	EmbedCounts map[string]int64
}

// Stats reports store counts and per-phase outcome counts since the given
// time. It also refreshes the corresponding gauges.
func (s *Service) Stats(ctx context.Context, since time.Time) (*PipelineStats, error) {
	stats := &PipelineStats{Since: since}

	articles, err := s.articles.CountArticles(ctx)
	if err != nil {
		return nil, fmt.Errorf("Stats: count articles: %w", err)
	}
	stats.Articles = articles
	metrics.ArticlesTotal.Set(float64(articles))

	sources, err := s.sources.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("Stats: list sources: %w", err)
	}
	stats.Sources = len(sources)
	metrics.SourcesTotal.Set(float64(len(sources)))

	vectors, err := s.embeddings.CountVectors(ctx)
	if err != nil {
		return nil, fmt.Errorf("Stats: count vectors: %w", err)
	}
	stats.Vectors = vectors

	if stats.ParseCounts, err = s.logs.CountSince(ctx, entity.PhaseParse, since); err != nil {
		return nil, fmt.Errorf("Stats: count parse log: %w", err)
	}
	if stats.DedupCounts, err = s.logs.CountSince(ctx, entity.PhaseDedup, since); err != nil {
		return nil, fmt.Errorf("Stats: count dedup log: %w", err)
	}
	if stats.EmbedCounts, err = s.logs.CountSince(ctx, entity.PhaseEmbed, since); err != nil {
		return nil, fmt.Errorf("Stats: count embed log: %w", err)
	}

	return stats, nil
}
