package ingest

import (
	"context"

	"newswire-search/internal/dedup"
	"newswire-search/internal/domain/entity"
	"newswire-search/internal/repository"
)

// storeCandidates adapts the article repository to the detector's candidate
// source. The repository already excludes tombstoned articles on both paths.
type storeCandidates struct {
	articles repository.ArticleRepository
}

func (c *storeCandidates) FindByContentHash(ctx context.Context, hash string) (*dedup.Candidate, error) {
	a, err := c.articles.FindByContentHash(ctx, hash)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, nil
	}
	cand := toCandidate(a)
	return &cand, nil
}

func (c *storeCandidates) RecentCandidates(ctx context.Context, limit int) ([]dedup.Candidate, error) {
	articles, err := c.articles.ListRecent(ctx, limit)
	if err != nil {
		return nil, err
	}
	candidates := make([]dedup.Candidate, 0, len(articles))
	for _, a := range articles {
		candidates = append(candidates, toCandidate(a))
	}
	return candidates, nil
}

func toCandidate(a *entity.Article) dedup.Candidate {
	return dedup.Candidate{
		ArticleID:   a.InternalID,
		ExternalID:  a.ExternalID,
		Title:       a.Title,
		Summary:     a.Summary,
		Body:        a.Body,
		ContentHash: a.ContentHash,
		IngestedAt:  a.IngestedAt,
	}
}
