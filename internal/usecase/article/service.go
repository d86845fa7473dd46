package article

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"newswire-search/internal/domain/entity"
	"newswire-search/internal/repository"
	"newswire-search/internal/usecase/indexing"
	"newswire-search/internal/utils/text"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

// IndexTombstoner removes article vectors from the ANN index. Satisfied by
// the indexing service.
type IndexTombstoner interface {
	Tombstone(ctx context.Context, articleIDs []int64) (*indexing.TombstoneResult, error)
}

// Service provides article read and admin use cases. It handles lookups and
// keyword search for API clients and logical deletion for operators,
// delegating persistence to the repository.
type Service struct {
	Repo  repository.ArticleRepository
	Index IndexTombstoner // optional; nil skips index cleanup on delete
}

// Get retrieves a single article by its internal ID.
// Returns ErrInvalidArticleID if the ID is not positive.
// Returns ErrArticleNotFound if the article does not exist.
func (s *Service) Get(ctx context.Context, id int64) (*entity.Article, error) {
	if id <= 0 {
		return nil, ErrInvalidArticleID
	}

	art, err := s.Repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, entity.ErrNotFound) {
			return nil, ErrArticleNotFound
		}
		return nil, fmt.Errorf("get article: %w", err)
	}
	if art == nil || art.Tombstoned {
		return nil, ErrArticleNotFound
	}
	return art, nil
}

// GetByExternalID retrieves a single article by its newswire identity.
// Returns ErrArticleNotFound if no article carries the ID.
func (s *Service) GetByExternalID(ctx context.Context, externalID string) (*entity.Article, error) {
	if externalID == "" {
		return nil, ErrInvalidArticleID
	}

	art, err := s.Repo.GetByExternalID(ctx, externalID)
	if err != nil {
		if errors.Is(err, entity.ErrNotFound) {
			return nil, ErrArticleNotFound
		}
		return nil, fmt.Errorf("get article by external id: %w", err)
	}
	if art == nil || art.Tombstoned {
		return nil, ErrArticleNotFound
	}
	return art, nil
}

// ListRecent returns the newest articles by ingest time. A non-positive
// limit takes the default; oversized limits are clamped.
func (s *Service) ListRecent(ctx context.Context, limit int) ([]*entity.Article, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	articles, err := s.Repo.ListRecent(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("list recent articles: %w", err)
	}
	return articles, nil
}

// Search finds articles matching the query text. The query is tokenized and
// every token must match (AND semantics), with optional filters applied.
func (s *Service) Search(ctx context.Context, query string, filters repository.ArticleSearchFilters) ([]*entity.Article, error) {
	tokens := text.ContentTokens(query)
	if len(tokens) == 0 {
		return nil, nil
	}
	if filters.Limit <= 0 {
		filters.Limit = defaultListLimit
	}
	if filters.Limit > maxListLimit {
		filters.Limit = maxListLimit
	}

	articles, err := s.Repo.SearchKeyword(ctx, tokens, filters)
	if err != nil {
		return nil, fmt.Errorf("search articles: %w", err)
	}
	return articles, nil
}

// Count returns the number of non-tombstoned articles in the store.
func (s *Service) Count(ctx context.Context) (int64, error) {
	n, err := s.Repo.CountArticles(ctx)
	if err != nil {
		return 0, fmt.Errorf("count articles: %w", err)
	}
	return n, nil
}

// Delete logically removes an article: the store row is tombstoned and its
// vectors are removed from the ANN index. The row itself is kept for audit.
// Returns ErrInvalidArticleID if the ID is not positive.
// Returns ErrArticleNotFound if the article does not exist.
func (s *Service) Delete(ctx context.Context, id int64) error {
	if id <= 0 {
		return ErrInvalidArticleID
	}

	art, err := s.Repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, entity.ErrNotFound) {
			return ErrArticleNotFound
		}
		return fmt.Errorf("get article: %w", err)
	}
	if art == nil {
		return ErrArticleNotFound
	}

	if err := s.Repo.Tombstone(ctx, []int64{id}); err != nil {
		return fmt.Errorf("tombstone article: %w", err)
	}

	if s.Index != nil {
		if _, err := s.Index.Tombstone(ctx, []int64{id}); err != nil {
			// The store row is already tombstoned; reconciliation sweeps
			// the orphaned vectors later.
			slog.Warn("failed to tombstone article vectors",
				slog.Int64("article_id", id),
				slog.Any("error", err))
		}
	}

	slog.Info("article deleted",
		slog.Int64("article_id", id),
		slog.String("external_id", art.ExternalID))
	return nil
}
