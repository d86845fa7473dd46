package repository

import (
	"context"

	"newswire-search/internal/domain/entity"
)

// EmbeddingRepository persists dense vectors in the primary record store.
// The ANN index is a separate concern; this is the durable copy vectors are
// reconciled from.
type EmbeddingRepository interface {
	// UpsertBatch writes the batch atomically. (article_id, chunk_index)
	// is the unique key; on conflict the vector, hashes, model, and
	// updated_at are replaced.
	UpsertBatch(ctx context.Context, records []*entity.EmbeddingRecord) error

	// FindByArticleID returns the article's vectors ordered by chunk
	// index. Empty slice when the article has none.
	FindByArticleID(ctx context.Context, articleID int64) ([]*entity.EmbeddingRecord, error)

	// FindByArticleIDs bulk-fetches vectors for reconciliation.
	FindByArticleIDs(ctx context.Context, articleIDs []int64) ([]*entity.EmbeddingRecord, error)

	// DeleteByArticleID removes all vectors for an article and returns how
	// many rows went away. Zero rows is not an error.
	DeleteByArticleID(ctx context.Context, articleID int64) (int64, error)

	CountVectors(ctx context.Context) (int64, error)
}
