package repository

import (
	"context"
	"time"

	"newswire-search/internal/domain/entity"
)

// ArticleSearchFilters narrows keyword search. Zero values mean "any".
type ArticleSearchFilters struct {
	Category    string
	Writer      string
	MediaCode   string
	ArticleType entity.ArticleType
	From        *time.Time
	To          *time.Time
	Limit       int
}

// ArticleRepository is the persistence port for articles. Implementations
// back it with PostgreSQL in production and SQLite in local mode.
type ArticleRepository interface {
	// Create inserts the article and fills in its InternalID. Returns
	// entity.ErrDuplicate when the external ID is already stored.
	Create(ctx context.Context, article *entity.Article) error

	Update(ctx context.Context, article *entity.Article) error

	// Get returns entity.ErrNotFound when the ID is unknown.
	Get(ctx context.Context, id int64) (*entity.Article, error)

	// GetByExternalID looks an article up by its wire identity.
	GetByExternalID(ctx context.Context, externalID string) (*entity.Article, error)

	// GetByIDs bulk-loads articles by internal ID, excluding tombstoned
	// ones. Unknown IDs are skipped, so the result may be shorter than ids.
	GetByIDs(ctx context.Context, ids []int64) ([]*entity.Article, error)

	// FindByContentHash returns the article carrying the hash, or nil
	// without error when none does. Tombstoned articles are excluded.
	FindByContentHash(ctx context.Context, hash string) (*entity.Article, error)

	// ListRecent returns the newest articles by ingest time, excluding
	// tombstoned ones. Used as the near-duplicate comparison window.
	ListRecent(ctx context.Context, limit int) ([]*entity.Article, error)

	// ListUnembedded returns articles pending embedding: is_embedded is
	// false, no processing error, not tombstoned. Ordered by ingest time
	// so older backlog drains first.
	ListUnembedded(ctx context.Context, limit int) ([]*entity.Article, error)

	// ListEmbedded pages through embedded articles by internal ID for
	// reconciliation. Pass afterID 0 to start from the beginning.
	ListEmbedded(ctx context.Context, afterID int64, limit int) ([]*entity.Article, error)

	// ListDuplicateContentHashes returns all non-tombstoned articles whose
	// content hash is shared by at least one other article.
	ListDuplicateContentHashes(ctx context.Context) ([]*entity.Article, error)

	// SearchKeyword matches every token against title, summary, and
	// indexing text (AND semantics) with optional filters.
	SearchKeyword(ctx context.Context, tokens []string, filters ArticleSearchFilters) ([]*entity.Article, error)

	CountArticles(ctx context.Context) (int64, error)

	// MarkEmbedded flips is_embedded, records the model and timestamp, and
	// clears any processing error, all in one statement.
	MarkEmbedded(ctx context.Context, ids []int64, model string, at time.Time) error

	// SetProcessingError records why embedding failed. The article drops
	// out of ListUnembedded until the error is cleared with an empty
	// message.
	SetProcessingError(ctx context.Context, ids []int64, message string) error

	// Tombstone logically deletes articles. Their vectors are removed from
	// the ANN index by the caller.
	Tombstone(ctx context.Context, ids []int64) error
}
