package repository

import (
	"context"

	"newswire-search/internal/domain/entity"
)

// MetadataFilters selects metadata rows for the structured retrieval
// backend. Empty slices and zero values mean "any".
type MetadataFilters struct {
	Categories  []string
	Keywords    []string
	Entities    []string
	StockCodes  []string
	ArticleType entity.ArticleType
	Year        int
	Month       int
	Day         int
	Limit       int
}

// MetadataRepository persists the derived per-article metadata record.
type MetadataRepository interface {
	// Upsert replaces the record keyed by article_id.
	Upsert(ctx context.Context, record *entity.MetadataRecord) error

	GetByArticleID(ctx context.Context, articleID int64) (*entity.MetadataRecord, error)

	// Search returns records matching the filters, most important first.
	Search(ctx context.Context, filters MetadataFilters) ([]*entity.MetadataRecord, error)
}
