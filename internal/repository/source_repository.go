package repository

import (
	"context"
	"time"

	"newswire-search/internal/domain/entity"
)

type SourceRepository interface {
	Get(ctx context.Context, id int64) (*entity.Source, error)
	List(ctx context.Context) ([]*entity.Source, error)
	ListActive(ctx context.Context) ([]*entity.Source, error)
	Create(ctx context.Context, source *entity.Source) error
	Update(ctx context.Context, source *entity.Source) error
	Delete(ctx context.Context, id int64) error
	// AdvanceWatermark moves last_crawled_at forward. Moving it backwards
	// is ignored so re-runs never re-ingest the whole archive.
	AdvanceWatermark(ctx context.Context, id int64, t time.Time) error
}
