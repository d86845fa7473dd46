package repository

import (
	"context"
	"time"

	"newswire-search/internal/domain/entity"
)

type ProcessingLogRepository interface {
	Append(ctx context.Context, e *entity.ProcessingLogEntry) error
	AppendBatch(ctx context.Context, entries []*entity.ProcessingLogEntry) error
	ListByArticle(ctx context.Context, articleID string, limit int) ([]*entity.ProcessingLogEntry, error)
	ListRecent(ctx context.Context, phase entity.Phase, limit int) ([]*entity.ProcessingLogEntry, error)
	// CountSince aggregates entries per status for a phase, for run reports.
	CountSince(ctx context.Context, phase entity.Phase, since time.Time) (map[string]int64, error)
}
