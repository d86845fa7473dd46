package repository

import (
	"context"
	"time"

	"newswire-search/internal/domain/entity"
)

// IndexStateRepository tracks ANN index lifecycle rows. At most one row is
// active at a time.
type IndexStateRepository interface {
	// GetActive returns entity.ErrNoActiveIndex when nothing is active.
	GetActive(ctx context.Context) (*entity.IndexState, error)

	GetByName(ctx context.Context, name string) (*entity.IndexState, error)

	Create(ctx context.Context, state *entity.IndexState) error

	Update(ctx context.Context, state *entity.IndexState) error

	// SetDeployment records the endpoint binding produced by deploy.
	SetDeployment(ctx context.Context, id int64, endpointID, deployedID string) error

	// AddVectors bumps total_vectors by delta and advances last_updated.
	// last_updated never moves backwards.
	AddVectors(ctx context.Context, id int64, delta int64, at time.Time) error

	// SetTotalVectors overwrites the count outright. Reconciliation uses
	// this to correct drift from at-least-once upserts.
	SetTotalVectors(ctx context.Context, id int64, total int64, at time.Time) error
}
