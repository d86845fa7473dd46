package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"newswire-search/internal/domain/entity"
	"newswire-search/internal/repository"
)

const indexStateColumns = `id, name, provider_index_id, endpoint_id, deployed_id,
       dimensions, distance, total_vectors, active, last_updated, created_at`

// IndexStateRepo implements the IndexStateRepository interface for
// PostgreSQL. The partial unique index on (active) WHERE active enforces the
// single-active invariant at the storage level.
type IndexStateRepo struct{ db *sql.DB }

func NewIndexStateRepo(db *sql.DB) repository.IndexStateRepository {
	return &IndexStateRepo{db: db}
}

func scanIndexState(row rowScanner) (*entity.IndexState, error) {
	var state entity.IndexState
	var distance string
	if err := row.Scan(
		&state.ID, &state.Name, &state.ProviderIndexID, &state.EndpointID, &state.DeployedID,
		&state.Dimensions, &distance, &state.TotalVectors, &state.Active,
		&state.LastUpdated, &state.CreatedAt,
	); err != nil {
		return nil, err
	}
	state.Distance = entity.Distance(distance)
	return &state, nil
}

func (repo *IndexStateRepo) GetActive(ctx context.Context) (*entity.IndexState, error) {
	const query = `
SELECT ` + indexStateColumns + `
FROM index_states
WHERE active
LIMIT 1`
	state, err := scanIndexState(repo.db.QueryRowContext(ctx, query))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, entity.ErrNoActiveIndex
	}
	if err != nil {
		return nil, fmt.Errorf("GetActive: %w", err)
	}
	return state, nil
}

func (repo *IndexStateRepo) GetByName(ctx context.Context, name string) (*entity.IndexState, error) {
	const query = `
SELECT ` + indexStateColumns + `
FROM index_states
WHERE name = $1
LIMIT 1`
	state, err := scanIndexState(repo.db.QueryRowContext(ctx, query, name))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, entity.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("GetByName: %w", err)
	}
	return state, nil
}

func (repo *IndexStateRepo) Create(ctx context.Context, state *entity.IndexState) error {
	if err := state.Validate(); err != nil {
		return fmt.Errorf("Create: %w", err)
	}

	const query = `
INSERT INTO index_states
       (name, provider_index_id, endpoint_id, deployed_id, dimensions, distance, total_vectors, active)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
RETURNING id, last_updated, created_at`
	err := repo.db.QueryRowContext(ctx, query,
		state.Name, state.ProviderIndexID, state.EndpointID, state.DeployedID,
		state.Dimensions, string(state.Distance), state.TotalVectors, state.Active,
	).Scan(&state.ID, &state.LastUpdated, &state.CreatedAt)
	if err != nil {
		// 이름 중복 또는 활성 인덱스 중복 모두 여기서 걸린다
		if isUniqueViolation(err) {
			return fmt.Errorf("Create: %w", entity.ErrDuplicate)
		}
		return fmt.Errorf("Create: %w", err)
	}
	return nil
}

func (repo *IndexStateRepo) Update(ctx context.Context, state *entity.IndexState) error {
	const query = `
UPDATE index_states SET
       provider_index_id = $1,
       endpoint_id       = $2,
       deployed_id       = $3,
       dimensions        = $4,
       distance          = $5,
       total_vectors     = $6,
       active            = $7,
       last_updated      = $8
WHERE id = $9`
	res, err := repo.db.ExecContext(ctx, query,
		state.ProviderIndexID, state.EndpointID, state.DeployedID,
		state.Dimensions, string(state.Distance), state.TotalVectors,
		state.Active, state.LastUpdated, state.ID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("Update: %w", entity.ErrDuplicate)
		}
		return fmt.Errorf("Update: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("Update: no rows affected")
	}
	return nil
}

func (repo *IndexStateRepo) SetDeployment(ctx context.Context, id int64, endpointID, deployedID string) error {
	const query = `
UPDATE index_states SET
       endpoint_id = $1,
       deployed_id = $2
WHERE id = $3`
	res, err := repo.db.ExecContext(ctx, query, endpointID, deployedID, id)
	if err != nil {
		return fmt.Errorf("SetDeployment: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("SetDeployment: no rows affected")
	}
	return nil
}

func (repo *IndexStateRepo) AddVectors(ctx context.Context, id int64, delta int64, at time.Time) error {
	// GREATEST keeps last_updated from moving backwards when batches land
	// out of order.
	const query = `
UPDATE index_states SET
       total_vectors = total_vectors + $1,
       last_updated  = GREATEST(last_updated, $2)
WHERE id = $3`
	res, err := repo.db.ExecContext(ctx, query, delta, at, id)
	if err != nil {
		return fmt.Errorf("AddVectors: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("AddVectors: no rows affected")
	}
	return nil
}

func (repo *IndexStateRepo) SetTotalVectors(ctx context.Context, id int64, total int64, at time.Time) error {
	const query = `
UPDATE index_states SET
       total_vectors = $1,
       last_updated  = GREATEST(last_updated, $2)
WHERE id = $3`
	res, err := repo.db.ExecContext(ctx, query, total, at, id)
	if err != nil {
		return fmt.Errorf("SetTotalVectors: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("SetTotalVectors: no rows affected")
	}
	return nil
}
