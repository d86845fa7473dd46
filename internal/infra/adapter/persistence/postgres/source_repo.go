package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"newswire-search/internal/domain/entity"
	"newswire-search/internal/repository"
)

type SourceRepo struct{ db *sql.DB }

func NewSourceRepo(db *sql.DB) repository.SourceRepository {
	return &SourceRepo{db: db}
}

// scanSource is a helper function to scan a source row including feed_config
func scanSource(rows *sql.Rows) (*entity.Source, error) {
	var source entity.Source
	var feedConfigJSON []byte
	if err := rows.Scan(
		&source.ID, &source.Name, &source.SourceType, &feedConfigJSON,
		&source.LastCrawledAt, &source.Active,
	); err != nil {
		return nil, err
	}

	// Unmarshal feed_config if present
	if len(feedConfigJSON) > 0 {
		var config entity.SourceConfig
		if err := json.Unmarshal(feedConfigJSON, &config); err != nil {
			return nil, fmt.Errorf("unmarshal feed_config: %w", err)
		}
		source.FeedConfig = &config
	}

	return &source, nil
}

func (repo *SourceRepo) Get(ctx context.Context, id int64) (*entity.Source, error) {
	const query = `
SELECT id, name, source_type, feed_config, last_crawled_at, active
FROM sources
WHERE id = $1
LIMIT 1`
	var source entity.Source
	var feedConfigJSON []byte
	err := repo.db.QueryRowContext(ctx, query, id).Scan(
		&source.ID, &source.Name, &source.SourceType, &feedConfigJSON,
		&source.LastCrawledAt, &source.Active,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, entity.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("Get: %w", err)
	}

	// Unmarshal feed_config if present
	if len(feedConfigJSON) > 0 {
		var config entity.SourceConfig
		if err := json.Unmarshal(feedConfigJSON, &config); err != nil {
			return nil, fmt.Errorf("Get: unmarshal feed_config: %w", err)
		}
		source.FeedConfig = &config
	}

	return &source, nil
}

func (repo *SourceRepo) List(ctx context.Context) ([]*entity.Source, error) {
	const query = `
SELECT id, name, source_type, feed_config, last_crawled_at, active
FROM sources
ORDER BY id ASC`
	rows, err := repo.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("List: %w", err)
	}
	defer func() { _ = rows.Close() }()

	// 성능 최적화: 메모리 재할당을 줄이기 위한 사전 할당
	sources := make([]*entity.Source, 0, 50)
	for rows.Next() {
		source, err := scanSource(rows)
		if err != nil {
			return nil, fmt.Errorf("List: %w", err)
		}
		sources = append(sources, source)
	}
	return sources, rows.Err()
}

func (repo *SourceRepo) ListActive(ctx context.Context) ([]*entity.Source, error) {
	const query = `
SELECT id, name, source_type, feed_config, last_crawled_at, active
FROM sources
WHERE active = TRUE
ORDER BY id ASC`
	rows, err := repo.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("ListActive: %w", err)
	}
	defer func() { _ = rows.Close() }()

	// 성능 최적화: 메모리 재할당을 줄이기 위한 사전 할당
	activeSources := make([]*entity.Source, 0, 50)
	for rows.Next() {
		source, err := scanSource(rows)
		if err != nil {
			return nil, fmt.Errorf("ListActive: %w", err)
		}
		activeSources = append(activeSources, source)
	}
	return activeSources, rows.Err()
}

func (repo *SourceRepo) Create(ctx context.Context, source *entity.Source) error {
	// Default to Directory if source_type is empty
	if source.SourceType == "" {
		source.SourceType = "Directory"
	}

	// Marshal feed_config to JSON if present
	var feedConfigJSON []byte
	if source.FeedConfig != nil {
		var err error
		feedConfigJSON, err = json.Marshal(source.FeedConfig)
		if err != nil {
			return fmt.Errorf("Create: marshal feed_config: %w", err)
		}
	}

	const query = `
INSERT INTO sources (name, source_type, feed_config, last_crawled_at, active)
VALUES ($1, $2, $3, $4, $5)
RETURNING id`
	err := repo.db.QueryRowContext(ctx, query,
		source.Name, source.SourceType, feedConfigJSON,
		source.LastCrawledAt, source.Active,
	).Scan(&source.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("Create: %w", entity.ErrDuplicate)
		}
		return fmt.Errorf("Create: %w", err)
	}
	return nil
}

func (repo *SourceRepo) Update(ctx context.Context, source *entity.Source) error {
	// Default to Directory if source_type is empty
	if source.SourceType == "" {
		source.SourceType = "Directory"
	}

	// Marshal feed_config to JSON if present
	var feedConfigJSON []byte
	if source.FeedConfig != nil {
		var err error
		feedConfigJSON, err = json.Marshal(source.FeedConfig)
		if err != nil {
			return fmt.Errorf("Update: marshal feed_config: %w", err)
		}
	}

	const query = `
UPDATE sources SET
       name            = $1,
       source_type     = $2,
       feed_config     = $3,
       last_crawled_at = $4,
       active          = $5
WHERE id = $6`
	res, err := repo.db.ExecContext(ctx, query,
		source.Name, source.SourceType, feedConfigJSON,
		source.LastCrawledAt, source.Active, source.ID,
	)
	if err != nil {
		return fmt.Errorf("Update: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("Update: no rows affected")
	}
	return nil
}

func (repo *SourceRepo) Delete(ctx context.Context, id int64) error {
	const query = `DELETE FROM sources WHERE id = $1`
	res, err := repo.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("Delete: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("Delete: no rows affected")
	}
	return nil
}

func (repo *SourceRepo) AdvanceWatermark(ctx context.Context, id int64, t time.Time) error {
	// 워터마크는 앞으로만 이동한다. 뒤로 가는 갱신은 조용히 무시.
	const query = `
UPDATE sources SET last_crawled_at = $1
WHERE id = $2
  AND (last_crawled_at IS NULL OR last_crawled_at < $1)`
	if _, err := repo.db.ExecContext(ctx, query, t, id); err != nil {
		return fmt.Errorf("AdvanceWatermark: %w", err)
	}
	return nil
}
