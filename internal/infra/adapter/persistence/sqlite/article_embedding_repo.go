package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"newswire-search/internal/domain/entity"
	"newswire-search/internal/repository"
)

// embeddingColumns is the scan list shared by every SELECT. The order must
// match scanEmbedding.
const embeddingColumns = `id, article_id, external_id, chunk_index,
       provider, model, dimension, text_hash, metadata_hash, embedding,
       created_at, updated_at`

// EmbeddingRepo implements the EmbeddingRepository interface for SQLite.
// Vectors are stored as JSON text; the local ANN index decodes them when it
// rebuilds its graph from the durable copies.
type EmbeddingRepo struct {
	db *sql.DB
}

// NewEmbeddingRepo creates a new SQLite-backed EmbeddingRepository.
func NewEmbeddingRepo(db *sql.DB) repository.EmbeddingRepository {
	return &EmbeddingRepo{
		db: db,
	}
}

func scanEmbedding(rows *sql.Rows) (*entity.EmbeddingRecord, error) {
	record := &entity.EmbeddingRecord{}
	var provider string
	var vector []byte

	if err := rows.Scan(
		&record.ID,
		&record.ArticleID,
		&record.ExternalID,
		&record.ChunkIndex,
		&provider,
		&record.ModelID,
		&record.Dimension,
		&record.TextHash,
		&record.MetadataHash,
		&vector,
		&record.CreatedAt,
		&record.UpdatedAt,
	); err != nil {
		return nil, err
	}

	record.Provider = entity.EmbeddingProvider(provider)
	if err := json.Unmarshal(vector, &record.Vector); err != nil {
		return nil, fmt.Errorf("unmarshal embedding: %w", err)
	}
	return record, nil
}

// UpsertBatch writes the batch in one transaction. (article_id, chunk_index)
// is the conflict key; on conflict the vector, hashes, model, and updated_at
// are replaced, so re-running an embed batch is safe. Row IDs are not read
// back; callers address vectors by (article_id, chunk_index).
func (repo *EmbeddingRepo) UpsertBatch(ctx context.Context, records []*entity.EmbeddingRecord) error {
	if len(records) == 0 {
		return nil
	}

	// Validate every record before touching the database
	for _, record := range records {
		if record == nil {
			return fmt.Errorf("UpsertBatch: record is nil")
		}
		if err := record.Validate(); err != nil {
			return fmt.Errorf("UpsertBatch: %w", err)
		}
	}

	tx, err := repo.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("UpsertBatch: BeginTx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	const query = `
INSERT INTO article_embeddings
       (article_id, external_id, chunk_index, provider, model, dimension,
        text_hash, metadata_hash, embedding, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (article_id, chunk_index)
DO UPDATE SET
	external_id   = excluded.external_id,
	provider      = excluded.provider,
	model         = excluded.model,
	dimension     = excluded.dimension,
	text_hash     = excluded.text_hash,
	metadata_hash = excluded.metadata_hash,
	embedding     = excluded.embedding,
	updated_at    = excluded.updated_at`

	now := time.Now().UTC()
	for _, record := range records {
		vector, err := json.Marshal(record.Vector)
		if err != nil {
			return fmt.Errorf("UpsertBatch: marshal embedding: %w", err)
		}
		_, err = tx.ExecContext(ctx, query,
			record.ArticleID,
			record.ExternalID,
			record.ChunkIndex,
			string(record.Provider),
			record.ModelID,
			record.Dimension,
			record.TextHash,
			record.MetadataHash,
			vector,
			now,
			now,
		)
		if err != nil {
			return fmt.Errorf("UpsertBatch: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("UpsertBatch: Commit: %w", err)
	}
	return nil
}

// FindByArticleID retrieves all vectors for a given article ID, ordered by
// chunk index. Returns an empty slice if the article has none.
func (repo *EmbeddingRepo) FindByArticleID(ctx context.Context, articleID int64) ([]*entity.EmbeddingRecord, error) {
	const query = `
SELECT ` + embeddingColumns + `
FROM article_embeddings
WHERE article_id = ?
ORDER BY chunk_index ASC`

	rows, err := repo.db.QueryContext(ctx, query, articleID)
	if err != nil {
		return nil, fmt.Errorf("FindByArticleID: %w", err)
	}
	defer func() { _ = rows.Close() }()

	records := make([]*entity.EmbeddingRecord, 0)
	for rows.Next() {
		record, err := scanEmbedding(rows)
		if err != nil {
			return nil, fmt.Errorf("FindByArticleID: Scan: %w", err)
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

// FindByArticleIDs bulk-fetches vectors for reconciliation. The IDs are
// sorted before chunking so results stay globally ordered by article_id even
// when the set spans more than one statement.
func (repo *EmbeddingRepo) FindByArticleIDs(ctx context.Context, articleIDs []int64) ([]*entity.EmbeddingRecord, error) {
	if len(articleIDs) == 0 {
		return []*entity.EmbeddingRecord{}, nil
	}

	sorted := make([]int64, len(articleIDs))
	copy(sorted, articleIDs)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	const query = `
SELECT ` + embeddingColumns + `
FROM article_embeddings
WHERE article_id IN (%s)
ORDER BY article_id ASC, chunk_index ASC`

	// 성능 최적화: 메모리 재할당을 줄이기 위한 사전 할당
	records := make([]*entity.EmbeddingRecord, 0, len(articleIDs))
	for _, chunk := range chunkIDs(sorted, maxHostParams) {
		args := make([]interface{}, 0, len(chunk))
		for _, id := range chunk {
			args = append(args, id)
		}
		stmt := fmt.Sprintf(query, placeholders(len(chunk)))

		rows, err := repo.db.QueryContext(ctx, stmt, args...)
		if err != nil {
			return nil, fmt.Errorf("FindByArticleIDs: %w", err)
		}
		for rows.Next() {
			record, err := scanEmbedding(rows)
			if err != nil {
				_ = rows.Close()
				return nil, fmt.Errorf("FindByArticleIDs: Scan: %w", err)
			}
			records = append(records, record)
		}
		if err := rows.Err(); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("FindByArticleIDs: %w", err)
		}
		_ = rows.Close()
	}
	return records, nil
}

// DeleteByArticleID removes all vectors associated with an article.
// Returns the number of deleted rows; zero is not an error.
func (repo *EmbeddingRepo) DeleteByArticleID(ctx context.Context, articleID int64) (int64, error) {
	const query = `DELETE FROM article_embeddings WHERE article_id = ?`

	result, err := repo.db.ExecContext(ctx, query, articleID)
	if err != nil {
		return 0, fmt.Errorf("DeleteByArticleID: %w", err)
	}

	count, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("DeleteByArticleID: RowsAffected: %w", err)
	}

	return count, nil
}

// CountVectors returns the total number of stored vectors.
func (repo *EmbeddingRepo) CountVectors(ctx context.Context) (int64, error) {
	const query = `SELECT COUNT(*) FROM article_embeddings`
	var count int64
	if err := repo.db.QueryRowContext(ctx, query).Scan(&count); err != nil {
		return 0, fmt.Errorf("CountVectors: %w", err)
	}
	return count, nil
}
