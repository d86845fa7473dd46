package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"newswire-search/internal/domain/entity"
	"newswire-search/internal/repository"

	"github.com/lib/pq"
)

const metadataColumns = `article_id, external_id,
       title_length, body_length, summary_length, total_length, word_count, has_summary,
       entities, categories, keywords, stock_codes,
       year, month, day, hour, weekday,
       article_type, importance_score, indexing_text, metadata_hash`

// MetadataRepo implements the MetadataRepository interface for PostgreSQL.
// It backs the structured retrieval path: GIN indexes over the JSONB columns
// make the containment filters cheap.
type MetadataRepo struct{ db *sql.DB }

func NewMetadataRepo(db *sql.DB) repository.MetadataRepository {
	return &MetadataRepo{db: db}
}

func scanMetadata(row rowScanner) (*entity.MetadataRecord, error) {
	var (
		record     entity.MetadataRecord
		entities   []byte
		categories []byte
		keywords   []byte
		stockCodes []byte
	)

	if err := row.Scan(
		&record.ArticleID, &record.ExternalID,
		&record.TitleLength, &record.BodyLength, &record.SummaryLength,
		&record.TotalLength, &record.WordCount, &record.HasSummary,
		&entities, &categories, &keywords, &stockCodes,
		&record.Year, &record.Month, &record.Day, &record.Hour, &record.Weekday,
		&record.ArticleType, &record.ImportanceScore, &record.IndexingText, &record.MetadataHash,
	); err != nil {
		return nil, err
	}

	if err := unmarshalJSONB(entities, &record.Entities); err != nil {
		return nil, fmt.Errorf("unmarshal entities: %w", err)
	}
	if err := unmarshalJSONB(categories, &record.Categories); err != nil {
		return nil, fmt.Errorf("unmarshal categories: %w", err)
	}
	if err := unmarshalJSONB(keywords, &record.Keywords); err != nil {
		return nil, fmt.Errorf("unmarshal keywords: %w", err)
	}
	if err := unmarshalJSONB(stockCodes, &record.StockCodes); err != nil {
		return nil, fmt.Errorf("unmarshal stock_codes: %w", err)
	}

	return &record, nil
}

// Upsert replaces the record keyed by article_id.
func (repo *MetadataRepo) Upsert(ctx context.Context, record *entity.MetadataRecord) error {
	if record == nil {
		return fmt.Errorf("Upsert: record is nil")
	}
	if record.ArticleID <= 0 {
		return fmt.Errorf("Upsert: article_id must be positive")
	}

	entities, err := json.Marshal(record.Entities)
	if err != nil {
		return fmt.Errorf("Upsert: marshal entities: %w", err)
	}
	categories, err := json.Marshal(record.Categories)
	if err != nil {
		return fmt.Errorf("Upsert: marshal categories: %w", err)
	}
	keywords, err := json.Marshal(record.Keywords)
	if err != nil {
		return fmt.Errorf("Upsert: marshal keywords: %w", err)
	}
	stockCodes, err := json.Marshal(record.StockCodes)
	if err != nil {
		return fmt.Errorf("Upsert: marshal stock_codes: %w", err)
	}

	const query = `
INSERT INTO article_metadata
       (article_id, external_id,
        title_length, body_length, summary_length, total_length, word_count, has_summary,
        entities, categories, keywords, stock_codes,
        year, month, day, hour, weekday,
        article_type, importance_score, indexing_text, metadata_hash,
        created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10,
        $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, NOW(), NOW())
ON CONFLICT (article_id)
DO UPDATE SET
	external_id      = EXCLUDED.external_id,
	title_length     = EXCLUDED.title_length,
	body_length      = EXCLUDED.body_length,
	summary_length   = EXCLUDED.summary_length,
	total_length     = EXCLUDED.total_length,
	word_count       = EXCLUDED.word_count,
	has_summary      = EXCLUDED.has_summary,
	entities         = EXCLUDED.entities,
	categories       = EXCLUDED.categories,
	keywords         = EXCLUDED.keywords,
	stock_codes      = EXCLUDED.stock_codes,
	year             = EXCLUDED.year,
	month            = EXCLUDED.month,
	day              = EXCLUDED.day,
	hour             = EXCLUDED.hour,
	weekday          = EXCLUDED.weekday,
	article_type     = EXCLUDED.article_type,
	importance_score = EXCLUDED.importance_score,
	indexing_text    = EXCLUDED.indexing_text,
	metadata_hash    = EXCLUDED.metadata_hash,
	updated_at       = NOW()`

	_, err = repo.db.ExecContext(ctx, query,
		record.ArticleID, record.ExternalID,
		record.TitleLength, record.BodyLength, record.SummaryLength,
		record.TotalLength, record.WordCount, record.HasSummary,
		entities, categories, keywords, stockCodes,
		record.Year, record.Month, record.Day, record.Hour, record.Weekday,
		string(record.ArticleType), record.ImportanceScore, record.IndexingText, record.MetadataHash,
	)
	if err != nil {
		return fmt.Errorf("Upsert: %w", err)
	}
	return nil
}

func (repo *MetadataRepo) GetByArticleID(ctx context.Context, articleID int64) (*entity.MetadataRecord, error) {
	const query = `
SELECT ` + metadataColumns + `
FROM article_metadata
WHERE article_id = $1
LIMIT 1`
	record, err := scanMetadata(repo.db.QueryRowContext(ctx, query, articleID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, entity.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("GetByArticleID: %w", err)
	}
	return record, nil
}

// Search returns records matching the filters, most important first.
// Multi-value filters use ANY-of semantics via the JSONB ?| operator, which
// the GIN indexes accelerate.
func (repo *MetadataRepo) Search(ctx context.Context, filters repository.MetadataFilters) ([]*entity.MetadataRecord, error) {
	var conditions []string
	var args []interface{}
	paramIndex := 1

	if len(filters.Categories) > 0 {
		conditions = append(conditions, fmt.Sprintf("categories ?| $%d", paramIndex))
		args = append(args, pq.Array(filters.Categories))
		paramIndex++
	}
	if len(filters.Keywords) > 0 {
		conditions = append(conditions, fmt.Sprintf("keywords ?| $%d", paramIndex))
		args = append(args, pq.Array(filters.Keywords))
		paramIndex++
	}
	if len(filters.StockCodes) > 0 {
		conditions = append(conditions, fmt.Sprintf("stock_codes ?| $%d", paramIndex))
		args = append(args, pq.Array(filters.StockCodes))
		paramIndex++
	}
	if len(filters.Entities) > 0 {
		// 엔티티는 버킷별 객체이므로 이름 버킷 세 개를 함께 검사
		conditions = append(conditions, fmt.Sprintf(
			"(entities->'companies' ?| $%d OR entities->'persons' ?| $%d OR entities->'locations' ?| $%d)",
			paramIndex, paramIndex, paramIndex))
		args = append(args, pq.Array(filters.Entities))
		paramIndex++
	}
	if filters.ArticleType != "" {
		conditions = append(conditions, fmt.Sprintf("article_type = $%d", paramIndex))
		args = append(args, string(filters.ArticleType))
		paramIndex++
	}
	if filters.Year != 0 {
		conditions = append(conditions, fmt.Sprintf("year = $%d", paramIndex))
		args = append(args, filters.Year)
		paramIndex++
	}
	if filters.Month != 0 {
		conditions = append(conditions, fmt.Sprintf("month = $%d", paramIndex))
		args = append(args, filters.Month)
		paramIndex++
	}
	if filters.Day != 0 {
		conditions = append(conditions, fmt.Sprintf("day = $%d", paramIndex))
		args = append(args, filters.Day)
		paramIndex++
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + strings.Join(conditions, " AND ")
	}

	limit := filters.Limit
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	if limit > maxSearchLimit {
		limit = maxSearchLimit
	}
	args = append(args, limit)

	query := fmt.Sprintf(`
SELECT `+metadataColumns+`
FROM article_metadata
%s
ORDER BY importance_score DESC
LIMIT $%d`, whereClause, paramIndex)

	rows, err := repo.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("Search: %w", err)
	}
	defer func() { _ = rows.Close() }()

	// 성능 최적화: 메모리 재할당을 줄이기 위한 사전 할당
	records := make([]*entity.MetadataRecord, 0, limit)
	for rows.Next() {
		record, err := scanMetadata(rows)
		if err != nil {
			return nil, fmt.Errorf("Search: Scan: %w", err)
		}
		records = append(records, record)
	}
	return records, rows.Err()
}
