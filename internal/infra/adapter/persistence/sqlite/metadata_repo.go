package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"newswire-search/internal/domain/entity"
	"newswire-search/internal/repository"
)

const metadataColumns = `article_id, external_id,
       title_length, body_length, summary_length, total_length, word_count, has_summary,
       entities, categories, keywords, stock_codes,
       year, month, day, hour, weekday,
       article_type, importance_score, indexing_text, metadata_hash`

// MetadataRepo implements the MetadataRepository interface for SQLite. The
// structured filters run through the json_each table-valued function; local
// volumes are small enough that the resulting scans stay cheap.
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

	if err := unmarshalJSON(entities, &record.Entities); err != nil {
		return nil, fmt.Errorf("unmarshal entities: %w", err)
	}
	if err := unmarshalJSON(categories, &record.Categories); err != nil {
		return nil, fmt.Errorf("unmarshal categories: %w", err)
	}
	if err := unmarshalJSON(keywords, &record.Keywords); err != nil {
		return nil, fmt.Errorf("unmarshal keywords: %w", err)
	}
	if err := unmarshalJSON(stockCodes, &record.StockCodes); err != nil {
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
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?,
        ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (article_id)
DO UPDATE SET
	external_id      = excluded.external_id,
	title_length     = excluded.title_length,
	body_length      = excluded.body_length,
	summary_length   = excluded.summary_length,
	total_length     = excluded.total_length,
	word_count       = excluded.word_count,
	has_summary      = excluded.has_summary,
	entities         = excluded.entities,
	categories       = excluded.categories,
	keywords         = excluded.keywords,
	stock_codes      = excluded.stock_codes,
	year             = excluded.year,
	month            = excluded.month,
	day              = excluded.day,
	hour             = excluded.hour,
	weekday          = excluded.weekday,
	article_type     = excluded.article_type,
	importance_score = excluded.importance_score,
	indexing_text    = excluded.indexing_text,
	metadata_hash    = excluded.metadata_hash,
	updated_at       = excluded.updated_at`

	now := time.Now().UTC()
	_, err = repo.db.ExecContext(ctx, query,
		record.ArticleID, record.ExternalID,
		record.TitleLength, record.BodyLength, record.SummaryLength,
		record.TotalLength, record.WordCount, record.HasSummary,
		entities, categories, keywords, stockCodes,
		record.Year, record.Month, record.Day, record.Hour, record.Weekday,
		string(record.ArticleType), record.ImportanceScore, record.IndexingText, record.MetadataHash,
		now, now,
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
WHERE article_id = ?
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

// anyOf matches rows whose JSON array shares at least one value with the
// filter set. source goes straight into json_each, so it may carry a path
// argument.
func anyOf(source string, n int) string {
	return fmt.Sprintf("EXISTS (SELECT 1 FROM json_each(%s) WHERE value IN (%s))", source, placeholders(n))
}

func appendStrings(args []interface{}, values []string) []interface{} {
	for _, v := range values {
		args = append(args, v)
	}
	return args
}

// Search returns records matching the filters, most important first.
// Multi-value filters use ANY-of semantics.
func (repo *MetadataRepo) Search(ctx context.Context, filters repository.MetadataFilters) ([]*entity.MetadataRecord, error) {
	var conditions []string
	var args []interface{}

	if len(filters.Categories) > 0 {
		conditions = append(conditions, anyOf("categories", len(filters.Categories)))
		args = appendStrings(args, filters.Categories)
	}
	if len(filters.Keywords) > 0 {
		conditions = append(conditions, anyOf("keywords", len(filters.Keywords)))
		args = appendStrings(args, filters.Keywords)
	}
	if len(filters.StockCodes) > 0 {
		conditions = append(conditions, anyOf("stock_codes", len(filters.StockCodes)))
		args = appendStrings(args, filters.StockCodes)
	}
	if len(filters.Entities) > 0 {
		// 엔티티는 버킷별 객체이므로 이름 버킷 세 개를 함께 검사하고
		// 값들을 버킷마다 다시 바인딩한다
		n := len(filters.Entities)
		conditions = append(conditions, fmt.Sprintf("(%s OR %s OR %s)",
			anyOf("entities, '$.companies'", n),
			anyOf("entities, '$.persons'", n),
			anyOf("entities, '$.locations'", n)))
		for i := 0; i < 3; i++ {
			args = appendStrings(args, filters.Entities)
		}
	}
	if filters.ArticleType != "" {
		conditions = append(conditions, "article_type = ?")
		args = append(args, string(filters.ArticleType))
	}
	if filters.Year != 0 {
		conditions = append(conditions, "year = ?")
		args = append(args, filters.Year)
	}
	if filters.Month != 0 {
		conditions = append(conditions, "month = ?")
		args = append(args, filters.Month)
	}
	if filters.Day != 0 {
		conditions = append(conditions, "day = ?")
		args = append(args, filters.Day)
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
LIMIT ?`, whereClause)

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
