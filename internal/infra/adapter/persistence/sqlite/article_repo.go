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
	"newswire-search/internal/pkg/search"
	"newswire-search/internal/repository"

	"github.com/mattn/go-sqlite3"
)

// isUniqueViolation reports whether err is a UNIQUE constraint failure from
// the sqlite3 driver.
func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	return errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
}

const (
	defaultSearchLimit = 50
	maxSearchLimit     = 200
)

// maxHostParams is SQLite's historical bound-parameter cap for one
// statement. ID lists larger than this are split across statements.
const maxHostParams = 999

// placeholders returns n comma-separated ? markers for an IN list.
func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

// chunkIDs splits ids into slices of at most size elements.
func chunkIDs(ids []int64, size int) [][]int64 {
	chunks := make([][]int64, 0, (len(ids)+size-1)/size)
	for len(ids) > size {
		chunks = append(chunks, ids[:size])
		ids = ids[size:]
	}
	if len(ids) > 0 {
		chunks = append(chunks, ids)
	}
	return chunks
}

// Timestamps are stored as UTC text. The driver binds time.Time in the
// value's own offset, so everything is normalized before binding; with a
// uniform offset the stored strings order chronologically, which the range
// filters, MAX(), and the watermark comparison rely on.

func nullableTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t.UTC(), Valid: !t.IsZero()}
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

// articleColumns is the full scan list shared by every SELECT. The order
// must match scanArticle.
const articleColumns = `id, external_id, title, subtitle, body, summary,
       writers, publish_time, registered_time, modified_time,
       source_url, media_code, edition, section, page,
       categories, keywords, stock_codes, images,
       content_hash, indexing_text, importance_score, article_type,
       similar_article_id, similarity_score,
       ingested_at, is_embedded, embedding_model, embedded_at,
       processing_error, vector_ref, tombstoned, created_at, updated_at`

type ArticleRepo struct {
	db           *sql.DB
	queryBuilder *ArticleQueryBuilder
}

func NewArticleRepo(db *sql.DB) repository.ArticleRepository {
	return &ArticleRepo{
		db:           db,
		queryBuilder: NewArticleQueryBuilder(),
	}
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func unmarshalJSON(raw []byte, dst interface{}) error {
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, dst)
}

// scanArticle scans one row in articleColumns order, decoding the JSON text
// payload columns.
func scanArticle(row rowScanner) (*entity.Article, error) {
	var (
		article     entity.Article
		writers     []byte
		categories  []byte
		keywords    []byte
		stockCodes  []byte
		images      []byte
		publishTime sql.NullTime
	)

	if err := row.Scan(
		&article.InternalID, &article.ExternalID, &article.Title, &article.Subtitle,
		&article.Body, &article.Summary,
		&writers, &publishTime, &article.RegisteredTime, &article.ModifiedTime,
		&article.SourceURL, &article.MediaCode, &article.Edition, &article.Section, &article.Page,
		&categories, &keywords, &stockCodes, &images,
		&article.ContentHash, &article.IndexingText, &article.ImportanceScore, &article.ArticleType,
		&article.SimilarArticleID, &article.SimilarityScore,
		&article.IngestedAt, &article.IsEmbedded, &article.EmbeddingModel, &article.EmbeddedAt,
		&article.ProcessingError, &article.VectorRef, &article.Tombstoned,
		&article.CreatedAt, &article.UpdatedAt,
	); err != nil {
		return nil, err
	}

	article.PublishTime = publishTime.Time

	if err := unmarshalJSON(writers, &article.Writers); err != nil {
		return nil, fmt.Errorf("unmarshal writers: %w", err)
	}
	if err := unmarshalJSON(categories, &article.Categories); err != nil {
		return nil, fmt.Errorf("unmarshal categories: %w", err)
	}
	if err := unmarshalJSON(keywords, &article.Keywords); err != nil {
		return nil, fmt.Errorf("unmarshal keywords: %w", err)
	}
	if err := unmarshalJSON(stockCodes, &article.StockCodes); err != nil {
		return nil, fmt.Errorf("unmarshal stock_codes: %w", err)
	}
	if err := unmarshalJSON(images, &article.Images); err != nil {
		return nil, fmt.Errorf("unmarshal images: %w", err)
	}

	return &article, nil
}

// marshalArticleJSON encodes the article's structured fields for the JSON
// text columns, in articleColumns order.
func marshalArticleJSON(article *entity.Article) (writers, categories, keywords, stockCodes, images []byte, err error) {
	if writers, err = json.Marshal(article.Writers); err != nil {
		return nil, nil, nil, nil, nil, fmt.Errorf("marshal writers: %w", err)
	}
	if categories, err = json.Marshal(article.Categories); err != nil {
		return nil, nil, nil, nil, nil, fmt.Errorf("marshal categories: %w", err)
	}
	if keywords, err = json.Marshal(article.Keywords); err != nil {
		return nil, nil, nil, nil, nil, fmt.Errorf("marshal keywords: %w", err)
	}
	if stockCodes, err = json.Marshal(article.StockCodes); err != nil {
		return nil, nil, nil, nil, nil, fmt.Errorf("marshal stock_codes: %w", err)
	}
	if images, err = json.Marshal(article.Images); err != nil {
		return nil, nil, nil, nil, nil, fmt.Errorf("marshal images: %w", err)
	}
	return writers, categories, keywords, stockCodes, images, nil
}

func (repo *ArticleRepo) Create(ctx context.Context, article *entity.Article) error {
	if err := article.Validate(); err != nil {
		return fmt.Errorf("Create: %w", err)
	}

	writers, categories, keywords, stockCodes, images, err := marshalArticleJSON(article)
	if err != nil {
		return fmt.Errorf("Create: %w", err)
	}

	now := time.Now().UTC()
	ingestedAt := article.IngestedAt
	if ingestedAt.IsZero() {
		ingestedAt = now
	} else {
		ingestedAt = ingestedAt.UTC()
	}

	const query = `
INSERT INTO articles
       (external_id, title, subtitle, body, summary,
        writers, publish_time, registered_time, modified_time,
        source_url, media_code, edition, section, page,
        categories, keywords, stock_codes, images,
        content_hash, indexing_text, importance_score, article_type,
        similar_article_id, similarity_score,
        ingested_at, is_embedded, embedding_model, embedded_at,
        processing_error, vector_ref, tombstoned, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?,
        ?, ?, ?, ?, ?, ?, ?, ?, ?, ?,
        ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	res, err := repo.db.ExecContext(ctx, query,
		article.ExternalID, article.Title, article.Subtitle, article.Body, article.Summary,
		writers, nullableTime(article.PublishTime), utcPtr(article.RegisteredTime), utcPtr(article.ModifiedTime),
		article.SourceURL, article.MediaCode, article.Edition, article.Section, article.Page,
		categories, keywords, stockCodes, images,
		article.ContentHash, article.IndexingText, article.ImportanceScore, string(article.ArticleType),
		article.SimilarArticleID, article.SimilarityScore,
		ingestedAt, article.IsEmbedded, article.EmbeddingModel, utcPtr(article.EmbeddedAt),
		article.ProcessingError, article.VectorRef, article.Tombstoned, now, now,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("Create: %w", entity.ErrDuplicate)
		}
		return fmt.Errorf("Create: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("Create: LastInsertId: %w", err)
	}

	article.InternalID = id
	article.IngestedAt = ingestedAt
	article.CreatedAt = now
	article.UpdatedAt = now
	return nil
}

func (repo *ArticleRepo) Update(ctx context.Context, article *entity.Article) error {
	writers, categories, keywords, stockCodes, images, err := marshalArticleJSON(article)
	if err != nil {
		return fmt.Errorf("Update: %w", err)
	}

	const query = `
UPDATE articles SET
       title              = ?,
       subtitle           = ?,
       body               = ?,
       summary            = ?,
       writers            = ?,
       publish_time       = ?,
       registered_time    = ?,
       modified_time      = ?,
       source_url         = ?,
       media_code         = ?,
       edition            = ?,
       section            = ?,
       page               = ?,
       categories         = ?,
       keywords           = ?,
       stock_codes        = ?,
       images             = ?,
       content_hash       = ?,
       indexing_text      = ?,
       importance_score   = ?,
       article_type       = ?,
       similar_article_id = ?,
       similarity_score   = ?,
       is_embedded        = ?,
       embedding_model    = ?,
       embedded_at        = ?,
       processing_error   = ?,
       vector_ref         = ?,
       tombstoned         = ?,
       updated_at         = ?
WHERE id = ?`
	res, err := repo.db.ExecContext(ctx, query,
		article.Title, article.Subtitle, article.Body, article.Summary,
		writers, nullableTime(article.PublishTime), utcPtr(article.RegisteredTime), utcPtr(article.ModifiedTime),
		article.SourceURL, article.MediaCode, article.Edition, article.Section, article.Page,
		categories, keywords, stockCodes, images,
		article.ContentHash, article.IndexingText, article.ImportanceScore, string(article.ArticleType),
		article.SimilarArticleID, article.SimilarityScore,
		article.IsEmbedded, article.EmbeddingModel, utcPtr(article.EmbeddedAt),
		article.ProcessingError, article.VectorRef, article.Tombstoned,
		time.Now().UTC(), article.InternalID,
	)
	if err != nil {
		return fmt.Errorf("Update: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("Update: no rows affected")
	}
	return nil
}

func (repo *ArticleRepo) Get(ctx context.Context, id int64) (*entity.Article, error) {
	const query = `
SELECT ` + articleColumns + `
FROM articles
WHERE id = ?
LIMIT 1`
	article, err := scanArticle(repo.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, entity.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("Get: %w", err)
	}
	return article, nil
}

func (repo *ArticleRepo) GetByExternalID(ctx context.Context, externalID string) (*entity.Article, error) {
	const query = `
SELECT ` + articleColumns + `
FROM articles
WHERE external_id = ?
LIMIT 1`
	article, err := scanArticle(repo.db.QueryRowContext(ctx, query, externalID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, entity.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("GetByExternalID: %w", err)
	}
	return article, nil
}

func (repo *ArticleRepo) GetByIDs(ctx context.Context, ids []int64) ([]*entity.Article, error) {
	if len(ids) == 0 {
		return []*entity.Article{}, nil
	}
	articles := make([]*entity.Article, 0, len(ids))
	for _, chunk := range chunkIDs(ids, maxHostParams) {
		query := `
SELECT ` + articleColumns + `
FROM articles
WHERE id IN (` + placeholders(len(chunk)) + `)
  AND tombstoned = 0`
		args := make([]interface{}, len(chunk))
		for i, id := range chunk {
			args[i] = id
		}
		batch, err := repo.listQuery(ctx, "GetByIDs", query, args...)
		if err != nil {
			return nil, err
		}
		articles = append(articles, batch...)
	}
	return articles, nil
}

func (repo *ArticleRepo) FindByContentHash(ctx context.Context, hash string) (*entity.Article, error) {
	const query = `
SELECT ` + articleColumns + `
FROM articles
WHERE content_hash = ?
  AND tombstoned = 0
ORDER BY ingested_at ASC
LIMIT 1`
	article, err := scanArticle(repo.db.QueryRowContext(ctx, query, hash))
	if errors.Is(err, sql.ErrNoRows) {
		// 해시 미존재는 정상 경로이므로 에러가 아님
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("FindByContentHash: %w", err)
	}
	return article, nil
}

func (repo *ArticleRepo) listQuery(ctx context.Context, method, query string, args ...interface{}) ([]*entity.Article, error) {
	rows, err := repo.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", method, err)
	}
	defer func() { _ = rows.Close() }()

	// 성능 최적화: 메모리 재할당을 줄이기 위한 사전 할당
	articles := make([]*entity.Article, 0, 100)
	for rows.Next() {
		article, err := scanArticle(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: Scan: %w", method, err)
		}
		articles = append(articles, article)
	}
	return articles, rows.Err()
}

func (repo *ArticleRepo) ListRecent(ctx context.Context, limit int) ([]*entity.Article, error) {
	if limit <= 0 {
		limit = 100
	}
	const query = `
SELECT ` + articleColumns + `
FROM articles
WHERE tombstoned = 0
ORDER BY ingested_at DESC
LIMIT ?`
	return repo.listQuery(ctx, "ListRecent", query, limit)
}

func (repo *ArticleRepo) ListUnembedded(ctx context.Context, limit int) ([]*entity.Article, error) {
	if limit <= 0 {
		limit = 100
	}
	const query = `
SELECT ` + articleColumns + `
FROM articles
WHERE is_embedded = 0
  AND processing_error = ''
  AND tombstoned = 0
ORDER BY ingested_at ASC
LIMIT ?`
	return repo.listQuery(ctx, "ListUnembedded", query, limit)
}

func (repo *ArticleRepo) ListEmbedded(ctx context.Context, afterID int64, limit int) ([]*entity.Article, error) {
	if limit <= 0 {
		limit = 100
	}
	const query = `
SELECT ` + articleColumns + `
FROM articles
WHERE is_embedded = 1
  AND tombstoned = 0
  AND id > ?
ORDER BY id ASC
LIMIT ?`
	return repo.listQuery(ctx, "ListEmbedded", query, afterID, limit)
}

func (repo *ArticleRepo) ListDuplicateContentHashes(ctx context.Context) ([]*entity.Article, error) {
	const query = `
SELECT ` + articleColumns + `
FROM articles
WHERE tombstoned = 0
  AND content_hash IN (
      SELECT content_hash
      FROM articles
      WHERE tombstoned = 0
      GROUP BY content_hash
      HAVING COUNT(*) > 1)
ORDER BY content_hash, ingested_at ASC`
	return repo.listQuery(ctx, "ListDuplicateContentHashes", query)
}

func (repo *ArticleRepo) SearchKeyword(ctx context.Context, tokens []string, filters repository.ArticleSearchFilters) ([]*entity.Article, error) {
	// Check if there are any search criteria (tokens or filters)
	hasTokens := len(tokens) > 0
	hasFilters := filters.Category != "" || filters.Writer != "" || filters.MediaCode != "" ||
		filters.ArticleType != "" || filters.From != nil || filters.To != nil

	// No tokens and no filters -> return empty result
	if !hasTokens && !hasFilters {
		return []*entity.Article{}, nil
	}

	// Apply search timeout to prevent long-running queries
	ctx, cancel := context.WithTimeout(ctx, search.DefaultSearchTimeout)
	defer cancel()

	limit := filters.Limit
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	if limit > maxSearchLimit {
		limit = maxSearchLimit
	}

	// Build WHERE clause using QueryBuilder
	whereClause, args := repo.queryBuilder.BuildWhereClause(tokens, filters, "")
	args = append(args, limit)

	query := fmt.Sprintf(`
SELECT `+articleColumns+`
FROM articles
%s
ORDER BY publish_time DESC
LIMIT ?`, whereClause)

	return repo.listQuery(ctx, "SearchKeyword", query, args...)
}

func (repo *ArticleRepo) CountArticles(ctx context.Context) (int64, error) {
	const query = `SELECT COUNT(*) FROM articles WHERE tombstoned = 0`
	var count int64
	if err := repo.db.QueryRowContext(ctx, query).Scan(&count); err != nil {
		return 0, fmt.Errorf("CountArticles: %w", err)
	}
	return count, nil
}

func (repo *ArticleRepo) MarkEmbedded(ctx context.Context, ids []int64, model string, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	const query = `
UPDATE articles SET
       is_embedded      = 1,
       embedding_model  = ?,
       embedded_at      = ?,
       processing_error = '',
       updated_at       = ?
WHERE id IN (%s)`
	now := time.Now().UTC()
	for _, chunk := range chunkIDs(ids, maxHostParams) {
		args := make([]interface{}, 0, len(chunk)+3)
		args = append(args, model, at.UTC(), now)
		for _, id := range chunk {
			args = append(args, id)
		}
		stmt := fmt.Sprintf(query, placeholders(len(chunk)))
		if _, err := repo.db.ExecContext(ctx, stmt, args...); err != nil {
			return fmt.Errorf("MarkEmbedded: %w", err)
		}
	}
	return nil
}

func (repo *ArticleRepo) SetProcessingError(ctx context.Context, ids []int64, message string) error {
	if len(ids) == 0 {
		return nil
	}
	const query = `
UPDATE articles SET
       processing_error = ?,
       updated_at       = ?
WHERE id IN (%s)`
	now := time.Now().UTC()
	for _, chunk := range chunkIDs(ids, maxHostParams) {
		args := make([]interface{}, 0, len(chunk)+2)
		args = append(args, message, now)
		for _, id := range chunk {
			args = append(args, id)
		}
		stmt := fmt.Sprintf(query, placeholders(len(chunk)))
		if _, err := repo.db.ExecContext(ctx, stmt, args...); err != nil {
			return fmt.Errorf("SetProcessingError: %w", err)
		}
	}
	return nil
}

func (repo *ArticleRepo) Tombstone(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	const query = `
UPDATE articles SET
       tombstoned = 1,
       updated_at = ?
WHERE id IN (%s)`
	now := time.Now().UTC()
	for _, chunk := range chunkIDs(ids, maxHostParams) {
		args := make([]interface{}, 0, len(chunk)+1)
		args = append(args, now)
		for _, id := range chunk {
			args = append(args, id)
		}
		stmt := fmt.Sprintf(query, placeholders(len(chunk)))
		if _, err := repo.db.ExecContext(ctx, stmt, args...); err != nil {
			return fmt.Errorf("Tombstone: %w", err)
		}
	}
	return nil
}
