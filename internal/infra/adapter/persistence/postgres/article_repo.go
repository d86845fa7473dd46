package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"newswire-search/internal/domain/entity"
	"newswire-search/internal/pkg/search"
	"newswire-search/internal/repository"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

// uniqueViolation is the PostgreSQL error code for unique constraint violations.
const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

const (
	defaultSearchLimit = 50
	maxSearchLimit     = 200
)

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

func unmarshalJSONB(raw []byte, dst interface{}) error {
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, dst)
}

// scanArticle scans one row in articleColumns order, decoding the JSONB
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

	if err := unmarshalJSONB(writers, &article.Writers); err != nil {
		return nil, fmt.Errorf("unmarshal writers: %w", err)
	}
	if err := unmarshalJSONB(categories, &article.Categories); err != nil {
		return nil, fmt.Errorf("unmarshal categories: %w", err)
	}
	if err := unmarshalJSONB(keywords, &article.Keywords); err != nil {
		return nil, fmt.Errorf("unmarshal keywords: %w", err)
	}
	if err := unmarshalJSONB(stockCodes, &article.StockCodes); err != nil {
		return nil, fmt.Errorf("unmarshal stock_codes: %w", err)
	}
	if err := unmarshalJSONB(images, &article.Images); err != nil {
		return nil, fmt.Errorf("unmarshal images: %w", err)
	}

	return &article, nil
}

// marshalArticleJSON encodes the article's structured fields for the JSONB
// columns, in articleColumns order.
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

func nullableTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}

func (repo *ArticleRepo) Create(ctx context.Context, article *entity.Article) error {
	if err := article.Validate(); err != nil {
		return fmt.Errorf("Create: %w", err)
	}

	writers, categories, keywords, stockCodes, images, err := marshalArticleJSON(article)
	if err != nil {
		return fmt.Errorf("Create: %w", err)
	}

	ingestedAt := article.IngestedAt
	if ingestedAt.IsZero() {
		ingestedAt = time.Now()
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
        processing_error, vector_ref, tombstoned)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10,
        $11, $12, $13, $14, $15, $16, $17, $18, $19, $20,
        $21, $22, $23, $24, $25, $26, $27, $28, $29, $30, $31)
RETURNING id, created_at, updated_at`

	err = repo.db.QueryRowContext(ctx, query,
		article.ExternalID, article.Title, article.Subtitle, article.Body, article.Summary,
		writers, nullableTime(article.PublishTime), article.RegisteredTime, article.ModifiedTime,
		article.SourceURL, article.MediaCode, article.Edition, article.Section, article.Page,
		categories, keywords, stockCodes, images,
		article.ContentHash, article.IndexingText, article.ImportanceScore, string(article.ArticleType),
		article.SimilarArticleID, article.SimilarityScore,
		ingestedAt, article.IsEmbedded, article.EmbeddingModel, article.EmbeddedAt,
		article.ProcessingError, article.VectorRef, article.Tombstoned,
	).Scan(&article.InternalID, &article.CreatedAt, &article.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("Create: %w", entity.ErrDuplicate)
		}
		return fmt.Errorf("Create: %w", err)
	}

	article.IngestedAt = ingestedAt
	return nil
}

func (repo *ArticleRepo) Update(ctx context.Context, article *entity.Article) error {
	writers, categories, keywords, stockCodes, images, err := marshalArticleJSON(article)
	if err != nil {
		return fmt.Errorf("Update: %w", err)
	}

	const query = `
UPDATE articles SET
       title              = $1,
       subtitle           = $2,
       body               = $3,
       summary            = $4,
       writers            = $5,
       publish_time       = $6,
       registered_time    = $7,
       modified_time      = $8,
       source_url         = $9,
       media_code         = $10,
       edition            = $11,
       section            = $12,
       page               = $13,
       categories         = $14,
       keywords           = $15,
       stock_codes        = $16,
       images             = $17,
       content_hash       = $18,
       indexing_text      = $19,
       importance_score   = $20,
       article_type       = $21,
       similar_article_id = $22,
       similarity_score   = $23,
       is_embedded        = $24,
       embedding_model    = $25,
       embedded_at        = $26,
       processing_error   = $27,
       vector_ref         = $28,
       tombstoned         = $29,
       updated_at         = NOW()
WHERE id = $30`
	res, err := repo.db.ExecContext(ctx, query,
		article.Title, article.Subtitle, article.Body, article.Summary,
		writers, nullableTime(article.PublishTime), article.RegisteredTime, article.ModifiedTime,
		article.SourceURL, article.MediaCode, article.Edition, article.Section, article.Page,
		categories, keywords, stockCodes, images,
		article.ContentHash, article.IndexingText, article.ImportanceScore, string(article.ArticleType),
		article.SimilarArticleID, article.SimilarityScore,
		article.IsEmbedded, article.EmbeddingModel, article.EmbeddedAt,
		article.ProcessingError, article.VectorRef, article.Tombstoned,
		article.InternalID,
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
WHERE id = $1
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
WHERE external_id = $1
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
	const query = `
SELECT ` + articleColumns + `
FROM articles
WHERE id = ANY($1)
  AND NOT tombstoned`
	return repo.listQuery(ctx, "GetByIDs", query, pq.Array(ids))
}

func (repo *ArticleRepo) FindByContentHash(ctx context.Context, hash string) (*entity.Article, error) {
	const query = `
SELECT ` + articleColumns + `
FROM articles
WHERE content_hash = $1
  AND NOT tombstoned
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
WHERE NOT tombstoned
ORDER BY ingested_at DESC
LIMIT $1`
	return repo.listQuery(ctx, "ListRecent", query, limit)
}

func (repo *ArticleRepo) ListUnembedded(ctx context.Context, limit int) ([]*entity.Article, error) {
	if limit <= 0 {
		limit = 100
	}
	const query = `
SELECT ` + articleColumns + `
FROM articles
WHERE NOT is_embedded
  AND processing_error = ''
  AND NOT tombstoned
ORDER BY ingested_at ASC
LIMIT $1`
	return repo.listQuery(ctx, "ListUnembedded", query, limit)
}

func (repo *ArticleRepo) ListEmbedded(ctx context.Context, afterID int64, limit int) ([]*entity.Article, error) {
	if limit <= 0 {
		limit = 100
	}
	const query = `
SELECT ` + articleColumns + `
FROM articles
WHERE is_embedded
  AND NOT tombstoned
  AND id > $1
ORDER BY id ASC
LIMIT $2`
	return repo.listQuery(ctx, "ListEmbedded", query, afterID, limit)
}

func (repo *ArticleRepo) ListDuplicateContentHashes(ctx context.Context) ([]*entity.Article, error) {
	const query = `
SELECT ` + articleColumns + `
FROM articles
WHERE NOT tombstoned
  AND content_hash IN (
      SELECT content_hash
      FROM articles
      WHERE NOT tombstoned
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
LIMIT $%d`, whereClause, len(args))

	return repo.listQuery(ctx, "SearchKeyword", query, args...)
}

func (repo *ArticleRepo) CountArticles(ctx context.Context) (int64, error) {
	const query = `SELECT COUNT(*) FROM articles WHERE NOT tombstoned`
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
       is_embedded      = TRUE,
       embedding_model  = $1,
       embedded_at      = $2,
       processing_error = '',
       updated_at       = NOW()
WHERE id = ANY($3)`
	if _, err := repo.db.ExecContext(ctx, query, model, at, pq.Array(ids)); err != nil {
		return fmt.Errorf("MarkEmbedded: %w", err)
	}
	return nil
}

func (repo *ArticleRepo) SetProcessingError(ctx context.Context, ids []int64, message string) error {
	if len(ids) == 0 {
		return nil
	}
	const query = `
UPDATE articles SET
       processing_error = $1,
       updated_at       = NOW()
WHERE id = ANY($2)`
	if _, err := repo.db.ExecContext(ctx, query, message, pq.Array(ids)); err != nil {
		return fmt.Errorf("SetProcessingError: %w", err)
	}
	return nil
}

func (repo *ArticleRepo) Tombstone(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	const query = `
UPDATE articles SET
       tombstoned = TRUE,
       updated_at = NOW()
WHERE id = ANY($1)`
	if _, err := repo.db.ExecContext(ctx, query, pq.Array(ids)); err != nil {
		return fmt.Errorf("Tombstone: %w", err)
	}
	return nil
}
