package vectorindex

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/pgvector/pgvector-go"

	"newswire-search/internal/domain/entity"
)

// PGVectorProvider serves the ANN contract from the ann_vectors table.
// The search operator and score expression follow the distance the provider
// was constructed with; vectors indexed under one distance are never
// queried under another.
//
// Endpoint calls are bookkeeping only: a pgvector table is queryable the
// moment it has rows, so CreateEndpoint and Deploy just hand back IDs for
// the IndexState record.
type PGVectorProvider struct {
	db         *sql.DB
	dimensions int
	distance   entity.Distance
}

// NewPGVectorProvider binds a provider to the database. Zero dimensions
// falls back to the default width; an unknown distance falls back to
// dot_product, the measure indexes are created with unless configured
// otherwise.
func NewPGVectorProvider(db *sql.DB, dimensions int, distance entity.Distance) *PGVectorProvider {
	if dimensions <= 0 {
		dimensions = entity.DefaultDimensions
	}
	if !distance.IsValid() {
		distance = entity.DistanceDotProduct
	}
	return &PGVectorProvider{
		db:         db,
		dimensions: dimensions,
		distance:   distance,
	}
}

// CreateIndex verifies that the ann_vectors vector column matches the
// requested width and makes sure an ANN search index exists for the
// distance. Idempotent; safe to run on every worker start.
func (p *PGVectorProvider) CreateIndex(ctx context.Context, name string, dimensions int, distance entity.Distance) (string, error) {
	if dimensions != p.dimensions {
		return "", &DimensionConflictError{Want: p.dimensions, Got: dimensions}
	}
	if distance != p.distance {
		return "", fmt.Errorf("CreateIndex: provider is bound to %s distance, requested %s", p.distance, distance)
	}

	// vector 컬럼의 선언 폭은 atttypmod에 들어 있다
	var columnDims int
	err := p.db.QueryRowContext(ctx,
		`SELECT atttypmod FROM pg_attribute
		 WHERE attrelid = 'ann_vectors'::regclass AND attname = 'embedding'`,
	).Scan(&columnDims)
	if err != nil {
		return "", fmt.Errorf("CreateIndex: inspect ann_vectors: %w", err)
	}
	if columnDims != dimensions {
		return "", &DimensionConflictError{Want: columnDims, Got: dimensions}
	}

	// 검색 인덱스가 없어도 순차 스캔으로 동작은 하므로 실패는 경고로 끝낸다
	if _, err := p.db.ExecContext(ctx, searchIndexDDL(p.distance)); err != nil {
		slog.Warn("ANN search index creation failed, queries fall back to sequential scan",
			slog.String("distance", string(p.distance)),
			slog.String("error", err.Error()))
	}

	return "pgvector:" + name, nil
}

func searchIndexDDL(distance entity.Distance) string {
	opclass := "vector_ip_ops"
	switch distance {
	case entity.DistanceCosine:
		opclass = "vector_cosine_ops"
	case entity.DistanceL2:
		opclass = "vector_l2_ops"
	}
	return fmt.Sprintf(
		`CREATE INDEX IF NOT EXISTS idx_ann_vectors_%s
    ON ann_vectors USING ivfflat (embedding %s)
    WITH (lists = 100)`, string(distance), opclass)
}

// CreateEndpoint returns a synthetic endpoint ID; see the type comment.
func (p *PGVectorProvider) CreateEndpoint(ctx context.Context, name string) (string, error) {
	return "pgvector-endpoint:" + name, nil
}

// Deploy returns the deployed ID unchanged; see the type comment.
func (p *PGVectorProvider) Deploy(ctx context.Context, endpointID string, deployedID string) (string, error) {
	if endpointID == "" {
		return "", fmt.Errorf("Deploy: endpoint ID is required")
	}
	return deployedID, nil
}

const upsertDatapointQuery = `
INSERT INTO ann_vectors
       (datapoint_id, article_id, external_id, chunk_index, embedding,
        article_type, media_code, categories, keywords,
        year, month, day, importance_score, publish_time, tombstone, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, NOW())
ON CONFLICT (datapoint_id)
DO UPDATE SET
	article_id       = EXCLUDED.article_id,
	external_id      = EXCLUDED.external_id,
	chunk_index      = EXCLUDED.chunk_index,
	embedding        = EXCLUDED.embedding,
	article_type     = EXCLUDED.article_type,
	media_code       = EXCLUDED.media_code,
	categories       = EXCLUDED.categories,
	keywords         = EXCLUDED.keywords,
	year             = EXCLUDED.year,
	month            = EXCLUDED.month,
	day              = EXCLUDED.day,
	importance_score = EXCLUDED.importance_score,
	publish_time     = EXCLUDED.publish_time,
	tombstone        = EXCLUDED.tombstone,
	updated_at       = NOW()`

// Upsert writes the batch in one transaction so a provider failure leaves
// no partial batch behind. Re-running the same batch is safe.
func (p *PGVectorProvider) Upsert(ctx context.Context, points []*Datapoint) error {
	if len(points) == 0 {
		return nil
	}

	for _, dp := range points {
		if dp == nil {
			return fmt.Errorf("Upsert: datapoint is nil")
		}
		if dp.ID == "" {
			return fmt.Errorf("Upsert: datapoint ID is required")
		}
		if len(dp.Vector) != p.dimensions {
			return fmt.Errorf("Upsert: datapoint %s: %w", dp.ID,
				&DimensionConflictError{Want: p.dimensions, Got: len(dp.Vector)})
		}
	}

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("Upsert: BeginTx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, dp := range points {
		categories, err := json.Marshal(dp.Categories)
		if err != nil {
			return fmt.Errorf("Upsert: marshal categories: %w", err)
		}
		keywords, err := json.Marshal(dp.Keywords)
		if err != nil {
			return fmt.Errorf("Upsert: marshal keywords: %w", err)
		}

		var publishTime any
		if !dp.PublishedAt.IsZero() {
			publishTime = dp.PublishedAt.UTC()
		}

		if _, err := tx.ExecContext(ctx, upsertDatapointQuery,
			dp.ID,
			dp.ArticleID,
			dp.ExternalID,
			dp.ChunkIndex,
			pgvector.NewVector(dp.Vector),
			dp.ArticleType,
			dp.MediaCode,
			categories,
			keywords,
			dp.Year,
			dp.Month,
			dp.Day,
			dp.Importance,
			publishTime,
			dp.Tombstone,
		); err != nil {
			return fmt.Errorf("Upsert: datapoint %s: %w", dp.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("Upsert: Commit: %w", err)
	}
	return nil
}

// Query runs an ANN search ordered by the provider's distance operator.
// The filter is translated to SQL so restriction happens index-side, never
// by post-filtering a truncated candidate list.
func (p *PGVectorProvider) Query(ctx context.Context, vector []float32, topK int, filter *Filter) ([]Match, error) {
	if len(vector) != p.dimensions {
		return nil, &DimensionConflictError{Want: p.dimensions, Got: len(vector)}
	}
	if err := filter.Validate(); err != nil {
		return nil, fmt.Errorf("Query: %w", err)
	}
	topK = clampTopK(topK)

	scoreExpr, orderOp := scoreSQL(p.distance)
	query := `SELECT datapoint_id, article_id, ` + scoreExpr + `
FROM ann_vectors
WHERE tombstone = FALSE`
	args := []any{pgvector.NewVector(vector), topK}

	if filter != nil {
		where, filterArgs := filterWhereSQL(filter, len(args)+1)
		query += " AND (" + where + ")"
		args = append(args, filterArgs...)
	}
	query += ` ORDER BY embedding ` + orderOp + ` $1 ASC LIMIT $2`

	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("Query: %w", err)
	}
	defer func() { _ = rows.Close() }()

	matches := make([]Match, 0, topK)
	for rows.Next() {
		var m Match
		if err := rows.Scan(&m.DatapointID, &m.ArticleID, &m.Score); err != nil {
			return nil, fmt.Errorf("Query: Scan: %w", err)
		}
		matches = append(matches, m)
	}
	return matches, rows.Err()
}

// scoreSQL returns the score expression and the ORDER BY operator for a
// distance. <#> is the negative inner product, so ascending order and the
// negated expression both give "most similar first".
func scoreSQL(distance entity.Distance) (scoreExpr, orderOp string) {
	switch distance {
	case entity.DistanceCosine:
		return `1 - (embedding <=> $1) AS score`, `<=>`
	case entity.DistanceL2:
		return `1 / (1 + (embedding <-> $1)) AS score`, `<->`
	default:
		return `-(embedding <#> $1) AS score`, `<#>`
	}
}

// filterColumns maps filter fields onto ann_vectors columns. Only fields
// that passed Filter.Validate reach this table.
var filterColumns = map[string]string{
	FieldArticleType: "article_type",
	FieldMediaCode:   "media_code",
	FieldCategory:    "categories",
	FieldKeyword:     "keywords",
	FieldYear:        "year",
	FieldMonth:       "month",
	FieldDay:         "day",
	FieldImportance:  "importance_score",
	FieldPublished:   "publish_time",
}

func filterWhereSQL(f *Filter, firstArg int) (string, []any) {
	clauses := make([]string, 0, len(f.Clauses))
	args := make([]any, 0)
	n := firstArg

	for _, clause := range f.Clauses {
		conds := make([]string, 0, len(clause))
		for _, c := range clause {
			conds = append(conds, conditionSQL(c, n))
			args = append(args, conditionArg(c))
			n++
		}
		clauses = append(clauses, "("+strings.Join(conds, " AND ")+")")
	}
	return strings.Join(clauses, " OR "), args
}

func conditionSQL(c Condition, n int) string {
	col := filterColumns[c.Field]
	switch c.Op {
	case OpGte:
		return fmt.Sprintf("%s >= $%d", col, n)
	case OpLte:
		return fmt.Sprintf("%s <= $%d", col, n)
	case OpContains:
		// JSONB 존재 연산자: 배열에 해당 문자열 원소가 있는지
		return fmt.Sprintf("%s ? $%d", col, n)
	default:
		return fmt.Sprintf("%s = $%d", col, n)
	}
}

func conditionArg(c Condition) any {
	if t, ok := c.Value.(time.Time); ok {
		return t.UTC()
	}
	return c.Value
}

// ListDatapointIDs pages live datapoint IDs in lexicographic order for
// reconciliation.
func (p *PGVectorProvider) ListDatapointIDs(ctx context.Context, cursor string, limit int) ([]string, string, error) {
	limit = clampListLimit(limit)

	const query = `
SELECT datapoint_id
FROM ann_vectors
WHERE tombstone = FALSE AND datapoint_id > $1
ORDER BY datapoint_id ASC
LIMIT $2`

	rows, err := p.db.QueryContext(ctx, query, cursor, limit)
	if err != nil {
		return nil, "", fmt.Errorf("ListDatapointIDs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	ids := make([]string, 0, limit)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, "", fmt.Errorf("ListDatapointIDs: Scan: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, "", err
	}

	next := ""
	if len(ids) == limit {
		next = ids[len(ids)-1]
	}
	return ids, next, nil
}

// Status reports live and tombstoned counts plus the latest write.
func (p *PGVectorProvider) Status(ctx context.Context) (*IndexStatus, error) {
	const query = `
SELECT COUNT(*) FILTER (WHERE NOT tombstone),
       COUNT(*) FILTER (WHERE tombstone),
       MAX(updated_at)
FROM ann_vectors`

	var live, tombstones int64
	var lastUpdated sql.NullTime
	if err := p.db.QueryRowContext(ctx, query).Scan(&live, &tombstones, &lastUpdated); err != nil {
		return nil, fmt.Errorf("Status: %w", err)
	}

	status := &IndexStatus{
		State:        IndexStateReady,
		TotalVectors: live,
		Tombstones:   tombstones,
	}
	if live == 0 {
		status.State = IndexStateEmpty
	}
	if lastUpdated.Valid {
		status.LastUpdated = lastUpdated.Time.UTC()
	}
	return status, nil
}

// DeleteIndex removes every datapoint. The table itself is owned by the
// migrations, not the provider.
func (p *PGVectorProvider) DeleteIndex(ctx context.Context) error {
	if _, err := p.db.ExecContext(ctx, `DELETE FROM ann_vectors`); err != nil {
		return fmt.Errorf("DeleteIndex: %w", err)
	}
	return nil
}

// DeleteEndpoint is bookkeeping only; see the type comment.
func (p *PGVectorProvider) DeleteEndpoint(ctx context.Context, endpointID string) error {
	return nil
}

var _ Provider = (*PGVectorProvider)(nil)
