package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"newswire-search/internal/domain/entity"
	"newswire-search/internal/repository"
)

const processingLogColumns = `id, article_id, phase, status, message, duration_ms, ts`

// ProcessingLogRepo implements the ProcessingLogRepository interface for
// PostgreSQL. The log is append-only; rows are never updated.
type ProcessingLogRepo struct{ db *sql.DB }

func NewProcessingLogRepo(db *sql.DB) repository.ProcessingLogRepository {
	return &ProcessingLogRepo{db: db}
}

func scanLogEntry(rows *sql.Rows) (*entity.ProcessingLogEntry, error) {
	var e entity.ProcessingLogEntry
	if err := rows.Scan(
		&e.ID, &e.ArticleID, &e.Phase, &e.Status,
		&e.Message, &e.DurationMS, &e.Timestamp,
	); err != nil {
		return nil, err
	}
	return &e, nil
}

func (repo *ProcessingLogRepo) Append(ctx context.Context, e *entity.ProcessingLogEntry) error {
	ts := e.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	const query = `
INSERT INTO processing_log (article_id, phase, status, message, duration_ms, ts)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING id`
	err := repo.db.QueryRowContext(ctx, query,
		e.ArticleID, string(e.Phase), e.Status, e.Message, e.DurationMS, ts,
	).Scan(&e.ID)
	if err != nil {
		return fmt.Errorf("Append: %w", err)
	}
	e.Timestamp = ts
	return nil
}

// AppendBatch inserts all entries in a single multi-row statement.
func (repo *ProcessingLogRepo) AppendBatch(ctx context.Context, entries []*entity.ProcessingLogEntry) error {
	if len(entries) == 0 {
		return nil
	}

	var sb strings.Builder
	sb.WriteString(`INSERT INTO processing_log (article_id, phase, status, message, duration_ms, ts) VALUES `)

	args := make([]interface{}, 0, len(entries)*6)
	for i, e := range entries {
		ts := e.Timestamp
		if ts.IsZero() {
			ts = time.Now()
		}
		if i > 0 {
			sb.WriteString(", ")
		}
		base := i * 6
		fmt.Fprintf(&sb, "($%d, $%d, $%d, $%d, $%d, $%d)",
			base+1, base+2, base+3, base+4, base+5, base+6)
		args = append(args, e.ArticleID, string(e.Phase), e.Status, e.Message, e.DurationMS, ts)
	}

	if _, err := repo.db.ExecContext(ctx, sb.String(), args...); err != nil {
		return fmt.Errorf("AppendBatch: %w", err)
	}
	return nil
}

func (repo *ProcessingLogRepo) ListByArticle(ctx context.Context, articleID string, limit int) ([]*entity.ProcessingLogEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	const query = `
SELECT ` + processingLogColumns + `
FROM processing_log
WHERE article_id = $1
ORDER BY ts DESC
LIMIT $2`
	rows, err := repo.db.QueryContext(ctx, query, articleID, limit)
	if err != nil {
		return nil, fmt.Errorf("ListByArticle: %w", err)
	}
	defer func() { _ = rows.Close() }()

	entries := make([]*entity.ProcessingLogEntry, 0, limit)
	for rows.Next() {
		e, err := scanLogEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("ListByArticle: Scan: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (repo *ProcessingLogRepo) ListRecent(ctx context.Context, phase entity.Phase, limit int) ([]*entity.ProcessingLogEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	const query = `
SELECT ` + processingLogColumns + `
FROM processing_log
WHERE phase = $1
ORDER BY ts DESC
LIMIT $2`
	rows, err := repo.db.QueryContext(ctx, query, string(phase), limit)
	if err != nil {
		return nil, fmt.Errorf("ListRecent: %w", err)
	}
	defer func() { _ = rows.Close() }()

	entries := make([]*entity.ProcessingLogEntry, 0, limit)
	for rows.Next() {
		e, err := scanLogEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("ListRecent: Scan: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// CountSince aggregates entries per status for a phase, for run reports.
func (repo *ProcessingLogRepo) CountSince(ctx context.Context, phase entity.Phase, since time.Time) (map[string]int64, error) {
	const query = `
SELECT status, COUNT(*)
FROM processing_log
WHERE phase = $1
  AND ts >= $2
GROUP BY status`
	rows, err := repo.db.QueryContext(ctx, query, string(phase), since)
	if err != nil {
		return nil, fmt.Errorf("CountSince: %w", err)
	}
	defer func() { _ = rows.Close() }()

	counts := make(map[string]int64)
	for rows.Next() {
		var status string
		var count int64
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("CountSince: Scan: %w", err)
		}
		counts[status] = count
	}
	return counts, rows.Err()
}
