package sqlite

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

// logRowParams is the bound-parameter count of one multi-row VALUES entry.
const logRowParams = 6

// ProcessingLogRepo implements the ProcessingLogRepository interface for
// SQLite. The log is append-only; rows are never updated.
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
	ts = ts.UTC()

	const query = `
INSERT INTO processing_log (article_id, phase, status, message, duration_ms, ts)
VALUES (?, ?, ?, ?, ?, ?)`
	res, err := repo.db.ExecContext(ctx, query,
		e.ArticleID, string(e.Phase), e.Status, e.Message, e.DurationMS, ts,
	)
	if err != nil {
		return fmt.Errorf("Append: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("Append: LastInsertId: %w", err)
	}
	e.ID = id
	e.Timestamp = ts
	return nil
}

// AppendBatch inserts the entries in multi-row statements, chunked to stay
// under the host parameter cap.
func (repo *ProcessingLogRepo) AppendBatch(ctx context.Context, entries []*entity.ProcessingLogEntry) error {
	if len(entries) == 0 {
		return nil
	}

	const rowsPerStatement = maxHostParams / logRowParams

	for start := 0; start < len(entries); start += rowsPerStatement {
		end := start + rowsPerStatement
		if end > len(entries) {
			end = len(entries)
		}
		chunk := entries[start:end]

		var sb strings.Builder
		sb.WriteString(`INSERT INTO processing_log (article_id, phase, status, message, duration_ms, ts) VALUES `)

		args := make([]interface{}, 0, len(chunk)*logRowParams)
		for i, e := range chunk {
			ts := e.Timestamp
			if ts.IsZero() {
				ts = time.Now()
			}
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString("(?, ?, ?, ?, ?, ?)")
			args = append(args, e.ArticleID, string(e.Phase), e.Status, e.Message, e.DurationMS, ts.UTC())
		}

		if _, err := repo.db.ExecContext(ctx, sb.String(), args...); err != nil {
			return fmt.Errorf("AppendBatch: %w", err)
		}
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
WHERE article_id = ?
ORDER BY ts DESC
LIMIT ?`
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
WHERE phase = ?
ORDER BY ts DESC
LIMIT ?`
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
WHERE phase = ?
  AND ts >= ?
GROUP BY status`
	rows, err := repo.db.QueryContext(ctx, query, string(phase), since.UTC())
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
