package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"newswire-search/internal/domain/entity"
	"newswire-search/internal/infra/embedder"
	"newswire-search/internal/parser"
)

// processingErrorLimit keeps parked error messages at a readable size.
const processingErrorLimit = 500

// EmbedReport summarizes one backlog drain.
type EmbedReport struct {
	Articles int // articles marked embedded
	Vectors  int // vectors pushed to the ANN index
	Reused   int // stored vectors reused because text and model were unchanged
	Batches  int // provider batches pushed
	Failed   int // articles parked with a processing error
}

// EmbedPending drains the embedding backlog: unembedded articles are chunked,
// embedded, written to the durable vector store, and pushed to the ANN index,
// which marks them embedded. A failed provider batch parks its articles with
// a processing error and the drain moves on; an index failure aborts, since
// the next batch would hit the same index.
func (s *Service) EmbedPending(ctx context.Context) (*EmbedReport, error) {
	report := &EmbedReport{}
	remaining := s.config.EmbedMaxPerRun
	for remaining > 0 {
		limit := s.config.EmbedBatchSize
		if limit > remaining {
			limit = remaining
		}
		batch, err := s.articles.ListUnembedded(ctx, limit)
		if err != nil {
			return report, fmt.Errorf("EmbedPending: list unembedded: %w", err)
		}
		if len(batch) == 0 {
			break
		}
		remaining -= len(batch)

		if err := s.embedBatch(ctx, batch, report); err != nil {
			return report, fmt.Errorf("EmbedPending: %w", err)
		}
		if len(batch) < limit {
			break
		}
	}

	if report.Articles > 0 || report.Failed > 0 {
		slog.Info("embedding backlog drained",
			slog.Int("articles", report.Articles),
			slog.Int("vectors", report.Vectors),
			slog.Int("reused", report.Reused),
			slog.Int("failed", report.Failed),
			slog.String("model", s.embed.ModelID()))
	}
	return report, nil
}

// embedBatch embeds one store page of articles. Vectors whose input text and
// model match a stored record are reused without a provider call.
func (s *Service) embedBatch(ctx context.Context, batch []*entity.Article, report *EmbedReport) error {
	ids := make([]int64, 0, len(batch))
	for _, a := range batch {
		ids = append(ids, a.InternalID)
	}

	stored := s.loadStoredVectors(ctx, ids)

	modelID := s.embed.ModelID()
	provider := s.embed.Provider()
	dims := s.embed.Dimensions()

	var (
		records      []*entity.EmbeddingRecord
		pendingTexts []string
		pendingAt    []int // records index awaiting a vector
	)
	for _, a := range batch {
		chunks := s.chunker.Split(embedder.BuildChunkInput(a))
		metaHash := parser.MetadataHash(a.ExternalID, a.Title, a.CategoryNames(), a.KeywordTexts())
		for _, chunk := range chunks {
			textHash := embedder.InputHash(chunk.Text)
			record := &entity.EmbeddingRecord{
				ArticleID:    a.InternalID,
				ExternalID:   a.ExternalID,
				ChunkIndex:   chunk.Index,
				Dimension:    dims,
				TextHash:     textHash,
				MetadataHash: metaHash,
				Provider:     provider,
				ModelID:      modelID,
			}
			prev := stored[vectorKey{a.InternalID, chunk.Index}]
			if prev != nil && prev.TextHash == textHash && prev.ModelID == modelID && len(prev.Vector) == dims {
				record.Vector = prev.Vector
				report.Reused++
			} else {
				pendingAt = append(pendingAt, len(records))
				pendingTexts = append(pendingTexts, chunk.Text)
			}
			records = append(records, record)
		}
	}

	if len(pendingTexts) > 0 {
		vectors, err := s.embed.EmbedBatch(ctx, pendingTexts)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			return s.parkBatch(ctx, batch, ids, report, err)
		}
		if len(vectors) != len(pendingTexts) {
			return s.parkBatch(ctx, batch, ids, report,
				fmt.Errorf("embedder returned %d vectors for %d inputs", len(vectors), len(pendingTexts)))
		}
		for i, vector := range vectors {
			records[pendingAt[i]].Vector = vector
		}
	}

	if err := s.embeddings.UpsertBatch(ctx, records); err != nil {
		return fmt.Errorf("persist embedding records: %w", err)
	}
	result, err := s.index.Upsert(ctx, batch, records)
	if err != nil {
		// The index coordinator already parked push failures; config
		// errors like a missing deployment hit every later batch too.
		report.Failed += len(batch)
		return fmt.Errorf("index upsert: %w", err)
	}
	report.Articles += result.Articles
	report.Vectors += result.Vectors
	report.Batches += result.Batches
	return nil
}

// parkBatch records an embedding failure on every article of the batch and
// lets the drain continue with the next page. Parked articles drop out of
// ListUnembedded until the error is cleared.
func (s *Service) parkBatch(ctx context.Context, batch []*entity.Article, ids []int64, report *EmbedReport, cause error) error {
	report.Failed += len(batch)
	if err := s.articles.SetProcessingError(ctx, ids, truncateMessage(cause.Error())); err != nil {
		return fmt.Errorf("record embedding failure: %w", err)
	}

	entries := make([]*entity.ProcessingLogEntry, 0, len(batch))
	for _, a := range batch {
		entries = append(entries, &entity.ProcessingLogEntry{
			ArticleID: a.ExternalID,
			Phase:     entity.PhaseEmbed,
			Status:    entity.LogStatusError,
			Message:   truncateMessage(cause.Error()),
		})
	}
	s.appendLog(ctx, entries...)

	slog.Warn("embedding batch failed, articles parked",
		slog.Int("articles", len(batch)),
		slog.Any("error", cause))
	return nil
}

type vectorKey struct {
	articleID int64
	chunk     int
}

// loadStoredVectors fetches existing records for reuse checks. Failing to
// load them only costs provider calls, so errors degrade to re-embedding.
func (s *Service) loadStoredVectors(ctx context.Context, ids []int64) map[vectorKey]*entity.EmbeddingRecord {
	stored, err := s.embeddings.FindByArticleIDs(ctx, ids)
	if err != nil {
		slog.Warn("failed to load stored vectors, re-embedding batch",
			slog.Int("articles", len(ids)),
			slog.Any("error", err))
		return nil
	}
	byKey := make(map[vectorKey]*entity.EmbeddingRecord, len(stored))
	for _, record := range stored {
		byKey[vectorKey{record.ArticleID, record.ChunkIndex}] = record
	}
	return byKey
}

func truncateMessage(msg string) string {
	if len(msg) <= processingErrorLimit {
		return msg
	}
	return msg[:processingErrorLimit]
}
