package indexing

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"newswire-search/internal/domain/entity"
	"newswire-search/internal/infra/vectorindex"
	"newswire-search/internal/observability/metrics"
	"newswire-search/internal/resilience/retry"
)

// UpsertResult summarizes one upsert call.
type UpsertResult struct {
	Articles int
	Vectors  int
	Batches  int
}

// Upsert publishes the embedding records to the ANN index and commits the
// outcome to the store. The call is the store-side unit: when every provider
// batch lands, all articles are marked embedded in one statement; when a
// batch exhausts its retries, every article in the call keeps
// is_embedded = false and gets a processing error, parking it out of the
// embed queue until the error is cleared.
// Datapoints that already reached the provider before a failure are
// harmless — upserts are idempotent per datapoint ID.
func (s *Service) Upsert(ctx context.Context, articles []*entity.Article, records []*entity.EmbeddingRecord) (*UpsertResult, error) {
	if len(records) == 0 {
		return &UpsertResult{}, nil
	}

	state, err := s.activeState(ctx)
	if err != nil {
		return nil, fmt.Errorf("Upsert: %w", err)
	}

	byID := make(map[int64]*entity.Article, len(articles))
	for _, a := range articles {
		if a != nil {
			byID[a.InternalID] = a
		}
	}

	// Only articles an embedding record points at get marked; extra articles
	// in the slice are left alone.
	referenced := make(map[int64]*entity.Article, len(byID))
	datapoints := make([]*vectorindex.Datapoint, 0, len(records))
	for _, record := range records {
		if err := record.Validate(); err != nil {
			return nil, fmt.Errorf("Upsert: %w", err)
		}
		if record.Dimension != state.Dimensions {
			return nil, fmt.Errorf("Upsert: record %s: %w", record.DatapointID(),
				&vectorindex.DimensionConflictError{Want: state.Dimensions, Got: record.Dimension})
		}
		article, ok := byID[record.ArticleID]
		if !ok {
			return nil, fmt.Errorf("Upsert: record %s references article %d, which is not in the batch",
				record.DatapointID(), record.ArticleID)
		}
		referenced[record.ArticleID] = article
		datapoints = append(datapoints, buildDatapoint(article, record))
	}

	started := time.Now()
	batches, err := s.pushDatapoints(ctx, datapoints)
	now := time.Now().UTC()

	if err != nil {
		ids := articleIDs(referenced)
		if markErr := s.articles.SetProcessingError(ctx, ids, truncateMessage(err.Error())); markErr != nil {
			slog.Error("recording index upsert failure",
				slog.Int("articles", len(ids)),
				slog.Any("error", markErr))
		}
		s.appendUpsertLogs(ctx, records, byID, entity.LogStatusError, err.Error(), time.Since(started))
		return nil, fmt.Errorf("Upsert: %w", err)
	}

	model := records[0].ModelID
	ids := articleIDs(referenced)
	if err := s.articles.MarkEmbedded(ctx, ids, model, now); err != nil {
		return nil, fmt.Errorf("Upsert: mark embedded: %w", err)
	}
	if err := s.states.AddVectors(ctx, state.ID, int64(len(datapoints)), now); err != nil {
		return nil, fmt.Errorf("Upsert: advance index state: %w", err)
	}
	s.bumpCachedVectors(int64(len(datapoints)), now)
	s.appendUpsertLogs(ctx, records, byID, entity.LogStatusOK, model, time.Since(started))

	slog.Info("vectors upserted",
		slog.Int("articles", len(ids)),
		slog.Int("vectors", len(datapoints)),
		slog.Int("batches", batches),
		slog.String("model", model))

	return &UpsertResult{Articles: len(ids), Vectors: len(datapoints), Batches: batches}, nil
}

// TombstoneResult summarizes a logical delete.
type TombstoneResult struct {
	Articles   int
	Tombstones int
}

// Tombstone logically deletes articles from the ANN index by upserting a
// delete marker per datapoint, then marks the articles tombstoned in the
// store. Articles without vectors are tombstoned in the store only.
func (s *Service) Tombstone(ctx context.Context, articleIDs []int64) (*TombstoneResult, error) {
	if len(articleIDs) == 0 {
		return &TombstoneResult{}, nil
	}

	state, err := s.activeState(ctx)
	if err != nil {
		return nil, fmt.Errorf("Tombstone: %w", err)
	}

	var markers []*vectorindex.Datapoint
	for _, id := range articleIDs {
		records, err := s.embeddings.FindByArticleID(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("Tombstone: article %d: %w", id, err)
		}
		for _, record := range records {
			markers = append(markers, vectorindex.TombstoneDatapoint(record.DatapointID(), id, state.Dimensions))
		}
	}

	if len(markers) > 0 {
		if _, err := s.pushDatapoints(ctx, markers); err != nil {
			return nil, fmt.Errorf("Tombstone: %w", err)
		}
	}

	if err := s.articles.Tombstone(ctx, articleIDs); err != nil {
		return nil, fmt.Errorf("Tombstone: %w", err)
	}

	now := time.Now().UTC()
	if len(markers) > 0 {
		if err := s.states.AddVectors(ctx, state.ID, -int64(len(markers)), now); err != nil {
			return nil, fmt.Errorf("Tombstone: advance index state: %w", err)
		}
		s.bumpCachedVectors(-int64(len(markers)), now)
	}

	slog.Info("articles tombstoned",
		slog.Int("articles", len(articleIDs)),
		slog.Int("tombstones", len(markers)))

	return &TombstoneResult{Articles: len(articleIDs), Tombstones: len(markers)}, nil
}

// pushDatapoints sends the datapoints to the provider in batches, each
// batch rate-limited, retried with backoff, and guarded by the circuit
// breaker. Returns how many batches were sent.
func (s *Service) pushDatapoints(ctx context.Context, datapoints []*vectorindex.Datapoint) (int, error) {
	batches := 0
	for start := 0; start < len(datapoints); start += s.batchSize {
		end := start + s.batchSize
		if end > len(datapoints) {
			end = len(datapoints)
		}
		chunk := datapoints[start:end]

		if err := s.limiter.Wait(ctx); err != nil {
			return batches, fmt.Errorf("rate limit: %w", err)
		}

		batchStart := time.Now()
		err := s.retryUpsert(ctx, chunk)
		metrics.IndexUpsertDuration.Observe(time.Since(batchStart).Seconds())

		if err != nil {
			metrics.IndexUpsertsTotal.WithLabelValues("failure").Inc()
			return batches, err
		}
		metrics.IndexUpsertsTotal.WithLabelValues("success").Inc()
		batches++
	}
	return batches, nil
}

func (s *Service) retryUpsert(ctx context.Context, chunk []*vectorindex.Datapoint) error {
	return retry.WithBackoff(ctx, s.retryCfg, func() error {
		_, err := s.breaker.Execute(func() (interface{}, error) {
			return nil, s.provider.Upsert(ctx, chunk)
		})
		return err
	})
}

// buildDatapoint projects an article and one of its embedding records into
// the ANN datapoint shape. Calendar fields come from the article's own zone
// so date filters match the wire-local publication day; the timestamp itself
// is normalized to UTC for range comparisons.
func buildDatapoint(article *entity.Article, record *entity.EmbeddingRecord) *vectorindex.Datapoint {
	year, month, day := article.PublishTime.Date()
	return &vectorindex.Datapoint{
		ID:          record.DatapointID(),
		ArticleID:   article.InternalID,
		ExternalID:  article.ExternalID,
		ChunkIndex:  record.ChunkIndex,
		Vector:      record.Vector,
		ArticleType: string(article.ArticleType),
		MediaCode:   article.MediaCode,
		Categories:  article.CategoryNames(),
		Keywords:    article.KeywordTexts(),
		Year:        year,
		Month:       int(month),
		Day:         day,
		Importance:  article.ImportanceScore,
		PublishedAt: article.PublishTime.UTC(),
	}
}

func (s *Service) appendUpsertLogs(ctx context.Context, records []*entity.EmbeddingRecord, byID map[int64]*entity.Article, status, message string, took time.Duration) {
	seen := make(map[int64]bool, len(byID))
	entries := make([]*entity.ProcessingLogEntry, 0, len(byID))
	for _, record := range records {
		if seen[record.ArticleID] {
			continue
		}
		seen[record.ArticleID] = true
		article := byID[record.ArticleID]
		if article == nil {
			continue
		}
		entries = append(entries, &entity.ProcessingLogEntry{
			ArticleID:  article.ExternalID,
			Phase:      entity.PhaseIndexUpsert,
			Status:     status,
			Message:    truncateMessage(message),
			DurationMS: took.Milliseconds(),
			Timestamp:  time.Now().UTC(),
		})
	}
	if len(entries) == 0 {
		return
	}
	// 감사 로그 실패가 업서트 결과를 뒤집지는 않는다
	if err := s.logs.AppendBatch(ctx, entries); err != nil {
		slog.Warn("appending index upsert log", slog.Any("error", err))
	}
}

func articleIDs(byID map[int64]*entity.Article) []int64 {
	ids := make([]int64, 0, len(byID))
	for id := range byID {
		ids = append(ids, id)
	}
	return ids
}

const maxErrorMessage = 500

func truncateMessage(msg string) string {
	if len(msg) <= maxErrorMessage {
		return msg
	}
	return msg[:maxErrorMessage]
}
