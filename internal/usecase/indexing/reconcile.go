package indexing

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"newswire-search/internal/infra/vectorindex"
)

const (
	reconcilePageSize = 500
	reconcileListSize = 1000
)

// ReconcileReport summarizes one reconciliation pass.
type ReconcileReport struct {
	ArticlesScanned int
	VectorsChecked  int
	Missing         int
	Reupserted      int
	TotalVectors    int64
}

// Reconcile walks every embedded article, verifies each of its datapoints
// is live in the ANN index, and re-upserts the ones that are not. The pass
// ends by overwriting the state's vector count with the provider's own,
// correcting any drift left by at-least-once upserts.
//
// Re-upserts do not touch is_embedded or processing_error: the articles are
// already marked embedded and the store copy is the source of truth.
func (s *Service) Reconcile(ctx context.Context) (*ReconcileReport, error) {
	state, err := s.activeState(ctx)
	if err != nil {
		return nil, fmt.Errorf("Reconcile: %w", err)
	}

	live, err := s.collectLiveIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("Reconcile: %w", err)
	}

	report := &ReconcileReport{}
	var pending []*vectorindex.Datapoint

	afterID := int64(0)
	for {
		articles, err := s.articles.ListEmbedded(ctx, afterID, reconcilePageSize)
		if err != nil {
			return nil, fmt.Errorf("Reconcile: list embedded after %d: %w", afterID, err)
		}
		if len(articles) == 0 {
			break
		}

		ids := make([]int64, 0, len(articles))
		byID := make(map[int64]int, len(articles))
		for i, a := range articles {
			ids = append(ids, a.InternalID)
			byID[a.InternalID] = i
		}

		records, err := s.embeddings.FindByArticleIDs(ctx, ids)
		if err != nil {
			return nil, fmt.Errorf("Reconcile: load vectors: %w", err)
		}

		for _, record := range records {
			report.VectorsChecked++
			if live[record.DatapointID()] {
				continue
			}
			report.Missing++
			idx, ok := byID[record.ArticleID]
			if !ok {
				continue
			}
			pending = append(pending, buildDatapoint(articles[idx], record))
		}

		report.ArticlesScanned += len(articles)
		afterID = articles[len(articles)-1].InternalID
		if len(articles) < reconcilePageSize {
			break
		}
	}

	if len(pending) > 0 {
		if _, err := s.pushDatapoints(ctx, pending); err != nil {
			return nil, fmt.Errorf("Reconcile: re-upsert: %w", err)
		}
		report.Reupserted = len(pending)
	}

	status, err := s.provider.Status(ctx)
	if err != nil {
		return nil, fmt.Errorf("Reconcile: provider status: %w", err)
	}
	now := time.Now().UTC()
	if err := s.states.SetTotalVectors(ctx, state.ID, status.TotalVectors, now); err != nil {
		return nil, fmt.Errorf("Reconcile: correct vector count: %w", err)
	}
	s.setCachedVectors(status.TotalVectors, now)
	report.TotalVectors = status.TotalVectors

	slog.Info("index reconciled",
		slog.Int("articles_scanned", report.ArticlesScanned),
		slog.Int("vectors_checked", report.VectorsChecked),
		slog.Int("missing", report.Missing),
		slog.Int("reupserted", report.Reupserted),
		slog.Int64("total_vectors", report.TotalVectors))

	return report, nil
}

// collectLiveIDs pages the provider's live datapoint IDs into a set.
func (s *Service) collectLiveIDs(ctx context.Context) (map[string]bool, error) {
	live := make(map[string]bool)
	cursor := ""
	for {
		ids, next, err := s.provider.ListDatapointIDs(ctx, cursor, reconcileListSize)
		if err != nil {
			return nil, fmt.Errorf("list datapoints at %q: %w", cursor, err)
		}
		for _, id := range ids {
			live[id] = true
		}
		if next == "" || next == cursor {
			break
		}
		cursor = next
	}
	return live, nil
}
