package ingest

import (
	"context"
	"fmt"
	"log/slog"

	"newswire-search/internal/dedup"
)

// CleanupReport summarizes one duplicate sweep.
type CleanupReport struct {
	Groups     int // content-hash groups that held duplicates
	Tombstoned int // articles logically deleted
	Vectors    int // delete markers pushed to the ANN index
}

// CleanupDuplicates sweeps articles whose content hash is shared, keeping
// the oldest of each group and tombstoning the rest in the store, the ANN
// index, and the keyword index. It catches what per-article detection
// missed, such as duplicates ingested concurrently or while detection was
// degraded.
func (s *Service) CleanupDuplicates(ctx context.Context) (*CleanupReport, error) {
	articles, err := s.articles.ListDuplicateContentHashes(ctx)
	if err != nil {
		return nil, fmt.Errorf("CleanupDuplicates: %w", err)
	}
	report := &CleanupReport{}
	if len(articles) == 0 {
		return report, nil
	}

	candidates := make([]dedup.Candidate, 0, len(articles))
	hashes := make(map[string]struct{})
	for _, a := range articles {
		candidates = append(candidates, toCandidate(a))
		hashes[a.ContentHash] = struct{}{}
	}
	report.Groups = len(hashes)

	doomed := dedup.PlanCleanup(candidates)
	if len(doomed) == 0 {
		return report, nil
	}

	// The index coordinator marks the articles tombstoned in the store and
	// pushes a delete marker per vector.
	result, err := s.index.Tombstone(ctx, doomed)
	if err != nil {
		return report, fmt.Errorf("CleanupDuplicates: %w", err)
	}
	report.Tombstoned = result.Articles
	report.Vectors = result.Tombstones

	if s.keywords != nil {
		doomedSet := make(map[int64]struct{}, len(doomed))
		for _, id := range doomed {
			doomedSet[id] = struct{}{}
		}
		externalIDs := make([]string, 0, len(doomed))
		for _, a := range articles {
			if _, gone := doomedSet[a.InternalID]; gone {
				externalIDs = append(externalIDs, a.ExternalID)
			}
		}
		if err := s.keywords.Remove(ctx, externalIDs); err != nil {
			slog.Warn("failed to remove duplicates from keyword index",
				slog.Int("articles", len(externalIDs)),
				slog.Any("error", err))
		}
	}

	slog.Info("duplicate cleanup completed",
		slog.Int("groups", report.Groups),
		slog.Int("tombstoned", report.Tombstoned),
		slog.Int("vector_tombstones", report.Vectors))
	return report, nil
}
