package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"newswire-search/internal/dedup"
	"newswire-search/internal/domain/entity"
	"newswire-search/internal/infra/source"
	"newswire-search/internal/observability/metrics"
	"newswire-search/internal/parser"
	"newswire-search/internal/utils/text"
)

// RunReport summarizes one pipeline run. The int64 counters are updated
// atomically by the document workers.
type RunReport struct {
	RunID     string
	StartedAt time.Time
	Duration  time.Duration

	Sources int

	Discovered     int64
	FileDuplicates int64
	Parsed         int64
	ParseErrors    int64
	Enriched       int64
	Persisted      int64
	Duplicates     int64
	NearDuplicates int64

	Embedded int64
	Upserted int64
}

// Run ingests every active source incrementally: only documents newer than
// the source watermark are read. The embedding backlog is drained at the
// end, so articles persisted by this run normally leave it searchable.
func (s *Service) Run(ctx context.Context) (*RunReport, error) {
	return s.run(ctx, false)
}

// RunFull ignores the watermarks and re-reads every document the listers
// can still see. Stored duplicates are rejected by dedup, so a full run is
// safe to repeat after an aborted run or a restored archive.
func (s *Service) RunFull(ctx context.Context) (*RunReport, error) {
	return s.run(ctx, true)
}

func (s *Service) run(ctx context.Context, full bool) (*RunReport, error) {
	logger := slog.Default()
	report := &RunReport{RunID: uuid.NewString(), StartedAt: time.Now()}

	srcs, err := s.sources.ListActive(ctx)
	if err != nil {
		return report, fmt.Errorf("list active sources: %w", err)
	}
	report.Sources = len(srcs)

	for _, src := range srcs {
		if err := s.processSource(ctx, src, full, report); err != nil {
			report.Duration = time.Since(report.StartedAt)
			return report, err
		}
	}

	embedReport, embedErr := s.EmbedPending(ctx)
	if embedReport != nil {
		report.Embedded = int64(embedReport.Articles)
		report.Upserted = int64(embedReport.Vectors)
	}
	report.Duration = time.Since(report.StartedAt)
	if embedErr != nil {
		return report, fmt.Errorf("drain embedding backlog: %w", embedErr)
	}

	logger.Info("ingest run completed",
		slog.String("run_id", report.RunID),
		slog.Int("sources", report.Sources),
		slog.Int64("discovered", report.Discovered),
		slog.Int64("parsed", report.Parsed),
		slog.Int64("parse_errors", report.ParseErrors),
		slog.Int64("persisted", report.Persisted),
		slog.Int64("duplicates", report.Duplicates),
		slog.Int64("enriched", report.Enriched),
		slog.Int64("embedded", report.Embedded),
		slog.Int64("upserted", report.Upserted),
		slog.Duration("duration", report.Duration),
	)

	s.notifyRun(ctx, report)
	return report, nil
}

// processSource ingests one source. Discovery failures are logged and
// skipped so the other sources still run; store failures abort the run.
func (s *Service) processSource(ctx context.Context, src *entity.Source, full bool, report *RunReport) error {
	logger := slog.Default()
	sourceStart := time.Now()
	sourceID := strconv.FormatInt(src.ID, 10)

	lister, err := s.listers.ForSource(src)
	if err != nil {
		logger.Warn("no lister for source",
			slog.Int64("source_id", src.ID),
			slog.String("source_type", src.SourceType),
			slog.Any("error", err))
		metrics.IngestErrors.WithLabelValues(sourceID, "lister_unavailable").Inc()
		return nil
	}

	since := time.Time{}
	if !full && src.LastCrawledAt != nil {
		since = *src.LastCrawledAt
	}

	docs, err := lister.Discover(ctx, src, since)
	if err != nil {
		logger.Warn("failed to discover documents",
			slog.Int64("source_id", src.ID),
			slog.String("source_name", src.Name),
			slog.Any("error", err))
		metrics.IngestErrors.WithLabelValues(sourceID, "discover_failed").Inc()
		return nil
	}
	if len(docs) == 0 {
		logger.Info("source has no new documents",
			slog.Int64("source_id", src.ID),
			slog.String("source_name", src.Name))
		return nil
	}
	atomic.AddInt64(&report.Discovered, int64(len(docs)))

	// Identical drops land more than once when feeds overlap; collapse them
	// on raw bytes before parsing.
	seen := make(map[string]string, len(docs))
	var fresh, twins []source.Document
	for _, doc := range docs {
		fileHash := s.hasher.FileHash(doc.Raw)
		if first, dup := seen[fileHash]; dup {
			atomic.AddInt64(&report.FileDuplicates, 1)
			logger.Debug("skipping identical document",
				slog.String("document_id", doc.ID),
				slog.String("duplicate_of", first))
			twins = append(twins, doc)
			continue
		}
		seen[fileHash] = doc.ID
		fresh = append(fresh, doc)
	}

	beforePersisted := atomic.LoadInt64(&report.Persisted)
	beforeDuplicates := atomic.LoadInt64(&report.Duplicates)
	beforeParseErrors := atomic.LoadInt64(&report.ParseErrors)

	// handled[i] means fresh[i] is fully dealt with: persisted or rejected
	// as a duplicate. Parse failures leave the document behind for a rerun.
	handled := make([]bool, len(fresh))
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(s.config.Workers)
	for i, doc := range fresh {
		eg.Go(func() error {
			ok, err := s.processDocument(egCtx, src, doc, report)
			if err != nil {
				return err
			}
			handled[i] = ok
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		metrics.IngestErrors.WithLabelValues(sourceID, "process_failed").Inc()
		return fmt.Errorf("process documents for source %d: %w", src.ID, err)
	}

	// The watermark covers everything this run saw, so the next run starts
	// after the newest document regardless of per-file outcomes.
	var newest time.Time
	for _, doc := range docs {
		if doc.ModTime.After(newest) {
			newest = doc.ModTime
		}
	}
	safeCtx := context.WithoutCancel(ctx)
	if err := s.sources.AdvanceWatermark(safeCtx, src.ID, newest); err != nil {
		return fmt.Errorf("advance watermark for source %d: %w", src.ID, err)
	}

	if archiver, ok := lister.(source.Archiver); ok {
		s.archiveDocuments(archiver, src, fresh, handled, twins)
	}

	sourceDuration := time.Since(sourceStart)
	metrics.IngestRunDuration.WithLabelValues(sourceID).Observe(sourceDuration.Seconds())
	logger.Info("source ingest completed",
		slog.Int64("source_id", src.ID),
		slog.String("source_name", src.Name),
		slog.Int("documents", len(docs)),
		slog.Int64("persisted", atomic.LoadInt64(&report.Persisted)-beforePersisted),
		slog.Int64("duplicates", atomic.LoadInt64(&report.Duplicates)-beforeDuplicates),
		slog.Int64("parse_errors", atomic.LoadInt64(&report.ParseErrors)-beforeParseErrors),
		slog.Duration("duration", sourceDuration),
	)
	return nil
}

// processDocument runs one document through parse, enrichment, dedup, and
// persistence. The bool reports whether the document is fully handled. An
// error is returned only for store failures; everything else is recovered
// here so the worker pool keeps going.
func (s *Service) processDocument(ctx context.Context, src *entity.Source, doc source.Document, report *RunReport) (bool, error) {
	logger := slog.Default()

	parseStart := time.Now()
	article, meta, err := s.parser.Parse(doc.Raw)
	parseTook := time.Since(parseStart)
	if err != nil {
		metrics.ArticlesParsedTotal.WithLabelValues(parseFailureStatus(err)).Inc()
		atomic.AddInt64(&report.ParseErrors, 1)
		s.appendLog(ctx, &entity.ProcessingLogEntry{
			ArticleID:  doc.ID,
			Phase:      entity.PhaseParse,
			Status:     entity.LogStatusError,
			Message:    err.Error(),
			DurationMS: parseTook.Milliseconds(),
		})
		logger.Warn("failed to parse document",
			slog.String("document_id", doc.ID),
			slog.Int64("source_id", src.ID),
			slog.Any("error", err))
		return false, nil
	}
	metrics.ArticlesParsedTotal.WithLabelValues("success").Inc()
	atomic.AddInt64(&report.Parsed, 1)

	// Wire drops rarely carry the media code themselves.
	if article.MediaCode == "" && src.FeedConfig != nil {
		article.MediaCode = src.FeedConfig.MediaCode
	}

	if s.enrichArticle(ctx, article) {
		meta = s.parser.Reextract(article)
		atomic.AddInt64(&report.Enriched, 1)
	}

	entries := []*entity.ProcessingLogEntry{{
		ArticleID:  article.ExternalID,
		Phase:      entity.PhaseParse,
		Status:     entity.LogStatusOK,
		DurationMS: parseTook.Milliseconds(),
	}}

	decision := s.detect(ctx, article)
	metrics.DedupDecisionsTotal.WithLabelValues(string(decision.Kind)).Inc()
	outcome := s.policy.Apply(article, decision)
	if !outcome.Persist {
		atomic.AddInt64(&report.Duplicates, 1)
		entries = append(entries, &entity.ProcessingLogEntry{
			ArticleID: article.ExternalID,
			Phase:     entity.PhaseDedup,
			Status:    entity.LogStatusSkipped,
			Message:   outcome.Reason,
		})
		s.appendLog(ctx, entries...)
		logger.Info("skipping duplicate article",
			slog.String("external_id", article.ExternalID),
			slog.String("reason", outcome.Reason))
		return true, nil
	}
	if decision.Kind == dedup.KindNearDuplicate || decision.Kind == dedup.KindTitleDuplicate {
		atomic.AddInt64(&report.NearDuplicates, 1)
	}

	article.IngestedAt = time.Now().UTC()
	if err := s.articles.Create(ctx, article); err != nil {
		if errors.Is(err, entity.ErrDuplicate) {
			// Lost the race against a concurrent worker or an earlier run.
			atomic.AddInt64(&report.Duplicates, 1)
			entries = append(entries, &entity.ProcessingLogEntry{
				ArticleID: article.ExternalID,
				Phase:     entity.PhaseDedup,
				Status:    entity.LogStatusSkipped,
				Message:   "already stored",
			})
			s.appendLog(ctx, entries...)
			return true, nil
		}
		return false, fmt.Errorf("create article %s: %w", article.ExternalID, err)
	}
	atomic.AddInt64(&report.Persisted, 1)
	metrics.ArticlesIngestedTotal.WithLabelValues(src.Name).Inc()

	dedupEntry := &entity.ProcessingLogEntry{
		ArticleID: article.ExternalID,
		Phase:     entity.PhaseDedup,
		Status:    entity.LogStatusOK,
		Message:   outcome.Reason,
	}
	if dedupEntry.Message == "" {
		dedupEntry.Message = string(decision.Kind)
	}
	entries = append(entries, dedupEntry)
	s.appendLog(ctx, entries...)

	// Metadata and the keyword index trail the store; both can be rebuilt
	// from it, so their failures only degrade structured search.
	meta.ArticleID = article.InternalID
	if err := s.metadata.Upsert(ctx, meta); err != nil {
		logger.Warn("failed to upsert metadata",
			slog.String("external_id", article.ExternalID),
			slog.Any("error", err))
	}
	if s.keywords != nil {
		if err := s.keywords.Add(ctx, []*entity.Article{article}); err != nil {
			logger.Warn("failed to add article to keyword index",
				slog.String("external_id", article.ExternalID),
				slog.Any("error", err))
		}
	}
	return true, nil
}

// enrichArticle replaces a short wire body with the publisher page text.
// It never fails: any error keeps the wire body. Reports whether the body
// was replaced, in which case derived fields must be recomputed.
func (s *Service) enrichArticle(ctx context.Context, a *entity.Article) bool {
	if s.enricher == nil {
		return false
	}
	bodyRunes := text.CountRunes(a.Body)
	if bodyRunes >= s.config.EnrichThreshold {
		return false
	}
	if a.SourceURL == "" {
		metrics.EnrichmentFetchAttemptsTotal.WithLabelValues("skipped").Inc()
		return false
	}

	logger := slog.Default()
	fetchStart := time.Now()
	content, err := s.enricher.FetchContent(ctx, a.SourceURL)
	fetchTook := time.Since(fetchStart)
	metrics.EnrichmentFetchDuration.Observe(fetchTook.Seconds())
	if err != nil {
		metrics.EnrichmentFetchAttemptsTotal.WithLabelValues("failure").Inc()
		logger.Warn("enrichment fetch failed, keeping wire body",
			slog.String("external_id", a.ExternalID),
			slog.String("url", a.SourceURL),
			slog.Duration("fetch_duration", fetchTook),
			slog.Any("error", err))
		return false
	}
	metrics.EnrichmentFetchAttemptsTotal.WithLabelValues("success").Inc()
	metrics.EnrichmentFetchSize.Observe(float64(len(content)))

	fetchedRunes := text.CountRunes(content)
	if fetchedRunes <= bodyRunes {
		logger.Debug("fetched content not longer than wire body, keeping wire body",
			slog.String("external_id", a.ExternalID),
			slog.Int("wire_runes", bodyRunes),
			slog.Int("fetched_runes", fetchedRunes))
		return false
	}

	a.Body = content
	logger.Info("article body enriched",
		slog.String("external_id", a.ExternalID),
		slog.Int("wire_runes", bodyRunes),
		slog.Int("fetched_runes", fetchedRunes),
		slog.Duration("fetch_duration", fetchTook))
	return true
}

// detect classifies the article against the stored corpus. Detection is
// advisory: when the store cannot answer, the article proceeds as unique
// and the duplicate sweep catches it later.
func (s *Service) detect(ctx context.Context, a *entity.Article) dedup.Decision {
	decision, err := s.detector.Detect(ctx, &storeCandidates{articles: s.articles}, a)
	if err != nil {
		slog.Warn("dedup detection failed, treating article as unique",
			slog.String("external_id", a.ExternalID),
			slog.Any("error", err))
		return dedup.Decision{Kind: dedup.KindUnique}
	}
	return decision
}

// archiveDocuments moves fully handled documents out of the drop directory.
// Archive failures are not fatal: the watermark already moved past these
// files, so they are merely left behind.
func (s *Service) archiveDocuments(archiver source.Archiver, src *entity.Source, fresh []source.Document, handled []bool, twins []source.Document) {
	logger := slog.Default()
	archive := func(doc source.Document) {
		if err := archiver.Archive(src, doc); err != nil {
			logger.Warn("failed to archive document",
				slog.String("document_id", doc.ID),
				slog.Int64("source_id", src.ID),
				slog.Any("error", err))
		}
	}
	for i, doc := range fresh {
		if handled[i] {
			archive(doc)
		}
	}
	// Byte-identical twins are covered by whichever copy was processed.
	for _, doc := range twins {
		archive(doc)
	}
}

// appendLog writes audit entries. The log is advisory; failures are logged
// and never fail ingest.
func (s *Service) appendLog(ctx context.Context, entries ...*entity.ProcessingLogEntry) {
	if len(entries) == 0 {
		return
	}
	if err := s.logs.AppendBatch(ctx, entries); err != nil {
		slog.Warn("failed to append processing log",
			slog.Int("entries", len(entries)),
			slog.Any("error", err))
	}
}

func (s *Service) notifyRun(ctx context.Context, report *RunReport) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.NotifyRunCompleted(context.WithoutCancel(ctx), report); err != nil {
		slog.Warn("failed to dispatch run notification",
			slog.String("run_id", report.RunID),
			slog.Any("error", err))
	}
}

func parseFailureStatus(err error) string {
	if errors.Is(err, parser.ErrMissingIdentity) {
		return "missing_identity"
	}
	return "malformed"
}
