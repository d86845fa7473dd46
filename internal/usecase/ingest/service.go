// Package ingest orchestrates the collection pipeline: it discovers new
// wire documents per source, parses them into articles, runs dedup and
// enrichment, persists the survivors, and drains the embedding backlog into
// the vector and keyword indexes. A run is incremental by watermark; every
// per-article failure is recovered locally so one bad document never stops
// a source and one bad source never stops the run.
package ingest

import (
	"context"

	"newswire-search/internal/chunker"
	"newswire-search/internal/dedup"
	"newswire-search/internal/domain/entity"
	"newswire-search/internal/infra/embedder"
	"newswire-search/internal/infra/source"
	"newswire-search/internal/parser"
	"newswire-search/internal/repository"
	"newswire-search/internal/usecase/indexing"
)

const (
	defaultWorkers         = 4
	defaultEmbedBatchSize  = 50
	defaultEmbedMaxPerRun  = 1000
	defaultEnrichThreshold = 300
)

// ListerFactory resolves the document lister for a source type.
type ListerFactory interface {
	ForSource(src *entity.Source) (source.Lister, error)
}

// ContentFetcher fetches readable article text from a publisher page. Used
// for the enrichment pass; every error means "keep the wire body".
type ContentFetcher interface {
	FetchContent(ctx context.Context, url string) (string, error)
}

// VectorIndexer is the slice of the index coordinator the pipeline drives:
// pushing embedding records and tombstoning duplicates.
type VectorIndexer interface {
	Upsert(ctx context.Context, articles []*entity.Article, records []*entity.EmbeddingRecord) (*indexing.UpsertResult, error)
	Tombstone(ctx context.Context, articleIDs []int64) (*indexing.TombstoneResult, error)
}

// KeywordIndexer maintains the lexical index next to the store.
type KeywordIndexer interface {
	Add(ctx context.Context, articles []*entity.Article) error
	Remove(ctx context.Context, externalIDs []string) error
}

// RunNotifier pushes a completed run report to subscribers.
type RunNotifier interface {
	NotifyRunCompleted(ctx context.Context, report *RunReport) error
}

// Config tunes the pipeline.
type Config struct {
	// Workers bounds parallel document processing per source.
	Workers int

	// EmbedBatchSize is how many pending articles one embedding batch
	// loads from the store.
	EmbedBatchSize int

	// EmbedMaxPerRun caps articles embedded per run so a large backlog
	// drains across runs instead of starving the schedule.
	EmbedMaxPerRun int

	// EnrichThreshold is the body rune count below which an article with
	// a source URL gets an enrichment fetch.
	EnrichThreshold int
}

// DefaultConfig returns the production knobs.
func DefaultConfig() Config {
	return Config{
		Workers:         defaultWorkers,
		EmbedBatchSize:  defaultEmbedBatchSize,
		EmbedMaxPerRun:  defaultEmbedMaxPerRun,
		EnrichThreshold: defaultEnrichThreshold,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Workers <= 0 {
		c.Workers = d.Workers
	}
	if c.EmbedBatchSize <= 0 {
		c.EmbedBatchSize = d.EmbedBatchSize
	}
	if c.EmbedMaxPerRun <= 0 {
		c.EmbedMaxPerRun = d.EmbedMaxPerRun
	}
	if c.EnrichThreshold <= 0 {
		c.EnrichThreshold = d.EnrichThreshold
	}
	return c
}

// Service runs the pipeline. Construct with NewService; the zero value is
// not usable.
type Service struct {
	sources    repository.SourceRepository
	articles   repository.ArticleRepository
	metadata   repository.MetadataRepository
	embeddings repository.EmbeddingRepository
	logs       repository.ProcessingLogRepository

	listers ListerFactory
	embed   embedder.Embedder
	index   VectorIndexer

	parser   *parser.Parser
	hasher   *dedup.Hasher
	detector *dedup.Detector
	policy   *dedup.Policy
	chunker  *chunker.Chunker

	enricher ContentFetcher
	keywords KeywordIndexer
	notifier RunNotifier

	config Config
}

// Option configures the Service.
type Option func(*Service)

// WithConfig replaces the pipeline knobs. Zero fields keep their defaults.
func WithConfig(cfg Config) Option {
	return func(s *Service) {
		s.config = cfg.withDefaults()
	}
}

// WithParser overrides the wire parser, usually for a non-default timezone.
func WithParser(p *parser.Parser) Option {
	return func(s *Service) {
		if p != nil {
			s.parser = p
		}
	}
}

// WithHasher overrides the content fingerprint function. Defaults to MD5.
func WithHasher(h *dedup.Hasher) Option {
	return func(s *Service) {
		if h != nil {
			s.hasher = h
		}
	}
}

// WithDetector overrides the duplicate detector.
func WithDetector(d *dedup.Detector) Option {
	return func(s *Service) {
		if d != nil {
			s.detector = d
		}
	}
}

// WithPolicy sets what happens to near duplicates. Defaults to annotate.
func WithPolicy(p *dedup.Policy) Option {
	return func(s *Service) {
		if p != nil {
			s.policy = p
		}
	}
}

// WithChunker overrides the text chunker used before embedding.
func WithChunker(c *chunker.Chunker) Option {
	return func(s *Service) {
		if c != nil {
			s.chunker = c
		}
	}
}

// WithEnricher enables the enrichment pass. Without it short articles keep
// their wire body.
func WithEnricher(f ContentFetcher) Option {
	return func(s *Service) {
		s.enricher = f
	}
}

// WithKeywordIndexer enables lexical indexing of persisted articles.
func WithKeywordIndexer(k KeywordIndexer) Option {
	return func(s *Service) {
		s.keywords = k
	}
}

// WithNotifier enables run-completion notifications.
func WithNotifier(n RunNotifier) Option {
	return func(s *Service) {
		s.notifier = n
	}
}

// NewService creates the pipeline coordinator.
func NewService(
	sources repository.SourceRepository,
	articles repository.ArticleRepository,
	metadata repository.MetadataRepository,
	embeddings repository.EmbeddingRepository,
	logs repository.ProcessingLogRepository,
	listers ListerFactory,
	emb embedder.Embedder,
	index VectorIndexer,
	opts ...Option,
) *Service {
	s := &Service{
		sources:    sources,
		articles:   articles,
		metadata:   metadata,
		embeddings: embeddings,
		logs:       logs,
		listers:    listers,
		embed:      emb,
		index:      index,
		parser:     parser.New(),
		hasher:     dedup.NewHasher(dedup.StrengthMD5),
		detector:   dedup.NewDetector(),
		policy:     dedup.NewPolicy(dedup.ModeAnnotate),
		chunker:    chunker.New(),
		config:     DefaultConfig(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}
