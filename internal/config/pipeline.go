package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"newswire-search/internal/chunker"
	"newswire-search/internal/dedup"
)

// PipelineConfig holds the tunables for the ingestion and retrieval
// pipeline. Values come from a YAML file with environment variable
// overrides on top, so a deployment can ship one file and still adjust
// individual knobs per environment.
type PipelineConfig struct {
	// Source configures where raw article XML is discovered.
	Source SourceSection `yaml:"source"`

	// Chunking configures how indexing text is split for embedding.
	Chunking ChunkingSection `yaml:"chunking"`

	// Dedup configures duplicate detection and the near-duplicate policy.
	Dedup DedupSection `yaml:"dedup"`

	// Embedding configures the embedding batch sizing.
	Embedding EmbeddingSection `yaml:"embedding"`

	// Ingest configures pipeline concurrency and enrichment.
	Ingest IngestSection `yaml:"ingest"`

	// Retrieval configures the hybrid retrieval blend.
	Retrieval RetrievalSection `yaml:"retrieval"`
}

// SourceSection configures article discovery.
type SourceSection struct {
	// Dir is the directory scanned for article XML files.
	Dir string `yaml:"dir"`

	// Pattern is the glob matched against file names. Default: "*.xml"
	Pattern string `yaml:"pattern"`
}

// ChunkingSection configures text chunking for embedding.
type ChunkingSection struct {
	// Strategy selects the chunk boundary rule:
	// "fixed", "sentence", "paragraph", or "semantic".
	Strategy string `yaml:"strategy"`

	// Size is the chunk size in runes. Default: 500
	Size int `yaml:"size"`

	// Overlap is how many runes consecutive chunks share. Default: 50
	Overlap int `yaml:"overlap"`
}

// DedupSection configures duplicate detection.
type DedupSection struct {
	// Hash selects the content fingerprint function:
	// "md5" (default), "sha1", or "sha256".
	Hash string `yaml:"hash"`

	// Mode selects what happens to near duplicates:
	// "annotate" (default) or "reject".
	Mode string `yaml:"mode"`

	// Threshold is the weighted similarity at or above which two articles
	// are near duplicates. Default: 0.8
	Threshold float64 `yaml:"threshold"`
}

// EmbeddingSection configures embedding batch sizing.
type EmbeddingSection struct {
	// BatchSize is how many pending articles one embedding batch loads.
	// Default: 50
	BatchSize int `yaml:"batch_size"`

	// MaxPerRun caps articles embedded per run. Default: 1000
	MaxPerRun int `yaml:"max_per_run"`

	// RequestTimeout bounds a single embedding provider call.
	// Default: 60s
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

// IngestSection configures pipeline concurrency and content enrichment.
type IngestSection struct {
	// Workers bounds parallel document processing per source. Default: 4
	Workers int `yaml:"workers"`

	// EnrichThreshold is the body rune count below which an article with
	// a source URL gets an enrichment fetch. Default: 300
	EnrichThreshold int `yaml:"enrich_threshold"`
}

// RetrievalSection configures the hybrid retrieval blend. Weights must be
// non-negative and sum to at most 1.0; the remainder is the recency factor.
type RetrievalSection struct {
	Vector  float64 `yaml:"vector"`
	Keyword float64 `yaml:"keyword"`
	Rerank  float64 `yaml:"rerank"`

	// TopK is the default result count when a request does not set one.
	// Default: 5
	TopK int `yaml:"top_k"`

	// MaxContextLength caps assembled context in runes. Default: 8000
	MaxContextLength int `yaml:"max_context_length"`
}

// DefaultPipelineConfig returns the production defaults. These mirror the
// package-level defaults of the components the config feeds, so an empty
// file and no file at all behave identically.
func DefaultPipelineConfig() *PipelineConfig {
	return &PipelineConfig{
		Source: SourceSection{
			Dir:     "./data/articles",
			Pattern: "*.xml",
		},
		Chunking: ChunkingSection{
			Strategy: string(chunker.StrategyFixed),
			Size:     chunker.DefaultSize,
			Overlap:  chunker.DefaultOverlap,
		},
		Dedup: DedupSection{
			Hash:      string(dedup.StrengthMD5),
			Mode:      string(dedup.ModeAnnotate),
			Threshold: dedup.DefaultThreshold,
		},
		Embedding: EmbeddingSection{
			BatchSize:      50,
			MaxPerRun:      1000,
			RequestTimeout: 60 * time.Second,
		},
		Ingest: IngestSection{
			Workers:         4,
			EnrichThreshold: 300,
		},
		Retrieval: RetrievalSection{
			Vector:           0.5,
			Keyword:          0.3,
			Rerank:           0.15,
			TopK:             5,
			MaxContextLength: 8000,
		},
	}
}

// LoadPipelineConfig loads pipeline configuration. An empty path returns
// the defaults with environment overrides applied; otherwise the YAML file
// is read first and environment variables override its values.
func LoadPipelineConfig(path string) (*PipelineConfig, error) {
	cfg := DefaultPipelineConfig()

	if path != "" {
		// #nosec G304 -- path comes from a CLI flag or deployment config, not user input
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read pipeline config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse pipeline config: %w", err)
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid pipeline configuration: %w", err)
	}
	return cfg, nil
}

// applyEnvOverrides lets individual knobs be adjusted per environment
// without editing the config file.
func (c *PipelineConfig) applyEnvOverrides() {
	c.Source.Dir = getEnvOrDefault("SOURCE_XML_DIR", c.Source.Dir)
	c.Source.Pattern = getEnvOrDefault("SOURCE_XML_PATTERN", c.Source.Pattern)

	c.Chunking.Strategy = getEnvOrDefault("CHUNK_STRATEGY", c.Chunking.Strategy)
	c.Chunking.Size = getEnvInt("CHUNK_SIZE", c.Chunking.Size)
	c.Chunking.Overlap = getEnvInt("CHUNK_OVERLAP", c.Chunking.Overlap)

	c.Dedup.Hash = getEnvOrDefault("DEDUP_HASH", c.Dedup.Hash)
	c.Dedup.Mode = getEnvOrDefault("DEDUP_MODE", c.Dedup.Mode)
	c.Dedup.Threshold = getEnvFloat("DEDUP_SIMILARITY_THRESHOLD", c.Dedup.Threshold)

	c.Embedding.BatchSize = getEnvInt("EMBED_BATCH_SIZE", c.Embedding.BatchSize)
	c.Embedding.MaxPerRun = getEnvInt("EMBED_MAX_PER_RUN", c.Embedding.MaxPerRun)
	c.Embedding.RequestTimeout = getEnvDuration("EMBED_REQUEST_TIMEOUT", c.Embedding.RequestTimeout)

	c.Ingest.Workers = getEnvInt("INGEST_WORKERS", c.Ingest.Workers)
	c.Ingest.EnrichThreshold = getEnvInt("INGEST_ENRICH_THRESHOLD", c.Ingest.EnrichThreshold)

	c.Retrieval.Vector = getEnvFloat("RETRIEVAL_WEIGHT_VECTOR", c.Retrieval.Vector)
	c.Retrieval.Keyword = getEnvFloat("RETRIEVAL_WEIGHT_KEYWORD", c.Retrieval.Keyword)
	c.Retrieval.Rerank = getEnvFloat("RETRIEVAL_WEIGHT_RERANK", c.Retrieval.Rerank)
	c.Retrieval.TopK = getEnvInt("RETRIEVAL_TOP_K", c.Retrieval.TopK)
	c.Retrieval.MaxContextLength = getEnvInt("RETRIEVAL_MAX_CONTEXT_LENGTH", c.Retrieval.MaxContextLength)
}

// Validate checks configuration correctness.
func (c *PipelineConfig) Validate() error {
	if c.Source.Dir == "" {
		return fmt.Errorf("source dir cannot be empty")
	}
	if c.Source.Pattern == "" {
		return fmt.Errorf("source pattern cannot be empty")
	}

	if !chunker.Strategy(c.Chunking.Strategy).IsValid() {
		return fmt.Errorf("chunking strategy %q is invalid", c.Chunking.Strategy)
	}
	if c.Chunking.Size <= 0 {
		return fmt.Errorf("chunking size must be positive")
	}
	if c.Chunking.Overlap < 0 || c.Chunking.Overlap >= c.Chunking.Size {
		return fmt.Errorf("chunking overlap must be non-negative and smaller than size")
	}

	if !dedup.Strength(c.Dedup.Hash).IsValid() {
		return fmt.Errorf("dedup hash %q is invalid", c.Dedup.Hash)
	}
	if !dedup.Mode(c.Dedup.Mode).IsValid() {
		return fmt.Errorf("dedup mode %q is invalid", c.Dedup.Mode)
	}
	if c.Dedup.Threshold <= 0 || c.Dedup.Threshold > 1 {
		return fmt.Errorf("dedup threshold must be between 0.0 and 1.0")
	}

	if c.Embedding.BatchSize <= 0 {
		return fmt.Errorf("embedding batch_size must be positive")
	}
	if c.Embedding.MaxPerRun < c.Embedding.BatchSize {
		return fmt.Errorf("embedding max_per_run must be at least batch_size")
	}
	if c.Embedding.RequestTimeout <= 0 {
		return fmt.Errorf("embedding request_timeout must be positive")
	}

	if c.Ingest.Workers <= 0 {
		return fmt.Errorf("ingest workers must be positive")
	}
	if c.Ingest.EnrichThreshold <= 0 {
		return fmt.Errorf("ingest enrich_threshold must be positive")
	}

	if c.Retrieval.Vector < 0 || c.Retrieval.Keyword < 0 || c.Retrieval.Rerank < 0 {
		return fmt.Errorf("retrieval weights must be non-negative")
	}
	if sum := c.Retrieval.Vector + c.Retrieval.Keyword + c.Retrieval.Rerank; sum > 1.0+1e-9 {
		return fmt.Errorf("retrieval weights must sum to at most 1.0")
	}
	if c.Retrieval.TopK <= 0 || c.Retrieval.TopK > 50 {
		return fmt.Errorf("retrieval top_k must be between 1 and 50")
	}
	if c.Retrieval.MaxContextLength <= 0 {
		return fmt.Errorf("retrieval max_context_length must be positive")
	}

	return nil
}

// getEnvOrDefault returns environment variable value or default.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt parses integer environment variable with default.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.Atoi(value)
		if err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getEnvFloat parses float environment variable with default.
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.ParseFloat(value, 64)
		if err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getEnvDuration parses duration environment variable with default.
// Supports formats like "30s", "1m", "2h".
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		parsed, err := time.ParseDuration(value)
		if err == nil {
			return parsed
		}
	}
	return defaultValue
}
