package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pipeline.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write temp config: %v", err)
	}
	return path
}

func TestLoadPipelineConfig_Defaults(t *testing.T) {
	cfg, err := LoadPipelineConfig("")
	if err != nil {
		t.Fatalf("LoadPipelineConfig() error = %v", err)
	}

	if cfg.Chunking.Strategy != "fixed" {
		t.Errorf("default chunking strategy = %q, want fixed", cfg.Chunking.Strategy)
	}
	if cfg.Chunking.Size != 500 || cfg.Chunking.Overlap != 50 {
		t.Errorf("default chunking = %d/%d, want 500/50", cfg.Chunking.Size, cfg.Chunking.Overlap)
	}
	if cfg.Dedup.Mode != "annotate" {
		t.Errorf("default dedup mode = %q, want annotate", cfg.Dedup.Mode)
	}
	if cfg.Dedup.Threshold != 0.8 {
		t.Errorf("default dedup threshold = %v, want 0.8", cfg.Dedup.Threshold)
	}
	if cfg.Embedding.BatchSize != 50 || cfg.Embedding.MaxPerRun != 1000 {
		t.Errorf("default embedding = %d/%d, want 50/1000",
			cfg.Embedding.BatchSize, cfg.Embedding.MaxPerRun)
	}
	if cfg.Ingest.Workers != 4 {
		t.Errorf("default ingest workers = %d, want 4", cfg.Ingest.Workers)
	}
	if cfg.Retrieval.Vector != 0.5 || cfg.Retrieval.Keyword != 0.3 || cfg.Retrieval.Rerank != 0.15 {
		t.Errorf("default retrieval weights = %v/%v/%v, want 0.5/0.3/0.15",
			cfg.Retrieval.Vector, cfg.Retrieval.Keyword, cfg.Retrieval.Rerank)
	}
}

func TestLoadPipelineConfig_FromFile(t *testing.T) {
	path := writeTempConfig(t, `
source:
  dir: /var/data/newswire
  pattern: "NewsML_*.xml"
chunking:
  strategy: sentence
  size: 800
  overlap: 100
dedup:
  hash: sha256
  mode: reject
  threshold: 0.9
embedding:
  batch_size: 25
  max_per_run: 500
  request_timeout: 30s
ingest:
  workers: 8
  enrich_threshold: 200
retrieval:
  vector: 0.6
  keyword: 0.2
  rerank: 0.1
  top_k: 10
  max_context_length: 4000
`)

	cfg, err := LoadPipelineConfig(path)
	if err != nil {
		t.Fatalf("LoadPipelineConfig() error = %v", err)
	}

	if cfg.Source.Dir != "/var/data/newswire" {
		t.Errorf("source dir = %q, want /var/data/newswire", cfg.Source.Dir)
	}
	if cfg.Source.Pattern != "NewsML_*.xml" {
		t.Errorf("source pattern = %q, want NewsML_*.xml", cfg.Source.Pattern)
	}
	if cfg.Chunking.Strategy != "sentence" || cfg.Chunking.Size != 800 {
		t.Errorf("chunking = %q/%d, want sentence/800", cfg.Chunking.Strategy, cfg.Chunking.Size)
	}
	if cfg.Dedup.Hash != "sha256" || cfg.Dedup.Mode != "reject" || cfg.Dedup.Threshold != 0.9 {
		t.Errorf("dedup = %q/%q/%v, want sha256/reject/0.9",
			cfg.Dedup.Hash, cfg.Dedup.Mode, cfg.Dedup.Threshold)
	}
	if cfg.Embedding.RequestTimeout != 30*time.Second {
		t.Errorf("embedding request_timeout = %v, want 30s", cfg.Embedding.RequestTimeout)
	}
	if cfg.Ingest.Workers != 8 || cfg.Ingest.EnrichThreshold != 200 {
		t.Errorf("ingest = %d/%d, want 8/200", cfg.Ingest.Workers, cfg.Ingest.EnrichThreshold)
	}
	if cfg.Retrieval.TopK != 10 || cfg.Retrieval.MaxContextLength != 4000 {
		t.Errorf("retrieval = %d/%d, want 10/4000",
			cfg.Retrieval.TopK, cfg.Retrieval.MaxContextLength)
	}
}

func TestLoadPipelineConfig_PartialFileKeepsDefaults(t *testing.T) {
	path := writeTempConfig(t, `
dedup:
  mode: reject
`)

	cfg, err := LoadPipelineConfig(path)
	if err != nil {
		t.Fatalf("LoadPipelineConfig() error = %v", err)
	}

	if cfg.Dedup.Mode != "reject" {
		t.Errorf("dedup mode = %q, want reject", cfg.Dedup.Mode)
	}
	// Untouched sections keep their defaults
	if cfg.Dedup.Hash != "md5" {
		t.Errorf("dedup hash = %q, want md5", cfg.Dedup.Hash)
	}
	if cfg.Chunking.Size != 500 {
		t.Errorf("chunking size = %d, want 500", cfg.Chunking.Size)
	}
	if cfg.Ingest.Workers != 4 {
		t.Errorf("ingest workers = %d, want 4", cfg.Ingest.Workers)
	}
}

func TestLoadPipelineConfig_EnvOverrides(t *testing.T) {
	path := writeTempConfig(t, `
ingest:
  workers: 8
`)

	t.Setenv("INGEST_WORKERS", "16")
	t.Setenv("DEDUP_MODE", "reject")
	t.Setenv("RETRIEVAL_WEIGHT_VECTOR", "0.7")
	t.Setenv("RETRIEVAL_WEIGHT_KEYWORD", "0.2")
	t.Setenv("RETRIEVAL_WEIGHT_RERANK", "0.05")
	t.Setenv("EMBED_REQUEST_TIMEOUT", "2m")

	cfg, err := LoadPipelineConfig(path)
	if err != nil {
		t.Fatalf("LoadPipelineConfig() error = %v", err)
	}

	// Environment beats the file
	if cfg.Ingest.Workers != 16 {
		t.Errorf("ingest workers = %d, want 16 (env override)", cfg.Ingest.Workers)
	}
	if cfg.Dedup.Mode != "reject" {
		t.Errorf("dedup mode = %q, want reject (env override)", cfg.Dedup.Mode)
	}
	if cfg.Retrieval.Vector != 0.7 {
		t.Errorf("retrieval vector weight = %v, want 0.7 (env override)", cfg.Retrieval.Vector)
	}
	if cfg.Embedding.RequestTimeout != 2*time.Minute {
		t.Errorf("embedding request_timeout = %v, want 2m (env override)", cfg.Embedding.RequestTimeout)
	}
}

func TestLoadPipelineConfig_InvalidEnvValueFallsBack(t *testing.T) {
	t.Setenv("INGEST_WORKERS", "not-a-number")

	cfg, err := LoadPipelineConfig("")
	if err != nil {
		t.Fatalf("LoadPipelineConfig() error = %v", err)
	}
	if cfg.Ingest.Workers != 4 {
		t.Errorf("ingest workers = %d, want default 4 on unparseable env", cfg.Ingest.Workers)
	}
}

func TestLoadPipelineConfig_MissingFile(t *testing.T) {
	_, err := LoadPipelineConfig("/nonexistent/pipeline.yaml")
	if err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestPipelineConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*PipelineConfig)
	}{
		{
			name:   "empty source dir",
			mutate: func(c *PipelineConfig) { c.Source.Dir = "" },
		},
		{
			name:   "unknown chunking strategy",
			mutate: func(c *PipelineConfig) { c.Chunking.Strategy = "recursive" },
		},
		{
			name:   "overlap not smaller than size",
			mutate: func(c *PipelineConfig) { c.Chunking.Overlap = c.Chunking.Size },
		},
		{
			name:   "unknown dedup hash",
			mutate: func(c *PipelineConfig) { c.Dedup.Hash = "crc32" },
		},
		{
			name:   "unknown dedup mode",
			mutate: func(c *PipelineConfig) { c.Dedup.Mode = "drop" },
		},
		{
			name:   "threshold above one",
			mutate: func(c *PipelineConfig) { c.Dedup.Threshold = 1.5 },
		},
		{
			name:   "zero batch size",
			mutate: func(c *PipelineConfig) { c.Embedding.BatchSize = 0 },
		},
		{
			name:   "max per run below batch size",
			mutate: func(c *PipelineConfig) { c.Embedding.MaxPerRun = 10 },
		},
		{
			name:   "zero workers",
			mutate: func(c *PipelineConfig) { c.Ingest.Workers = 0 },
		},
		{
			name:   "negative weight",
			mutate: func(c *PipelineConfig) { c.Retrieval.Vector = -0.1 },
		},
		{
			name: "weights above one",
			mutate: func(c *PipelineConfig) {
				c.Retrieval.Vector = 0.6
				c.Retrieval.Keyword = 0.5
			},
		},
		{
			name:   "top_k above cap",
			mutate: func(c *PipelineConfig) { c.Retrieval.TopK = 51 },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultPipelineConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error, got nil")
			}
		})
	}

	t.Run("defaults are valid", func(t *testing.T) {
		if err := DefaultPipelineConfig().Validate(); err != nil {
			t.Errorf("default config failed validation: %v", err)
		}
	})
}
