package fetcher

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds the knobs for the enrichment fetcher. Enrichment pulls the
// publisher page for articles whose wire body came in short, so the settings
// split into a quality gate (Threshold), resource protection (Timeout,
// MaxBodySize, MaxRedirects, Parallelism), and network security
// (DenyPrivateIPs).
type Config struct {
	// Enabled toggles enrichment without redeploying. When false the
	// pipeline keeps every wire body as-is.
	Enabled bool

	// Threshold is the minimum body length in runes below which an article
	// with a source URL gets an enrichment fetch. Bodies at or above the
	// threshold are considered complete. Default: 300.
	Threshold int

	// Timeout bounds a single publisher page request. Default: 10s.
	Timeout time.Duration

	// Parallelism caps concurrent enrichment fetches inside one ingest run.
	// Default: 10.
	Parallelism int

	// MaxBodySize is the largest response body accepted, in bytes. The
	// limit is enforced while reading, not from the Content-Length header.
	// Default: 10MB.
	MaxBodySize int64

	// MaxRedirects caps the redirect chain. Every redirect target goes
	// through the same SSRF validation as the initial URL. Default: 5.
	MaxRedirects int

	// DenyPrivateIPs rejects URLs that resolve to loopback, private, or
	// link-local addresses. Always true in production. Default: true.
	DenyPrivateIPs bool
}

// DefaultConfig returns production defaults for the enrichment fetcher.
func DefaultConfig() Config {
	return Config{
		Enabled:        true,
		Threshold:      300,
		Timeout:        10 * time.Second,
		Parallelism:    10,
		MaxBodySize:    10 * 1024 * 1024, // 10MB
		MaxRedirects:   5,
		DenyPrivateIPs: true,
	}
}

// Validate checks the configuration for values that would weaken the
// resource limits or stall the pipeline.
func (c *Config) Validate() error {
	if c.Threshold < 0 {
		return fmt.Errorf("threshold must be non-negative, got %d", c.Threshold)
	}

	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got %v", c.Timeout)
	}

	if c.Parallelism < 1 || c.Parallelism > 50 {
		return fmt.Errorf("parallelism must be between 1 and 50, got %d", c.Parallelism)
	}

	minBodySize := int64(1024)              // 1KB
	maxBodySize := int64(100 * 1024 * 1024) // 100MB
	if c.MaxBodySize < minBodySize || c.MaxBodySize > maxBodySize {
		return fmt.Errorf("max body size must be between %d and %d bytes, got %d", minBodySize, maxBodySize, c.MaxBodySize)
	}

	if c.MaxRedirects < 0 || c.MaxRedirects > 10 {
		return fmt.Errorf("max redirects must be between 0 and 10, got %d", c.MaxRedirects)
	}

	return nil
}

// LoadConfigFromEnv loads the enrichment fetcher configuration from
// environment variables, falling back to defaults for anything unset.
//
// Environment variables:
//   - ENRICH_FETCH_ENABLED: "true" or "false" (default: true)
//   - ENRICH_FETCH_THRESHOLD: integer runes (default: 300)
//   - ENRICH_FETCH_TIMEOUT: duration string, e.g. "10s" (default: 10s)
//   - ENRICH_FETCH_PARALLELISM: integer (default: 10)
//   - ENRICH_FETCH_MAX_BODY_SIZE: integer bytes (default: 10485760)
//   - ENRICH_FETCH_MAX_REDIRECTS: integer (default: 5)
//   - ENRICH_FETCH_DENY_PRIVATE_IPS: "true" or "false" (default: true)
func LoadConfigFromEnv() (Config, error) {
	cfg := DefaultConfig()

	if val := os.Getenv("ENRICH_FETCH_ENABLED"); val != "" {
		cfg.Enabled = val == "true"
	}

	if val := os.Getenv("ENRICH_FETCH_THRESHOLD"); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			cfg.Threshold = parsed
		} else {
			return cfg, fmt.Errorf("invalid ENRICH_FETCH_THRESHOLD: %v", err)
		}
	}

	if val := os.Getenv("ENRICH_FETCH_TIMEOUT"); val != "" {
		if parsed, err := time.ParseDuration(val); err == nil {
			cfg.Timeout = parsed
		} else {
			return cfg, fmt.Errorf("invalid ENRICH_FETCH_TIMEOUT: %v (expected format: '10s', '1m')", err)
		}
	}

	if val := os.Getenv("ENRICH_FETCH_PARALLELISM"); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			cfg.Parallelism = parsed
		} else {
			return cfg, fmt.Errorf("invalid ENRICH_FETCH_PARALLELISM: %v", err)
		}
	}

	if val := os.Getenv("ENRICH_FETCH_MAX_BODY_SIZE"); val != "" {
		if parsed, err := strconv.ParseInt(val, 10, 64); err == nil {
			cfg.MaxBodySize = parsed
		} else {
			return cfg, fmt.Errorf("invalid ENRICH_FETCH_MAX_BODY_SIZE: %v", err)
		}
	}

	if val := os.Getenv("ENRICH_FETCH_MAX_REDIRECTS"); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			cfg.MaxRedirects = parsed
		} else {
			return cfg, fmt.Errorf("invalid ENRICH_FETCH_MAX_REDIRECTS: %v", err)
		}
	}

	if val := os.Getenv("ENRICH_FETCH_DENY_PRIVATE_IPS"); val != "" {
		cfg.DenyPrivateIPs = val == "true"
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}
