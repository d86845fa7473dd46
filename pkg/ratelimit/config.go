package ratelimit

import (
	"fmt"
	"time"
)

// RateLimitConfig holds every knob the limiters read: global defaults,
// per-endpoint overrides, tier limits, memory management, and the
// breaker thresholds.
type RateLimitConfig struct {
	// Default per-IP limit and window.
	DefaultIPLimit  int
	DefaultIPWindow time.Duration

	// Default per-user limit and window.
	DefaultUserLimit  int
	DefaultUserWindow time.Duration

	// Per-endpoint overrides. Expensive endpoints like answer generation
	// get tighter limits than plain search.
	EndpointOverrides []EndpointRateLimitConfig

	// User tier-based limits.
	TierLimits []TierRateLimitConfig

	// MaxActiveKeys caps how many keys the store tracks before evicting.
	MaxActiveKeys int

	// CleanupInterval is how often expired entries are swept.
	CleanupInterval time.Duration

	// CleanupMaxAge is the age past which entries are dropped.
	CleanupMaxAge time.Duration

	// Breaker settings: open after N consecutive store failures, try
	// half-open after the timeout.
	CircuitBreakerFailureThreshold int
	CircuitBreakerResetTimeout     time.Duration

	// Enabled turns limiting off entirely when false.
	Enabled bool
}

// EndpointRateLimitConfig overrides the limits for one endpoint
// pattern. Patterns support a trailing wildcard, "/api/articles/*".
type EndpointRateLimitConfig struct {
	PathPattern string

	IPLimit  int
	IPWindow time.Duration

	UserLimit  int
	UserWindow time.Duration
}

// TierRateLimitConfig sets the limit for one user tier.
type TierRateLimitConfig struct {
	Tier   UserTier
	Limit  int
	Window time.Duration
}

// UserTier represents a user's service tier.
type UserTier string

const (
	// TierAdmin has the highest limits, for operators running reindex
	// and ingest jobs.
	TierAdmin UserTier = "admin"

	// TierPremium has elevated limits.
	TierPremium UserTier = "premium"

	// TierBasic has the standard limits.
	TierBasic UserTier = "basic"

	// TierViewer has the lowest limits, read-only access.
	TierViewer UserTier = "viewer"
)

func (t UserTier) String() string {
	return string(t)
}

// IsValid checks if the user tier is a recognized value.
func (t UserTier) IsValid() bool {
	switch t {
	case TierAdmin, TierPremium, TierBasic, TierViewer:
		return true
	default:
		return false
	}
}

// Validate rejects negative values and malformed overrides.
func (c *RateLimitConfig) Validate() error {
	if c.DefaultIPLimit < 0 {
		return fmt.Errorf("DefaultIPLimit must be non-negative, got %d", c.DefaultIPLimit)
	}
	if c.DefaultIPWindow < 0 {
		return fmt.Errorf("DefaultIPWindow must be non-negative, got %s", c.DefaultIPWindow)
	}

	if c.DefaultUserLimit < 0 {
		return fmt.Errorf("DefaultUserLimit must be non-negative, got %d", c.DefaultUserLimit)
	}
	if c.DefaultUserWindow < 0 {
		return fmt.Errorf("DefaultUserWindow must be non-negative, got %s", c.DefaultUserWindow)
	}

	if c.MaxActiveKeys < 0 {
		return fmt.Errorf("MaxActiveKeys must be non-negative, got %d", c.MaxActiveKeys)
	}
	if c.CleanupInterval < 0 {
		return fmt.Errorf("CleanupInterval must be non-negative, got %s", c.CleanupInterval)
	}
	if c.CleanupMaxAge < 0 {
		return fmt.Errorf("CleanupMaxAge must be non-negative, got %s", c.CleanupMaxAge)
	}

	if c.CircuitBreakerFailureThreshold < 0 {
		return fmt.Errorf("CircuitBreakerFailureThreshold must be non-negative, got %d", c.CircuitBreakerFailureThreshold)
	}
	if c.CircuitBreakerResetTimeout < 0 {
		return fmt.Errorf("CircuitBreakerResetTimeout must be non-negative, got %s", c.CircuitBreakerResetTimeout)
	}

	for i, override := range c.EndpointOverrides {
		if override.PathPattern == "" {
			return fmt.Errorf("EndpointOverrides[%d].PathPattern cannot be empty", i)
		}
		if override.IPLimit < 0 {
			return fmt.Errorf("EndpointOverrides[%d].IPLimit must be non-negative, got %d", i, override.IPLimit)
		}
		if override.IPWindow < 0 {
			return fmt.Errorf("EndpointOverrides[%d].IPWindow must be non-negative, got %s", i, override.IPWindow)
		}
		if override.UserLimit < 0 {
			return fmt.Errorf("EndpointOverrides[%d].UserLimit must be non-negative, got %d", i, override.UserLimit)
		}
		if override.UserWindow < 0 {
			return fmt.Errorf("EndpointOverrides[%d].UserWindow must be non-negative, got %s", i, override.UserWindow)
		}
	}

	for i, tierLimit := range c.TierLimits {
		if !tierLimit.Tier.IsValid() {
			return fmt.Errorf("TierLimits[%d].Tier has invalid value %q", i, tierLimit.Tier)
		}
		if tierLimit.Limit < 0 {
			return fmt.Errorf("TierLimits[%d].Limit must be non-negative, got %d", i, tierLimit.Limit)
		}
		if tierLimit.Window < 0 {
			return fmt.Errorf("TierLimits[%d].Window must be non-negative, got %s", i, tierLimit.Window)
		}
	}

	return nil
}

// ApplyDefaults fills zero values so a partially built config still
// yields a working limiter.
func (c *RateLimitConfig) ApplyDefaults() {
	if c.DefaultIPLimit == 0 {
		c.DefaultIPLimit = 100 // 100 requests per minute
	}
	if c.DefaultIPWindow == 0 {
		c.DefaultIPWindow = 1 * time.Minute
	}

	if c.DefaultUserLimit == 0 {
		c.DefaultUserLimit = 1000 // 1000 requests per hour
	}
	if c.DefaultUserWindow == 0 {
		c.DefaultUserWindow = 1 * time.Hour
	}

	if c.MaxActiveKeys == 0 {
		c.MaxActiveKeys = 10000
	}
	if c.CleanupInterval == 0 {
		c.CleanupInterval = 5 * time.Minute
	}
	if c.CleanupMaxAge == 0 {
		c.CleanupMaxAge = 1 * time.Hour
	}

	if c.CircuitBreakerFailureThreshold == 0 {
		c.CircuitBreakerFailureThreshold = 10
	}
	if c.CircuitBreakerResetTimeout == 0 {
		c.CircuitBreakerResetTimeout = 30 * time.Second
	}

	if !c.Enabled {
		c.Enabled = true
	}
}

// GetTierLimit returns the limit and window for the tier, falling back
// to the user defaults when the tier has no entry.
func (c *RateLimitConfig) GetTierLimit(tier UserTier) (limit int, window time.Duration) {
	for _, tierLimit := range c.TierLimits {
		if tierLimit.Tier == tier {
			return tierLimit.Limit, tierLimit.Window
		}
	}
	return c.DefaultUserLimit, c.DefaultUserWindow
}

// GetEndpointLimit returns the IP and user limits for the endpoint,
// falling back to the defaults when no override matches.
func (c *RateLimitConfig) GetEndpointLimit(pathPattern string) (ipLimit int, ipWindow time.Duration, userLimit int, userWindow time.Duration) {
	for _, override := range c.EndpointOverrides {
		if override.PathPattern == pathPattern {
			return override.IPLimit, override.IPWindow, override.UserLimit, override.UserWindow
		}
	}
	return c.DefaultIPLimit, c.DefaultIPWindow, c.DefaultUserLimit, c.DefaultUserWindow
}

// DefaultConfig returns a config with every default applied.
func DefaultConfig() *RateLimitConfig {
	config := &RateLimitConfig{}
	config.ApplyDefaults()
	return config
}
