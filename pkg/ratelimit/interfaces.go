// Package ratelimit provides framework-agnostic rate limiting with
// pluggable stores, algorithms, and metrics collectors. The search API
// uses it for per-IP limiting, but nothing here depends on HTTP.
package ratelimit

import (
	"context"
	"time"
)

// RateLimitStore stores request timestamps per key. A key is whatever
// identifies the limited subject, an IP address for the public search
// endpoints. Implementations must be safe for concurrent use.
type RateLimitStore interface {
	// AddRequest records a request timestamp for the key.
	AddRequest(ctx context.Context, key string, timestamp time.Time) error

	// GetRequests returns the key's timestamps newer than cutoff.
	GetRequests(ctx context.Context, key string, cutoff time.Time) ([]time.Time, error)

	// GetRequestCount returns how many of the key's timestamps are newer
	// than cutoff. Cheaper than GetRequests when only the count matters.
	GetRequestCount(ctx context.Context, key string, cutoff time.Time) (int, error)

	// Cleanup drops timestamps older than cutoff across all keys.
	Cleanup(ctx context.Context, cutoff time.Time) error

	// KeyCount returns the number of keys currently held. Used to decide
	// when to evict.
	KeyCount(ctx context.Context) (int, error)

	// MemoryUsage estimates the store's memory footprint in bytes.
	MemoryUsage(ctx context.Context) (int64, error)
}

// RateLimitAlgorithm decides whether a request fits within the limit.
// Sliding window is the only shipped implementation; token bucket or
// fixed window would plug in here.
type RateLimitAlgorithm interface {
	// IsAllowed checks the key against limit requests per window and
	// returns the verdict with its metadata.
	IsAllowed(ctx context.Context, key string, store RateLimitStore, limit int, window time.Duration) (*RateLimitDecision, error)

	// GetWindowDuration returns the effective window, used to compute
	// reset times and retry delays.
	GetWindowDuration() time.Duration
}

// RateLimitMetrics records limiter activity. The limiterType label
// distinguishes limiter kinds ("ip", "user"); endpoint is the normalized
// request path such as "/api/search".
type RateLimitMetrics interface {
	// RecordRequest counts a rate limit check for an allowed request.
	RecordRequest(limiterType, endpoint string)

	// RecordDenied counts a denied request.
	RecordDenied(limiterType, endpoint string)

	// RecordAllowed counts an allowed request. Same signal as
	// RecordRequest under a more explicit name.
	RecordAllowed(limiterType, endpoint string)

	// RecordCheckDuration records how long one limit check took.
	RecordCheckDuration(limiterType string, duration time.Duration)

	// SetActiveKeys records the current number of tracked keys.
	SetActiveKeys(limiterType string, count int)

	// RecordCircuitState records the breaker state ("closed", "open",
	// "half-open").
	RecordCircuitState(limiterType, state string)

	// RecordDegradationLevel records the degradation level
	// (0=normal, 1=relaxed, 2=minimal, 3=disabled).
	RecordDegradationLevel(limiterType string, level int)

	// RecordEviction counts keys evicted from the store.
	RecordEviction(limiterType string, count int)
}

// Clock abstracts time.Now so window arithmetic is testable with a
// controlled clock.
type Clock interface {
	Now() time.Time
}

// SystemClock is the production Clock backed by the system time.
type SystemClock struct{}

func (c *SystemClock) Now() time.Time {
	return time.Now()
}

// AtomicRateLimitStore extends RateLimitStore with a combined
// check-and-add. The check and the add must happen under one lock, so
// two concurrent requests at the limit boundary cannot both slip
// through.
type AtomicRateLimitStore interface {
	RateLimitStore

	// CheckAndAddRequest atomically checks the key against limit and,
	// when within it, records the timestamp. count is the window count
	// after the add when allowed, the rejected count otherwise.
	CheckAndAddRequest(ctx context.Context, key string, timestamp time.Time, cutoff time.Time, limit int) (allowed bool, count int, err error)
}
