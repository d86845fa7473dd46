package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// SlidingWindowAlgorithm counts individual request timestamps inside a
// sliding window. Unlike a fixed window it cannot be burst-gamed at the
// window boundary, at the cost of storing one timestamp per request.
//
// The algorithm also guards against the clock going backwards (NTP
// step, manual change): it remembers the last timestamp seen per key
// and never hands out an earlier one, so rewinding the clock cannot
// reopen a spent window.
type SlidingWindowAlgorithm struct {
	clock Clock

	// mu protects lastTimestamps.
	mu sync.RWMutex

	// lastTimestamps holds the last valid timestamp per key for the
	// clock skew guard.
	lastTimestamps map[string]time.Time

	// windowDuration is whatever window the last IsAllowed call used.
	windowDuration time.Duration
}

// NewSlidingWindowAlgorithm creates the algorithm. A nil clock falls
// back to the system clock.
func NewSlidingWindowAlgorithm(clock Clock) *SlidingWindowAlgorithm {
	if clock == nil {
		clock = &SystemClock{}
	}

	return &SlidingWindowAlgorithm{
		clock:          clock,
		lastTimestamps: make(map[string]time.Time),
	}
}

// IsAllowed checks the key against limit requests per window. When the
// store implements AtomicRateLimitStore the check and the add happen
// under one lock; otherwise it falls back to the racy two-step path,
// which is acceptable only for single-writer callers.
func (a *SlidingWindowAlgorithm) IsAllowed(
	ctx context.Context,
	key string,
	store RateLimitStore,
	limit int,
	window time.Duration,
) (*RateLimitDecision, error) {
	a.windowDuration = window

	now := a.getValidTimestamp(key)
	cutoff := now.Add(-window)
	resetAt := now.Add(window)

	if atomicStore, ok := store.(AtomicRateLimitStore); ok {
		return a.isAllowedAtomic(ctx, key, atomicStore, limit, cutoff, now, resetAt)
	}

	return a.isAllowedNonAtomic(ctx, key, store, limit, cutoff, now, resetAt)
}

// isAllowedAtomic runs the combined check-and-add so two requests at
// the limit boundary cannot both pass.
func (a *SlidingWindowAlgorithm) isAllowedAtomic(
	ctx context.Context,
	key string,
	store AtomicRateLimitStore,
	limit int,
	cutoff time.Time,
	now time.Time,
	resetAt time.Time,
) (*RateLimitDecision, error) {
	allowed, count, err := store.CheckAndAddRequest(ctx, key, now, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to check and add request: %w", err)
	}

	if allowed {
		// count already includes the request just added.
		remaining := limit - count

		return NewAllowedDecision(key, "unknown", limit, remaining, resetAt), nil
	}

	retryAfter := resetAt.Sub(now)

	decision := NewDeniedDecision(key, "unknown", limit, resetAt)
	decision.RetryAfter = retryAfter

	return decision, nil
}

// isAllowedNonAtomic is the two-step path for plain stores. It carries
// a check-then-add race; concurrent callers should hand in an
// AtomicRateLimitStore instead.
func (a *SlidingWindowAlgorithm) isAllowedNonAtomic(
	ctx context.Context,
	key string,
	store RateLimitStore,
	limit int,
	cutoff time.Time,
	now time.Time,
	resetAt time.Time,
) (*RateLimitDecision, error) {
	count, err := store.GetRequestCount(ctx, key, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to get request count: %w", err)
	}

	if count < limit {
		if err := store.AddRequest(ctx, key, now); err != nil {
			return nil, fmt.Errorf("failed to add request: %w", err)
		}

		// -1 for the request just recorded.
		remaining := limit - count - 1

		return NewAllowedDecision(key, "unknown", limit, remaining, resetAt), nil
	}

	retryAfter := resetAt.Sub(now)

	decision := NewDeniedDecision(key, "unknown", limit, resetAt)
	decision.RetryAfter = retryAfter

	return decision, nil
}

// GetWindowDuration returns the window the last IsAllowed call used.
func (a *SlidingWindowAlgorithm) GetWindowDuration() time.Duration {
	return a.windowDuration
}

// getValidTimestamp returns the current time, clamped so it never moves
// backwards for a key. A backwards step is logged and the last seen
// timestamp is reused.
func (a *SlidingWindowAlgorithm) getValidTimestamp(key string) time.Time {
	a.mu.Lock()
	defer a.mu.Unlock()

	now := a.clock.Now()

	lastSeen, exists := a.lastTimestamps[key]

	if exists && now.Before(lastSeen) {
		skew := lastSeen.Sub(now)

		slog.Warn("clock skew detected, using last valid timestamp",
			slog.String("key", key),
			slog.Time("now", now),
			slog.Time("last_seen", lastSeen),
			slog.Duration("skew", skew),
		)

		return lastSeen
	}

	a.lastTimestamps[key] = now

	return now
}

// CleanupExpiredTimestamps drops skew-guard entries older than maxAge.
// Call it periodically or the per-key map grows without bound. Returns
// how many entries were removed.
func (a *SlidingWindowAlgorithm) CleanupExpiredTimestamps(maxAge time.Duration) int {
	a.mu.Lock()
	defer a.mu.Unlock()

	now := a.clock.Now()
	cutoff := now.Add(-maxAge)
	removed := 0

	for key, timestamp := range a.lastTimestamps {
		if timestamp.Before(cutoff) {
			delete(a.lastTimestamps, key)
			removed++
		}
	}

	if removed > 0 {
		slog.Debug("cleaned up expired timestamp entries",
			slog.Int("removed", removed),
			slog.Int("remaining", len(a.lastTimestamps)),
		)
	}

	return removed
}

// GetTrackedKeysCount returns how many keys the skew guard tracks.
func (a *SlidingWindowAlgorithm) GetTrackedKeysCount() int {
	a.mu.RLock()
	defer a.mu.RUnlock()

	return len(a.lastTimestamps)
}
