package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"newswire-search/pkg/ratelimit"
)

// IPRateLimiterConfig configures the global per-IP rate limiter.
type IPRateLimiterConfig struct {
	// Limit is the maximum number of requests per IP within the window.
	Limit int

	// Window is the sliding window duration.
	Window time.Duration

	// Enabled turns the limiter into a pass-through when false.
	Enabled bool
}

// IPRateLimiter enforces a per-IP request budget across all endpoints.
// It composes the pluggable store, algorithm, and metrics from pkg/ratelimit
// and wraps the store access in a circuit breaker: when the limiter itself
// is failing, requests fail open rather than being rejected.
type IPRateLimiter struct {
	config    IPRateLimiterConfig
	extractor IPExtractor
	store     ratelimit.RateLimitStore
	algorithm ratelimit.RateLimitAlgorithm
	metrics   ratelimit.RateLimitMetrics
	breaker   *ratelimit.CircuitBreaker
}

// NewIPRateLimiter creates the per-IP rate limiter.
func NewIPRateLimiter(
	config IPRateLimiterConfig,
	extractor IPExtractor,
	store ratelimit.RateLimitStore,
	algorithm ratelimit.RateLimitAlgorithm,
	metrics ratelimit.RateLimitMetrics,
	breaker *ratelimit.CircuitBreaker,
) *IPRateLimiter {
	if extractor == nil {
		extractor = &RemoteAddrExtractor{}
	}
	if metrics == nil {
		metrics = ratelimit.NewNoOpMetrics()
	}
	return &IPRateLimiter{
		config:    config,
		extractor: extractor,
		store:     store,
		algorithm: algorithm,
		metrics:   metrics,
		breaker:   breaker,
	}
}

// Middleware returns the HTTP middleware enforcing the limit.
//
// Responses carry the standard rate limit headers:
//   - X-RateLimit-Limit: requests allowed per window
//   - X-RateLimit-Remaining: requests left in the current window
//   - X-RateLimit-Reset: Unix time the window resets
//   - Retry-After: seconds to wait, on 429 only
func (l *IPRateLimiter) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !l.config.Enabled {
				next.ServeHTTP(w, r)
				return
			}

			ip, err := l.extractor.ExtractIP(r)
			if err != nil {
				ip, err = extractIPFromAddr(r.RemoteAddr)
				if err != nil {
					// Cannot attribute the request to a client; let it
					// through rather than dropping legitimate traffic.
					slog.Warn("ip rate limiter: unable to determine client IP",
						slog.String("remote_addr", r.RemoteAddr),
						slog.Any("error", err))
					next.ServeHTTP(w, r)
					return
				}
			}

			started := time.Now()
			var decision *ratelimit.RateLimitDecision
			execErr := l.breaker.Execute(func() error {
				var aerr error
				decision, aerr = l.algorithm.IsAllowed(r.Context(), ip, l.store, l.config.Limit, l.config.Window)
				return aerr
			})
			l.metrics.RecordCheckDuration("ip", time.Since(started))

			if execErr != nil || decision == nil {
				// Limiter failure fails open. The circuit breaker keeps the
				// store out of the hot path until it recovers.
				slog.Warn("ip rate limiter unavailable, failing open",
					slog.String("ip", ip),
					slog.Any("error", execErr))
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(decision.Limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(max(decision.Remaining, 0)))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(decision.ResetAtUnix(), 10))

			if decision.IsDenied() {
				l.metrics.RecordDenied("ip", r.URL.Path)
				slog.Warn("rate limit exceeded",
					slog.String("ip", ip),
					slog.String("path", r.URL.Path),
					slog.Int("limit", decision.Limit))
				w.Header().Set("Retry-After", strconv.FormatInt(decision.RetryAfterSeconds(), 10))
				http.Error(w, "Too Many Requests", http.StatusTooManyRequests)
				return
			}

			l.metrics.RecordAllowed("ip", r.URL.Path)
			next.ServeHTTP(w, r)
		})
	}
}

// StartRateLimitCleanup periodically removes expired entries from a rate
// limit store. It runs until the context is cancelled and is meant to be
// started as a goroutine at server startup.
func StartRateLimitCleanup(ctx context.Context, store ratelimit.RateLimitStore, interval, maxAge time.Duration, limiterType string) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cutoff := time.Now().Add(-maxAge)
			if err := store.Cleanup(ctx, cutoff); err != nil {
				slog.Warn("rate limit store cleanup failed",
					slog.String("limiter", limiterType),
					slog.Any("error", err))
				continue
			}
			if count, err := store.KeyCount(ctx); err == nil {
				slog.Debug("rate limit store cleaned",
					slog.String("limiter", limiterType),
					slog.Int("active_keys", count))
			}
		}
	}
}
