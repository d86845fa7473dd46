package ratelimit

import (
	"fmt"
	"time"
)

// RateLimitDecision is the outcome of one limit check: the verdict plus
// the metadata the handler needs to fill the X-RateLimit response
// headers.
type RateLimitDecision struct {
	// Key is the limited subject, an IP address or user ID.
	Key string

	// Allowed reports whether the request fits within the limit.
	Allowed bool

	// Limit is the maximum requests allowed in the window.
	Limit int

	// Remaining is how many requests are left in the current window.
	// Zero means the limit is reached; negative means it was exceeded.
	Remaining int

	// ResetAt is when the window resets. Clients should wait until then
	// before retrying.
	ResetAt time.Time

	// RetryAfter is ResetAt minus now, clamped at zero.
	RetryAfter time.Duration

	// LimiterType identifies which limiter decided: "ip", "user",
	// "endpoint".
	LimiterType string
}

// String returns a human-readable form for log lines.
func (d *RateLimitDecision) String() string {
	if d.Allowed {
		return fmt.Sprintf(
			"RateLimitDecision{Allowed: true, Key: %s, Type: %s, Remaining: %d/%d, ResetAt: %s}",
			d.Key,
			d.LimiterType,
			d.Remaining,
			d.Limit,
			d.ResetAt.Format(time.RFC3339),
		)
	}

	return fmt.Sprintf(
		"RateLimitDecision{Allowed: false, Key: %s, Type: %s, Limit: %d, RetryAfter: %s, ResetAt: %s}",
		d.Key,
		d.LimiterType,
		d.Limit,
		d.RetryAfter.String(),
		d.ResetAt.Format(time.RFC3339),
	)
}

// IsAllowed reports whether the request is allowed.
func (d *RateLimitDecision) IsAllowed() bool {
	return d.Allowed
}

// IsDenied reports whether the request is denied.
func (d *RateLimitDecision) IsDenied() bool {
	return !d.Allowed
}

// HasRemaining reports whether the window still has capacity.
func (d *RateLimitDecision) HasRemaining() bool {
	return d.Remaining > 0
}

// ResetAtUnix returns the reset time as a Unix timestamp, the form the
// X-RateLimit-Reset header carries.
func (d *RateLimitDecision) ResetAtUnix() int64 {
	return d.ResetAt.Unix()
}

// RetryAfterSeconds returns the retry delay in whole seconds for the
// Retry-After header, never negative.
func (d *RateLimitDecision) RetryAfterSeconds() int64 {
	seconds := int64(d.RetryAfter.Seconds())
	if seconds < 0 {
		return 0
	}
	return seconds
}

// NewAllowedDecision builds the decision for a request within the
// limit.
func NewAllowedDecision(key, limiterType string, limit, remaining int, resetAt time.Time) *RateLimitDecision {
	retryAfter := time.Until(resetAt)
	if retryAfter < 0 {
		retryAfter = 0
	}

	return &RateLimitDecision{
		Key:         key,
		Allowed:     true,
		Limit:       limit,
		Remaining:   remaining,
		ResetAt:     resetAt,
		RetryAfter:  retryAfter,
		LimiterType: limiterType,
	}
}

// NewDeniedDecision builds the decision for a rejected request, with
// Remaining forced to zero.
func NewDeniedDecision(key, limiterType string, limit int, resetAt time.Time) *RateLimitDecision {
	retryAfter := time.Until(resetAt)
	if retryAfter < 0 {
		retryAfter = 0
	}

	return &RateLimitDecision{
		Key:         key,
		Allowed:     false,
		Limit:       limit,
		Remaining:   0,
		ResetAt:     resetAt,
		RetryAfter:  retryAfter,
		LimiterType: limiterType,
	}
}
