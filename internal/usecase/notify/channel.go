// Package notify dispatches operational notifications across multiple
// channels. It implements the fan-out logic for ingestion run reports with
// per-channel circuit breakers, a bounded worker pool, and observability.
package notify

import (
	"context"

	"newswire-search/internal/infra/notifier"
)

// Channel represents a notification delivery channel (Discord, Slack, etc.).
// Each channel implementation handles its own rate limiting, retries, and
// error handling.
//
// Retry Policy Contract:
//   - Transient failures (5xx, network errors): Retry with backoff (max 2 attempts)
//   - Rate limits (429): Sleep for retry_after duration, then retry
//   - Client errors (4xx except 429): No retry
//   - Context timeout: No retry
//
// Thread Safety:
//   - All methods must be safe for concurrent use by multiple goroutines
type Channel interface {
	// Name returns the channel identifier (lowercase, alphanumeric). Used
	// for logging, metrics labels, and health check endpoints.
	Name() string

	// IsEnabled returns true if this channel is enabled via configuration.
	// Disabled channels are skipped during dispatching.
	IsEnabled() bool

	// Send delivers one message to this channel.
	//
	// Returns:
	//   - nil: message delivered
	//   - ErrChannelDisabled: Send() called on a disabled channel
	//   - ErrEmptyMessage: message has no subject
	//   - Network/API errors wrapped with context
	Send(ctx context.Context, msg notifier.Message) error
}
