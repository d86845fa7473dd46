// Package notifier delivers operational messages to chat webhooks. It
// defines the Notifier interface which allows different delivery channels
// (Discord, Slack) to be used interchangeably through dependency injection.
//
// The package includes implementations for Discord and Slack webhooks and a
// no-op notifier for when notifications are disabled.
package notifier

import "context"

// Message is one operational notification: a short subject line and a
// preformatted body. Channels render it in their own markup.
type Message struct {
	// Subject is the headline, kept short enough for chat clients.
	Subject string

	// Body is the full report text. Channels truncate it to their own
	// limits.
	Body string
}

// Notifier is an interface for delivering operational messages.
// Implementations should handle rate limiting, retries, and error logging
// internally.
type Notifier interface {
	// Notify delivers one message to the channel.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeout control
	//   - msg: The message to deliver
	//
	// Returns:
	//   - error: Non-nil if delivery failed after all retry attempts
	//
	// Implementations should:
	//   - Generate a unique request ID for tracing
	//   - Apply rate limiting to prevent webhook abuse
	//   - Retry transient failures with backoff
	//   - Respect context cancellation
	Notify(ctx context.Context, msg Message) error

	// Name identifies the channel in logs and error messages.
	Name() string
}
