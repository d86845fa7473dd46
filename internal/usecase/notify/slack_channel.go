package notify

import (
	"context"

	"newswire-search/internal/infra/notifier"
)

// SlackChannel implements the Channel interface for Slack notifications. It
// wraps the SlackNotifier from the infrastructure layer.
type SlackChannel struct {
	notifier notifier.Notifier
	enabled  bool
}

// NewSlackChannel creates a new Slack channel with the specified
// configuration. A disabled config yields a NoOpNotifier underneath, keeping
// the Channel contract satisfied without null checks.
func NewSlackChannel(config notifier.SlackConfig) *SlackChannel {
	var n notifier.Notifier
	if config.Enabled {
		n = notifier.NewSlackNotifier(config)
	} else {
		n = notifier.NewNoOpNotifier()
	}

	return &SlackChannel{
		notifier: n,
		enabled:  config.Enabled,
	}
}

// Name returns the channel identifier "slack".
func (c *SlackChannel) Name() string {
	return "slack"
}

// IsEnabled returns whether Slack notifications are enabled via
// configuration.
func (c *SlackChannel) IsEnabled() bool {
	return c.enabled
}

// Send delivers one message to Slack. The underlying notifier handles rate
// limiting (1 req/s), retries, context cancellation, and request ID logging.
func (c *SlackChannel) Send(ctx context.Context, msg notifier.Message) error {
	if !c.enabled {
		return ErrChannelDisabled
	}
	if msg.Subject == "" {
		return ErrEmptyMessage
	}
	return c.notifier.Notify(ctx, msg)
}
