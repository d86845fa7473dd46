package notify

import (
	"context"

	"newswire-search/internal/infra/notifier"
)

// DiscordChannel implements the Channel interface for Discord notifications.
// It wraps the DiscordNotifier from the infrastructure layer to provide the
// Channel abstraction for the notification use case.
type DiscordChannel struct {
	notifier notifier.Notifier
	enabled  bool
}

// NewDiscordChannel creates a new Discord channel with the specified
// configuration.
//
// If Discord notifications are disabled (config.Enabled = false), a
// NoOpNotifier is used instead to avoid null checks and ensure the Channel
// interface contract is always satisfied.
func NewDiscordChannel(config notifier.DiscordConfig) *DiscordChannel {
	var n notifier.Notifier
	if config.Enabled {
		n = notifier.NewDiscordNotifier(config)
	} else {
		n = notifier.NewNoOpNotifier()
	}

	return &DiscordChannel{
		notifier: n,
		enabled:  config.Enabled,
	}
}

// Name returns the channel identifier "discord".
func (c *DiscordChannel) Name() string {
	return "discord"
}

// IsEnabled returns whether Discord notifications are enabled via
// configuration.
func (c *DiscordChannel) IsEnabled() bool {
	return c.enabled
}

// Send delivers one message to Discord. The underlying notifier handles rate
// limiting (0.5 req/s with burst of 3), retries, context cancellation, and
// request ID logging.
func (c *DiscordChannel) Send(ctx context.Context, msg notifier.Message) error {
	if !c.enabled {
		return ErrChannelDisabled
	}
	if msg.Subject == "" {
		return ErrEmptyMessage
	}
	return c.notifier.Notify(ctx, msg)
}
