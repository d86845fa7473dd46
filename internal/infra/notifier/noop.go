package notifier

import "context"

// NoOpNotifier is a no-operation implementation of the Notifier interface.
// It is used when notifications are disabled to avoid null checks in the
// code. This follows the Null Object pattern.
type NoOpNotifier struct{}

// NewNoOpNotifier creates a new NoOpNotifier instance.
func NewNoOpNotifier() *NoOpNotifier {
	return &NoOpNotifier{}
}

// Name implements the Notifier interface.
func (n *NoOpNotifier) Name() string { return "noop" }

// Notify does nothing and returns nil immediately. This allows the
// notification feature to be disabled without changing the code flow.
func (n *NoOpNotifier) Notify(ctx context.Context, msg Message) error {
	// No-op: intentionally does nothing
	return nil
}
