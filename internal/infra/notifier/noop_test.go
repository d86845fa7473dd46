package notifier

import (
	"context"
	"testing"
)

func TestNoOpNotifier_Notify(t *testing.T) {
	n := NewNoOpNotifier()

	if err := n.Notify(context.Background(), Message{Subject: "anything"}); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if n.Name() != "noop" {
		t.Errorf("expected name noop, got %q", n.Name())
	}
}
