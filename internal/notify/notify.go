// Package notify delivers best-effort operator notifications. Delivery
// failures are logged, never raised to the trading path.
package notify

import (
	"context"

	"go.uber.org/zap"
)

// Notifier is the fire-and-forget notification sink consumed by the
// execution controller.
type Notifier interface {
	Notify(ctx context.Context, text string)
}

// LogNotifier writes notifications to the structured log. It is the
// default sink when no external channel is configured.
type LogNotifier struct {
	log *zap.Logger
}

// NewLogNotifier creates a log-backed notifier.
func NewLogNotifier(log *zap.Logger) *LogNotifier {
	return &LogNotifier{log: log}
}

func (n *LogNotifier) Notify(_ context.Context, text string) {
	n.log.Info("notification", zap.String("text", text))
}
