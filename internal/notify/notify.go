// Package notify delivers fire-and-forget state transition notifications.
// Delivery failures are logged and never block or fail a transition.
package notify

import (
	"context"
	"log/slog"
	"time"
)

// Event describes one engine state transition worth telling a user about.
type Event struct {
	Type      string    `json:"type"` // e.g. "drying.started", "order.accepted"
	ItemID    string    `json:"item_id,omitempty"`
	OrderID   string    `json:"order_id,omitempty"`
	SessionID string    `json:"session_id,omitempty"`
	Detail    string    `json:"detail,omitempty"`
	At        time.Time `json:"at"`
}

// Notifier delivers events. Implementations must not return errors into the
// calling flow; they log and move on.
type Notifier interface {
	Notify(ctx context.Context, ev Event)
}

// LogNotifier writes events to the structured log. Default sink when no
// external transport is configured.
type LogNotifier struct {
	logger *slog.Logger
}

// Compile-time check that LogNotifier implements Notifier.
var _ Notifier = (*LogNotifier)(nil)

// NewLogNotifier creates a log-backed notifier.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{logger: logger}
}

// Notify logs the event.
func (n *LogNotifier) Notify(_ context.Context, ev Event) {
	n.logger.Info("notification",
		"type", ev.Type,
		"item_id", ev.ItemID,
		"order_id", ev.OrderID,
		"session_id", ev.SessionID,
		"detail", ev.Detail,
	)
}

// Multi fans an event out to several notifiers.
type Multi []Notifier

// Compile-time check that Multi implements Notifier.
var _ Notifier = Multi(nil)

// Notify delivers to every notifier in order.
func (m Multi) Notify(ctx context.Context, ev Event) {
	for _, n := range m {
		n.Notify(ctx, ev)
	}
}
