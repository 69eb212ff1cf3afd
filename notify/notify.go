// Package notify delivers end-of-download notifications to pluggable
// sinks. A desktop shell tails the JSONL sink to raise system toasts;
// the webhook sink feeds automations. Delivery is fire-and-forget: a
// failing sink is logged and never blocks the registry.
package notify

import (
	"context"
	"log/slog"
	"time"
)

// Notification describes one finished download.
type Notification struct {
	Event    string    `json:"event"` // "completed" or "failed"
	ID       string    `json:"id"`
	Filename string    `json:"filename,omitempty"`
	URL      string    `json:"url,omitempty"`
	Error    string    `json:"error,omitempty"`
	At       time.Time `json:"at"`
}

// Sink is an output backend for notifications.
type Sink interface {
	Send(ctx context.Context, n Notification) error
	Close() error
}

// Router fans a notification out to all configured sinks. One sink
// error does not block the others; errors are logged and the first
// encountered is returned.
type Router struct {
	sinks  []Sink
	logger *slog.Logger
}

// NewRouter creates a fan-out router delivering to all sinks.
func NewRouter(logger *slog.Logger, sinks ...Sink) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{sinks: sinks, logger: logger}
}

func (r *Router) Send(ctx context.Context, n Notification) error {
	var firstErr error
	for _, s := range r.sinks {
		if err := s.Send(ctx, n); err != nil {
			r.logger.Warn("sink delivery failed", "event", n.Event, "id", n.ID, "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

func (r *Router) Close() error {
	var firstErr error
	for _, s := range r.sinks {
		if err := s.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
