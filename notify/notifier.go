package notify

import (
	"context"
	"log/slog"
	"time"

	"github.com/turdm/turc/registry"
)

// Notifier watches the registry change feed and turns terminal changes
// into notifications. The enabled func gates delivery at send time, so
// flipping show_notifications takes effect without a restart.
type Notifier struct {
	reg     *registry.Registry
	sink    Sink
	enabled func() bool
	timeout time.Duration
	logger  *slog.Logger
}

// Option configures a Notifier.
type Option func(*Notifier)

// WithEnabled sets the delivery gate. A nil gate delivers always.
func WithEnabled(fn func() bool) Option {
	return func(n *Notifier) { n.enabled = fn }
}

// WithSendTimeout bounds one sink delivery. Default 15s.
func WithSendTimeout(d time.Duration) Option {
	return func(n *Notifier) {
		if d > 0 {
			n.timeout = d
		}
	}
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(n *Notifier) {
		if l != nil {
			n.logger = l
		}
	}
}

// NewNotifier wires a Notifier to the registry and a sink.
func NewNotifier(reg *registry.Registry, sink Sink, opts ...Option) *Notifier {
	n := &Notifier{
		reg:     reg,
		sink:    sink,
		timeout: 15 * time.Second,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Run drains the change feed until ctx is done or the feed closes.
func (n *Notifier) Run(ctx context.Context) {
	changes, cancel := n.reg.Changes().Subscribe(16)
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return
		case change, ok := <-changes:
			if !ok {
				return
			}
			n.handle(ctx, change)
		}
	}
}

func (n *Notifier) handle(ctx context.Context, change registry.Change) {
	var event string
	switch change.Kind {
	case registry.ChangeCompleted:
		event = "completed"
	case registry.ChangeFailed:
		event = "failed"
	default:
		return
	}
	if n.enabled != nil && !n.enabled() {
		return
	}

	notif := Notification{Event: event, ID: change.ID, At: time.Now()}
	// The row is still in the table after a terminal event; enrich the
	// notification while it is.
	if dl, ok := n.reg.Get(change.ID); ok {
		notif.Filename = dl.Filename
		notif.URL = dl.URL
		notif.Error = dl.Error
	}

	sctx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()
	if err := n.sink.Send(sctx, notif); err != nil {
		n.logger.Warn("notification delivery failed", "event", event, "id", change.ID, "error", err)
	}
}
