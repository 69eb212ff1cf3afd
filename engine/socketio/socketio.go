// Package socketio is the production engine transport: a socket.io
// client connected to the engine daemon. It implements both halves of
// the engine boundary — engine.Source over the push events the daemon
// emits, engine.Commander over emitted commands acknowledged by a
// correlated command_result event.
package socketio

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/zishang520/engine.io-client-go/transports"
	"github.com/zishang520/engine.io/v2/types"
	"github.com/zishang520/socket.io-client-go/socket"

	"github.com/turdm/turc/engine"
	"github.com/turdm/turc/idgen"
)

// Wire event names. Events carry the download id in the payload; the
// engine daemon flattens the per-id channels of older builds into one
// stream.
const (
	evQueue     = "queue_download"
	evStarted   = "download_started"
	evProgress  = "download_progress"
	evComplete  = "download_complete"
	evFailed    = "download_failed"
	evPaused    = "download_paused"
	evCancelled = "download_cancelled"

	evCommandResult = "command_result"

	cmdStart  = "start_download"
	cmdResume = "resume_downloads"
	cmdPause  = "pause_download"
	cmdCancel = "cancel_download"
)

// Config tunes the transport.
type Config struct {
	// URL of the engine daemon, e.g. "http://127.0.0.1:4320/engine.io".
	URL string
	// Namespace is the socket.io namespace. Default "/".
	Namespace string
	// DialTimeout bounds the initial connect. Default 15s.
	DialTimeout time.Duration
	// CommandTimeout bounds the wait for a command_result when the
	// caller's context has no deadline of its own. Default 10s.
	CommandTimeout time.Duration
	// InsecureSkipVerify disables TLS verification for wss:// engines
	// with self-signed certificates.
	InsecureSkipVerify bool
	// Logger overrides slog.Default().
	Logger *slog.Logger
}

func (c *Config) defaults() {
	if c.Namespace == "" {
		c.Namespace = "/"
	}
	if c.DialTimeout <= 0 {
		c.DialTimeout = 15 * time.Second
	}
	if c.CommandTimeout <= 0 {
		c.CommandTimeout = 10 * time.Second
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

type commandResult struct {
	ok  bool
	err string
}

// Transport is a connected socket.io client. It supports one Listen
// session at a time; commands may be issued concurrently.
type Transport struct {
	cfg    Config
	logger *slog.Logger
	newID  idgen.Generator

	mu        sync.Mutex
	io        *socket.Socket
	manager   *socket.Manager
	connected bool
	listening bool
	pending   map[string]chan commandResult
	closed    bool
}

// New creates a Transport. No connection is made until Connect or the
// first Listen.
func New(cfg Config) *Transport {
	cfg.defaults()
	return &Transport{
		cfg:    cfg,
		logger: cfg.Logger,
		// ULIDs keep correlated command/result log lines sortable.
		newID:   idgen.Prefixed("cmd_", idgen.ULID()),
		pending: make(map[string]chan commandResult),
	}
}

// Connect dials the engine daemon and blocks until the socket.io
// session is established, ctx is done, or the dial timeout passes.
// Calling Connect on a connected transport is a no-op.
func (t *Transport) Connect(ctx context.Context) error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return engine.ErrClosed
	}
	if t.connected {
		t.mu.Unlock()
		return nil
	}
	t.mu.Unlock()

	parsed, err := url.Parse(t.cfg.URL)
	if err != nil {
		return fmt.Errorf("socketio: parse engine url: %w", err)
	}

	opts := socket.DefaultOptions()
	opts.SetPath(parsed.Path)
	opts.SetTransports(types.NewSet(transports.WebSocket))
	// Transport loss must surface as a closed event channel so the
	// daemon owns the re-listen backoff; the client must not retry
	// underneath it.
	opts.SetReconnection(false)
	if t.cfg.InsecureSkipVerify {
		t.logger.Warn("engine TLS verification disabled")
		opts.SetTLSClientConfig(&tls.Config{InsecureSkipVerify: true})
	}

	baseURL := fmt.Sprintf("%s://%s", parsed.Scheme, parsed.Host)
	manager := socket.NewManager(baseURL, opts)
	io := manager.Socket(t.cfg.Namespace, opts)

	dial := make(chan error, 1)
	io.Once(types.EventName("connect"), func(...any) {
		dial <- nil
	})
	io.Once(types.EventName("connect_error"), func(errs ...any) {
		if len(errs) > 0 {
			if e, ok := errs[0].(error); ok {
				dial <- e
				return
			}
		}
		dial <- fmt.Errorf("connect_error")
	})

	io.Connect()

	select {
	case err := <-dial:
		if err != nil {
			io.Disconnect()
			return fmt.Errorf("socketio: connect %s: %w", t.cfg.URL, err)
		}
	case <-ctx.Done():
		io.Disconnect()
		return fmt.Errorf("socketio: connect %s: %w", t.cfg.URL, ctx.Err())
	case <-time.After(t.cfg.DialTimeout):
		io.Disconnect()
		return fmt.Errorf("socketio: connect %s: timed out after %s", t.cfg.URL, t.cfg.DialTimeout)
	}

	t.logger.Info("engine connected", "url", t.cfg.URL, "sid", io.Id())

	io.On(types.EventName(evCommandResult), func(data ...any) {
		t.resolveCommand(firstMap(data))
	})

	t.mu.Lock()
	t.io = io
	t.manager = manager
	t.connected = true
	t.mu.Unlock()
	return nil
}

// Listen implements engine.Source. It connects if needed, subscribes to
// the engine's event stream and returns a channel that carries events
// in arrival order. The channel closes when ctx is cancelled or the
// socket disconnects; the transport stays usable for a later Listen.
func (t *Transport) Listen(ctx context.Context) (<-chan engine.Event, error) {
	if err := t.Connect(ctx); err != nil {
		return nil, err
	}

	t.mu.Lock()
	if t.listening {
		t.mu.Unlock()
		return nil, fmt.Errorf("socketio: already listening")
	}
	t.listening = true
	io := t.io
	t.mu.Unlock()

	// Handlers run on the socket client's goroutine; they hand off to
	// the pump through raw so closing the out channel stays with one
	// owner.
	raw := make(chan engine.Event, 256)
	lost := make(chan struct{})
	var lostOnce sync.Once
	out := make(chan engine.Event)

	forward := func(name string) func(...any) {
		return func(data ...any) {
			ev, err := decodeEvent(name, firstMap(data))
			if err != nil {
				t.logger.Warn("engine event dropped", "event", name, "error", err)
				return
			}
			select {
			case raw <- ev:
			default:
				// Only reachable when the pump has stopped draining.
				t.logger.Warn("engine event dropped, stream backlogged", "event", name)
			}
		}
	}
	for _, name := range []string{evQueue, evStarted, evProgress, evComplete, evFailed, evPaused, evCancelled} {
		io.On(types.EventName(name), forward(name))
	}
	io.On(types.EventName("disconnect"), func(...any) {
		lostOnce.Do(func() { close(lost) })
	})

	go func() {
		defer close(out)
		defer t.endListen()
		for {
			select {
			case <-ctx.Done():
				return
			case <-lost:
				t.logger.Warn("engine connection lost", "url", t.cfg.URL)
				return
			case ev := <-raw:
				select {
				case out <- ev:
				case <-ctx.Done():
					return
				case <-lost:
					t.logger.Warn("engine connection lost", "url", t.cfg.URL)
					return
				}
			}
		}
	}()

	return out, nil
}

func (t *Transport) endListen() {
	t.mu.Lock()
	t.listening = false
	disconnected := t.io != nil && !t.io.Connected()
	if disconnected {
		t.connected = false
	}
	t.mu.Unlock()
}

// Close tears the connection down. Pending commands fail with
// engine.ErrClosed.
func (t *Transport) Close() {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	t.closed = true
	io := t.io
	t.io = nil
	t.connected = false
	for id, ch := range t.pending {
		delete(t.pending, id)
		ch <- commandResult{ok: false, err: engine.ErrClosed.Error()}
	}
	t.mu.Unlock()

	if io != nil {
		io.Disconnect()
	}
}

// --- Commander ---

// Start implements engine.Commander.
func (t *Transport) Start(ctx context.Context, urls []string) error {
	return t.call(ctx, cmdStart, map[string]any{"urls": urls})
}

// Resume implements engine.Commander.
func (t *Transport) Resume(ctx context.Context, ids []string) error {
	return t.call(ctx, cmdResume, map[string]any{"ids": ids})
}

// Pause implements engine.Commander.
func (t *Transport) Pause(ctx context.Context, id string) error {
	return t.call(ctx, cmdPause, map[string]any{"id": id})
}

// Cancel implements engine.Commander.
func (t *Transport) Cancel(ctx context.Context, id string) error {
	return t.call(ctx, cmdCancel, map[string]any{"id": id})
}

// call emits one command with a correlation id and waits for the
// matching command_result, the caller's ctx, or the command timeout.
func (t *Transport) call(ctx context.Context, cmd string, payload map[string]any) error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return engine.ErrClosed
	}
	if !t.connected || t.io == nil {
		t.mu.Unlock()
		return engine.ErrNotConnected
	}
	io := t.io
	corr := t.newID()
	ch := make(chan commandResult, 1)
	t.pending[corr] = ch
	t.mu.Unlock()

	defer func() {
		t.mu.Lock()
		delete(t.pending, corr)
		t.mu.Unlock()
	}()

	payload["correlation_id"] = corr
	t.logger.Debug("engine command", "command", cmd, "correlation_id", corr)
	io.Emit(cmd, payload)

	timeout := time.NewTimer(t.cfg.CommandTimeout)
	defer timeout.Stop()

	select {
	case res := <-ch:
		if !res.ok {
			if res.err == engine.ErrClosed.Error() {
				return engine.ErrClosed
			}
			return fmt.Errorf("socketio: %s rejected: %s", cmd, res.err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("socketio: %s: %w", cmd, ctx.Err())
	case <-timeout.C:
		return fmt.Errorf("socketio: %s: %w", cmd, engine.ErrCommandTimeout)
	}
}

func (t *Transport) resolveCommand(payload map[string]any) {
	corr := asString(payload["correlation_id"])
	if corr == "" {
		t.logger.Warn("command_result without correlation_id")
		return
	}

	res := commandResult{ok: asBool(payload["ok"]), err: asString(payload["error"])}
	if !res.ok && res.err == "" {
		res.err = "engine rejected command"
	}

	t.mu.Lock()
	ch, found := t.pending[corr]
	delete(t.pending, corr)
	t.mu.Unlock()

	if !found {
		// Late result after the caller gave up; harmless.
		t.logger.Debug("command_result for unknown correlation", "correlation_id", corr)
		return
	}
	ch <- res
}
