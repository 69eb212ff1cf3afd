// Package registry is the single source of truth for what surfaces
// show about every known download.
//
// The engine owns the transfer; the registry owns the view. Engine
// events flow in through Run/Apply and are reconciled into an in-memory
// table; user intent flows out as engine commands with optimistic local
// updates where that is safe. Everything a surface renders comes from
// the derived views, which return copies.
//
// Flows:
//
//	Event:   engine → Run/Apply → table mutation → Change on the hub
//	Command: surface → Pause/Resume/Cancel → optimistic mutation → engine call
//	History: table mutations mirrored best-effort into SQLite
//
// Usage:
//
//	reg := registry.New(commander, registry.WithLogger(logger))
//	defer reg.Close()
//	go reg.Run(ctx, source)
//	rows := reg.Overview()
package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/turdm/turc/engine"
	"github.com/turdm/turc/pubsub"
	"github.com/turdm/turc/registry/internal/store"
)

// defaultPendingWindow is how long an optimistic status shields a row
// from contradicting non-terminal events.
const defaultPendingWindow = 10 * time.Second

// Registry owns the canonical in-memory table of downloads.
type Registry struct {
	commander engine.Commander
	logger    *slog.Logger
	changes   *pubsub.Hub[Change]
	history   *store.Store
	historyOn func() bool
	observer  func(engine.Event)
	window    time.Duration
	now       func() time.Time

	mu    sync.RWMutex
	rows  map[string]*Download
	order []string
}

type Option func(*Registry)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(r *Registry) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithPendingWindow overrides how long an optimistic status stays
// authoritative over contradicting non-terminal events.
func WithPendingWindow(d time.Duration) Option {
	return func(r *Registry) {
		if d > 0 {
			r.window = d
		}
	}
}

// WithHistory attaches the history store. enabled is consulted before
// every write so the session.history setting can flip at runtime; a nil
// enabled records unconditionally.
func WithHistory(st *store.Store, enabled func() bool) Option {
	return func(r *Registry) {
		r.history = st
		r.historyOn = enabled
	}
}

// WithEventObserver calls fn for every event before it is applied.
func WithEventObserver(fn func(engine.Event)) Option {
	return func(r *Registry) {
		r.observer = fn
	}
}

// New creates a Registry issuing commands through the given Commander.
func New(commander engine.Commander, opts ...Option) *Registry {
	r := &Registry{
		commander: commander,
		logger:    slog.Default(),
		changes:   pubsub.NewHub[Change](),
		window:    defaultPendingWindow,
		now:       time.Now,
		rows:      make(map[string]*Download),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Changes exposes the change feed.
func (r *Registry) Changes() *pubsub.Hub[Change] {
	return r.changes
}

// Close shuts the change feed down. The history store is owned by the
// caller and stays open.
func (r *Registry) Close() {
	r.changes.Close()
}

// Run drains one listen session, applying events in arrival order. It
// returns engine.ErrClosed when the event channel closes, leaving the
// table intact so the caller can re-listen; rows go stale, not lost.
func (r *Registry) Run(ctx context.Context, src engine.Source) error {
	events, err := src.Listen(ctx)
	if err != nil {
		return fmt.Errorf("registry: listen: %w", err)
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return engine.ErrClosed
			}
			r.Apply(ev)
		}
	}
}

func (r *Registry) publish(kind ChangeKind, id string, rev uint64) {
	r.changes.Publish(Change{Kind: kind, ID: id, Revision: rev})
}

// --- Commands ---

// Start asks the engine to enqueue new downloads. No optimistic row is
// created; rows appear when the engine emits its queue event.
func (r *Registry) Start(ctx context.Context, urls []string) error {
	if len(urls) == 0 {
		return nil
	}
	if err := r.commander.Start(ctx, urls); err != nil {
		r.logger.Warn("start command failed", "urls", len(urls), "error", err)
		return &CommandError{Op: "start", Err: err}
	}
	return nil
}

// Pause pauses one download. The row flips to paused immediately with a
// pending tag; a failed engine call reverts it to the previous status.
func (r *Registry) Pause(ctx context.Context, id string) error {
	r.mu.Lock()
	row, ok := r.rows[id]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrUnknownDownload, id)
	}
	if row.Status.Terminal() {
		r.mu.Unlock()
		return nil
	}
	prev := row.Status
	row.Status = StatusPaused
	row.Speed = 0
	row.Pending = &Pending{Kind: PendingPause, Prev: prev, Since: r.now()}
	row.Revision++
	rev := row.Revision
	r.mu.Unlock()

	r.publish(ChangeUpdated, id, rev)
	r.historySetStatus(id, "paused")

	if err := r.commander.Pause(ctx, id); err != nil {
		r.revert(id, PendingPause)
		r.logger.Warn("pause command failed", "id", id, "error", err)
		return &CommandError{Op: "pause", ID: id, Err: err}
	}
	return nil
}

// Resume resumes the given downloads with one batched engine call.
// Paused rows flip to downloading immediately with a pending tag;
// unknown and terminal ids are skipped.
func (r *Registry) Resume(ctx context.Context, ids ...string) error {
	var targets []string
	var updated []Change

	r.mu.Lock()
	for _, id := range ids {
		row, ok := r.rows[id]
		if !ok || row.Status.Terminal() {
			continue
		}
		if row.Status == StatusPaused {
			row.Status = StatusDownloading
			row.Pending = &Pending{Kind: PendingResume, Prev: StatusPaused, Since: r.now()}
			row.Revision++
			updated = append(updated, Change{Kind: ChangeUpdated, ID: id, Revision: row.Revision})
		}
		targets = append(targets, id)
	}
	r.mu.Unlock()

	for _, ch := range updated {
		r.changes.Publish(ch)
		r.historySetStatus(ch.ID, "")
	}
	if len(targets) == 0 {
		return nil
	}

	if err := r.commander.Resume(ctx, targets); err != nil {
		for _, ch := range updated {
			r.revert(ch.ID, PendingResume)
		}
		r.logger.Warn("resume command failed", "ids", len(targets), "error", err)
		return &CommandError{Op: "resume", Err: err}
	}
	return nil
}

// Cancel removes the row immediately and tells the engine. The removal
// stands regardless of the call's outcome: a cancel is advisory to the
// engine and authoritative to the table. Cancelling an id with no row
// still forwards the command.
func (r *Registry) Cancel(ctx context.Context, id string) error {
	r.mu.Lock()
	row, ok := r.rows[id]
	var rev uint64
	if ok {
		rev = row.Revision + 1
		delete(r.rows, id)
		r.dropOrder(id)
	}
	r.mu.Unlock()

	if ok {
		r.publish(ChangeRemoved, id, rev)
		r.historyDelete(id)
	}

	if err := r.commander.Cancel(ctx, id); err != nil {
		r.logger.Warn("cancel command failed", "id", id, "error", err)
		return &CommandError{Op: "cancel", ID: id, Err: err}
	}
	return nil
}

// PauseSelected pauses every selected download. The selection is read
// exactly once up front so a view change mid-call cannot alter the
// target set. Stale ids are skipped; the first engine failure is
// returned after all ids were attempted.
func (r *Registry) PauseSelected(ctx context.Context, sel *Selection) error {
	var firstErr error
	for _, id := range sel.IDs() {
		err := r.Pause(ctx, id)
		if err != nil && !errors.Is(err, ErrUnknownDownload) && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// ResumeSelected resumes every selected download in one batched call.
func (r *Registry) ResumeSelected(ctx context.Context, sel *Selection) error {
	return r.Resume(ctx, sel.IDs()...)
}

// CancelSelected cancels every selected download.
func (r *Registry) CancelSelected(ctx context.Context, sel *Selection) error {
	var firstErr error
	for _, id := range sel.IDs() {
		if err := r.Cancel(ctx, id); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// revert undoes an optimistic mutation after a failed command, putting
// the row back to the status recorded in its pending tag. A row whose
// tag was already cleared or replaced is left alone.
func (r *Registry) revert(id string, kind PendingKind) {
	r.mu.Lock()
	row, ok := r.rows[id]
	if !ok || row.Pending == nil || row.Pending.Kind != kind {
		r.mu.Unlock()
		return
	}
	prev := row.Pending.Prev
	row.Status = prev
	row.Pending = nil
	row.Revision++
	rev := row.Revision
	r.mu.Unlock()

	r.publish(ChangeUpdated, id, rev)
	r.historySetStatus(id, historyStatusName(prev))
}

func (r *Registry) dropOrder(id string) {
	for i, other := range r.order {
		if other == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			return
		}
	}
}

func (r *Registry) fresh(p *Pending) bool {
	return r.now().Sub(p.Since) < r.window
}
