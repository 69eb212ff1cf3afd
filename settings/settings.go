// Package settings owns the persisted application configuration: a typed
// document with defaults, dotted-path get/set, write-through persistence
// and a change feed for surfaces that render it.
//
// The document on disk may lag the schema (older releases, hand edits).
// Load therefore deep-merges: defaults first, then whatever the persisted
// JSON actually carries, so missing groups and keys silently keep their
// default values.
package settings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/turdm/turc/pubsub"
)

// Update describes one applied mutation, published on Changes after the
// new value is both persisted and visible to Get.
type Update struct {
	Path  string `json:"path"`
	Value any    `json:"value"`
}

// Store holds the authoritative in-memory document. Reads never touch
// disk; writes go through the persister first and only mutate memory
// once the save succeeded.
type Store struct {
	persist Persister
	cache   *Cache
	logger  *slog.Logger
	changes *pubsub.Hub[Update]
	known   map[string]struct{}

	mu     sync.RWMutex
	doc    Document
	tree   map[string]any
	loaded bool
}

type Option func(*Store)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithCache attaches a fast-path cache, read as a fallback when Load
// fails and refreshed after successful writes.
func WithCache(c *Cache) Option {
	return func(s *Store) {
		s.cache = c
	}
}

// New returns a store seeded with defaults. Get works immediately;
// Ready stays false until Load has run once.
func New(p Persister, opts ...Option) *Store {
	doc := Defaults()
	tree, err := docToTree(doc)
	if err != nil {
		tree = map[string]any{}
	}
	known := make(map[string]struct{})
	for _, path := range KnownPaths() {
		known[path] = struct{}{}
	}
	s := &Store{
		persist: p,
		logger:  slog.Default(),
		changes: pubsub.NewHub[Update](),
		known:   known,
		doc:     doc,
		tree:    tree,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load reads the persisted document and merges it over defaults. On a
// first run it persists the defaults so the file exists. On failure the
// store falls back to defaults, overlaid with the fast-path cache when
// one is attached, and still becomes ready: a broken settings file must
// not wedge the application. Only the first call does anything.
func (s *Store) Load(ctx context.Context) error {
	s.mu.Lock()
	if s.loaded {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	doc := Defaults()
	var loadErr error
	data, err := s.persist.Load(ctx)
	switch {
	case err == nil:
		if uerr := json.Unmarshal(data, &doc); uerr != nil {
			loadErr = fmt.Errorf("settings: parse persisted document: %w", uerr)
			doc = Defaults()
		}
	case errors.Is(err, ErrNoDocument):
		if serr := s.save(ctx, doc); serr != nil {
			s.logger.Warn("persist default settings", "error", serr)
		}
	default:
		loadErr = err
	}

	if loadErr != nil && s.cache != nil {
		if snap, ok := s.cache.Read(); ok {
			doc.applySnapshot(snap)
		}
	}

	tree, terr := docToTree(doc)
	if terr != nil {
		tree = map[string]any{}
	}

	s.mu.Lock()
	if !s.loaded {
		s.doc = doc
		s.tree = tree
		s.loaded = true
	}
	s.mu.Unlock()

	if loadErr != nil {
		s.logger.Warn("settings load failed, running on defaults", "error", loadErr)
	}
	return loadErr
}

// Ready reports whether Load has completed, successfully or not.
func (s *Store) Ready() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loaded
}

// Get resolves a dotted path against the in-memory document. Group
// paths return a nested map, leaves return their scalar. ok is false
// for paths the schema does not know.
func (s *Store) Get(path string) (any, bool) {
	s.mu.RLock()
	v, ok := lookup(s.tree, path)
	s.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if m, isMap := v.(map[string]any); isMap {
		return cloneTree(m), true
	}
	return v, true
}

// Document returns a copy of the current document.
func (s *Store) Document() Document {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.doc
}

// Set validates path and value, persists the updated document and only
// then makes it visible. A failed save leaves memory untouched, so Get
// keeps returning the previous value.
func (s *Store) Set(ctx context.Context, path string, value any) error {
	if _, ok := s.known[path]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownKey, path)
	}

	s.mu.RLock()
	cur := s.doc
	s.mu.RUnlock()

	tree, err := docToTree(cur)
	if err != nil {
		return err
	}
	if !assign(tree, path, value) {
		return fmt.Errorf("%w: %s", ErrUnknownKey, path)
	}
	doc, err := treeToDoc(tree)
	if err != nil {
		return fmt.Errorf("set %s: %w", path, err)
	}
	if err := s.save(ctx, doc); err != nil {
		return err
	}

	newTree, err := docToTree(doc)
	if err != nil {
		newTree = tree
	}
	s.mu.Lock()
	s.doc = doc
	s.tree = newTree
	s.mu.Unlock()

	if s.cache != nil {
		if err := s.cache.Write(doc.snapshot()); err != nil {
			s.logger.Warn("refresh settings cache", "error", err)
		}
	}
	canonical, _ := lookup(newTree, path)
	s.changes.Publish(Update{Path: path, Value: canonical})
	return nil
}

func (s *Store) save(ctx context.Context, doc Document) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("settings: encode document: %w", err)
	}
	if err := s.persist.Save(ctx, data); err != nil {
		return fmt.Errorf("settings: persist: %w", err)
	}
	return nil
}

// Changes exposes the update feed. Subscribers receive every applied
// Set in order.
func (s *Store) Changes() *pubsub.Hub[Update] {
	return s.changes
}

// Close shuts the change feed down.
func (s *Store) Close() {
	s.changes.Close()
}

func cloneTree(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		if nested, ok := v.(map[string]any); ok {
			out[k] = cloneTree(nested)
			continue
		}
		out[k] = v
	}
	return out
}
