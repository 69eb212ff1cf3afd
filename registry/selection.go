package registry

import (
	"sort"
	"sync"
)

// Selection is a presentation-owned set of download ids. The registry
// never mutates it; bulk command helpers read it exactly once per call
// so a view change mid-call cannot alter the target set.
type Selection struct {
	mu  sync.Mutex
	ids map[string]struct{}
}

func NewSelection() *Selection {
	return &Selection{ids: make(map[string]struct{})}
}

// ToggleOne flips membership for a single id.
func (s *Selection) ToggleOne(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.ids[id]; ok {
		delete(s.ids, id)
		return
	}
	s.ids[id] = struct{}{}
}

// ToggleAll toggles against the given view: when the selection already
// holds as many ids as the view it clears, otherwise it becomes exactly
// the view's ids. Toggling twice in a row returns to where it started.
func (s *Selection) ToggleAll(view []Download) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.ids) == len(view) {
		s.ids = make(map[string]struct{})
		return
	}
	s.ids = make(map[string]struct{}, len(view))
	for _, d := range view {
		s.ids[d.ID] = struct{}{}
	}
}

// Has reports whether id is selected.
func (s *Selection) Has(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.ids[id]
	return ok
}

// Len returns the selection size.
func (s *Selection) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.ids)
}

// Clear empties the selection.
func (s *Selection) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ids = make(map[string]struct{})
}

// IDs returns the selected ids, sorted for deterministic command order.
func (s *Selection) IDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.ids))
	for id := range s.ids {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
