package registry

import (
	"context"
	"testing"

	"github.com/turdm/turc/engine"
)

func view(ids ...string) []Download {
	out := make([]Download, len(ids))
	for i, id := range ids {
		out[i] = Download{ID: id}
	}
	return out
}

func TestToggleOne(t *testing.T) {
	s := NewSelection()

	s.ToggleOne("a")
	if !s.Has("a") || s.Len() != 1 {
		t.Errorf("after toggle on: Has=%v Len=%d", s.Has("a"), s.Len())
	}
	s.ToggleOne("a")
	if s.Has("a") || s.Len() != 0 {
		t.Errorf("after toggle off: Has=%v Len=%d", s.Has("a"), s.Len())
	}
}

func TestToggleAll(t *testing.T) {
	s := NewSelection()
	v := view("a", "b", "c")

	// Empty selection: becomes the view.
	s.ToggleAll(v)
	if s.Len() != 3 || !s.Has("a") || !s.Has("c") {
		t.Errorf("after first toggle-all: Len=%d", s.Len())
	}

	// Full-size selection: clears. Two calls return to the start.
	s.ToggleAll(v)
	if s.Len() != 0 {
		t.Errorf("after second toggle-all: Len=%d, want 0", s.Len())
	}
}

func TestToggleAllPartialBecomesView(t *testing.T) {
	s := NewSelection()
	s.ToggleOne("a")

	s.ToggleAll(view("b", "c", "d"))
	if s.Len() != 3 || s.Has("a") || !s.Has("d") {
		t.Errorf("partial toggle-all: Len=%d Has(a)=%v", s.Len(), s.Has("a"))
	}
}

func TestToggleAllUsesViewNotTable(t *testing.T) {
	// The filtered view, not the whole table, defines "all".
	s := NewSelection()
	filtered := view("only-completed")

	s.ToggleAll(filtered)
	if s.Len() != 1 || !s.Has("only-completed") {
		t.Errorf("selection: Len=%d", s.Len())
	}

	// Size equality with the view clears, even though the table would
	// be bigger.
	s.ToggleAll(filtered)
	if s.Len() != 0 {
		t.Errorf("Len=%d, want 0", s.Len())
	}
}

func TestIDsSorted(t *testing.T) {
	s := NewSelection()
	for _, id := range []string{"c", "a", "b"} {
		s.ToggleOne(id)
	}
	got := s.IDs()
	if len(got) != 3 || got[0] != "a" || got[1] != "b" || got[2] != "c" {
		t.Errorf("IDs: got %v, want [a b c]", got)
	}
}

func TestBulkHelpersSnapshotSelectionOnce(t *testing.T) {
	r, fc := newTestRegistry(t)
	for _, id := range []string{"a", "b"} {
		r.Apply(queueEvent(id))
		r.Apply(engine.StartedEvent{ID: id})
	}

	sel := NewSelection()
	sel.ToggleOne("a")
	sel.ToggleOne("b")
	sel.ToggleOne("stale-gone")

	if err := r.PauseSelected(context.Background(), sel); err != nil {
		t.Fatalf("PauseSelected: %v", err)
	}
	// Both live rows paused, the stale id skipped without error.
	for _, id := range []string{"a", "b"} {
		if d := mustGet(t, r, id); d.Status != StatusPaused {
			t.Errorf("%s: got %q, want paused", id, d.Status)
		}
	}
	if len(fc.paused) != 2 {
		t.Errorf("pause calls: %v", fc.paused)
	}

	if err := r.ResumeSelected(context.Background(), sel); err != nil {
		t.Fatalf("ResumeSelected: %v", err)
	}
	if len(fc.resumed) != 1 {
		t.Fatalf("resume calls: got %d, want 1 batched", len(fc.resumed))
	}
	if got := fc.resumed[0]; len(got) != 2 {
		t.Errorf("resume batch: got %v, want the two live ids", got)
	}

	if err := r.CancelSelected(context.Background(), sel); err != nil {
		t.Fatalf("CancelSelected: %v", err)
	}
	if r.Len() != 0 {
		t.Errorf("Len after cancel: got %d, want 0", r.Len())
	}
}
