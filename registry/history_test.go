package registry

import (
	"context"
	"errors"
	"testing"

	"github.com/turdm/turc/dbopen"
	"github.com/turdm/turc/engine"
	"github.com/turdm/turc/registry/internal/store"
	_ "modernc.org/sqlite"
)

func testHistory(t *testing.T) *store.Store {
	t.Helper()
	db := dbopen.OpenMemory(t)
	if _, err := db.Exec(store.Schema); err != nil {
		t.Fatalf("apply schema: %v", err)
	}
	return &store.Store{DB: db}
}

func TestHistoryMirrorsLifecycle(t *testing.T) {
	hs := testHistory(t)
	r, _ := newTestRegistry(t, WithHistory(hs, nil))
	ctx := context.Background()

	r.Apply(queueEvent("a"))
	rec, err := hs.Get(ctx, "a")
	if err != nil || rec == nil {
		t.Fatalf("record after queue: %v, %v", rec, err)
	}
	if !rec.InProgress() {
		t.Errorf("Status: got %q, want in-progress", rec.Status)
	}

	r.Apply(engine.StartedEvent{ID: "a"})
	// Crossing a 10% boundary checkpoints the byte count.
	r.Apply(engine.ProgressEvent{ID: "a", Downloaded: 120, Total: 1000, Progress: 12})
	rec, _ = hs.Get(ctx, "a")
	if rec.BytesReceived != 120 {
		t.Errorf("BytesReceived: got %d, want 120", rec.BytesReceived)
	}
	// Staying inside the same decade does not.
	r.Apply(engine.ProgressEvent{ID: "a", Downloaded: 150, Total: 1000, Progress: 15})
	rec, _ = hs.Get(ctx, "a")
	if rec.BytesReceived != 120 {
		t.Errorf("BytesReceived after same-decade tick: got %d, want 120", rec.BytesReceived)
	}

	r.Apply(engine.CompleteEvent{ID: "a"})
	rec, _ = hs.Get(ctx, "a")
	if !rec.Completed() {
		t.Errorf("Status: got %q, want completed", rec.Status)
	}
}

func TestHistoryDeleteOnCancel(t *testing.T) {
	hs := testHistory(t)
	r, _ := newTestRegistry(t, WithHistory(hs, nil))
	ctx := context.Background()

	r.Apply(queueEvent("a"))
	if err := r.Cancel(ctx, "a"); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	rec, _ := hs.Get(ctx, "a")
	if rec != nil {
		t.Error("record still present after cancel")
	}
}

func TestHistoryGate(t *testing.T) {
	hs := testHistory(t)
	enabled := false
	r, _ := newTestRegistry(t, WithHistory(hs, func() bool { return enabled }))
	ctx := context.Background()

	r.Apply(queueEvent("off"))
	if rec, _ := hs.Get(ctx, "off"); rec != nil {
		t.Error("record written while history disabled")
	}

	// The session.history setting can flip at runtime.
	enabled = true
	r.Apply(queueEvent("on"))
	if rec, _ := hs.Get(ctx, "on"); rec == nil {
		t.Error("record missing while history enabled")
	}
}

func TestHistoryAPIDisabled(t *testing.T) {
	r, _ := newTestRegistry(t)
	if _, err := r.History(context.Background(), 0); !errors.Is(err, ErrHistoryDisabled) {
		t.Errorf("History: got %v, want ErrHistoryDisabled", err)
	}
	if err := r.PurgeHistory(context.Background()); !errors.Is(err, ErrHistoryDisabled) {
		t.Errorf("PurgeHistory: got %v, want ErrHistoryDisabled", err)
	}
}

func TestRestoreHistory(t *testing.T) {
	hs := testHistory(t)
	ctx := context.Background()

	size := int64(200)
	hs.Insert(ctx, &store.Record{ID: "old-done", Filename: "a", URL: "u1", Destination: "/d", Size: &size, BytesReceived: 200})
	hs.MarkCompleted(ctx, "old-done")
	hs.Insert(ctx, &store.Record{ID: "old-paused", Filename: "b", URL: "u2", Destination: "/d", Size: &size, BytesReceived: 50})
	hs.UpdateStatus(ctx, "old-paused", "paused")
	hs.Insert(ctx, &store.Record{ID: "running", Filename: "c", URL: "u3", Destination: "/d"})

	r, _ := newTestRegistry(t, WithHistory(hs, nil))
	// The engine already re-announced one id before restore ran.
	r.Apply(queueEvent("old-paused"))

	n, err := r.RestoreHistory(ctx)
	if err != nil {
		t.Fatalf("RestoreHistory: %v", err)
	}
	if n != 1 {
		t.Errorf("restored: got %d, want 1", n)
	}

	done := mustGet(t, r, "old-done")
	if done.Status != StatusCompleted || done.Progress != 100 {
		t.Errorf("restored completed row: %+v", done)
	}

	// The live queued row was not overwritten by the stored one.
	if d := mustGet(t, r, "old-paused"); d.Status != StatusQueued {
		t.Errorf("requeued row overwritten: %+v", d)
	}

	// In-progress rows stay out; the engine re-announces what it owns.
	if _, ok := r.Get("running"); ok {
		t.Error("in-progress record restored")
	}
}

func TestRestoredProgressDerivation(t *testing.T) {
	hs := testHistory(t)
	ctx := context.Background()

	size := int64(400)
	hs.Insert(ctx, &store.Record{ID: "p", Filename: "f", URL: "u", Destination: "/d", Size: &size, BytesReceived: 100})
	hs.UpdateStatus(ctx, "p", "paused")

	r, _ := newTestRegistry(t, WithHistory(hs, nil))
	if _, err := r.RestoreHistory(ctx); err != nil {
		t.Fatal(err)
	}
	d := mustGet(t, r, "p")
	if d.Progress != 25 {
		t.Errorf("Progress: got %d, want 25", d.Progress)
	}
	if d.Downloaded != 100 {
		t.Errorf("Downloaded: got %d, want 100", d.Downloaded)
	}
	if d.Status != StatusPaused {
		t.Errorf("Status: got %q, want paused", d.Status)
	}
}
