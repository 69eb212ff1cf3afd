package registry

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/turdm/turc/engine"
)

type fakeCommander struct {
	mu        sync.Mutex
	err       error
	started   [][]string
	paused    []string
	resumed   [][]string
	cancelled []string
}

func (f *fakeCommander) Start(_ context.Context, urls []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.started = append(f.started, urls)
	return f.err
}

func (f *fakeCommander) Resume(_ context.Context, ids []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resumed = append(f.resumed, ids)
	return f.err
}

func (f *fakeCommander) Pause(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.paused = append(f.paused, id)
	return f.err
}

func (f *fakeCommander) Cancel(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelled = append(f.cancelled, id)
	return f.err
}

func (f *fakeCommander) fail(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

func quiet() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestRegistry(t *testing.T, opts ...Option) (*Registry, *fakeCommander) {
	t.Helper()
	fc := &fakeCommander{}
	opts = append([]Option{WithLogger(quiet())}, opts...)
	r := New(fc, opts...)
	t.Cleanup(r.Close)
	return r, fc
}

func queueEvent(id string) engine.QueueEvent {
	return engine.QueueEvent{
		ID:          id,
		URL:         "https://files.example.com/" + id,
		Filename:    id + ".bin",
		Destination: "/tmp",
	}
}

func mustGet(t *testing.T, r *Registry, id string) Download {
	t.Helper()
	d, ok := r.Get(id)
	if !ok {
		t.Fatalf("download %q not in table", id)
	}
	return d
}

func TestQueueCreatesRow(t *testing.T) {
	r, _ := newTestRegistry(t)

	size := int64(1000)
	r.Apply(engine.QueueEvent{
		ID: "a", URL: "https://e.com/f", Filename: "f.bin",
		Destination: "/dl", Size: &size, ResumeSupported: true,
	})

	d := mustGet(t, r, "a")
	if d.Status != StatusQueued {
		t.Errorf("Status: got %q, want queued", d.Status)
	}
	if d.Size == nil || *d.Size != 1000 {
		t.Errorf("Size: got %v, want 1000", d.Size)
	}
	if !d.ResumeSupported {
		t.Error("ResumeSupported: got false")
	}
	if d.Revision != 1 {
		t.Errorf("Revision: got %d, want 1", d.Revision)
	}
}

func TestQueueSameIDDoesNotDuplicate(t *testing.T) {
	r, _ := newTestRegistry(t)

	r.Apply(queueEvent("a"))
	r.Apply(queueEvent("b"))
	r.Apply(engine.StartedEvent{ID: "a"})
	r.Apply(engine.ProgressEvent{ID: "a", Downloaded: 10, Progress: 10})

	// Second queue for "a" resets the row without duplicating it or
	// moving it behind "b".
	r.Apply(queueEvent("a"))

	if r.Len() != 2 {
		t.Fatalf("Len: got %d, want 2", r.Len())
	}
	rows := r.Snapshot()
	if rows[0].ID != "a" || rows[1].ID != "b" {
		t.Errorf("insertion order: got %q,%q, want a,b", rows[0].ID, rows[1].ID)
	}
	d := mustGet(t, r, "a")
	if d.Status != StatusQueued || d.Progress != 0 || d.Downloaded != 0 {
		t.Errorf("requeued row not reset: %+v", d)
	}
	if d.Revision < 4 {
		t.Errorf("Revision should keep climbing across the reset, got %d", d.Revision)
	}
}

func TestEventLifecycle(t *testing.T) {
	r, _ := newTestRegistry(t)

	r.Apply(queueEvent("a"))
	r.Apply(engine.StartedEvent{ID: "a"})
	r.Apply(engine.ProgressEvent{ID: "a", Downloaded: 50, Total: 100, Speed: 10, Progress: 50})

	d := mustGet(t, r, "a")
	if d.Status != StatusDownloading || d.Progress != 50 || d.Downloaded != 50 || d.Speed != 10 {
		t.Errorf("after progress: %+v", d)
	}
	if d.Size == nil || *d.Size != 100 {
		t.Errorf("Size from total: got %v, want 100", d.Size)
	}

	r.Apply(engine.CompleteEvent{ID: "a"})

	d = mustGet(t, r, "a")
	if d.Status != StatusCompleted {
		t.Errorf("Status: got %q, want completed", d.Status)
	}
	if d.Progress != 100 {
		t.Errorf("Progress: got %d, want 100", d.Progress)
	}
	if d.Downloaded != 50 {
		t.Errorf("Downloaded: got %d, want 50", d.Downloaded)
	}
	if d.Speed != 0 {
		t.Errorf("Speed: got %f, want 0", d.Speed)
	}
}

func TestProgressAfterCompleteIgnored(t *testing.T) {
	r, _ := newTestRegistry(t)

	r.Apply(queueEvent("a"))
	r.Apply(engine.StartedEvent{ID: "a"})
	r.Apply(engine.CompleteEvent{ID: "a"})
	// A buffered progress event delivered after the terminal event must
	// not win.
	r.Apply(engine.ProgressEvent{ID: "a", Downloaded: 70, Progress: 70})

	d := mustGet(t, r, "a")
	if d.Progress != 100 {
		t.Errorf("Progress: got %d, want 100", d.Progress)
	}
	if d.Status != StatusCompleted {
		t.Errorf("Status: got %q, want completed", d.Status)
	}
}

func TestUnknownIDEventsIgnored(t *testing.T) {
	r, _ := newTestRegistry(t)
	r.Apply(queueEvent("known"))

	r.Apply(engine.StartedEvent{ID: "ghost"})
	r.Apply(engine.ProgressEvent{ID: "ghost", Downloaded: 1, Progress: 1})
	r.Apply(engine.CompleteEvent{ID: "ghost"})
	r.Apply(engine.FailedEvent{ID: "ghost", Error: "boom"})
	r.Apply(engine.PausedEvent{ID: "ghost"})
	r.Apply(engine.CancelledEvent{ID: "ghost"})

	if r.Len() != 1 {
		t.Errorf("Len: got %d, want 1", r.Len())
	}
	d := mustGet(t, r, "known")
	if d.Status != StatusQueued || d.Revision != 1 {
		t.Errorf("other row disturbed: %+v", d)
	}
}

func TestFailedStoresError(t *testing.T) {
	r, _ := newTestRegistry(t)

	r.Apply(queueEvent("a"))
	r.Apply(engine.StartedEvent{ID: "a"})
	r.Apply(engine.FailedEvent{ID: "a", Error: "connection reset"})

	d := mustGet(t, r, "a")
	if d.Status != StatusFailed {
		t.Errorf("Status: got %q, want failed", d.Status)
	}
	if d.Error != "connection reset" {
		t.Errorf("Error: got %q", d.Error)
	}
}

func TestStartCommand(t *testing.T) {
	r, fc := newTestRegistry(t)

	if err := r.Start(context.Background(), []string{"https://e.com/a", "https://e.com/b"}); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if len(fc.started) != 1 || len(fc.started[0]) != 2 {
		t.Errorf("commander calls: %v", fc.started)
	}
	// No optimistic row; the queue event creates it.
	if r.Len() != 0 {
		t.Errorf("Len: got %d, want 0", r.Len())
	}

	fc.fail(errors.New("engine down"))
	err := r.Start(context.Background(), []string{"https://e.com/c"})
	var cerr *CommandError
	if !errors.As(err, &cerr) || cerr.Op != "start" {
		t.Errorf("error: got %v, want CommandError{Op:start}", err)
	}
}

func TestPauseOptimisticThenConfirmed(t *testing.T) {
	r, fc := newTestRegistry(t)
	r.Apply(queueEvent("a"))
	r.Apply(engine.StartedEvent{ID: "a"})

	if err := r.Pause(context.Background(), "a"); err != nil {
		t.Fatalf("Pause: %v", err)
	}

	d := mustGet(t, r, "a")
	if d.Status != StatusPaused {
		t.Errorf("Status: got %q, want paused", d.Status)
	}
	if d.Pending == nil || d.Pending.Kind != PendingPause || d.Pending.Prev != StatusDownloading {
		t.Errorf("Pending: got %+v", d.Pending)
	}
	if len(fc.paused) != 1 || fc.paused[0] != "a" {
		t.Errorf("commander pause calls: %v", fc.paused)
	}

	// Engine confirmation clears the tag.
	r.Apply(engine.PausedEvent{ID: "a"})
	d = mustGet(t, r, "a")
	if d.Status != StatusPaused || d.Pending != nil {
		t.Errorf("after confirmation: %+v", d)
	}
}

func TestPauseRevertsOnCommandFailure(t *testing.T) {
	r, fc := newTestRegistry(t)
	r.Apply(queueEvent("a"))
	r.Apply(engine.StartedEvent{ID: "a"})
	fc.fail(errors.New("engine says no"))

	err := r.Pause(context.Background(), "a")
	var cerr *CommandError
	if !errors.As(err, &cerr) || cerr.Op != "pause" || cerr.ID != "a" {
		t.Fatalf("error: got %v, want CommandError{Op:pause, ID:a}", err)
	}

	d := mustGet(t, r, "a")
	if d.Status != StatusDownloading {
		t.Errorf("Status after revert: got %q, want downloading", d.Status)
	}
	if d.Pending != nil {
		t.Errorf("Pending after revert: got %+v", d.Pending)
	}
}

func TestPauseUnknownAndTerminal(t *testing.T) {
	r, fc := newTestRegistry(t)

	if err := r.Pause(context.Background(), "ghost"); !errors.Is(err, ErrUnknownDownload) {
		t.Errorf("Pause ghost: got %v, want ErrUnknownDownload", err)
	}

	r.Apply(queueEvent("a"))
	r.Apply(engine.CompleteEvent{ID: "a"})
	if err := r.Pause(context.Background(), "a"); err != nil {
		t.Errorf("Pause terminal: got %v, want nil", err)
	}
	if len(fc.paused) != 0 {
		t.Errorf("terminal pause reached the engine: %v", fc.paused)
	}
}

func TestResumeBatchedAndOptimistic(t *testing.T) {
	r, fc := newTestRegistry(t)
	for _, id := range []string{"a", "b", "c"} {
		r.Apply(queueEvent(id))
		r.Apply(engine.StartedEvent{ID: id})
		r.Apply(engine.PausedEvent{ID: id})
	}
	r.Apply(engine.CompleteEvent{ID: "c"})

	if err := r.Resume(context.Background(), "a", "b", "c", "ghost"); err != nil {
		t.Fatalf("Resume: %v", err)
	}

	for _, id := range []string{"a", "b"} {
		d := mustGet(t, r, id)
		if d.Status != StatusDownloading {
			t.Errorf("%s Status: got %q, want downloading", id, d.Status)
		}
		if d.Pending == nil || d.Pending.Kind != PendingResume {
			t.Errorf("%s Pending: got %+v", id, d.Pending)
		}
	}
	// One batched call, terminal and unknown ids dropped.
	if len(fc.resumed) != 1 {
		t.Fatalf("resume calls: got %d, want 1", len(fc.resumed))
	}
	if got := fc.resumed[0]; len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Errorf("resume ids: got %v, want [a b]", got)
	}

	// The started event confirms and clears the tag.
	r.Apply(engine.StartedEvent{ID: "a"})
	if d := mustGet(t, r, "a"); d.Pending != nil {
		t.Errorf("Pending after started: got %+v", d.Pending)
	}
}

func TestResumeRevertsOnCommandFailure(t *testing.T) {
	r, fc := newTestRegistry(t)
	r.Apply(queueEvent("a"))
	r.Apply(engine.StartedEvent{ID: "a"})
	r.Apply(engine.PausedEvent{ID: "a"})
	fc.fail(errors.New("engine down"))

	if err := r.Resume(context.Background(), "a"); err == nil {
		t.Fatal("Resume should fail")
	}
	d := mustGet(t, r, "a")
	if d.Status != StatusPaused || d.Pending != nil {
		t.Errorf("after revert: %+v", d)
	}
}

func TestCancelRemovesImmediately(t *testing.T) {
	r, fc := newTestRegistry(t)
	r.Apply(queueEvent("a"))
	r.Apply(engine.StartedEvent{ID: "a"})
	fc.fail(errors.New("engine unreachable"))

	// The row disappears even though the engine call fails.
	err := r.Cancel(context.Background(), "a")
	if err == nil {
		t.Fatal("Cancel should surface the engine failure")
	}
	if _, ok := r.Get("a"); ok {
		t.Error("row still present after cancel")
	}
	if len(fc.cancelled) != 1 {
		t.Errorf("cancel calls: %v", fc.cancelled)
	}

	// Late events for the removed id are ignored.
	r.Apply(engine.ProgressEvent{ID: "a", Downloaded: 10, Progress: 10})
	if r.Len() != 0 {
		t.Errorf("Len: got %d, want 0", r.Len())
	}
}

func TestStaleEventDiscardedWhilePendingFresh(t *testing.T) {
	r, _ := newTestRegistry(t)
	base := time.Now()
	r.now = func() time.Time { return base }

	r.Apply(queueEvent("a"))
	r.Apply(engine.StartedEvent{ID: "a"})
	r.Apply(engine.PausedEvent{ID: "a"})

	// Optimistic resume; a stale paused event from before the command
	// must not regress the row while the tag is fresh.
	if err := r.Resume(context.Background(), "a"); err != nil {
		t.Fatalf("Resume: %v", err)
	}
	r.Apply(engine.PausedEvent{ID: "a"})

	d := mustGet(t, r, "a")
	if d.Status != StatusDownloading {
		t.Errorf("Status: got %q, want downloading (stale pause discarded)", d.Status)
	}

	// Once the tag goes stale the same event applies normally.
	r.now = func() time.Time { return base.Add(defaultPendingWindow + time.Second) }
	r.Apply(engine.PausedEvent{ID: "a"})
	d = mustGet(t, r, "a")
	if d.Status != StatusPaused || d.Pending != nil {
		t.Errorf("after stale window: %+v", d)
	}
}

func TestStaleStartDiscardedWhilePausePending(t *testing.T) {
	r, _ := newTestRegistry(t)
	base := time.Now()
	r.now = func() time.Time { return base }

	r.Apply(queueEvent("a"))
	r.Apply(engine.StartedEvent{ID: "a"})

	if err := r.Pause(context.Background(), "a"); err != nil {
		t.Fatalf("Pause: %v", err)
	}
	r.Apply(engine.StartedEvent{ID: "a"})

	if d := mustGet(t, r, "a"); d.Status != StatusPaused {
		t.Errorf("Status: got %q, want paused (stale start discarded)", d.Status)
	}
}

func TestTerminalEventAppliesDespitePending(t *testing.T) {
	r, _ := newTestRegistry(t)
	r.Apply(queueEvent("a"))
	r.Apply(engine.StartedEvent{ID: "a"})

	if err := r.Pause(context.Background(), "a"); err != nil {
		t.Fatalf("Pause: %v", err)
	}
	// Terminal events always win over a fresh optimistic tag.
	r.Apply(engine.CompleteEvent{ID: "a"})

	d := mustGet(t, r, "a")
	if d.Status != StatusCompleted || d.Progress != 100 || d.Pending != nil {
		t.Errorf("after complete: %+v", d)
	}
}

func TestRevisionsClimbPerMutation(t *testing.T) {
	r, _ := newTestRegistry(t)
	r.Apply(queueEvent("a"))

	var last uint64
	for _, ev := range []engine.Event{
		engine.StartedEvent{ID: "a"},
		engine.ProgressEvent{ID: "a", Downloaded: 10, Progress: 10},
		engine.ProgressEvent{ID: "a", Downloaded: 20, Progress: 20},
		engine.CompleteEvent{ID: "a"},
	} {
		r.Apply(ev)
		d := mustGet(t, r, "a")
		if d.Revision <= last {
			t.Fatalf("Revision did not climb: %d after %d", d.Revision, last)
		}
		last = d.Revision
	}
}

func TestChangesPublished(t *testing.T) {
	r, _ := newTestRegistry(t)
	ch, cancel := r.Changes().Subscribe(16)
	defer cancel()

	r.Apply(queueEvent("a"))
	r.Apply(engine.StartedEvent{ID: "a"})
	r.Apply(engine.CompleteEvent{ID: "a"})
	if err := r.Cancel(context.Background(), "a"); err != nil {
		t.Fatalf("Cancel: %v", err)
	}

	want := []ChangeKind{ChangeQueued, ChangeUpdated, ChangeCompleted, ChangeRemoved}
	for i, kind := range want {
		select {
		case got := <-ch:
			if got.Kind != kind {
				t.Errorf("change %d: got %q, want %q", i, got.Kind, kind)
			}
			if got.ID != "a" {
				t.Errorf("change %d: id %q, want a", i, got.ID)
			}
		case <-time.After(time.Second):
			t.Fatalf("change %d (%s) never arrived", i, kind)
		}
	}
}

func TestRunDrainsSource(t *testing.T) {
	r, _ := newTestRegistry(t)

	events := make(chan engine.Event, 4)
	src := sourceFunc(func(ctx context.Context) (<-chan engine.Event, error) {
		return events, nil
	})

	done := make(chan error, 1)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { done <- r.Run(ctx, src) }()

	events <- queueEvent("a")
	events <- engine.StartedEvent{ID: "a"}

	waitFor(t, func() bool {
		d, ok := r.Get("a")
		return ok && d.Status == StatusDownloading
	})

	// Channel closure ends the session but keeps the table.
	close(events)
	select {
	case err := <-done:
		if !errors.Is(err, engine.ErrClosed) {
			t.Errorf("Run: got %v, want ErrClosed", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run did not return after channel close")
	}
	if r.Len() != 1 {
		t.Errorf("table lost rows on disconnect: Len %d", r.Len())
	}
}

type sourceFunc func(ctx context.Context) (<-chan engine.Event, error)

func (f sourceFunc) Listen(ctx context.Context) (<-chan engine.Event, error) { return f(ctx) }

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition never met")
}
