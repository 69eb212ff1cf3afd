package watch

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	_ "modernc.org/sqlite"
)

func testDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "watch.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	return db
}

func setUserVersion(t *testing.T, db *sql.DB, v int64) {
	t.Helper()
	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", v)); err != nil {
		t.Fatalf("set user_version: %v", err)
	}
}

func TestDetectsExternalWrite(t *testing.T) {
	db := testDB(t)

	var fired atomic.Int64
	w := New(db, Options{
		Interval: 10 * time.Millisecond,
		Detector: PragmaUserVersion,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.OnChange(ctx, func() error {
		fired.Add(1)
		return nil
	})

	setUserVersion(t, db, 1)

	waitCtx, waitCancel := context.WithTimeout(ctx, 2*time.Second)
	defer waitCancel()
	if err := w.WaitForVersion(waitCtx, 1); err != nil {
		t.Fatalf("WaitForVersion: %v", err)
	}

	if got := fired.Load(); got != 1 {
		t.Errorf("action fired %d times, want 1", got)
	}
	stats := w.Stats()
	if stats.ChangesDetected != 1 {
		t.Errorf("ChangesDetected = %d, want 1", stats.ChangesDetected)
	}
	if stats.Notifies != 1 {
		t.Errorf("Notifies = %d, want 1", stats.Notifies)
	}
}

func TestDebounceCoalescesBursts(t *testing.T) {
	db := testDB(t)

	var fired atomic.Int64
	w := New(db, Options{
		Interval: 10 * time.Millisecond,
		Debounce: 80 * time.Millisecond,
		Detector: PragmaUserVersion,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.OnChange(ctx, func() error {
		fired.Add(1)
		return nil
	})

	// A burst of writes inside the debounce window.
	for v := int64(1); v <= 3; v++ {
		setUserVersion(t, db, v)
		time.Sleep(20 * time.Millisecond)
	}

	waitCtx, waitCancel := context.WithTimeout(ctx, 2*time.Second)
	defer waitCancel()
	if err := w.WaitForVersion(waitCtx, 3); err != nil {
		t.Fatalf("WaitForVersion: %v", err)
	}

	if got := fired.Load(); got != 1 {
		t.Errorf("action fired %d times, want 1 after coalescing", got)
	}
}

func TestPreexistingDataIsNotAChange(t *testing.T) {
	db := testDB(t)
	setUserVersion(t, db, 7)

	var fired atomic.Int64
	w := New(db, Options{
		Interval: 5 * time.Millisecond,
		Detector: PragmaUserVersion,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.OnChange(ctx, func() error {
		fired.Add(1)
		return nil
	})

	// Let a few polling cycles pass.
	deadline := time.Now().Add(2 * time.Second)
	for w.Stats().Checks < 3 {
		if time.Now().After(deadline) {
			t.Fatal("watcher never polled")
		}
		time.Sleep(5 * time.Millisecond)
	}

	if got := fired.Load(); got != 0 {
		t.Errorf("action fired %d times for pre-existing data, want 0", got)
	}
	if got := w.Version(); got != 7 {
		t.Errorf("baseline version = %d, want 7", got)
	}
}

func TestActionErrorRetries(t *testing.T) {
	db := testDB(t)

	var attempts atomic.Int64
	w := New(db, Options{
		Interval: 10 * time.Millisecond,
		Detector: PragmaUserVersion,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.OnChange(ctx, func() error {
		if attempts.Add(1) == 1 {
			return errors.New("transient")
		}
		return nil
	})

	setUserVersion(t, db, 1)

	waitCtx, waitCancel := context.WithTimeout(ctx, 2*time.Second)
	defer waitCancel()
	if err := w.WaitForVersion(waitCtx, 1); err != nil {
		t.Fatalf("WaitForVersion: %v", err)
	}

	if got := attempts.Load(); got < 2 {
		t.Errorf("attempts = %d, want at least 2", got)
	}
	stats := w.Stats()
	if stats.Errors < 1 {
		t.Errorf("Errors = %d, want at least 1", stats.Errors)
	}
	if stats.Notifies != 1 {
		t.Errorf("Notifies = %d, want 1", stats.Notifies)
	}
}

func TestStopsOnContextCancel(t *testing.T) {
	db := testDB(t)

	w := New(db, Options{
		Interval: 5 * time.Millisecond,
		Detector: PragmaUserVersion,
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.OnChange(ctx, func() error { return nil })
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("OnChange did not return after cancel")
	}
}

func TestWaitForVersionTimeout(t *testing.T) {
	db := testDB(t)
	w := New(db, Options{Detector: PragmaUserVersion})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := w.WaitForVersion(ctx, 99)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want deadline exceeded", err)
	}
}

func TestPragmaDataVersionSeesOtherConnections(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shared.db")

	open := func() *sql.DB {
		db, err := sql.Open("sqlite", path)
		if err != nil {
			t.Fatalf("open db: %v", err)
		}
		db.SetMaxOpenConns(1)
		t.Cleanup(func() { db.Close() })
		return db
	}
	reader, writer := open(), open()

	ctx := context.Background()
	before, err := PragmaDataVersion(ctx, reader)
	if err != nil {
		t.Fatalf("data_version: %v", err)
	}

	if _, err := writer.Exec("CREATE TABLE t (n INTEGER)"); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := writer.Exec("INSERT INTO t (n) VALUES (1)"); err != nil {
		t.Fatalf("write: %v", err)
	}

	after, err := PragmaDataVersion(ctx, reader)
	if err != nil {
		t.Fatalf("data_version: %v", err)
	}
	if after == before {
		t.Errorf("data_version unchanged after external write: %d", after)
	}
}
