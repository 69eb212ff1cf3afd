package settings

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type memPersister struct {
	mu      sync.Mutex
	data    []byte
	loadErr error
	saveErr error
	saves   int
}

func (p *memPersister) Load(context.Context) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.loadErr != nil {
		return nil, p.loadErr
	}
	if p.data == nil {
		return nil, ErrNoDocument
	}
	return p.data, nil
}

func (p *memPersister) Save(_ context.Context, data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.saves++
	if p.saveErr != nil {
		return p.saveErr
	}
	p.data = append([]byte(nil), data...)
	return nil
}

func newMemStore(t *testing.T, p *memPersister, opts ...Option) *Store {
	t.Helper()
	if p == nil {
		p = &memPersister{}
	}
	opts = append([]Option{WithLogger(quietLogger())}, opts...)
	s := New(p, opts...)
	t.Cleanup(s.Close)
	return s
}

func TestDefaults(t *testing.T) {
	d := Defaults()
	if d.App.Theme != "system" {
		t.Errorf("theme = %q, want system", d.App.Theme)
	}
	if d.App.Sidebar != "left" {
		t.Errorf("sidebar = %q, want left", d.App.Sidebar)
	}
	if d.Shortcuts.AddDownload != "Ctrl+N" {
		t.Errorf("add_download shortcut = %q, want Ctrl+N", d.Shortcuts.AddDownload)
	}
	if d.Download.NumThreads != 8 {
		t.Errorf("num_threads = %d, want 8", d.Download.NumThreads)
	}
	if d.Network.UserAgent != "chrome" {
		t.Errorf("user_agent = %q, want chrome", d.Network.UserAgent)
	}
	if d.Network.Proxy.Port != 8080 {
		t.Errorf("proxy port = %d, want 8080", d.Network.Proxy.Port)
	}
	if !d.ShowNotifications {
		t.Error("show_notifications should default to true")
	}
	if d.SendAnonymousMetrics {
		t.Error("send_anonymous_metrics should default to false")
	}
}

func TestLoadFirstRunPersistsDefaults(t *testing.T) {
	p := &memPersister{}
	s := newMemStore(t, p)

	if s.Ready() {
		t.Fatal("store ready before Load")
	}
	if err := s.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !s.Ready() {
		t.Fatal("store not ready after Load")
	}
	if p.data == nil {
		t.Fatal("first run did not persist defaults")
	}
	var doc Document
	if err := json.Unmarshal(p.data, &doc); err != nil {
		t.Fatalf("persisted defaults not valid JSON: %v", err)
	}
	if doc.App.Theme != "system" {
		t.Errorf("persisted theme = %q, want system", doc.App.Theme)
	}
}

func TestLoadMergesOverDefaults(t *testing.T) {
	p := &memPersister{data: []byte(`{"app":{"theme":"dark"},"download":{"num_threads":4}}`)}
	s := newMemStore(t, p)
	if err := s.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}

	if v, _ := s.Get("app.theme"); v != "dark" {
		t.Errorf("app.theme = %v, want dark", v)
	}
	// Keys the persisted document omits keep their defaults.
	if v, _ := s.Get("app.sidebar"); v != "left" {
		t.Errorf("app.sidebar = %v, want left", v)
	}
	if v, _ := s.Get("network.user_agent"); v != "chrome" {
		t.Errorf("network.user_agent = %v, want chrome", v)
	}
	d := s.Document()
	if d.Download.NumThreads != 4 {
		t.Errorf("num_threads = %d, want 4", d.Download.NumThreads)
	}
	if d.Shortcuts.QuitApp != "Ctrl+Q" {
		t.Errorf("quit_app = %q, want default Ctrl+Q", d.Shortcuts.QuitApp)
	}
}

func TestLoadCorruptDocumentFallsBackToDefaults(t *testing.T) {
	p := &memPersister{data: []byte(`{"app":`)}
	s := newMemStore(t, p)
	err := s.Load(context.Background())
	if err == nil {
		t.Fatal("Load should report the parse failure")
	}
	if !s.Ready() {
		t.Fatal("store must become ready despite a broken document")
	}
	if v, _ := s.Get("app.theme"); v != "system" {
		t.Errorf("app.theme = %v, want default system", v)
	}
}

func TestLoadFailureUsesCacheOverlay(t *testing.T) {
	dir := t.TempDir()
	cache := NewCache(filepath.Join(dir, "ui-cache.json"))
	if err := cache.Write(Snapshot{Theme: "dark", Sidebar: "right"}); err != nil {
		t.Fatalf("seed cache: %v", err)
	}

	p := &memPersister{loadErr: errors.New("disk gone")}
	s := newMemStore(t, p, WithCache(cache))
	if err := s.Load(context.Background()); err == nil {
		t.Fatal("Load should report the read failure")
	}
	if !s.Ready() {
		t.Fatal("store must become ready despite the failure")
	}
	if v, _ := s.Get("app.theme"); v != "dark" {
		t.Errorf("app.theme = %v, want cached dark", v)
	}
	if v, _ := s.Get("app.sidebar"); v != "right" {
		t.Errorf("app.sidebar = %v, want cached right", v)
	}
	// Fields the cache does not carry stay at defaults.
	if v, _ := s.Get("app.button_label"); v != "both" {
		t.Errorf("app.button_label = %v, want both", v)
	}
}

func TestLoadOnlyOnce(t *testing.T) {
	p := &memPersister{}
	s := newMemStore(t, p)
	if err := s.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}
	before := p.saves
	if err := s.Load(context.Background()); err != nil {
		t.Fatalf("second Load: %v", err)
	}
	if p.saves != before {
		t.Error("second Load touched the persister")
	}
}

func TestSetThenGet(t *testing.T) {
	p := &memPersister{}
	s := newMemStore(t, p)
	if err := s.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}

	if err := s.Set(context.Background(), "app.theme", "dark"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if v, ok := s.Get("app.theme"); !ok || v != "dark" {
		t.Errorf("Get(app.theme) = %v %v, want dark true", v, ok)
	}
	if s.Document().App.Theme != "dark" {
		t.Error("typed document did not pick up the write")
	}

	// The write must be durable, not just in memory.
	var doc Document
	if err := json.Unmarshal(p.data, &doc); err != nil {
		t.Fatalf("persisted document: %v", err)
	}
	if doc.App.Theme != "dark" {
		t.Errorf("persisted theme = %q, want dark", doc.App.Theme)
	}
}

func TestSetNumericAndBool(t *testing.T) {
	s := newMemStore(t, nil)
	if err := s.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}

	if err := s.Set(context.Background(), "download.num_threads", 16); err != nil {
		t.Fatalf("Set num_threads: %v", err)
	}
	if s.Document().Download.NumThreads != 16 {
		t.Errorf("num_threads = %d, want 16", s.Document().Download.NumThreads)
	}

	if err := s.Set(context.Background(), "network.proxy.enabled", true); err != nil {
		t.Fatalf("Set proxy.enabled: %v", err)
	}
	if !s.Document().Network.Proxy.Enabled {
		t.Error("proxy.enabled did not apply")
	}
}

func TestSetUnknownKey(t *testing.T) {
	s := newMemStore(t, nil)
	if err := s.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}

	for _, path := range []string{"bogus", "app.bogus", "app", "network.proxy", "app.theme.extra", ""} {
		err := s.Set(context.Background(), path, "x")
		if !errors.Is(err, ErrUnknownKey) {
			t.Errorf("Set(%q) = %v, want ErrUnknownKey", path, err)
		}
	}
}

func TestSetInvalidValueLeavesMemoryUntouched(t *testing.T) {
	s := newMemStore(t, nil)
	if err := s.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}

	err := s.Set(context.Background(), "download.num_threads", "lots")
	if !errors.Is(err, ErrInvalidValue) {
		t.Fatalf("Set = %v, want ErrInvalidValue", err)
	}
	if s.Document().Download.NumThreads != 8 {
		t.Errorf("num_threads = %d, want untouched 8", s.Document().Download.NumThreads)
	}
}

func TestSetPersistFailureLeavesMemoryUntouched(t *testing.T) {
	p := &memPersister{}
	s := newMemStore(t, p)
	if err := s.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}

	p.mu.Lock()
	p.saveErr = errors.New("disk full")
	p.mu.Unlock()

	err := s.Set(context.Background(), "app.theme", "dark")
	if err == nil {
		t.Fatal("Set should surface the persist failure")
	}
	if v, _ := s.Get("app.theme"); v != "system" {
		t.Errorf("app.theme = %v, want pre-write system", v)
	}
}

func TestSetPublishesUpdate(t *testing.T) {
	s := newMemStore(t, nil)
	if err := s.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}
	ch, cancel := s.Changes().Subscribe(4)
	defer cancel()

	if err := s.Set(context.Background(), "app.theme", "dark"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	select {
	case up := <-ch:
		if up.Path != "app.theme" || up.Value != "dark" {
			t.Errorf("update = %+v, want app.theme=dark", up)
		}
	case <-time.After(time.Second):
		t.Fatal("no update published")
	}
}

func TestSetRefreshesCache(t *testing.T) {
	dir := t.TempDir()
	cache := NewCache(filepath.Join(dir, "ui-cache.json"))
	s := newMemStore(t, nil, WithCache(cache))
	if err := s.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}

	if err := s.Set(context.Background(), "app.theme", "dark"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	snap, ok := cache.Read()
	if !ok {
		t.Fatal("cache not written")
	}
	if snap.Theme != "dark" {
		t.Errorf("cached theme = %q, want dark", snap.Theme)
	}
	if snap.Sidebar != "left" {
		t.Errorf("cached sidebar = %q, want left", snap.Sidebar)
	}
}

func TestGetGroupReturnsCopy(t *testing.T) {
	s := newMemStore(t, nil)
	if err := s.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}

	v, ok := s.Get("app")
	if !ok {
		t.Fatal("Get(app) not found")
	}
	m, isMap := v.(map[string]any)
	if !isMap {
		t.Fatalf("Get(app) = %T, want map", v)
	}
	m["theme"] = "mangled"
	if v, _ := s.Get("app.theme"); v != "system" {
		t.Error("mutating a returned group leaked into the store")
	}
}

func TestGetUnknownPath(t *testing.T) {
	s := newMemStore(t, nil)
	if _, ok := s.Get("nope.nothing"); ok {
		t.Error("unknown path reported ok")
	}
	if _, ok := s.Get("app.theme.deeper"); ok {
		t.Error("path through a leaf reported ok")
	}
}

func TestFilePersisterRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "settings.json")
	p := &FilePersister{Path: path}

	if _, err := p.Load(context.Background()); !errors.Is(err, ErrNoDocument) {
		t.Fatalf("Load on missing file = %v, want ErrNoDocument", err)
	}
	if err := p.Save(context.Background(), []byte(`{"a":1}`)); err != nil {
		t.Fatalf("Save: %v", err)
	}
	data, err := p.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if string(data) != `{"a":1}` {
		t.Errorf("Load = %s", data)
	}

	// No temp litter after the atomic replace.
	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("directory has %d entries, want only settings.json", len(entries))
	}
}

func TestCacheReadMissing(t *testing.T) {
	cache := NewCache(filepath.Join(t.TempDir(), "ui-cache.json"))
	if _, ok := cache.Read(); ok {
		t.Error("Read on a missing cache reported ok")
	}
}

func TestKnownPaths(t *testing.T) {
	paths := KnownPaths()
	want := map[string]bool{
		"app.theme":                false,
		"shortcuts.quit_app":       false,
		"download.num_threads":     false,
		"network.proxy.port":       false,
		"send_anonymous_metrics":   false,
		"session.history":          false,
		"thread.total_connections": false,
	}
	for _, p := range paths {
		if _, tracked := want[p]; tracked {
			want[p] = true
		}
	}
	for p, seen := range want {
		if !seen {
			t.Errorf("KnownPaths missing %s", p)
		}
	}
	for i := 1; i < len(paths); i++ {
		if paths[i-1] >= paths[i] {
			t.Errorf("paths not sorted: %s before %s", paths[i-1], paths[i])
		}
	}
}
