package settings

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Snapshot is the subset of the document mirrored into the fast-path
// cache: the handful of display fields the UI needs before the real
// document has loaded.
type Snapshot struct {
	Theme       string `json:"theme"`
	Sidebar     string `json:"sidebar"`
	ButtonLabel string `json:"button_label"`
}

// Cache is a small sidecar file read synchronously at startup so the
// first paint uses the user's theme instead of defaults. It is a hint,
// not a source of truth: writes are best-effort and the loaded document
// always supersedes it.
type Cache struct {
	path string
}

func NewCache(path string) *Cache {
	return &Cache{path: path}
}

// Read returns the cached snapshot, or ok=false when the cache is
// absent or unreadable. It never blocks on anything but the one file.
func (c *Cache) Read() (Snapshot, bool) {
	data, err := os.ReadFile(c.path)
	if err != nil {
		return Snapshot{}, false
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return Snapshot{}, false
	}
	return snap, true
}

// Write replaces the cached snapshot atomically.
func (c *Cache) Write(snap Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("settings: encode cache: %w", err)
	}
	dir := filepath.Dir(c.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("settings: mkdir %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, ".cache-*.json")
	if err != nil {
		return fmt.Errorf("settings: temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("settings: write cache: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("settings: close cache: %w", err)
	}
	if err := os.Rename(tmpName, c.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("settings: replace cache: %w", err)
	}
	return nil
}

func (d Document) snapshot() Snapshot {
	return Snapshot{
		Theme:       d.App.Theme,
		Sidebar:     d.App.Sidebar,
		ButtonLabel: d.App.ButtonLabel,
	}
}

func (d *Document) applySnapshot(snap Snapshot) {
	if snap.Theme != "" {
		d.App.Theme = snap.Theme
	}
	if snap.Sidebar != "" {
		d.App.Sidebar = snap.Sidebar
	}
	if snap.ButtonLabel != "" {
		d.App.ButtonLabel = snap.ButtonLabel
	}
}
