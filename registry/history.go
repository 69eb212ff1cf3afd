package registry

import (
	"context"
	"fmt"
	"time"

	"github.com/turdm/turc/registry/internal/store"
)

// historyStatusName maps a registry status to the history column value,
// where "" means in-progress.
func historyStatusName(s Status) string {
	switch s {
	case StatusPaused, StatusCompleted, StatusFailed:
		return string(s)
	default:
		return ""
	}
}

func historyRecordOf(row *Download) *store.Record {
	return &store.Record{
		ID:            row.ID,
		Filename:      row.Filename,
		Status:        historyStatusName(row.Status),
		Size:          copySize(row.Size),
		BytesReceived: row.Downloaded,
		URL:           row.URL,
		Destination:   row.Destination,
		AcceptRanges:  row.ResumeSupported,
	}
}

func (r *Registry) historyEnabled() bool {
	if r.history == nil {
		return false
	}
	if r.historyOn == nil {
		return true
	}
	return r.historyOn()
}

// History writes are best-effort: a failing write logs and never
// disturbs the in-memory table.

func (r *Registry) historyInsert(rec *store.Record) {
	if !r.historyEnabled() {
		return
	}
	if err := r.history.Insert(context.Background(), rec); err != nil {
		r.logger.Warn("history insert failed", "id", rec.ID, "error", err)
	}
}

func (r *Registry) historyProgress(id string, bytesReceived int64) {
	if !r.historyEnabled() {
		return
	}
	if err := r.history.UpdateProgress(context.Background(), id, bytesReceived); err != nil {
		r.logger.Warn("history progress update failed", "id", id, "error", err)
	}
}

func (r *Registry) historySetStatus(id, status string) {
	if !r.historyEnabled() {
		return
	}
	if err := r.history.UpdateStatus(context.Background(), id, status); err != nil {
		r.logger.Warn("history status update failed", "id", id, "error", err)
	}
}

func (r *Registry) historyDelete(id string) {
	if !r.historyEnabled() {
		return
	}
	if err := r.history.Delete(context.Background(), id); err != nil {
		r.logger.Warn("history delete failed", "id", id, "error", err)
	}
}

// --- History API ---

// History returns history records, most recently updated first.
func (r *Registry) History(ctx context.Context, limit int) ([]*HistoryRecord, error) {
	if r.history == nil {
		return nil, ErrHistoryDisabled
	}
	return r.history.List(ctx, limit)
}

// DeleteHistory removes one history record.
func (r *Registry) DeleteHistory(ctx context.Context, id string) error {
	if r.history == nil {
		return ErrHistoryDisabled
	}
	return r.history.Delete(ctx, id)
}

// PurgeHistory removes every history record.
func (r *Registry) PurgeHistory(ctx context.Context) error {
	if r.history == nil {
		return ErrHistoryDisabled
	}
	if err := r.history.Purge(ctx); err != nil {
		return err
	}
	r.changes.Publish(Change{Kind: ChangeHistory})
	return nil
}

// NotifyHistoryChanged publishes a history change, used when an
// external writer touches the history database.
func (r *Registry) NotifyHistoryChanged() {
	r.changes.Publish(Change{Kind: ChangeHistory})
}

// RestoreHistory loads rows that already reached a settled state back
// into the table, so completed, failed and paused downloads from
// earlier sessions stay visible until removed. In-progress rows are
// left to the engine, which re-announces anything it still owns. Rows
// already present, queued again by the engine before restore ran, are
// not overwritten. Returns the number of rows restored.
func (r *Registry) RestoreHistory(ctx context.Context) (int, error) {
	if r.history == nil {
		return 0, nil
	}
	recs, err := r.history.List(ctx, 0)
	if err != nil {
		return 0, fmt.Errorf("registry: restore history: %w", err)
	}

	var restored []Change
	r.mu.Lock()
	// List is newest-first; walk backwards so insertion order matches age.
	for i := len(recs) - 1; i >= 0; i-- {
		rec := recs[i]
		if rec.InProgress() {
			continue
		}
		if _, exists := r.rows[rec.ID]; exists {
			continue
		}
		row := &Download{
			ID:              rec.ID,
			URL:             rec.URL,
			Filename:        rec.Filename,
			Destination:     rec.Destination,
			Size:            copySize(rec.Size),
			Downloaded:      rec.BytesReceived,
			Progress:        restoredProgress(rec),
			Status:          Status(rec.Status),
			ResumeSupported: rec.AcceptRanges,
			Added:           time.Unix(rec.CreatedAt(), 0),
			Revision:        1,
		}
		r.rows[rec.ID] = row
		r.order = append(r.order, rec.ID)
		restored = append(restored, Change{Kind: ChangeRestored, ID: rec.ID, Revision: row.Revision})
	}
	r.mu.Unlock()

	for _, ch := range restored {
		r.changes.Publish(ch)
	}
	return len(restored), nil
}

func restoredProgress(rec *store.Record) int {
	if rec.Completed() {
		return 100
	}
	if rec.Size == nil || *rec.Size <= 0 {
		return 0
	}
	return clampProgress(int(rec.BytesReceived * 100 / *rec.Size))
}
