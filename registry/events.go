package registry

import "github.com/turdm/turc/engine"

// Apply reconciles one engine event into the table. Events for unknown
// ids are ignored; they must never corrupt other rows. Callers apply
// events one at a time in arrival order.
func (r *Registry) Apply(ev engine.Event) {
	if r.observer != nil {
		r.observer(ev)
	}
	switch e := ev.(type) {
	case engine.QueueEvent:
		r.applyQueue(e)
	case engine.StartedEvent:
		r.applyStarted(e)
	case engine.ProgressEvent:
		r.applyProgress(e)
	case engine.CompleteEvent:
		r.applyComplete(e)
	case engine.FailedEvent:
		r.applyFailed(e)
	case engine.PausedEvent:
		r.applyPaused(e)
	case engine.CancelledEvent:
		r.applyCancelled(e)
	}
}

func (r *Registry) applyQueue(e engine.QueueEvent) {
	r.mu.Lock()
	row, exists := r.rows[e.ID]
	if exists {
		// A requeued id resets the row in place, keeping its slot in
		// the insertion order.
		row.URL = e.URL
		row.Filename = e.Filename
		row.Destination = e.Destination
		row.Size = copySize(e.Size)
		row.ResumeSupported = e.ResumeSupported
		row.Status = StatusQueued
		row.Downloaded = 0
		row.Speed = 0
		row.Progress = 0
		row.Segments = nil
		row.Error = ""
		row.Pending = nil
		row.Revision++
	} else {
		row = &Download{
			ID:              e.ID,
			URL:             e.URL,
			Filename:        e.Filename,
			Destination:     e.Destination,
			Size:            copySize(e.Size),
			ResumeSupported: e.ResumeSupported,
			Status:          StatusQueued,
			Added:           r.now(),
			Revision:        1,
		}
		r.rows[e.ID] = row
		r.order = append(r.order, e.ID)
	}
	rev := row.Revision
	rec := historyRecordOf(row)
	r.mu.Unlock()

	r.publish(ChangeQueued, e.ID, rev)
	r.historyInsert(rec)
}

func (r *Registry) applyStarted(e engine.StartedEvent) {
	r.mu.Lock()
	row, ok := r.rows[e.ID]
	if !ok || row.Status.Terminal() {
		r.mu.Unlock()
		return
	}
	if p := row.Pending; p != nil {
		if p.Kind == PendingPause && r.fresh(p) {
			// Stale start racing a younger optimistic pause.
			r.mu.Unlock()
			return
		}
		row.Pending = nil
	}
	row.Status = StatusDownloading
	row.Revision++
	rev := row.Revision
	r.mu.Unlock()

	r.publish(ChangeUpdated, e.ID, rev)
	r.historySetStatus(e.ID, "")
}

func (r *Registry) applyProgress(e engine.ProgressEvent) {
	r.mu.Lock()
	row, ok := r.rows[e.ID]
	if !ok || row.Status.Terminal() {
		// A progress event arriving after complete/failed must not
		// undo the terminal state (last-terminal-wins).
		r.mu.Unlock()
		return
	}
	prevDecade := row.Progress / 10
	row.Downloaded = e.Downloaded
	if e.Total > 0 {
		total := e.Total
		row.Size = &total
	}
	row.Speed = e.Speed
	row.Progress = clampProgress(e.Progress)
	if len(e.Segments) > 0 {
		row.Segments = append([]engine.Segment(nil), e.Segments...)
	}
	row.Revision++
	rev := row.Revision
	downloaded := row.Downloaded
	checkpoint := row.Progress/10 != prevDecade
	r.mu.Unlock()

	r.publish(ChangeUpdated, e.ID, rev)
	if checkpoint {
		r.historyProgress(e.ID, downloaded)
	}
}

func (r *Registry) applyComplete(e engine.CompleteEvent) {
	r.mu.Lock()
	row, ok := r.rows[e.ID]
	if !ok {
		r.mu.Unlock()
		return
	}
	row.Status = StatusCompleted
	row.Progress = 100
	row.Speed = 0
	row.Error = ""
	row.Pending = nil
	row.Revision++
	rev := row.Revision
	r.mu.Unlock()

	r.publish(ChangeCompleted, e.ID, rev)
	r.historySetStatus(e.ID, "completed")
}

func (r *Registry) applyFailed(e engine.FailedEvent) {
	r.mu.Lock()
	row, ok := r.rows[e.ID]
	if !ok {
		r.mu.Unlock()
		return
	}
	row.Status = StatusFailed
	row.Error = e.Error
	row.Speed = 0
	row.Pending = nil
	row.Revision++
	rev := row.Revision
	r.mu.Unlock()

	r.publish(ChangeFailed, e.ID, rev)
	r.historySetStatus(e.ID, "failed")
}

func (r *Registry) applyPaused(e engine.PausedEvent) {
	r.mu.Lock()
	row, ok := r.rows[e.ID]
	if !ok || row.Status.Terminal() {
		r.mu.Unlock()
		return
	}
	if p := row.Pending; p != nil {
		if p.Kind == PendingResume && r.fresh(p) {
			// Stale pause racing a younger optimistic resume.
			r.mu.Unlock()
			return
		}
		row.Pending = nil
	}
	row.Status = StatusPaused
	row.Speed = 0
	row.Revision++
	rev := row.Revision
	r.mu.Unlock()

	r.publish(ChangeUpdated, e.ID, rev)
	r.historySetStatus(e.ID, "paused")
}

func (r *Registry) applyCancelled(e engine.CancelledEvent) {
	r.mu.Lock()
	row, ok := r.rows[e.ID]
	var rev uint64
	if ok {
		// Usually the row is already gone from the optimistic local
		// cancel; this handles engine-initiated removal.
		rev = row.Revision + 1
		delete(r.rows, e.ID)
		r.dropOrder(e.ID)
	}
	r.mu.Unlock()

	if ok {
		r.publish(ChangeRemoved, e.ID, rev)
		r.historyDelete(e.ID)
	}
}

func copySize(size *int64) *int64 {
	if size == nil {
		return nil
	}
	v := *size
	return &v
}

func clampProgress(p int) int {
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}
