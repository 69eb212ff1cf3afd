package registry

import (
	"time"

	"github.com/turdm/turc/dbopen"
	"github.com/turdm/turc/engine"
	"github.com/turdm/turc/registry/internal/store"
)

// HistoryRecord is re-exported from internal/store for use by cmd/ and
// external callers.
type HistoryRecord = store.Record

// HistoryStore is re-exported from internal/store so callers can open
// the history database themselves and hand it to WithHistory.
type HistoryStore = store.Store

// OpenHistory opens (or creates) the history database at path with the
// standard pragmas and schema applied.
func OpenHistory(path string, opts ...dbopen.Option) (*HistoryStore, error) {
	return store.Open(path, opts...)
}

// Status is the lifecycle state of a download.
type Status string

const (
	StatusQueued      Status = "queued"
	StatusDownloading Status = "downloading"
	StatusPaused      Status = "paused"
	StatusCompleted   Status = "completed"
	StatusFailed      Status = "failed"
)

// Terminal reports whether no further event transitions occur for this
// status. Terminal rows stay visible until removed.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Active reports whether the status belongs to the active class:
// queued, downloading or paused.
func (s Status) Active() bool {
	return s == StatusQueued || s == StatusDownloading || s == StatusPaused
}

// PendingKind tags which optimistic command is awaiting confirmation.
type PendingKind string

const (
	PendingPause  PendingKind = "pause"
	PendingResume PendingKind = "resume"
)

// Pending marks a row whose status was set optimistically by a local
// command and not yet confirmed by the engine. Prev is the status to
// revert to when the command fails.
type Pending struct {
	Kind  PendingKind `json:"kind"`
	Prev  Status      `json:"prev"`
	Since time.Time   `json:"since"`
}

// Download is one row of the registry table. Views hand out copies;
// mutating a returned Download never affects the table.
type Download struct {
	ID              string           `json:"id"`
	URL             string           `json:"url"`
	Filename        string           `json:"filename"`
	Destination     string           `json:"destination"`
	Size            *int64           `json:"size,omitempty"`
	Downloaded      int64            `json:"downloaded"`
	Speed           float64          `json:"speed"`
	Progress        int              `json:"progress"`
	Status          Status           `json:"status"`
	ResumeSupported bool             `json:"resume_supported"`
	Segments        []engine.Segment `json:"segments,omitempty"`
	Error           string           `json:"error,omitempty"`
	Added           time.Time        `json:"added"`
	Revision        uint64           `json:"revision"`
	Pending         *Pending         `json:"pending,omitempty"`
}

func (d *Download) clone() Download {
	out := *d
	if d.Size != nil {
		size := *d.Size
		out.Size = &size
	}
	if d.Segments != nil {
		out.Segments = append([]engine.Segment(nil), d.Segments...)
	}
	if d.Pending != nil {
		p := *d.Pending
		out.Pending = &p
	}
	return out
}

// ChangeKind classifies a change notification.
type ChangeKind string

const (
	ChangeQueued    ChangeKind = "queued"
	ChangeUpdated   ChangeKind = "updated"
	ChangeCompleted ChangeKind = "completed"
	ChangeFailed    ChangeKind = "failed"
	ChangeRemoved   ChangeKind = "removed"
	ChangeRestored  ChangeKind = "restored"
	ChangeHistory   ChangeKind = "history"
)

// Change is published on the registry hub after every applied mutation.
// Revision is the row's revision after the mutation; subscribers can
// drop notifications older than what they already rendered.
type Change struct {
	Kind     ChangeKind `json:"kind"`
	ID       string     `json:"id,omitempty"`
	Revision uint64     `json:"revision,omitempty"`
}
