// Package engine defines the boundary to the external download engine:
// the typed events it pushes and the commands turc issues against it.
//
// The engine owns all transfer mechanics (chunking, resume, retry, file
// I/O). turc only mirrors its state, so this package carries no transfer
// logic — just the two halves of the boundary: Source for the push stream
// and Commander for request/response calls.
package engine

import "context"

// Event is one push notification from the engine. Events for a given
// download arrive in order; no ordering holds across downloads.
type Event interface {
	// DownloadID returns the id of the download the event concerns.
	DownloadID() string
	isEvent()
}

// QueueEvent announces a newly accepted download in queued state.
// Size is nil until the engine has probed the remote.
type QueueEvent struct {
	ID              string
	URL             string
	Filename        string
	Size            *int64
	Destination     string
	ResumeSupported bool
}

// StartedEvent reports that transfer began (or restarted after a resume).
type StartedEvent struct {
	ID string
}

// Segment is a covered slice of the byte range in percent, Start <= End.
// Display only; the engine may report a partial set or none at all.
type Segment struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// ProgressEvent updates transfer metrics for an active download.
type ProgressEvent struct {
	ID         string
	Downloaded int64
	Total      int64
	Speed      float64
	Progress   int
	Segments   []Segment
}

// CompleteEvent is terminal: the payload is fully on disk.
type CompleteEvent struct {
	ID string
}

// FailedEvent is terminal: the engine gave up on the download.
type FailedEvent struct {
	ID    string
	Error string
}

// PausedEvent confirms a pause took effect at the engine.
type PausedEvent struct {
	ID string
}

// CancelledEvent confirms a cancel took effect at the engine.
type CancelledEvent struct {
	ID string
}

func (e QueueEvent) DownloadID() string     { return e.ID }
func (e StartedEvent) DownloadID() string   { return e.ID }
func (e ProgressEvent) DownloadID() string  { return e.ID }
func (e CompleteEvent) DownloadID() string  { return e.ID }
func (e FailedEvent) DownloadID() string    { return e.ID }
func (e PausedEvent) DownloadID() string    { return e.ID }
func (e CancelledEvent) DownloadID() string { return e.ID }

func (QueueEvent) isEvent()     {}
func (StartedEvent) isEvent()   {}
func (ProgressEvent) isEvent()  {}
func (CompleteEvent) isEvent()  {}
func (FailedEvent) isEvent()    {}
func (PausedEvent) isEvent()    {}
func (CancelledEvent) isEvent() {}

// Source delivers the engine's event stream. The returned channel carries
// events in arrival order and closes when ctx is cancelled or the
// transport is lost; the caller decides whether to Listen again.
type Source interface {
	Listen(ctx context.Context) (<-chan Event, error)
}

// Commander issues commands to the engine. Every call may fail
// independently of the others; none of them blocks past ctx.
type Commander interface {
	// Start enqueues one or more new downloads by URL.
	Start(ctx context.Context, urls []string) error
	// Resume restarts the given paused downloads.
	Resume(ctx context.Context, ids []string) error
	// Pause suspends one download.
	Pause(ctx context.Context, id string) error
	// Cancel aborts one download and discards its partial data.
	Cancel(ctx context.Context, id string) error
}
