// Package observability holds turc's logging setup: slog construction for
// the daemon and the event logger that traces engine traffic.
package observability

import (
	"io"
	"log/slog"

	"github.com/turdm/turc/engine"
)

// NewLogger builds a slog.Logger writing to w. Level is one of
// debug/info/warn/error (default info); format is "json" or "text"
// (default text). It does not touch the global default logger.
func NewLogger(level, format string, w io.Writer) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "info":
		lvl = slog.LevelInfo
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: lvl}
	var handler slog.Handler
	if format == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler)
}

// EventLogger traces engine events with uniform fields so a debug session
// can follow one download id across the whole stream.
type EventLogger struct {
	logger *slog.Logger
}

// NewEventLogger wraps logger; nil falls back to slog.Default().
func NewEventLogger(logger *slog.Logger) *EventLogger {
	if logger == nil {
		logger = slog.Default()
	}
	return &EventLogger{logger: logger}
}

// Event logs one engine event at debug level.
func (l *EventLogger) Event(ev engine.Event) {
	switch e := ev.(type) {
	case engine.QueueEvent:
		l.logger.Debug("engine event", "event", "queue", "id", e.ID, "url", e.URL, "filename", e.Filename)
	case engine.StartedEvent:
		l.logger.Debug("engine event", "event", "started", "id", e.ID)
	case engine.ProgressEvent:
		l.logger.Debug("engine event", "event", "progress", "id", e.ID,
			"downloaded", e.Downloaded, "progress", e.Progress, "speed", e.Speed)
	case engine.CompleteEvent:
		l.logger.Debug("engine event", "event", "complete", "id", e.ID)
	case engine.FailedEvent:
		l.logger.Debug("engine event", "event", "failed", "id", e.ID, "error", e.Error)
	case engine.PausedEvent:
		l.logger.Debug("engine event", "event", "paused", "id", e.ID)
	case engine.CancelledEvent:
		l.logger.Debug("engine event", "event", "cancelled", "id", e.ID)
	default:
		l.logger.Debug("engine event", "event", "unknown", "id", ev.DownloadID())
	}
}
