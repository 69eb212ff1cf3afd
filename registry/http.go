package registry

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/turdm/turc/kit"
	"github.com/turdm/turc/safe"
)

// sseHeartbeat is how often the events stream emits a comment line so
// proxies and clients can tell a quiet stream from a dead one.
const sseHeartbeat = 15 * time.Second

// RegisterHTTP mounts the downloads, history and events routes.
func (reg *Registry) RegisterHTTP(router chi.Router) {
	router.Get("/api/downloads", func(w http.ResponseWriter, r *http.Request) {
		f := Filter(r.URL.Query().Get("filter"))
		switch f {
		case "", FilterAll, FilterCompleted, FilterInProgress:
		default:
			kit.WriteError(w, http.StatusBadRequest, fmt.Errorf("unknown filter %q", f))
			return
		}
		kit.WriteJSON(w, http.StatusOK, reg.Filtered(f))
	})

	router.Post("/api/downloads", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			URLs []string `json:"urls"`
		}
		if err := kit.DecodeJSON(r, &req); err != nil {
			kit.WriteError(w, kit.StatusFor(err), err)
			return
		}
		if len(req.URLs) == 0 {
			kit.WriteError(w, http.StatusBadRequest, errors.New("urls must not be empty"))
			return
		}
		for _, u := range req.URLs {
			if err := safe.ValidateDownloadURL(u); err != nil {
				kit.WriteError(w, http.StatusBadRequest, fmt.Errorf("%s: %w", u, err))
				return
			}
		}
		if err := reg.Start(r.Context(), req.URLs); err != nil {
			kit.WriteError(w, statusForError(err), err)
			return
		}
		// Rows appear when the engine announces them; 202 reflects that.
		kit.WriteJSON(w, http.StatusAccepted, map[string]any{"status": "queued", "count": len(req.URLs)})
	})

	router.Post("/api/downloads/resume", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			IDs []string `json:"ids"`
		}
		if err := kit.DecodeJSON(r, &req); err != nil {
			kit.WriteError(w, kit.StatusFor(err), err)
			return
		}
		if len(req.IDs) == 0 {
			kit.WriteError(w, http.StatusBadRequest, errors.New("ids must not be empty"))
			return
		}
		if err := reg.Resume(r.Context(), req.IDs...); err != nil {
			kit.WriteError(w, statusForError(err), err)
			return
		}
		kit.WriteJSON(w, http.StatusOK, map[string]any{"status": "resuming", "count": len(req.IDs)})
	})

	router.Get("/api/downloads/{id}", func(w http.ResponseWriter, r *http.Request) {
		d, ok := reg.Get(chi.URLParam(r, "id"))
		if !ok {
			kit.WriteError(w, http.StatusNotFound, ErrUnknownDownload)
			return
		}
		kit.WriteJSON(w, http.StatusOK, d)
	})

	router.Delete("/api/downloads/{id}", func(w http.ResponseWriter, r *http.Request) {
		if err := reg.Cancel(r.Context(), chi.URLParam(r, "id")); err != nil {
			// The row is gone locally either way; the caller learns the
			// engine may still hold the transfer.
			kit.WriteError(w, statusForError(err), err)
			return
		}
		kit.WriteJSON(w, http.StatusOK, map[string]string{"status": "cancelled"})
	})

	router.Post("/api/downloads/{id}/pause", func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if err := reg.Pause(r.Context(), id); err != nil {
			kit.WriteError(w, statusForError(err), err)
			return
		}
		if d, ok := reg.Get(id); ok {
			kit.WriteJSON(w, http.StatusOK, d)
			return
		}
		kit.WriteJSON(w, http.StatusOK, map[string]string{"status": "paused"})
	})

	router.Post("/api/downloads/{id}/resume", func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if _, ok := reg.Get(id); !ok {
			kit.WriteError(w, http.StatusNotFound, ErrUnknownDownload)
			return
		}
		if err := reg.Resume(r.Context(), id); err != nil {
			kit.WriteError(w, statusForError(err), err)
			return
		}
		if d, ok := reg.Get(id); ok {
			kit.WriteJSON(w, http.StatusOK, d)
			return
		}
		kit.WriteJSON(w, http.StatusOK, map[string]string{"status": "resuming"})
	})

	router.Get("/api/history", func(w http.ResponseWriter, r *http.Request) {
		recs, err := reg.History(r.Context(), kit.QueryInt(r, "limit", 100))
		if err != nil {
			kit.WriteError(w, statusForError(err), err)
			return
		}
		if recs == nil {
			recs = []*HistoryRecord{}
		}
		kit.WriteJSON(w, http.StatusOK, recs)
	})

	router.Delete("/api/history", func(w http.ResponseWriter, r *http.Request) {
		if err := reg.PurgeHistory(r.Context()); err != nil {
			kit.WriteError(w, statusForError(err), err)
			return
		}
		kit.WriteJSON(w, http.StatusOK, map[string]string{"status": "purged"})
	})

	router.Get("/api/events", reg.serveEvents)
}

// serveEvents streams registry changes as server-sent events until the
// client goes away or the hub closes.
func (reg *Registry) serveEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		kit.WriteError(w, http.StatusInternalServerError, errors.New("streaming unsupported"))
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	changes, cancel := reg.changes.Subscribe(64)
	defer cancel()

	heartbeat := time.NewTicker(sseHeartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			if _, err := io.WriteString(w, ": ping\n\n"); err != nil {
				return
			}
			flusher.Flush()
		case change, open := <-changes:
			if !open {
				return
			}
			data, err := json.Marshal(change)
			if err != nil {
				reg.logger.Warn("event marshal failed", "error", err)
				continue
			}
			if _, err := fmt.Fprintf(w, "event: change\ndata: %s\n\n", data); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

// statusForError maps registry errors onto HTTP statuses: unknown rows
// are 404, a disabled history store is 409, failed engine calls are 502.
func statusForError(err error) int {
	switch {
	case errors.Is(err, ErrUnknownDownload):
		return http.StatusNotFound
	case errors.Is(err, ErrHistoryDisabled):
		return http.StatusConflict
	}
	var cmdErr *CommandError
	if errors.As(err, &cmdErr) {
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}
