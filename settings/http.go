package settings

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/turdm/turc/kit"
)

// RegisterHTTP mounts the settings API. Dotted paths have no slashes, so
// a setting addresses cleanly as one URL segment.
func (s *Store) RegisterHTTP(router chi.Router) {
	router.Get("/api/settings", func(w http.ResponseWriter, r *http.Request) {
		kit.WriteJSON(w, http.StatusOK, s.Document())
	})

	router.Put("/api/settings", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Path  string `json:"path"`
			Value any    `json:"value"`
		}
		if err := kit.DecodeJSON(r, &req); err != nil {
			kit.WriteError(w, kit.StatusFor(err), err)
			return
		}
		if req.Path == "" {
			kit.WriteError(w, http.StatusBadRequest, errors.New("path is required"))
			return
		}
		if err := s.Set(r.Context(), req.Path, req.Value); err != nil {
			kit.WriteError(w, statusForError(err), err)
			return
		}
		value, _ := s.Get(req.Path)
		kit.WriteJSON(w, http.StatusOK, Update{Path: req.Path, Value: value})
	})

	// Static route; chi matches it ahead of the path parameter below.
	router.Get("/api/settings/cache", func(w http.ResponseWriter, r *http.Request) {
		if s.cache != nil {
			if snap, ok := s.cache.Read(); ok {
				kit.WriteJSON(w, http.StatusOK, snap)
				return
			}
		}
		// No readable sidecar; the live document is at least as fresh.
		kit.WriteJSON(w, http.StatusOK, s.Document().snapshot())
	})

	router.Get("/api/settings/{path}", func(w http.ResponseWriter, r *http.Request) {
		path := chi.URLParam(r, "path")
		value, ok := s.Get(path)
		if !ok {
			kit.WriteError(w, http.StatusNotFound, fmt.Errorf("%w: %s", ErrUnknownKey, path))
			return
		}
		kit.WriteJSON(w, http.StatusOK, Update{Path: path, Value: value})
	})
}

func statusForError(err error) int {
	switch {
	case errors.Is(err, ErrUnknownKey):
		return http.StatusNotFound
	case errors.Is(err, ErrInvalidValue):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
