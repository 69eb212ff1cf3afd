// Package shield provides the HTTP middleware applied to turc's local
// API: security headers, request body limits, request IDs and access
// logging. The daemon binds to loopback by default, but browser pages
// can still reach loopback origins, so responses carry the same header
// hygiene a public service would.
//
// Usage:
//
//	r := chi.NewRouter()
//	for _, mw := range shield.APIStack(64 * 1024) {
//		r.Use(mw)
//	}
package shield

import (
	"context"
	"log/slog"
	"net/http"
)

type contextKey string

// LoggerKey is the context key for the per-request structured logger.
const LoggerKey contextKey = "shield_logger"

// APIStack returns the standard middleware stack for the local API,
// ordered: HeadToGet, SecurityHeaders, MaxBody, RequestID, AccessLog.
func APIStack(maxBody int64) []func(http.Handler) http.Handler {
	return []func(http.Handler) http.Handler{
		HeadToGet,
		SecurityHeaders(DefaultHeaders()),
		MaxBody(maxBody),
		RequestID,
		AccessLog,
	}
}

// HeadToGet converts HEAD requests to GET so handlers registered with
// r.Get() answer 200 instead of 405. net/http strips the body for HEAD
// responses on its own.
func HeadToGet(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			r.Method = http.MethodGet
		}
		next.ServeHTTP(w, r)
	})
}

// GetLogger retrieves the per-request logger from the context.
// Returns slog.Default() if no logger was set.
func GetLogger(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(LoggerKey).(*slog.Logger); ok {
		return l
	}
	return slog.Default()
}
