package shield

import "net/http"

// MaxBody returns middleware that caps the request body size. Every API
// write is a small JSON document; anything larger is a mistake or abuse
// and fails with 413 when the handler reads past the limit.
func MaxBody(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Body != nil && r.Body != http.NoBody {
				r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			}
			next.ServeHTTP(w, r)
		})
	}
}
