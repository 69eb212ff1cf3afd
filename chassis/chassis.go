// Package chassis hosts the local HTTP API. It owns the chi router, the
// shared middleware stack and the server lifecycle; feature packages
// contribute their routes through the Service interface.
package chassis

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/turdm/turc/shield"
)

// Service is anything that contributes routes to the API.
type Service interface {
	RegisterHTTP(r chi.Router)
}

// Config tunes the host.
type Config struct {
	// Addr to bind. Default "127.0.0.1:8642"; the API is loopback-only
	// unless the operator explicitly opens it up.
	Addr string
	// MaxBody caps request bodies. Default 64 KiB.
	MaxBody int64
	// ShutdownTimeout bounds the graceful drain. Default 10s.
	ShutdownTimeout time.Duration
	// Logger overrides slog.Default().
	Logger *slog.Logger
}

func (c *Config) defaults() {
	if c.Addr == "" {
		c.Addr = "127.0.0.1:8642"
	}
	if c.MaxBody <= 0 {
		c.MaxBody = 64 << 10
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = 10 * time.Second
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Server hosts registered services behind the shared middleware stack.
type Server struct {
	cfg    Config
	logger *slog.Logger
	router *chi.Mux
}

// New builds a Server with the standard middleware and a /healthz probe.
func New(cfg Config) *Server {
	cfg.defaults()

	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	for _, mw := range shield.APIStack(cfg.MaxBody) {
		r.Use(mw)
	}
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	return &Server{cfg: cfg, logger: cfg.Logger, router: r}
}

// Register adds a service's routes. Call before Run.
func (s *Server) Register(svc Service) {
	svc.RegisterHTTP(s.router)
}

// Router exposes the underlying router for tests.
func (s *Server) Router() chi.Router {
	return s.router
}

// Run serves until ctx is cancelled, then drains connections gracefully.
// No WriteTimeout is set: the events stream stays open for the lifetime
// of its client.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("chassis: listen %s: %w", s.cfg.Addr, err)
	}
	s.logger.Info("api listening", "addr", ln.Addr().String())

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()

	select {
	case err := <-errCh:
		return fmt.Errorf("chassis: serve: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("chassis: shutdown: %w", err)
	}
	s.logger.Info("api stopped")
	return nil
}
