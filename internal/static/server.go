package static

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/sangho-coder/kakao-skill-sanity/internal/model"
)

// Server serves the files under a root directory over plain HTTP,
// handling exactly one request at a time.
type Server struct {
	port   int
	root   string
	logger *slog.Logger

	// mu serializes request handling. Held for the full duration of each
	// request, including the response write to a possibly slow client.
	mu sync.Mutex
}

// New creates a static file server for the given root directory and port.
// A nil logger falls back to slog.Default().
func New(root string, port int, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		port:   port,
		root:   root,
		logger: logger,
	}
}

// Handler returns the serialized file-serving handler.
//
// http.FileServer provides the entire behavior surface: 200 with file
// bytes for existing paths, 404 for missing ones, directory listings for
// directories, and path traversal containment via http.Dir. The wrapper
// adds only the one-at-a-time discipline and an access line per request.
func (s *Server) Handler() http.Handler {
	return s.serialize(http.FileServer(http.Dir(s.root)))
}

// serialize wraps a handler so at most one request is processed at a
// time. Unlike a semaphore of size one, a plain mutex conveys the intent
// exactly: there is no queue management, no fairness guarantee beyond the
// mutex's own, and no cancellation while waiting — a blocked request
// waits until the one in flight finishes, however long that takes.
func (s *Server) serialize(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		defer s.mu.Unlock()

		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"duration_ms", time.Since(start).Milliseconds(),
			"remote", r.RemoteAddr,
		)
	})
}

// Run binds 0.0.0.0 at the configured port and serves until ctx is
// cancelled.
//
// No read, write, or idle timeouts are set, matching the serving model
// this variant reproduces: a slow client can hold its request open
// indefinitely, stalling everyone else. Shutdown is likewise immediate —
// this variant has no drain window; the surrounding orchestration layer
// owns the stop semantics.
func (s *Server) Run(ctx context.Context) error {
	addr := fmt.Sprintf(":%d", s.port)

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return model.WrapCLIError(model.ExitPortUnavailable,
			fmt.Sprintf("failed to bind 0.0.0.0:%d", s.port), err)
	}

	srv := &http.Server{
		Handler: s.Handler(),
	}

	s.logger.Info("static server running",
		"addr", "0.0.0.0"+addr,
		"root", s.root,
	)

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- srv.Serve(listener)
	}()

	select {
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("static serve failed: %w", err)
		}
		return nil

	case <-ctx.Done():
		_ = srv.Close()
		return nil
	}
}
