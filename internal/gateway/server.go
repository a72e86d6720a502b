package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/sangho-coder/kakao-skill-sanity/internal/cache"
	"github.com/sangho-coder/kakao-skill-sanity/internal/chatling"
	"github.com/sangho-coder/kakao-skill-sanity/internal/config"
	"github.com/sangho-coder/kakao-skill-sanity/internal/model"
)

// Serving parameters, mirroring the original process-manager invocation
// (1 worker × 2 threads, --timeout 30, --graceful-timeout 10,
// --keep-alive 65).
const (
	// maxConcurrentRequests caps how many requests are handled at once.
	// Additional requests queue until a slot frees up.
	maxConcurrentRequests = 2

	// requestTimeout is the hard per-request deadline. A handler still
	// running when it fires gets its response replaced with 503.
	requestTimeout = 30 * time.Second

	// keepAliveTimeout is how long an idle keep-alive connection is held
	// open before the server closes it.
	keepAliveTimeout = 65 * time.Second

	// shutdownGrace is the window in-flight requests get to finish after
	// a stop signal before connections are force-closed.
	shutdownGrace = 10 * time.Second
)

// requestSnapshot records the most recent webhook request for /diag.
// Field names match the diagnostic JSON keys.
type requestSnapshot struct {
	// Utterance is the resolved user text.
	Utterance string `json:"utter"`

	// Source names the payload field the text came from.
	Source string `json:"source"`

	// RawParamText is the action.params.usrtext value as received
	// (nil when absent or not a string).
	RawParamText *string `json:"raw_usrtext"`

	// RawUtterance is the userRequest.utterance value as received.
	RawUtterance string `json:"raw_utterance"`

	// Timestamp is the UTC arrival time in RFC 3339 format.
	Timestamp string `json:"ts"`
}

// Server is the webhook gateway. Construct with New, then call Run to
// bind and serve until the context is cancelled.
type Server struct {
	port     int
	upstream *chatling.Client
	replies  *cache.ReplyCache

	// access receives one line per request on stdout; logger receives
	// operational and error lines on stderr.
	access *slog.Logger
	logger *slog.Logger

	// mu guards lastRequest, which is written by the webhook handler and
	// read by the diag handler.
	mu          sync.Mutex
	lastRequest *requestSnapshot
}

// New assembles a Server from the merged settings. The reply cache is nil
// (disabled) unless a redis address is configured. Access lines are
// written through accessLogger; operational and error lines through
// logger. Nil loggers fall back to slog.Default().
func New(settings config.Settings, port int, accessLogger, logger *slog.Logger) *Server {
	if accessLogger == nil {
		accessLogger = slog.Default()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		port:     port,
		upstream: chatling.New(settings.Upstream, logger),
		replies:  cache.New(settings.Cache, logger),
		access:   accessLogger,
		logger:   logger,
	}
}

// Handler builds the full middleware chain around the route mux:
//
//	access log → concurrency limit → request timeout → routes
//
// The access logger sits outermost so queueing time spent waiting for a
// concurrency slot shows up in the logged duration. The timeout sits
// innermost so it budgets actual handling, not queueing — matching the
// process-manager semantics where the request clock starts when a worker
// picks the request up.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	// "GET /{$}" matches exactly "/" — a bare "GET /" would swallow every
	// unmatched GET path and answer it with a health check.
	mux.HandleFunc("GET /{$}", s.handleHealthz)
	mux.HandleFunc("GET /healthz", s.handleHealthz)
	mux.HandleFunc("GET /diag", s.handleDiag)
	mux.HandleFunc("POST /webhook", s.handleWebhook)

	var h http.Handler = mux
	h = http.TimeoutHandler(h, requestTimeout, "request timed out\n")
	h = s.limitConcurrency(h)
	h = s.logAccess(h)
	return h
}

// Run binds 0.0.0.0 at the configured port and serves until ctx is
// cancelled (typically by SIGTERM/SIGINT via signal.NotifyContext).
//
// The listener is opened explicitly, before the serve loop starts, so a
// bind failure surfaces as a CLIError with ExitPortUnavailable instead
// of an opaque late error. On cancellation, in-flight requests get the
// graceful shutdown window; whatever is still running afterwards is
// force-closed.
func (s *Server) Run(ctx context.Context) error {
	addr := fmt.Sprintf(":%d", s.port)

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return model.WrapCLIError(model.ExitPortUnavailable,
			fmt.Sprintf("failed to bind 0.0.0.0:%d", s.port), err)
	}

	srv := &http.Server{
		Handler: s.Handler(),

		// IdleTimeout closes keep-alive connections that stay quiet.
		IdleTimeout: keepAliveTimeout,

		// ReadHeaderTimeout bounds how long a client may dawdle over its
		// request line and headers. Without it, an idle half-open
		// connection would pin one of the two concurrency slots' worth
		// of server resources indefinitely.
		ReadHeaderTimeout: requestTimeout,
	}

	s.logger.Info("gateway running",
		"addr", "0.0.0.0"+addr,
		"max_concurrent", maxConcurrentRequests,
		"request_timeout", requestTimeout.String(),
		"keep_alive", keepAliveTimeout.String(),
		"cache_enabled", s.replies.Enabled(),
		"upstream_configured", s.upstream.Configured(),
	)

	// Serve in a goroutine so this function can watch the context.
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- srv.Serve(listener)
	}()

	select {
	case err := <-serveErr:
		// Serve only returns on listener failure (Shutdown is triggered
		// from the other branch), so any error here is fatal.
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("gateway serve failed: %w", err)
		}
		return nil

	case <-ctx.Done():
		s.logger.Info("gateway shutting down", "grace", shutdownGrace.String())

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			// The grace window expired with requests still in flight.
			// Force-close the remaining connections.
			s.logger.Warn("graceful shutdown window expired, forcing close", "error", err)
			_ = srv.Close()
		}
		_ = s.replies.Close()
		return nil
	}
}

// recordRequest stores the webhook request snapshot for /diag.
func (s *Server) recordRequest(snap *requestSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastRequest = snap
}

// lastRequestSnapshot returns a copy of the most recent webhook request
// snapshot, or nil when no webhook has been received yet.
func (s *Server) lastRequestSnapshot() *requestSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastRequest == nil {
		return nil
	}
	snap := *s.lastRequest
	return &snap
}
