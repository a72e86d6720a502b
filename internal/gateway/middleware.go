package gateway

import (
	"net/http"
	"time"

	"github.com/google/uuid"
)

// statusRecorder wraps http.ResponseWriter to capture the status code for
// access logging. WriteHeader may never be called by a handler (implicit
// 200 on first Write), so the zero value defaults to 200.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// logAccess emits one structured line per request on the access logger
// (stdout). Each request gets a uuid so a webhook line can be correlated
// with the error lines it produced on stderr.
//
// This middleware sits outermost in the chain, so the logged duration
// includes time spent queueing for a concurrency slot — which is exactly
// the latency the client experienced.
func (s *Server) logAccess(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		s.access.Info("request",
			"id", uuid.NewString(),
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration_ms", time.Since(start).Milliseconds(),
			"remote", r.RemoteAddr,
		)
	})
}

// limitConcurrency caps in-flight requests at maxConcurrentRequests using
// a buffered-channel semaphore, reproducing the 1-worker × 2-threads
// serving model of the original deployment. Requests beyond the cap wait
// for a slot rather than being rejected; a waiting client that gives up
// (or a closed connection) is released via the request context.
func (s *Server) limitConcurrency(next http.Handler) http.Handler {
	semaphore := make(chan struct{}, maxConcurrentRequests)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case semaphore <- struct{}{}:
			defer func() { <-semaphore }()
			next.ServeHTTP(w, r)
		case <-r.Context().Done():
			// The client went away while queued. 503 is written for
			// completeness; the connection is usually already gone.
			http.Error(w, "server busy", http.StatusServiceUnavailable)
		}
	})
}
