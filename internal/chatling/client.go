package chatling

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/sangho-coder/kakao-skill-sanity/internal/config"
)

// BodyKey is the JSON key carrying the user message in v2 request bodies.
// Fixed by the API contract — not configurable.
const BodyKey = "message"

// snippetLimit caps how many characters of an upstream body are kept in
// diagnostics and degraded replies. Enough to identify the problem,
// small enough to keep /diag output and log lines readable.
const snippetLimit = 200

// Sentinel errors for the short-circuit paths. The gateway maps all of
// them to the same user-facing fallback text; they exist so tests and
// diagnostics can tell the cases apart.
var (
	// ErrNoAPIKey means no bearer token is configured. No network call
	// is made.
	ErrNoAPIKey = errors.New("chatling: api key not configured")

	// ErrNoModelID means the numeric model id is missing. The v2 API
	// rejects bodies without ai_model_id, so there is no point calling.
	ErrNoModelID = errors.New("chatling: model id not configured")

	// ErrUpstreamStatus means the API answered with a non-2xx status.
	ErrUpstreamStatus = errors.New("chatling: upstream returned non-2xx status")
)

// Snapshot records the outcome of the most recent upstream exchange.
// Field names match the diagnostic JSON exposed on /diag.
type Snapshot struct {
	// OK reports whether the exchange produced a 2xx response.
	OK bool `json:"ok"`

	// Status is the HTTP status code, or 0 when no response was received
	// (timeout, connection failure, short-circuit).
	Status int `json:"status"`

	// URL is the endpoint that was called. Empty for short-circuits.
	URL string `json:"url,omitempty"`

	// BodySnippet is the first part of the response body.
	BodySnippet string `json:"body_snippet,omitempty"`

	// Error classifies failures: "no_api_key", "no_model_id", "timeout",
	// or the error string for transport-level failures.
	Error string `json:"error,omitempty"`
}

// requestBody is the v2 chat request payload.
type requestBody struct {
	// Message is the user utterance. The key name is fixed (BodyKey).
	Message string `json:"message"`

	// AIModelID selects the model. The v2 API requires the numeric id
	// in every request.
	AIModelID int `json:"ai_model_id"`
}

// Client calls the Chatling v2 chat endpoint. It is safe for concurrent
// use; the diagnostic snapshot is guarded by a mutex.
type Client struct {
	url     string
	apiKey  string
	modelID int
	timeout time.Duration

	// httpClient carries the per-call budget via its Timeout field.
	// A shared client reuses connections across webhook requests, which
	// matters for staying inside the Kakao response deadline.
	httpClient *http.Client

	logger *slog.Logger

	// mu guards last. Snapshots are written on every call and read by
	// the /diag handler from a different goroutine.
	mu   sync.Mutex
	last *Snapshot
}

// New creates a Client from upstream settings. A nil logger falls back to
// slog.Default().
func New(cfg config.UpstreamSettings, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	timeout := time.Duration(cfg.TimeoutSeconds * float64(time.Second))
	return &Client{
		url:     cfg.URL,
		apiKey:  cfg.APIKey,
		modelID: cfg.ModelID,
		timeout: timeout,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

// Timeout returns the configured upstream call budget. The /diag endpoint
// reports it as the sync budget.
func (c *Client) Timeout() time.Duration {
	return c.timeout
}

// Configured reports whether both the API key and model id are present,
// i.e. whether Ask can actually reach the upstream.
func (c *Client) Configured() bool {
	return c.apiKey != "" && c.modelID != 0
}

// HasAPIKey reports whether a bearer token is configured. Exposed for
// diagnostics; the key itself is never exposed.
func (c *Client) HasAPIKey() bool {
	return c.apiKey != ""
}

// ModelID returns the configured model id (0 when unset). Exposed for
// diagnostics.
func (c *Client) ModelID() int {
	return c.modelID
}

// URL returns the configured endpoint URL. Exposed for diagnostics.
func (c *Client) URL() string {
	return c.url
}

// LastSnapshot returns a copy of the most recent exchange snapshot, or
// nil when no call has been made yet.
func (c *Client) LastSnapshot() *Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.last == nil {
		return nil
	}
	snap := *c.last
	return &snap
}

// record stores the snapshot of the current exchange.
func (c *Client) record(snap Snapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.last = &snap
}

// Ask sends the user message to the chat endpoint and returns the
// extracted reply text.
//
// Short-circuit rules: a missing API key or model id fails immediately
// without a network call. Otherwise the call is budgeted by the
// configured timeout — both through the HTTP client and the caller's
// context, whichever fires first.
//
// Any error return means "no usable reply"; the caller is expected to
// answer with its fallback text rather than surface the error to the
// messenger.
func (c *Client) Ask(ctx context.Context, message string) (string, error) {
	if c.apiKey == "" {
		c.record(Snapshot{Error: "no_api_key"})
		return "", ErrNoAPIKey
	}
	if c.modelID == 0 {
		c.record(Snapshot{Error: "no_model_id"})
		return "", ErrNoModelID
	}

	payload, err := json.Marshal(requestBody{
		Message:   message,
		AIModelID: c.modelID,
	})
	if err != nil {
		c.record(Snapshot{Error: err.Error()})
		return "", fmt.Errorf("chatling: failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		c.record(Snapshot{Error: err.Error()})
		return "", fmt.Errorf("chatling: failed to build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	res, err := c.httpClient.Do(req)
	if err != nil {
		// Classify timeouts separately — they are the dominant failure
		// mode under the Kakao deadline and operators look for them
		// first in /diag.
		if isTimeout(err) {
			c.record(Snapshot{Error: "timeout"})
			return "", fmt.Errorf("chatling: request timed out after %s: %w", c.timeout, err)
		}
		c.record(Snapshot{Error: err.Error()})
		return "", fmt.Errorf("chatling: request failed: %w", err)
	}
	defer func() { _ = res.Body.Close() }()

	// Read at most slightly more than the snippet limit needs; replies
	// are short and a runaway body should not be buffered whole.
	body, err := io.ReadAll(io.LimitReader(res.Body, 64*1024))
	if err != nil {
		c.record(Snapshot{Status: res.StatusCode, URL: c.url, Error: err.Error()})
		return "", fmt.Errorf("chatling: failed to read response: %w", err)
	}

	snip := snippet(string(body))
	ok := res.StatusCode >= 200 && res.StatusCode < 300
	c.record(Snapshot{
		OK:          ok,
		Status:      res.StatusCode,
		URL:         c.url,
		BodySnippet: snip,
	})

	if !ok {
		c.logger.Warn("chatling non-2xx response",
			"status", res.StatusCode,
			"body", snip)
		return "", fmt.Errorf("%w: %d", ErrUpstreamStatus, res.StatusCode)
	}

	return extractReply(body, snip), nil
}

// extractReply pulls the answer text out of a 2xx response body.
//
// Known envelope: {"status":"success","data":{"response":"..."}} — but
// the key has also been observed as answer/text/message, and the data
// wrapper is sometimes absent. Probing in a fixed order keeps behavior
// deterministic when multiple keys are present. A body that is not JSON,
// or carries no recognized key, degrades to the snippet so the user sees
// something rather than a generic fallback.
func extractReply(body []byte, snip string) string {
	var parsed map[string]json.RawMessage
	if err := json.Unmarshal(body, &parsed); err != nil {
		return snip
	}

	// Unwrap the optional "data" envelope.
	fields := parsed
	if raw, ok := parsed["data"]; ok {
		var inner map[string]json.RawMessage
		if err := json.Unmarshal(raw, &inner); err == nil {
			fields = inner
		}
	}

	for _, key := range []string{"response", "answer", "text", "message"} {
		raw, ok := fields[key]
		if !ok {
			continue
		}
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			return strings.TrimSpace(s)
		}
	}

	return snip
}

// snippet truncates s to snippetLimit characters (runes, not bytes — the
// body is usually Korean text and a byte cut would split a character).
func snippet(s string) string {
	runes := []rune(s)
	if len(runes) <= snippetLimit {
		return s
	}
	return string(runes[:snippetLimit])
}

// isTimeout reports whether err represents a deadline-style failure from
// either the HTTP client timeout or the request context.
func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr interface{ Timeout() bool }
	return errors.As(err, &netErr) && netErr.Timeout()
}
