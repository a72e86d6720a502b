package gateway

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sangho-coder/kakao-skill-sanity/internal/config"
)

// newTestServer builds a gateway Server whose upstream is the given
// handler, served from an in-process httptest server.
func newTestServer(t *testing.T, upstream http.HandlerFunc) *Server {
	t.Helper()
	backend := httptest.NewServer(upstream)
	t.Cleanup(backend.Close)

	settings := config.Defaults()
	settings.Upstream.URL = backend.URL
	settings.Upstream.APIKey = "test-key"
	settings.Upstream.ModelID = 7
	settings.Upstream.TimeoutSeconds = 2.0

	return New(settings, 0, nil, nil)
}

// answeringUpstream returns an upstream handler producing the standard
// v2 success envelope with the given reply.
func answeringUpstream(reply string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"success","data":{"response":"` + reply + `"}}`))
	}
}

// decodeSkillText extracts the simpleText content from a skill response
// body, asserting the envelope shape along the way.
func decodeSkillText(t *testing.T, body []byte) string {
	t.Helper()
	var wire struct {
		Version  string `json:"version"`
		Template struct {
			Outputs []struct {
				SimpleText struct {
					Text string `json:"text"`
				} `json:"simpleText"`
			} `json:"outputs"`
		} `json:"template"`
	}
	require.NoError(t, json.Unmarshal(body, &wire))
	require.Equal(t, "2.0", wire.Version)
	require.Len(t, wire.Template.Outputs, 1)
	return wire.Template.Outputs[0].SimpleText.Text
}

// TestHealthz verifies the liveness endpoints: "/" and "/healthz" answer
// 200 "ok", and unknown paths are 404 (the root pattern must not swallow
// them).
func TestHealthz(t *testing.T) {
	server := newTestServer(t, answeringUpstream("unused"))
	handler := server.Handler()

	for _, path := range []string{"/", "/healthz"} {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, rec.Code, "path %s", path)
		assert.Equal(t, "ok", rec.Body.String(), "path %s", path)
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nonexistent", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// TestWebhook_Success verifies the full proxy path: utterance in, upstream
// reply out, wrapped in the skill envelope with the charset content type.
func TestWebhook_Success(t *testing.T) {
	server := newTestServer(t, answeringUpstream("김치찌개 어떠세요"))

	body := `{"userRequest":{"utterance":"점심 뭐 먹지"}}`
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(body)))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Equal(t, "김치찌개 어떠세요", decodeSkillText(t, rec.Body.Bytes()))
}

// TestWebhook_EmptyUtterance verifies that a payload with no usable text
// gets the prompt message without any upstream call.
func TestWebhook_EmptyUtterance(t *testing.T) {
	var upstreamCalls atomic.Int32
	server := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		upstreamCalls.Add(1)
	})

	for _, body := range []string{`{}`, `not json at all`, ``} {
		rec := httptest.NewRecorder()
		server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(body)))

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, promptText, decodeSkillText(t, rec.Body.Bytes()))
	}

	assert.Zero(t, upstreamCalls.Load(), "empty utterances must not reach the upstream")
}

// TestWebhook_UpstreamFailure verifies the fallback contract: upstream
// errors produce the fallback text with HTTP 200, never an error status.
func TestWebhook_UpstreamFailure(t *testing.T) {
	server := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	body := `{"userRequest":{"utterance":"질문"}}`
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(body)))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, fallbackText, decodeSkillText(t, rec.Body.Bytes()))
}

// TestWebhook_NotConfigured verifies that a gateway without upstream
// credentials still serves: every question gets the fallback text.
func TestWebhook_NotConfigured(t *testing.T) {
	settings := config.Defaults()
	server := New(settings, 0, nil, nil)

	body := `{"userRequest":{"utterance":"질문"}}`
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(body)))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, fallbackText, decodeSkillText(t, rec.Body.Bytes()))
}

// TestWebhook_MethodNotAllowed verifies that GET on the webhook path is
// rejected by the method-aware route patterns.
func TestWebhook_MethodNotAllowed(t *testing.T) {
	server := newTestServer(t, answeringUpstream("unused"))

	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/webhook", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

// TestWebhook_CacheHitSkipsUpstream wires a real (miniredis-backed) reply
// cache and verifies that a repeated utterance is answered from the cache
// without a second upstream call.
func TestWebhook_CacheHitSkipsUpstream(t *testing.T) {
	var upstreamCalls atomic.Int32
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		upstreamCalls.Add(1)
		_, _ = w.Write([]byte(`{"data":{"response":"첫 번째 답변"}}`))
	}))
	t.Cleanup(backend.Close)

	redisServer := miniredis.RunT(t)

	settings := config.Defaults()
	settings.Upstream.URL = backend.URL
	settings.Upstream.APIKey = "test-key"
	settings.Upstream.ModelID = 7
	settings.Cache.RedisAddr = redisServer.Addr()

	server := New(settings, 0, nil, nil)
	handler := server.Handler()

	body := `{"userRequest":{"utterance":"같은 질문"}}`

	// First request goes upstream and populates the cache.
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(body)))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "첫 번째 답변", decodeSkillText(t, rec.Body.Bytes()))
	require.Equal(t, int32(1), upstreamCalls.Load())

	// Second request with the same utterance is served from the cache.
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(body)))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "첫 번째 답변", decodeSkillText(t, rec.Body.Bytes()))
	assert.Equal(t, int32(1), upstreamCalls.Load(), "second request must not reach the upstream")
}

// TestDiag verifies the diagnostics document: configuration summary, the
// last webhook request, the last upstream exchange, and that the API key
// value itself never appears.
func TestDiag(t *testing.T) {
	server := newTestServer(t, answeringUpstream("답변"))
	handler := server.Handler()

	// Before any webhook: last_request and last_chatling are null.
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/diag", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var before map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &before))
	assert.Equal(t, true, before["api_key_set"])
	assert.Equal(t, float64(7), before["model_id"])
	assert.Equal(t, "message", before["body_key"])
	assert.Equal(t, 2.0, before["sync_budget_s"])
	assert.Nil(t, before["last_request"])
	assert.Nil(t, before["last_chatling"])
	assert.NotContains(t, rec.Body.String(), "test-key", "the API key value must never leak into /diag")

	// Send a webhook, then re-read the diagnostics.
	body := `{"userRequest":{"utterance":"진단 질문"},"action":{"params":{"usrtext":"파라미터 질문"}}}`
	whRec := httptest.NewRecorder()
	handler.ServeHTTP(whRec, httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(body)))
	require.Equal(t, http.StatusOK, whRec.Code)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/diag", nil))

	var after map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &after))

	lastRequest, ok := after["last_request"].(map[string]interface{})
	require.True(t, ok, "last_request should be populated after a webhook")
	assert.Equal(t, "파라미터 질문", lastRequest["utter"])
	assert.Equal(t, "action.params.usrtext", lastRequest["source"])
	assert.Equal(t, "파라미터 질문", lastRequest["raw_usrtext"])
	assert.Equal(t, "진단 질문", lastRequest["raw_utterance"])

	lastUpstream, ok := after["last_chatling"].(map[string]interface{})
	require.True(t, ok, "last_chatling should be populated after an upstream call")
	assert.Equal(t, true, lastUpstream["ok"])
	assert.Equal(t, float64(200), lastUpstream["status"])
}

// TestDiag_Pretty verifies that the pretty query parameter switches to
// indented output.
func TestDiag_Pretty(t *testing.T) {
	server := newTestServer(t, answeringUpstream("unused"))

	compact := httptest.NewRecorder()
	server.Handler().ServeHTTP(compact, httptest.NewRequest(http.MethodGet, "/diag", nil))
	pretty := httptest.NewRecorder()
	server.Handler().ServeHTTP(pretty, httptest.NewRequest(http.MethodGet, "/diag?pretty=1", nil))

	assert.NotContains(t, compact.Body.String(), "\n  ")
	assert.Contains(t, pretty.Body.String(), "\n  ")
}

// TestWebhook_PassThroughOnly documents the content contract: the gateway
// produces no response text of its own beyond the protocol envelope — the
// simpleText content is either the upstream reply verbatim or one of the
// two fixed strings.
func TestWebhook_PassThroughOnly(t *testing.T) {
	const upstreamReply = "업스트림이 만든 답변"
	server := newTestServer(t, answeringUpstream(upstreamReply))

	body := `{"userRequest":{"utterance":"아무 질문"}}`
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(body)))

	text := decodeSkillText(t, rec.Body.Bytes())
	assert.Equal(t, upstreamReply, text)

	// Sanity: read the raw body too, confirming nothing else was added.
	raw, err := io.ReadAll(rec.Result().Body)
	require.NoError(t, err)
	assert.Contains(t, string(raw), upstreamReply)
}
