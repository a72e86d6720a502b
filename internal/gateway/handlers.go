package gateway

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/sangho-coder/kakao-skill-sanity/internal/chatling"
	"github.com/sangho-coder/kakao-skill-sanity/internal/kakao"
)

// User-facing reply texts. These are the only response contents the
// gateway itself produces — everything else is passed through from the
// upstream. Kept in Korean to match the bot's audience.
const (
	// promptText is returned when the webhook carries no utterance.
	promptText = "질문을 입력해 주세요 🙂"

	// fallbackText is returned when the upstream fails or runs out of
	// budget. Always delivered with HTTP 200: the Kakao platform treats
	// non-200 skill responses as hard errors shown to the user, and the
	// five-second rule means a late answer is no answer.
	fallbackText = "지금은 답변 서버가 혼잡해요. 잠시 뒤에 다시 시도해 주세요."
)

// maxWebhookBody caps how much of a webhook body is read. Kakao payloads
// are small; the limit exists so a misdirected upload cannot balloon
// memory.
const maxWebhookBody = 1 << 20 // 1 MiB

// handleHealthz answers liveness probes on "/" and "/healthz" with a
// plain "ok". No JSON envelope: orchestration health checks only look at
// the status code, and the two-byte body keeps probe traffic cheap.
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// diagPayload is the /diag response document.
type diagPayload struct {
	APIKeySet    bool               `json:"api_key_set"`
	UpstreamURL  string             `json:"chatling_url"`
	ModelID      int                `json:"model_id"`
	BodyKey      string             `json:"body_key"`
	SyncBudgetS  float64            `json:"sync_budget_s"`
	LastUpstream *chatling.Snapshot `json:"last_chatling"`
	LastRequest  *requestSnapshot   `json:"last_request"`
	CacheEnabled bool               `json:"cache_enabled"`
	CacheHits    int64              `json:"cache_hits"`
	CacheMisses  int64              `json:"cache_misses"`
}

// handleDiag reports the gateway's effective configuration and the most
// recent upstream exchange and webhook request. It exists so a
// misconfigured deployment can be diagnosed from the outside without
// shell access to the container. The API key itself is never included —
// only whether one is set.
//
// A "pretty" query parameter switches to indented JSON for humans.
func (s *Server) handleDiag(w http.ResponseWriter, r *http.Request) {
	stats := s.replies.StatsSnapshot()
	payload := diagPayload{
		APIKeySet:    s.upstream.HasAPIKey(),
		UpstreamURL:  s.upstream.URL(),
		ModelID:      s.upstream.ModelID(),
		BodyKey:      chatling.BodyKey,
		SyncBudgetS:  s.upstream.Timeout().Seconds(),
		LastUpstream: s.upstream.LastSnapshot(),
		LastRequest:  s.lastRequestSnapshot(),
		CacheEnabled: s.replies.Enabled(),
		CacheHits:    stats.Hits,
		CacheMisses:  stats.Misses,
	}

	var data []byte
	var err error
	if r.URL.Query().Has("pretty") {
		data, err = json.MarshalIndent(payload, "", "  ")
	} else {
		data, err = json.Marshal(payload)
	}
	if err != nil {
		s.logger.Error("failed to encode diag payload", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// handleWebhook is the skill endpoint. The contract with the messenger
// is strict: always a 200 with a well-formed skill envelope, inside the
// platform's five-second budget. Upstream problems therefore turn into
// the fallback text, never into an error status.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		// A client that died mid-upload. Answer the envelope anyway;
		// the empty utterance path produces the prompt text.
		s.logger.Warn("failed to read webhook body", "error", err)
		body = nil
	}

	// Tolerant parse: malformed JSON degrades to the zero-value request.
	var req kakao.Request
	_ = json.Unmarshal(body, &req)
	utterance, source := kakao.ResolveUtterance(&req)

	// Record the request for /diag, preserving the raw field values so
	// operators can see exactly what the platform sent.
	var rawParam *string
	if raw, ok := req.Action.Params["usrtext"]; ok {
		if str, ok := raw.(string); ok {
			rawParam = &str
		}
	}
	s.recordRequest(&requestSnapshot{
		Utterance:    utterance,
		Source:       source,
		RawParamText: rawParam,
		RawUtterance: req.UserRequest.Utterance,
		Timestamp:    time.Now().UTC().Format(time.RFC3339),
	})

	s.logger.Info("webhook received", "utterance", utterance, "source", source)

	if utterance == "" {
		s.writeSkillResponse(w, promptText)
		return
	}

	// Reply cache first: a hit answers instantly and spends none of the
	// Kakao budget on the upstream.
	if reply, hit := s.replies.Get(r.Context(), utterance); hit {
		s.writeSkillResponse(w, reply)
		return
	}

	reply, err := s.upstream.Ask(r.Context(), utterance)
	if err != nil || reply == "" {
		if err != nil {
			s.logger.Warn("upstream ask failed", "error", err)
		}
		s.writeSkillResponse(w, fallbackText)
		return
	}

	s.replies.Set(r.Context(), utterance, reply)
	s.writeSkillResponse(w, reply)
}

// writeSkillResponse serializes a simpleText skill envelope with the
// charset-bearing content type. Serialization of the envelope cannot
// realistically fail; if it somehow does, the messenger gets a 500 and
// shows its own error to the user.
func (s *Server) writeSkillResponse(w http.ResponseWriter, text string) {
	data, err := kakao.SimpleTextResponse(text).Marshal()
	if err != nil {
		s.logger.Error("failed to encode skill response", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", kakao.ContentType)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
