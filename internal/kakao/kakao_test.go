package kakao

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestParseUtterance_ParamWins verifies the resolution order: when the
// skill block parameter usrtext is present, it takes priority over the
// raw utterance.
func TestParseUtterance_ParamWins(t *testing.T) {
	body := []byte(`{
		"userRequest": {"utterance": "raw text"},
		"action": {"params": {"usrtext": "param text"}}
	}`)

	utterance, source := ParseUtterance(body)
	assert.Equal(t, "param text", utterance)
	assert.Equal(t, SourceParam, source)
}

// TestParseUtterance_FallbackToUtterance verifies that the raw utterance
// is used when the usrtext parameter is absent.
func TestParseUtterance_FallbackToUtterance(t *testing.T) {
	body := []byte(`{
		"userRequest": {"utterance": "오늘 날씨 어때"},
		"action": {"params": {}}
	}`)

	utterance, source := ParseUtterance(body)
	assert.Equal(t, "오늘 날씨 어때", utterance)
	assert.Equal(t, SourceUtterance, source)
}

// TestParseUtterance_EmptyParamFallsBack verifies that a usrtext parameter
// containing only whitespace does not shadow the raw utterance.
func TestParseUtterance_EmptyParamFallsBack(t *testing.T) {
	body := []byte(`{
		"userRequest": {"utterance": "fallback"},
		"action": {"params": {"usrtext": "   "}}
	}`)

	utterance, source := ParseUtterance(body)
	assert.Equal(t, "fallback", utterance)
	assert.Equal(t, SourceUtterance, source)
}

// TestParseUtterance_NonStringParam verifies that a usrtext parameter with
// a non-string value (detail parameters arrive as objects) is skipped
// rather than causing a panic or error.
func TestParseUtterance_NonStringParam(t *testing.T) {
	body := []byte(`{
		"userRequest": {"utterance": "fallback"},
		"action": {"params": {"usrtext": {"origin": "x", "value": "y"}}}
	}`)

	utterance, source := ParseUtterance(body)
	assert.Equal(t, "fallback", utterance)
	assert.Equal(t, SourceUtterance, source)
}

// TestParseUtterance_Trimming verifies whitespace trimming on both sources.
func TestParseUtterance_Trimming(t *testing.T) {
	body := []byte(`{"userRequest": {"utterance": "  spaced out \n"}}`)

	utterance, _ := ParseUtterance(body)
	assert.Equal(t, "spaced out", utterance)
}

// TestParseUtterance_Degenerate verifies the tolerant-parse contract:
// malformed JSON, empty bodies, and payloads missing both fields all
// yield an empty utterance, never an error.
func TestParseUtterance_Degenerate(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"empty body", ""},
		{"malformed JSON", `{"userRequest": `},
		{"not an object", `[1,2,3]`},
		{"empty object", `{}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			utterance, source := ParseUtterance([]byte(tt.body))
			assert.Empty(t, utterance)
			assert.Equal(t, SourceUtterance, source)
		})
	}
}

// TestSimpleTextResponse_Shape verifies the exact envelope structure the
// Kakao platform expects.
func TestSimpleTextResponse_Shape(t *testing.T) {
	resp := SimpleTextResponse("hello")

	data, err := resp.Marshal()
	require.NoError(t, err)

	// Round-trip through a generic map to assert the wire structure
	// independent of our own struct definitions.
	var wire map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &wire))

	assert.Equal(t, "2.0", wire["version"])
	template, ok := wire["template"].(map[string]interface{})
	require.True(t, ok)
	outputs, ok := template["outputs"].([]interface{})
	require.True(t, ok)
	require.Len(t, outputs, 1)
	first, ok := outputs[0].(map[string]interface{})
	require.True(t, ok)
	simpleText, ok := first["simpleText"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "hello", simpleText["text"])
}

// TestResponse_Marshal_NoEscaping verifies that Korean text and HTML-ish
// characters survive serialization byte-for-byte, and that no trailing
// newline is emitted.
func TestResponse_Marshal_NoEscaping(t *testing.T) {
	resp := SimpleTextResponse("안녕하세요 <b>")

	data, err := resp.Marshal()
	require.NoError(t, err)

	s := string(data)
	assert.Contains(t, s, "안녕하세요 <b>")
	assert.NotContains(t, s, `<`, "HTML escaping must be disabled")
	assert.False(t, strings.HasSuffix(s, "\n"), "no trailing newline in the body")
}
