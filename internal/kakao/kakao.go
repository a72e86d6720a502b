package kakao

import (
	"bytes"
	"encoding/json"
	"strings"
)

// Version is the skill response schema version expected by Kakao i Open
// Builder. Fixed at "2.0" by the platform.
const Version = "2.0"

// ContentType is the Content-Type header value for skill responses.
// The explicit charset matters: responses carry Korean text and some
// intermediaries misinterpret JSON without a declared charset.
const ContentType = "application/json; charset=utf-8"

// Utterance sources, reported in diagnostics so operators can see which
// payload field a user's text was extracted from.
const (
	// SourceParam means the text came from the skill block parameter
	// action.params.usrtext. Bot designers route the raw user text into
	// this parameter; it takes priority over the generic utterance.
	SourceParam = "action.params.usrtext"

	// SourceUtterance means the text came from userRequest.utterance,
	// the raw utterance Kakao always includes.
	SourceUtterance = "userRequest.utterance"
)

// paramUserText is the skill block parameter name carrying the user text.
const paramUserText = "usrtext"

// Request models the subset of the Kakao skill payload the gateway reads.
// Unknown fields are ignored by encoding/json, which is exactly the
// tolerance the endpoint needs as the platform evolves its payload.
type Request struct {
	// UserRequest carries the raw utterance and session metadata.
	UserRequest UserRequest `json:"userRequest"`

	// Action carries the matched skill block and its extracted parameters.
	Action Action `json:"action"`
}

// UserRequest is the user side of the skill payload.
type UserRequest struct {
	// Utterance is the raw text the user typed or spoke.
	Utterance string `json:"utterance"`
}

// Action is the bot side of the skill payload.
type Action struct {
	// Params holds the block parameters. Values are declared as
	// interface{} because Open Builder emits strings for plain
	// parameters but objects for detail parameters.
	Params map[string]interface{} `json:"params"`
}

// ParseUtterance extracts the user's text from a raw webhook body.
//
// Resolution order:
//  1. action.params.usrtext — the explicit skill parameter, when present
//     and a non-empty string;
//  2. userRequest.utterance — the raw utterance fallback.
//
// The result is whitespace-trimmed. A body that is empty, malformed JSON,
// or missing both fields yields an empty utterance and SourceUtterance —
// never an error. The caller answers an empty utterance with a prompt
// message, so there is no failure path here.
//
// The returned source names the field the text came from, for the /diag
// endpoint.
func ParseUtterance(body []byte) (utterance, source string) {
	var req Request
	// Malformed JSON degrades to the zero-value Request, matching the
	// tolerant parse of the original service.
	_ = json.Unmarshal(body, &req)
	return ResolveUtterance(&req)
}

// ResolveUtterance applies the utterance resolution order to an already
// parsed Request. Split from ParseUtterance so handlers that need the
// Request for other purposes don't parse the body twice.
func ResolveUtterance(req *Request) (utterance, source string) {
	if raw, ok := req.Action.Params[paramUserText]; ok {
		if s, ok := raw.(string); ok && strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s), SourceParam
		}
	}
	return strings.TrimSpace(req.UserRequest.Utterance), SourceUtterance
}

// Response is the skill response envelope:
//
//	{"version":"2.0","template":{"outputs":[{"simpleText":{"text":"..."}}]}}
type Response struct {
	Version  string   `json:"version"`
	Template Template `json:"template"`
}

// Template holds the response outputs.
type Template struct {
	Outputs []Output `json:"outputs"`
}

// Output is a single response component. Only simpleText is used.
type Output struct {
	SimpleText *SimpleText `json:"simpleText,omitempty"`
}

// SimpleText is the plain-text response component.
type SimpleText struct {
	Text string `json:"text"`
}

// SimpleTextResponse builds the response envelope for a plain text answer.
// Every gateway reply — upstream answer, prompt, and fallback alike —
// goes through this single shape.
func SimpleTextResponse(text string) *Response {
	return &Response{
		Version: Version,
		Template: Template{
			Outputs: []Output{
				{SimpleText: &SimpleText{Text: text}},
			},
		},
	}
}

// Marshal serializes a Response to JSON without HTML escaping, so Korean
// text and characters like '<' survive byte-for-byte. The standard
// json.Marshal would rewrite them as <-style escapes, which Kakao
// renders literally.
func (r *Response) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(r); err != nil {
		return nil, err
	}
	// json.Encoder appends a trailing newline; strip it so the response
	// body is exactly the JSON document.
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
