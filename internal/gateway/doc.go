// Package gateway implements the managed webhook HTTP server — the
// "serve" launch variant.
//
// The server answers Kakao skill webhooks by proxying utterances to the
// Chatling chat API, with health and diagnostics endpoints alongside.
// Its serving parameters deliberately reproduce the process-manager
// configuration of the original deployment: at most two requests are
// handled concurrently, a request is cut off after 30 seconds, idle
// keep-alive connections are held for 65 seconds, and shutdown drains
// in-flight requests for up to 10 seconds before forcing the close.
//
// Access lines go to stdout and error lines to stderr as structured
// (slog JSON) records, one per request, so the surrounding container
// platform can collect them without any log file plumbing.
package gateway
