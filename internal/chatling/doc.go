// Package chatling implements the client for the Chatling v2 knowledge-base
// chat API, which answers user utterances on behalf of the skill gateway.
//
// The client is deliberately forgiving about response shapes: the API has
// returned several envelope variants over time, so reply extraction probes
// a list of known keys and degrades to a raw body snippet rather than
// failing. Every call records a diagnostic snapshot of the exchange for
// the gateway's /diag endpoint.
package chatling
