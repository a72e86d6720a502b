// Package kakao implements the Kakao skill server wire protocol: parsing
// the webhook payload Kakao i Open Builder sends on each user utterance,
// and building the v2.0 skill response envelope.
//
// Only the fields the gateway actually consumes are modeled. The payload
// format is tolerant by contract — a malformed or empty body yields an
// empty utterance rather than an error, because the skill endpoint must
// always answer with a well-formed response within Kakao's time budget.
package kakao
