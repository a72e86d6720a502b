// Package cache implements an optional redis-backed reply cache for the
// webhook gateway.
//
// The Kakao platform gives a skill endpoint five seconds to answer. When
// the upstream chat API runs close to that budget, repeated utterances
// (users retrying the same question, or popular FAQ-style questions) can
// be answered from the cache instead. The cache is strictly best-effort:
// a redis failure is treated as a miss and never fails a webhook request.
package cache
