package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sangho-coder/kakao-skill-sanity/internal/config"
)

// keyPrefix namespaces cache keys so the gateway can share a redis
// instance with other services.
const keyPrefix = "skill:reply:"

// Stats holds hit/miss counters for the /diag endpoint.
type Stats struct {
	Hits   int64 `json:"hits"`
	Misses int64 `json:"misses"`
}

// ReplyCache caches upstream replies keyed by utterance. All methods are
// safe on a nil receiver and behave as a disabled cache (every lookup is
// a miss, every store is a no-op), so callers don't need to branch on
// whether caching is configured.
type ReplyCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger

	hits   atomic.Int64
	misses atomic.Int64
}

// New creates a ReplyCache from cache settings. Returns nil when no redis
// address is configured — the nil cache is fully usable as a disabled one.
// A nil logger falls back to slog.Default().
func New(cfg config.CacheSettings, logger *slog.Logger) *ReplyCache {
	if cfg.RedisAddr == "" {
		return nil
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ReplyCache{
		client: redis.NewClient(&redis.Options{
			Addr: cfg.RedisAddr,
		}),
		ttl:    time.Duration(cfg.TTLSeconds) * time.Second,
		logger: logger,
	}
}

// Enabled reports whether the cache is actually backed by redis.
func (c *ReplyCache) Enabled() bool {
	return c != nil
}

// key derives the redis key for an utterance. Hashing keeps keys bounded
// and avoids encoding issues with arbitrary user text in key names.
func key(utterance string) string {
	sum := sha256.Sum256([]byte(utterance))
	return keyPrefix + hex.EncodeToString(sum[:])
}

// Get looks up a cached reply for the utterance. The second return value
// is true only on a hit. Redis errors are logged and counted as misses —
// the webhook request proceeds to the upstream as if no cache existed.
func (c *ReplyCache) Get(ctx context.Context, utterance string) (string, bool) {
	if c == nil {
		return "", false
	}

	val, err := c.client.Get(ctx, key(utterance)).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("reply cache lookup failed", "error", err)
		}
		c.misses.Add(1)
		return "", false
	}

	c.hits.Add(1)
	return val, true
}

// Set stores a reply for the utterance with the configured TTL.
// Best-effort: failures are logged and otherwise ignored.
func (c *ReplyCache) Set(ctx context.Context, utterance, reply string) {
	if c == nil || reply == "" {
		return
	}

	if err := c.client.Set(ctx, key(utterance), reply, c.ttl).Err(); err != nil {
		c.logger.Warn("reply cache store failed", "error", err)
	}
}

// StatsSnapshot returns the current hit/miss counters.
func (c *ReplyCache) StatsSnapshot() Stats {
	if c == nil {
		return Stats{}
	}
	return Stats{
		Hits:   c.hits.Load(),
		Misses: c.misses.Load(),
	}
}

// Close releases the redis connection. Safe on a nil receiver.
func (c *ReplyCache) Close() error {
	if c == nil {
		return nil
	}
	return c.client.Close()
}
