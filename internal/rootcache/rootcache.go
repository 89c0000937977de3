// Package rootcache implements an optional read-through cache for tree root
// and proof reads, backed by the teacher's own github.com/go-redis/redis v6
// client. It is a pure latency optimization: disabled by default, and every
// entry is invalidated before a mutation is acknowledged, so a cache hit is
// never staler than the last acknowledged write.
package rootcache

import (
	"fmt"
	"time"

	goredis "github.com/go-redis/redis"

	"github.com/commitree/commitree/apperr"
)

// Cache is a thin wrapper around a Redis client, keyed by (treeID, kind,
// key). A nil *Cache is valid and behaves as disabled — every method is a
// no-op miss, so callers don't need to branch on configuration.
type Cache struct {
	client *goredis.Client
	ttl    time.Duration
}

// Open connects to Redis at addr. Pass an empty addr to get a disabled,
// always-nil cache from the caller's side (callers should simply not call
// Open when --redis-addr is unset).
func Open(addr string, ttl time.Duration) (*Cache, error) {
	if addr == "" {
		return nil, nil
	}
	client := goredis.NewClient(&goredis.Options{Addr: addr})
	if err := client.Ping().Err(); err != nil {
		return nil, apperr.Wrap(apperr.StorageError, err, fmt.Sprintf("connect to redis at %s", addr))
	}
	return &Cache{client: client, ttl: ttl}, nil
}

func rootKey(treeID, kind string) string {
	return fmt.Sprintf("commitree:%s:%s:root", treeID, kind)
}

func proofKey(treeID, kind, key string) string {
	return fmt.Sprintf("commitree:%s:%s:proof:%s", treeID, kind, key)
}

// GetRoot returns the cached root hex for (treeID, kind), if present.
func (c *Cache) GetRoot(treeID, kind string) (string, bool) {
	if c == nil {
		return "", false
	}
	val, err := c.client.Get(rootKey(treeID, kind)).Result()
	if err != nil {
		return "", false
	}
	return val, true
}

// SetRoot caches the root hex for (treeID, kind).
func (c *Cache) SetRoot(treeID, kind, rootHex string) {
	if c == nil {
		return
	}
	c.client.Set(rootKey(treeID, kind), rootHex, c.ttl)
}

// GetProof returns a cached JSON-encoded proof for (treeID, kind, key), if
// present.
func (c *Cache) GetProof(treeID, kind, key string) (string, bool) {
	if c == nil {
		return "", false
	}
	val, err := c.client.Get(proofKey(treeID, kind, key)).Result()
	if err != nil {
		return "", false
	}
	return val, true
}

// SetProof caches a JSON-encoded proof for (treeID, kind, key).
func (c *Cache) SetProof(treeID, kind, key, proofJSON string) {
	if c == nil {
		return
	}
	c.client.Set(proofKey(treeID, kind, key), proofJSON, c.ttl)
}

// Invalidate drops every cached entry for (treeID, kind) — root and any
// proofs — ahead of acknowledging a mutation, so no cache read can observe
// a state older than the last committed write.
func (c *Cache) Invalidate(treeID, kind string) {
	if c == nil {
		return
	}
	c.client.Del(rootKey(treeID, kind))
	pattern := fmt.Sprintf("commitree:%s:%s:proof:*", treeID, kind)
	keys, err := c.client.Keys(pattern).Result()
	if err != nil || len(keys) == 0 {
		return
	}
	c.client.Del(keys...)
}

// Close shuts down the underlying Redis client. Safe to call on a nil
// Cache.
func (c *Cache) Close() error {
	if c == nil {
		return nil
	}
	return c.client.Close()
}
