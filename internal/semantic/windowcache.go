package semantic

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/redis/go-redis/v9"

	"github.com/phasemirror/dissonance-oracle/internal/domain"
)

// WindowCache is a two-tier read-through cache in front of
// FPStoreAdapter's window lookups: an in-process LRU (golang-lru/v2)
// as the hot tier, with an optional Redis tier behind it for cache
// sharing across replicas. Grounded on
// internal/notification/template/cache.go's LRU-cache-over-a-parse
// shape for the local tier and internal/infrastructure/cache/redis.go
// for the Redis tier's JSON-marshal-and-Set idiom.
//
// Invalidation is generation-based rather than key-deletion: Invalidate
// bumps a per-rule counter so every key computed afterward misses both
// tiers, and stale entries age out of the LRU or expire from Redis on
// their own rather than being hunted down and deleted.
type WindowCache struct {
	local    *lru.Cache[string, domain.FPWindow]
	redis    *redis.Client
	ttl      time.Duration
	logger   *slog.Logger
	versions sync.Map // ruleID -> *atomic.Int64
}

// NewWindowCache builds a WindowCache with an LRU tier of size
// capacity. redisClient may be nil, in which case only the LRU tier is
// used.
func NewWindowCache(capacity int, redisClient *redis.Client, ttl time.Duration, logger *slog.Logger) (*WindowCache, error) {
	if logger == nil {
		logger = slog.Default()
	}
	local, err := lru.New[string, domain.FPWindow](capacity)
	if err != nil {
		return nil, fmt.Errorf("semantic: building window cache: %w", err)
	}
	return &WindowCache{
		local:  local,
		redis:  redisClient,
		ttl:    ttl,
		logger: logger,
	}, nil
}

func (c *WindowCache) version(ruleID string) int64 {
	v, _ := c.versions.LoadOrStore(ruleID, &atomic.Int64{})
	return v.(*atomic.Int64).Load()
}

// Invalidate bumps ruleID's generation, so every key computed from now
// on misses both tiers. Called after any write that could change
// ruleID's window.
func (c *WindowCache) Invalidate(ruleID string) {
	v, _ := c.versions.LoadOrStore(ruleID, &atomic.Int64{})
	v.(*atomic.Int64).Add(1)
}

func (c *WindowCache) key(ruleID, variant string) string {
	return fmt.Sprintf("fpwindow:%s:v%d:%s", ruleID, c.version(ruleID), variant)
}

// Get returns the cached window for (ruleID, variant), if present in
// either tier. A Redis hit is promoted into the LRU tier.
func (c *WindowCache) Get(ctx context.Context, ruleID, variant string) (domain.FPWindow, bool) {
	key := c.key(ruleID, variant)

	if window, ok := c.local.Get(key); ok {
		return window, true
	}

	if c.redis == nil {
		return domain.FPWindow{}, false
	}

	raw, err := c.redis.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.Warn("window cache redis get failed", "ruleId", ruleID, "error", err)
		}
		return domain.FPWindow{}, false
	}

	var window domain.FPWindow
	if err := json.Unmarshal(raw, &window); err != nil {
		c.logger.Warn("window cache redis value corrupt", "ruleId", ruleID, "error", err)
		return domain.FPWindow{}, false
	}
	c.local.Add(key, window)
	return window, true
}

// Set populates both tiers for (ruleID, variant). Redis failures are
// logged, not returned: a cache write failure must never fail the
// caller's read.
func (c *WindowCache) Set(ctx context.Context, ruleID, variant string, window domain.FPWindow) {
	key := c.key(ruleID, variant)
	c.local.Add(key, window)

	if c.redis == nil {
		return
	}
	data, err := json.Marshal(window)
	if err != nil {
		c.logger.Warn("window cache marshal failed", "ruleId", ruleID, "error", err)
		return
	}
	if err := c.redis.Set(ctx, key, data, c.ttl).Err(); err != nil {
		c.logger.Warn("window cache redis set failed", "ruleId", ruleID, "error", err)
	}
}
