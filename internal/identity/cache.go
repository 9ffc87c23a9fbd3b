package identity

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/netstudio/booking-engine/pkg/logging"
)

// Cache persists resolved business ids across page loads. Implementations
// must be quiet about failures: a broken read is a miss, a broken write is
// a no-op. Callers never see storage errors.
type Cache interface {
	Get(ctx context.Context, key string) (string, bool)
	Set(ctx context.Context, key, value string)
}

const cacheKeyPrefix = "ns:business_id:"

// RedisCache is the production cache.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *logging.Logger
}

// NewRedisCache wraps a redis client. A zero ttl keeps entries forever.
func NewRedisCache(client *redis.Client, ttl time.Duration, logger *logging.Logger) *RedisCache {
	if client == nil {
		panic("identity: redis client required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &RedisCache{client: client, ttl: ttl, logger: logger}
}

// Get returns the cached id for key. Any storage error degrades to a miss.
func (c *RedisCache) Get(ctx context.Context, key string) (string, bool) {
	val, err := c.client.Get(ctx, cacheKeyPrefix+key).Result()
	if err == redis.Nil {
		return "", false
	}
	if err != nil {
		c.logger.Debug("identity: cache read failed", "error", err)
		return "", false
	}
	val = strings.TrimSpace(val)
	return val, val != ""
}

// Set writes through to redis. Failures are logged and swallowed.
func (c *RedisCache) Set(ctx context.Context, key, value string) {
	if err := c.client.Set(ctx, cacheKeyPrefix+key, value, c.ttl).Err(); err != nil {
		c.logger.Debug("identity: cache write failed", "error", err)
	}
}

// MemoryCache is the in-process fallback used when no redis address is
// configured, and in tests.
type MemoryCache struct {
	mu   sync.RWMutex
	vals map[string]string
}

// NewMemoryCache creates an empty in-memory cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{vals: make(map[string]string)}
}

func (c *MemoryCache) Get(ctx context.Context, key string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	val, ok := c.vals[key]
	return val, ok && val != ""
}

func (c *MemoryCache) Set(ctx context.Context, key, value string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.vals[key] = value
}
