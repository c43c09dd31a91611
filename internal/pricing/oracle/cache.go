package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/bullion-backend/pkg/enums"
)

// CachedPrice is the single (price, timestamp) pair kept per commodity.
type CachedPrice struct {
	PricePerGram decimal.Decimal `json:"price_per_gram"`
	FetchedAt    time.Time       `json:"fetched_at"`
	Provider     string          `json:"provider"`
}

// Cache stores the last known price per commodity. Entries never expire on their
// own: the oracle decides freshness so stale values remain available for fallback.
type Cache interface {
	Get(ctx context.Context, commodity enums.Commodity) (CachedPrice, bool, error)
	Set(ctx context.Context, commodity enums.Commodity, price CachedPrice) error
}

// MemoryCache is a process-local Cache.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[enums.Commodity]CachedPrice
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[enums.Commodity]CachedPrice)}
}

func (c *MemoryCache) Get(_ context.Context, commodity enums.Commodity) (CachedPrice, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.entries[commodity]
	return entry, ok, nil
}

func (c *MemoryCache) Set(_ context.Context, commodity enums.Commodity, price CachedPrice) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[commodity] = price
	return nil
}

// redisStore is the subset of pkg/redis.Client used by RedisCache.
type redisStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	PriceKey(commodity string) string
}

// RedisCache shares the cached price between every API and worker instance.
type RedisCache struct {
	store  redisStore
	isMiss func(error) bool
}

// NewRedisCache builds a Redis-backed cache. isMiss reports the store's "no such key" error.
func NewRedisCache(store redisStore, isMiss func(error) bool) (*RedisCache, error) {
	if store == nil {
		return nil, fmt.Errorf("redis store required")
	}
	if isMiss == nil {
		return nil, fmt.Errorf("miss detector required")
	}
	return &RedisCache{store: store, isMiss: isMiss}, nil
}

func (c *RedisCache) Get(ctx context.Context, commodity enums.Commodity) (CachedPrice, bool, error) {
	raw, err := c.store.Get(ctx, c.store.PriceKey(commodity.String()))
	if err != nil {
		if c.isMiss(err) {
			return CachedPrice{}, false, nil
		}
		return CachedPrice{}, false, fmt.Errorf("read cached price: %w", err)
	}
	var entry CachedPrice
	if err := json.Unmarshal([]byte(raw), &entry); err != nil {
		return CachedPrice{}, false, fmt.Errorf("decode cached price: %w", err)
	}
	return entry, true, nil
}

func (c *RedisCache) Set(ctx context.Context, commodity enums.Commodity, price CachedPrice) error {
	payload, err := json.Marshal(price)
	if err != nil {
		return fmt.Errorf("encode cached price: %w", err)
	}
	if err := c.store.Set(ctx, c.store.PriceKey(commodity.String()), string(payload), 0); err != nil {
		return fmt.Errorf("write cached price: %w", err)
	}
	return nil
}
