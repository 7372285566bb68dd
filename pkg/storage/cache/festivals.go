package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/platinummonkey/festival/pkg/api"
	"github.com/platinummonkey/festival/pkg/observability"
	"github.com/platinummonkey/festival/pkg/storage"
)

// Cache tiers reported to metrics
const (
	TierLRU   = "lru"
	TierRedis = "redis"
)

// FestivalCache is a read-through api.FestivalStore decorator. Single
// festival reads are served from an in-process LRU, then Redis when
// configured, then the wrapped store. Festivals are immutable once created,
// so entries are only evicted by size or TTL. Pages are never cached.
type FestivalCache struct {
	next    api.FestivalStore
	local   *expirable.LRU[int64, api.Festival]
	redis   *redis.Client
	ttl     time.Duration
	metrics *observability.Metrics
	logger  *observability.Logger
}

// NewFestivalCache wraps next. redisClient, metrics and logger may be nil.
func NewFestivalCache(next api.FestivalStore, redisClient *redis.Client, config storage.Config, metrics *observability.Metrics, logger *observability.Logger) *FestivalCache {
	size := config.CacheSize
	if size <= 0 {
		size = storage.DefaultConfig().CacheSize
	}
	ttl := config.CacheTTL
	if ttl <= 0 {
		ttl = storage.DefaultConfig().CacheTTL
	}
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &FestivalCache{
		next:    next,
		local:   expirable.NewLRU[int64, api.Festival](size, nil, ttl),
		redis:   redisClient,
		ttl:     ttl,
		metrics: metrics,
		logger:  logger,
	}
}

func redisKey(id int64) string {
	return fmt.Sprintf("festival:%d", id)
}

// Create stores festival and primes the cache with the stored row
func (c *FestivalCache) Create(ctx context.Context, festival *api.Festival) error {
	if err := c.next.Create(ctx, festival); err != nil {
		return err
	}
	c.remember(ctx, festival)
	return nil
}

// Get returns a copy of the festival with id
func (c *FestivalCache) Get(ctx context.Context, id int64) (*api.Festival, error) {
	if f, ok := c.local.Get(id); ok {
		c.metrics.RecordCache(TierLRU, true)
		return &f, nil
	}
	c.metrics.RecordCache(TierLRU, false)

	if c.redis != nil {
		if f, ok := c.fromRedis(ctx, id); ok {
			c.metrics.RecordCache(TierRedis, true)
			c.local.Add(id, *f)
			return f, nil
		}
		c.metrics.RecordCache(TierRedis, false)
	}

	f, err := c.next.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	c.remember(ctx, f)
	return f, nil
}

// List is not cached
func (c *FestivalCache) List(ctx context.Context, page api.PageRequest) ([]*api.Festival, int64, error) {
	return c.next.List(ctx, page)
}

// Search is not cached
func (c *FestivalCache) Search(ctx context.Context, query string, page api.PageRequest) ([]*api.Festival, int64, error) {
	return c.next.Search(ctx, query, page)
}

// Len returns the number of festivals held in process
func (c *FestivalCache) Len() int {
	return c.local.Len()
}

func (c *FestivalCache) remember(ctx context.Context, f *api.Festival) {
	c.local.Add(f.ID, *f)
	if c.redis == nil {
		return
	}
	data, err := json.Marshal(f)
	if err != nil {
		return
	}
	if err := c.redis.Set(ctx, redisKey(f.ID), data, c.ttl).Err(); err != nil {
		c.logger.WithError(err).WithField("festival_id", f.ID).Warn("Failed to cache festival in redis")
	}
}

func (c *FestivalCache) fromRedis(ctx context.Context, id int64) (*api.Festival, bool) {
	key := redisKey(id)
	data, err := c.redis.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.WithError(err).WithField("festival_id", id).Warn("Redis cache read failed")
		}
		return nil, false
	}

	var f api.Festival
	if err := json.Unmarshal(data, &f); err != nil {
		// If unmarshal fails, delete corrupt data
		c.redis.Del(ctx, key)
		return nil, false
	}
	return &f, true
}
