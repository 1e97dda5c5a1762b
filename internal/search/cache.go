package search

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"recipe-ingest-service/internal/entity"
)

const (
	cacheKeyPrefix = "search:"

	defaultComputeTimeout = 30 * time.Second
)

// RedisCache stores ranked results in Redis and collapses concurrent
// identical queries into one computation.
type RedisCache struct {
	rdb    redis.Cmdable
	ttl    time.Duration
	group  singleflight.Group
	logger *slog.Logger

	computeTimeout time.Duration
}

func NewRedisCache(rdb redis.Cmdable, ttl time.Duration) *RedisCache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &RedisCache{
		rdb:    rdb,
		ttl:    ttl,
		logger: slog.Default().With("component", "search-cache"),

		computeTimeout: defaultComputeTimeout,
	}
}

// GetOrCompute returns the cached result for query or runs compute once for
// all concurrent callers. compute gets a context detached from the caller's
// cancellation and bounded by computeTimeout; a caller whose ctx ends stops
// waiting without cancelling the shared run.
func (c *RedisCache) GetOrCompute(
	ctx context.Context,
	query string,
	limit int,
	compute func(ctx context.Context) ([]entity.RecipeMatch, error),
) ([]entity.RecipeMatch, bool, error) {
	key := cacheKey(query, limit)
	if res, ok := c.get(ctx, key); ok {
		return res, true, nil
	}

	ch := c.group.DoChan(key, func() (any, error) {
		shared, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.computeTimeout)
		defer cancel()
		res, err := compute(shared)
		if err != nil {
			return nil, err
		}
		c.set(shared, key, res)
		return res, nil
	})

	var v any
	var err error
	select {
	case r := <-ch:
		v, err = r.Val, r.Err
	case <-ctx.Done():
		return nil, false, ctx.Err()
	}
	if err != nil {
		return nil, false, err
	}
	return v.([]entity.RecipeMatch), false, nil
}

func (c *RedisCache) get(ctx context.Context, key string) ([]entity.RecipeMatch, bool) {
	data, err := c.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("cache get failed", "key", key, "error", err)
		}
		return nil, false
	}
	var res []entity.RecipeMatch
	if err := json.Unmarshal(data, &res); err != nil {
		c.logger.Warn("cache unmarshal failed", "key", key, "error", err)
		return nil, false
	}
	return res, true
}

func (c *RedisCache) set(ctx context.Context, key string, res []entity.RecipeMatch) {
	data, err := json.Marshal(res)
	if err != nil {
		c.logger.Warn("cache marshal failed", "key", key, "error", err)
		return
	}
	if err := c.rdb.Set(ctx, key, data, c.ttl).Err(); err != nil {
		c.logger.Warn("cache set failed", "key", key, "error", err)
	}
}

// cacheKey expects a query already passed through normalizeQuery.
func cacheKey(query string, limit int) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%d", query, limit)))
	return cacheKeyPrefix + hex.EncodeToString(sum[:16])
}
