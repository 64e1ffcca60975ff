package repository

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const cacheKeyPrefix = "link:"

// ErrCacheMiss signals that the short id is not cached.
var ErrCacheMiss = errors.New("link not cached")

// LinkCache is a shared read-through cache for resolved links. Link records
// are immutable, so a cached entry can never go stale; the TTL only bounds
// memory for links that fall out of rotation.
type LinkCache interface {
	Get(ctx context.Context, shortID string) (string, error)
	Set(ctx context.Context, shortID, longURL string) error
}

type redisLinkCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewLinkCache returns a Redis-backed LinkCache with the given entry TTL.
func NewLinkCache(client *redis.Client, ttl time.Duration) LinkCache {
	return &redisLinkCache{client: client, ttl: ttl}
}

func (c *redisLinkCache) Get(ctx context.Context, shortID string) (string, error) {
	val, err := c.client.Get(ctx, cacheKeyPrefix+shortID).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrCacheMiss
		}
		return "", err
	}
	return val, nil
}

func (c *redisLinkCache) Set(ctx context.Context, shortID, longURL string) error {
	return c.client.Set(ctx, cacheKeyPrefix+shortID, longURL, c.ttl).Err()
}
