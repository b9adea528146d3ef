package offset

import (
	"context"

	"github.com/redis/go-redis/v9"
)

// RedisCache is the production offset Cache (REDIS_HOST, spec.md section 6).
type RedisCache struct {
	client *redis.Client
}

func NewRedisCache(addr string) *RedisCache {
	return &RedisCache{client: redis.NewClient(&redis.Options{Addr: addr})}
}

func (c *RedisCache) Get(ctx context.Context, key string) (int64, bool, error) {
	v, err := c.client.Get(ctx, key).Int64()
	if err == redis.Nil {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return v, true, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, value int64) error {
	return c.client.Set(ctx, key, value, 0).Err()
}
