package cache

import (
	"context"

	"github.com/redis/go-redis/v9"
)

// RedisCache backs the schedule cache with a Redis instance.
type RedisCache struct {
	client *redis.Client
	ctx    context.Context
}

// NewRedisCache creates a RedisCache talking to the given address.
func NewRedisCache(addr string) *RedisCache {
	rdb := redis.NewClient(&redis.Options{
		Addr: addr,
	})
	return &RedisCache{
		client: rdb,
		ctx:    context.Background(),
	}
}

func (r *RedisCache) Get(key string) (string, bool) {
	val, err := r.client.Get(r.ctx, key).Result()
	if err != nil {
		return "", false
	}
	return val, true
}

func (r *RedisCache) Set(key string, value string) error {
	return r.client.Set(r.ctx, key, value, 0).Err()
}
