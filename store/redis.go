package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisBackend keeps state in a Redis instance so several agent
// processes on one machine share it, the way browser tabs share
// per-origin storage. Writes are last-write-wins at the key level;
// there is no cross-process change notification, so each process
// reconciles on its own sync passes.
type RedisBackend struct {
	client *redis.Client
}

// NewRedisBackend returns a backend using the given client.
func NewRedisBackend(client *redis.Client) *RedisBackend {
	return &RedisBackend{client: client}
}

func (r *RedisBackend) redisKey(key string) string {
	return filePrefix + key
}

// Read returns the bytes stored for key.
func (r *RedisBackend) Read(ctx context.Context, key string) ([]byte, error) {
	data, err := r.client.Get(ctx, r.redisKey(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotExist
		}
		return nil, fmt.Errorf("read from redis: %w", err)
	}
	return data, nil
}

// Write stores data under key without expiry.
func (r *RedisBackend) Write(ctx context.Context, key string, data []byte) error {
	if err := r.client.Set(ctx, r.redisKey(key), data, 0).Err(); err != nil {
		return fmt.Errorf("write to redis: %w", err)
	}
	return nil
}

// Remove deletes key.
func (r *RedisBackend) Remove(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, r.redisKey(key)).Err(); err != nil {
		return fmt.Errorf("delete from redis: %w", err)
	}
	return nil
}

// Keys lists all stored keys.
func (r *RedisBackend) Keys(ctx context.Context) ([]string, error) {
	raw, err := r.client.Keys(ctx, r.redisKey("*")).Result()
	if err != nil {
		return nil, fmt.Errorf("list redis keys: %w", err)
	}
	keys := make([]string, 0, len(raw))
	for _, k := range raw {
		keys = append(keys, k[len(filePrefix):])
	}
	return keys, nil
}
