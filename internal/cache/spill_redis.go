package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisSpill persists pinned cache entries in Redis so a restarted
// client starts warm. Entries carry a TTL as a safety net; explicit
// invalidation deletes them immediately.
type RedisSpill struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisSpill builds a Redis-backed spill. A zero ttl defaults to 24h.
func NewRedisSpill(addr, password, prefix string, ttl time.Duration) *RedisSpill {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisSpill{
		client: redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: password,
		}),
		prefix: prefix,
		ttl:    ttl,
	}
}

func (r *RedisSpill) key(key string) string {
	if r.prefix == "" {
		return key
	}
	return r.prefix + ":" + key
}

// Save writes a serialized entry.
func (r *RedisSpill) Save(ctx context.Context, key string, data []byte) error {
	return r.client.Set(ctx, r.key(key), data, r.ttl).Err()
}

// Load reads a serialized entry; ok is false when none is stored.
func (r *RedisSpill) Load(ctx context.Context, key string) ([]byte, bool, error) {
	data, err := r.client.Get(ctx, r.key(key)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

// Delete removes an entry. Missing keys are not an error.
func (r *RedisSpill) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, r.key(key)).Err(); err != nil && err != redis.Nil {
		return err
	}
	return nil
}
