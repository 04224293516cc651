package state

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore creates a Redis-backed state store. Redis expires the
// keys itself; GETDEL makes Take atomic across processes.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{
		client: client,
		prefix: "state:",
	}
}

func (r *RedisStore) key(k string) string {
	return r.prefix + k
}

func (r *RedisStore) Put(ctx context.Context, key string, payload []byte, ttl time.Duration) error {
	if key == "" {
		return fmt.Errorf("state: missing key")
	}
	if ttl <= 0 {
		return fmt.Errorf("state: ttl must be positive")
	}
	return r.client.Set(ctx, r.key(key), payload, ttl).Err()
}

func (r *RedisStore) Take(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := r.client.GetDel(ctx, r.key(key)).Result()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return []byte(val), true, nil
}
