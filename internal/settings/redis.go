package settings

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
)

// RedisStore shares settings between restarts and between terminals of the same POS id.
type RedisStore struct {
	client   *redis.Client
	posID    string
	fallback bool
}

// NewRedisStore returns a store that reports fallback until a value has been written.
func NewRedisStore(client *redis.Client, posID string, fallback bool) *RedisStore {
	return &RedisStore{
		client:   client,
		posID:    posID,
		fallback: fallback,
	}
}

func (r *RedisStore) WineEnabled(ctx context.Context) (bool, error) {
	raw, err := r.client.Get(ctx, r.key("wine_enabled")).Result()
	if errors.Is(err, redis.Nil) {
		return r.fallback, nil
	}
	if err != nil {
		return r.fallback, fmt.Errorf("redis get failed: %w", err)
	}
	enabled, err := strconv.ParseBool(raw)
	if err != nil {
		return r.fallback, fmt.Errorf("parse wine_enabled %q: %w", raw, err)
	}
	return enabled, nil
}

func (r *RedisStore) SetWineEnabled(ctx context.Context, enabled bool) error {
	if err := r.client.Set(ctx, r.key("wine_enabled"), strconv.FormatBool(enabled), 0).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (r *RedisStore) key(name string) string {
	return fmt.Sprintf("pos:%s:settings:%s", r.posID, name)
}
