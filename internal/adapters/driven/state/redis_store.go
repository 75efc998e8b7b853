package state

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/custodia-labs/moviesync/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.StateStore = (*RedisStore)(nil)

// stateKey is the Redis hash carrying the stream-key → watermark mapping.
const stateKey = "moviesync:state"

// RedisStore implements driven.StateStore on a Redis hash. Hash field
// writes are atomic per key, which gives the same commit guarantee the
// file store gets from its rename.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore creates a new Redis-backed StateStore
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// Get retrieves the value for a stream key.
func (s *RedisStore) Get(ctx context.Context, key string) (string, bool, error) {
	value, err := s.client.HGet(ctx, stateKey, key).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get state %s: %w", key, err)
	}
	return value, true, nil
}

// Set durably persists the value for a stream key.
func (s *RedisStore) Set(ctx context.Context, key, value string) error {
	if err := s.client.HSet(ctx, stateKey, key, value).Err(); err != nil {
		return fmt.Errorf("set state %s: %w", key, err)
	}
	return nil
}
