package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rewired-gh/predictle/internal/models"
)

// RedisStore keeps score values as plain Redis strings.
type RedisStore struct {
	client *redis.Client
}

// OpenRedis connects to Redis and verifies the connection.
func OpenRedis(ctx context.Context, addr, password string, db int) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return NewRedisStore(client), nil
}

// NewRedisStore wraps an existing client.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// Load returns the saved state for mode.
func (s *RedisStore) Load(ctx context.Context, mode models.Mode) (models.ScoreState, error) {
	ks := keys(mode)
	results, err := s.client.MGet(ctx, ks...).Result()
	if err != nil {
		return models.ScoreState{}, fmt.Errorf("redis mget: %w", err)
	}

	values := make(map[string]string, len(ks))
	for i, k := range ks {
		if v, ok := results[i].(string); ok {
			values[k] = v
		}
	}
	return decode(mode, values)
}

// Save writes all of mode's values in one MULTI/EXEC.
func (s *RedisStore) Save(ctx context.Context, mode models.Mode, state models.ScoreState) error {
	if err := checkSave(mode, state); err != nil {
		return err
	}

	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for k, v := range encode(mode, state) {
			pipe.Set(ctx, k, v, 0)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis save: %w", err)
	}
	return nil
}

// Close closes the Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
