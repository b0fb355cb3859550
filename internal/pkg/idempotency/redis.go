package idempotency

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisTracker keeps operation state in redis so every replica sees it.
type RedisTracker struct {
	client redis.UniversalClient
	prefix string
}

// NewRedis returns a redis-backed tracker.
func NewRedis(client redis.UniversalClient) *RedisTracker {
	return &RedisTracker{
		client: client,
		prefix: "idempotency:",
	}
}

// Acquire tries to start an operation.
func (s *RedisTracker) Acquire(ctx context.Context, key string, lockDuration time.Duration) (State, error) {
	fk := s.prefix + key

	acquired, err := s.client.SetNX(ctx, fk, StateInProgress.String(), lockDuration).Result()
	if err != nil {
		return StateError, err
	}
	if acquired {
		return StateNone, nil
	}

	result, err := s.client.Get(ctx, fk).Result()
	if errors.Is(err, redis.Nil) {
		// expired between SETNX and GET
		acquired, err = s.client.SetNX(ctx, fk, StateInProgress.String(), lockDuration).Result()
		if err != nil {
			return StateError, err
		}
		if acquired {
			return StateNone, nil
		}
		return StateError, ErrInvalidState
	}
	if err != nil {
		return StateError, err
	}

	return parseState(result)
}

func (s *RedisTracker) MarkCompleted(ctx context.Context, key string, ttl time.Duration) error {
	return s.client.Set(ctx, s.prefix+key, StateCompleted.String(), ttl).Err()
}

func (s *RedisTracker) MarkFailed(ctx context.Context, key string, ttl time.Duration) error {
	return s.client.Set(ctx, s.prefix+key, StateFailed.String(), ttl).Err()
}

func (s *RedisTracker) Exec(ctx context.Context, key string, fn func(context.Context) error, opts ...Option) error {
	return exec(ctx, s, key, fn, opts...)
}
