package idempotency

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shandysiswandi/otpgate/internal/pkg/clock"
)

func newRedisTracker(t *testing.T) (*RedisTracker, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return NewRedis(client), mr
}

func TestTrackers_Exec(t *testing.T) {
	redisTracker, _ := newRedisTracker(t)
	trackers := map[string]Idempotency{
		"redis":  redisTracker,
		"memory": NewMemory(nil),
	}

	for name, tr := range trackers {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			calls := 0
			fn := func(context.Context) error {
				calls++
				return nil
			}

			require.NoError(t, tr.Exec(ctx, "alice:1", fn))
			err := tr.Exec(ctx, "alice:1", fn)
			assert.ErrorIs(t, err, ErrAlreadyCompleted)
			assert.Equal(t, 1, calls)

			errSend := errors.New("send failed")
			err = tr.Exec(ctx, "bob:1", func(context.Context) error { return errSend })
			assert.ErrorIs(t, err, errSend)

			err = tr.Exec(ctx, "bob:1", fn)
			assert.ErrorIs(t, err, ErrAlreadyFailed)
		})
	}
}

func TestRedisTracker_InProgressAndExpiry(t *testing.T) {
	tr, mr := newRedisTracker(t)
	ctx := context.Background()

	state, err := tr.Acquire(ctx, "k", time.Second)
	require.NoError(t, err)
	assert.Equal(t, StateNone, state)

	state, err = tr.Acquire(ctx, "k", time.Second)
	require.NoError(t, err)
	assert.Equal(t, StateInProgress, state)

	mr.FastForward(2 * time.Second)

	state, err = tr.Acquire(ctx, "k", time.Second)
	require.NoError(t, err)
	assert.Equal(t, StateNone, state)
}

func TestRedisTracker_InvalidState(t *testing.T) {
	tr, mr := newRedisTracker(t)
	require.NoError(t, mr.Set("idempotency:k", "garbage"))

	state, err := tr.Acquire(context.Background(), "k", time.Second)
	assert.ErrorIs(t, err, ErrInvalidState)
	assert.Equal(t, StateError, state)
}

func TestMemoryTracker_Expiry(t *testing.T) {
	clk := clock.NewFixed(time.Unix(1000, 0))
	tr := NewMemory(clk)
	ctx := context.Background()

	state, err := tr.Acquire(ctx, "k", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, StateNone, state)

	require.NoError(t, tr.MarkCompleted(ctx, "k", time.Minute))
	state, _ = tr.Acquire(ctx, "k", time.Minute)
	assert.Equal(t, StateCompleted, state)

	clk.Advance(time.Minute)
	state, _ = tr.Acquire(ctx, "k", time.Minute)
	assert.Equal(t, StateNone, state)
}
