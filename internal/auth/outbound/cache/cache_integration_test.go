//go:build integration

package cache

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"

	"github.com/shandysiswandi/otpgate/internal/auth/entity"
	"github.com/shandysiswandi/otpgate/internal/pkg/hash"
	"github.com/shandysiswandi/otpgate/internal/pkg/instrument"
)

func TestRedis_AgainstServer(t *testing.T) {
	ctx := context.Background()

	ctr, err := tcredis.Run(ctx, "redis:7-alpine")
	testcontainers.CleanupContainer(t, ctr)
	require.NoError(t, err)

	uri, err := ctr.ConnectionString(ctx)
	require.NoError(t, err)

	opts, err := redis.ParseURL(uri)
	require.NoError(t, err)
	client := redis.NewClient(opts)
	t.Cleanup(func() { _ = client.Close() })

	c := NewRedis(client, hash.NewHMACSHA256("it-secret"), ttl, instrument.NewNoop())
	require.NoError(t, c.Ping(ctx))

	t0 := time.Now()
	require.NoError(t, c.Issue(ctx, "alice", "123456", t0))

	got, err := c.Consume(ctx, "alice", "654321", t0.Add(time.Second))
	require.NoError(t, err)
	assert.Equal(t, entity.VerifyResultMismatch, got)

	got, err = c.Consume(ctx, "alice", "123456", t0.Add(time.Second))
	require.NoError(t, err)
	assert.Equal(t, entity.VerifyResultSuccess, got)

	require.NoError(t, c.Issue(ctx, "bob", "123456", t0))
	got, err = c.Consume(ctx, "bob", "123456", t0.Add(ttl))
	require.NoError(t, err)
	assert.Equal(t, entity.VerifyResultExpired, got)
}
