package rediscache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yungbote/winegraph/internal/platform/logger"
)

func TestCacheAgainstRedis(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}
	ctx := context.Background()
	c, err := New(ctx, logger.Nop(), Config{Addr: addr, TTL: time.Minute, Prefix: "winegraph:test:" + uuid.NewString()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	_, v0, ok, err := c.Get(ctx, "search|cherry")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Set(ctx, v0, "search|cherry", []byte(`[1,2]`)))
	got, v, ok, err := c.Get(ctx, "search|cherry")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, v0, v)
	assert.Equal(t, `[1,2]`, string(got))

	require.NoError(t, c.Bump(ctx))
	_, v1, ok, err := c.Get(ctx, "search|cherry")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Greater(t, v1, v0)
}

func TestCacheSetAfterBumpStaysInOldVersion(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}
	ctx := context.Background()
	c, err := New(ctx, logger.Nop(), Config{Addr: addr, TTL: time.Minute, Prefix: "winegraph:test:" + uuid.NewString()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	_, v0, ok, err := c.Get(ctx, "top|us")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, c.Bump(ctx))
	require.NoError(t, c.Set(ctx, v0, "top|us", []byte(`["stale"]`)))

	_, _, ok, err = c.Get(ctx, "top|us")
	require.NoError(t, err)
	assert.False(t, ok)
}
