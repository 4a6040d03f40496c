package cache_test

import (
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/technosupport/physical-mcp/internal/cache"
	"github.com/technosupport/physical-mcp/internal/scene"
)

func setupTestRedis(t *testing.T) *redis.Client {
	s, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(s.Close)

	return redis.NewClient(&redis.Options{Addr: s.Addr()})
}

func TestRedisCacheGetMissing(t *testing.T) {
	c := cache.NewRedisCache(setupTestRedis(t))
	_, ok, err := c.Get(t.Context(), "cloud:a")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisCacheSetThenGet(t *testing.T) {
	c := cache.NewRedisCache(setupTestRedis(t))
	snap := scene.Snapshot{Summary: "empty porch", PeopleCount: 0}

	require.NoError(t, c.Set(t.Context(), "cloud:a", snap))

	got, ok, err := c.Get(t.Context(), "cloud:a")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "empty porch", got.Summary)
}

func TestRedisCacheAllListsKnownCameras(t *testing.T) {
	c := cache.NewRedisCache(setupTestRedis(t))
	require.NoError(t, c.Set(t.Context(), "cloud:a", scene.Snapshot{Summary: "a"}))
	require.NoError(t, c.Set(t.Context(), "cloud:b", scene.Snapshot{Summary: "b"}))

	all, err := c.All(t.Context())
	require.NoError(t, err)
	assert.Len(t, all, 2)
}
