package cache_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/technosupport/physical-mcp/internal/cache"
	"github.com/technosupport/physical-mcp/internal/scene"
)

func TestFileCacheGetMissing(t *testing.T) {
	c := cache.NewFileCache(filepath.Join(t.TempDir(), "scene_cache.json"))
	_, ok, err := c.Get(t.Context(), "cloud:a")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestFileCacheSetThenGet(t *testing.T) {
	c := cache.NewFileCache(filepath.Join(t.TempDir(), "scene_cache.json"))
	snap := scene.Snapshot{Summary: "empty porch", PeopleCount: 0, UpdatedAt: time.Now()}

	require.NoError(t, c.Set(t.Context(), "cloud:a", snap))

	got, ok, err := c.Get(t.Context(), "cloud:a")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "empty porch", got.Summary)
}

func TestFileCacheSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "scene_cache.json")
	snap := scene.Snapshot{Summary: "person at door", PeopleCount: 1}

	require.NoError(t, cache.NewFileCache(path).Set(t.Context(), "cloud:a", snap))

	reopened := cache.NewFileCache(path)
	got, ok, err := reopened.Get(t.Context(), "cloud:a")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 1, got.PeopleCount)
}

func TestFileCacheAllListsEveryCamera(t *testing.T) {
	c := cache.NewFileCache(filepath.Join(t.TempDir(), "scene_cache.json"))
	require.NoError(t, c.Set(t.Context(), "cloud:a", scene.Snapshot{Summary: "a"}))
	require.NoError(t, c.Set(t.Context(), "cloud:b", scene.Snapshot{Summary: "b"}))

	all, err := c.All(t.Context())
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestFileCacheGetIgnoresCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scene_cache.json")
	c := cache.NewFileCache(path)
	require.NoError(t, c.Set(t.Context(), "cloud:a", scene.Snapshot{Summary: "a"}))

	require.NoError(t, os.WriteFile(path, []byte("not json"), 0o640))

	_, ok, err := c.Get(t.Context(), "cloud:a")
	require.NoError(t, err)
	assert.False(t, ok)
}
