package rules

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreLoadMissingFileReturnsEmpty(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Empty(t, s.Load())
}

func TestStoreLoadMalformedFileReturnsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte("not: [valid yaml"), 0o640))
	s := NewStore(path)
	assert.Empty(t, s.Load())
}

func TestStoreSaveAndLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "rules.yaml")
	s := NewStore(path)

	rules := []WatchRule{
		NewWatchRule("r1", "Person Detection", "a person is visible"),
		NewWatchRule("r2", "Package", "a package is at the door"),
	}
	require.NoError(t, s.Save(rules))

	loaded := s.Load()
	require.Len(t, loaded, 2)
	assert.Equal(t, "r1", loaded[0].ID)
	assert.Equal(t, "r2", loaded[1].ID)
}
