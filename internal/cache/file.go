package cache

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/technosupport/physical-mcp/internal/scene"
)

// FileCache persists every camera's latest snapshot to a single JSON
// file, rewritten whole on every Set. Mirrors rules.Store's
// load-tolerant, mutex-guarded approach to a small on-disk document.
type FileCache struct {
	mu   sync.Mutex
	path string
}

// NewFileCache returns a FileCache backed by path.
func NewFileCache(path string) *FileCache {
	return &FileCache{path: path}
}

func (f *FileCache) readLocked() map[string]scene.Snapshot {
	data, err := os.ReadFile(f.path)
	if err != nil {
		return map[string]scene.Snapshot{}
	}
	var entries map[string]scene.Snapshot
	if err := json.Unmarshal(data, &entries); err != nil {
		return map[string]scene.Snapshot{}
	}
	return entries
}

func (f *FileCache) writeLocked(entries map[string]scene.Snapshot) error {
	if err := os.MkdirAll(filepath.Dir(f.path), 0o750); err != nil {
		return err
	}
	data, err := json.Marshal(entries)
	if err != nil {
		return err
	}
	return os.WriteFile(f.path, data, 0o640)
}

// Set writes cameraID's snapshot and persists the whole file.
func (f *FileCache) Set(ctx context.Context, cameraID string, snap scene.Snapshot) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	entries := f.readLocked()
	entries[cameraID] = snap
	return f.writeLocked(entries)
}

// Get returns cameraID's last-published snapshot, if any.
func (f *FileCache) Get(ctx context.Context, cameraID string) (scene.Snapshot, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	entries := f.readLocked()
	snap, ok := entries[cameraID]
	return snap, ok, nil
}

// All returns every published camera snapshot.
func (f *FileCache) All(ctx context.Context) ([]Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	entries := f.readLocked()
	out := make([]Entry, 0, len(entries))
	for id, snap := range entries {
		out = append(out, Entry{CameraID: id, Snapshot: snap})
	}
	return out, nil
}
