package rules

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"github.com/technosupport/physical-mcp/internal/obslog"
)

// fileShape is the on-disk YAML envelope: {rules: [...]}.
type fileShape struct {
	Rules []WatchRule `yaml:"rules"`
}

// Store persists watch rules to a single YAML file. Load is
// tolerant of a missing or malformed file — both return an empty
// slice rather than an error, matching the reference implementation's
// "never block startup on a corrupt rules file" stance.
type Store struct {
	mu   sync.Mutex
	path string
	log  *obslog.Logger
}

// NewStore creates a Store backed by path.
func NewStore(path string) *Store {
	return &Store{path: path, log: obslog.New("rules-store")}
}

// Load reads and parses the rules file, returning nil on any error.
func (s *Store) Load() []WatchRule {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil
	}
	var shape fileShape
	if err := yaml.Unmarshal(data, &shape); err != nil {
		s.log.Printf("rules file %s is malformed, ignoring: %v", s.path, err)
		return nil
	}
	return shape.Rules
}

// Save writes rules to the file, creating parent directories as needed.
func (s *Store) Save(rules []WatchRule) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.path), 0o750); err != nil {
		return err
	}
	data, err := yaml.Marshal(fileShape{Rules: rules})
	if err != nil {
		return err
	}
	return os.WriteFile(s.path, data, 0o640)
}

// Watch starts an fsnotify watcher on the rules file (falling back to
// 60s polling if fsnotify can't attach) and calls onChange whenever
// the file is written, until ctx is cancelled. Mirrors the teacher's
// license-file watcher: an always-on polling safety net runs alongside
// the event-driven watcher rather than only as a fallback.
func (s *Store) Watch(ctx context.Context, onChange func()) {
	watcher, err := fsnotify.NewWatcher()
	usePolling := false
	if err != nil {
		s.log.Printf("fsnotify unavailable (%v), falling back to polling", err)
		usePolling = true
	} else if err := watcher.Add(s.path); err != nil {
		s.log.Printf("failed to watch %s (%v), falling back to polling", s.path, err)
		usePolling = true
		watcher.Close()
	}

	if !usePolling {
		go func() {
			defer watcher.Close()
			for {
				select {
				case <-ctx.Done():
					return
				case event, ok := <-watcher.Events:
					if !ok {
						return
					}
					if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
						time.Sleep(100 * time.Millisecond)
						onChange()
					}
				case err, ok := <-watcher.Errors:
					if !ok {
						return
					}
					s.log.Printf("watcher error: %v", err)
				}
			}
		}()
	}

	go func() {
		ticker := time.NewTicker(60 * time.Second)
		defer ticker.Stop()

		var lastMod time.Time
		if info, err := os.Stat(s.path); err == nil {
			lastMod = info.ModTime()
		}

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				info, err := os.Stat(s.path)
				if err != nil {
					continue
				}
				if info.ModTime().After(lastMod) {
					lastMod = info.ModTime()
					onChange()
				}
			}
		}
	}()
}
