package config

import (
	"context"
	"os"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/technosupport/physical-mcp/internal/obslog"
)

var watchLog = obslog.New("config-watch")

// Watch starts an fsnotify watcher on path (falling back to 60s
// polling if fsnotify can't attach) and calls onChange whenever the
// file is written, until ctx is cancelled. An always-on polling safety
// net runs alongside the event-driven watcher, mirroring
// internal/rules.Store.Watch and, underneath that, the teacher's
// license-file watcher.
func Watch(ctx context.Context, path string, onChange func()) {
	watcher, err := fsnotify.NewWatcher()
	usePolling := false
	if err != nil {
		watchLog.Printf("fsnotify unavailable (%v), falling back to polling", err)
		usePolling = true
	} else if err := watcher.Add(path); err != nil {
		watchLog.Printf("failed to watch %s (%v), falling back to polling", path, err)
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
					watchLog.Printf("watcher error: %v", err)
				}
			}
		}()
	}

	go func() {
		ticker := time.NewTicker(60 * time.Second)
		defer ticker.Stop()

		var lastMod time.Time
		if info, err := os.Stat(path); err == nil {
			lastMod = info.ModTime()
		}

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				info, err := os.Stat(path)
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
