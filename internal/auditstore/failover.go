package auditstore

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/technosupport/physical-mcp/internal/replay"
)

var (
	spoolDir        = filepath.Join(os.TempDir(), "physical-mcp", "audit_spool")
	maxSpoolSize int64 = 256 * 1024 * 1024
	spoolMu      sync.Mutex
)

// ConfigureSpool overrides the spool directory and its size cap (in
// MB); pass 0 to leave either at its current value. Call before the
// daemon starts accepting traffic, not concurrently with writes.
func ConfigureSpool(dir string, maxMB int64) error {
	if dir != "" {
		spoolDir = dir
	}
	if maxMB > 0 {
		maxSpoolSize = maxMB * 1024 * 1024
	}
	return os.MkdirAll(spoolDir, 0o750)
}

func spoolEvent(event replay.Event) error {
	spoolMu.Lock()
	defer spoolMu.Unlock()

	if err := os.MkdirAll(spoolDir, 0o750); err != nil {
		return fmt.Errorf("auditstore: spool dir: %w", err)
	}
	if spoolFull() {
		return fmt.Errorf("auditstore: spool at capacity (%d bytes)", maxSpoolSize)
	}

	line, err := json.Marshal(event)
	if err != nil {
		return err
	}

	f, err := os.OpenFile(spoolFile(), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = f.Write(append(line, '\n'))
	return err
}

func spoolFile() string {
	return filepath.Join(spoolDir, "audit_spool.jsonl")
}

func spoolFull() bool {
	var size int64
	filepath.Walk(spoolDir, func(_ string, info fs.FileInfo, err error) error {
		if err == nil && info != nil && !info.IsDir() {
			size += info.Size()
		}
		return nil
	})
	return size >= maxSpoolSize
}

// ReplaySpool moves the spool file aside and retries every event
// against the database, re-spooling whatever still fails. It is
// idempotent: WriteEvent's ON CONFLICT DO NOTHING means a row that
// made it to the database before a prior crash is silently skipped
// rather than duplicated.
func (s *Store) ReplaySpool(ctx context.Context) (succeeded, failed int) {
	spoolMu.Lock()
	info, err := os.Stat(spoolFile())
	if err != nil || info.Size() == 0 {
		spoolMu.Unlock()
		return 0, 0
	}

	replayPath := filepath.Join(spoolDir, fmt.Sprintf("replay_%d.jsonl", time.Now().UnixNano()))
	if err := os.Rename(spoolFile(), replayPath); err != nil {
		spoolMu.Unlock()
		s.log.Printf("replay: could not rotate spool: %v", err)
		return 0, 0
	}
	spoolMu.Unlock()

	f, err := os.Open(replayPath)
	if err != nil {
		return 0, 0
	}
	defer func() {
		f.Close()
		os.Remove(replayPath)
	}()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var event replay.Event
		if err := json.Unmarshal(scanner.Bytes(), &event); err != nil {
			failed++
			continue
		}
		if err := s.WriteEvent(ctx, event); err != nil {
			failed++
			continue
		}
		succeeded++
	}

	if succeeded > 0 {
		s.log.Printf("replay: flushed %d spooled events", succeeded)
	}
	return succeeded, failed
}

// StartReplayer polls the spool every interval until ctx is canceled.
func (s *Store) StartReplayer(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.ReplaySpool(ctx)
			}
		}
	}()
}
