package mcpserver

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/technosupport/physical-mcp/internal/eventbus"
	"github.com/technosupport/physical-mcp/internal/replay"
)

// logEntry is one structured line this server emits on the "mcp_log"
// event bus topic, in the "PMCP[TYPE] | key=value | ..." shape chat
// clients that tail logs expect.
type logEntry struct {
	Level     string    `json:"level"`
	EventType string    `json:"event_type"`
	CameraID  string    `json:"camera_id,omitempty"`
	RuleID    string    `json:"rule_id,omitempty"`
	EventID   string    `json:"event_id"`
	Message   string    `json:"message"`
	Formatted string    `json:"formatted"`
	Timestamp time.Time `json:"timestamp"`
}

// pendingLogBuffer holds log lines emitted before any SSE/WS session
// subscribed to "mcp_log", so the first connecting client still sees
// recent startup activity instead of silence.
type pendingLogBuffer struct {
	mu  sync.Mutex
	cap int
	buf []logEntry
}

func newPendingLogBuffer(capacity int) *pendingLogBuffer {
	if capacity <= 0 {
		capacity = 100
	}
	return &pendingLogBuffer{cap: capacity}
}

func (p *pendingLogBuffer) add(e logEntry) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.buf = append(p.buf, e)
	if len(p.buf) > p.cap {
		p.buf = p.buf[len(p.buf)-p.cap:]
	}
}

func (p *pendingLogBuffer) drain() []logEntry {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]logEntry, len(p.buf))
	copy(out, p.buf)
	return out
}

// emitLog builds and publishes one structured log line. cameraID/ruleID
// may be empty. It always buffers the entry locally and also publishes
// to the shared event bus so SSE/WS clients watching "mcp_log" see it
// live.
func (s *Server) emitLog(level, eventType, cameraID, ruleID, message string) logEntry {
	entry := logEntry{
		Level:     level,
		EventType: eventType,
		CameraID:  cameraID,
		RuleID:    ruleID,
		EventID:   replay.NewEventID(),
		Message:   message,
		Timestamp: time.Now(),
	}
	entry.Formatted = formatLogLine(entry)

	s.logs.add(entry)
	if s.cfg.Events != nil {
		s.cfg.Events.Publish(context.Background(), "mcp_log", eventbus.Event{
			"level":      entry.Level,
			"event_type": entry.EventType,
			"camera_id":  entry.CameraID,
			"rule_id":    entry.RuleID,
			"event_id":   entry.EventID,
			"message":    entry.Message,
			"formatted":  entry.Formatted,
			"timestamp":  entry.Timestamp,
		})
	}
	s.log.Printf("%s", entry.Formatted)
	return entry
}

func formatLogLine(e logEntry) string {
	line := fmt.Sprintf("PMCP[%s] | event_id=%s", e.EventType, e.EventID)
	if e.CameraID != "" {
		line += fmt.Sprintf(" | camera_id=%s", e.CameraID)
	}
	if e.RuleID != "" {
		line += fmt.Sprintf(" | rule_id=%s", e.RuleID)
	}
	line += " | " + e.Message
	return line
}

// recordAlertEvent appends an alert to the shared replay log — the Go
// equivalent of the reference implementation's separate in-process
// alert-events list, reusing replay.Log instead of duplicating it.
func (s *Server) recordAlertEvent(eventType, cameraID, cameraName, ruleID, ruleName, message string) replay.Event {
	return s.cfg.Replay.Append(replay.Event{
		EventType:  eventType,
		CameraID:   cameraID,
		CameraName: cameraName,
		RuleID:     ruleID,
		RuleName:   ruleName,
		Message:    message,
	})
}
