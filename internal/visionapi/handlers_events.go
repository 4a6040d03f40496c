package visionapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/technosupport/physical-mcp/internal/eventbus"
)

const sseHeartbeat = 15 * time.Second

// sseTopics are the EventBus topics bridged onto /events and /ws/events
// as named SSE events, per spec's "scene, change, alert" surface.
var sseTopics = []string{"scene", "change", "alert"}

func (s *Server) handleEventsSSE(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming_unsupported", "response writer does not support flushing")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	msgs := make(chan sseMessage, 32)
	unsub := s.subscribeAll(msgs)
	defer unsub()

	heartbeat := time.NewTicker(sseHeartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			if _, err := fmt.Fprint(w, ": heartbeat\n\n"); err != nil {
				return
			}
			flusher.Flush()
		case m := <-msgs:
			payload, err := json.Marshal(m.event)
			if err != nil {
				continue
			}
			if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", m.topic, payload); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

var wsUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// handleEventsWS mirrors the SSE stream over a websocket connection
// for dashboard clients that prefer a persistent socket.
func (s *Server) handleEventsWS(w http.ResponseWriter, r *http.Request) {
	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	msgs := make(chan sseMessage, 32)
	unsub := s.subscribeAll(msgs)
	defer unsub()

	for {
		select {
		case <-r.Context().Done():
			return
		case m := <-msgs:
			if err := conn.WriteJSON(map[string]any{"topic": m.topic, "event": m.event}); err != nil {
				return
			}
		}
	}
}

type sseMessage struct {
	topic string
	event eventbus.Event
}

// subscribeAll subscribes msgs to every sseTopics topic, returning an
// unsubscribe func the caller must defer.
func (s *Server) subscribeAll(msgs chan sseMessage) func() {
	ids := make([]uint64, 0, len(sseTopics))
	for _, topic := range sseTopics {
		topic := topic
		id := s.cfg.Events.Subscribe(topic, func(e eventbus.Event) error {
			select {
			case msgs <- sseMessage{topic: topic, event: e}:
			default:
			}
			return nil
		})
		ids = append(ids, id)
	}
	return func() {
		for _, id := range ids {
			s.cfg.Events.Unsubscribe(id)
		}
	}
}
