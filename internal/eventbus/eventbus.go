// Package eventbus implements a topic-based in-process publish/
// subscribe bus for fanning perception-loop events out to the
// VisionAPI's SSE/websocket streams and the MCP tool server, with an
// optional NATS bridge for multi-instance deployments.
package eventbus

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"

	"github.com/nats-io/nats.go"

	"github.com/technosupport/physical-mcp/internal/obslog"
)

// Event is a fanout payload: topic-scoped, arbitrary JSON-shaped data.
type Event map[string]any

// Handler receives a published event. A handler that returns an error
// is logged and does not block delivery to other subscribers.
type Handler func(Event) error

// Bus is a topic-based event bus. The zero value is not usable; use New.
type Bus struct {
	mu        sync.RWMutex
	subs      map[string]map[uint64]Handler
	idToTopic map[uint64]string
	nextID    uint64

	nats      *nats.Conn
	natsTopic string

	log *obslog.Logger
}

// New returns a ready-to-use Bus. If natsURL is non-empty, publish
// also republishes each event onto "physical-mcp.events.<topic>" on
// the given NATS server, so a second daemon instance or relay board
// can observe the same stream.
func New(natsURL string) *Bus {
	b := &Bus{
		subs:      map[string]map[uint64]Handler{},
		idToTopic: map[uint64]string{},
		log:       obslog.New("eventbus"),
	}

	if natsURL != "" {
		nc, err := nats.Connect(natsURL)
		if err != nil {
			b.log.Printf("NATS bridge disabled, connect to %s failed: %v", natsURL, err)
		} else {
			b.nats = nc
			b.natsTopic = "physical-mcp.events"
			b.log.Printf("NATS bridge connected to %s", natsURL)
		}
	}

	return b
}

// Subscribe registers handler for topic and returns a subscription id
// usable with Unsubscribe.
func (b *Bus) Subscribe(topic string, handler Handler) uint64 {
	id := atomic.AddUint64(&b.nextID, 1)

	b.mu.Lock()
	defer b.mu.Unlock()
	topicSubs, ok := b.subs[topic]
	if !ok {
		topicSubs = map[uint64]Handler{}
		b.subs[topic] = topicSubs
	}
	topicSubs[id] = handler
	b.idToTopic[id] = topic
	return id
}

// Unsubscribe removes a subscription by id. Returns whether a
// subscription was actually removed.
func (b *Bus) Unsubscribe(id uint64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	topic, ok := b.idToTopic[id]
	if !ok {
		return false
	}
	delete(b.idToTopic, id)

	topicSubs := b.subs[topic]
	if topicSubs == nil {
		return false
	}
	_, removed := topicSubs[id]
	delete(topicSubs, id)
	if len(topicSubs) == 0 {
		delete(b.subs, topic)
	}
	return removed
}

// SubscriberCount returns the number of live subscriptions on topic,
// for metrics exposition.
func (b *Bus) SubscriberCount(topic string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[topic])
}

// Publish delivers event to every current subscriber of topic,
// concurrently, and republishes onto the NATS bridge if configured.
// A handler error is logged, never returned — one bad subscriber must
// not block delivery to the rest.
func (b *Bus) Publish(ctx context.Context, topic string, event Event) {
	b.mu.RLock()
	handlers := make([]Handler, 0, len(b.subs[topic]))
	for _, h := range b.subs[topic] {
		handlers = append(handlers, h)
	}
	b.mu.RUnlock()

	if b.nats != nil {
		b.publishNATS(topic, event)
	}

	if len(handlers) == 0 {
		return
	}

	var wg sync.WaitGroup
	for _, h := range handlers {
		wg.Add(1)
		go func(h Handler) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					b.log.Printf("handler panic for topic %q: %v", topic, r)
				}
			}()
			if err := h(event); err != nil {
				b.log.Printf("handler failed for topic %q: %v", topic, err)
			}
		}(h)
	}
	wg.Wait()
}

func (b *Bus) publishNATS(topic string, event Event) {
	data, err := json.Marshal(event)
	if err != nil {
		b.log.Printf("NATS marshal error: %v", err)
		return
	}
	if err := b.nats.Publish(b.natsTopic+"."+topic, data); err != nil {
		b.log.Printf("NATS publish error: %v", err)
	}
}

// Close releases the NATS connection, if any.
func (b *Bus) Close() {
	if b.nats != nil {
		b.nats.Close()
	}
}
