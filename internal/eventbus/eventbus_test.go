package eventbus

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishDeliversToAllSubscribers(t *testing.T) {
	b := New("")
	var mu sync.Mutex
	var got []Event

	b.Subscribe("scene.change", func(e Event) error {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, e)
		return nil
	})
	b.Subscribe("scene.change", func(e Event) error {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, e)
		return nil
	})

	b.Publish(context.Background(), "scene.change", Event{"camera": "front-door"})

	mu.Lock()
	defer mu.Unlock()
	assert.Len(t, got, 2)
}

func TestPublishIgnoresUnrelatedTopics(t *testing.T) {
	b := New("")
	fired := false
	b.Subscribe("alerts", func(e Event) error {
		fired = true
		return nil
	})

	b.Publish(context.Background(), "scene.change", Event{})
	assert.False(t, fired)
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	b := New("")
	fired := false
	id := b.Subscribe("alerts", func(e Event) error {
		fired = true
		return nil
	})

	removed := b.Unsubscribe(id)
	require.True(t, removed)

	b.Publish(context.Background(), "alerts", Event{})
	assert.False(t, fired)
}

func TestUnsubscribeUnknownIDReturnsFalse(t *testing.T) {
	b := New("")
	assert.False(t, b.Unsubscribe(9999))
}

func TestSubscriberCountReflectsActiveSubs(t *testing.T) {
	b := New("")
	assert.Equal(t, 0, b.SubscriberCount("alerts"))
	id1 := b.Subscribe("alerts", func(Event) error { return nil })
	b.Subscribe("alerts", func(Event) error { return nil })
	assert.Equal(t, 2, b.SubscriberCount("alerts"))

	b.Unsubscribe(id1)
	assert.Equal(t, 1, b.SubscriberCount("alerts"))
}

func TestPublishSurvivesHandlerPanic(t *testing.T) {
	b := New("")
	var mu sync.Mutex
	secondCalled := false

	b.Subscribe("alerts", func(Event) error {
		panic("boom")
	})
	b.Subscribe("alerts", func(Event) error {
		mu.Lock()
		defer mu.Unlock()
		secondCalled = true
		return nil
	})

	assert.NotPanics(t, func() {
		b.Publish(context.Background(), "alerts", Event{})
	})

	mu.Lock()
	defer mu.Unlock()
	assert.True(t, secondCalled)
}

func TestNewWithInvalidNATSURLDisablesBridgeWithoutError(t *testing.T) {
	b := New("nats://127.0.0.1:1")
	assert.Nil(t, b.nats)
}
