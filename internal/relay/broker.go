// Package relay fans panel events out to streaming clients over SSE and
// WebSocket.
package relay

import (
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"
)

const subscriberBufSize = 256

// Event kinds published by the panel.
const (
	KindCaptured  = "captured"
	KindCleared   = "cleared"
	KindNavigated = "navigated"
	KindScanned   = "scanned"
	KindReplayed  = "replayed"
)

// Event is one message delivered to subscribers.
type Event struct {
	Kind    string          `json:"kind"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Broker fans out events to all subscribers.
type Broker struct {
	mu          sync.RWMutex
	subscribers map[int64]chan Event
	nextID      atomic.Int64
	dropped     atomic.Int64
}

// NewBroker creates an empty Broker.
func NewBroker() *Broker {
	return &Broker{
		subscribers: make(map[int64]chan Event),
	}
}

// Subscribe registers a new client. The returned channel is buffered; events
// are dropped for consumers that fall behind.
func (b *Broker) Subscribe() (int64, <-chan Event) {
	id := b.nextID.Add(1)
	ch := make(chan Event, subscriberBufSize)
	b.mu.Lock()
	b.subscribers[id] = ch
	b.mu.Unlock()
	return id, ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (b *Broker) Unsubscribe(id int64) {
	b.mu.Lock()
	ch, ok := b.subscribers[id]
	if ok {
		delete(b.subscribers, id)
		close(ch)
	}
	b.mu.Unlock()
}

// Publish encodes payload as JSON and sends it to every subscriber without
// blocking.
func (b *Broker) Publish(kind string, payload any) {
	evt := Event{Kind: kind}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			slog.Error("relay payload encode failed", "kind", kind, "error", err)
			return
		}
		evt.Payload = data
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subscribers {
		select {
		case ch <- evt:
		default:
			b.dropped.Add(1)
		}
	}
}

// ClientCount returns the number of active subscribers.
func (b *Broker) ClientCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

// Dropped returns how many deliveries were skipped because a subscriber was full.
func (b *Broker) Dropped() int64 {
	return b.dropped.Load()
}
