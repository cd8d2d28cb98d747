// Package realtime fans queue snapshots out to live viewer connections.
package realtime

import (
	"context"
	"encoding/json"
	"log"
	"sync"

	"campus-queue-backend/internal/snapshot"
)

// sendBuffer is the per-subscriber queue depth. A subscriber that falls this
// far behind starts losing intermediate snapshots, which is harmless since
// every snapshot is full state.
const sendBuffer = 64

// Subscriber is one live viewer connection. The transport (websocket writer,
// test harness) drains Send; the channel is closed on unsubscribe.
type Subscriber struct {
	Send chan []byte

	closeOnce sync.Once
}

func newSubscriber() *Subscriber {
	return &Subscriber{Send: make(chan []byte, sendBuffer)}
}

func (s *Subscriber) close() {
	s.closeOnce.Do(func() { close(s.Send) })
}

// Hub maintains subscription topics keyed by queue id and pushes a freshly
// built snapshot to every subscriber of a queue after each mutation. It only
// ever reads domain state through the snapshot builder.
type Hub struct {
	builder *snapshot.Builder

	mu     sync.RWMutex
	topics map[int64]map[*Subscriber]struct{}
}

// NewHub creates a hub over the given snapshot builder.
func NewHub(builder *snapshot.Builder) *Hub {
	return &Hub{
		builder: builder,
		topics:  make(map[int64]map[*Subscriber]struct{}),
	}
}

// Subscribe registers a new subscriber for the queue and immediately queues
// the current snapshot on it, so a viewer that joins between mutations does
// not wait for the next one to learn the state.
//
// Render and registration happen under the write lock: a Publish racing with
// Subscribe either waits and then delivers to the new subscriber, or has
// already run and its state is part of the initial snapshot. Without this a
// mutation committing mid-subscribe would be invisible until the next one.
func (h *Hub) Subscribe(ctx context.Context, queueID int64) (*Subscriber, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	payload, err := h.render(ctx, queueID)
	if err != nil {
		return nil, err
	}

	sub := newSubscriber()
	sub.Send <- payload

	topic, ok := h.topics[queueID]
	if !ok {
		topic = make(map[*Subscriber]struct{})
		h.topics[queueID] = topic
	}
	topic[sub] = struct{}{}

	return sub, nil
}

// Unsubscribe removes the subscriber and closes its channel. Calling it for
// a subscriber that is already gone is a no-op.
func (h *Hub) Unsubscribe(queueID int64, sub *Subscriber) {
	h.mu.Lock()
	if topic, ok := h.topics[queueID]; ok {
		if _, member := topic[sub]; member {
			delete(topic, sub)
			if len(topic) == 0 {
				delete(h.topics, queueID)
			}
		}
	}
	h.mu.Unlock()

	sub.close()
}

// Publish rebuilds the queue's snapshot and delivers it to every current
// subscriber. Delivery is best-effort per connection: a full send buffer
// drops this snapshot for that subscriber only, and never blocks the caller
// or the other subscribers. The mutation that triggered the publish has
// already committed.
func (h *Hub) Publish(ctx context.Context, queueID int64) {
	h.mu.RLock()
	empty := len(h.topics[queueID]) == 0
	h.mu.RUnlock()
	if empty {
		return
	}

	payload, err := h.render(ctx, queueID)
	if err != nil {
		log.Printf("realtime: failed to build snapshot for queue %d: %v", queueID, err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for sub := range h.topics[queueID] {
		select {
		case sub.Send <- payload:
		default:
			log.Printf("realtime: dropping snapshot for slow subscriber on queue %d", queueID)
		}
	}
}

// SubscriberCount reports the number of live subscribers for a queue.
func (h *Hub) SubscriberCount(queueID int64) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.topics[queueID])
}

func (h *Hub) render(ctx context.Context, queueID int64) ([]byte, error) {
	snap, err := h.builder.Build(ctx, queueID)
	if err != nil {
		return nil, err
	}
	return json.Marshal(snap)
}
