package broadcast

import (
	"context"
	"sync"

	"github.com/dj-oyu/motionglyph/internal/logger"
)

// DefaultBuffer is the per-subscriber queue length.
const DefaultBuffer = 16

// Hub fans pre-serialized events out to subscribers. Sends never block;
// a subscriber whose queue is full misses the event.
type Hub struct {
	mu      sync.Mutex
	clients map[int]chan *SerializedEvent
	nextID  int
	buffer  int
	dropped uint64
	closed  bool
}

// NewHub creates a hub with the given per-subscriber buffer.
func NewHub(buffer int) *Hub {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	return &Hub{
		clients: make(map[int]chan *SerializedEvent),
		buffer:  buffer,
	}
}

// Subscribe adds a new client and returns a channel for receiving events.
// The channel is closed by Unsubscribe or Close.
func (h *Hub) Subscribe() (int, <-chan *SerializedEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()

	id := h.nextID
	h.nextID++
	ch := make(chan *SerializedEvent, h.buffer)
	if h.closed {
		close(ch)
		return id, ch
	}
	h.clients[id] = ch

	logger.Debug("Hub", "Client #%d subscribed (total clients: %d)", id, len(h.clients))
	return id, ch
}

// Unsubscribe removes a client.
func (h *Hub) Unsubscribe(id int) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if ch, ok := h.clients[id]; ok {
		close(ch)
		delete(h.clients, id)
		logger.Debug("Hub", "Client #%d unsubscribed (remaining clients: %d)", id, len(h.clients))
	}
}

// ClientCount returns the number of subscribers.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Dropped returns how many deliveries were skipped for slow subscribers.
func (h *Hub) Dropped() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.dropped
}

// Publish serializes ev once and broadcasts it.
func (h *Hub) Publish(_ context.Context, ev Event) error {
	se, err := Serialize(ev)
	if err != nil {
		return err
	}
	h.Broadcast(se)
	return nil
}

// Broadcast delivers an already serialized event.
func (h *Hub) Broadcast(se *SerializedEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for id, ch := range h.clients {
		select {
		case ch <- se:
		default:
			h.dropped++
			logger.Debug("Hub", "Client #%d too slow, skipping %s event", id, se.Type)
		}
	}
}

// Close disconnects every subscriber. Later subscriptions get a closed channel.
func (h *Hub) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil
	}
	h.closed = true
	for id, ch := range h.clients {
		close(ch)
		delete(h.clients, id)
	}
	return nil
}
