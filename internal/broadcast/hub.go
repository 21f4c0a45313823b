// Package broadcast fans encoded batches out to live subscribers.
package broadcast

import (
	"context"

	"go.uber.org/zap"
)

// Subscriber is one live consumer handle. Ready reports whether the handle
// is open; TrySend must not block, returning false when the message was
// skipped (closed handle or full buffer).
type Subscriber interface {
	Ready() bool
	TrySend(msg []byte) bool
}

// Hub holds the set of connected subscribers and delivers each batch at most
// once per subscriber, fire-and-forget. Subscribers that are not ready are
// silently skipped; there is no queueing, no retry, and no historical replay
// over this channel. A slow subscriber never blocks the others or the
// ingestion pipeline.
type Hub struct {
	register   chan Subscriber
	unregister chan Subscriber
	broadcast  chan []byte
	clients    map[Subscriber]struct{}
	done       chan struct{}
	log        *zap.Logger
}

func NewHub(log *zap.Logger) *Hub {
	return &Hub{
		register:   make(chan Subscriber),
		unregister: make(chan Subscriber),
		broadcast:  make(chan []byte, 256),
		clients:    make(map[Subscriber]struct{}),
		done:       make(chan struct{}),
		log:        log,
	}
}

// Run is the hub loop. It owns the client set; all mutation goes through the
// channels, so no locking is needed. Closing done on exit releases any
// Register/Unregister caller still in flight during shutdown.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			return

		case sub := <-h.register:
			h.clients[sub] = struct{}{}
			h.log.Info("subscriber connected", zap.Int("subscribers", len(h.clients)))

		case sub := <-h.unregister:
			if _, ok := h.clients[sub]; ok {
				delete(h.clients, sub)
				h.log.Info("subscriber disconnected", zap.Int("subscribers", len(h.clients)))
			}

		case msg := <-h.broadcast:
			for sub := range h.clients {
				if !sub.Ready() {
					continue
				}
				sub.TrySend(msg)
			}
		}
	}
}

// Register adds a subscriber. It starts receiving batches emitted after this
// point only. A no-op once the hub loop has stopped.
func (h *Hub) Register(sub Subscriber) {
	select {
	case h.register <- sub:
	case <-h.done:
	}
}

// Unregister removes a subscriber. A no-op once the hub loop has stopped.
func (h *Hub) Unregister(sub Subscriber) {
	select {
	case h.unregister <- sub:
	case <-h.done:
	}
}

// Broadcast queues one encoded batch for fan-out. If the hub's queue is full
// the batch is dropped rather than blocking the caller.
func (h *Hub) Broadcast(msg []byte) {
	select {
	case h.broadcast <- msg:
	default:
		h.log.Warn("broadcast queue full, dropping batch", zap.Int("bytes", len(msg)))
	}
}
