// Package hub streams device and timeline events to browsers over
// server-sent events.
package hub

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"lanwatch/internal/service"
)

const keepAliveInterval = 30 * time.Second

// client is one connected SSE stream.
type client struct {
	id     string
	events chan []byte
}

// Hub fans service events out to connected SSE clients. Slow clients
// skip messages rather than stalling the rest.
type Hub struct {
	bus *service.EventBus
	log zerolog.Logger

	mu      sync.RWMutex
	clients map[*client]struct{}
}

// New creates a hub reading from bus.
func New(bus *service.EventBus, log zerolog.Logger) *Hub {
	return &Hub{
		bus:     bus,
		log:     log.With().Str("component", "hub").Logger(),
		clients: make(map[*client]struct{}),
	}
}

// Run pumps bus events to all clients until ctx is cancelled or the bus
// closes.
func (h *Hub) Run(ctx context.Context) {
	sub := h.bus.Subscribe()
	defer sub.Close()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-sub.C():
			if !ok {
				return
			}
			h.fanOut(event)
		}
	}
}

func (h *Hub) fanOut(event service.Event) {
	payload, err := json.Marshal(event.Payload)
	if err != nil {
		h.log.Error().Err(err).Msg("failed to encode event")
		return
	}
	msg := []byte(fmt.Sprintf("event: %s\ndata: %s\n\n", event.Type, payload))

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		select {
		case c.events <- msg:
		default:
			h.log.Debug().Str("client", c.id).Msg("slow sse client, skipping message")
		}
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) add(c *client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	total := len(h.clients)
	h.mu.Unlock()
	h.log.Debug().Str("client", c.id).Int("total", total).Msg("sse client connected")
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	delete(h.clients, c)
	total := len(h.clients)
	h.mu.Unlock()
	h.log.Debug().Str("client", c.id).Int("total", total).Msg("sse client disconnected")
}

// ServeHTTP upgrades the request to an SSE stream and relays events
// until the client disconnects.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	c := &client{
		id:     uuid.NewString(),
		events: make(chan []byte, 64),
	}
	h.add(c)
	defer h.remove(c)

	fmt.Fprint(w, ": connected\n\n")
	flusher.Flush()

	ticker := time.NewTicker(keepAliveInterval)
	defer ticker.Stop()

	for {
		select {
		case msg := <-c.events:
			if _, err := w.Write(msg); err != nil {
				return
			}
			flusher.Flush()
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": keepalive\n\n"); err != nil {
				return
			}
			flusher.Flush()
		case <-r.Context().Done():
			return
		}
	}
}
