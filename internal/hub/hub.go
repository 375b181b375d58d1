package hub

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	ws "github.com/classpoll/classpoll-backend/internal/websocket"
)

// Hub fans serialized event frames out to every connected client, or to a
// single targeted connection. Register and Unregister mutate the clients
// map synchronously under the lock, so a frame sent right after Register
// returns is guaranteed to reach the new client; the init snapshot push
// depends on that ordering.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client

	log zerolog.Logger
}

// New creates an empty Hub.
func New(log zerolog.Logger) *Hub {
	return &Hub{
		clients: make(map[string]*Client),
		log:     log.With().Str("component", "hub").Logger(),
	}
}

// Run blocks until ctx is cancelled, then closes every remaining client.
func (h *Hub) Run(ctx context.Context) {
	<-ctx.Done()
	h.mu.Lock()
	for id, c := range h.clients {
		delete(h.clients, id)
		close(c.send)
	}
	h.mu.Unlock()
	h.log.Info().Msg("Hub stopped")
}

// Register adds a client to the hub. The client is addressable by SendTo
// and Broadcast as soon as Register returns.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	h.clients[c.ID] = c
	total := len(h.clients)
	h.mu.Unlock()
	h.log.Debug().Str("conn_id", c.ID).Int("total", total).Msg("Client registered")
}

// Unregister removes a client and closes its send channel. Safe to call
// more than once for the same client.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c.ID]; ok {
		delete(h.clients, c.ID)
		close(c.send)
	}
	total := len(h.clients)
	h.mu.Unlock()
	h.log.Debug().Str("conn_id", c.ID).Int("total", total).Msg("Client unregistered")
}

// Count returns the number of connected clients.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast marshals the event once and fans the frame out to every
// client. A client whose send buffer is full is dropped rather than
// allowed to stall the rest of the class.
func (h *Hub) Broadcast(event ws.Event, payload interface{}) {
	frame, err := ws.Marshal(event, payload)
	if err != nil {
		h.log.Error().Err(err).Str("event", string(event)).Msg("Broadcast marshal failed")
		return
	}

	var slow []*Client
	h.mu.RLock()
	for _, c := range h.clients {
		select {
		case c.send <- frame:
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		h.log.Warn().Str("conn_id", c.ID).Str("event", string(event)).Msg("Dropping slow client")
		h.Unregister(c)
	}
}

// SendTo delivers one frame to a single connection, if still present.
func (h *Hub) SendTo(connID string, event ws.Event, payload interface{}) {
	frame, err := ws.Marshal(event, payload)
	if err != nil {
		h.log.Error().Err(err).Str("event", string(event)).Msg("Unicast marshal failed")
		return
	}

	h.mu.RLock()
	c, ok := h.clients[connID]
	h.mu.RUnlock()
	if !ok {
		return
	}

	select {
	case c.send <- frame:
	default:
		h.log.Warn().Str("conn_id", c.ID).Str("event", string(event)).Msg("Dropping slow client")
		h.Unregister(c)
	}
}
