package ws

import (
	"encoding/json"
	"sync"

	"github.com/rs/zerolog/log"

	"chat-relay/internal/observability"
)

// Hub maintains the set of live clients and the per-group broadcast rooms.
// Delivery goes through each client's bounded send queue; a client that cannot
// keep up is dropped so fan-out never stalls on one slow connection.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client
	rooms   map[int]map[*Client]bool
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		clients: make(map[string]*Client),
		rooms:   make(map[int]map[*Client]bool),
	}
}

// Register adds a connected client.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c.id] = c
	observability.IncWSActive()
}

// Unregister removes the client from the hub and every room, and closes its
// send queue. Safe to call more than once.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.dropLocked(c)
}

func (h *Hub) dropLocked(c *Client) {
	if _, ok := h.clients[c.id]; !ok {
		return
	}
	delete(h.clients, c.id)
	for groupID, room := range h.rooms {
		if room[c] {
			delete(room, c)
			if len(room) == 0 {
				delete(h.rooms, groupID)
			}
		}
	}
	close(c.send)
	observability.DecWSActive()
}

// HasClient reports whether a connection id is still live.
func (h *Hub) HasClient(connID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.clients[connID]
	return ok
}

// Client looks up a live client by connection id.
func (h *Hub) Client(connID string) (*Client, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	c, ok := h.clients[connID]
	return c, ok
}

// JoinRoom subscribes a client to a group's channel.
func (h *Hub) JoinRoom(groupID int, c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c.id]; !ok {
		return
	}
	if _, ok := h.rooms[groupID]; !ok {
		h.rooms[groupID] = make(map[*Client]bool)
	}
	h.rooms[groupID][c] = true
}

// LeaveRoom unsubscribes a client from a group's channel.
func (h *Hub) LeaveRoom(groupID int, c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if room, ok := h.rooms[groupID]; ok {
		delete(room, c)
		if len(room) == 0 {
			delete(h.rooms, groupID)
		}
	}
}

// DropRoom removes a group's channel entirely, e.g. after group deletion.
func (h *Hub) DropRoom(groupID int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.rooms, groupID)
}

// Send delivers one event to a single client.
func (h *Hub) Send(c *Client, event Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Str("event", event.Type).Msg("marshal event")
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.enqueueLocked(c, payload)
}

// BroadcastAll fans an event out to every connected client.
func (h *Hub) BroadcastAll(event Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Str("event", event.Type).Msg("marshal event")
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for _, c := range h.clients {
		h.enqueueLocked(c, payload)
	}
	observability.IncWSEvent(event.Type)
}

// BroadcastRoom fans an event out to the group's subscribed clients only.
func (h *Hub) BroadcastRoom(groupID int, event Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Str("event", event.Type).Msg("marshal event")
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.rooms[groupID] {
		h.enqueueLocked(c, payload)
	}
	observability.IncWSEvent(event.Type)
}

// enqueueLocked queues a payload without blocking; overflow drops the client.
// An enqueue to a just-dropped client is discarded, not retried.
func (h *Hub) enqueueLocked(c *Client, payload []byte) {
	if _, ok := h.clients[c.id]; !ok {
		return
	}
	select {
	case c.send <- payload:
	default:
		log.Warn().Str("conn_id", c.id).Msg("send queue full, dropping client")
		observability.IncWSEvent("queue_overflow")
		h.dropLocked(c)
	}
}

// RoomSize reports the number of subscribed clients, for tests and debugging.
func (h *Hub) RoomSize(groupID int) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[groupID])
}
