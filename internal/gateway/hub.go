package gateway

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// roomRequest binds or unbinds a connection to a conversation room.
type roomRequest struct {
	client         *Client
	conversationID uuid.UUID
	join           bool
}

// Hub tracks live connections and their room bindings. A room is the set of
// connections currently bound to one conversation. Fan-out is per-connection
// and non-blocking: a slow consumer's buffer fills and drops, it never
// stalls the rest of the room.
type Hub struct {
	mu sync.RWMutex

	// clients maps connection id to client (for cleanup)
	clients map[string]*Client

	// rooms maps conversation id to the set of bound connections
	rooms map[uuid.UUID]map[*Client]struct{}

	// bindings is the reverse index used for cleanup on disconnect
	bindings map[*Client]map[uuid.UUID]struct{}

	register   chan *Client
	unregister chan *Client
	binding    chan roomRequest

	logger *WSLogger
}

func NewHub(logger *WSLogger) *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		rooms:      make(map[uuid.UUID]map[*Client]struct{}),
		bindings:   make(map[*Client]map[uuid.UUID]struct{}),
		register:   make(chan *Client, 256),
		unregister: make(chan *Client, 256),
		binding:    make(chan roomRequest, 512),
		logger:     logger,
	}
}

// Run starts the hub's event loop.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case client := <-h.register:
			h.addClient(client)
		case client := <-h.unregister:
			h.removeClient(client)
		case req := <-h.binding:
			if req.join {
				h.bind(req.client, req.conversationID)
			} else {
				h.unbind(req.client, req.conversationID)
			}
		}
	}
}

func (h *Hub) Register(client *Client) {
	h.register <- client
}

func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}

// Join binds the connection to the conversation room. Authorization happens
// before this is called; the hub only tracks membership.
func (h *Hub) Join(client *Client, conversationID uuid.UUID) {
	h.binding <- roomRequest{client: client, conversationID: conversationID, join: true}
}

// Leave unbinds; idempotent.
func (h *Hub) Leave(client *Client, conversationID uuid.UUID) {
	h.binding <- roomRequest{client: client, conversationID: conversationID, join: false}
}

// BroadcastRoom fans the payload out to every connection bound to the room
// and returns how many connections it was queued to.
func (h *Hub) BroadcastRoom(conversationID uuid.UUID, payload []byte) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	n := 0
	for c := range h.rooms[conversationID] {
		if c.queue(payload) {
			n++
		}
	}
	return n
}

// BroadcastRoomExcept fans out to the room, suppressing every connection
// owned by the given participant (typing updates exclude their originator).
func (h *Hub) BroadcastRoomExcept(conversationID, exceptParticipant uuid.UUID, payload []byte) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	n := 0
	for c := range h.rooms[conversationID] {
		if c.participantID == exceptParticipant {
			continue
		}
		if c.queue(payload) {
			n++
		}
	}
	return n
}

// CountRoomExcept reports how many bound connections belong to participants
// other than the given one.
func (h *Hub) CountRoomExcept(conversationID, exceptParticipant uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	n := 0
	for c := range h.rooms[conversationID] {
		if c.participantID != exceptParticipant {
			n++
		}
	}
	return n
}

func (h *Hub) addClient(client *Client) {
	h.mu.Lock()
	h.clients[client.id] = client
	h.mu.Unlock()

	if h.logger != nil {
		h.logger.Info("client connected", client.participantID, client.id)
	}

	go client.writePump()
	go client.readPump()
}

func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	if _, ok := h.clients[client.id]; !ok {
		h.mu.Unlock()
		return
	}
	for conversationID := range h.bindings[client] {
		if members, ok := h.rooms[conversationID]; ok {
			delete(members, client)
			if len(members) == 0 {
				delete(h.rooms, conversationID)
			}
		}
	}
	delete(h.bindings, client)
	delete(h.clients, client.id)
	close(client.send)
	h.mu.Unlock()

	if h.logger != nil {
		h.logger.Info("client disconnected", client.participantID, client.id)
	}
}

func (h *Hub) bind(client *Client, conversationID uuid.UUID) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client.id]; !ok {
		return
	}
	if _, ok := h.rooms[conversationID]; !ok {
		h.rooms[conversationID] = make(map[*Client]struct{})
	}
	h.rooms[conversationID][client] = struct{}{}
	if _, ok := h.bindings[client]; !ok {
		h.bindings[client] = make(map[uuid.UUID]struct{})
	}
	h.bindings[client][conversationID] = struct{}{}
}

func (h *Hub) unbind(client *Client, conversationID uuid.UUID) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if members, ok := h.rooms[conversationID]; ok {
		delete(members, client)
		if len(members) == 0 {
			delete(h.rooms, conversationID)
		}
	}
	delete(h.bindings[client], conversationID)
}
