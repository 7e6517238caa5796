package realtime

import (
	"encoding/json"
	"sync"

	"github.com/google/uuid"

	"github.com/projecthub-dev/projecthub/internal/logger"
)

type Client struct {
	ID     string
	UserID uuid.UUID
	Conn   *WebSocketConn
	Send   chan []byte

	rooms map[string]bool
}

// Room name helpers. Every connected client is implicitly in its user room.
func UserRoom(id uuid.UUID) string         { return "user:" + id.String() }
func ProjectRoom(id uuid.UUID) string      { return "project:" + id.String() }
func ConversationRoom(id uuid.UUID) string { return "conversation:" + id.String() }

// Hub is the connection registry: clients join named rooms and handlers
// publish to rooms. Delivery is fire-and-forget; a slow subscriber is
// dropped rather than blocked on.
type Hub struct {
	clients    map[string]*Client
	rooms      map[string]map[string]*Client
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
	mu         sync.RWMutex
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		rooms:      make(map[string]map[string]*Client),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
	}
}

func (h *Hub) RegisterClient(client *Client) {
	h.register <- client
}

func (h *Hub) UnregisterClient(client *Client) {
	h.unregister <- client
}

// Join adds the client to a named room.
func (h *Hub) Join(room string, client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[client.ID]; !ok {
		return
	}
	if h.rooms[room] == nil {
		h.rooms[room] = make(map[string]*Client)
	}
	h.rooms[room][client.ID] = client
	client.rooms[room] = true
}

// Leave removes the client from a named room.
func (h *Hub) Leave(room string, client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeFromRoom(room, client)
}

// caller holds h.mu
func (h *Hub) removeFromRoom(room string, client *Client) {
	if members, ok := h.rooms[room]; ok {
		delete(members, client.ID)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
	delete(client.rooms, room)
}

// Publish sends v to every member of room. Full send buffers are skipped.
func (h *Hub) Publish(room string, v interface{}) {
	payload, err := json.Marshal(v)
	if err != nil {
		logger.Errorf("hub: marshal publish payload: %v", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, client := range h.rooms[room] {
		select {
		case client.Send <- payload:
		default:
			// full buffer, drop for this subscriber
		}
	}
}

// SendToUser publishes to the user's private room.
func (h *Hub) SendToUser(userID uuid.UUID, v interface{}) {
	h.Publish(UserRoom(userID), v)
}

// BroadcastJSON sends v to every connected client.
func (h *Hub) BroadcastJSON(v interface{}) {
	b, err := json.Marshal(v)
	if err != nil {
		logger.Errorf("hub: marshal broadcast payload: %v", err)
		return
	}
	h.broadcast <- b
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.ID] = client
			if client.rooms == nil {
				client.rooms = make(map[string]bool)
			}
			if h.rooms[UserRoom(client.UserID)] == nil {
				h.rooms[UserRoom(client.UserID)] = make(map[string]*Client)
			}
			h.rooms[UserRoom(client.UserID)][client.ID] = client
			client.rooms[UserRoom(client.UserID)] = true
			h.mu.Unlock()
			logger.Debugf("hub: client registered: %s (user %s)", client.ID, client.UserID)

		case client := <-h.unregister:
			h.mu.Lock()
			if old, ok := h.clients[client.ID]; ok {
				for room := range old.rooms {
					h.removeFromRoom(room, old)
				}
				delete(h.clients, client.ID)
				close(old.Send)
				logger.Debugf("hub: client unregistered: %s", client.ID)
			}
			h.mu.Unlock()

		case message := <-h.broadcast:
			h.mu.Lock()
			for id, client := range h.clients {
				select {
				case client.Send <- message:
				default:
					for room := range client.rooms {
						h.removeFromRoom(room, client)
					}
					close(client.Send)
					delete(h.clients, id)
				}
			}
			h.mu.Unlock()
		}
	}
}
