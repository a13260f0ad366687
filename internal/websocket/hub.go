package websocket

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/gofiber/contrib/websocket"
	"go.uber.org/zap"
)

// Conn is the part of a websocket connection the hub writes to.
type Conn interface {
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Client represents a connected WebSocket client
type Client struct {
	ID    string
	Conn  Conn
	Rooms map[string]bool
	mu    sync.Mutex
}

func NewClient(id string, conn Conn) *Client {
	return &Client{ID: id, Conn: conn, Rooms: make(map[string]bool)}
}

// Hub manages all WebSocket connections and rooms
type Hub struct {
	clients map[*Client]bool
	rooms   map[string]map[*Client]bool
	mu      sync.RWMutex
	log     *zap.Logger
}

// Message represents a WebSocket message
type Message struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
}

func NewHub(log *zap.Logger) *Hub {
	if log == nil {
		log = zap.NewNop()
	}
	return &Hub{
		clients: make(map[*Client]bool),
		rooms:   make(map[string]map[*Client]bool),
		log:     log,
	}
}

// Register adds a client to the hub
func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	h.clients[client] = true
	h.mu.Unlock()
	h.log.Debug("client registered", zap.String("client_id", client.ID))
}

// Unregister removes a client from the hub and closes its connection
func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client]; !ok {
		return
	}
	for roomID := range client.Rooms {
		h.removeFromRoom(client, roomID)
	}
	delete(h.clients, client)
	if client.Conn != nil {
		client.Conn.Close()
	}
	h.log.Debug("client unregistered", zap.String("client_id", client.ID))
}

// JoinRoom adds a client to a room
func (h *Hub) JoinRoom(client *Client, roomID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, exists := h.rooms[roomID]; !exists {
		h.rooms[roomID] = make(map[*Client]bool)
	}
	h.rooms[roomID][client] = true
	client.Rooms[roomID] = true
	h.log.Debug("client joined room", zap.String("client_id", client.ID), zap.String("room", roomID))
}

// LeaveRoom removes a client from a room
func (h *Hub) LeaveRoom(client *Client, roomID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeFromRoom(client, roomID)
	h.log.Debug("client left room", zap.String("client_id", client.ID), zap.String("room", roomID))
}

// removeFromRoom expects h.mu to be held.
func (h *Hub) removeFromRoom(client *Client, roomID string) {
	if room, exists := h.rooms[roomID]; exists {
		delete(room, client)
		if len(room) == 0 {
			delete(h.rooms, roomID)
		}
	}
	delete(client.Rooms, roomID)
}

// RoomSize returns how many clients are in a room.
func (h *Hub) RoomSize(roomID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[roomID])
}

// BroadcastToRoom sends a message to all clients in a room
func (h *Hub) BroadcastToRoom(roomID, event string, payload interface{}) {
	h.mu.RLock()
	room, exists := h.rooms[roomID]
	if !exists {
		h.mu.RUnlock()
		return
	}
	// Copy clients to avoid holding lock during send
	clients := make([]*Client, 0, len(room))
	for client := range room {
		clients = append(clients, client)
	}
	h.mu.RUnlock()

	data, err := encode(event, payload)
	if err != nil {
		h.log.Error("failed to marshal broadcast", zap.String("event", event), zap.Error(err))
		return
	}

	for _, client := range clients {
		if err := client.write(data); err != nil {
			h.log.Warn("failed to send broadcast", zap.String("client_id", client.ID), zap.Error(err))
		}
	}
}

// IsClientConnected checks if a client is still registered
func (h *Hub) IsClientConnected(client *Client) bool {
	if client == nil {
		return false
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, exists := h.clients[client]
	return exists
}

// SendToClient sends a message directly to a client
func (h *Hub) SendToClient(client *Client, event string, payload interface{}) error {
	if client == nil {
		return fmt.Errorf("client is nil")
	}
	data, err := encode(event, payload)
	if err != nil {
		return err
	}
	return client.write(data)
}

func (c *Client) write(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Conn == nil {
		return fmt.Errorf("connection is nil")
	}
	return c.Conn.WriteMessage(websocket.TextMessage, data)
}

func encode(event string, payload interface{}) ([]byte, error) {
	return json.Marshal(map[string]interface{}{
		"event":   event,
		"payload": payload,
	})
}
