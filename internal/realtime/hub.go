package realtime

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

const sendBuffer = 256

type Client struct {
	ID     string
	UserID uuid.UUID
	Conn   *WebSocketConn
	Send   chan []byte
}

func NewClient(userID uuid.UUID, conn *WebSocketConn) *Client {
	return &Client{
		ID:     uuid.NewString(),
		UserID: userID,
		Conn:   conn,
		Send:   make(chan []byte, sendBuffer),
	}
}

// Hub tracks the websocket clients of this process, keyed by user.
type Hub struct {
	mu      sync.RWMutex
	clients map[uuid.UUID]map[string]*Client
	log     *slog.Logger
}

func NewHub(log *slog.Logger) *Hub {
	if log == nil {
		log = slog.Default()
	}
	return &Hub{
		clients: make(map[uuid.UUID]map[string]*Client),
		log:     log,
	}
}

func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	byID, ok := h.clients[client.UserID]
	if !ok {
		byID = make(map[string]*Client)
		h.clients[client.UserID] = byID
	}
	byID[client.ID] = client
	h.log.Debug("ws client registered", "client_id", client.ID, "user_id", client.UserID)
}

// Unregister removes client and closes its Send channel. Calling it twice is safe.
func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	byID, ok := h.clients[client.UserID]
	if !ok {
		return
	}
	if old, ok := byID[client.ID]; ok {
		delete(byID, client.ID)
		close(old.Send)
		h.log.Debug("ws client unregistered", "client_id", client.ID, "user_id", client.UserID)
	}
	if len(byID) == 0 {
		delete(h.clients, client.UserID)
	}
}

// SendToUser queues payload on every client of userID without blocking.
// Clients with a full buffer miss the message. It returns how many clients
// accepted it.
func (h *Hub) SendToUser(userID uuid.UUID, payload []byte) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	delivered := 0
	for _, client := range h.clients[userID] {
		select {
		case client.Send <- payload:
			delivered++
		default:
			h.log.Warn("ws send buffer full, dropping message", "client_id", client.ID, "user_id", userID)
		}
	}
	return delivered
}

// Notify implements Notifier for a single process.
func (h *Hub) Notify(_ context.Context, userID uuid.UUID, ev Event) error {
	payload, err := encode(ev)
	if err != nil {
		return err
	}
	h.SendToUser(userID, payload)
	return nil
}

func (h *Hub) ClientCount(userID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID])
}
