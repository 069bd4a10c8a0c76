package realtime

import (
	"time"

	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	maxMsgSize = 4096
)

// WebSocketConn wraps websocket.Conn so hub.go stays transport free.
type WebSocketConn struct {
	Conn *websocket.Conn
}

func NewWebSocketConn(c *websocket.Conn) *WebSocketConn {
	return &WebSocketConn{Conn: c}
}

// Serve registers a client for userID and pumps queued events to c until
// either side closes. It blocks for the lifetime of the connection.
func (h *Hub) Serve(c *websocket.Conn, userID uuid.UUID) {
	client := NewClient(userID, NewWebSocketConn(c))
	h.Register(client)
	defer h.Unregister(client)

	h.log.Info("ws connected", "user_id", userID, "client_id", client.ID)

	done := make(chan struct{})
	go func() {
		defer close(done)
		h.writePump(client)
	}()

	c.SetReadLimit(maxMsgSize)
	_ = c.SetReadDeadline(time.Now().Add(pongWait))
	c.SetPongHandler(func(string) error {
		return c.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.Warn("ws read error", "user_id", userID, "err", err)
			}
			break
		}
		// inbound frames only keep the connection alive
		_ = c.SetReadDeadline(time.Now().Add(pongWait))
	}

	h.Unregister(client)
	<-done
	h.log.Info("ws disconnected", "user_id", userID, "client_id", client.ID)
}

func (h *Hub) writePump(client *Client) {
	conn := client.Conn.Conn
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = conn.Close()
	}()

	for {
		select {
		case msg, ok := <-client.Send:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				h.log.Warn("ws write error", "user_id", client.UserID, "err", err)
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
