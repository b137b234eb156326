package realtime

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/noah-isme/docflow-api/internal/models"
)

const maxInboundMessage = 4096

// Client is one live connection. Frames are queued on a bounded buffer and
// written by writePump.
type Client struct {
	UserID     string
	Role       models.UserRole
	Department models.Department

	conn      *websocket.Conn
	send      chan []byte
	closeOnce sync.Once
}

// NewClient builds a client for the authenticated identity. conn may be nil
// for in-process subscribers.
func NewClient(claims *models.JWTClaims, conn *websocket.Conn, buffer int) *Client {
	if buffer <= 0 {
		buffer = 32
	}
	return &Client{
		UserID:     claims.UserID,
		Role:       claims.Role,
		Department: claims.Department,
		conn:       conn,
		send:       make(chan []byte, buffer),
	}
}

// Rooms lists the rooms the client joins on registration.
func (c *Client) Rooms() []string {
	rooms := []string{UserKey(c.UserID)}
	if c.Role != "" {
		rooms = append(rooms, RoleKey(c.Role))
	}
	if c.Department != "" {
		rooms = append(rooms, DepartmentKey(c.Department))
		if c.Role != "" {
			rooms = append(rooms, RoleDepartmentKey(c.Role, c.Department))
		}
	}
	return rooms
}

// Messages exposes the outbound frames.
func (c *Client) Messages() <-chan []byte {
	return c.send
}

// enqueue never blocks; a full buffer drops the frame.
func (c *Client) enqueue(frame []byte) bool {
	select {
	case c.send <- frame:
		return true
	default:
		return false
	}
}

func (c *Client) close() {
	c.closeOnce.Do(func() {
		close(c.send)
	})
}

func (c *Client) writePump(pingInterval, writeTimeout time.Duration, logger *zap.Logger) {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case frame, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				logger.Debug("websocket write failed", zap.String("user_id", c.UserID), zap.Error(err))
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump drains inbound frames so control messages are processed, and
// unregisters the client once the peer goes away.
func (c *Client) readPump(hub *Hub, pongWait time.Duration) {
	defer func() {
		hub.Unregister(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxInboundMessage)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}
