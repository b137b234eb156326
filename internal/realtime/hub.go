package realtime

import (
	"encoding/json"
	"sync"

	"go.uber.org/zap"

	"github.com/noah-isme/docflow-api/internal/models"
)

type deliveryRecorder interface {
	RecordRealtime(delivered, dropped int)
	SetConnections(n int)
}

// Hub tracks live connections by room and by user. The most recent
// connection of a user wins the user entry; older ones stay in their rooms
// until they disconnect.
type Hub struct {
	mu          sync.RWMutex
	rooms       map[string]map[*Client]struct{}
	users       map[string]*Client
	connections int

	recorder deliveryRecorder
	logger   *zap.Logger
}

// HubOption customises a Hub.
type HubOption func(*Hub)

// WithRecorder reports delivery counts and connection totals.
func WithRecorder(recorder deliveryRecorder) HubOption {
	return func(h *Hub) {
		h.recorder = recorder
	}
}

// WithLogger sets the hub logger.
func WithLogger(logger *zap.Logger) HubOption {
	return func(h *Hub) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// NewHub constructs an empty hub.
func NewHub(opts ...HubOption) *Hub {
	h := &Hub{
		rooms:  make(map[string]map[*Client]struct{}),
		users:  make(map[string]*Client),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register joins the client to its rooms.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	for _, room := range c.Rooms() {
		members, ok := h.rooms[room]
		if !ok {
			members = make(map[*Client]struct{})
			h.rooms[room] = members
		}
		members[c] = struct{}{}
	}
	h.users[c.UserID] = c
	h.connections++
	count := h.connections
	h.mu.Unlock()

	h.logger.Debug("realtime client registered", zap.String("user_id", c.UserID), zap.String("role", string(c.Role)))
	if h.recorder != nil {
		h.recorder.SetConnections(count)
	}
}

// Unregister removes the client from every room and closes its buffer. The
// user entry is cleared only when it still points at this client.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	removed := false
	for _, room := range c.Rooms() {
		members, ok := h.rooms[room]
		if !ok {
			continue
		}
		if _, ok := members[c]; ok {
			delete(members, c)
			removed = true
		}
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
	if current, ok := h.users[c.UserID]; ok && current == c {
		delete(h.users, c.UserID)
	}
	if removed {
		h.connections--
		c.close()
	}
	count := h.connections
	h.mu.Unlock()

	if removed && h.recorder != nil {
		h.recorder.SetConnections(count)
	}
}

// Emit sends the event to every connection in the room and returns how many
// frames were queued.
func (h *Hub) Emit(key string, event models.EventName, payload interface{}) int {
	return h.EmitExcept(key, event, payload, "")
}

// EmitExcept is Emit skipping every connection of exceptUserID.
func (h *Hub) EmitExcept(key string, event models.EventName, payload interface{}, exceptUserID string) int {
	frame, err := json.Marshal(models.Envelope{Event: event, Data: payload})
	if err != nil {
		h.logger.Warn("encode realtime frame", zap.String("event", string(event)), zap.Error(err))
		return 0
	}

	delivered, dropped := 0, 0
	h.mu.RLock()
	for c := range h.rooms[key] {
		if exceptUserID != "" && c.UserID == exceptUserID {
			continue
		}
		if c.enqueue(frame) {
			delivered++
		} else {
			dropped++
		}
	}
	h.mu.RUnlock()

	if dropped > 0 {
		h.logger.Debug("realtime frames dropped", zap.String("room", key), zap.String("event", string(event)), zap.Int("dropped", dropped))
	}
	if h.recorder != nil {
		h.recorder.RecordRealtime(delivered, dropped)
	}
	return delivered
}

// Connected reports whether the user has a live connection.
func (h *Hub) Connected(userID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.users[userID]
	return ok
}

// ConnectionCount returns the number of registered connections.
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.connections
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	seen := make(map[*Client]struct{})
	for _, members := range h.rooms {
		for c := range members {
			seen[c] = struct{}{}
		}
	}
	h.rooms = make(map[string]map[*Client]struct{})
	h.users = make(map[string]*Client)
	h.connections = 0
	h.mu.Unlock()

	for c := range seen {
		c.close()
	}
	if h.recorder != nil {
		h.recorder.SetConnections(0)
	}
}
