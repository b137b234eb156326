package realtime

import (
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/docflow-api/internal/models"
)

type recorderStub struct {
	mu          sync.Mutex
	delivered   int
	dropped     int
	connections int
}

func (r *recorderStub) RecordRealtime(delivered, dropped int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.delivered += delivered
	r.dropped += dropped
}

func (r *recorderStub) SetConnections(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.connections = n
}

func newTestClient(id string, role models.UserRole, dept models.Department, buffer int) *Client {
	return NewClient(&models.JWTClaims{UserID: id, Role: role, Department: dept}, nil, buffer)
}

func readEnvelope(t *testing.T, c *Client) models.Envelope {
	t.Helper()
	select {
	case frame := <-c.Messages():
		var env models.Envelope
		require.NoError(t, json.Unmarshal(frame, &env))
		return env
	default:
		t.Fatalf("no frame queued for %s", c.UserID)
		return models.Envelope{}
	}
}

func TestClientRooms(t *testing.T) {
	c := newTestClient("po1", models.RoleProgramOfficer, models.DepartmentFin, 1)
	assert.Equal(t, []string{"user:po1", "role:program_officer", "department:Fin", "role:program_officer:department:Fin"}, c.Rooms())

	admin := newTestClient("a1", models.RoleAdmin, "", 1)
	assert.Equal(t, []string{"user:a1", "role:admin"}, admin.Rooms())
}

func TestHubEmitReachesRoomMembers(t *testing.T) {
	rec := &recorderStub{}
	hub := NewHub(WithRecorder(rec))
	po := newTestClient("po1", models.RoleProgramOfficer, models.DepartmentCS, 4)
	other := newTestClient("po2", models.RoleProgramOfficer, models.DepartmentSE, 4)
	hub.Register(po)
	hub.Register(other)

	n := hub.Emit(RoleDepartmentKey(models.RoleProgramOfficer, models.DepartmentCS), models.EventReminder, map[string]string{"fileId": "f1"})
	assert.Equal(t, 1, n)

	env := readEnvelope(t, po)
	assert.Equal(t, models.EventReminder, env.Event)
	assert.Len(t, other.Messages(), 0)
	assert.Equal(t, 1, rec.delivered)
	assert.Equal(t, 2, rec.connections)
}

func TestHubEmitExceptSkipsEveryConnectionOfUser(t *testing.T) {
	hub := NewHub()
	first := newTestClient("a1", models.RoleAdmin, "", 4)
	second := newTestClient("a1", models.RoleAdmin, "", 4)
	peer := newTestClient("a2", models.RoleAdmin, "", 4)
	hub.Register(first)
	hub.Register(second)
	hub.Register(peer)

	n := hub.EmitExcept(RoleKey(models.RoleAdmin), models.EventUserCreated, map[string]string{"id": "u1"}, "a1")
	assert.Equal(t, 1, n)
	assert.Len(t, first.Messages(), 0)
	assert.Len(t, second.Messages(), 0)
	assert.Len(t, peer.Messages(), 1)
}

func TestHubDropsWhenBufferFull(t *testing.T) {
	rec := &recorderStub{}
	hub := NewHub(WithRecorder(rec))
	c := newTestClient("u1", models.RoleStudent, models.DepartmentCS, 1)
	hub.Register(c)

	assert.Equal(t, 1, hub.Emit(UserKey("u1"), models.EventNotificationNew, nil))
	assert.Equal(t, 0, hub.Emit(UserKey("u1"), models.EventNotificationNew, nil))
	assert.Equal(t, 1, rec.dropped)
}

func TestHubLastConnectionWinsUserEntry(t *testing.T) {
	hub := NewHub()
	old := newTestClient("u1", models.RoleStudent, models.DepartmentCS, 2)
	fresh := newTestClient("u1", models.RoleStudent, models.DepartmentCS, 2)
	hub.Register(old)
	hub.Register(fresh)

	hub.Unregister(old)
	assert.True(t, hub.Connected("u1"))
	assert.Equal(t, 1, hub.ConnectionCount())

	_, open := <-old.Messages()
	assert.False(t, open)

	assert.Equal(t, 1, hub.Emit(UserKey("u1"), models.EventFileCreated, nil))

	hub.Unregister(fresh)
	assert.False(t, hub.Connected("u1"))
	assert.Equal(t, 0, hub.ConnectionCount())
}

func TestHubUnregisterTwiceIsSafe(t *testing.T) {
	hub := NewHub()
	c := newTestClient("u1", models.RoleStudent, models.DepartmentCS, 1)
	hub.Register(c)
	hub.Unregister(c)
	hub.Unregister(c)
	assert.Equal(t, 0, hub.ConnectionCount())
}

func TestHubEmitToEmptyRoom(t *testing.T) {
	hub := NewHub()
	assert.Equal(t, 0, hub.Emit(UserKey("nobody"), models.EventFileDeleted, models.DeletedPayload{ID: "f1"}))
}

func TestHubConcurrentEmitAndUnregister(t *testing.T) {
	hub := NewHub()
	clients := make([]*Client, 20)
	for i := range clients {
		clients[i] = newTestClient("u", models.RoleStudent, models.DepartmentCS, 8)
		hub.Register(clients[i])
	}

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			hub.Emit(DepartmentKey(models.DepartmentCS), models.EventFileUpdated, nil)
		}()
	}
	for _, c := range clients {
		wg.Add(1)
		go func(c *Client) {
			defer wg.Done()
			hub.Unregister(c)
		}(c)
	}
	wg.Wait()
	assert.Equal(t, 0, hub.ConnectionCount())
}
