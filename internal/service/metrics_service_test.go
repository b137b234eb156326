package service

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsSnapshotAggregates(t *testing.T) {
	m := NewMetricsService()
	m.ObserveHTTPRequest("GET", "/files", 200, 10*time.Millisecond)
	m.ObserveHTTPRequest("GET", "/files", 200, 30*time.Millisecond)
	m.RecordTransition("forward")
	m.RecordTransition("forward")
	m.RecordNotification()
	m.RecordRealtime(3, 1)
	m.RecordEventDropped("queue_full")
	m.RecordReminderSweep("ok", 2)
	m.SetConnections(4)

	snap := m.Snapshot()
	assert.Equal(t, uint64(2), snap.RequestsTotal)
	assert.InDelta(t, 20.0, snap.AverageRequestDurationMs, 0.001)
	assert.Equal(t, uint64(2), snap.Transitions["forward"])
	assert.Equal(t, uint64(1), snap.NotificationsCreated)
	assert.Equal(t, uint64(3), snap.RealtimeDelivered)
	assert.Equal(t, uint64(1), snap.RealtimeDropped)
	assert.Equal(t, uint64(1), snap.EventsDropped)
	assert.Equal(t, uint64(1), snap.ReminderSweeps)
	assert.Equal(t, uint64(2), snap.RemindersSent)
	assert.Equal(t, 4, snap.ActiveConnections)
}

func TestMetricsHandlerExposesCollectors(t *testing.T) {
	m := NewMetricsService()
	m.RecordTransition("approve")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `docflow_file_transitions_total{transition="approve"} 1`)
}

func TestMetricsNilSafe(t *testing.T) {
	var m *MetricsService
	m.RecordTransition("approve")
	m.RecordRealtime(1, 1)
	assert.Equal(t, 0, m.Snapshot().ActiveConnections)
}
