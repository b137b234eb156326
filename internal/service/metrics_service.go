package service

import (
	"fmt"
	"net/http"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noah-isme/docflow-api/internal/models"
)

// MetricsService encapsulates Prometheus instrumentation and provides lightweight snapshots for API consumption.
type MetricsService struct {
	registry          *prometheus.Registry
	handler           http.Handler
	requestDuration   *prometheus.HistogramVec
	requestTotal      *prometheus.CounterVec
	transitions       *prometheus.CounterVec
	notifications     prometheus.Counter
	realtimeDelivered prometheus.Counter
	realtimeDropped   prometheus.Counter
	eventsDropped     *prometheus.CounterVec
	reminderSweeps    *prometheus.CounterVec
	remindersSent     prometheus.Counter
	connections       prometheus.Gauge

	requestCount         uint64
	requestDurationTotal uint64
	notificationCount    uint64
	deliveredCount       uint64
	droppedCount         uint64
	eventsDroppedCount   uint64
	sweepCount           uint64
	reminderCount        uint64
	connectionCount      int64

	mu              sync.Mutex
	transitionCount map[string]uint64
}

// NewMetricsService registers core Prometheus collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "docflow_file_transitions_total",
		Help: "File lifecycle transitions by kind",
	}, []string{"transition"})

	notifications := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "docflow_notifications_created_total",
		Help: "Persisted notifications",
	})

	realtimeDelivered := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "docflow_realtime_delivered_total",
		Help: "Websocket frames queued for delivery",
	})

	realtimeDropped := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "docflow_realtime_dropped_total",
		Help: "Websocket frames dropped because a client buffer was full",
	})

	eventsDropped := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "docflow_events_dropped_total",
		Help: "Lifecycle events that could not be mirrored to the event stream",
	}, []string{"reason"})

	reminderSweeps := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "docflow_reminder_sweeps_total",
		Help: "Reminder sweeps by outcome",
	}, []string{"outcome"})

	remindersSent := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "docflow_reminders_sent_total",
		Help: "Reminders delivered",
	})

	connections := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "docflow_realtime_connections",
		Help: "Open websocket connections",
	})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, transitions, notifications, realtimeDelivered, realtimeDropped, eventsDropped, reminderSweeps, remindersSent, connections, goroutines)

	handler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})

	return &MetricsService{
		registry:          registry,
		handler:           handler,
		requestDuration:   requestDuration,
		requestTotal:      requestTotal,
		transitions:       transitions,
		notifications:     notifications,
		realtimeDelivered: realtimeDelivered,
		realtimeDropped:   realtimeDropped,
		eventsDropped:     eventsDropped,
		reminderSweeps:    reminderSweeps,
		remindersSent:     remindersSent,
		connections:       connections,
		transitionCount:   make(map[string]uint64),
	}
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveHTTPRequest records request metrics and aggregates simple stats for snapshots.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
	atomic.AddUint64(&m.requestCount, 1)
	atomic.AddUint64(&m.requestDurationTotal, uint64(duration.Nanoseconds()))
}

// RecordTransition counts a committed lifecycle transition.
func (m *MetricsService) RecordTransition(transition string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(transition).Inc()
	m.mu.Lock()
	m.transitionCount[transition]++
	m.mu.Unlock()
}

// RecordNotification counts a persisted notification.
func (m *MetricsService) RecordNotification() {
	if m == nil {
		return
	}
	m.notifications.Inc()
	atomic.AddUint64(&m.notificationCount, 1)
}

// RecordRealtime counts frames queued and dropped by the hub.
func (m *MetricsService) RecordRealtime(delivered, dropped int) {
	if m == nil {
		return
	}
	if delivered > 0 {
		m.realtimeDelivered.Add(float64(delivered))
		atomic.AddUint64(&m.deliveredCount, uint64(delivered))
	}
	if dropped > 0 {
		m.realtimeDropped.Add(float64(dropped))
		atomic.AddUint64(&m.droppedCount, uint64(dropped))
	}
}

// RecordEventDropped counts an event that missed the outbound stream.
func (m *MetricsService) RecordEventDropped(reason string) {
	if m == nil {
		return
	}
	m.eventsDropped.WithLabelValues(reason).Inc()
	atomic.AddUint64(&m.eventsDroppedCount, 1)
}

// RecordReminderSweep counts one sweep and the reminders it sent.
func (m *MetricsService) RecordReminderSweep(outcome string, sent int) {
	if m == nil {
		return
	}
	m.reminderSweeps.WithLabelValues(outcome).Inc()
	atomic.AddUint64(&m.sweepCount, 1)
	if sent > 0 {
		m.remindersSent.Add(float64(sent))
		atomic.AddUint64(&m.reminderCount, uint64(sent))
	}
}

// SetConnections publishes the number of open websocket connections.
func (m *MetricsService) SetConnections(n int) {
	if m == nil {
		return
	}
	m.connections.Set(float64(n))
	atomic.StoreInt64(&m.connectionCount, int64(n))
}

// Snapshot returns aggregated metrics suitable for the admin endpoint.
func (m *MetricsService) Snapshot() models.MetricsSnapshot {
	if m == nil {
		return models.MetricsSnapshot{}
	}
	requests := atomic.LoadUint64(&m.requestCount)
	reqDuration := atomic.LoadUint64(&m.requestDurationTotal)

	var avgRequestMs float64
	if requests > 0 {
		avgRequestMs = float64(reqDuration) / float64(requests) / float64(time.Millisecond)
	}

	m.mu.Lock()
	transitions := make(map[string]uint64, len(m.transitionCount))
	for k, v := range m.transitionCount {
		transitions[k] = v
	}
	m.mu.Unlock()

	return models.MetricsSnapshot{
		RequestsTotal:            requests,
		AverageRequestDurationMs: avgRequestMs,
		Transitions:              transitions,
		NotificationsCreated:     atomic.LoadUint64(&m.notificationCount),
		RealtimeDelivered:        atomic.LoadUint64(&m.deliveredCount),
		RealtimeDropped:          atomic.LoadUint64(&m.droppedCount),
		EventsDropped:            atomic.LoadUint64(&m.eventsDroppedCount),
		ReminderSweeps:           atomic.LoadUint64(&m.sweepCount),
		RemindersSent:            atomic.LoadUint64(&m.reminderCount),
		ActiveConnections:        int(atomic.LoadInt64(&m.connectionCount)),
		Goroutines:               runtime.NumGoroutine(),
		GeneratedAt:              time.Now().UTC(),
	}
}
