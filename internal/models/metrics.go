package models

import "time"

// MetricsSnapshot summarises in-process counters for the admin dashboard.
type MetricsSnapshot struct {
	RequestsTotal            uint64            `json:"requestsTotal"`
	AverageRequestDurationMs float64           `json:"averageRequestDurationMs"`
	Transitions              map[string]uint64 `json:"transitions"`
	NotificationsCreated     uint64            `json:"notificationsCreated"`
	RealtimeDelivered        uint64            `json:"realtimeDelivered"`
	RealtimeDropped          uint64            `json:"realtimeDropped"`
	EventsDropped            uint64            `json:"eventsDropped"`
	ReminderSweeps           uint64            `json:"reminderSweeps"`
	RemindersSent            uint64            `json:"remindersSent"`
	ActiveConnections        int               `json:"activeConnections"`
	Goroutines               int               `json:"goroutines"`
	GeneratedAt              time.Time         `json:"generatedAt"`
}
