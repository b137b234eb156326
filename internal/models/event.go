package models

import "time"

// EventName is the vocabulary shared by websocket clients and the event stream.
type EventName string

const (
	EventFileCreated     EventName = "file:created"
	EventFileUpdated     EventName = "file:updated"
	EventFileForwarded   EventName = "file:forwarded"
	EventFileReviewed    EventName = "file:reviewed"
	EventFileDeleted     EventName = "file:deleted"
	EventUserCreated     EventName = "user:created"
	EventUserUpdated     EventName = "user:updated"
	EventUserDeleted     EventName = "user:deleted"
	EventNotificationNew EventName = "notification:new"
	EventReminder        EventName = "reminder"
)

// Envelope is the frame written to websocket clients and Kafka.
type Envelope struct {
	Event EventName   `json:"event"`
	Data  interface{} `json:"data"`
}

// DeletedPayload is pushed when an entity is removed.
type DeletedPayload struct {
	ID string `json:"id"`
}

// ReminderPayload is pushed when a file's reminder comes due.
type ReminderPayload struct {
	FileID     string     `json:"fileId"`
	FileName   string     `json:"fileName"`
	DueDate    *time.Time `json:"dueDate,omitempty"`
	ReminderAt *time.Time `json:"reminderAt,omitempty"`
	UploadedBy string     `json:"uploadedBy"`
}

// Delivery addresses one event to users and raw channels. ExceptUserID is
// skipped on every channel.
type Delivery struct {
	Event        EventName
	Payload      interface{}
	Users        []string
	Channels     []string
	ExceptUserID string
	Key          string
}
