package models

import (
	"time"

	"github.com/lib/pq"
)

// Notification is a persisted message addressed to a fixed set of users. The
// file fields are snapshots taken at creation time.
type Notification struct {
	ID           string         `db:"id" json:"id"`
	Recipients   pq.StringArray `db:"recipients" json:"recipients"`
	Title        string         `db:"title" json:"title"`
	Message      string         `db:"message" json:"message"`
	FileID       *string        `db:"file_id" json:"fileId,omitempty"`
	FileUniqueID *int64         `db:"file_unique_id" json:"fileUniqueId,omitempty"`
	FileName     *string        `db:"file_name" json:"fileName,omitempty"`
	Status       *string        `db:"status" json:"status,omitempty"`
	Remarks      *string        `db:"remarks" json:"remarks,omitempty"`
	CreatedBy    string         `db:"created_by" json:"createdBy"`
	ReadBy       pq.StringArray `db:"read_by" json:"readBy"`
	CreatedAt    time.Time      `db:"created_at" json:"createdAt"`
}

// IsUnreadFor reports whether the notification is still unread for userID.
func (n *Notification) IsUnreadFor(userID string) bool {
	if userID == "" || userID == n.CreatedBy {
		return false
	}
	if !containsString(n.Recipients, userID) {
		return false
	}
	return !containsString(n.ReadBy, userID)
}

// NotificationSnapshot copies the file fields a notification keeps.
func NotificationSnapshot(n *Notification, file *File) {
	if file == nil {
		return
	}
	id := file.ID
	uniqueID := file.UniqueID
	name := file.FileName
	status := string(file.Status)
	n.FileID = &id
	n.FileUniqueID = &uniqueID
	n.FileName = &name
	n.Status = &status
	if file.Remarks != "" {
		remarks := file.Remarks
		n.Remarks = &remarks
	}
}

func containsString(values []string, target string) bool {
	for _, v := range values {
		if v == target {
			return true
		}
	}
	return false
}
