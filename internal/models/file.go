package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// FileStatus is the workflow state of an uploaded file.
type FileStatus string

const (
	FileStatusSubmitted FileStatus = "submitted"
	FileStatusForwarded FileStatus = "forwarded"
	FileStatusReviewed  FileStatus = "reviewed"
	FileStatusApproved  FileStatus = "approved"
	FileStatusRejected  FileStatus = "rejected"
)

// Valid reports whether s is a known status.
func (s FileStatus) Valid() bool {
	switch s {
	case FileStatusSubmitted, FileStatusForwarded, FileStatusReviewed, FileStatusApproved, FileStatusRejected:
		return true
	}
	return false
}

// HistoryEntry records a single status change.
type HistoryEntry struct {
	Status        FileStatus `json:"status"`
	ChangedBy     string     `json:"changedBy"`
	ChangedByName string     `json:"changedByName,omitempty"`
	Remarks       string     `json:"remarks,omitempty"`
	Department    Department `json:"department,omitempty"`
	Date          time.Time  `json:"date"`
}

// FileHistory is the append-only audit trail stored as JSONB.
type FileHistory []HistoryEntry

// Value implements driver.Valuer.
func (h FileHistory) Value() (driver.Value, error) {
	if h == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(h)
}

// Scan implements sql.Scanner.
func (h *FileHistory) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*h = FileHistory{}
		return nil
	case []byte:
		return json.Unmarshal(v, h)
	case string:
		return json.Unmarshal([]byte(v), h)
	default:
		return fmt.Errorf("unsupported history type %T", src)
	}
}

// File is an uploaded document moving through the approval workflow.
type File struct {
	ID                   string      `db:"id" json:"id"`
	UniqueID             int64       `db:"unique_id" json:"uniqueId"`
	FileName             string      `db:"file_name" json:"fileName"`
	FileSize             int64       `db:"file_size" json:"fileSize"`
	FileType             string      `db:"file_type" json:"fileType"`
	StorageKey           string      `db:"storage_key" json:"-"`
	UploadedBy           string      `db:"uploaded_by" json:"uploadedBy"`
	UploaderName         string      `db:"uploader_name" json:"uploaderName,omitempty"`
	UploadedAt           time.Time   `db:"uploaded_at" json:"uploadedAt"`
	Status               FileStatus  `db:"status" json:"status"`
	Department           Department  `db:"department" json:"department"`
	ForwardedTo          *Department `db:"forwarded_to" json:"forwardedTo,omitempty"`
	FinalDecisionPending bool        `db:"final_decision_pending" json:"finalDecisionPending"`
	Remarks              string      `db:"remarks" json:"remarks"`
	DueDate              *time.Time  `db:"due_date" json:"dueDate,omitempty"`
	ReminderAt           *time.Time  `db:"reminder_at" json:"reminderAt,omitempty"`
	ReminderSent         bool        `db:"reminder_sent" json:"reminderSent"`
	History              FileHistory `db:"history" json:"history"`
	UpdatedAt            time.Time   `db:"updated_at" json:"updatedAt"`
}

// ForwardedDepartment returns the forward target or an empty department.
func (f *File) ForwardedDepartment() Department {
	if f.ForwardedTo == nil {
		return ""
	}
	return *f.ForwardedTo
}

// AppendHistory records a status change on the file.
func (f *File) AppendHistory(entry HistoryEntry) {
	f.History = append(f.History, entry)
}

// CheckInvariants verifies the forward bookkeeping matches the status.
func (f *File) CheckInvariants() error {
	forwarded := f.Status == FileStatusForwarded
	if (f.ForwardedTo != nil) != forwarded {
		return fmt.Errorf("file %s: forwardedTo set=%t with status %s", f.ID, f.ForwardedTo != nil, f.Status)
	}
	if f.FinalDecisionPending != forwarded {
		return fmt.Errorf("file %s: finalDecisionPending=%t with status %s", f.ID, f.FinalDecisionPending, f.Status)
	}
	if len(f.History) == 0 {
		return fmt.Errorf("file %s: empty history", f.ID)
	}
	return nil
}

// FileFilter scopes file listings.
type FileFilter struct {
	UploadedBy       string
	Department       Department
	IncludeForwarded bool
	Status           *FileStatus
	Page             int
	PageSize         int
}

// ReminderSuggestion is returned by the reminder suggestion endpoint.
type ReminderSuggestion struct {
	DueDate    time.Time `json:"dueDate"`
	ReminderAt time.Time `json:"reminderAt"`
}
