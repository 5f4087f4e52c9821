// Package protocol defines the batch exchange wire contract shared by
// the sync engine and the remote authority. Both sides speak only these
// types, even when deployed in a single process.
package protocol

import "time"

// Per-item outcome statuses returned by the remote authority.
const (
	StatusSuccess  = "success"
	StatusConflict = "conflict"
	StatusError    = "error"
)

// TaskPayload is the snapshot of task fields that travels with a sync
// operation. ID is the client-side task identifier; the remote assigns
// its own canonical identifier and reports it as ServerID.
type TaskPayload struct {
	ID          string    `json:"id"`
	ServerID    string    `json:"server_id,omitempty"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Completed   bool      `json:"completed"`
	IsDeleted   bool      `json:"is_deleted"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// BatchItem is one queued operation submitted to the remote authority.
type BatchItem struct {
	ID         string      `json:"id"`
	TaskID     string      `json:"task_id"`
	Operation  string      `json:"operation"`
	Data       TaskPayload `json:"data"`
	CreatedAt  time.Time   `json:"created_at"`
	RetryCount int         `json:"retry_count"`
}

type BatchRequest struct {
	Items           []BatchItem `json:"items"`
	ClientTimestamp time.Time   `json:"client_timestamp"`
}

// ProcessedItem is the remote's verdict on a single submitted item,
// matched to its request item by ClientID == BatchItem.TaskID.
type ProcessedItem struct {
	ClientID     string       `json:"client_id"`
	ServerID     string       `json:"server_id,omitempty"`
	Status       string       `json:"status"`
	ResolvedData *TaskPayload `json:"resolved_data,omitempty"`
	Error        string       `json:"error,omitempty"`
}

type BatchResponse struct {
	ProcessedItems []ProcessedItem `json:"processed_items"`
}
