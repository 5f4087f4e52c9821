package models

import (
	"time"

	"github.com/gofrs/uuid"
)

// Sync queue operation types.
const (
	OperationCreate = "create"
	OperationUpdate = "update"
	OperationDelete = "delete"
)

// SyncQueueItem is one pending synchronization intent. The unique index
// on TaskID enforces the queue invariant: at most one item per task.
type SyncQueueItem struct {
	ID           uuid.UUID `json:"id" gorm:"primaryKey;type:uuid"`
	TaskID       uuid.UUID `json:"task_id" gorm:"type:uuid;uniqueIndex;not null"`
	Operation    string    `json:"operation" gorm:"not null"`
	Data         []byte    `json:"data"`
	CreatedAt    time.Time `json:"created_at" gorm:"index"`
	RetryCount   int       `json:"retry_count" gorm:"not null;default:0"`
	ErrorMessage string    `json:"error_message,omitempty"`
}

func (SyncQueueItem) TableName() string {
	return "sync_queue"
}
