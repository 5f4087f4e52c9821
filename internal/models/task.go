package models

import (
	"time"

	"github.com/gofrs/uuid"
)

// Sync status values for Task.SyncStatus.
const (
	SyncStatusPending = "pending"
	SyncStatusSynced  = "synced"
	SyncStatusError   = "error"
)

type Task struct {
	ID          uuid.UUID `json:"id" gorm:"primaryKey;type:uuid"`
	UserID      uuid.UUID `json:"user_id" gorm:"type:uuid;index"`
	Title       string    `json:"title" gorm:"not null"`
	Description string    `json:"description"`
	Completed   bool      `json:"completed" gorm:"not null;default:false"`
	IsDeleted   bool      `json:"is_deleted" gorm:"not null;default:false;index"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	// Synchronization bookkeeping. SyncStatus drops back to pending on
	// every local mutation until a sync cycle resolves it. ServerID is
	// assigned by the remote authority on the first successful sync and
	// may differ from the local ID.
	SyncStatus   string     `json:"sync_status" gorm:"not null;default:'pending';index"`
	ServerID     string     `json:"server_id,omitempty"`
	LastSyncedAt *time.Time `json:"last_synced_at,omitempty"`
}
