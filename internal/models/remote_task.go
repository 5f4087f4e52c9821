package models

import (
	"time"

	"github.com/gofrs/uuid"
)

// RemoteTask is the remote authority's copy of a task. It lives in its
// own table and is only ever touched by the remote exchange; the sync
// engine reaches it exclusively through the batch wire contract.
// ClientID is the identifier the originating client knows the task by.
type RemoteTask struct {
	ID          uuid.UUID `json:"id" gorm:"primaryKey;type:uuid"`
	ClientID    uuid.UUID `json:"client_id" gorm:"type:uuid;uniqueIndex;not null"`
	Title       string    `json:"title" gorm:"not null"`
	Description string    `json:"description"`
	Completed   bool      `json:"completed" gorm:"not null;default:false"`
	IsDeleted   bool      `json:"is_deleted" gorm:"not null;default:false"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (RemoteTask) TableName() string {
	return "remote_tasks"
}
