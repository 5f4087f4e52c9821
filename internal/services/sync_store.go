package services

import (
	"time"

	"task-sync/backend/internal/models"

	"github.com/gofrs/uuid"
	"gorm.io/gorm"
)

// SyncTaskStore is the narrow record-store view handed to the sync
// engine: lookup by id and committed field updates, nothing else.
type SyncTaskStore struct {
	db *gorm.DB
}

func NewSyncTaskStore(db *gorm.DB) *SyncTaskStore {
	return &SyncTaskStore{db: db}
}

func (s *SyncTaskStore) GetTask(id uuid.UUID) (*models.Task, error) {
	var task models.Task
	if err := s.db.First(&task, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &task, nil
}

// UpdateTaskFields commits the given fields in one write and returns
// the committed row. The identity field is never writable here.
func (s *SyncTaskStore) UpdateTaskFields(id uuid.UUID, fields map[string]interface{}) (*models.Task, error) {
	delete(fields, "id")

	// UpdateColumns keeps gorm from auto-bumping updated_at: it is the
	// conflict-resolution ordering key and only moves when a committed
	// snapshot says so.
	result := s.db.Model(&models.Task{}).Where("id = ?", id).UpdateColumns(fields)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, gorm.ErrRecordNotFound
	}

	var task models.Task
	if err := s.db.First(&task, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &task, nil
}

// LastSyncedAt returns the most recent successful sync time across all
// synced tasks, or nil when nothing has synced yet.
func (s *SyncTaskStore) LastSyncedAt() (*time.Time, error) {
	var task models.Task
	err := s.db.Where("sync_status = ? AND last_synced_at IS NOT NULL", models.SyncStatusSynced).
		Order("last_synced_at desc").First(&task).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return task.LastSyncedAt, nil
}
