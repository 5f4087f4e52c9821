// Package queue provides the durable operation queue feeding the batch
// sync engine. Exactly one pending operation exists per task: enqueueing
// a new operation supersedes any earlier one for the same task.
package queue

import (
	"encoding/json"
	"fmt"
	"log"
	"time"

	"task-sync/backend/internal/models"
	"task-sync/backend/internal/protocol"

	"github.com/gofrs/uuid"
	"gorm.io/gorm"
)

const DefaultRetryCeiling = 3

type Queue struct {
	db           *gorm.DB
	retryCeiling int
}

func New(db *gorm.DB, retryCeiling int) *Queue {
	if retryCeiling <= 0 {
		retryCeiling = DefaultRetryCeiling
	}
	return &Queue{db: db, retryCeiling: retryCeiling}
}

// Enqueue records a pending operation for the task, replacing any
// existing entry. Delete-then-insert runs in one transaction so two
// entries for the same task can never coexist, even transiently.
func (q *Queue) Enqueue(taskID uuid.UUID, operation string, snapshot protocol.TaskPayload) error {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	itemID, err := uuid.NewV4()
	if err != nil {
		return fmt.Errorf("failed to generate queue item ID: %w", err)
	}

	item := models.SyncQueueItem{
		ID:         itemID,
		TaskID:     taskID,
		Operation:  operation,
		Data:       data,
		CreatedAt:  time.Now(),
		RetryCount: 0,
	}

	err = q.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("task_id = ?", taskID).Delete(&models.SyncQueueItem{}).Error; err != nil {
			return err
		}
		return tx.Create(&item).Error
	})
	if err != nil {
		return fmt.Errorf("failed to enqueue %s for task %s: %w", operation, taskID, err)
	}

	log.Printf("[SyncQueue] Enqueued %s operation for task %s", operation, taskID)
	return nil
}

// Drain returns items still under the retry ceiling, oldest first.
// A limit of zero or less returns the whole eligible set, which the
// engine snapshots at cycle start before chunking into batches.
func (q *Queue) Drain(limit int) ([]models.SyncQueueItem, error) {
	var items []models.SyncQueueItem
	query := q.db.Where("retry_count < ?", q.retryCeiling).Order("created_at asc")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&items).Error; err != nil {
		return nil, fmt.Errorf("failed to drain sync queue: %w", err)
	}
	return items, nil
}

// MarkSynced removes the pending item for the task.
func (q *Queue) MarkSynced(taskID uuid.UUID) error {
	if err := q.db.Where("task_id = ?", taskID).Delete(&models.SyncQueueItem{}).Error; err != nil {
		return fmt.Errorf("failed to remove queue item for task %s: %w", taskID, err)
	}
	return nil
}

// MarkFailed increments the item's retry count and records the error,
// returning the new count. Items at the ceiling stay in the queue for
// inspection but are excluded from subsequent drains.
func (q *Queue) MarkFailed(itemID uuid.UUID, message string) (int, error) {
	var item models.SyncQueueItem
	err := q.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&item, "id = ?", itemID).Error; err != nil {
			return err
		}
		item.RetryCount++
		item.ErrorMessage = message
		return tx.Model(&models.SyncQueueItem{}).Where("id = ?", itemID).
			Updates(map[string]interface{}{
				"retry_count":   item.RetryCount,
				"error_message": message,
			}).Error
	})
	if err != nil {
		return 0, fmt.Errorf("failed to mark queue item %s failed: %w", itemID, err)
	}

	log.Printf("[SyncQueue] Item %s failed (attempt %d/%d): %s",
		itemID, item.RetryCount, q.retryCeiling, message)
	return item.RetryCount, nil
}

// PendingCount reports items still in the queue regardless of retry
// state, including terminally failed ones awaiting inspection.
func (q *Queue) PendingCount() (int64, error) {
	var count int64
	if err := q.db.Model(&models.SyncQueueItem{}).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count queue items: %w", err)
	}
	return count, nil
}

// RetryCeiling returns the configured maximum attempt count.
func (q *Queue) RetryCeiling() int {
	return q.retryCeiling
}
