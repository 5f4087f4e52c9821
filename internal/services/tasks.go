package services

import (
	"strconv"
	"time"

	"task-sync/backend/internal/models"
	"task-sync/backend/internal/protocol"
	"task-sync/backend/internal/queue"

	"github.com/gofrs/uuid"
	"gorm.io/gorm"
)

type TaskService interface {
	CreateTask(db *gorm.DB, task models.Task) error
	GetTaskByID(db *gorm.DB, id uuid.UUID) (models.Task, error)
	GetTasks(db *gorm.DB) ([]models.Task, error)
	GetTasksPaginated(db *gorm.DB, sortBy, order, page, pageSize string) ([]models.Task, int64, error)
	UpdateTask(db *gorm.DB, id uuid.UUID, updated models.Task) error
	DeleteTask(db *gorm.DB, id uuid.UUID) error
}

// TaskServiceImpl owns the record-store side of task mutations. Every
// mutation resets the task to pending and enqueues exactly one
// superseding sync operation for it.
type TaskServiceImpl struct {
	queue *queue.Queue
}

func NewTaskService(q *queue.Queue) *TaskServiceImpl {
	return &TaskServiceImpl{queue: q}
}

func (s *TaskServiceImpl) CreateTask(db *gorm.DB, task models.Task) error {
	now := time.Now()
	task.CreatedAt = now
	task.UpdatedAt = now
	task.SyncStatus = models.SyncStatusPending

	if err := db.Create(&task).Error; err != nil {
		return err
	}
	return s.queue.Enqueue(task.ID, models.OperationCreate, snapshotOf(task))
}

// GetTaskByID returns the task even when soft-deleted; deleted tasks
// stay addressable by id.
func (s *TaskServiceImpl) GetTaskByID(db *gorm.DB, id uuid.UUID) (models.Task, error) {
	var task models.Task
	err := db.First(&task, "id = ?", id).Error
	return task, err
}

func (s *TaskServiceImpl) GetTasks(db *gorm.DB) ([]models.Task, error) {
	var tasks []models.Task
	err := db.Where("is_deleted = ?", false).Find(&tasks).Error
	return tasks, err
}

func (s *TaskServiceImpl) GetTasksPaginated(db *gorm.DB, sortBy, order, page, pageSize string) ([]models.Task, int64, error) {
	limit, offset := paginationBounds(page, pageSize)

	if !isSortableColumn(sortBy) {
		sortBy = "created_at"
	}
	if order != "asc" {
		order = "desc"
	}

	base := db.Model(&models.Task{}).Where("is_deleted = ?", false)

	var total int64
	if err := base.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var tasks []models.Task
	err := base.Order(sortBy + " " + order).Limit(limit).Offset(offset).Find(&tasks).Error
	return tasks, total, err
}

func (s *TaskServiceImpl) UpdateTask(db *gorm.DB, id uuid.UUID, updated models.Task) error {
	var task models.Task
	if err := db.First(&task, "id = ?", id).Error; err != nil {
		return err
	}

	if updated.Title != "" {
		task.Title = updated.Title
	}
	task.Description = updated.Description
	task.Completed = updated.Completed
	task.UpdatedAt = time.Now()
	task.SyncStatus = models.SyncStatusPending

	if err := db.Save(&task).Error; err != nil {
		return err
	}
	return s.queue.Enqueue(task.ID, models.OperationUpdate, snapshotOf(task))
}

// DeleteTask is a soft delete: the record stays addressable, the
// deletion is a mutation that syncs like any other.
func (s *TaskServiceImpl) DeleteTask(db *gorm.DB, id uuid.UUID) error {
	var task models.Task
	if err := db.First(&task, "id = ?", id).Error; err != nil {
		return err
	}

	task.IsDeleted = true
	task.UpdatedAt = time.Now()
	task.SyncStatus = models.SyncStatusPending

	if err := db.Save(&task).Error; err != nil {
		return err
	}
	return s.queue.Enqueue(task.ID, models.OperationDelete, snapshotOf(task))
}

func snapshotOf(task models.Task) protocol.TaskPayload {
	return protocol.TaskPayload{
		ID:          task.ID.String(),
		ServerID:    task.ServerID,
		Title:       task.Title,
		Description: task.Description,
		Completed:   task.Completed,
		IsDeleted:   task.IsDeleted,
		CreatedAt:   task.CreatedAt,
		UpdatedAt:   task.UpdatedAt,
	}
}

func paginationBounds(page, pageSize string) (limit, offset int) {
	p := parsePositive(page, 1)
	size := parsePositive(pageSize, 10)
	if size > 100 {
		size = 100
	}
	return size, (p - 1) * size
}

func parsePositive(s string, fallback int) int {
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

func isSortableColumn(col string) bool {
	switch col {
	case "created_at", "updated_at", "title", "completed", "sync_status":
		return true
	}
	return false
}
