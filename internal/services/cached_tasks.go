package services

import (
	"fmt"
	"time"

	"task-sync/backend/internal/cache"
	"task-sync/backend/internal/models"

	"github.com/gofrs/uuid"
	"gorm.io/gorm"
)

// CachedTaskService wraps a TaskService with a redis read cache. Writes
// go straight through and invalidate the affected entries; a sync cycle
// rewriting task state invalidates via InvalidateTask.
type CachedTaskService struct {
	taskService TaskService
	cache       *cache.RedisCache
}

func NewCachedTaskService(taskService TaskService, cacheInstance *cache.RedisCache) *CachedTaskService {
	return &CachedTaskService{
		taskService: taskService,
		cache:       cacheInstance,
	}
}

func (s *CachedTaskService) CreateTask(db *gorm.DB, task models.Task) error {
	if err := s.taskService.CreateTask(db, task); err != nil {
		return err
	}
	s.invalidateListings()
	return nil
}

func (s *CachedTaskService) GetTaskByID(db *gorm.DB, id uuid.UUID) (models.Task, error) {
	cacheKey := taskCacheKey(id)

	var cachedTask models.Task
	if err := s.cache.Get(cacheKey, &cachedTask); err == nil {
		return cachedTask, nil
	}

	task, err := s.taskService.GetTaskByID(db, id)
	if err != nil {
		return task, err
	}

	s.cache.Set(cacheKey, task, 30*time.Minute)
	return task, nil
}

func (s *CachedTaskService) GetTasks(db *gorm.DB) ([]models.Task, error) {
	cacheKey := "all_tasks"

	var cachedTasks []models.Task
	if err := s.cache.Get(cacheKey, &cachedTasks); err == nil {
		return cachedTasks, nil
	}

	tasks, err := s.taskService.GetTasks(db)
	if err != nil {
		return tasks, err
	}

	s.cache.Set(cacheKey, tasks, 10*time.Minute)
	return tasks, nil
}

func (s *CachedTaskService) GetTasksPaginated(db *gorm.DB, sortBy, order, page, pageSize string) ([]models.Task, int64, error) {
	cacheKey := fmt.Sprintf("tasks_paginated:%s:%s:%s:%s", sortBy, order, page, pageSize)

	var cachedResult struct {
		Tasks []models.Task `json:"tasks"`
		Total int64         `json:"total"`
	}
	if err := s.cache.Get(cacheKey, &cachedResult); err == nil {
		return cachedResult.Tasks, cachedResult.Total, nil
	}

	tasks, total, err := s.taskService.GetTasksPaginated(db, sortBy, order, page, pageSize)
	if err != nil {
		return tasks, total, err
	}

	cachedResult.Tasks = tasks
	cachedResult.Total = total
	s.cache.Set(cacheKey, cachedResult, 5*time.Minute)

	return tasks, total, nil
}

func (s *CachedTaskService) UpdateTask(db *gorm.DB, id uuid.UUID, updated models.Task) error {
	if err := s.taskService.UpdateTask(db, id, updated); err != nil {
		return err
	}
	s.InvalidateTask(id)
	return nil
}

func (s *CachedTaskService) DeleteTask(db *gorm.DB, id uuid.UUID) error {
	if err := s.taskService.DeleteTask(db, id); err != nil {
		return err
	}
	s.InvalidateTask(id)
	return nil
}

// InvalidateTask drops the cached entry for one task plus the listing
// caches.
func (s *CachedTaskService) InvalidateTask(id uuid.UUID) {
	s.cache.Delete(taskCacheKey(id))
	s.invalidateListings()
}

// InvalidateAll drops every cached task entry. Called after a sync
// cycle commits resolved state so reads never serve stale sync_status.
func (s *CachedTaskService) InvalidateAll() {
	s.cache.DeletePattern("task:*")
	s.invalidateListings()
}

func (s *CachedTaskService) invalidateListings() {
	s.cache.DeletePattern("tasks_paginated:*")
	s.cache.Delete("all_tasks")
}

func (s *CachedTaskService) GetCacheStats() map[string]interface{} {
	return s.cache.Stats()
}

func taskCacheKey(id uuid.UUID) string {
	return fmt.Sprintf("task:%s", id.String())
}
