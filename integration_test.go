package main

import (
	"context"
	"os"
	"testing"

	"task-sync/backend/internal/config"
	"task-sync/backend/internal/engine"
	"task-sync/backend/internal/models"
	"task-sync/backend/internal/queue"
	"task-sync/backend/internal/remote"
	"task-sync/backend/internal/repositories"
	"task-sync/backend/internal/services"

	"github.com/gofrs/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func TestApplicationStartup(t *testing.T) {
	os.Setenv("ENVIRONMENT", "development")
	os.Setenv("DB_HOST", "localhost")
	os.Setenv("REDIS_HOST", "localhost")
	defer func() {
		os.Unsetenv("ENVIRONMENT")
		os.Unsetenv("DB_HOST")
		os.Unsetenv("REDIS_HOST")
	}()

	cfg, err := config.LoadConfig()
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg == nil {
		t.Fatal("Configuration should not be nil")
	}

	if cfg.Sync.BatchSize != 50 {
		t.Errorf("Expected default sync batch size 50, got %d", cfg.Sync.BatchSize)
	}
}

// Exercises the full local loop: a task mutation queues an operation,
// a sync cycle against the in-process exchange drains it, and the task
// comes back synced with a server-assigned identifier.
func TestEndToEndSyncCycle(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	if err := repositories.Migrate(db); err != nil {
		t.Fatalf("Failed to migrate: %v", err)
	}

	opQueue := queue.New(db, queue.DefaultRetryCeiling)
	taskService := services.NewTaskService(opQueue)
	eng := engine.New(engine.Config{BatchSize: 50, RetryCeiling: 3},
		services.NewSyncTaskStore(db), opQueue,
		remote.NewLocalExchange(remote.NewExchange(db)))

	task := models.Task{
		ID:     uuid.Must(uuid.NewV4()),
		UserID: uuid.Must(uuid.NewV4()),
		Title:  "End to End",
	}
	if err := taskService.CreateTask(db, task); err != nil {
		t.Fatalf("Failed to create task: %v", err)
	}

	report, err := eng.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("Sync cycle failed: %v", err)
	}

	if !report.Success || report.SyncedItems != 1 {
		t.Fatalf("Expected 1 synced item, got %+v", report)
	}

	synced, err := taskService.GetTaskByID(db, task.ID)
	if err != nil {
		t.Fatalf("Failed to reload task: %v", err)
	}

	if synced.SyncStatus != models.SyncStatusSynced {
		t.Errorf("Expected sync status synced, got '%s'", synced.SyncStatus)
	}

	if synced.ServerID == "" {
		t.Error("Expected a server-assigned identifier")
	}

	var remoteCount int64
	if err := db.Model(&models.RemoteTask{}).Count(&remoteCount).Error; err != nil {
		t.Fatalf("Failed to count remote tasks: %v", err)
	}
	if remoteCount != 1 {
		t.Errorf("Expected 1 remote record, got %d", remoteCount)
	}

	// Edit, delete, sync again: the remote copy ends up soft-deleted.
	if err := taskService.UpdateTask(db, task.ID, models.Task{Title: "Edited"}); err != nil {
		t.Fatalf("Failed to update task: %v", err)
	}
	if err := taskService.DeleteTask(db, task.ID); err != nil {
		t.Fatalf("Failed to delete task: %v", err)
	}

	report, err = eng.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("Second sync cycle failed: %v", err)
	}
	if !report.Success {
		t.Fatalf("Expected clean second cycle, got %+v", report)
	}

	var remoteTask models.RemoteTask
	if err := db.First(&remoteTask, "client_id = ?", task.ID).Error; err != nil {
		t.Fatalf("Failed to load remote task: %v", err)
	}
	if !remoteTask.IsDeleted {
		t.Error("Expected remote record soft-deleted after delete sync")
	}
}
