package services_test

import (
	"encoding/json"
	"testing"
	"time"

	"task-sync/backend/internal/models"
	"task-sync/backend/internal/protocol"
	"task-sync/backend/internal/queue"
	"task-sync/backend/internal/services"

	"github.com/gofrs/uuid"
	"github.com/stretchr/testify/suite"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type TaskServiceTestSuite struct {
	suite.Suite
	db      *gorm.DB
	service services.TaskService
}

func (suite *TaskServiceTestSuite) SetupTest() {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	suite.Require().NoError(err)
	suite.Require().NoError(db.AutoMigrate(&models.Task{}, &models.SyncQueueItem{}))

	suite.db = db
	suite.service = services.NewTaskService(queue.New(db, queue.DefaultRetryCeiling))
}

func (suite *TaskServiceTestSuite) newTask(title string) models.Task {
	return models.Task{
		ID:     uuid.Must(uuid.NewV4()),
		UserID: uuid.Must(uuid.NewV4()),
		Title:  title,
	}
}

func (suite *TaskServiceTestSuite) queuedItem(taskID uuid.UUID) models.SyncQueueItem {
	var item models.SyncQueueItem
	suite.Require().NoError(suite.db.First(&item, "task_id = ?", taskID).Error)
	return item
}

func (suite *TaskServiceTestSuite) TestCreateTaskEnqueuesCreate() {
	task := suite.newTask("New Task")
	suite.NoError(suite.service.CreateTask(suite.db, task))

	stored, err := suite.service.GetTaskByID(suite.db, task.ID)
	suite.NoError(err)
	suite.Equal(models.SyncStatusPending, stored.SyncStatus)

	item := suite.queuedItem(task.ID)
	suite.Equal(models.OperationCreate, item.Operation)

	var payload protocol.TaskPayload
	suite.NoError(json.Unmarshal(item.Data, &payload))
	suite.Equal("New Task", payload.Title)
	suite.Equal(task.ID.String(), payload.ID)
}

func (suite *TaskServiceTestSuite) TestUpdateTaskSupersedesQueuedCreate() {
	task := suite.newTask("Original")
	suite.NoError(suite.service.CreateTask(suite.db, task))

	suite.NoError(suite.service.UpdateTask(suite.db, task.ID, models.Task{Title: "Edited"}))

	var count int64
	suite.NoError(suite.db.Model(&models.SyncQueueItem{}).Where("task_id = ?", task.ID).Count(&count).Error)
	suite.Equal(int64(1), count, "second mutation replaces the queued item")

	item := suite.queuedItem(task.ID)
	suite.Equal(models.OperationUpdate, item.Operation)

	var payload protocol.TaskPayload
	suite.NoError(json.Unmarshal(item.Data, &payload))
	suite.Equal("Edited", payload.Title, "queue carries the latest snapshot")
}

func (suite *TaskServiceTestSuite) TestUpdateTaskBumpsModificationTime() {
	task := suite.newTask("Original")
	suite.NoError(suite.service.CreateTask(suite.db, task))

	before, err := suite.service.GetTaskByID(suite.db, task.ID)
	suite.Require().NoError(err)

	time.Sleep(5 * time.Millisecond)
	suite.NoError(suite.service.UpdateTask(suite.db, task.ID, models.Task{Title: "Edited"}))

	after, err := suite.service.GetTaskByID(suite.db, task.ID)
	suite.NoError(err)
	suite.True(after.UpdatedAt.After(before.UpdatedAt))
	suite.Equal(models.SyncStatusPending, after.SyncStatus)
}

func (suite *TaskServiceTestSuite) TestUpdateUnknownTask() {
	err := suite.service.UpdateTask(suite.db, uuid.Must(uuid.NewV4()), models.Task{Title: "Ghost"})
	suite.ErrorIs(err, gorm.ErrRecordNotFound)
}

func (suite *TaskServiceTestSuite) TestDeleteTaskIsSoft() {
	task := suite.newTask("Doomed")
	suite.NoError(suite.service.CreateTask(suite.db, task))

	suite.NoError(suite.service.DeleteTask(suite.db, task.ID))

	// Still addressable by id.
	stored, err := suite.service.GetTaskByID(suite.db, task.ID)
	suite.NoError(err)
	suite.True(stored.IsDeleted)
	suite.Equal(models.SyncStatusPending, stored.SyncStatus)

	// Gone from listings.
	tasks, err := suite.service.GetTasks(suite.db)
	suite.NoError(err)
	suite.Empty(tasks)

	item := suite.queuedItem(task.ID)
	suite.Equal(models.OperationDelete, item.Operation)

	var payload protocol.TaskPayload
	suite.NoError(json.Unmarshal(item.Data, &payload))
	suite.True(payload.IsDeleted, "deletion travels in the snapshot")
}

func (suite *TaskServiceTestSuite) TestGetTasksPaginated() {
	for i := 0; i < 15; i++ {
		suite.NoError(suite.service.CreateTask(suite.db, suite.newTask("Task")))
	}

	tasks, total, err := suite.service.GetTasksPaginated(suite.db, "created_at", "asc", "1", "10")
	suite.NoError(err)
	suite.Equal(int64(15), total)
	suite.Len(tasks, 10)

	tasks, total, err = suite.service.GetTasksPaginated(suite.db, "created_at", "asc", "2", "10")
	suite.NoError(err)
	suite.Equal(int64(15), total)
	suite.Len(tasks, 5)
}

func (suite *TaskServiceTestSuite) TestGetTasksPaginatedRejectsUnknownSortColumn() {
	suite.NoError(suite.service.CreateTask(suite.db, suite.newTask("Task")))

	_, _, err := suite.service.GetTasksPaginated(suite.db, "title; DROP TABLE tasks", "asc", "1", "10")
	suite.NoError(err, "unknown sort columns fall back to created_at")
}

func TestTaskServiceTestSuite(t *testing.T) {
	suite.Run(t, new(TaskServiceTestSuite))
}
