// Package engine drains the operation queue in bounded batches, submits
// them to the remote authority and applies the per-item outcomes,
// resolving conflicts last-write-wins and bounding retries.
package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"task-sync/backend/internal/conflict"
	"task-sync/backend/internal/models"
	"task-sync/backend/internal/protocol"

	"github.com/gofrs/uuid"
	"gorm.io/gorm"
)

// ErrRemoteUnavailable reports a failed connectivity probe. The cycle
// is skipped entirely and no retry budget is consumed.
var ErrRemoteUnavailable = errors.New("remote authority unreachable")

// TaskStore is the narrow record-store contract the engine consumes.
type TaskStore interface {
	GetTask(id uuid.UUID) (*models.Task, error)
	UpdateTaskFields(id uuid.UUID, fields map[string]interface{}) (*models.Task, error)
	LastSyncedAt() (*time.Time, error)
}

// OperationQueue is the durable queue contract the engine drains.
type OperationQueue interface {
	Drain(limit int) ([]models.SyncQueueItem, error)
	MarkSynced(taskID uuid.UUID) error
	MarkFailed(itemID uuid.UUID, message string) (int, error)
	PendingCount() (int64, error)
}

// Exchange is the protocol boundary to the remote authority.
type Exchange interface {
	SendBatch(ctx context.Context, req protocol.BatchRequest) (*protocol.BatchResponse, error)
	Ping(ctx context.Context) error
}

type Config struct {
	BatchSize           int
	RemoteEndpoint      string
	RetryCeiling        int
	ConnectivityTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		BatchSize:           50,
		RetryCeiling:        3,
		ConnectivityTimeout: 5 * time.Second,
	}
}

// SyncError is one structured failure entry in a cycle report.
type SyncError struct {
	TaskID    string    `json:"task_id"`
	Operation string    `json:"operation"`
	Error     string    `json:"error"`
	Timestamp time.Time `json:"timestamp"`
}

// Report aggregates the outcome of one sync cycle. A resolved conflict
// counts as both a conflict and a synced item; Success means no item
// failed.
type Report struct {
	Success     bool        `json:"success"`
	SyncedItems int         `json:"synced_items"`
	FailedItems int         `json:"failed_items"`
	Conflicts   int         `json:"conflicts"`
	Errors      []SyncError `json:"errors"`
}

// Status is the engine's queue/sync progress summary.
type Status struct {
	Pending  int64      `json:"pending"`
	LastSync *time.Time `json:"lastSync"`
}

type Engine struct {
	cfg      Config
	store    TaskStore
	queue    OperationQueue
	exchange Exchange

	// Serializes cycles so retry bookkeeping for a task is only ever
	// touched by one writer at a time.
	mu sync.Mutex
}

func New(cfg Config, store TaskStore, q OperationQueue, exchange Exchange) *Engine {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultConfig().BatchSize
	}
	if cfg.RetryCeiling <= 0 {
		cfg.RetryCeiling = DefaultConfig().RetryCeiling
	}
	if cfg.ConnectivityTimeout <= 0 {
		cfg.ConnectivityTimeout = DefaultConfig().ConnectivityTimeout
	}
	return &Engine{cfg: cfg, store: store, queue: q, exchange: exchange}
}

// Connected probes reachability of the remote authority, bounded by the
// configured connectivity timeout.
func (e *Engine) Connected(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, e.cfg.ConnectivityTimeout)
	defer cancel()
	return e.exchange.Ping(ctx) == nil
}

// RunCycle executes one full sync cycle. Item and batch failures are
// aggregated into the report, never raised as errors; the only error
// return is ErrRemoteUnavailable when the connectivity probe fails.
func (e *Engine) RunCycle(ctx context.Context) (*Report, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.Connected(ctx) {
		log.Printf("[SyncEngine] Remote unreachable, skipping cycle")
		return nil, ErrRemoteUnavailable
	}

	report := &Report{Errors: []SyncError{}}

	// Snapshot the eligible set once so items that fail mid-cycle are
	// not drained again until the next cycle.
	pending, err := e.queue.Drain(0)
	if err != nil {
		report.Errors = append(report.Errors, SyncError{
			Error:     fmt.Sprintf("failed to drain queue: %v", err),
			Timestamp: time.Now(),
		})
		report.FailedItems++
		return report, nil
	}
	if len(pending) == 0 {
		report.Success = true
		return report, nil
	}

	log.Printf("[SyncEngine] Starting cycle with %d pending operations", len(pending))

	for start := 0; start < len(pending); start += e.cfg.BatchSize {
		end := start + e.cfg.BatchSize
		if end > len(pending) {
			end = len(pending)
		}
		e.processBatch(ctx, pending[start:end], report)
	}

	report.Success = report.FailedItems == 0
	log.Printf("[SyncEngine] Cycle complete: %d synced, %d failed, %d conflicts",
		report.SyncedItems, report.FailedItems, report.Conflicts)
	return report, nil
}

// Status reports the pending queue depth and the most recent successful
// sync across all tasks.
func (e *Engine) Status(ctx context.Context) (*Status, error) {
	pending, err := e.queue.PendingCount()
	if err != nil {
		return nil, err
	}
	lastSync, err := e.store.LastSyncedAt()
	if err != nil {
		return nil, err
	}
	return &Status{Pending: pending, LastSync: lastSync}, nil
}

func (e *Engine) processBatch(ctx context.Context, items []models.SyncQueueItem, report *Report) {
	req := protocol.BatchRequest{ClientTimestamp: time.Now()}
	sent := make([]models.SyncQueueItem, 0, len(items))

	for _, item := range items {
		var payload protocol.TaskPayload
		if err := json.Unmarshal(item.Data, &payload); err != nil {
			e.recordFailure(item, fmt.Sprintf("corrupt snapshot: %v", err), report)
			continue
		}
		req.Items = append(req.Items, protocol.BatchItem{
			ID:         item.ID.String(),
			TaskID:     item.TaskID.String(),
			Operation:  item.Operation,
			Data:       payload,
			CreatedAt:  item.CreatedAt,
			RetryCount: item.RetryCount,
		})
		sent = append(sent, item)
	}
	if len(sent) == 0 {
		return
	}

	resp, err := e.exchange.SendBatch(ctx, req)
	if err != nil {
		// Batch-level failure: every item in this batch is retried
		// individually, then the cycle moves on to the next batch.
		log.Printf("[SyncEngine] Batch of %d failed: %v", len(sent), err)
		for _, item := range sent {
			e.recordFailure(item, fmt.Sprintf("batch sync failed: %v", err), report)
		}
		return
	}

	outcomes := make(map[string]protocol.ProcessedItem, len(resp.ProcessedItems))
	for _, processed := range resp.ProcessedItems {
		outcomes[processed.ClientID] = processed
	}

	for _, item := range sent {
		processed, ok := outcomes[item.TaskID.String()]
		if !ok {
			e.recordFailure(item, "no outcome returned for item", report)
			continue
		}
		e.applyOutcome(item, processed, report)
	}
}

func (e *Engine) applyOutcome(item models.SyncQueueItem, processed protocol.ProcessedItem, report *Report) {
	switch processed.Status {
	case protocol.StatusSuccess:
		if err := e.commitSynced(item, processed); err != nil {
			e.recordFailure(item, err.Error(), report)
			return
		}
		report.SyncedItems++

	case protocol.StatusConflict:
		if err := e.resolveConflict(item, processed); err != nil {
			e.recordFailure(item, err.Error(), report)
			return
		}
		// A resolved conflict is a successful sync outcome.
		report.Conflicts++
		report.SyncedItems++

	default:
		message := processed.Error
		if message == "" {
			message = "remote reported failure"
		}
		e.recordFailure(item, message, report)
	}
}

// commitSynced writes the remote's resolved data back to the record
// store (the id never changes), stamps the task synced and removes the
// queue item.
func (e *Engine) commitSynced(item models.SyncQueueItem, processed protocol.ProcessedItem) error {
	now := time.Now()
	fields := map[string]interface{}{
		"sync_status":    models.SyncStatusSynced,
		"last_synced_at": &now,
	}
	if resolved := processed.ResolvedData; resolved != nil {
		fields["title"] = resolved.Title
		fields["description"] = resolved.Description
		fields["completed"] = resolved.Completed
		fields["is_deleted"] = resolved.IsDeleted
		fields["updated_at"] = resolved.UpdatedAt
		if resolved.ServerID != "" {
			fields["server_id"] = resolved.ServerID
		}
	}
	if processed.ServerID != "" {
		fields["server_id"] = processed.ServerID
	}

	if _, err := e.store.UpdateTaskFields(item.TaskID, fields); err != nil {
		return fmt.Errorf("failed to commit synced state: %w", err)
	}
	return e.queue.MarkSynced(item.TaskID)
}

// resolveConflict runs last-write-wins between the current local task
// and the remote-supplied version and commits the winner.
func (e *Engine) resolveConflict(item models.SyncQueueItem, processed protocol.ProcessedItem) error {
	if processed.ResolvedData == nil {
		return errors.New("conflict outcome missing remote data")
	}

	local, err := e.store.GetTask(item.TaskID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// The remote believes this task exists but there is no
			// local record. That is an inconsistency, not something to
			// drop silently.
			return fmt.Errorf("conflict for task %s with no local record", item.TaskID)
		}
		return fmt.Errorf("failed to load local task: %w", err)
	}

	resolution := conflict.Resolve(*local, *processed.ResolvedData, time.Now())
	if processed.ServerID != "" {
		resolution.Task.ServerID = processed.ServerID
	}
	log.Printf("[SyncEngine] Conflict on task %s resolved, %s wins", item.TaskID, resolution.Winner)

	fields := map[string]interface{}{
		"title":          resolution.Task.Title,
		"description":    resolution.Task.Description,
		"completed":      resolution.Task.Completed,
		"is_deleted":     resolution.Task.IsDeleted,
		"updated_at":     resolution.Task.UpdatedAt,
		"sync_status":    resolution.Task.SyncStatus,
		"last_synced_at": resolution.Task.LastSyncedAt,
	}
	if resolution.Task.ServerID != "" {
		fields["server_id"] = resolution.Task.ServerID
	}

	if _, err := e.store.UpdateTaskFields(item.TaskID, fields); err != nil {
		return fmt.Errorf("failed to commit resolved state: %w", err)
	}
	return e.queue.MarkSynced(item.TaskID)
}

// recordFailure books one failed item: retry accounting, the report's
// failure counters and a structured error entry.
func (e *Engine) recordFailure(item models.SyncQueueItem, message string, report *Report) {
	e.handleRetry(item, message)
	report.FailedItems++
	report.Errors = append(report.Errors, SyncError{
		TaskID:    item.TaskID.String(),
		Operation: item.Operation,
		Error:     message,
		Timestamp: time.Now(),
	})
}

// handleRetry increments the item's retry count. At the ceiling the
// task is forced into error status; the item stays in the queue for
// inspection but drains no longer return it.
func (e *Engine) handleRetry(item models.SyncQueueItem, message string) {
	count, err := e.queue.MarkFailed(item.ID, message)
	if err != nil {
		log.Printf("[SyncEngine] Failed to record retry for item %s: %v", item.ID, err)
		return
	}
	if count >= e.cfg.RetryCeiling {
		log.Printf("[SyncEngine] Task %s reached retry ceiling, marking error", item.TaskID)
		if _, err := e.store.UpdateTaskFields(item.TaskID, map[string]interface{}{
			"sync_status": models.SyncStatusError,
		}); err != nil {
			log.Printf("[SyncEngine] Failed to mark task %s as error: %v", item.TaskID, err)
		}
	}
}
