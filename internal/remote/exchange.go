// Package remote implements both sides of the batch exchange protocol:
// the authority that processes submitted operations against its own
// task table, and the clients the sync engine uses to reach it.
package remote

import (
	"errors"
	"fmt"
	"log"
	"time"

	"task-sync/backend/internal/models"
	"task-sync/backend/internal/protocol"

	"github.com/gofrs/uuid"
	"gorm.io/gorm"
)

// Exchange is the remote authority's side of the protocol. It owns the
// remote task table exclusively; the sync engine never touches it
// except through the wire contract.
type Exchange struct {
	db *gorm.DB
}

func NewExchange(db *gorm.DB) *Exchange {
	return &Exchange{db: db}
}

// ProcessBatch handles every submitted item independently and returns
// one outcome per item. A failing or panicking item never aborts the
// rest of the batch.
func (e *Exchange) ProcessBatch(req protocol.BatchRequest) protocol.BatchResponse {
	resp := protocol.BatchResponse{
		ProcessedItems: make([]protocol.ProcessedItem, 0, len(req.Items)),
	}
	for _, item := range req.Items {
		resp.ProcessedItems = append(resp.ProcessedItems, e.processItem(item))
	}
	return resp
}

func (e *Exchange) processItem(item protocol.BatchItem) (out protocol.ProcessedItem) {
	out = protocol.ProcessedItem{ClientID: item.TaskID}

	defer func() {
		if r := recover(); r != nil {
			log.Printf("[RemoteExchange] Panic processing %s for %s: %v",
				item.Operation, item.TaskID, r)
			out.Status = protocol.StatusError
			out.Error = fmt.Sprintf("%v", r)
		}
	}()

	clientID, err := uuid.FromString(item.TaskID)
	if err != nil {
		out.Status = protocol.StatusError
		out.Error = "invalid task id"
		return out
	}

	switch item.Operation {
	case models.OperationCreate:
		err = e.createTask(clientID, item, &out)
	case models.OperationUpdate:
		err = e.updateTask(clientID, item, &out)
	case models.OperationDelete:
		err = e.deleteTask(clientID, &out)
	default:
		err = fmt.Errorf("unknown operation %q", item.Operation)
	}

	if err != nil {
		out.Status = protocol.StatusError
		out.Error = err.Error()
	}
	return out
}

// createTask stores a new record from the snapshot, assigning its own
// canonical identifier. A re-sent create for a task already stored is
// answered with the stored record so retried batches stay idempotent.
func (e *Exchange) createTask(clientID uuid.UUID, item protocol.BatchItem, out *protocol.ProcessedItem) error {
	var existing models.RemoteTask
	err := e.db.First(&existing, "client_id = ?", clientID).Error
	if err == nil {
		out.Status = protocol.StatusSuccess
		out.ServerID = existing.ID.String()
		out.ResolvedData = e.payloadFor(&existing)
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	serverID, err := uuid.NewV4()
	if err != nil {
		return fmt.Errorf("failed to assign server id: %w", err)
	}
	record := models.RemoteTask{
		ID:          serverID,
		ClientID:    clientID,
		Title:       item.Data.Title,
		Description: item.Data.Description,
		Completed:   item.Data.Completed,
		IsDeleted:   item.Data.IsDeleted,
		CreatedAt:   item.Data.CreatedAt,
		UpdatedAt:   item.Data.UpdatedAt,
	}
	if err := e.db.Create(&record).Error; err != nil {
		return err
	}

	out.Status = protocol.StatusSuccess
	out.ServerID = record.ID.String()
	out.ResolvedData = e.payloadFor(&record)
	return nil
}

// updateTask applies the client's fields when its updated_at is
// strictly newer than the stored record; otherwise the stored record
// is returned as the resolved data. Either way the outcome is success:
// the comparison already picked a winner server side.
func (e *Exchange) updateTask(clientID uuid.UUID, item protocol.BatchItem, out *protocol.ProcessedItem) error {
	var record models.RemoteTask
	if err := e.db.First(&record, "client_id = ?", clientID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return errors.New("not found")
		}
		return err
	}

	if item.Data.UpdatedAt.After(record.UpdatedAt) {
		record.Title = item.Data.Title
		record.Description = item.Data.Description
		record.Completed = item.Data.Completed
		record.IsDeleted = item.Data.IsDeleted
		record.UpdatedAt = item.Data.UpdatedAt
		// UpdateColumns keeps gorm from auto-bumping updated_at: the
		// stored value must stay the client's timestamp because it is
		// the ordering key for every later comparison.
		err := e.db.Model(&models.RemoteTask{}).
			Where("id = ?", record.ID).
			UpdateColumns(map[string]interface{}{
				"title":       record.Title,
				"description": record.Description,
				"completed":   record.Completed,
				"is_deleted":  record.IsDeleted,
				"updated_at":  record.UpdatedAt,
			}).Error
		if err != nil {
			return err
		}
	}

	out.Status = protocol.StatusSuccess
	out.ServerID = record.ID.String()
	out.ResolvedData = e.payloadFor(&record)
	return nil
}

// deleteTask soft-deletes the record. Deleting a record the authority
// never saw is treated as already done.
func (e *Exchange) deleteTask(clientID uuid.UUID, out *protocol.ProcessedItem) error {
	var record models.RemoteTask
	if err := e.db.First(&record, "client_id = ?", clientID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			out.Status = protocol.StatusSuccess
			return nil
		}
		return err
	}

	record.IsDeleted = true
	record.UpdatedAt = time.Now()
	if err := e.db.Save(&record).Error; err != nil {
		return err
	}

	out.Status = protocol.StatusSuccess
	out.ServerID = record.ID.String()
	return nil
}

func (e *Exchange) payloadFor(record *models.RemoteTask) *protocol.TaskPayload {
	return &protocol.TaskPayload{
		ID:          record.ClientID.String(),
		ServerID:    record.ID.String(),
		Title:       record.Title,
		Description: record.Description,
		Completed:   record.Completed,
		IsDeleted:   record.IsDeleted,
		CreatedAt:   record.CreatedAt,
		UpdatedAt:   record.UpdatedAt,
	}
}
