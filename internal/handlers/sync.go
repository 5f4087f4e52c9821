package handlers

import (
	"context"
	"errors"
	"net/http"

	"task-sync/backend/internal/engine"
	"task-sync/backend/internal/protocol"
	"task-sync/backend/internal/remote"
	"task-sync/backend/internal/services"

	"github.com/gin-gonic/gin"
)

// SyncEngine is the part of the batch sync engine the handlers need.
type SyncEngine interface {
	RunCycle(ctx context.Context) (*engine.Report, error)
	Status(ctx context.Context) (*engine.Status, error)
	Connected(ctx context.Context) bool
}

type SyncHandler struct {
	engine   SyncEngine
	exchange *remote.Exchange
	cached   *services.CachedTaskService
}

// NewSyncHandler wires the sync endpoints. cached may be nil when no
// read cache is configured.
func NewSyncHandler(eng SyncEngine, exchange *remote.Exchange, cached *services.CachedTaskService) *SyncHandler {
	return &SyncHandler{engine: eng, exchange: exchange, cached: cached}
}

// TriggerSync runs one full sync cycle on demand. A failed connectivity
// probe maps to 503; everything else, including per-item failures, is
// reported in the 200 body.
func (h *SyncHandler) TriggerSync(c *gin.Context) {
	report, err := h.engine.RunCycle(c.Request.Context())
	if err != nil {
		if errors.Is(err, engine.ErrRemoteUnavailable) {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"error": "remote authority unreachable",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	if h.cached != nil {
		h.cached.InvalidateAll()
	}
	c.JSON(http.StatusOK, report)
}

// ProcessBatch feeds raw operations straight to the remote exchange
// logic. Administrative and test path; also the endpoint a remote
// deployment serves to its clients.
func (h *SyncHandler) ProcessBatch(c *gin.Context) {
	var req protocol.BatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	resp := h.exchange.ProcessBatch(req)
	c.JSON(http.StatusOK, resp)
}

func (h *SyncHandler) GetStatus(c *gin.Context) {
	status, err := h.engine.Status(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"pending":   status.Pending,
		"lastSync":  status.LastSync,
		"connected": h.engine.Connected(c.Request.Context()),
	})
}
