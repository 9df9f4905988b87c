package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-sync-agent/internal/models"
	appErrors "github.com/noah-isme/sma-sync-agent/pkg/errors"
	"github.com/noah-isme/sma-sync-agent/pkg/response"
)

type syncQueueService interface {
	QueueStatus() models.QueueStatus
	PendingCount() int
	RetryFailed() int
}

// SyncHandler exposes the queue badge and retry endpoints.
type SyncHandler struct {
	service syncQueueService
}

// NewSyncHandler constructs the handler.
func NewSyncHandler(service syncQueueService) *SyncHandler {
	return &SyncHandler{service: service}
}

// Status godoc
// @Summary Queue counters for offline-indicator badges
// @Tags Sync
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /sync/status [get]
func (h *SyncHandler) Status(c *gin.Context) {
	if claimsFromContext(c) == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	response.JSON(c, http.StatusOK, h.service.QueueStatus())
}

// Pending godoc
// @Summary Count of items awaiting delivery
// @Tags Sync
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /sync/pending [get]
func (h *SyncHandler) Pending(c *gin.Context) {
	if claimsFromContext(c) == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"count": h.service.PendingCount()})
}

// Retry godoc
// @Summary Reset failed items and trigger a drain
// @Tags Sync
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /sync/retry [post]
func (h *SyncHandler) Retry(c *gin.Context) {
	if claimsFromContext(c) == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	reset := h.service.RetryFailed()
	response.JSON(c, http.StatusOK, gin.H{"reset": reset})
}
