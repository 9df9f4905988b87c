package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-sync-agent/internal/models"
	"github.com/noah-isme/sma-sync-agent/internal/service"
	appErrors "github.com/noah-isme/sma-sync-agent/pkg/errors"
	"github.com/noah-isme/sma-sync-agent/pkg/response"
)

type submissionService interface {
	Submit(ctx context.Context, req service.SubmitRequest, claims *models.JWTClaims) (*models.SubmitResult, error)
}

// AttendanceHandler exposes the submission endpoint the attendance screen
// calls.
type AttendanceHandler struct {
	service submissionService
}

// NewAttendanceHandler constructs the handler.
func NewAttendanceHandler(service submissionService) *AttendanceHandler {
	return &AttendanceHandler{service: service}
}

// Submit godoc
// @Summary Submit GPS-gated attendance for a group
// @Tags Attendance
// @Accept json
// @Produce json
// @Param payload body service.SubmitRequest true "Marks and reported GPS fix"
// @Success 200 {object} response.Envelope
// @Router /attendance/submit [post]
func (h *AttendanceHandler) Submit(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req service.SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid request body"))
		return
	}

	result, err := h.service.Submit(c.Request.Context(), req, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result)
}
