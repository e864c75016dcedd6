package handlers

import (
	"net/http"
	"time"

	"github.com/fundopatronos/carreiras-api/internal/models"
	"github.com/fundopatronos/carreiras-api/internal/services"
	"github.com/gin-gonic/gin"
)

// InternalHandler serves endpoints called by the scheduler and the booking subsystem
type InternalHandler struct {
	service services.FeedbackServiceInterface
	now     func() time.Time
}

// NewInternalHandler creates a new InternalHandler
func NewInternalHandler(service services.FeedbackServiceInterface) *InternalHandler {
	return &InternalHandler{service: service, now: time.Now}
}

// ProcessPending handles POST /api/v1/internal/feedback/process-pending
func (h *InternalHandler) ProcessPending(c *gin.Context) {
	result, err := h.service.ProcessDue(c.Request.Context(), h.now())
	if err != nil {
		respondServiceError(c, err)
		return
	}

	errs := result.Errors
	if errs == nil {
		errs = []string{}
	}
	c.JSON(http.StatusOK, models.ProcessPendingResponse{
		Success:           true,
		SessionsProcessed: result.SessionsProcessed,
		EmailsSent:        result.EmailsSent,
		Errors:            errs,
	})
}

// EnsureSession handles POST /api/v1/internal/feedback/sessions/:id
func (h *InternalHandler) EnsureSession(c *gin.Context) {
	var req models.EnsureSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	sessionID := c.Param("id")
	if _, err := h.service.EnsureForSession(c.Request.Context(), req.Session(sessionID)); err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.EnsureSessionResponse{
		Success:   true,
		SessionID: sessionID,
	})
}
