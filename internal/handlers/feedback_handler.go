package handlers

import (
	"errors"
	"net/http"

	"github.com/fundopatronos/carreiras-api/internal/middleware"
	"github.com/fundopatronos/carreiras-api/internal/models"
	"github.com/fundopatronos/carreiras-api/internal/services"
	"github.com/fundopatronos/carreiras-api/pkg/logger"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// FeedbackHandler serves the public feedback form and the admin feedback views
type FeedbackHandler struct {
	service services.FeedbackServiceInterface
}

// NewFeedbackHandler creates a new FeedbackHandler
func NewFeedbackHandler(service services.FeedbackServiceInterface) *FeedbackHandler {
	return &FeedbackHandler{service: service}
}

// GetRequest handles GET /api/v1/feedback/request/:token
func (h *FeedbackHandler) GetRequest(c *gin.Context) {
	formContext, err := h.service.GetFormContext(c.Request.Context(), c.Param("token"))
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, formContext)
}

// Submit handles POST /api/v1/feedback/submit
func (h *FeedbackHandler) Submit(c *gin.Context) {
	var req models.SubmitFeedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	if err := h.service.Submit(c.Request.Context(), req.Token, req.Payload()); err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.MessageResponse{
		Success: true,
		Message: "Feedback enviado com sucesso!",
	})
}

// SendNow handles POST /api/v1/admin/feedback/send
func (h *FeedbackHandler) SendNow(c *gin.Context) {
	admin, err := middleware.GetIdentity(c)
	if err != nil {
		respondError(c, http.StatusUnauthorized, "Unauthorized", err)
		return
	}

	var req models.SendFeedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	result, err := h.service.DispatchNow(c.Request.Context(), req.SessionID)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	logger.Info("Admin dispatched feedback emails",
		zap.String("admin_uid", admin.UID),
		zap.String("session_id", req.SessionID),
		zap.Bool("student_email_sent", result.StudentSent),
		zap.Bool("mentor_email_sent", result.MentorSent),
	)

	resp := models.SendFeedbackResponse{
		Success:          result.Sent() > 0,
		Message:          "Emails de feedback enviados com sucesso",
		StudentEmailSent: result.StudentSent,
		MentorEmailSent:  result.MentorSent,
	}
	if result.Sent() == 0 {
		resp.Message = "Falha ao enviar emails de feedback"
	}
	c.JSON(http.StatusOK, resp)
}

// GetSessionSummary handles GET /api/v1/admin/feedback/:sessionId
func (h *FeedbackHandler) GetSessionSummary(c *gin.Context) {
	sessionID := c.Param("sessionId")
	if sessionID == "" {
		respondError(c, http.StatusBadRequest, "Sessão inválida", errors.New("missing route param: sessionId"))
		return
	}

	summary, err := h.service.GetSessionSummary(c.Request.Context(), sessionID)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, summary)
}
