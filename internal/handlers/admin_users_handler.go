package handlers

import (
	"errors"
	"net/http"

	"github.com/fundopatronos/carreiras-api/internal/middleware"
	"github.com/fundopatronos/carreiras-api/internal/models"
	"github.com/fundopatronos/carreiras-api/internal/services"
	"github.com/gin-gonic/gin"
)

type AdminUsersHandler struct {
	service services.LifecycleServiceInterface
}

func NewAdminUsersHandler(service services.LifecycleServiceInterface) *AdminUsersHandler {
	return &AdminUsersHandler{service: service}
}

func (h *AdminUsersHandler) ListPending(c *gin.Context) {
	users, err := h.service.ListPending(c.Request.Context())
	if err != nil {
		respondServiceError(c, err)
		return
	}
	if users == nil {
		users = []*models.Identity{}
	}

	c.JSON(http.StatusOK, models.PendingUsersResponse{
		Users: users,
		Total: len(users),
	})
}

func (h *AdminUsersHandler) Approve(c *gin.Context) {
	admin, uid, ok := h.adminAndTarget(c)
	if !ok {
		return
	}

	identity, err := h.service.Approve(c.Request.Context(), admin.UID, uid)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.ApprovalResponse{
		Success:   true,
		Message:   "Usuário aprovado com sucesso",
		UID:       identity.UID,
		NewStatus: identity.Status,
	})
}

func (h *AdminUsersHandler) Reject(c *gin.Context) {
	admin, uid, ok := h.adminAndTarget(c)
	if !ok {
		return
	}

	identity, err := h.service.Reject(c.Request.Context(), admin.UID, uid)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.ApprovalResponse{
		Success:   true,
		Message:   "Usuário rejeitado",
		UID:       identity.UID,
		NewStatus: identity.Status,
	})
}

func (h *AdminUsersHandler) ResendVerification(c *gin.Context) {
	admin, uid, ok := h.adminAndTarget(c)
	if !ok {
		return
	}

	identity, sent, err := h.service.ResendConfirmation(c.Request.Context(), admin.UID, uid)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	if !sent {
		respondError(c, http.StatusBadGateway, "Erro ao enviar email de verificação", nil)
		return
	}

	c.JSON(http.StatusOK, models.ResendVerificationResponse{
		Success: true,
		Message: "Email de verificação enviado para " + identity.Email,
		Email:   identity.Email,
	})
}

func (h *AdminUsersHandler) adminAndTarget(c *gin.Context) (*models.Identity, string, bool) {
	admin, err := middleware.GetIdentity(c)
	if err != nil {
		respondError(c, http.StatusUnauthorized, "Unauthorized", err)
		return nil, "", false
	}

	uid := c.Param("uid")
	if uid == "" {
		respondError(c, http.StatusBadRequest, "UID inválido", errors.New("missing route param: uid"))
		return nil, "", false
	}
	return admin, uid, true
}
