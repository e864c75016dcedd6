package handlers

import (
	"net/http"

	"github.com/fundopatronos/carreiras-api/internal/middleware"
	"github.com/fundopatronos/carreiras-api/internal/models"
	"github.com/fundopatronos/carreiras-api/internal/services"
	"github.com/gin-gonic/gin"
)

const passwordResetMessage = "Se o email existir, você receberá instruções para recuperação"

// AuthHandler handles self-service identity endpoints
type AuthHandler struct {
	service services.LifecycleServiceInterface
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(service services.LifecycleServiceInterface) *AuthHandler {
	return &AuthHandler{service: service}
}

// Register handles POST /api/v1/auth/register
// The uid, email and sign-in channel come from the verified bearer token,
// never from the body.
func (h *AuthHandler) Register(c *gin.Context) {
	claims, err := middleware.GetClaims(c)
	if err != nil {
		respondError(c, http.StatusUnauthorized, "Unauthorized", err)
		return
	}

	var req models.RegisterIdentityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	identity, err := h.service.Register(c.Request.Context(), &services.RegisterInput{
		UID:         claims.UID,
		Email:       claims.Email,
		DisplayName: req.DisplayName,
		Role:        req.Role,
		Channel:     models.Channel(claims.Channel),
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, models.RegisterIdentityResponse{
		Success: true,
		Status:  identity.Status,
	})
}

// SendVerificationEmail handles POST /api/v1/auth/send-verification-email
func (h *AuthHandler) SendVerificationEmail(c *gin.Context) {
	claims, err := middleware.GetClaims(c)
	if err != nil {
		respondError(c, http.StatusUnauthorized, "Unauthorized", err)
		return
	}

	sent, err := h.service.SendOwnVerification(c.Request.Context(), claims.UID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	if !sent {
		respondError(c, http.StatusBadGateway, "Erro ao enviar email de verificação", nil)
		return
	}

	c.JSON(http.StatusOK, models.MessageResponse{
		Success: true,
		Message: "Email de verificação enviado",
	})
}

// VerifyEmailToken handles POST /api/v1/auth/verify-email-token
func (h *AuthHandler) VerifyEmailToken(c *gin.Context) {
	var req models.VerifyEmailTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, invalidTokenMessage, err)
		return
	}

	identity, err := h.service.RedeemConfirmation(c.Request.Context(), req.Token)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.VerifyEmailTokenResponse{
		Success: true,
		Email:   identity.Email,
		Role:    identity.Role,
		Message: "Email verificado com sucesso",
	})
}

// RequestPasswordReset handles POST /api/v1/auth/request-password-reset
// The response never reveals whether the address is registered.
func (h *AuthHandler) RequestPasswordReset(c *gin.Context) {
	var req models.PasswordResetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	if err := h.service.RequestPasswordReset(c.Request.Context(), req.Email); err != nil {
		// The response stays generic even on infrastructure failure
		attachError(c, err)
	}

	c.JSON(http.StatusOK, models.MessageResponse{
		Success: true,
		Message: passwordResetMessage,
	})
}

// ResetPassword handles POST /api/v1/auth/reset-password
func (h *AuthHandler) ResetPassword(c *gin.Context) {
	var req models.CompletePasswordResetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	if err := h.service.CompletePasswordReset(c.Request.Context(), req.Token, req.Password); err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.MessageResponse{
		Success: true,
		Message: "Senha alterada com sucesso",
	})
}

// Me handles GET /api/v1/auth/me for identities that passed the status gate
func (h *AuthHandler) Me(c *gin.Context) {
	identity, err := middleware.GetIdentity(c)
	if err != nil {
		respondError(c, http.StatusUnauthorized, "Unauthorized", err)
		return
	}
	c.JSON(http.StatusOK, identity)
}
