package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/fundopatronos/carreiras-api/internal/models"
	"github.com/fundopatronos/carreiras-api/internal/services"
	"github.com/fundopatronos/carreiras-api/pkg/logger"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// invalidTokenMessage is the only thing a public caller learns about a bad token
const invalidTokenMessage = "Token inválido ou expirado"

// attachError attaches err to the gin context so the observability middleware
// can include the reason in the request log. c.Error() returns *gin.Error (not
// the error interface), so we suppress errcheck here intentionally.
func attachError(c *gin.Context, err error) {
	if err != nil {
		_ = c.Error(err) //nolint:errcheck
	}
}

// respondError sends an error JSON response and attaches the error to the gin context
// so the observability middleware can include the reason in the request log.
func respondError(c *gin.Context, status int, message string, err error) {
	attachError(c, err)
	c.JSON(status, gin.H{"error": message})
}

// respondErrorWithDetails sends an error response with an additional details field.
func respondErrorWithDetails(c *gin.Context, status int, message string, details any, err error) { //nolint:unparam
	attachError(c, err)
	c.JSON(status, gin.H{"error": message, "details": details})
}

// respondBindError reports a request body that failed binding or validation
func respondBindError(c *gin.Context, err error) {
	details := ParseValidationErrors(err)
	if len(details) == 0 {
		respondError(c, http.StatusBadRequest, "Corpo da requisição inválido", err)
		return
	}
	respondErrorWithDetails(c, http.StatusBadRequest, "Falha na validação", details, err)
}

// respondServiceError maps the service error taxonomy onto HTTP responses
func respondServiceError(c *gin.Context, err error) {
	var (
		validationErr *services.ValidationError
		transitionErr *services.TransitionError
		deniedErr     *services.AccessDeniedError
	)

	switch {
	case errors.Is(err, services.ErrInvalidToken):
		logger.Info("Token rejected",
			zap.String("path", c.FullPath()),
			zap.String("reason", err.Error()),
		)
		respondError(c, http.StatusBadRequest, invalidTokenMessage, err)
	case errors.As(err, &validationErr):
		respondErrorWithDetails(c, http.StatusBadRequest, validationErr.Message,
			[]ValidationError{{Field: validationErr.Field, Message: validationErr.Message}}, err)
	case errors.As(err, &transitionErr):
		respondError(c, http.StatusConflict, transitionMessage(transitionErr), err)
	case errors.As(err, &deniedErr):
		respondError(c, http.StatusForbidden, deniedErr.Reason, err)
	case errors.Is(err, services.ErrUserNotFound):
		respondError(c, http.StatusNotFound, "Usuário não encontrado", err)
	case errors.Is(err, services.ErrSessionNotFound):
		respondError(c, http.StatusNotFound, "Sessão não encontrada", err)
	case errors.Is(err, services.ErrAlreadySubmitted):
		respondError(c, http.StatusConflict, "Feedback já foi enviado para esta solicitação", err)
	case errors.Is(err, services.ErrEmailTaken):
		respondError(c, http.StatusConflict, "Este email já está cadastrado", err)
	case errors.Is(err, services.ErrUserNotPendingConfirmation):
		respondError(c, http.StatusBadRequest, "Usuário não está pendente de confirmação de email", err)
	default:
		logger.Error("Unhandled service error",
			zap.String("path", c.FullPath()),
			zap.Error(err),
		)
		respondError(c, http.StatusInternalServerError, "Erro interno do servidor", err)
	}
}

func transitionMessage(err *services.TransitionError) string {
	switch err.Event {
	case models.EventApprove, models.EventReject:
		return fmt.Sprintf("Usuário não está pendente (status atual: %s)", err.From)
	case models.EventConfirm:
		return fmt.Sprintf("Este email não pode ser confirmado (status atual: %s)", err.From)
	case models.EventResendConfirmation:
		return fmt.Sprintf("Usuário não está aguardando confirmação de email (status atual: %s)", err.From)
	default:
		return err.Error()
	}
}
