package handlers

import (
	"errors"
	"net/http"
	"testing"

	"github.com/fundopatronos/carreiras-api/internal/models"
	"github.com/fundopatronos/carreiras-api/internal/services"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func newAuthRouter(svc *MockLifecycleService) *gin.Engine {
	return newAuthRouterVia(svc, models.ChannelPassword)
}

func newAuthRouterVia(svc *MockLifecycleService, channel models.Channel) *gin.Engine {
	h := NewAuthHandler(svc)
	router := gin.New()
	authed := router.Group("/api/v1/auth", withClaims("uid-1", "bia@gmail.com", channel))
	authed.POST("/register", h.Register)
	authed.POST("/send-verification-email", h.SendVerificationEmail)

	public := router.Group("/api/v1/auth")
	public.POST("/verify-email-token", h.VerifyEmailToken)
	public.POST("/request-password-reset", h.RequestPasswordReset)
	public.POST("/reset-password", h.ResetPassword)
	return router
}

func TestAuthHandler_Register(t *testing.T) {
	svc := new(MockLifecycleService)
	router := newAuthRouter(svc)

	svc.On("Register", mock.Anything, &services.RegisterInput{
		UID:         "uid-1",
		Email:       "bia@gmail.com",
		DisplayName: "Bia",
		Role:        models.RoleApplicant,
		Channel:     models.ChannelPassword,
	}).Return(&models.Identity{UID: "uid-1", Status: models.StatusPendingConfirmation}, nil)

	w, body := doJSON(t, router, http.MethodPost, "/api/v1/auth/register", gin.H{
		"role": "applicant", "displayName": "Bia",
	})

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "pending_confirmation", body["status"])
	svc.AssertExpectations(t)
}

func TestAuthHandler_Register_ChannelComesFromToken(t *testing.T) {
	svc := new(MockLifecycleService)
	router := newAuthRouterVia(svc, models.ChannelPassword)

	svc.On("Register", mock.Anything, mock.MatchedBy(func(in *services.RegisterInput) bool {
		return in.Channel == models.ChannelPassword
	})).Return(&models.Identity{UID: "uid-1", Status: models.StatusPendingConfirmation}, nil)

	// A password sign-in claiming federated in the body must not skip confirmation
	w, body := doJSON(t, router, http.MethodPost, "/api/v1/auth/register", gin.H{
		"role": "applicant", "channel": "federated",
	})

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "pending_confirmation", body["status"])
	svc.AssertExpectations(t)
}

func TestAuthHandler_Register_TokenWithoutChannel(t *testing.T) {
	svc := new(MockLifecycleService)
	router := newAuthRouterVia(svc, "")

	svc.On("Register", mock.Anything, mock.MatchedBy(func(in *services.RegisterInput) bool {
		return in.Channel == ""
	})).Return(nil, &services.ValidationError{Field: "channel", Message: "must be password, federated or link"})

	w, _ := doJSON(t, router, http.MethodPost, "/api/v1/auth/register", gin.H{
		"role": "applicant", "channel": "federated",
	})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	svc.AssertExpectations(t)
}

func TestAuthHandler_Register_Errors(t *testing.T) {
	t.Run("bad role", func(t *testing.T) {
		svc := new(MockLifecycleService)
		w, body := doJSON(t, newAuthRouter(svc), http.MethodPost, "/api/v1/auth/register", gin.H{
			"role": "admin",
		})
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.NotEmpty(t, body["details"])
		svc.AssertNotCalled(t, "Register", mock.Anything, mock.Anything)
	})

	t.Run("email taken", func(t *testing.T) {
		svc := new(MockLifecycleService)
		svc.On("Register", mock.Anything, mock.Anything).Return(nil, services.ErrEmailTaken)
		w, _ := doJSON(t, newAuthRouter(svc), http.MethodPost, "/api/v1/auth/register", gin.H{
			"role": "mentor",
		})
		assert.Equal(t, http.StatusConflict, w.Code)
	})

	t.Run("store down", func(t *testing.T) {
		svc := new(MockLifecycleService)
		svc.On("Register", mock.Anything, mock.Anything).Return(nil, errors.New("db down"))
		w, body := doJSON(t, newAuthRouter(svc), http.MethodPost, "/api/v1/auth/register", gin.H{
			"role": "mentor",
		})
		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.Equal(t, "Erro interno do servidor", body["error"])
	})
}

func TestAuthHandler_VerifyEmailToken(t *testing.T) {
	svc := new(MockLifecycleService)
	router := newAuthRouter(svc)

	svc.On("RedeemConfirmation", mock.Anything, "good").
		Return(&models.Identity{Email: "bia@gmail.com", Role: models.RoleApplicant, Status: models.StatusActive}, nil)
	svc.On("RedeemConfirmation", mock.Anything, "used").Return(nil, services.ErrTokenAlreadyUsed)
	svc.On("RedeemConfirmation", mock.Anything, "expired").Return(nil, services.ErrTokenExpired)
	svc.On("RedeemConfirmation", mock.Anything, "suspended").
		Return(nil, &services.TransitionError{From: models.StatusSuspended, Event: models.EventConfirm})

	w, body := doJSON(t, router, http.MethodPost, "/api/v1/auth/verify-email-token", gin.H{"token": "good"})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "bia@gmail.com", body["email"])
	assert.Equal(t, "applicant", body["role"])

	// Every token failure reads the same to the caller
	for _, token := range []string{"used", "expired"} {
		w, body = doJSON(t, router, http.MethodPost, "/api/v1/auth/verify-email-token", gin.H{"token": token})
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, invalidTokenMessage, body["error"])
	}

	w, _ = doJSON(t, router, http.MethodPost, "/api/v1/auth/verify-email-token", gin.H{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = doJSON(t, router, http.MethodPost, "/api/v1/auth/verify-email-token", gin.H{"token": "suspended"})
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestAuthHandler_RequestPasswordReset_IsGeneric(t *testing.T) {
	svc := new(MockLifecycleService)
	router := newAuthRouter(svc)

	svc.On("RequestPasswordReset", mock.Anything, "known@patronos.org").Return(nil)
	svc.On("RequestPasswordReset", mock.Anything, "broken@patronos.org").Return(errors.New("db down"))

	for _, email := range []string{"known@patronos.org", "broken@patronos.org"} {
		w, body := doJSON(t, router, http.MethodPost, "/api/v1/auth/request-password-reset", gin.H{"email": email})
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, passwordResetMessage, body["message"])
	}

	w, _ := doJSON(t, router, http.MethodPost, "/api/v1/auth/request-password-reset", gin.H{"email": "not-an-email"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	svc.AssertExpectations(t)
}

func TestAuthHandler_ResetPassword(t *testing.T) {
	svc := new(MockLifecycleService)
	router := newAuthRouter(svc)

	svc.On("CompletePasswordReset", mock.Anything, "tok", "novaSenha1").Return(nil)
	svc.On("CompletePasswordReset", mock.Anything, "stale", "novaSenha1").Return(services.ErrTokenAlreadyUsed)

	w, _ := doJSON(t, router, http.MethodPost, "/api/v1/auth/reset-password", gin.H{"token": "tok", "password": "novaSenha1"})
	assert.Equal(t, http.StatusOK, w.Code)

	w, body := doJSON(t, router, http.MethodPost, "/api/v1/auth/reset-password", gin.H{"token": "stale", "password": "novaSenha1"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, invalidTokenMessage, body["error"])

	w, _ = doJSON(t, router, http.MethodPost, "/api/v1/auth/reset-password", gin.H{"token": "tok", "password": "123"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAuthHandler_SendVerificationEmail(t *testing.T) {
	t.Run("sent", func(t *testing.T) {
		svc := new(MockLifecycleService)
		svc.On("SendOwnVerification", mock.Anything, "uid-1").Return(true, nil)
		w, _ := doJSON(t, newAuthRouter(svc), http.MethodPost, "/api/v1/auth/send-verification-email", nil)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("delivery failed", func(t *testing.T) {
		svc := new(MockLifecycleService)
		svc.On("SendOwnVerification", mock.Anything, "uid-1").Return(false, nil)
		w, _ := doJSON(t, newAuthRouter(svc), http.MethodPost, "/api/v1/auth/send-verification-email", nil)
		assert.Equal(t, http.StatusBadGateway, w.Code)
	})

	t.Run("not pending", func(t *testing.T) {
		svc := new(MockLifecycleService)
		svc.On("SendOwnVerification", mock.Anything, "uid-1").Return(false, services.ErrUserNotPendingConfirmation)
		w, _ := doJSON(t, newAuthRouter(svc), http.MethodPost, "/api/v1/auth/send-verification-email", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}
