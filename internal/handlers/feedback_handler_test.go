package handlers

import (
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/fundopatronos/carreiras-api/internal/models"
	"github.com/fundopatronos/carreiras-api/internal/services"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func newFeedbackRouter(svc *MockFeedbackService) *gin.Engine {
	h := NewFeedbackHandler(svc)
	internal := NewInternalHandler(svc)
	internal.now = func() time.Time { return time.Date(2026, 3, 10, 6, 0, 0, 0, time.UTC) }

	router := gin.New()
	router.GET("/api/v1/feedback/request/:token", h.GetRequest)
	router.POST("/api/v1/feedback/submit", h.Submit)

	admin := router.Group("/api/v1/admin", withIdentity(&models.Identity{UID: "admin-1", Status: models.StatusActive, IsAdmin: true}))
	admin.POST("/feedback/send", h.SendNow)
	admin.GET("/feedback/:sessionId", h.GetSessionSummary)

	router.POST("/api/v1/internal/feedback/process-pending", internal.ProcessPending)
	router.POST("/api/v1/internal/feedback/sessions/:id", internal.EnsureSession)
	return router
}

func TestFeedbackHandler_GetRequest(t *testing.T) {
	svc := new(MockFeedbackService)
	router := newFeedbackRouter(svc)

	svc.On("GetFormContext", mock.Anything, "abc").Return(&models.FeedbackFormContext{
		SessionID:      "s1",
		RecipientRole:  models.RecipientStudent,
		RecipientName:  "Bia",
		OtherPartyName: "Ana",
	}, nil)
	svc.On("GetFormContext", mock.Anything, "nope").Return(nil, services.ErrFeedbackTokenNotFound)

	w, body := doJSON(t, router, http.MethodGet, "/api/v1/feedback/request/abc", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Ana", body["otherPartyName"])
	assert.Equal(t, false, body["alreadySubmitted"])

	w, body = doJSON(t, router, http.MethodGet, "/api/v1/feedback/request/nope", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, invalidTokenMessage, body["error"])
}

func TestFeedbackHandler_Submit(t *testing.T) {
	svc := new(MockFeedbackService)
	router := newFeedbackRouter(svc)

	rating := 5
	svc.On("Submit", mock.Anything, "abc", models.FeedbackPayload{
		MeetingStatus: models.MeetingHappened,
		Rating:        &rating,
	}).Return(nil)
	svc.On("Submit", mock.Anything, "done", mock.Anything).Return(services.ErrAlreadySubmitted)
	svc.On("Submit", mock.Anything, "norating", mock.Anything).
		Return(&services.ValidationError{Field: "rating", Message: "Avaliação é obrigatória quando o encontro aconteceu"})

	w, body := doJSON(t, router, http.MethodPost, "/api/v1/feedback/submit", gin.H{
		"token": "abc", "meetingStatus": "happened", "rating": 5,
	})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Feedback enviado com sucesso!", body["message"])

	w, body = doJSON(t, router, http.MethodPost, "/api/v1/feedback/submit", gin.H{
		"token": "done", "meetingStatus": "happened", "rating": 4,
	})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "Feedback já foi enviado para esta solicitação", body["error"])

	w, body = doJSON(t, router, http.MethodPost, "/api/v1/feedback/submit", gin.H{
		"token": "norating", "meetingStatus": "happened",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Avaliação é obrigatória quando o encontro aconteceu", body["error"])

	w, _ = doJSON(t, router, http.MethodPost, "/api/v1/feedback/submit", gin.H{
		"token": "abc", "meetingStatus": "happened", "rating": 9,
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = doJSON(t, router, http.MethodPost, "/api/v1/feedback/submit", gin.H{
		"token": "abc", "meetingStatus": "maybe",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestFeedbackHandler_SendNow(t *testing.T) {
	svc := new(MockFeedbackService)
	router := newFeedbackRouter(svc)

	svc.On("DispatchNow", mock.Anything, "s1").Return(&services.DispatchResult{StudentSent: true, MentorSent: false}, nil)
	svc.On("DispatchNow", mock.Anything, "s2").Return(&services.DispatchResult{}, nil)
	svc.On("DispatchNow", mock.Anything, "s3").Return(nil, services.ErrSessionNotFound)
	svc.On("DispatchNow", mock.Anything, "s4").Return(&services.DispatchResult{StudentSent: true, MentorSent: true}, nil)

	w, body := doJSON(t, router, http.MethodPost, "/api/v1/admin/feedback/send", gin.H{"sessionId": "s1"})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, true, body["studentEmailSent"])
	assert.Equal(t, false, body["mentorEmailSent"])

	w, body = doJSON(t, router, http.MethodPost, "/api/v1/admin/feedback/send", gin.H{"sessionId": "s2"})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "Falha ao enviar emails de feedback", body["message"])

	w, body = doJSON(t, router, http.MethodPost, "/api/v1/admin/feedback/send", gin.H{"sessionId": "s3"})
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Sessão não encontrada", body["error"])

	w, body = doJSON(t, router, http.MethodPost, "/api/v1/admin/feedback/send", gin.H{"sessionId": "s4"})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "Emails de feedback enviados com sucesso", body["message"])
}

func TestFeedbackHandler_GetSessionSummary(t *testing.T) {
	svc := new(MockFeedbackService)
	svc.On("GetSessionSummary", mock.Anything, "s1").Return(&models.SessionFeedbackSummary{
		SessionID:           "s1",
		StudentFeedbackSent: true,
	}, nil)

	w, body := doJSON(t, newFeedbackRouter(svc), http.MethodGet, "/api/v1/admin/feedback/s1", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, body["studentFeedbackSent"])
}

func TestInternalHandler_ProcessPending(t *testing.T) {
	svc := new(MockFeedbackService)
	now := time.Date(2026, 3, 10, 6, 0, 0, 0, time.UTC)
	svc.On("ProcessDue", mock.Anything, now).Return(&models.SweepResult{
		SessionsProcessed: 2,
		EmailsSent:        3,
		Errors:            []string{"Session s9: smtp down"},
	}, nil)

	w, body := doJSON(t, newFeedbackRouter(svc), http.MethodPost, "/api/v1/internal/feedback/process-pending", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(2), body["sessionsProcessed"])
	assert.Equal(t, float64(3), body["emailsSent"])
	assert.Len(t, body["errors"], 1)
}

func TestInternalHandler_ProcessPending_Failure(t *testing.T) {
	svc := new(MockFeedbackService)
	svc.On("ProcessDue", mock.Anything, mock.Anything).Return(nil, errors.New("query failed"))

	w, _ := doJSON(t, newFeedbackRouter(svc), http.MethodPost, "/api/v1/internal/feedback/process-pending", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestInternalHandler_EnsureSession(t *testing.T) {
	svc := new(MockFeedbackService)
	router := newFeedbackRouter(svc)

	svc.On("EnsureForSession", mock.Anything, mock.MatchedBy(func(s *models.MentoringSession) bool {
		return s.ID == "s1" && s.StudentEmail == "bia@gmail.com" && s.MentorName == "Ana"
	})).Return(&services.EnsureResult{}, nil)

	w, body := doJSON(t, router, http.MethodPost, "/api/v1/internal/feedback/sessions/s1", gin.H{
		"studentEmail": "bia@gmail.com",
		"studentName":  "Bia",
		"mentorEmail":  "ana@patronos.org",
		"mentorName":   "Ana",
	})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "s1", body["sessionId"])

	w, _ = doJSON(t, router, http.MethodPost, "/api/v1/internal/feedback/sessions/s2", gin.H{
		"studentEmail": "bia@gmail.com",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	svc.AssertNumberOfCalls(t, "EnsureForSession", 1)
}
