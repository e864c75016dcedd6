package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/fundopatronos/carreiras-api/internal/middleware"
	"github.com/fundopatronos/carreiras-api/internal/models"
	"github.com/fundopatronos/carreiras-api/internal/services"
	"github.com/fundopatronos/carreiras-api/pkg/jwt"
	"github.com/fundopatronos/carreiras-api/pkg/logger"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)

	if err := logger.Initialize(logger.Config{Level: "error", Environment: "development"}); err != nil {
		panic(err)
	}
}

type MockLifecycleService struct {
	mock.Mock
}

func (m *MockLifecycleService) Register(ctx context.Context, in *services.RegisterInput) (*models.Identity, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Identity), args.Error(1)
}

func (m *MockLifecycleService) Approve(ctx context.Context, adminUID, uid string) (*models.Identity, error) {
	args := m.Called(ctx, adminUID, uid)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Identity), args.Error(1)
}

func (m *MockLifecycleService) Reject(ctx context.Context, adminUID, uid string) (*models.Identity, error) {
	args := m.Called(ctx, adminUID, uid)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Identity), args.Error(1)
}

func (m *MockLifecycleService) ResendConfirmation(ctx context.Context, adminUID, uid string) (*models.Identity, bool, error) {
	args := m.Called(ctx, adminUID, uid)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).(*models.Identity), args.Bool(1), args.Error(2)
}

func (m *MockLifecycleService) SendOwnVerification(ctx context.Context, uid string) (bool, error) {
	args := m.Called(ctx, uid)
	return args.Bool(0), args.Error(1)
}

func (m *MockLifecycleService) RedeemConfirmation(ctx context.Context, token string) (*models.Identity, error) {
	args := m.Called(ctx, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Identity), args.Error(1)
}

func (m *MockLifecycleService) RequestPasswordReset(ctx context.Context, email string) error {
	args := m.Called(ctx, email)
	return args.Error(0)
}

func (m *MockLifecycleService) CompletePasswordReset(ctx context.Context, token, password string) error {
	args := m.Called(ctx, token, password)
	return args.Error(0)
}

func (m *MockLifecycleService) ListPending(ctx context.Context) ([]*models.Identity, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Identity), args.Error(1)
}

func (m *MockLifecycleService) GetIdentity(ctx context.Context, uid string) (*models.Identity, error) {
	args := m.Called(ctx, uid)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Identity), args.Error(1)
}

func (m *MockLifecycleService) Authorize(ctx context.Context, uid string, requireAdmin bool) (*models.Identity, error) {
	args := m.Called(ctx, uid, requireAdmin)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Identity), args.Error(1)
}

type MockFeedbackService struct {
	mock.Mock
}

func (m *MockFeedbackService) GetFormContext(ctx context.Context, token string) (*models.FeedbackFormContext, error) {
	args := m.Called(ctx, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.FeedbackFormContext), args.Error(1)
}

func (m *MockFeedbackService) Submit(ctx context.Context, token string, payload models.FeedbackPayload) error {
	args := m.Called(ctx, token, payload)
	return args.Error(0)
}

func (m *MockFeedbackService) DispatchNow(ctx context.Context, sessionID string) (*services.DispatchResult, error) {
	args := m.Called(ctx, sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.DispatchResult), args.Error(1)
}

func (m *MockFeedbackService) EnsureForSession(ctx context.Context, session *models.MentoringSession) (*services.EnsureResult, error) {
	args := m.Called(ctx, session)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.EnsureResult), args.Error(1)
}

func (m *MockFeedbackService) GetSessionSummary(ctx context.Context, sessionID string) (*models.SessionFeedbackSummary, error) {
	args := m.Called(ctx, sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.SessionFeedbackSummary), args.Error(1)
}

func (m *MockFeedbackService) ProcessDue(ctx context.Context, now time.Time) (*models.SweepResult, error) {
	args := m.Called(ctx, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.SweepResult), args.Error(1)
}

var (
	_ services.LifecycleServiceInterface = (*MockLifecycleService)(nil)
	_ services.FeedbackServiceInterface  = (*MockFeedbackService)(nil)
)

// withClaims stands in for BearerAuthMiddleware
func withClaims(uid, email string, channel models.Channel) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(middleware.ClaimsContextKey, &jwt.IdentityClaims{UID: uid, Email: email, Channel: string(channel)})
		c.Next()
	}
}

// withIdentity stands in for RequireActiveIdentity and RequireAdmin
func withIdentity(identity *models.Identity) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(middleware.IdentityContextKey, identity)
		c.Next()
	}
}

func doJSON(t *testing.T, router http.Handler, method, path string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	decoded := map[string]any{}
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &decoded))
	}
	return w, decoded
}
