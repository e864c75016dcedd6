package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/fundopatronos/carreiras-api/internal/models"
	"github.com/fundopatronos/carreiras-api/internal/services"
	"github.com/fundopatronos/carreiras-api/pkg/jwt"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubAuthorizer struct {
	identities map[string]*models.Identity
	err        error
}

func (s *stubAuthorizer) Authorize(_ context.Context, uid string, requireAdmin bool) (*models.Identity, error) {
	if s.err != nil {
		return nil, s.err
	}
	identity, ok := s.identities[uid]
	if !ok {
		return nil, services.ErrUserNotFound
	}
	if err := services.CheckAccess(identity, requireAdmin); err != nil {
		return nil, err
	}
	return identity, nil
}

func newIdentityRouter(tm *jwt.TokenManager, authz IdentityAuthorizer) *gin.Engine {
	router := gin.New()
	authed := router.Group("/", BearerAuthMiddleware(tm))
	authed.GET("/claims", func(c *gin.Context) {
		claims, err := GetClaims(c)
		if err != nil {
			c.Status(http.StatusInternalServerError)
			return
		}
		c.JSON(http.StatusOK, gin.H{"uid": claims.UID})
	})
	authed.GET("/me", RequireActiveIdentity(authz), func(c *gin.Context) {
		identity, err := GetIdentity(c)
		if err != nil {
			c.Status(http.StatusInternalServerError)
			return
		}
		c.JSON(http.StatusOK, gin.H{"uid": identity.UID})
	})
	authed.GET("/admin", RequireAdmin(authz), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	return router
}

func doBearer(t *testing.T, router *gin.Engine, path, token string) (int, map[string]string) {
	t.Helper()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	router.ServeHTTP(w, req)

	body := map[string]string{}
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	}
	return w.Code, body
}

func TestBearerAuthMiddleware(t *testing.T) {
	tm := jwt.NewTokenManager("test-secret", "carreiras", 1)
	router := newIdentityRouter(tm, &stubAuthorizer{})

	token, err := tm.GenerateToken("uid-1", "ana@patronos.org", "password")
	require.NoError(t, err)

	code, body := doBearer(t, router, "/claims", token)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "uid-1", body["uid"])

	code, body = doBearer(t, router, "/claims", "")
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, "Token de autenticação ausente", body["error"])

	code, body = doBearer(t, router, "/claims", "not-a-jwt")
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, "Token inválido", body["error"])

	other := jwt.NewTokenManager("other-secret", "carreiras", 1)
	forged, err := other.GenerateToken("uid-1", "ana@patronos.org", "password")
	require.NoError(t, err)
	code, _ = doBearer(t, router, "/claims", forged)
	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestRequireActiveIdentity(t *testing.T) {
	tm := jwt.NewTokenManager("test-secret", "carreiras", 1)
	authz := &stubAuthorizer{identities: map[string]*models.Identity{
		"active":    {UID: "active", Status: models.StatusActive},
		"approval":  {UID: "approval", Status: models.StatusPendingApproval},
		"confirm":   {UID: "confirm", Status: models.StatusPendingConfirmation},
		"suspended": {UID: "suspended", Status: models.StatusSuspended},
	}}
	router := newIdentityRouter(tm, authz)

	tests := []struct {
		uid     string
		code    int
		message string
	}{
		{uid: "active", code: http.StatusOK},
		{uid: "approval", code: http.StatusForbidden, message: "Sua conta está pendente de aprovação"},
		{uid: "confirm", code: http.StatusForbidden, message: "Por favor, verifique seu email"},
		{uid: "suspended", code: http.StatusForbidden, message: "Sua conta foi suspensa"},
		{uid: "ghost", code: http.StatusNotFound, message: "Perfil de usuário não encontrado"},
	}

	for _, tt := range tests {
		t.Run(tt.uid, func(t *testing.T) {
			token, err := tm.GenerateToken(tt.uid, tt.uid+"@patronos.org", "password")
			require.NoError(t, err)

			code, body := doBearer(t, router, "/me", token)
			assert.Equal(t, tt.code, code)
			if tt.message != "" {
				assert.Equal(t, tt.message, body["error"])
			} else {
				assert.Equal(t, tt.uid, body["uid"])
			}
		})
	}
}

func TestRequireAdmin(t *testing.T) {
	tm := jwt.NewTokenManager("test-secret", "carreiras", 1)
	authz := &stubAuthorizer{identities: map[string]*models.Identity{
		"admin":           {UID: "admin", Status: models.StatusActive, IsAdmin: true},
		"member":          {UID: "member", Status: models.StatusActive},
		"suspended-admin": {UID: "suspended-admin", Status: models.StatusSuspended, IsAdmin: true},
	}}
	router := newIdentityRouter(tm, authz)

	adminToken, _ := tm.GenerateToken("admin", "admin@patronos.org", "password")
	code, _ := doBearer(t, router, "/admin", adminToken)
	assert.Equal(t, http.StatusOK, code)

	memberToken, _ := tm.GenerateToken("member", "member@patronos.org", "password")
	code, body := doBearer(t, router, "/admin", memberToken)
	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, "Acesso restrito a administradores", body["error"])

	suspendedToken, _ := tm.GenerateToken("suspended-admin", "s@patronos.org", "password")
	code, body = doBearer(t, router, "/admin", suspendedToken)
	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, "Sua conta foi suspensa", body["error"])
}

func TestRequireActiveIdentity_StoreFailure(t *testing.T) {
	tm := jwt.NewTokenManager("test-secret", "carreiras", 1)
	router := newIdentityRouter(tm, &stubAuthorizer{err: errors.New("connection refused")})

	token, _ := tm.GenerateToken("uid-1", "ana@patronos.org", "password")
	code, _ := doBearer(t, router, "/me", token)
	assert.Equal(t, http.StatusInternalServerError, code)
}
