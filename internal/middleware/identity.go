package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/fundopatronos/carreiras-api/internal/models"
	"github.com/fundopatronos/carreiras-api/internal/services"
	"github.com/fundopatronos/carreiras-api/pkg/jwt"
	"github.com/gin-gonic/gin"
)

const (
	// ClaimsContextKey stores the validated bearer token claims
	ClaimsContextKey = "identity_claims"

	// IdentityContextKey stores the identity that passed the access gate
	IdentityContextKey = "identity"
)

var (
	ErrClaimsNotFound   = errors.New("claims not found in context")
	ErrIdentityNotFound = errors.New("identity not found in context")
)

// IdentityAuthorizer loads identities and applies the status gate
type IdentityAuthorizer interface {
	Authorize(ctx context.Context, uid string, requireAdmin bool) (*models.Identity, error)
}

// BearerAuthMiddleware validates the Authorization bearer token and stores
// its claims. It does not look at the identity's status, so it alone guards
// registration.
func BearerAuthMiddleware(tokenManager *jwt.TokenManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		scheme, token, ok := strings.Cut(header, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
			_ = c.Error(fmt.Errorf("missing bearer token")) //nolint:errcheck
			c.Header("WWW-Authenticate", "Bearer")
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Token de autenticação ausente"})
			c.Abort()
			return
		}

		claims, err := tokenManager.ValidateToken(strings.TrimSpace(token))
		if err != nil {
			_ = c.Error(fmt.Errorf("invalid bearer token: %w", err)) //nolint:errcheck
			c.Header("WWW-Authenticate", "Bearer")
			if errors.Is(err, jwt.ErrExpiredToken) {
				c.JSON(http.StatusUnauthorized, gin.H{"error": "Token expirado"})
			} else {
				c.JSON(http.StatusUnauthorized, gin.H{"error": "Token inválido"})
			}
			c.Abort()
			return
		}

		c.Set(ClaimsContextKey, claims)
		c.Next()
	}
}

// RequireActiveIdentity lets only active identities through
func RequireActiveIdentity(authz IdentityAuthorizer) gin.HandlerFunc {
	return requireIdentity(authz, false)
}

// RequireAdmin lets only active admins through
func RequireAdmin(authz IdentityAuthorizer) gin.HandlerFunc {
	return requireIdentity(authz, true)
}

func requireIdentity(authz IdentityAuthorizer, requireAdmin bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, err := GetClaims(c)
		if err != nil {
			_ = c.Error(err) //nolint:errcheck
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			c.Abort()
			return
		}

		identity, err := authz.Authorize(c.Request.Context(), claims.UID, requireAdmin)
		if err != nil {
			_ = c.Error(err) //nolint:errcheck

			var denied *services.AccessDeniedError
			switch {
			case errors.As(err, &denied):
				c.JSON(http.StatusForbidden, gin.H{"error": denied.Reason})
			case errors.Is(err, services.ErrUserNotFound):
				c.JSON(http.StatusNotFound, gin.H{"error": "Perfil de usuário não encontrado"})
			default:
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Erro de autenticação"})
			}
			c.Abort()
			return
		}

		c.Set(IdentityContextKey, identity)
		c.Next()
	}
}

// GetClaims extracts the bearer token claims from context
func GetClaims(c *gin.Context) (*jwt.IdentityClaims, error) {
	val, exists := c.Get(ClaimsContextKey)
	if !exists {
		return nil, ErrClaimsNotFound
	}

	claims, ok := val.(*jwt.IdentityClaims)
	if !ok {
		return nil, ErrClaimsNotFound
	}
	return claims, nil
}

// GetIdentity extracts the gated identity from context
func GetIdentity(c *gin.Context) (*models.Identity, error) {
	val, exists := c.Get(IdentityContextKey)
	if !exists {
		return nil, ErrIdentityNotFound
	}

	identity, ok := val.(*models.Identity)
	if !ok {
		return nil, ErrIdentityNotFound
	}
	return identity, nil
}
