package middleware

import (
	"net/http"

	"github.com/fundopatronos/carreiras-api/pkg/jwt"
	"github.com/fundopatronos/carreiras-api/pkg/logger"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// InternalTokenHeader carries the shared secret of scheduler and booking hooks
const InternalTokenHeader = "X-Internal-Api-Token"

// InternalAPIAuthMiddleware validates the internal API token
func InternalAPIAuthMiddleware(validToken string) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.GetHeader(InternalTokenHeader)

		if token == "" || validToken == "" || !jwt.TimingSafeCompare(token, validToken) {
			logger.Warn("Invalid internal API token",
				zap.String("path", c.Request.URL.Path),
				zap.String("client_ip", c.ClientIP()),
			)
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid or missing internal API token"})
			c.Abort()
			return
		}

		c.Next()
	}
}
