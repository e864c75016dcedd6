package middleware

import (
	"context"
	"net/http"

	"github.com/fundopatronos/carreiras-api/pkg/logger"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// CaptchaTokenHeader carries the client's reCAPTCHA response
const CaptchaTokenHeader = "X-Recaptcha-Token"

// CaptchaVerifier checks a client captcha token
type CaptchaVerifier interface {
	Verify(ctx context.Context, token, remoteIP string) error
}

// CaptchaMiddleware rejects requests whose captcha token does not verify.
// A nil verifier lets everything through.
func CaptchaMiddleware(verifier CaptchaVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		if verifier == nil {
			c.Next()
			return
		}

		if err := verifier.Verify(c.Request.Context(), c.GetHeader(CaptchaTokenHeader), c.ClientIP()); err != nil {
			logger.Warn("Captcha rejected",
				zap.String("path", c.FullPath()),
				zap.String("client_ip", c.ClientIP()),
				zap.Error(err),
			)
			_ = c.Error(err) //nolint:errcheck
			c.JSON(http.StatusBadRequest, gin.H{"error": "Verificação de captcha falhou"})
			c.Abort()
			return
		}

		c.Next()
	}
}
