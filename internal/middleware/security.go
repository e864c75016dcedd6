package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// securityHeaders are set on every response. Token links and account data
// must never be cached by intermediaries.
var securityHeaders = [][2]string{
	{"X-Frame-Options", "DENY"},
	{"X-Content-Type-Options", "nosniff"},
	{"Referrer-Policy", "no-referrer"},
	{"Permissions-Policy", "camera=(), microphone=(), geolocation=(), interest-cohort=()"},
	{"X-Permitted-Cross-Domain-Policies", "none"},
	{"Cache-Control", "no-store, no-cache, must-revalidate, private"},
	{"Pragma", "no-cache"},
}

// SecurityHeadersMiddleware adds hardening headers to all HTTP responses
func SecurityHeadersMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		for _, h := range securityHeaders {
			c.Header(h[0], h[1])
		}
		c.Next()
	}
}

// BodySizeLimitMiddleware rejects request bodies larger than maxBodySize.
// A declared Content-Length over the limit is refused up front; otherwise
// the body reader fails once the limit is crossed and binding reports it.
func BodySizeLimitMiddleware(maxBodySize int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		switch c.Request.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			c.Next()
			return
		}

		if c.Request.ContentLength > maxBodySize {
			c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, gin.H{
				"error": "Corpo da requisição muito grande",
			})
			return
		}

		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBodySize)
		c.Next()
	}
}
