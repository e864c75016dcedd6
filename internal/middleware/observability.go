package middleware

import (
	"strconv"
	"strings"
	"time"

	"github.com/fundopatronos/carreiras-api/pkg/logger"
	"github.com/fundopatronos/carreiras-api/pkg/metrics"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// unmatchedRoute labels requests that hit no route
const unmatchedRoute = "unmatched"

// secretKeys never reach the logs, whether they arrive as route or query params
var secretKeys = map[string]bool{
	"token": true, "password": true, "secret": true, "key": true,
	"auth": true, "api_key": true, "apikey": true,
}

// ObservabilityMiddleware records request metrics by route template and
// writes one access log line per request.
func ObservabilityMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		method := c.Request.Method

		// Route is unknown until after routing, so the gauge is per method only
		active := metrics.ActiveRequests.WithLabelValues(method)
		active.Inc()
		defer active.Dec()

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = unmatchedRoute
		}
		status := c.Writer.Status()
		duration := metrics.MeasureDuration(start)
		code := strconv.Itoa(status)

		metrics.HTTPRequestDuration.WithLabelValues(method, route, code).Observe(duration)
		metrics.HTTPRequestTotal.WithLabelValues(method, route, code).Inc()

		fields := []zap.Field{
			zap.String("route", route),
			zap.String("client_ip", c.ClientIP()),
			zap.String("user_agent", c.Request.UserAgent()),
			zap.Int("response_size", c.Writer.Size()),
		}
		if claims, err := GetClaims(c); err == nil {
			fields = append(fields, zap.String("uid", claims.UID))
		}
		if status >= 400 {
			fields = append(fields, errorContext(c)...)
		}

		logger.LogHTTPRequest(method, logPath(c, route), status, duration, fields...)
	}
}

// logPath is the raw path unless it embeds a token, in which case the
// route template is logged instead
func logPath(c *gin.Context, route string) string {
	for _, p := range c.Params {
		if secretKeys[strings.ToLower(p.Key)] {
			return route
		}
	}
	return c.Request.URL.Path
}

// errorContext adds non-secret params and handler errors to failed requests
func errorContext(c *gin.Context) []zap.Field {
	var fields []zap.Field

	params := make(map[string]string, len(c.Params))
	for _, p := range c.Params {
		if !secretKeys[strings.ToLower(p.Key)] {
			params[p.Key] = p.Value
		}
	}
	for k, v := range c.Request.URL.Query() {
		if !secretKeys[strings.ToLower(k)] && len(v) > 0 {
			params[k] = v[0]
		}
	}
	if len(params) > 0 {
		fields = append(fields, zap.Any("params", params))
	}

	if len(c.Errors) > 0 {
		fields = append(fields, zap.String("error", c.Errors.String()))
	}
	return fields
}
