package handlers

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"
)

// ReadinessCheck reports whether a dependency can serve traffic
type ReadinessCheck func(ctx context.Context) error

type HealthHandler struct {
	checks map[string]ReadinessCheck
}

func NewHealthHandler(checks map[string]ReadinessCheck) *HealthHandler {
	return &HealthHandler{
		checks: checks,
	}
}

// Healthcheck is the liveness probe
func (h *HealthHandler) Healthcheck(c *gin.Context) {
	c.Header("Cache-Control", "no-cache, no-store, max-age=0, must-revalidate")
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
	})
}

// Readiness runs every dependency check concurrently and reports all failures
func (h *HealthHandler) Readiness(c *gin.Context) {
	c.Header("Cache-Control", "no-cache, no-store, max-age=0, must-revalidate")

	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	var mu sync.Mutex
	failed := gin.H{}

	// Checks never return an error to the group so one failure does not
	// cancel the others
	var g errgroup.Group
	for name, check := range h.checks {
		g.Go(func() error {
			if err := check(ctx); err != nil {
				mu.Lock()
				attachError(c, err)
				failed[name] = err.Error()
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	if len(failed) > 0 {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "unavailable",
			"checks": failed,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
	})
}
