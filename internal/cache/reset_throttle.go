package cache

import (
	"strings"
	"time"

	"github.com/fundopatronos/carreiras-api/pkg/logger"
	"github.com/fundopatronos/carreiras-api/pkg/metrics"
	gocache "github.com/patrickmn/go-cache"
	"go.uber.org/zap"
)

const resetThrottleCacheName = "reset_throttle"

// ResetThrottle remembers recent password reset requests per email so a
// single address cannot be used to flood a mailbox
type ResetThrottle struct {
	cache  *gocache.Cache
	window time.Duration
}

// NewResetThrottle allows one reset email per address per window.
// A zero window disables throttling.
func NewResetThrottle(window time.Duration) *ResetThrottle {
	cleanup := window
	if cleanup <= 0 {
		cleanup = time.Minute
	}

	return &ResetThrottle{
		cache:  gocache.New(window, cleanup),
		window: window,
	}
}

// Allow reports whether a reset email may be sent to email now and, if so,
// starts a new window for it
func (t *ResetThrottle) Allow(email string) bool {
	if t.window <= 0 {
		return true
	}

	key := strings.ToLower(strings.TrimSpace(email))

	// Add fails when the key is already present and unexpired
	if err := t.cache.Add(key, struct{}{}, t.window); err != nil {
		metrics.CacheHits.WithLabelValues(resetThrottleCacheName).Inc()
		logger.Debug("Password reset throttled", zap.Duration("window", t.window))
		return false
	}

	metrics.CacheMisses.WithLabelValues(resetThrottleCacheName).Inc()
	return true
}

// Forget clears the window for email, e.g. after a failed delivery
func (t *ResetThrottle) Forget(email string) {
	t.cache.Delete(strings.ToLower(strings.TrimSpace(email)))
}

// Size returns the number of addresses currently throttled
func (t *ResetThrottle) Size() int {
	return t.cache.ItemCount()
}
