package middleware

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/fundopatronos/carreiras-api/pkg/metrics"
	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// RateLimiter keeps one token bucket per client IP
type RateLimiter struct {
	name  string
	limit rate.Limit
	burst int

	mu      sync.Mutex
	buckets map[string]*rate.Limiter

	stop     chan struct{}
	stopOnce sync.Once
}

// NewRateLimiter allows each IP r requests per second with bursts of b.
// name labels rejections in metrics.
func NewRateLimiter(name string, r rate.Limit, b int) *RateLimiter {
	rl := &RateLimiter{
		name:    name,
		limit:   r,
		burst:   b,
		buckets: make(map[string]*rate.Limiter),
		stop:    make(chan struct{}),
	}
	go rl.sweep(time.Minute)
	return rl
}

// Stop ends the idle bucket sweeper
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stop) })
}

func (rl *RateLimiter) bucket(ip string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	b, ok := rl.buckets[ip]
	if !ok {
		b = rate.NewLimiter(rl.limit, rl.burst)
		rl.buckets[ip] = b
	}
	return b
}

// sweep drops buckets that have refilled completely, i.e. idle clients
func (rl *RateLimiter) sweep(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-rl.stop:
			return
		case <-ticker.C:
		}

		rl.mu.Lock()
		for ip, b := range rl.buckets {
			if b.Tokens() >= float64(rl.burst) {
				delete(rl.buckets, ip)
			}
		}
		rl.mu.Unlock()
	}
}

// retryAfter is the whole number of seconds until one token is available
func (rl *RateLimiter) retryAfter() string {
	if rl.limit <= 0 {
		return "60"
	}
	return strconv.Itoa(int(math.Ceil(1 / float64(rl.limit))))
}

// Middleware rejects requests over the limit with 429
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !rl.bucket(c.ClientIP()).Allow() {
			metrics.RateLimited.WithLabelValues(rl.name).Inc()
			c.Header("Retry-After", rl.retryAfter())
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "Muitas requisições. Tente novamente mais tarde.",
			})
			return
		}
		c.Next()
	}
}
