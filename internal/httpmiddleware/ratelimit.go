// Package httpmiddleware holds cross-cutting gin middleware.
package httpmiddleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// RateLimiter enforces a per-client-IP token bucket. State lives in process
// memory, which is fine for a single API instance; a multi-instance deploy
// would move this to Redis.
type RateLimiter struct {
	burst     int
	perMinute int

	mu       sync.Mutex
	visitors map[string]*visitor
	lastGC   time.Time
}

type visitor struct {
	tokens float64
	seen   time.Time
}

// NewRateLimiter allows perMinute requests per IP with bursts up to burst.
func NewRateLimiter(perMinute, burst int) *RateLimiter {
	if burst <= 0 {
		burst = perMinute
	}
	return &RateLimiter{
		burst:     burst,
		perMinute: perMinute,
		visitors:  make(map[string]*visitor),
		lastGC:    time.Now(),
	}
}

// Handler returns the gin middleware.
func (l *RateLimiter) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()
		if ip == "" {
			ip = "unknown"
		}
		if !l.allow(ip, time.Now()) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "too many requests"})
			return
		}
		c.Next()
	}
}

func (l *RateLimiter) allow(key string, now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if now.Sub(l.lastGC) > 10*time.Minute {
		for k, v := range l.visitors {
			if now.Sub(v.seen) > 10*time.Minute {
				delete(l.visitors, k)
			}
		}
		l.lastGC = now
	}

	v, ok := l.visitors[key]
	if !ok {
		v = &visitor{tokens: float64(l.burst), seen: now}
		l.visitors[key] = v
	}

	v.tokens += now.Sub(v.seen).Minutes() * float64(l.perMinute)
	if v.tokens > float64(l.burst) {
		v.tokens = float64(l.burst)
	}
	v.seen = now

	if v.tokens < 1 {
		return false
	}
	v.tokens--
	return true
}
