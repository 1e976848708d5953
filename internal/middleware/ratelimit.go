package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type clientWindow struct {
	start time.Time
	count int
}

// RateLimiter caps requests per client address over a fixed window.
// Counters are process-wide shared state, so increment-and-check runs
// under the mutex. The clock is injected to make the window testable.
type RateLimiter struct {
	mu      sync.Mutex
	clients map[string]*clientWindow
	window  time.Duration
	max     int
	now     func() time.Time
	log     *zap.Logger
}

func NewRateLimiter(windowSize time.Duration, max int, log *zap.Logger) *RateLimiter {
	return &RateLimiter{
		clients: make(map[string]*clientWindow),
		window:  windowSize,
		max:     max,
		now:     time.Now,
		log:     log,
	}
}

// NewRateLimiterWithClock is used by tests to substitute a fake clock.
func NewRateLimiterWithClock(windowSize time.Duration, max int, now func() time.Time, log *zap.Logger) *RateLimiter {
	l := NewRateLimiter(windowSize, max, log)
	l.now = now
	return l
}

// Allow records one request from addr and reports whether it is within
// the limit. An expired window resets the counter; stale entries for
// other addresses are pruned opportunistically.
func (l *RateLimiter) Allow(addr string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()

	w, ok := l.clients[addr]
	if !ok || now.Sub(w.start) >= l.window {
		l.prune(now)
		l.clients[addr] = &clientWindow{start: now, count: 1}
		return true
	}

	w.count++
	return w.count <= l.max
}

func (l *RateLimiter) prune(now time.Time) {
	for addr, w := range l.clients {
		if now.Sub(w.start) >= l.window {
			delete(l.clients, addr)
		}
	}
}

func (l *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		addr := c.ClientIP()
		if !l.Allow(addr) {
			l.log.Warn("Rate limit exceeded", zap.String("client", addr))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "Too many uploads from this address, try again later",
			})
			return
		}
		c.Next()
	}
}
