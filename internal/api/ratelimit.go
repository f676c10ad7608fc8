package api

import (
	"sync"
	"time"

	"github.com/eternisai/agentic-research/internal/errors"
	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// clientLimiter keeps one token bucket per client IP.
type clientLimiter struct {
	mu       sync.Mutex
	limiters map[string]*limiterEntry
	rps      rate.Limit
	burst    int
	idleTTL  time.Duration
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func newClientLimiter(rps float64, burst int) *clientLimiter {
	if burst <= 0 {
		burst = 1
	}
	return &clientLimiter{
		limiters: make(map[string]*limiterEntry),
		rps:      rate.Limit(rps),
		burst:    burst,
		idleTTL:  10 * time.Minute,
	}
}

func (l *clientLimiter) allow(client string, now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	for key, e := range l.limiters {
		if now.Sub(e.lastSeen) > l.idleTTL {
			delete(l.limiters, key)
		}
	}

	e, ok := l.limiters[client]
	if !ok {
		e = &limiterEntry{limiter: rate.NewLimiter(l.rps, l.burst)}
		l.limiters[client] = e
	}
	e.lastSeen = now
	return e.limiter.AllowN(now, 1)
}

// RateLimitMiddleware rejects clients exceeding rps with 429. A non-positive rps disables limiting.
func RateLimitMiddleware(rps float64, burst int) gin.HandlerFunc {
	if rps <= 0 {
		return func(c *gin.Context) { c.Next() }
	}
	limiter := newClientLimiter(rps, burst)
	return func(c *gin.Context) {
		if !limiter.allow(c.ClientIP(), time.Now()) {
			errors.AbortWithTooManyRequests(c)
			return
		}
		c.Next()
	}
}
