package mw

import (
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// ipLimiters hands out one token bucket per client IP. Kiosks and operator
// consoles sit on a handful of fixed addresses; per-IP buckets keep one
// misbehaving client from starving the check-in path for everyone else.
// Entries are never evicted; the address population is small and stable.
type ipLimiters struct {
	mu      sync.Mutex
	buckets map[string]*rate.Limiter
	limit   rate.Limit
	burst   int
}

func newIPLimiters(limit rate.Limit, burst int) *ipLimiters {
	return &ipLimiters{
		buckets: make(map[string]*rate.Limiter),
		limit:   limit,
		burst:   burst,
	}
}

func (l *ipLimiters) get(ip string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	limiter, ok := l.buckets[ip]
	if !ok {
		limiter = rate.NewLimiter(l.limit, l.burst)
		l.buckets[ip] = limiter
	}
	return limiter
}

// RateLimiter rejects requests from clients that exceed their per-IP budget
// with 429. The budget is shared across all routes the middleware is
// mounted on.
func RateLimiter(limit rate.Limit, burst int) gin.HandlerFunc {
	limiters := newIPLimiters(limit, burst)
	return func(c *gin.Context) {
		if !limiters.get(c.ClientIP()).Allow() {
			c.AbortWithStatus(http.StatusTooManyRequests)
			return
		}
		c.Next()
	}
}
