package middleware

import (
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kendall-kelly/consulting-portal-api/utils"
	"golang.org/x/time/rate"
)

// UserRateLimiter hands out one token bucket per user
type UserRateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	limit    rate.Limit
	burst    int
}

// NewUserRateLimiter allows perMinute events per user, with bursts up to perMinute
func NewUserRateLimiter(perMinute int) *UserRateLimiter {
	if perMinute <= 0 {
		perMinute = 1
	}
	return &UserRateLimiter{
		limiters: make(map[string]*rate.Limiter),
		limit:    rate.Every(time.Minute / time.Duration(perMinute)),
		burst:    perMinute,
	}
}

// Allow reports whether key may proceed now
func (l *UserRateLimiter) Allow(key string) bool {
	l.mu.Lock()
	limiter, ok := l.limiters[key]
	if !ok {
		limiter = rate.NewLimiter(l.limit, l.burst)
		l.limiters[key] = limiter
	}
	l.mu.Unlock()
	return limiter.Allow()
}

// Middleware rejects requests over the limit with 429 RATE_LIMITED
func (l *UserRateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := CurrentActor(c).UID
		if key == "" {
			key = c.ClientIP()
		}
		if !l.Allow(key) {
			c.Header("Retry-After", "60")
			utils.AbortWithError(c, utils.TooManyRequests("Too many messages, please slow down"))
			return
		}
		c.Next()
	}
}
