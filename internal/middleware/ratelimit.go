package middleware

import (
	"net/http"
	"sync"

	"github.com/astrobalance/vaultgate/internal/config"
	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// callerLimiters 按调用者地址维护独立的令牌桶
type callerLimiters struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	qps      rate.Limit
	burst    int
}

func (l *callerLimiters) get(caller string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	limiter, ok := l.limiters[caller]
	if !ok {
		limiter = rate.NewLimiter(l.qps, l.burst)
		l.limiters[caller] = limiter
	}
	return limiter
}

// RateLimitMiddleware throttles per caller address. Apply after
// AuthMiddleware so the caller is resolved.
func RateLimitMiddleware(cfg *config.Config) gin.HandlerFunc {
	qps := rate.Limit(10)
	burst := 20
	if cfg != nil && cfg.RateLimit.QPS > 0 {
		qps = rate.Limit(cfg.RateLimit.QPS)
	}
	if cfg != nil && cfg.RateLimit.Burst > 0 {
		burst = cfg.RateLimit.Burst
	}
	limiters := &callerLimiters{
		limiters: make(map[string]*rate.Limiter),
		qps:      qps,
		burst:    burst,
	}

	return func(c *gin.Context) {
		caller := Caller(c)
		if caller == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			c.Abort()
			return
		}

		if !limiters.get(caller).Allow() {
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":       "rate limit exceeded",
				"retry_after": "1s",
			})
			c.Abort()
			return
		}

		c.Next()
	}
}
