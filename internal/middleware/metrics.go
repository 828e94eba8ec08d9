package middleware

import (
	"time"

	"github.com/astrobalance/vaultgate/internal/pkg/metrics"
	"github.com/gin-gonic/gin"
)

// MetricsMiddleware times every request into the vault latency histogram,
// labelled by route template so /users/:address stays one series.
func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		duration := time.Since(start).Seconds()

		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = "unmatched"
		}
		metrics.LatencyBucket.WithLabelValues(endpoint, c.Request.Method).Observe(duration)
	}
}
