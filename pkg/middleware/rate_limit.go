package middleware

import (
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/dflow-platform/dflow-api/pkg/metrics"
	"golang.org/x/time/rate"
)

// limiterKey uses the authenticated subject when the limiter is chained after
// AuthMiddleware and the client IP otherwise.
func limiterKey(c *gin.Context) string {
	if name := Username(c); name != "" {
		return "sub:" + name
	}
	ip := c.ClientIP()
	if ip == "" {
		ip = "unknown"
	}
	return "ip:" + ip
}

// RateLimitMiddleware returns a Gin middleware enforcing a token-bucket per-key limit.
// rps = allowed events per second, burst = maximum tokens in bucket.
// Each middleware instance owns its buckets.
func RateLimitMiddleware(rps float64, burst int) gin.HandlerFunc {
	var buckets sync.Map // map[string]*rate.Limiter
	return func(c *gin.Context) {
		key := limiterKey(c)
		v, _ := buckets.LoadOrStore(key, rate.NewLimiter(rate.Limit(rps), burst))
		if !v.(*rate.Limiter).Allow() {
			c.Header("Retry-After", "1")
			metrics.RateLimitRejected.WithLabelValues("memory").Inc()
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "Rate limit exceeded"})
			return
		}
		metrics.RateLimitAllowed.WithLabelValues("memory").Inc()
		c.Next()
	}
}
