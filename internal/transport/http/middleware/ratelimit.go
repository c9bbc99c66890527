package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"account-service/internal/core/throttle"
	resp "account-service/internal/transport/http/response"
)

func tooMany(c *gin.Context) {
	c.Header("Retry-After", "1")
	c.AbortWithStatusJSON(http.StatusTooManyRequests, resp.Error(http.StatusTooManyRequests, "too many requests"))
}

// RateLimit 全局令牌桶限速；rps<=0 不限
func RateLimit(rps rate.Limit, burst int) gin.HandlerFunc {
	if rps <= 0 {
		return func(c *gin.Context) { c.Next() }
	}
	lim := rate.NewLimiter(rps, burst)
	return func(c *gin.Context) {
		if lim.Allow() {
			c.Next()
			return
		}
		tooMany(c)
	}
}

// RateLimitPerIP 每 IP 限速
func RateLimitPerIP(l throttle.Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if l == nil || l.Allow(c.Request.Context(), c.ClientIP()) {
			c.Next()
			return
		}
		tooMany(c)
	}
}
