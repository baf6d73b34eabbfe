package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"iapgate/internal/infrastructure/ratelimit"
	"iapgate/internal/shared/logger"
	"iapgate/internal/shared/utils"
)

// RateLimit limits requests per client IP. A limiter failure lets the
// request through.
func RateLimit(limiter ratelimit.RateLimiter, limits ratelimit.Limits, log logger.Interface) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !limits.Enabled() {
			c.Next()
			return
		}

		allowed, err := limiter.Allow(c.Request.Context(), "ip:"+c.ClientIP(), limits)
		if err != nil {
			log.Warnw("rate limiter unavailable", "error", err)
			c.Next()
			return
		}
		if !allowed {
			utils.ErrorResponse(c, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}

		c.Next()
	}
}
