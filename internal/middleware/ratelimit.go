package middleware

import (
	"context"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/zfogg/blog/backend/internal/cache"
	"github.com/zfogg/blog/backend/internal/errors"
	"github.com/zfogg/blog/backend/internal/logger"
	"github.com/zfogg/blog/backend/internal/metrics"
	"github.com/zfogg/blog/backend/internal/util"
	"go.uber.org/zap"
)

// RateLimitConfig holds configuration for rate limiting
type RateLimitConfig struct {
	// Scope separates counters of limiters mounted on different routes.
	Scope string
	// Requests per window
	Limit int
	// Window duration
	Window time.Duration
}

// DefaultRateLimitConfig allows perMinute requests per client per minute.
func DefaultRateLimitConfig(perMinute int) RateLimitConfig {
	return RateLimitConfig{
		Scope:  "api",
		Limit:  perMinute,
		Window: time.Minute,
	}
}

// AuthRateLimitConfig returns stricter limits for login and OTP endpoints
func AuthRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		Scope:  "auth",
		Limit:  10,
		Window: time.Minute,
	}
}

// RateLimit is a fixed-window limiter keyed by client IP. Counters live in the
// cache store so every instance behind a load balancer shares them.
func RateLimit(store cache.Store, config RateLimitConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		if config.Limit <= 0 {
			c.Next()
			return
		}

		now := time.Now()
		window := now.UnixNano() / int64(config.Window)
		key := cache.RateLimitKey(config.Scope+":"+c.ClientIP(), window)

		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		count, err := store.IncrWithExpiry(ctx, key, config.Window)
		if err != nil {
			// Letting requests through with a broken limiter would leave the API open.
			logger.Log.Error("Rate limit check failed - rejecting request",
				logger.WithIP(c.ClientIP()),
				zap.Error(err),
			)
			util.RespondWithAPIError(c, errors.ServiceUnavailable("Rate limiter"))
			return
		}

		remaining := config.Limit - int(count)
		if remaining < 0 {
			remaining = 0
		}
		c.Header("X-RateLimit-Limit", strconv.Itoa(config.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))

		if int(count) > config.Limit {
			windowEnd := time.Unix(0, (window+1)*int64(config.Window))
			retryAfter := int(windowEnd.Sub(now).Seconds()) + 1
			c.Header("Retry-After", strconv.Itoa(retryAfter))
			metrics.RecordRateLimitExceeded(c.FullPath())
			util.RespondWithAPIError(c, errors.RateLimited(""))
			return
		}
		c.Next()
	}
}

