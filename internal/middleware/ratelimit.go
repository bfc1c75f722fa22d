package middleware

import (
	"context"
	"math"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/noah-isme/hims-api/internal/service"
	appErrors "github.com/noah-isme/hims-api/pkg/errors"
	"github.com/noah-isme/hims-api/pkg/response"
)

type windowCounter interface {
	Enabled() bool
	Hit(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error)
}

// RateLimitRule bounds requests per client IP within a fixed window.
type RateLimitRule struct {
	Scope  string
	Limit  int
	Window time.Duration
}

// RateLimit rejects requests beyond rule.Limit with 429. Counter errors and a
// disabled store let the request through.
func RateLimit(counter windowCounter, rule RateLimitRule, metrics *service.MetricsService, logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(c *gin.Context) {
		if counter == nil || !counter.Enabled() || rule.Limit <= 0 {
			c.Next()
			return
		}

		key := rule.Scope + ":" + c.ClientIP()
		count, ttl, err := counter.Hit(c.Request.Context(), key, rule.Window)
		if err != nil {
			logger.Warn("rate limiter unavailable", zap.String("scope", rule.Scope), zap.Error(err))
			c.Next()
			return
		}

		remaining := int64(rule.Limit) - count
		if remaining < 0 {
			remaining = 0
		}
		c.Header("X-RateLimit-Limit", strconv.Itoa(rule.Limit))
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))

		if count > int64(rule.Limit) {
			if ttl <= 0 {
				ttl = rule.Window
			}
			c.Header("Retry-After", strconv.Itoa(int(math.Ceil(ttl.Seconds()))))
			metrics.RecordRateLimited(rule.Scope)
			response.Error(c, appErrors.ErrRateLimited)
			c.Abort()
			return
		}
		c.Next()
	}
}
