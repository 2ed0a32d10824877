package middleware

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/payportal/authgw/internal/audit"
	"github.com/payportal/authgw/internal/observability"
	"github.com/payportal/authgw/internal/ratelimit"
)

// RateLimitConfig configures the rate limiting middleware.
type RateLimitConfig struct {
	Limiter ratelimit.Limiter
	KeyFunc ratelimit.KeyFunc
	Logger  observability.Logger
	Audit   audit.Logger
}

// RateLimitWithConfig returns a middleware enforcing a per-client request
// budget. Rejected requests receive 429 and never consume budget. When the
// limiter itself fails the request is allowed through rather than blocked.
func RateLimitWithConfig(cfg RateLimitConfig) gin.HandlerFunc {
	limiter := cfg.Limiter
	if limiter == nil {
		limiter = ratelimit.NewNoopLimiter()
	}
	keyFunc := cfg.KeyFunc
	if keyFunc == nil {
		keyFunc = ratelimit.NewClientIPExtractor(nil).Extract
	}
	logger := cfg.Logger
	if logger == nil {
		logger = observability.NopLogger()
	}
	auditLogger := cfg.Audit
	if auditLogger == nil {
		auditLogger = audit.NewNoopLogger()
	}

	return func(c *gin.Context) {
		key := keyFunc(c.Request)

		result, err := limiter.Allow(c.Request.Context(), key)
		if err != nil {
			logger.Warn("rate limiter unavailable, allowing request",
				observability.String("key", key),
				observability.Error(err),
			)
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(result.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))

		if !result.Allowed {
			retryAfter := int64(result.RetryAfter.Seconds())
			if retryAfter < 1 {
				retryAfter = 1
			}
			c.Header("Retry-After", strconv.FormatInt(retryAfter, 10))

			logger.Warn("rate limit exceeded",
				observability.String("key", key),
				observability.String("path", c.Request.URL.Path),
				observability.Int("limit", result.Limit),
			)
			auditLogger.LogSecurity(c.Request.Context(),
				audit.ActionRateLimitExceeded, audit.OutcomeDenied,
				&audit.Subject{IPAddress: key, UserAgent: c.Request.UserAgent()},
				map[string]interface{}{"path": c.Request.URL.Path},
			)

			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "Too many requests from this IP, please try again later.",
			})
			return
		}

		c.Next()
	}
}
