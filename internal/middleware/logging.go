package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/payportal/authgw/internal/observability"
)

// Logging returns a middleware that writes one structured access log entry
// per request after the handler chain completes.
func Logging(logger observability.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = observability.NopLogger()
	}

	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		fields := []observability.Field{
			observability.String("method", c.Request.Method),
			observability.String("path", path),
			observability.Int("status", c.Writer.Status()),
			observability.Duration("duration", time.Since(start)),
			observability.String("client_ip", c.ClientIP()),
			observability.Int("response_size", c.Writer.Size()),
		}
		if query != "" {
			fields = append(fields, observability.String("query", query))
		}
		if requestID := GetRequestID(c); requestID != "" {
			fields = append(fields, observability.String("request_id", requestID))
		}
		if len(c.Errors) > 0 {
			fields = append(fields, observability.String("errors", c.Errors.String()))
		}

		status := c.Writer.Status()
		switch {
		case status >= 500:
			logger.Error("request completed", fields...)
		case status >= 400:
			logger.Warn("request completed", fields...)
		default:
			logger.Info("request completed", fields...)
		}
	}
}
