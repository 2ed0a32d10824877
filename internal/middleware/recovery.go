package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"

	"github.com/payportal/authgw/internal/observability"
)

// Recovery returns a middleware that recovers from panics, logs the stack,
// and responds with an opaque 500.
func Recovery(logger observability.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = observability.NopLogger()
	}

	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				fields := []observability.Field{
					observability.Any("error", err),
					observability.String("method", c.Request.Method),
					observability.String("path", c.Request.URL.Path),
					observability.String("client_ip", c.ClientIP()),
					observability.String("stack", string(debug.Stack())),
				}
				if requestID := GetRequestID(c); requestID != "" {
					fields = append(fields, observability.String("request_id", requestID))
				}

				logger.Error("panic recovered", fields...)

				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
					"error": "Internal server error",
				})
			}
		}()

		c.Next()
	}
}
