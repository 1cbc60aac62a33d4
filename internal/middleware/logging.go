package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"cogi/internal/logger"
	"cogi/internal/uuid"
)

const requestIDKey = "requestID"

// RequestLogging logs each request with a request ID, method, path, status,
// latency, client IP and, for authenticated requests, the user ID. Message
// bodies are never logged.
func RequestLogging() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" || len(requestID) > 64 {
			requestID = uuid.New()
		}
		c.Set(requestIDKey, requestID)
		c.Writer.Header().Set("X-Request-ID", requestID)

		c.Next()

		fields := []interface{}{
			"request_id", requestID,
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"latency_ms", time.Since(start).Milliseconds(),
			"client_ip", c.ClientIP(),
		}
		if userID := c.GetString(ContextUserID); userID != "" {
			fields = append(fields, "user_id", userID)
		}
		logger.Named("http").Infow("request", fields...)
	}
}
