package logger

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
)

// RequestIDHeader is read from and echoed back on every request.
const RequestIDHeader = "X-Request-ID"

// RequestLoggingMiddleware logs all incoming requests.
// It reuses or generates a request ID, stores it in the request context and logs request details.
func RequestLoggingMiddleware(logger *Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		requestID := c.Request.Header.Get(RequestIDHeader)
		if requestID == "" {
			requestID = GenerateRequestID()
		}
		ctx := WithRequestID(c.Request.Context(), requestID)
		ctx = WithOperation(ctx, "http_request")
		c.Request = c.Request.WithContext(ctx)
		c.Header(RequestIDHeader, requestID)

		log := logger.WithContext(ctx).WithComponent("http")

		log.Info("request started",
			slog.String("method", c.Request.Method),
			slog.String("path", c.Request.URL.Path),
			slog.String("remote_addr", c.ClientIP()),
			slog.String("user_agent", c.Request.UserAgent()),
		)

		c.Next()

		log.Info("request completed",
			slog.Int("status", c.Writer.Status()),
			slog.Duration("duration", time.Since(start)),
			slog.Int("response_size", c.Writer.Size()),
		)
	}
}
