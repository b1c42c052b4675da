package logger

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
)

// GinMiddleware logs one http_access line per request. Request bodies are never read.
func GinMiddleware(l *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}

		attrs := []any{
			"method", c.Request.Method,
			"path", route,
			"status", c.Writer.Status(),
			"bytes", c.Writer.Size(),
			"duration_ms", time.Since(start).Milliseconds(),
			"ip", c.ClientIP(),
		}
		if len(c.Errors) > 0 {
			attrs = append(attrs, "errors", c.Errors.String())
		}

		if c.Writer.Status() >= 500 {
			l.Warn("http_access", attrs...)
			return
		}
		l.Debug("http_access", attrs...)
	}
}
