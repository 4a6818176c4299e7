package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/chachabrian/haulbook-backend/pkg/logger"
)

// RequestLogger writes one line per request once the handler chain returns.
func RequestLogger(log logger.ILogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := []logger.Field{
			logger.String("method", c.Request.Method),
			logger.String("path", c.FullPath()),
			logger.Int("status", c.Writer.Status()),
			logger.Duration("latency", time.Since(start)),
		}
		if id := UserID(c); id != "" {
			fields = append(fields, logger.String("userId", id))
		}
		if len(c.Errors) > 0 {
			fields = append(fields, logger.String("error", c.Errors.String()))
		}

		switch status := c.Writer.Status(); {
		case status >= 500:
			log.Error("request", fields...)
		case status >= 400:
			log.Warning("request", fields...)
		default:
			log.Info("request", fields...)
		}
	}
}
