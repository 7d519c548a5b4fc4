package handler

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	ext "cogniview/internal/utils/extractor"
	gen "cogniview/internal/utils/generator"
	logging "cogniview/pkg/logger/pkg"
)

// RequestID propagates x-request-id into the request context, generating one when absent.
func RequestID() gin.HandlerFunc {
	extractor := ext.New()
	return func(c *gin.Context) {
		id := extractor.GetRequestID(c.Request.Header)
		if id == "" {
			id = gen.GenerateUUID()
		}
		c.Request = c.Request.WithContext(logging.WithRequestID(c.Request.Context(), id))
		c.Header(ext.RequestID, id)
		c.Next()
	}
}

// AccessLog writes one structured entry per request.
func AccessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		logger := logging.Logger(c.Request.Context())
		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		}
		if c.Writer.Status() >= 500 {
			logger.Warn("HTTP request", fields...)
			return
		}
		logger.Debug("HTTP request", fields...)
	}
}
