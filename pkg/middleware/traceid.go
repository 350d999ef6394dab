package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	ContextTraceID = "trace_id"
	ContextLogger  = "logger"
	traceHeader    = "X-Trace-ID"
)

// TraceIDMiddleware tags the request with a trace id (reusing a valid
// inbound X-Trace-ID) and stores a request-scoped logger.
func TraceIDMiddleware(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		traceID := c.GetHeader(traceHeader)
		if _, err := uuid.Parse(traceID); err != nil {
			traceID = uuid.New().String()
		}
		c.Set(ContextTraceID, traceID)
		c.Set(ContextLogger, log.With(zap.String("trace_id", traceID)))
		c.Writer.Header().Set(traceHeader, traceID)
		c.Next()
	}
}

// RequestLogger writes one line per request after the handler chain ran.
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		log := zap.L()
		if l, ok := c.Get(ContextLogger); ok {
			if zl, ok := l.(*zap.Logger); ok {
				log = zl
			}
		}
		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		}
		switch status := c.Writer.Status(); {
		case status >= 500:
			log.Error("request", fields...)
		case status >= 400:
			log.Warn("request", fields...)
		default:
			log.Info("request", fields...)
		}
	}
}
