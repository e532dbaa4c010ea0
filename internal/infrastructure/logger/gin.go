package logger

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// GinMiddleware logs each RPC served by the contract server. The request
// logger is stored in the request context for handlers to pick up with
// GetGinLogger.
func GinMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		reqLogger := logger.With(
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
		)
		c.Request = c.Request.WithContext(WithContext(c.Request.Context(), reqLogger))

		c.Next()

		status := c.Writer.Status()
		fields := []zap.Field{
			zap.Int("status", status),
			zap.Duration("latency", time.Since(start)),
			zap.Int("body_size", c.Writer.Size()),
		}
		if c.Query("batch") == "1" {
			fields = append(fields, zap.Bool("batch", true))
		}
		if vendorID := GetVendorID(c.Request.Context()); vendorID != "" {
			fields = append(fields, zap.String("vendor_id", vendorID))
		}

		switch {
		case status >= http.StatusInternalServerError:
			reqLogger.Error("RPC", fields...)
		case status >= http.StatusBadRequest:
			reqLogger.Warn("RPC", fields...)
		default:
			reqLogger.Info("RPC", fields...)
		}
	}
}

// TagVendor attaches the authenticated vendor to the request logger
func TagVendor(c *gin.Context, vendorID string) {
	ctx, _ := WithVendor(c.Request.Context(), GetGinLogger(c), vendorID)
	c.Request = c.Request.WithContext(ctx)
}

// Recovery turns a handler panic into a logged 500
func Recovery(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				logger.Error("Panic recovered",
					zap.String("path", c.Request.URL.Path),
					zap.Any("error", err),
					zap.Stack("stacktrace"),
				)
				c.AbortWithStatus(http.StatusInternalServerError)
			}
		}()
		c.Next()
	}
}

// GetGinLogger returns the request logger, or a no-op logger outside
// GinMiddleware
func GetGinLogger(c *gin.Context) *zap.Logger {
	return FromContext(c.Request.Context())
}
