package log

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
)

// ContextKey type for context keys
type ContextKey string

const (
	// LoggerContextKey is the context key for the logger
	LoggerContextKey ContextKey = "logger"
	// RequestIDContextKey carries the request id through service calls
	RequestIDContextKey ContextKey = "request_id"
)

// ContextWithRequestID returns ctx carrying the request id
func ContextWithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, RequestIDContextKey, id)
}

// RequestIDFrom returns the request id stored in ctx, if any
func RequestIDFrom(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(RequestIDContextKey).(string)
	return id
}

// ContextWithLogger returns ctx carrying logger
func ContextWithLogger(ctx context.Context, logger *Logger) context.Context {
	return context.WithValue(ctx, LoggerContextKey, logger)
}

// FromContext extracts a logger from the request context
func FromContext(ctx context.Context) *Logger {
	if logger, ok := ctx.Value(LoggerContextKey).(*Logger); ok {
		return logger
	}
	return Nop()
}

// GinLogger logs every request once it completes, at a level that follows
// the status code.
func GinLogger(logger *Logger) gin.HandlerFunc {
	httpLogger := logger.WithComponent(ComponentHTTP)
	return func(c *gin.Context) {
		start := time.Now()
		c.Request = c.Request.WithContext(ContextWithLogger(c.Request.Context(), httpLogger))

		c.Next()

		status := c.Writer.Status()
		fields := []any{
			FieldMethod, c.Request.Method,
			FieldPath, c.Request.URL.Path,
			FieldQuery, c.Request.URL.RawQuery,
			FieldStatusCode, status,
			FieldDuration, time.Since(start).Milliseconds(),
			FieldClientIP, c.ClientIP(),
			FieldUserAgent, c.Request.UserAgent(),
			FieldSuccess, status < 400,
		}
		if len(c.Errors) > 0 {
			fields = append(fields, FieldError, c.Errors.String())
		}

		ctx := c.Request.Context()
		switch {
		case status >= 500:
			httpLogger.ErrorContext(ctx, "HTTP request completed", fields...)
		case status >= 400:
			httpLogger.WarnContext(ctx, "HTTP request completed", fields...)
		default:
			httpLogger.InfoContext(ctx, "HTTP request completed", fields...)
		}
	}
}
