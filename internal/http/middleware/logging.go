// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file provides correlation IDs, the request-scoped logger and panic
// recovery:
//
//   - RequestID() ensures every request carries a correlation ID. Inbound
//     X-Request-ID values are reused only when they look like an ID, so a
//     caller cannot smuggle arbitrary text into every log line.
//   - LoggerFrom() returns the request-scoped zerolog.Logger attached by
//     RedactingLogger, carrying request_id and, when tracing is on, the
//     trace_id/span_id of the otelgin span.
//   - Recovery() converts panics into the JSON error envelope, logs the stack
//     and counts the panic in http_panics_total.
//
// Recommended order: RequestID → RedactingLogger → Recovery.
package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/tbourn/fanclub-backend/internal/observability"
)

const (
	// requestIDKey is the Gin context key under which the request ID is stored.
	requestIDKey = "requestID"
	// loggerKey is the Gin context key of the request-scoped logger.
	loggerKey = "logger"
	// requestIDHeader is the HTTP header used to propagate the correlation ID.
	requestIDHeader = "X-Request-ID"
	// maxRequestIDLength bounds accepted inbound IDs.
	maxRequestIDLength = 128
	// maxQueryLogLength caps the number of bytes of the raw query string logged.
	maxQueryLogLength = 2048
)

// RequestID attaches (or propagates) a correlation identifier per request.
//
// An inbound X-Request-ID is reused when it is at most 128 characters of
// [A-Za-z0-9._:-]; anything else is replaced by a new UUIDv4. The ID is
// echoed in the response header and stored in the Gin context.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := c.GetHeader(requestIDHeader)
		if !validRequestID(rid) {
			rid = uuid.NewString()
		}
		c.Set(requestIDKey, rid)
		c.Writer.Header().Set(requestIDHeader, rid)
		c.Next()
	}
}

// RequestIDFrom returns the correlation ID of the request, or "" when
// RequestID did not run.
func RequestIDFrom(c *gin.Context) string {
	if v, ok := c.Get(requestIDKey); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return c.Writer.Header().Get(requestIDHeader)
}

func validRequestID(s string) bool {
	if s == "" || len(s) > maxRequestIDLength {
		return false
	}
	for i := 0; i < len(s); i++ {
		ch := s[i]
		switch {
		case ch >= 'a' && ch <= 'z', ch >= 'A' && ch <= 'Z', ch >= '0' && ch <= '9':
		case ch == '-' || ch == '_' || ch == '.' || ch == ':':
		default:
			return false
		}
	}
	return true
}

// attachLogger stores a request-scoped logger in c and returns it.
func attachLogger(c *gin.Context, path string) *zerolog.Logger {
	zc := log.With().
		Str("request_id", RequestIDFrom(c)).
		Str("method", c.Request.Method).
		Str("path", path)
	l := observability.WithTrace(c.Request.Context(), zc).Logger()
	c.Set(loggerKey, &l)
	return &l
}

// Recovery intercepts panics, logs a stack trace, and returns a JSON 500 error.
//
// If nothing was written yet the body is the standard envelope
// { "request_id": "...", "code": "internal_error", "message": "internal server error" }.
// A panic during a webhook therefore surfaces as a 500 and the gateway
// redelivers; the reconciliation transaction has already rolled back.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if rec := recover(); rec != nil {
				path := c.FullPath()
				if path == "" {
					path = unmatchedPath
				}
				httpPanics.WithLabelValues(path).Inc()

				rid := RequestIDFrom(c)
				LoggerFrom(c).Error().
					Interface("panic", rec).
					Bytes("stack", debug.Stack()).
					Msg("panic recovered")

				// Only write if nothing has been written yet.
				if !c.Writer.Written() {
					c.Header(requestIDHeader, rid)
					c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
						"request_id": rid,
						"code":       "internal_error",
						"message":    "internal server error",
					})
					return
				}
				c.AbortWithStatus(http.StatusInternalServerError)
			}
		}()
		c.Next()
	}
}

// LoggerFrom returns the request-scoped zerolog.Logger.
//
// Without RedactingLogger in the chain a fallback is built from the global
// logger with whatever request ID and trace context are available, so
// callers never need nil checks.
func LoggerFrom(c *gin.Context) *zerolog.Logger {
	if v, ok := c.Get(loggerKey); ok {
		if lg, ok := v.(*zerolog.Logger); ok {
			return lg
		}
	}
	zc := log.With()
	if rid := RequestIDFrom(c); rid != "" {
		zc = zc.Str("request_id", rid)
	}
	if c.Request != nil {
		zc = observability.WithTrace(c.Request.Context(), zc)
	}
	l := zc.Logger()
	return &l
}

// truncate returns s unchanged when within n bytes, otherwise it cuts s to
// n bytes and appends an ellipsis. n <= 0 disables truncation.
func truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	return s[:n] + "…"
}
