package logger

import (
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

const (
	// RequestIDKey matches the header and context key used by the
	// request-id middleware.
	RequestIDKey = "X-Request-ID"

	contextKey = "logger"
)

// FromContext returns the request-scoped logger injected by Middleware.
// Outside a request (or when the middleware is not mounted) it falls back to
// the global logger tagged with whatever request id is available.
func FromContext(c echo.Context) *zap.Logger {
	if l, ok := c.Get(contextKey).(*zap.Logger); ok {
		return l
	}

	requestID, ok := c.Get(RequestIDKey).(string)
	if !ok {
		requestID = c.Request().Header.Get(RequestIDKey)
	}
	if requestID == "" {
		requestID = "unknown"
	}
	return GetLogger().With(zap.String("request_id", requestID))
}
