package apperr

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// HTTPErrorHandler translates errors returned by handlers into the
// {"detail": message} body with the status carried by the domain error.
// Unexpected errors become a generic 500; the full error is logged server-side.
func HTTPErrorHandler(log *zap.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		status := http.StatusInternalServerError
		detail := "internal server error"

		var appErr *Error
		var httpErr *echo.HTTPError
		switch {
		case errors.As(err, &appErr):
			status = appErr.Status
			detail = appErr.Message
			if cause := errors.Unwrap(appErr); cause != nil {
				log.Warn("request failed",
					zap.String("code", appErr.Code),
					zap.Int("status", status),
					zap.String("detail", detail),
					zap.Error(cause))
			}
		case errors.As(err, &httpErr):
			// Echo's own errors (404 route miss, 405) keep their status.
			status = httpErr.Code
			if msg, ok := httpErr.Message.(string); ok {
				detail = msg
			} else {
				detail = http.StatusText(status)
			}
		default:
			log.Error("unhandled error", zap.Error(err),
				zap.String("path", c.Request().URL.Path),
				zap.String("method", c.Request().Method))
		}

		var werr error
		if c.Request().Method == http.MethodHead {
			werr = c.NoContent(status)
		} else {
			werr = c.JSON(status, echo.Map{"detail": detail})
		}
		if werr != nil {
			log.Error("failed to write error response", zap.Error(werr))
		}
	}
}
