package middleware

import (
	"errors"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"ecom-service/internal/apperr"
	"ecom-service/internal/identity"
	"ecom-service/internal/model"
	"ecom-service/pkg/logger"
	"ecom-service/prometheus"
)

// UserContextKey is where the resolved user is stored in the echo context.
const UserContextKey = "current_user"

// Auth resolves the Authorization header into a local user via the identity
// resolver and stores it in the request context. Missing credentials and
// rejected tokens both end the request with 401; role checks happen later in
// the handlers so 401 and 403 stay distinct.
func Auth(resolver *identity.Resolver) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			log := logger.FromContext(c)

			user, err := resolver.Resolve(c.Request().Context(), c.Request().Header.Get("Authorization"))
			if err != nil {
				var appErr *apperr.Error
				if errors.As(err, &appErr) {
					prometheus.RecordAuthError(appErr.Code)
				}
				log.Warn("authentication failed", zap.Error(err))
				return err
			}

			c.Set(UserContextKey, user)
			log.Debug("request authenticated",
				zap.String("username", user.Username),
				zap.String("role", user.Role))
			return next(c)
		}
	}
}

// CurrentUser returns the user placed in the context by Auth.
func CurrentUser(c echo.Context) (*model.User, error) {
	user, ok := c.Get(UserContextKey).(*model.User)
	if !ok || user == nil {
		return nil, apperr.Unauthenticated("authentication required")
	}
	return user, nil
}
