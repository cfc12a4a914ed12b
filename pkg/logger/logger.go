// Package logger owns the process-wide zap logger and the request logging
// middleware. Handlers never hold a logger of their own; they pull the
// request-scoped one with FromContext.
package logger

import (
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"ecom-service/pkg/config"
)

var log *zap.Logger

// InitLogger builds the global logger: JSON in production, colored console
// output everywhere else, level taken from LOG_LEVEL.
func InitLogger(cfg *config.Config) {
	var zcfg zap.Config
	if cfg.Server.Env == "production" {
		zcfg = zap.NewProductionConfig()
	} else {
		zcfg = zap.NewDevelopmentConfig()
		zcfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	var level zapcore.Level
	if err := level.UnmarshalText([]byte(cfg.Log.Level)); err != nil {
		level = zapcore.InfoLevel
	}
	zcfg.Level.SetLevel(level)

	built, err := zcfg.Build()
	if err != nil {
		panic("failed to initialize logger: " + err.Error())
	}
	log = built
	log.Info("logger initialized", zap.String("level", level.String()))
}

// GetLogger returns the global logger, creating a production fallback when
// InitLogger has not run (tests, early startup failures).
func GetLogger() *zap.Logger {
	if log == nil {
		fallback, err := zap.NewProduction()
		if err != nil {
			panic("failed to create fallback logger: " + err.Error())
		}
		log = fallback
	}
	return log
}

// Middleware injects a request-scoped logger carrying the request id and
// writes one completion line per request. The tenant path segment is attached
// when the route has one, so tenant-scoped traffic can be filtered directly.
func Middleware(base *zap.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			requestID := c.Response().Header().Get(RequestIDKey)
			if requestID == "" {
				requestID = c.Request().Header.Get(RequestIDKey)
			}
			reqLogger := base.With(zap.String("request_id", requestID))
			c.Set(contextKey, reqLogger)

			err := next(c)

			fields := []zapcore.Field{
				zap.String("method", c.Request().Method),
				zap.String("path", c.Request().URL.Path),
				zap.Int("status", c.Response().Status),
				zap.Duration("latency", time.Since(start)),
				zap.String("ip", c.RealIP()),
			}
			if tenant := c.Param("tenant_name"); tenant != "" {
				fields = append(fields, zap.String("tenant", tenant))
			}

			if err != nil {
				reqLogger.Error("request failed", append(fields, zap.Error(err))...)
			} else {
				reqLogger.Info("request completed", fields...)
			}
			return err
		}
	}
}
