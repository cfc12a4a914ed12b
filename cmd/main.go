package main

import (
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"ecom-service/internal/apperr"
	"ecom-service/internal/handler"
	"ecom-service/internal/identity"
	"ecom-service/internal/keycloak"
	"ecom-service/internal/middleware"
	"ecom-service/pkg/config"
	"ecom-service/pkg/database"
	"ecom-service/pkg/logger"
	"ecom-service/prometheus"
)

func main() {
	// Load configuration from .env file and environment variables
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger with config
	logger.InitLogger(cfg)
	log := logger.GetLogger()
	log.Info("Starting e-commerce service...", cfg.LogConfig()...)

	// Initialize database
	if err := database.InitDB(cfg); err != nil {
		log.Fatal("Failed to initialize database", zap.Error(err))
	}
	log.Info("Database connection established")

	// Identity provider collaborators
	verifier := keycloak.NewVerifier(&cfg.Keycloak, log)
	adminClient := keycloak.NewAdminClient(&cfg.Keycloak, log)
	resolver := identity.NewResolver(database.GetDB(), verifier, log)
	handler.Initialize(adminClient, cfg.Pagination)

	// Initialize Echo framework
	e := echo.New()
	e.HideBanner = true
	e.HTTPErrorHandler = apperr.HTTPErrorHandler(log)
	e.Pre(echomiddleware.RemoveTrailingSlash())

	// Apply global middleware - order matters
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.CORS())
	e.Use(middleware.RequestIDMiddleware)
	e.Use(logger.Middleware(log))
	e.Use(prometheus.MetricsMiddleware())

	handler.RegisterRoutes(e, middleware.Auth(resolver))

	// Start server
	log.Info("Starting server", zap.String("port", cfg.Server.Port))
	if err := e.Start(":" + cfg.Server.Port); err != nil {
		log.Fatal("Failed to start server", zap.Error(err))
	}
}
