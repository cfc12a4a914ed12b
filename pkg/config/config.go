package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"gorm.io/gorm/logger"
)

// DBConfig holds database configuration
type DBConfig struct {
	Host            string
	Port            string
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxIdleConns    int
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
	LogLevel        logger.LogLevel
}

// GetDSN returns the PostgreSQL connection string
func (c *DBConfig) GetDSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port string
	Env  string
}

// KeycloakConfig holds the identity-provider endpoints and credentials.
// JWKSURL is required for token verification; Audience and Issuer are
// validated only when set. The admin credentials drive user provisioning
// and role mirroring through the admin API.
type KeycloakConfig struct {
	JWKSURL       string
	Issuer        string
	Audience      string
	AdminURL      string
	Realm         string
	AdminUsername string
	AdminPassword string
	ClientID      string
	ClientSecret  string
	Timeout       time.Duration
	JWKSCacheTTL  time.Duration
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level string
}

// MetricsConfig holds metrics configuration
type MetricsConfig struct {
	Prefix string
}

// PaginationConfig bounds the skip/limit query parameters on list endpoints.
type PaginationConfig struct {
	DefaultLimit int
	MaxLimit     int
}

// Config holds all configuration
type Config struct {
	DB         DBConfig
	Server     ServerConfig
	Keycloak   KeycloakConfig
	Log        LogConfig
	Metrics    MetricsConfig
	Pagination PaginationConfig
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		// Not returning error as .env file is optional
		fmt.Printf("Warning: .env file not found, using environment variables\n")
	}

	config := &Config{
		DB: DBConfig{
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnv("DB_PORT", "5432"),
			User:            getEnv("DB_USER", "postgres"),
			Password:        getEnv("DB_PASSWORD", "password"),
			DBName:          getEnv("DB_NAME", "ecom_service"),
			SSLMode:         getEnv("DB_SSL_MODE", "disable"),
			MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 10),
			MaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 100),
			ConnMaxLifetime: getEnvAsDuration("DB_CONN_MAX_LIFETIME", 1*time.Hour),
			LogLevel:        getEnvAsLogLevel("DB_LOG_LEVEL", logger.Warn),
		},
		Server: ServerConfig{
			Port: getEnv("SERVER_PORT", "8080"),
			Env:  getEnv("APP_ENV", "development"),
		},
		Keycloak: KeycloakConfig{
			JWKSURL:       getEnv("KEYCLOAK_JWKS_URL", ""),
			Issuer:        getEnv("KEYCLOAK_ISSUER", ""),
			Audience:      getEnv("KEYCLOAK_AUDIENCE", ""),
			AdminURL:      getEnv("KEYCLOAK_ADMIN_URL", ""),
			Realm:         getEnv("KEYCLOAK_REALM", "ecommerce"),
			AdminUsername: getEnv("KEYCLOAK_ADMIN_USERNAME", ""),
			AdminPassword: getEnv("KEYCLOAK_ADMIN_PASSWORD", ""),
			ClientID:      getEnv("KEYCLOAK_CLIENT_ID", ""),
			ClientSecret:  getEnv("KEYCLOAK_CLIENT_SECRET", ""),
			Timeout:       getEnvAsDuration("KEYCLOAK_TIMEOUT", 5*time.Second),
			JWKSCacheTTL:  getEnvAsDuration("KEYCLOAK_JWKS_CACHE_TTL", 1*time.Hour),
		},
		Log: LogConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Metrics: MetricsConfig{
			Prefix: getEnv("METRICS_PREFIX", "ecom"),
		},
		Pagination: PaginationConfig{
			DefaultLimit: getEnvAsInt("PAGINATION_DEFAULT_LIMIT", 10),
			MaxLimit:     getEnvAsInt("PAGINATION_MAX_LIMIT", 100),
		},
	}

	return config, nil
}

// LogConfig returns the configuration as a zap logger-friendly format
func (c *Config) LogConfig() []zap.Field {
	return []zap.Field{
		zap.String("environment", c.Server.Env),
		zap.String("db_host", c.DB.Host),
		zap.String("db_port", c.DB.Port),
		zap.String("db_name", c.DB.DBName),
		zap.String("server_port", c.Server.Port),
		zap.String("keycloak_realm", c.Keycloak.Realm),
	}
}

// Helper function to get environment variables with defaults
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// Helper function to get environment variables as integers
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// Helper function to get environment variables as durations
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// Helper function to get environment variables as log levels
func getEnvAsLogLevel(key string, defaultValue logger.LogLevel) logger.LogLevel {
	valueStr := getEnv(key, "")
	switch valueStr {
	case "silent":
		return logger.Silent
	case "error":
		return logger.Error
	case "warn":
		return logger.Warn
	case "info":
		return logger.Info
	default:
		return defaultValue
	}
}
