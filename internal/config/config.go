package config

import (
	"os"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
type Config struct {
	Database DatabaseConfig
	Redis    RedisConfig
	Server   ServerConfig
	Logging  LoggingConfig
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	URL string
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Address string // Redis address (host:port)
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port      string
	UploadDir string // where incoming claim CSVs are spooled for the worker
}

// LoggingConfig holds logging-related configuration
type LoggingConfig struct {
	Level  string
	Format string // json, console
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env files (fails silently if files don't exist)
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	return &Config{
		Database: DatabaseConfig{
			URL: envOr("DATABASE_URL", "claimmatrix.sqlite"),
		},
		Redis: RedisConfig{
			Address: envOr("REDIS_ADDRESS", "localhost:6379"),
		},
		Server: ServerConfig{
			Port:      envOr("PORT", "8001"),
			UploadDir: envOr("UPLOAD_DIR", os.TempDir()),
		},
		Logging: LoggingConfig{
			Level:  envOr("LOG_LEVEL", "info"),
			Format: envOr("LOG_FORMAT", "json"),
		},
	}, nil
}

func envOr(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
