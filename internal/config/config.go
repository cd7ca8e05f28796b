package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds application configuration
type Config struct {
	DatabaseURL        string
	ServerPort         string
	BaseURL            string
	BasePath           string
	RoutesFile         string
	EnableHSTS         bool
	RedisURL           string
	RabbitMQURL        string
	RateLimitDefault   string
	CORSReloadInterval time.Duration
	ServerDebugMode    bool
	OTELEnabled        bool
	OTELEndpoint       string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		DatabaseURL:        getEnv("DATABASE_URL", ""),
		ServerPort:         getEnv("SERVER_PORT", "8080"),
		BaseURL:            getEnv("BASE_URL", "http://localhost:8080"),
		BasePath:           getEnv("BASE_PATH", "/api"),
		RoutesFile:         getEnv("ROUTES_FILE", "routes.yaml"),
		EnableHSTS:         getEnvBool("ENABLE_HSTS", false),
		RedisURL:           getEnv("REDIS_URL", "redis://localhost:6379/0"),
		RabbitMQURL:        getEnv("RABBITMQ_URL", ""),
		RateLimitDefault:   getEnv("RATE_LIMIT_DEFAULT", "5-S"),
		CORSReloadInterval: getEnvDuration("CORS_RELOAD_INTERVAL", time.Minute),
		ServerDebugMode:    getEnvBool("SERVER_DEBUG_MODE", false),
		OTELEnabled:        getEnvBool("OTEL_ENABLED", false),
		OTELEndpoint:       getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.CORSReloadInterval < 0 {
		return nil, fmt.Errorf("CORS_RELOAD_INTERVAL must not be negative")
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1" || value == "yes"
	}
	return defaultValue
}

// getEnvDuration accepts Go durations ("30s") or plain seconds ("30")
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}
