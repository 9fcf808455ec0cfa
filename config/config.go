package config

import (
	"log"
	"os"
	"strconv"
	"time"
)

// Config holds every setting of the stockledger service.
type Config struct {
	// General
	Port        string
	Environment string
	LogLevel    string

	// Database (SQLite file or PostgreSQL, picked from the URL scheme)
	DatabaseURL string
	DBTimeout   time.Duration

	// Cache (Redis). An empty address disables caching and rate limiting.
	RedisAddr string
	CacheTTL  time.Duration

	// Security (JWT)
	JWTSecretKey string
	TokenExpiry  time.Duration

	// Rate limiting
	RateLimitMaxRequests int
	RateLimitPeriod      time.Duration

	// Admin account created at startup when missing
	AdminUsername string
	AdminEmail    string
	AdminPassword string
}

// LoadConfig reads the configuration from the environment.
func LoadConfig() *Config {
	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		Environment: getEnv("ENV", "development"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),

		DatabaseURL: getEnv("DATABASE_URL", "sqlite://inventory.db"),
		DBTimeout:   getDurationEnv("DB_TIMEOUT_SEC", 5) * time.Second,

		RedisAddr: getEnv("REDIS_ADDR", ""),
		CacheTTL:  getDurationEnv("CACHE_TTL_SEC", 300) * time.Second,

		// The service refuses to start without a signing key.
		JWTSecretKey: mustGetEnv("JWT_SECRET_KEY"),
		TokenExpiry:  getDurationEnv("JWT_EXPIRY_MIN", 60) * time.Minute,

		RateLimitMaxRequests: getIntEnv("RATE_LIMIT_MAX_REQUESTS", 100),
		RateLimitPeriod:      getDurationEnv("RATE_LIMIT_PERIOD_MIN", 1) * time.Minute,

		AdminUsername: getEnv("ADMIN_USERNAME", "admin"),
		AdminEmail:    getEnv("ADMIN_EMAIL", "admin@example.com"),
		AdminPassword: getEnv("ADMIN_PASSWORD", ""),
	}

	return cfg
}

// LoadDatabaseConfig reads only the database settings, for tools that do not serve HTTP.
func LoadDatabaseConfig() *Config {
	return &Config{
		DatabaseURL: getEnv("DATABASE_URL", "sqlite://inventory.db"),
		DBTimeout:   getDurationEnv("DB_TIMEOUT_SEC", 5) * time.Second,
	}
}

// getEnv reads the variable or returns the default.
func getEnv(key string, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// mustGetEnv reads the variable and exits when it is not set.
func mustGetEnv(key string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	log.Fatalf("config error: environment variable %s must be set", key)
	return ""
}

// getDurationEnv reads an integer variable as a time.Duration (unit applied by the caller).
func getDurationEnv(key string, defaultValue int) time.Duration {
	return time.Duration(getIntEnv(key, defaultValue))
}

// getIntEnv reads an integer variable.
func getIntEnv(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		log.Printf("config warning: %s=%q is not an integer, using default %d", key, valueStr, defaultValue)
		return defaultValue
	}
	return value
}
