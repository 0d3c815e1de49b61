package app

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Issuer    string // Required: issuer claim for access tokens
	JWTSecret string // Required: HS256 signing secret

	DatabaseFile         string        // Optional: path to SQLite database file (default: ./auth.db)
	AccessTokenTTL       time.Duration // Optional: access token lifetime (default: 15m)
	RefreshTokenTTL      time.Duration // Optional: refresh token lifetime (default: 7 days)
	OtpCodeLength        int           // Optional: digits per one-time code (default: 6)
	OtpTTL               time.Duration // Optional: one-time code lifetime (default: 5m)
	OtpMaxAttempts       int           // Optional: wrong-code budget per session (default: 3)
	SESRegion            string        // Optional: AWS region for SES delivery (empty disables SES)
	SESFromAddress       string        // Optional: sender address for outbound email
	Env                  string        // Environment (dev, staging, prod) (default: dev)
	LogLevel             string        // Log level (debug, info, warn, error) (default: info)
	LogFormat            string        // Log format (json, text) (default: json)
	ShutdownGracePeriod  time.Duration // Graceful shutdown timeout (default: 10s)
	HousekeepingInterval time.Duration // Housekeeping interval (default: 1h)
}

func LoadConfig() Config {
	// A local .env is a development convenience; absence is not an error.
	_ = godotenv.Load()

	cfg := Config{
		Issuer:               getEnvOrDefault("AUTH_ISSUER", "marketplace-auth"),
		JWTSecret:            os.Getenv("AUTH_JWT_SECRET"),
		DatabaseFile:         getEnvOrDefault("AUTH_DATABASE_FILE", "auth.db"),
		AccessTokenTTL:       getEnvDurationOrDefault("AUTH_ACCESS_TOKEN_TTL", 15*time.Minute),
		RefreshTokenTTL:      getEnvDurationOrDefault("AUTH_REFRESH_TOKEN_TTL", 7*24*time.Hour),
		OtpCodeLength:        getEnvIntOrDefault("AUTH_OTP_CODE_LENGTH", 6),
		OtpTTL:               getEnvDurationOrDefault("AUTH_OTP_TTL", 5*time.Minute),
		OtpMaxAttempts:       getEnvIntOrDefault("AUTH_OTP_MAX_ATTEMPTS", 3),
		SESRegion:            os.Getenv("AUTH_SES_REGION"),
		SESFromAddress:       os.Getenv("AUTH_SES_FROM_ADDRESS"),
		Env:                  getEnvOrDefault("ENV", "dev"),
		LogLevel:             getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:            getEnvOrDefault("LOG_FORMAT", "json"),
		ShutdownGracePeriod:  getEnvDurationOrDefault("SHUTDOWN_GRACE_PERIOD", 10*time.Second),
		HousekeepingInterval: getEnvDurationOrDefault("HOUSEKEEPING_INTERVAL", 1*time.Hour),
	}

	return cfg
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if intValue, err := strconv.Atoi(value); err == nil {
		return intValue
	}

	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}

	// Integer values are read as minutes.
	if minutes, err := strconv.Atoi(value); err == nil {
		return time.Duration(minutes) * time.Minute
	}

	return defaultValue
}
