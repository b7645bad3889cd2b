package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// parseEnv overlays Config values from environment variables. Unset or
// malformed variables leave the current values untouched.
func parseEnv(config *Config) {
	config.Addr = getEnv("ADDRESS", config.Addr)
	config.DatabaseDSN = getEnv("DATABASE_DSN", config.DatabaseDSN)

	config.RedisAddr = getEnv("REDIS_ADDR", config.RedisAddr)
	config.RedisPassword = getEnv("REDIS_PASSWORD", config.RedisPassword)
	config.RedisDB = getEnvInt("REDIS_DB", config.RedisDB)

	config.SecretKey = getEnv("SECRET_KEY", config.SecretKey)
	config.SigningAlgorithm = getEnv("SIGNING_ALGORITHM", config.SigningAlgorithm)
	config.AccessTokenValidity = getEnvDuration("ACCESS_TOKEN_VALIDITY", config.AccessTokenValidity)
	config.RefreshTokenValidity = getEnvDuration("REFRESH_TOKEN_VALIDITY", config.RefreshTokenValidity)

	config.PasswordMinLength = getEnvInt("PASSWORD_MIN_LENGTH", config.PasswordMinLength)
	config.PasswordRequireUpper = getEnvBool("PASSWORD_REQUIRE_UPPER", config.PasswordRequireUpper)
	config.PasswordRequireLower = getEnvBool("PASSWORD_REQUIRE_LOWER", config.PasswordRequireLower)
	config.PasswordRequireNumbers = getEnvBool("PASSWORD_REQUIRE_NUMBERS", config.PasswordRequireNumbers)
	config.PasswordRequireSymbols = getEnvBool("PASSWORD_REQUIRE_SYMBOLS", config.PasswordRequireSymbols)

	config.MaxLoginAttempts = getEnvInt("MAX_LOGIN_ATTEMPTS", config.MaxLoginAttempts)
	config.LockoutDuration = getEnvDuration("LOCKOUT_DURATION", config.LockoutDuration)

	config.LoginRateLimitMax = getEnvInt("LOGIN_RATE_LIMIT_MAX", config.LoginRateLimitMax)
	config.LoginRateLimitWindow = getEnvDuration("LOGIN_RATE_LIMIT_WINDOW", config.LoginRateLimitWindow)

	config.RequestRateLimitMax = getEnvInt("REQUEST_RATE_LIMIT_MAX", config.RequestRateLimitMax)
	config.RequestRateLimitWindow = getEnvDuration("REQUEST_RATE_LIMIT_WINDOW", config.RequestRateLimitWindow)
	config.RequestBurstMax = getEnvInt("REQUEST_BURST_MAX", config.RequestBurstMax)
	config.RequestBurstWindow = getEnvDuration("REQUEST_BURST_WINDOW", config.RequestBurstWindow)

	config.EnableRegistration = getEnvBool("ENABLE_REGISTRATION", config.EnableRegistration)

	config.S3AccessKeyID = getEnv("S3_ACCESS_KEY_ID", config.S3AccessKeyID)
	config.S3SecretAccessKey = getEnv("S3_SECRET_ACCESS_KEY", config.S3SecretAccessKey)
	config.S3Bucket = getEnv("S3_BUCKET", config.S3Bucket)
	config.S3Region = getEnv("S3_REGION", config.S3Region)
	config.S3BaseEndpoint = getEnv("S3_BASE_ENDPOINT", config.S3BaseEndpoint)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
