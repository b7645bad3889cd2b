package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/webstack/webstack/internal/flagx"
	"github.com/webstack/webstack/internal/timex"
)

// JsonConfig defines a configuration structure tailored for JSON
// unmarshalling. It uses timex.Duration for interval fields, which allows
// parsing both string values such as "30m" and integer nanoseconds.
//
// This struct is an intermediate DTO used only for reading JSON
// configuration files. After unmarshalling, its fields are copied into the
// runtime Config struct which uses time.Duration.
type JsonConfig struct {
	Addr        string `json:"addr"`
	DatabaseDSN string `json:"database_dsn"`

	RedisAddr     string `json:"redis_addr"`
	RedisPassword string `json:"redis_password"`
	RedisDB       *int   `json:"redis_db"`

	SecretKey            string         `json:"secret_key"`
	SigningAlgorithm     string         `json:"signing_algorithm"`
	AccessTokenValidity  timex.Duration `json:"access_token_validity"`
	RefreshTokenValidity timex.Duration `json:"refresh_token_validity"`

	PasswordMinLength      *int  `json:"password_min_length"`
	PasswordRequireUpper   *bool `json:"password_require_upper"`
	PasswordRequireLower   *bool `json:"password_require_lower"`
	PasswordRequireNumbers *bool `json:"password_require_numbers"`
	PasswordRequireSymbols *bool `json:"password_require_symbols"`

	MaxLoginAttempts *int           `json:"max_login_attempts"`
	LockoutDuration  timex.Duration `json:"lockout_duration"`

	LoginRateLimitMax    *int           `json:"login_rate_limit_max"`
	LoginRateLimitWindow timex.Duration `json:"login_rate_limit_window"`

	RequestRateLimitMax    *int           `json:"request_rate_limit_max"`
	RequestRateLimitWindow timex.Duration `json:"request_rate_limit_window"`
	RequestBurstMax        *int           `json:"request_burst_max"`
	RequestBurstWindow     timex.Duration `json:"request_burst_window"`

	EnableRegistration *bool `json:"enable_registration"`

	S3AccessKeyID     string `json:"s3_access_key_id"`
	S3SecretAccessKey string `json:"s3_secret_access_key"`
	S3Bucket          string `json:"s3_bucket"`
	S3Region          string `json:"s3_region"`
	S3BaseEndpoint    string `json:"s3_base_endpoint"`
}

// parseJson loads configuration values from a JSON file into the provided
// Config instance. The file path comes from the -c or -config command-line
// flags; when neither is set, no JSON file is loaded. Absent JSON fields
// leave the current Config values untouched. An unreadable or invalid file
// panics: a requested-but-broken config file is not a condition to run with.
func parseJson(config *Config) {

	jsonConfigFile := flagx.JsonConfigFlags()

	// nothing to load
	if jsonConfigFile == "" {
		return
	}

	c := &JsonConfig{}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	setString(&config.Addr, c.Addr)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.RedisAddr, c.RedisAddr)
	setString(&config.RedisPassword, c.RedisPassword)
	setInt(&config.RedisDB, c.RedisDB)
	setString(&config.SecretKey, c.SecretKey)
	setString(&config.SigningAlgorithm, c.SigningAlgorithm)
	setDuration(&config.AccessTokenValidity, c.AccessTokenValidity)
	setDuration(&config.RefreshTokenValidity, c.RefreshTokenValidity)
	setInt(&config.PasswordMinLength, c.PasswordMinLength)
	setBool(&config.PasswordRequireUpper, c.PasswordRequireUpper)
	setBool(&config.PasswordRequireLower, c.PasswordRequireLower)
	setBool(&config.PasswordRequireNumbers, c.PasswordRequireNumbers)
	setBool(&config.PasswordRequireSymbols, c.PasswordRequireSymbols)
	setInt(&config.MaxLoginAttempts, c.MaxLoginAttempts)
	setDuration(&config.LockoutDuration, c.LockoutDuration)
	setInt(&config.LoginRateLimitMax, c.LoginRateLimitMax)
	setDuration(&config.LoginRateLimitWindow, c.LoginRateLimitWindow)
	setInt(&config.RequestRateLimitMax, c.RequestRateLimitMax)
	setDuration(&config.RequestRateLimitWindow, c.RequestRateLimitWindow)
	setInt(&config.RequestBurstMax, c.RequestBurstMax)
	setDuration(&config.RequestBurstWindow, c.RequestBurstWindow)
	setBool(&config.EnableRegistration, c.EnableRegistration)
	setString(&config.S3AccessKeyID, c.S3AccessKeyID)
	setString(&config.S3SecretAccessKey, c.S3SecretAccessKey)
	setString(&config.S3Bucket, c.S3Bucket)
	setString(&config.S3Region, c.S3Region)
	setString(&config.S3BaseEndpoint, c.S3BaseEndpoint)
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}

func setBool(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}

func setDuration(dst *time.Duration, v timex.Duration) {
	if v.Duration != 0 {
		*dst = v.Duration
	}
}
