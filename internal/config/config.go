// Package config validates the coordinator's environment configuration at
// startup, aggregating every problem into a single error the way the
// teacher backend's ValidateEnv does, rather than failing on the first bad
// variable.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// Config holds the coordinator's validated bootstrap configuration.
type Config struct {
	BindAddr  string
	LogLevel  string
	DevMode   bool
	GoEnv     string

	RedisEnabled bool
	RedisAddr    string

	LoginRateLimit string // ulule/limiter formatted rate, e.g. "20-M"

	EnforceNameUniqueness bool // legacy /api/matchmaking behavior

	AllowedOrigins []string
}

const (
	defaultBindAddr       = "0.0.0.0:8081"
	defaultLoginRateLimit = "20-M"
)

var defaultAllowedOrigins = []string{"http://localhost:3000"}

// Load reads and validates environment variables, returning an aggregated
// error if any required value is malformed.
func Load() (*Config, error) {
	cfg := &Config{}
	var problems []string

	cfg.BindAddr = getEnvOrDefault("BIND_ADDR", defaultBindAddr)

	cfg.GoEnv = getEnvOrDefault("GO_ENV", "production")
	cfg.DevMode = cfg.GoEnv != "production"
	cfg.LogLevel = getEnvOrDefault("LOG_LEVEL", "info")

	cfg.RedisEnabled = os.Getenv("REDIS_ENABLED") == "true"
	if cfg.RedisEnabled {
		cfg.RedisAddr = getEnvOrDefault("REDIS_ADDR", "localhost:6379")
	}

	cfg.LoginRateLimit = getEnvOrDefault("LOGIN_RATE_LIMIT", defaultLoginRateLimit)
	if !isValidRate(cfg.LoginRateLimit) {
		problems = append(problems, fmt.Sprintf("LOGIN_RATE_LIMIT must be formatted as '<count>-<period>' (got %q)", cfg.LoginRateLimit))
	}

	cfg.EnforceNameUniqueness = os.Getenv("ENFORCE_NAME_UNIQUENESS") == "true"

	cfg.AllowedOrigins = getAllowedOriginsFromEnv("ALLOWED_ORIGINS", defaultAllowedOrigins)

	if len(problems) > 0 {
		return nil, fmt.Errorf("environment validation failed:\n  - %s", strings.Join(problems, "\n  - "))
	}
	return cfg, nil
}

func isValidRate(rate string) bool {
	parts := strings.SplitN(rate, "-", 2)
	if len(parts) != 2 || parts[0] == "" {
		return false
	}
	switch parts[1] {
	case "S", "M", "H", "D":
		return true
	default:
		return false
	}
}

func getEnvOrDefault(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

// getAllowedOriginsFromEnv parses a comma-separated origin list, falling
// back to defaultOrigins (development-friendly) when unset.
func getAllowedOriginsFromEnv(envVarName string, defaultOrigins []string) []string {
	originsStr := os.Getenv(envVarName)
	if originsStr == "" {
		return defaultOrigins
	}
	return strings.Split(originsStr, ",")
}

// HeartbeatInterval and ClientTimeout are protocol constants, not
// environment-tunable, kept here alongside Config. internal/session
// declares its own constants with the same values and uses those.
const (
	HeartbeatInterval = 5 * time.Second
	ClientTimeout     = 10 * time.Second
)
