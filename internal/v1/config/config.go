package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
)

// Config holds validated environment configuration
type Config struct {
	// Required variables
	JWTSecret string
	Port      string

	// Token issuance
	TokenTTLHours int

	// Optional variables with defaults
	GoEnv    string
	LogLevel string

	// Redis snapshot store (optional)
	RedisEnabled            bool
	RedisAddr               string
	RedisPassword           string
	SnapshotIntervalSeconds int

	// Tracing (optional)
	TracingEnabled    bool
	OTLPCollectorAddr string

	DevelopmentMode bool
	AllowedOrigins  string

	// Rate Limits
	RateLimitApiGlobal string
	RateLimitApiAuth   string
	RateLimitApiRooms  string
	RateLimitWsIp      string
	RateLimitWsPlayer  string
}

// ValidateEnv validates all required environment variables and returns a Config object
// Returns an error if any required variable is missing or invalid
func ValidateEnv() (*Config, error) {
	cfg := &Config{}
	var errors []string

	// Required: JWT_SECRET (minimum 32 characters)
	cfg.JWTSecret = os.Getenv("JWT_SECRET")
	if cfg.JWTSecret == "" {
		errors = append(errors, "JWT_SECRET is required")
	} else if len(cfg.JWTSecret) < 32 {
		errors = append(errors, fmt.Sprintf("JWT_SECRET must be at least 32 characters (got %d)", len(cfg.JWTSecret)))
	}

	// Required: PORT (valid port number)
	cfg.Port = os.Getenv("PORT")
	if cfg.Port == "" {
		errors = append(errors, "PORT is required")
	} else {
		port, err := strconv.Atoi(cfg.Port)
		if err != nil || port < 1 || port > 65535 {
			errors = append(errors, fmt.Sprintf("PORT must be a valid port number between 1 and 65535 (got '%s')", cfg.Port))
		}
	}

	// Optional: TOKEN_TTL_HOURS (defaults to 720, i.e. 30 days)
	cfg.TokenTTLHours = 720
	if raw := os.Getenv("TOKEN_TTL_HOURS"); raw != "" {
		ttl, err := strconv.Atoi(raw)
		if err != nil || ttl < 1 {
			errors = append(errors, fmt.Sprintf("TOKEN_TTL_HOURS must be a positive integer (got '%s')", raw))
		} else {
			cfg.TokenTTLHours = ttl
		}
	}

	// Conditional: REDIS_ADDR (required if REDIS_ENABLED=true)
	cfg.RedisEnabled = os.Getenv("REDIS_ENABLED") == "true"
	if cfg.RedisEnabled {
		cfg.RedisAddr = os.Getenv("REDIS_ADDR")
		if cfg.RedisAddr == "" {
			// Default to localhost:6379 if not specified
			cfg.RedisAddr = "localhost:6379"
			slog.Warn("REDIS_ADDR not set, using default", "addr", cfg.RedisAddr)
		} else if !isValidHostPort(cfg.RedisAddr) {
			errors = append(errors, fmt.Sprintf("REDIS_ADDR must be in format 'host:port' (got '%s')", cfg.RedisAddr))
		}
		cfg.RedisPassword = os.Getenv("REDIS_PASSWORD")
	}

	// Optional: SNAPSHOT_INTERVAL_SECONDS (defaults to 60)
	cfg.SnapshotIntervalSeconds = 60
	if raw := os.Getenv("SNAPSHOT_INTERVAL_SECONDS"); raw != "" {
		interval, err := strconv.Atoi(raw)
		if err != nil || interval < 1 {
			errors = append(errors, fmt.Sprintf("SNAPSHOT_INTERVAL_SECONDS must be a positive integer (got '%s')", raw))
		} else {
			cfg.SnapshotIntervalSeconds = interval
		}
	}

	// Conditional: OTLP_COLLECTOR_ADDR (required if TRACING_ENABLED=true)
	cfg.TracingEnabled = os.Getenv("TRACING_ENABLED") == "true"
	if cfg.TracingEnabled {
		cfg.OTLPCollectorAddr = os.Getenv("OTLP_COLLECTOR_ADDR")
		if cfg.OTLPCollectorAddr == "" {
			errors = append(errors, "OTLP_COLLECTOR_ADDR is required when TRACING_ENABLED=true")
		} else if !isValidHostPort(cfg.OTLPCollectorAddr) {
			errors = append(errors, fmt.Sprintf("OTLP_COLLECTOR_ADDR must be in format 'host:port' (got '%s')", cfg.OTLPCollectorAddr))
		}
	}

	// Optional: GO_ENV (defaults to "production")
	cfg.GoEnv = os.Getenv("GO_ENV")
	if cfg.GoEnv == "" {
		cfg.GoEnv = "production"
	}

	// Optional: LOG_LEVEL (defaults to "info")
	cfg.LogLevel = os.Getenv("LOG_LEVEL")
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}

	cfg.DevelopmentMode = os.Getenv("DEVELOPMENT_MODE") == "true"
	cfg.AllowedOrigins = os.Getenv("ALLOWED_ORIGINS")

	// Rate Limits (Defaults: M = Minute, H = Hour)
	cfg.RateLimitApiGlobal = getEnvOrDefault("RATE_LIMIT_API_GLOBAL", "1000-M")
	cfg.RateLimitApiAuth = getEnvOrDefault("RATE_LIMIT_API_AUTH", "20-M")
	cfg.RateLimitApiRooms = getEnvOrDefault("RATE_LIMIT_API_ROOMS", "100-M")
	cfg.RateLimitWsIp = getEnvOrDefault("RATE_LIMIT_WS_IP", "100-M")
	cfg.RateLimitWsPlayer = getEnvOrDefault("RATE_LIMIT_WS_PLAYER", "10-M")

	// If there are validation errors, return them
	if len(errors) > 0 {
		return nil, fmt.Errorf("environment validation failed:\n  - %s", strings.Join(errors, "\n  - "))
	}

	// Log validated configuration (with secrets redacted)
	logValidatedConfig(cfg)

	return cfg, nil
}

// Origins parses ALLOWED_ORIGINS into a list. When unset, local development
// defaults apply so a bare checkout works against a local client.
func (c *Config) Origins() []string {
	if c.AllowedOrigins == "" {
		defaults := []string{"http://localhost:3000"}
		slog.Warn("ALLOWED_ORIGINS not set, using development defaults", "origins", defaults)
		return defaults
	}

	parts := strings.Split(c.AllowedOrigins, ",")
	origins := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			origins = append(origins, p)
		}
	}
	return origins
}

// isValidHostPort checks if a string is in the format "host:port"
func isValidHostPort(addr string) bool {
	parts := strings.Split(addr, ":")
	if len(parts) != 2 {
		return false
	}

	// Validate port is a number
	port, err := strconv.Atoi(parts[1])
	if err != nil || port < 1 || port > 65535 {
		return false
	}

	// Validate host is not empty
	if parts[0] == "" {
		return false
	}

	return true
}

// logValidatedConfig logs the validated configuration with secrets redacted
func logValidatedConfig(cfg *Config) {
	slog.Info("✅ Environment configuration validated successfully")
	slog.Info("Configuration",
		"jwt_secret", redactSecret(cfg.JWTSecret),
		"port", cfg.Port,
		"token_ttl_hours", cfg.TokenTTLHours,
		"redis_enabled", cfg.RedisEnabled,
		"redis_addr", cfg.RedisAddr,
		"snapshot_interval_seconds", cfg.SnapshotIntervalSeconds,
		"tracing_enabled", cfg.TracingEnabled,
		"go_env", cfg.GoEnv,
		"log_level", cfg.LogLevel,
		"development_mode", cfg.DevelopmentMode,
		"rate_limit_api_global", cfg.RateLimitApiGlobal,
	)
}

// getEnvOrDefault returns the value of the environment variable or a default value if not set
func getEnvOrDefault(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// redactSecret redacts a secret by showing only the first 8 characters
func redactSecret(secret string) string {
	if len(secret) <= 8 {
		return "***"
	}
	return secret[:8] + "***"
}
