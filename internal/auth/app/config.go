package app

import (
	"os"
	"strconv"
	"time"

	"github.com/nightporter/staffgate/internal/auth/policy"
)

type Config struct {
	Issuer       string // Required: issuer URL baked into tokens and discovery
	DatabaseFile string // Path to SQLite database file (default: ./staffgate.db)
	ClientsFile  string // Path to the YAML client registry (default: ./clients.yaml)

	SigningKeyFile string // Optional: PKCS8 PEM Ed25519 key; empty means ephemeral
	SigningKeyID   string // Key id published in the JWKS (default: primary)

	Env       string // Environment (dev, staging, prod) (default: dev)
	LogLevel  string // Log level (debug, info, warn, error) (default: info)
	LogFormat string // Log format (json, text) (default: json)
	Port      int    // HTTP server port (default: 8080)

	ShutdownGracePeriod   time.Duration // Graceful shutdown timeout (default: 10s)
	HousekeepingInterval  time.Duration // Sweep interval (default: 1h)
	HousekeepingRetention time.Duration // How long dead rows stay queryable (default: 7 days)

	CodeTTL         time.Duration // Authorization code lifetime (default: 5m)
	SessionLifetime time.Duration // Browser session lifetime, 0 = until revoked (default: 12h)

	// Token policy defaults; clients can override per entry in the
	// registry file.
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration

	// Bootstrap account created when the directory is empty. Password is
	// generated and logged when not configured.
	SeedUsername string
	SeedPassword string
	SeedEmail    string
	SeedName     string
}

func LoadConfig() Config {
	defaults := policy.Defaults()

	cfg := Config{
		Issuer:         os.Getenv("AUTH_ISSUER"),
		DatabaseFile:   getEnvOrDefault("AUTH_DATABASE_FILE", "staffgate.db"),
		ClientsFile:    getEnvOrDefault("AUTH_CLIENTS_FILE", "clients.yaml"),
		SigningKeyFile: os.Getenv("AUTH_SIGNING_KEY_FILE"), // Optional
		SigningKeyID:   getEnvOrDefault("AUTH_SIGNING_KEY_ID", "primary"),

		Env:       getEnvOrDefault("ENV", "dev"),
		LogLevel:  getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat: getEnvOrDefault("LOG_FORMAT", "json"),
		Port:      getEnvIntOrDefault("PORT", 8080),

		ShutdownGracePeriod:   getEnvDurationOrDefault("SHUTDOWN_GRACE_PERIOD", 10*time.Second),
		HousekeepingInterval:  getEnvDurationOrDefault("HOUSEKEEPING_INTERVAL", 1*time.Hour),
		HousekeepingRetention: getEnvDurationOrDefault("HOUSEKEEPING_RETENTION", 7*24*time.Hour),

		CodeTTL:         getEnvDurationOrDefault("AUTH_CODE_TTL", 5*time.Minute),
		SessionLifetime: getEnvDurationOrDefault("AUTH_SESSION_LIFETIME", 12*time.Hour),

		AccessTokenTTL:  getEnvDurationOrDefault("AUTH_ACCESS_TOKEN_TTL", defaults.AccessTokenTTL),
		RefreshTokenTTL: getEnvDurationOrDefault("AUTH_REFRESH_TOKEN_TTL", defaults.RefreshTokenTTL),

		SeedUsername: getEnvOrDefault("AUTH_SEED_USERNAME", "admin"),
		SeedPassword: os.Getenv("AUTH_SEED_PASSWORD"), // Optional: generated when empty
		SeedEmail:    getEnvOrDefault("AUTH_SEED_EMAIL", "admin@localhost"),
		SeedName:     getEnvOrDefault("AUTH_SEED_NAME", "Administrator"),
	}

	if cfg.Issuer == "" {
		cfg.Issuer = "http://localhost:8080"
	}

	return cfg
}

// PolicyDefaults folds the configured TTLs into the built-in policy
// defaults.
func (c Config) PolicyDefaults() policy.Options {
	opts := policy.Defaults()
	opts.AccessTokenTTL = c.AccessTokenTTL
	opts.RefreshTokenTTL = c.RefreshTokenTTL
	return opts
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

	// Integer values are taken as minutes.
	if minutes, err := strconv.Atoi(value); err == nil {
		return time.Duration(minutes) * time.Minute
	}

	return defaultValue
}
