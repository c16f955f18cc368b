package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	StoreRedis  = "redis"
	StoreMemory = "memory"
)

type Config struct {
	Profile  string
	HTTPAddr string

	// Session subsystem.
	SessionSecret       string
	SessionSalt         string
	SessionLifetime     time.Duration
	SessionRenewWithin  time.Duration
	SessionCookieName   string
	SessionCookieSecure bool
	SessionStore        string
	SessionRedisPrefix  string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	DBDriver string
	DBDSN    string

	GoogleClientID     string
	GoogleClientSecret string
	GoogleRedirectURL  string

	AuthRateLimitRPM int

	OTELServiceName           string
	OTELEnvironment           string
	OTELExporterOTLPEndpoint  string
	OTELExporterOTLPInsecure  bool
	OTELMetricsEnabled        bool
	OTELTracesEnabled         bool
	OTELLogsEnabled           bool
	OTELMetricsExportInterval time.Duration

	ShutdownTimeout              time.Duration
	ShutdownHTTPDrainTimeout     time.Duration
	ShutdownObservabilityTimeout time.Duration
}

func Load() (*Config, error) {
	cfg, err := load()
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	recordConfigValidationEvent(context.Background(), envOr("APP_PROFILE", "dev"), outcome, classifyConfigLoadError(err))
	return cfg, err
}

func load() (*Config, error) {
	cfg := &Config{
		Profile:  envOr("APP_PROFILE", "dev"),
		HTTPAddr: envOr("HTTP_ADDR", ":8080"),

		SessionSecret:       os.Getenv("SESSION_SECRET"),
		SessionSalt:         envOr("SESSION_SALT", "signed session"),
		SessionCookieName:   envOr("SESSION_COOKIE_NAME", "session"),
		SessionCookieSecure: boolOr("SESSION_COOKIE_SECURE", false),
		SessionStore:        envOr("SESSION_STORE", StoreRedis),
		SessionRedisPrefix:  envOr("SESSION_REDIS_PREFIX", "session"),

		RedisAddr:     envOr("REDIS_ADDR", "localhost:6379"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),

		DBDriver: envOr("DB_DRIVER", "sqlite"),
		DBDSN:    envOr("DB_DSN", "file:sessiondev.db?cache=shared"),

		GoogleClientID:     os.Getenv("GOOGLE_CLIENT_ID"),
		GoogleClientSecret: os.Getenv("GOOGLE_CLIENT_SECRET"),
		GoogleRedirectURL:  os.Getenv("GOOGLE_REDIRECT_URL"),

		OTELServiceName:          envOr("OTEL_SERVICE_NAME", "session-service"),
		OTELEnvironment:          envOr("OTEL_ENVIRONMENT", "dev"),
		OTELExporterOTLPEndpoint: envOr("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
		OTELExporterOTLPInsecure: boolOr("OTEL_EXPORTER_OTLP_INSECURE", true),
		OTELMetricsEnabled:       boolOr("OTEL_METRICS_ENABLED", false),
		OTELTracesEnabled:        boolOr("OTEL_TRACES_ENABLED", false),
		OTELLogsEnabled:          boolOr("OTEL_LOGS_ENABLED", false),
	}

	var err error
	if cfg.SessionLifetime, err = durationOr("SESSION_LIFETIME", 168*time.Hour); err != nil {
		return nil, err
	}
	if cfg.SessionRenewWithin, err = durationOr("SESSION_RENEW_WITHIN", time.Hour); err != nil {
		return nil, err
	}
	if cfg.OTELMetricsExportInterval, err = durationOr("OTEL_METRICS_EXPORT_INTERVAL", 15*time.Second); err != nil {
		return nil, err
	}
	if cfg.ShutdownTimeout, err = durationOr("SHUTDOWN_TIMEOUT", 15*time.Second); err != nil {
		return nil, err
	}
	if cfg.ShutdownHTTPDrainTimeout, err = durationOr("SHUTDOWN_HTTP_DRAIN_TIMEOUT", 5*time.Second); err != nil {
		return nil, err
	}
	if cfg.ShutdownObservabilityTimeout, err = durationOr("SHUTDOWN_OBSERVABILITY_TIMEOUT", 5*time.Second); err != nil {
		return nil, err
	}
	if cfg.RedisDB, err = intOr("REDIS_DB", 0); err != nil {
		return nil, err
	}
	if cfg.AuthRateLimitRPM, err = intOr("AUTH_RATE_LIMIT_RPM", 30); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.SessionSecret == "" {
		return fmt.Errorf("SESSION_SECRET is required")
	}
	if len(c.SessionSecret) < 32 {
		return fmt.Errorf("SESSION_SECRET must be at least 32 bytes, got %d", len(c.SessionSecret))
	}
	if c.SessionLifetime <= 0 {
		return fmt.Errorf("SESSION_LIFETIME must be positive")
	}
	if c.SessionRenewWithin <= 0 || c.SessionRenewWithin >= c.SessionLifetime {
		return fmt.Errorf("SESSION_RENEW_WITHIN must be positive and below SESSION_LIFETIME")
	}
	switch c.SessionStore {
	case StoreRedis, StoreMemory:
	default:
		return fmt.Errorf("SESSION_STORE must be %q or %q, got %q", StoreRedis, StoreMemory, c.SessionStore)
	}
	switch c.DBDriver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("DB_DRIVER must be sqlite or postgres, got %q", c.DBDriver)
	}
	if c.GoogleEnabled() && c.GoogleRedirectURL == "" {
		return fmt.Errorf("GOOGLE_REDIRECT_URL is required when Google OAuth is configured")
	}
	return nil
}

// GoogleEnabled reports whether the OAuth2 upsert flow is configured.
func (c *Config) GoogleEnabled() bool {
	return c.GoogleClientID != "" && c.GoogleClientSecret != ""
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func boolOr(key string, fallback bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return parsed
}

func intOr(key string, fallback int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	parsed, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return parsed, nil
}

func durationOr(key string, fallback time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	parsed, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return parsed, nil
}
