// Package config loads service configuration from the environment,
// optionally seeded from a .env file. Load never fails; Validate reports
// anything that would prevent the service from starting.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all runtime settings for the access service.
type Config struct {
	Service   ServiceConfig
	Logging   LoggingConfig
	Database  DatabaseConfig
	Session   SessionConfig
	Cookie    CookieConfig
	RateLimit RateLimitConfig
	Tracing   TracingConfig
	Profiling ProfilingConfig
	Shutdown  ShutdownConfig
}

type ServiceConfig struct {
	Name    string
	Version string
	Env     string
	Port    string
}

type LoggingConfig struct {
	Level string
}

type DatabaseConfig struct {
	URL string
}

type SessionConfig struct {
	// TTL is fixed at session creation and never extended on use.
	TTL time.Duration
}

type CookieConfig struct {
	Name string
	// Secure is forced on when Service.Env is "production".
	Secure bool
}

type RateLimitConfig struct {
	// RedisAddr selects the distributed limiter backend when non-empty.
	RedisAddr     string
	RedisPassword string
	SweepInterval time.Duration

	// Overrides replaces the built-in budget of a category, keyed by
	// category name. Set via RATE_LIMIT_<CATEGORY>=<max>/<window>,
	// e.g. RATE_LIMIT_AUTH=5/60s.
	Overrides map[string]RateRule
}

// RateRule is one per-category budget override.
type RateRule struct {
	MaxRequests int
	Window      time.Duration
}

// rateCategories are the category names recognised for env overrides.
var rateCategories = []string{
	"general", "write", "auth", "password_reset",
	"newsletter", "submission", "guestbook", "contest",
}

func rateOverrideKey(category string) string {
	return "RATE_LIMIT_" + strings.ToUpper(category)
}

// parseRateRule parses "<max>/<window>", e.g. "30/60s" or "5/24h".
func parseRateRule(s string) (RateRule, error) {
	maxPart, windowPart, ok := strings.Cut(s, "/")
	if !ok {
		return RateRule{}, fmt.Errorf("expected <max>/<window>, got %q", s)
	}
	max, err := strconv.Atoi(strings.TrimSpace(maxPart))
	if err != nil || max <= 0 {
		return RateRule{}, fmt.Errorf("max requests must be a positive integer, got %q", maxPart)
	}
	window, err := time.ParseDuration(strings.TrimSpace(windowPart))
	if err != nil || window <= 0 {
		return RateRule{}, fmt.Errorf("window must be a positive duration, got %q", windowPart)
	}
	return RateRule{MaxRequests: max, Window: window}, nil
}

func loadRateOverrides() map[string]RateRule {
	overrides := make(map[string]RateRule)
	for _, category := range rateCategories {
		v := os.Getenv(rateOverrideKey(category))
		if v == "" {
			continue
		}
		rule, err := parseRateRule(v)
		if err != nil {
			// Malformed values are reported by Validate.
			continue
		}
		overrides[category] = rule
	}
	return overrides
}

type TracingConfig struct {
	Enabled    bool
	Endpoint   string
	SampleRate float64
}

type ProfilingConfig struct {
	Enabled  bool
	Endpoint string
}

type ShutdownConfig struct {
	Timeout             time.Duration
	ReadinessDrainDelay time.Duration
}

// Load builds a Config from the environment. A .env file in the working
// directory is applied first when present; real environment variables win.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Service: ServiceConfig{
			Name:    getEnv("SERVICE_NAME", "arteral-access"),
			Version: getEnv("SERVICE_VERSION", "dev"),
			Env:     getEnv("SERVICE_ENV", "development"),
			Port:    getEnv("PORT", "8080"),
		},
		Logging: LoggingConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Database: DatabaseConfig{
			URL: getEnv("DATABASE_URL", ""),
		},
		Session: SessionConfig{
			TTL: getEnvDuration("SESSION_TTL", 30*24*time.Hour),
		},
		Cookie: CookieConfig{
			Name:   getEnv("SESSION_COOKIE_NAME", "arteral-session"),
			Secure: getEnvBool("SESSION_COOKIE_SECURE", false),
		},
		RateLimit: RateLimitConfig{
			RedisAddr:     getEnv("REDIS_ADDR", ""),
			RedisPassword: getEnv("REDIS_PASSWORD", ""),
			SweepInterval: getEnvDuration("RATE_LIMIT_SWEEP_INTERVAL", time.Minute),
			Overrides:     loadRateOverrides(),
		},
		Tracing: TracingConfig{
			Enabled:    getEnvBool("TRACING_ENABLED", false),
			Endpoint:   getEnv("TRACING_ENDPOINT", "localhost:4318"),
			SampleRate: getEnvFloat("TRACING_SAMPLE_RATE", 1.0),
		},
		Profiling: ProfilingConfig{
			Enabled:  getEnvBool("PROFILING_ENABLED", false),
			Endpoint: getEnv("PROFILING_ENDPOINT", "http://localhost:4040"),
		},
		Shutdown: ShutdownConfig{
			Timeout:             getEnvDuration("SHUTDOWN_TIMEOUT", 15*time.Second),
			ReadinessDrainDelay: getEnvDuration("READINESS_DRAIN_DELAY", 5*time.Second),
		},
	}
}

// Validate reports configuration errors that must stop startup.
func (c *Config) Validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if _, err := strconv.Atoi(c.Service.Port); err != nil {
		return fmt.Errorf("PORT must be numeric, got %q", c.Service.Port)
	}
	if c.Session.TTL <= 0 {
		return fmt.Errorf("SESSION_TTL must be positive, got %s", c.Session.TTL)
	}
	if c.Tracing.SampleRate < 0 || c.Tracing.SampleRate > 1 {
		return fmt.Errorf("TRACING_SAMPLE_RATE must be in [0,1], got %v", c.Tracing.SampleRate)
	}
	for _, category := range rateCategories {
		key := rateOverrideKey(category)
		if v := os.Getenv(key); v != "" {
			if _, err := parseRateRule(v); err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
		}
	}
	return nil
}

// IsProduction reports whether the service runs with production hardening
// (Secure cookies, JSON logs).
func (c *Config) IsProduction() bool {
	return c.Service.Env == "production"
}

// CookieSecure reports whether issued cookies carry the Secure flag.
func (c *Config) CookieSecure() bool {
	return c.Cookie.Secure || c.IsProduction()
}

func (c *Config) GetShutdownTimeoutDuration() time.Duration {
	return c.Shutdown.Timeout
}

func (c *Config) GetReadinessDrainDelayDuration() time.Duration {
	return c.Shutdown.ReadinessDrainDelay
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func getEnvFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
