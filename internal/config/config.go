package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const devSessionSecret = "dev-secret-change-me"

// Config holds all application configuration.
type Config struct {
	Env       string
	Database  DatabaseConfig
	HTTP      HTTPConfig
	GRPC      GRPCConfig
	Auth      AuthConfig
	RateLimit RateLimitConfig
}

// DatabaseConfig contains database-related settings.
type DatabaseConfig struct {
	Driver string // sqlite3 | postgres | mysql
	Path   string // SQLite file path or DSN for the other drivers
}

// HTTPConfig contains the JSON API server settings.
type HTTPConfig struct {
	Address        string   // listen address (e.g., ":5001")
	AllowedOrigins []string // CORS origins allowed to send credentialed requests
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
}

// GRPCConfig contains gRPC health server settings.
type GRPCConfig struct {
	Address string // empty disables the health server
}

// AuthConfig contains session settings.
type AuthConfig struct {
	SessionSecret string // signs session tokens
	SessionTTL    time.Duration
	CookieName    string
	CookiePath    string
	CookieSecure  bool
}

// RateLimitConfig contains per client rate limiting settings.
type RateLimitConfig struct {
	Enabled bool
	RPS     float64
	Burst   int
}

// Load loads configuration from environment variables with sensible defaults.
func Load() (*Config, error) {
	cfg, err := load("")
	if err != nil {
		return nil, err
	}

	// Validate critical settings
	if cfg.Auth.SessionSecret == "" {
		return nil, fmt.Errorf("SESSION_SECRET environment variable is not set; required for production")
	}
	return cfg, nil
}

// LoadWithDefaults is like Load but uses a safe default for SESSION_SECRET in development.
// WARNING: Only use in development! Use Load() in production.
func LoadWithDefaults() (*Config, error) {
	return load(devSessionSecret)
}

// LoadForEnv picks LoadWithDefaults for APP_ENV=development (the default) and
// Load for every other environment, which then must set SESSION_SECRET.
func LoadForEnv() (*Config, error) {
	if getEnv("APP_ENV", "development") == "development" {
		return LoadWithDefaults()
	}
	return Load()
}

func load(defaultSecret string) (*Config, error) {
	ttl, err := getEnvDuration("SESSION_TTL", 24*time.Hour)
	if err != nil {
		return nil, err
	}
	secure, err := getEnvBool("COOKIE_SECURE", false)
	if err != nil {
		return nil, err
	}
	limitEnabled, err := getEnvBool("RATE_LIMIT_ENABLED", true)
	if err != nil {
		return nil, err
	}
	rps, err := getEnvFloat("RATE_LIMIT_RPS", 10)
	if err != nil {
		return nil, err
	}
	burst, err := getEnvInt("RATE_LIMIT_BURST", 20)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Env: getEnv("APP_ENV", "development"),
		Database: DatabaseConfig{
			Driver: getEnv("DB_DRIVER", "sqlite3"),
			Path:   getEnv("DB_PATH", "todolist.db"),
		},
		HTTP: HTTPConfig{
			Address:        getEnv("HTTP_ADDRESS", ":5001"),
			AllowedOrigins: getEnvList("CORS_ORIGINS", []string{"http://localhost:3000"}),
			ReadTimeout:    10 * time.Second,
			WriteTimeout:   30 * time.Second,
			IdleTimeout:    time.Minute,
		},
		GRPC: GRPCConfig{
			Address: getEnv("GRPC_ADDRESS", ":50051"),
		},
		Auth: AuthConfig{
			SessionSecret: getEnv("SESSION_SECRET", defaultSecret),
			SessionTTL:    ttl,
			CookieName:    getEnv("COOKIE_NAME", "session"),
			CookiePath:    getEnv("COOKIE_PATH", "/api"),
			CookieSecure:  secure,
		},
		RateLimit: RateLimitConfig{
			Enabled: limitEnabled,
			RPS:     rps,
			Burst:   burst,
		},
	}

	switch cfg.Database.Driver {
	case "sqlite3", "postgres", "mysql":
	default:
		return nil, fmt.Errorf("invalid DB_DRIVER %q: want sqlite3, postgres or mysql", cfg.Database.Driver)
	}
	if cfg.Auth.SessionTTL <= 0 {
		return nil, fmt.Errorf("SESSION_TTL must be positive, got %s", cfg.Auth.SessionTTL)
	}
	if cfg.RateLimit.Enabled && (cfg.RateLimit.RPS <= 0 || cfg.RateLimit.Burst <= 0) {
		return nil, fmt.Errorf("RATE_LIMIT_RPS and RATE_LIMIT_BURST must be positive when rate limiting is enabled")
	}
	return cfg, nil
}

// getEnv retrieves an environment variable with a default fallback.
func getEnv(key, defaultVal string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultVal
}

// getEnvInt retrieves an environment variable as an integer with a default fallback.
func getEnvInt(key string, defaultVal int) (int, error) {
	if value, exists := os.LookupEnv(key); exists {
		intVal, err := strconv.Atoi(value)
		if err != nil {
			return 0, fmt.Errorf("invalid integer for %s: %w", key, err)
		}
		return intVal, nil
	}
	return defaultVal, nil
}

func getEnvFloat(key string, defaultVal float64) (float64, error) {
	if value, exists := os.LookupEnv(key); exists {
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid number for %s: %w", key, err)
		}
		return f, nil
	}
	return defaultVal, nil
}

func getEnvBool(key string, defaultVal bool) (bool, error) {
	if value, exists := os.LookupEnv(key); exists {
		b, err := strconv.ParseBool(value)
		if err != nil {
			return false, fmt.Errorf("invalid boolean for %s: %w", key, err)
		}
		return b, nil
	}
	return defaultVal, nil
}

func getEnvDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	if value, exists := os.LookupEnv(key); exists {
		d, err := time.ParseDuration(value)
		if err != nil {
			return 0, fmt.Errorf("invalid duration for %s: %w", key, err)
		}
		return d, nil
	}
	return defaultVal, nil
}

// getEnvList splits a comma separated variable, dropping empty items.
func getEnvList(key string, defaultVal []string) []string {
	value, exists := os.LookupEnv(key)
	if !exists {
		return defaultVal
	}
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// String returns a string representation of the config (sensitive values are masked).
func (c *Config) String() string {
	return fmt.Sprintf("Config{Env: %s, DB: %s, HTTP: %s, gRPC: %s, Origins: %v, Auth: *** (masked) ***}",
		c.Env, c.Database.Driver, c.HTTP.Address, c.GRPC.Address, c.HTTP.AllowedOrigins)
}
