package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// DefaultAPIURL is the analysis backend used when API_URL is not set.
const DefaultAPIURL = "https://pea41p50hh.execute-api.us-east-1.amazonaws.com/prod"

type Config struct {
	// Server config
	Server ServerConfig

	// CSRF + widget session cookie
	Security SecurityConfig

	// menu analysis backend
	API APIConfig

	// optional backing services
	Redis    RedisConfig
	Database DatabaseConfig
	Archive  ArchiveConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Address        string
	Environment    string // development, staging, production
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	MaxUploadBytes int64
}

// SecurityConfig holds security-related settings.
type SecurityConfig struct {
	CSRFKey           string
	CSRFSecure        bool
	TrustedOrigins    []string
	SessionCookieName string
	SessionTTL        time.Duration

	// caps for the in-memory widget store; zero disables a cap
	SessionMaxCount int
	SessionMaxBytes int64
}

// APIConfig holds the menu analysis backend settings.
type APIConfig struct {
	BaseURL string
	Timeout time.Duration
}

// RedisConfig enables the shared widget state store when URL is set.
type RedisConfig struct {
	URL string
}

// DatabaseConfig enables upload history when URL is set.
type DatabaseConfig struct {
	URL string
}

// ArchiveConfig enables archiving uploaded photos to S3 when Bucket is set.
type ArchiveConfig struct {
	Bucket    string
	Region    string
	Endpoint  string // S3-compatible endpoint, e.g. Cloudflare R2
	AccessKey string
	SecretKey string
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Server.Environment == "development"
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.Server.Environment == "production"
}

func Load() (*Config, error) {
	// .env is optional; deployed environments set variables directly
	_ = godotenv.Load()

	cfg := &Config{}

	maxUpload, err := strconv.ParseInt(getEnvOrDefault("MAX_UPLOAD_BYTES", "10485760"), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid MAX_UPLOAD_BYTES: %w", err)
	}

	maxSessions, err := strconv.Atoi(getEnvOrDefault("SESSION_MAX_COUNT", "1000"))
	if err != nil {
		return nil, fmt.Errorf("invalid SESSION_MAX_COUNT: %w", err)
	}
	maxSessionBytes, err := strconv.ParseInt(getEnvOrDefault("SESSION_MAX_BYTES", "268435456"), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid SESSION_MAX_BYTES: %w", err)
	}

	cfg.Server = ServerConfig{
		Address:        getEnvOrDefault("SERVER_ADDRESS", ":8080"),
		Environment:    getEnvOrDefault("APP_ENV", "development"),
		ReadTimeout:    getDurationOrDefault("SERVER_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:   getDurationOrDefault("SERVER_WRITE_TIMEOUT", 120*time.Second),
		IdleTimeout:    getDurationOrDefault("SERVER_IDLE_TIMEOUT", 60*time.Second),
		MaxUploadBytes: maxUpload,
	}

	cfg.Security = SecurityConfig{
		CSRFKey:           os.Getenv("CSRF_KEY"),
		CSRFSecure:        getEnvOrDefault("CSRF_SECURE", "false") == "true",
		TrustedOrigins:    strings.Fields(getEnvOrDefault("CSRF_TRUSTED_ORIGINS", "")),
		SessionCookieName: getEnvOrDefault("SESSION_COOKIE_NAME", "seemenu_widget"),
		SessionTTL:        getDurationOrDefault("SESSION_TTL", 2*time.Hour),
		SessionMaxCount:   maxSessions,
		SessionMaxBytes:   maxSessionBytes,
	}

	cfg.API = APIConfig{
		BaseURL: strings.TrimRight(getEnvOrDefault("API_URL", DefaultAPIURL), "/"),
		Timeout: getDurationOrDefault("API_TIMEOUT", 90*time.Second),
	}

	cfg.Redis = RedisConfig{URL: os.Getenv("REDIS_URL")}
	cfg.Database = DatabaseConfig{URL: os.Getenv("DATABASE_URL")}

	cfg.Archive = ArchiveConfig{
		Bucket:    os.Getenv("ARCHIVE_BUCKET"),
		Region:    getEnvOrDefault("ARCHIVE_REGION", "us-east-1"),
		Endpoint:  os.Getenv("ARCHIVE_ENDPOINT"),
		AccessKey: os.Getenv("ARCHIVE_ACCESS_KEY"),
		SecretKey: os.Getenv("ARCHIVE_SECRET_KEY"),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validate checks that all required configuration is present and valid.
// All problems are reported together.
func (c *Config) validate() error {
	var errs []error

	if c.Security.CSRFKey == "" {
		errs = append(errs, errors.New("CSRF_KEY is required"))
	} else if len(c.Security.CSRFKey) < 32 {
		errs = append(errs, errors.New("CSRF_KEY must be at least 32 characters"))
	}

	if u, err := url.Parse(c.API.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("API_URL must be an absolute URL (got: %q)", c.API.BaseURL))
	}

	if c.Server.MaxUploadBytes <= 0 {
		errs = append(errs, errors.New("MAX_UPLOAD_BYTES must be positive"))
	}

	if c.Security.SessionTTL <= 0 {
		errs = append(errs, errors.New("SESSION_TTL must be positive"))
	}

	if c.Security.SessionMaxCount < 0 {
		errs = append(errs, errors.New("SESSION_MAX_COUNT must not be negative"))
	}
	if c.Security.SessionMaxBytes < 0 {
		errs = append(errs, errors.New("SESSION_MAX_BYTES must not be negative"))
	} else if c.Security.SessionMaxBytes > 0 && c.Security.SessionMaxBytes < c.Server.MaxUploadBytes {
		errs = append(errs, errors.New("SESSION_MAX_BYTES must be at least MAX_UPLOAD_BYTES"))
	}

	// static keys must come in pairs
	if (c.Archive.AccessKey == "") != (c.Archive.SecretKey == "") {
		errs = append(errs, errors.New("ARCHIVE_ACCESS_KEY and ARCHIVE_SECRET_KEY must be set together"))
	}

	validEnvs := map[string]bool{
		"development": true,
		"staging":     true,
		"production":  true,
	}
	if !validEnvs[c.Server.Environment] {
		errs = append(errs, fmt.Errorf("APP_ENV must be one of: development, staging, production (got: %s)", c.Server.Environment))
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed:\n%w", errors.Join(errs...))
	}

	return nil
}

// getEnvOrDefault returns the .env value or a default.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getDurationOrDefault parses a time.Duration env value, keeping the default
// when the value is missing or malformed.
func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		duration, err := time.ParseDuration(value)
		if err != nil {
			return defaultValue
		}
		return duration
	}
	return defaultValue
}

// MustLoad is like Load but panics on error.
// Used in main() where its required to fail fast
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}
	return cfg
}
