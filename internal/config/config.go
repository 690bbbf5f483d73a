// Package config provides configuration loading and validation for the Replay services.
// It uses koanf to merge environment variables with optional file overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config holds all configuration values for the Replay services.
type Config struct {
	// Server settings
	Port int    `koanf:"port"`
	Env  string `koanf:"env"`

	// Database
	DatabaseURL string `koanf:"database_url"`

	// Redis (recency index, rate limiting). Optional; in-memory fallbacks
	// are used when unset.
	RedisURL string `koanf:"redis_url"`

	// AllowedOrigins is the CORS allowlist. Empty disables CORS handling.
	AllowedOrigins []string `koanf:"allowed_origins"`

	// JWT Authentication. JWTSecretPrevious is set only during a secret
	// rotation window so tokens signed with the old key stay valid.
	JWTSecret         string `koanf:"jwt_secret"`
	JWTSecretPrevious string `koanf:"jwt_secret_previous"`

	// Play accounting
	MinPlaySeconds  int `koanf:"min_play_seconds"`  // Plays shorter than this are discarded
	DebounceMillis  int `koanf:"debounce_millis"`   // Quiet period before a tracked play is flushed
	HistoryPageSize int `koanf:"history_page_size"` // Default page size for history queries

	// Firehose (ingest daemon)
	FirehoseURL string `koanf:"firehose_url"`

	// Archive (S3-compatible object storage for cleared-history exports)
	ArchiveBucketName      string `koanf:"archive_bucket_name"`
	ArchiveAccessKeyID     string `koanf:"archive_access_key_id"`
	ArchiveSecretAccessKey string `koanf:"archive_secret_access_key"`
	ArchiveEndpoint        string `koanf:"archive_endpoint"`

	// ProfilingEnabled exposes pprof endpoints. Development only; the
	// middleware refuses to enable it in production environments.
	ProfilingEnabled bool `koanf:"profiling_enabled"`

	// Tracing (OpenTelemetry). Off unless TRACING_ENABLED=true.
	TracingEnabled    bool    `koanf:"tracing_enabled"`
	TracingExporter   string  `koanf:"tracing_exporter"`
	TracingEndpoint   string  `koanf:"tracing_endpoint"`
	TracingSampleRate float64 `koanf:"tracing_sample_rate"`
}

// Configuration validation errors.
var (
	ErrMissingDatabaseURL        = errors.New("DATABASE_URL is required")
	ErrMissingJWTSecret          = errors.New("JWT_SECRET is required")
	ErrMissingArchiveBucketName  = errors.New("ARCHIVE_BUCKET_NAME is required")
	ErrMissingArchiveAccessKeyID = errors.New("ARCHIVE_ACCESS_KEY_ID is required")
	ErrMissingArchiveSecret      = errors.New("ARCHIVE_SECRET_ACCESS_KEY is required")
	ErrMissingArchiveEndpoint    = errors.New("ARCHIVE_ENDPOINT is required")
	ErrInvalidPort               = errors.New("PORT must be a valid integer")
	ErrInvalidMinPlaySeconds     = errors.New("MIN_PLAY_SECONDS must be >= 0")
	ErrInvalidDebounceMillis     = errors.New("DEBOUNCE_MILLIS must be > 0")
)

// Default values for non-secret configuration.
const (
	DefaultPort              = 8080
	DefaultEnv               = "development"
	DefaultMinPlaySeconds    = 5
	DefaultDebounceMillis    = 1000
	DefaultHistoryPageSize   = 50
	DefaultTracingExporter   = "otlp-http"
	DefaultTracingSampleRate = 0.1
)

// Load reads configuration from environment variables and an optional config file.
// Environment variables take precedence over file values.
// Returns the loaded config and a slice of validation errors (empty if valid).
// If a config file path is provided and the file cannot be loaded, an error is returned.
func Load(configFilePath string) (*Config, []error) {
	k := koanf.New(".")
	var loadErrs []error

	// Load from YAML file first if provided (lower precedence)
	if configFilePath != "" {
		if err := k.Load(file.Provider(configFilePath), yaml.Parser()); err != nil {
			return nil, []error{fmt.Errorf("failed to load config file %s: %w", configFilePath, err)}
		}
	}

	// Parse port from env, collecting error if invalid
	// Try REPLAY_PORT first, then PORT for backward compatibility
	port, portErr := getEnvIntOrDefaultMulti([]string{"REPLAY_PORT", "PORT"}, k.Int("port"), DefaultPort)
	if portErr != nil {
		loadErrs = append(loadErrs, portErr)
	}

	minPlay, minPlayErr := getEnvIntOrDefault("MIN_PLAY_SECONDS", k.Int("min_play_seconds"), DefaultMinPlaySeconds)
	if minPlayErr != nil {
		loadErrs = append(loadErrs, minPlayErr)
	}

	debounce, debounceErr := getEnvIntOrDefault("DEBOUNCE_MILLIS", k.Int("debounce_millis"), DefaultDebounceMillis)
	if debounceErr != nil {
		loadErrs = append(loadErrs, debounceErr)
	}

	pageSize, pageSizeErr := getEnvIntOrDefault("HISTORY_PAGE_SIZE", k.Int("history_page_size"), DefaultHistoryPageSize)
	if pageSizeErr != nil {
		loadErrs = append(loadErrs, pageSizeErr)
	}

	sampleRate, sampleRateErr := getEnvFloatOrDefault("TRACING_SAMPLE_RATE", k.Float64("tracing_sample_rate"), DefaultTracingSampleRate)
	if sampleRateErr != nil {
		loadErrs = append(loadErrs, sampleRateErr)
	}

	// Build config struct, with env vars taking precedence over file values
	cfg := &Config{
		Port:                   port,
		Env:                    getEnvOrDefaultMulti([]string{"REPLAY_ENV", "ENV", "GO_ENV"}, k.String("env"), DefaultEnv),
		DatabaseURL:            getEnvOrKoanf("DATABASE_URL", k, "database_url"),
		RedisURL:               getEnvOrKoanf("REDIS_URL", k, "redis_url"),
		AllowedOrigins:         splitOrigins(getEnvOrKoanf("ALLOWED_ORIGINS", k, "allowed_origins")),
		JWTSecret:              getEnvOrKoanf("JWT_SECRET", k, "jwt_secret"),
		JWTSecretPrevious:      getEnvOrKoanf("JWT_SECRET_PREVIOUS", k, "jwt_secret_previous"),
		MinPlaySeconds:         minPlay,
		DebounceMillis:         debounce,
		HistoryPageSize:        pageSize,
		FirehoseURL:            getEnvOrKoanf("FIREHOSE_URL", k, "firehose_url"),
		ArchiveBucketName:      getEnvOrKoanf("ARCHIVE_BUCKET_NAME", k, "archive_bucket_name"),
		ArchiveAccessKeyID:     getEnvOrKoanf("ARCHIVE_ACCESS_KEY_ID", k, "archive_access_key_id"),
		ArchiveSecretAccessKey: getEnvOrKoanf("ARCHIVE_SECRET_ACCESS_KEY", k, "archive_secret_access_key"),
		ArchiveEndpoint:        getEnvOrKoanf("ARCHIVE_ENDPOINT", k, "archive_endpoint"),
		ProfilingEnabled:       getEnvBoolOrDefault("PROFILING_ENABLED", k.Bool("profiling_enabled")),
		TracingEnabled:         getEnvBoolOrDefault("TRACING_ENABLED", k.Bool("tracing_enabled")),
		TracingExporter:        getEnvOrDefaultMulti([]string{"TRACING_EXPORTER"}, k.String("tracing_exporter"), DefaultTracingExporter),
		TracingEndpoint:        getEnvOrKoanf("TRACING_ENDPOINT", k, "tracing_endpoint"),
		TracingSampleRate:      sampleRate,
	}

	// Validate and collect errors
	errs := cfg.Validate()
	errs = append(loadErrs, errs...)

	return cfg, errs
}

// splitOrigins parses a comma-separated origin list, dropping empty entries.
func splitOrigins(raw string) []string {
	if raw == "" {
		return nil
	}
	var origins []string
	for _, o := range strings.Split(raw, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}

// getEnvOrKoanf returns the environment variable value if set, otherwise the koanf value.
func getEnvOrKoanf(envKey string, k *koanf.Koanf, koanfKey string) string {
	if val := os.Getenv(envKey); val != "" {
		return val
	}
	return k.String(koanfKey)
}

// getEnvOrDefaultMulti tries multiple environment variable keys in order.
// Returns the first non-empty value found, otherwise the koanf value, or default.
func getEnvOrDefaultMulti(envKeys []string, koanfVal string, defaultVal string) string {
	for _, key := range envKeys {
		if val := os.Getenv(key); val != "" {
			return val
		}
	}
	if koanfVal != "" {
		return koanfVal
	}
	return defaultVal
}

// getEnvIntOrDefault returns the environment variable as int if set, otherwise the koanf value, or default.
// Returns an error if the environment variable is set but cannot be parsed as an integer.
// Note: A value of 0 from a YAML file will fall back to the default; explicit zero is not
// representable in YAML files for these keys.
func getEnvIntOrDefault(envKey string, koanfVal int, defaultVal int) (int, error) {
	if val := os.Getenv(envKey); val != "" {
		i, err := strconv.Atoi(val)
		if err != nil {
			return 0, fmt.Errorf("%s must be a valid integer: %w", envKey, err)
		}
		return i, nil
	}
	if koanfVal != 0 {
		return koanfVal, nil
	}
	return defaultVal, nil
}

// getEnvBoolOrDefault returns the environment variable parsed as bool if set,
// otherwise the koanf value.
func getEnvBoolOrDefault(envKey string, koanfVal bool) bool {
	if val := os.Getenv(envKey); val != "" {
		b, err := strconv.ParseBool(val)
		if err == nil {
			return b
		}
	}
	return koanfVal
}

// getEnvFloatOrDefault returns the environment variable as float64 if set,
// otherwise the koanf value, or default. Returns an error if the environment
// variable is set but cannot be parsed.
func getEnvFloatOrDefault(envKey string, koanfVal float64, defaultVal float64) (float64, error) {
	if val := os.Getenv(envKey); val != "" {
		f, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return 0, fmt.Errorf("%s must be a valid number: %w", envKey, err)
		}
		return f, nil
	}
	if koanfVal != 0 {
		return koanfVal, nil
	}
	return defaultVal, nil
}

// getEnvIntOrDefaultMulti tries multiple environment variable keys in order.
// Returns the first valid integer value found, otherwise the koanf value, or default.
// Returns an error if any environment variable is set but cannot be parsed as an integer.
func getEnvIntOrDefaultMulti(envKeys []string, koanfVal int, defaultVal int) (int, error) {
	for _, key := range envKeys {
		if val := os.Getenv(key); val != "" {
			i, err := strconv.Atoi(val)
			if err != nil {
				return 0, fmt.Errorf("%s must be a valid integer: %w", key, ErrInvalidPort)
			}
			return i, nil
		}
	}
	if koanfVal != 0 {
		return koanfVal, nil
	}
	return defaultVal, nil
}

// Validate checks that all required configuration values are present.
// Returns a slice of validation errors (empty if valid).
func (c *Config) Validate() []error {
	var errs []error

	if c.DatabaseURL == "" {
		errs = append(errs, ErrMissingDatabaseURL)
	}
	if c.JWTSecret == "" {
		errs = append(errs, ErrMissingJWTSecret)
	}
	if c.MinPlaySeconds < 0 {
		errs = append(errs, ErrInvalidMinPlaySeconds)
	}
	if c.DebounceMillis <= 0 {
		errs = append(errs, ErrInvalidDebounceMillis)
	}

	// Archive configuration is optional. Only validate fields if any archive value is set.
	if c.ArchiveBucketName != "" || c.ArchiveAccessKeyID != "" || c.ArchiveSecretAccessKey != "" || c.ArchiveEndpoint != "" {
		if c.ArchiveBucketName == "" {
			errs = append(errs, ErrMissingArchiveBucketName)
		}
		if c.ArchiveAccessKeyID == "" {
			errs = append(errs, ErrMissingArchiveAccessKeyID)
		}
		if c.ArchiveSecretAccessKey == "" {
			errs = append(errs, ErrMissingArchiveSecret)
		}
		if c.ArchiveEndpoint == "" {
			errs = append(errs, ErrMissingArchiveEndpoint)
		}
	}

	return errs
}

// GetJWTSecrets returns the current and previous JWT signing secrets.
// The previous secret is empty outside a rotation window.
func (c *Config) GetJWTSecrets() (current, previous string) {
	return c.JWTSecret, c.JWTSecretPrevious
}

// ArchiveEnabled reports whether cleared-history archival is configured.
func (c *Config) ArchiveEnabled() bool {
	return c.ArchiveBucketName != ""
}

// LogSummary returns a summary of the configuration suitable for logging.
// All secrets are masked to prevent accidental exposure.
func (c *Config) LogSummary() map[string]string {
	return map[string]string{
		"port":                      fmt.Sprintf("%d", c.Port),
		"env":                       c.Env,
		"database_url":              maskConnURL(c.DatabaseURL),
		"redis_url":                 maskConnURL(c.RedisURL),
		"jwt_secret":                maskSecret(c.JWTSecret),
		"jwt_secret_previous":       maskSecret(c.JWTSecretPrevious),
		"min_play_seconds":          fmt.Sprintf("%d", c.MinPlaySeconds),
		"debounce_millis":           fmt.Sprintf("%d", c.DebounceMillis),
		"history_page_size":         fmt.Sprintf("%d", c.HistoryPageSize),
		"firehose_url":              c.FirehoseURL,
		"archive_bucket_name":       c.ArchiveBucketName,
		"archive_access_key_id":     maskSecret(c.ArchiveAccessKeyID),
		"archive_secret_access_key": maskSecret(c.ArchiveSecretAccessKey),
		"archive_endpoint":          c.ArchiveEndpoint,
		"profiling_enabled":         fmt.Sprintf("%t", c.ProfilingEnabled),
		"tracing_enabled":           fmt.Sprintf("%t", c.TracingEnabled),
	}
}

// maskSecret masks a secret value, showing only the first 4 characters followed by ****
// If the secret is shorter than 8 characters, it's fully masked.
func maskSecret(s string) string {
	if s == "" {
		return "<not set>"
	}
	if len(s) < 8 {
		return "****"
	}
	return s[:4] + "****"
}

// maskConnURL masks the password in a connection URL.
// Supports postgres://, postgresql:// and redis:// schemes.
func maskConnURL(s string) string {
	if s == "" {
		return "<not set>"
	}

	// Look for password pattern: user:password@host
	// Simple approach: find :// and then mask between : and @
	schemeEnd := strings.Index(s, "://")
	if schemeEnd == -1 {
		return maskSecret(s)
	}

	rest := s[schemeEnd+3:]
	atIndex := strings.Index(rest, "@")
	if atIndex == -1 {
		return s // No credentials in URL
	}

	colonIndex := strings.Index(rest[:atIndex], ":")
	if colonIndex == -1 {
		return s // No password (only username)
	}

	// Reconstruct URL with masked password
	scheme := s[:schemeEnd+3]
	user := rest[:colonIndex]
	hostAndPath := rest[atIndex:]

	return scheme + user + ":****" + hostAndPath
}
