// Package config provides configuration loading and validation for the API server.
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

	"github.com/apconsolide/tale-mosaic/internal/validate"
)

// Config holds all configuration values for the API server.
type Config struct {
	// Server settings
	Port int    `koanf:"port"`
	Env  string `koanf:"env"`

	// Database. Optional: without it the server runs on in-memory stores.
	DatabaseURL string `koanf:"database_url"`

	// Gemini extraction
	GeminiAPIKey  string `koanf:"gemini_api_key"`
	GeminiModel   string `koanf:"gemini_model"`
	GeminiBaseURL string `koanf:"gemini_base_url"`

	// Redis. Optional: backs the extraction cache and rate limit store.
	RedisURL                  string `koanf:"redis_url"`
	ExtractionCacheTTLSeconds int    `koanf:"extraction_cache_ttl_seconds"`

	// CORS
	CORSAllowedOrigins string `koanf:"cors_allowed_origins"`

	// S3-compatible object storage for audio uploads. Optional group.
	S3BucketName      string `koanf:"s3_bucket_name"`
	S3AccessKeyID     string `koanf:"s3_access_key_id"`
	S3SecretAccessKey string `koanf:"s3_secret_access_key"`
	S3Endpoint        string `koanf:"s3_endpoint"`
	S3MaxUploadSizeMB int    `koanf:"s3_max_upload_size_mb"` // Default: 25MB

	// Rate limiting
	RateLimitRequests      int `koanf:"rate_limit_requests"`
	RateLimitWindowSeconds int `koanf:"rate_limit_window_seconds"`

	// Tracing
	TracingEnabled bool   `koanf:"tracing_enabled"`
	OTLPEndpoint   string `koanf:"otlp_endpoint"`
}

// Configuration validation errors.
var (
	ErrMissingS3BucketName      = errors.New("S3_BUCKET_NAME is required")
	ErrMissingS3AccessKeyID     = errors.New("S3_ACCESS_KEY_ID is required")
	ErrMissingS3SecretAccessKey = errors.New("S3_SECRET_ACCESS_KEY is required")
	ErrMissingS3Endpoint        = errors.New("S3_ENDPOINT is required")
	ErrInvalidGeminiBaseURL     = errors.New("GEMINI_BASE_URL is not a valid URL")
	ErrInvalidInteger           = errors.New("must be a valid integer")
)

// Default values for non-secret configuration.
const (
	DefaultPort                      = 8080
	DefaultEnv                       = "development"
	DefaultS3MaxUploadSizeMB         = 25
	DefaultExtractionCacheTTLSeconds = 3600
	DefaultRateLimitRequests         = 100
	DefaultRateLimitWindowSeconds    = 60
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

	port, portErr := getEnvIntOrDefault("PORT", k.Int("port"), DefaultPort)
	if portErr != nil {
		loadErrs = append(loadErrs, portErr)
	}

	maxUploadSize, uploadSizeErr := getEnvIntOrDefault("S3_MAX_UPLOAD_SIZE_MB", k.Int("s3_max_upload_size_mb"), DefaultS3MaxUploadSizeMB)
	if uploadSizeErr != nil {
		loadErrs = append(loadErrs, uploadSizeErr)
	}

	cacheTTL, cacheTTLErr := getEnvIntOrDefault("EXTRACTION_CACHE_TTL_SECONDS", k.Int("extraction_cache_ttl_seconds"), DefaultExtractionCacheTTLSeconds)
	if cacheTTLErr != nil {
		loadErrs = append(loadErrs, cacheTTLErr)
	}

	rateLimitRequests, rateLimitErr := getEnvIntOrDefault("RATE_LIMIT_REQUESTS", k.Int("rate_limit_requests"), DefaultRateLimitRequests)
	if rateLimitErr != nil {
		loadErrs = append(loadErrs, rateLimitErr)
	}

	rateLimitWindow, rateWindowErr := getEnvIntOrDefault("RATE_LIMIT_WINDOW_SECONDS", k.Int("rate_limit_window_seconds"), DefaultRateLimitWindowSeconds)
	if rateWindowErr != nil {
		loadErrs = append(loadErrs, rateWindowErr)
	}

	tracingEnabled := k.Bool("tracing_enabled")
	if val := os.Getenv("TRACING_ENABLED"); val != "" {
		// Env var takes precedence over file config
		switch strings.ToLower(val) {
		case "true", "1", "yes", "on":
			tracingEnabled = true
		case "false", "0", "no", "off":
			tracingEnabled = false
		}
	}

	// Build config struct, with env vars taking precedence over file values
	cfg := &Config{
		Port:                      port,
		Env:                       getEnvOrDefaultMulti([]string{"ENV", "GO_ENV"}, k.String("env"), DefaultEnv),
		DatabaseURL:               getEnvOrKoanf("DATABASE_URL", k, "database_url"),
		GeminiAPIKey:              getEnvOrKoanf("GEMINI_API_KEY", k, "gemini_api_key"),
		GeminiModel:               getEnvOrKoanf("GEMINI_MODEL", k, "gemini_model"),
		GeminiBaseURL:             getEnvOrKoanf("GEMINI_BASE_URL", k, "gemini_base_url"),
		RedisURL:                  getEnvOrKoanf("REDIS_URL", k, "redis_url"),
		ExtractionCacheTTLSeconds: cacheTTL,
		CORSAllowedOrigins:        getEnvOrKoanf("CORS_ALLOWED_ORIGINS", k, "cors_allowed_origins"),
		S3BucketName:              getEnvOrKoanf("S3_BUCKET_NAME", k, "s3_bucket_name"),
		S3AccessKeyID:             getEnvOrKoanf("S3_ACCESS_KEY_ID", k, "s3_access_key_id"),
		S3SecretAccessKey:         getEnvOrKoanf("S3_SECRET_ACCESS_KEY", k, "s3_secret_access_key"),
		S3Endpoint:                getEnvOrKoanf("S3_ENDPOINT", k, "s3_endpoint"),
		S3MaxUploadSizeMB:         maxUploadSize,
		RateLimitRequests:         rateLimitRequests,
		RateLimitWindowSeconds:    rateLimitWindow,
		TracingEnabled:            tracingEnabled,
		OTLPEndpoint:              getEnvOrKoanf("OTLP_ENDPOINT", k, "otlp_endpoint"),
	}

	// Validate and collect errors
	errs := cfg.Validate()
	errs = append(loadErrs, errs...)

	return cfg, errs
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
// Note: A value of 0 from a YAML file will fall back to the default.
func getEnvIntOrDefault(envKey string, koanfVal int, defaultVal int) (int, error) {
	if val := os.Getenv(envKey); val != "" {
		i, err := strconv.Atoi(val)
		if err != nil {
			return 0, fmt.Errorf("%s: %w", envKey, ErrInvalidInteger)
		}
		return i, nil
	}
	if koanfVal != 0 {
		return koanfVal, nil
	}
	return defaultVal, nil
}

// Validate checks that configuration values are consistent.
// Returns a slice of validation errors (empty if valid).
//
// Nothing here is strictly required: the server degrades to in-memory stores
// without a database and to preview-only extraction without an API key.
func (c *Config) Validate() []error {
	var errs []error

	// A custom Gemini base URL must at least parse as a public HTTP URL
	if c.GeminiBaseURL != "" {
		if _, err := validate.ExtractorBaseURL(c.GeminiBaseURL); err != nil {
			errs = append(errs, fmt.Errorf("%w: %v", ErrInvalidGeminiBaseURL, err))
		}
	}

	// S3 configuration is optional. Only validate fields if any S3 value is set.
	if c.S3BucketName != "" || c.S3AccessKeyID != "" || c.S3SecretAccessKey != "" || c.S3Endpoint != "" {
		if c.S3BucketName == "" {
			errs = append(errs, ErrMissingS3BucketName)
		}
		if c.S3AccessKeyID == "" {
			errs = append(errs, ErrMissingS3AccessKeyID)
		}
		if c.S3SecretAccessKey == "" {
			errs = append(errs, ErrMissingS3SecretAccessKey)
		}
		if c.S3Endpoint == "" {
			errs = append(errs, ErrMissingS3Endpoint)
		}
	}

	return errs
}

// LogSummary returns a summary of the configuration suitable for logging.
// All secrets are masked to prevent accidental exposure.
func (c *Config) LogSummary() map[string]string {
	return map[string]string{
		"port":                         fmt.Sprintf("%d", c.Port),
		"env":                          c.Env,
		"database_url":                 maskDatabaseURL(c.DatabaseURL),
		"gemini_api_key":               maskSecret(c.GeminiAPIKey),
		"gemini_model":                 c.GeminiModel,
		"gemini_base_url":              c.GeminiBaseURL,
		"redis_url":                    maskDatabaseURL(c.RedisURL),
		"extraction_cache_ttl_seconds": fmt.Sprintf("%d", c.ExtractionCacheTTLSeconds),
		"cors_allowed_origins":         c.CORSAllowedOrigins,
		"s3_bucket_name":               c.S3BucketName,
		"s3_access_key_id":             maskSecret(c.S3AccessKeyID),
		"s3_secret_access_key":         maskSecret(c.S3SecretAccessKey),
		"s3_endpoint":                  c.S3Endpoint,
		"s3_max_upload_size_mb":        fmt.Sprintf("%d", c.S3MaxUploadSizeMB),
		"rate_limit_requests":          fmt.Sprintf("%d", c.RateLimitRequests),
		"rate_limit_window_seconds":    fmt.Sprintf("%d", c.RateLimitWindowSeconds),
		"tracing_enabled":              fmt.Sprintf("%t", c.TracingEnabled),
		"otlp_endpoint":                c.OTLPEndpoint,
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

// maskDatabaseURL masks the password in a connection URL.
// Supports postgres://, postgresql:// and redis:// schemes.
func maskDatabaseURL(s string) string {
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
