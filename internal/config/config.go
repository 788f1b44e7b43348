// Package config loads and validates service configuration from the environment and an
// optional .env file using Viper.
package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Env      string `mapstructure:"APP_ENV"`
	HTTPAddr string `mapstructure:"HTTP_ADDR"`
	LogLevel string `mapstructure:"LOG_LEVEL"`

	DBDriver    string `mapstructure:"DB_DRIVER"`
	DatabaseURL string `mapstructure:"DATABASE_URL"`

	// RedisAddr is optional; when empty the negative lookup cache and the refresh
	// rate limiter fall back to process-local state.
	RedisAddr     string `mapstructure:"REDIS_ADDR"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`
	RedisDB       int    `mapstructure:"REDIS_DB"`

	JWTSecret            string        `mapstructure:"JWT_SECRET"`
	JWTIssuer            string        `mapstructure:"JWT_ISSUER"`
	JWTAudience          string        `mapstructure:"JWT_AUDIENCE"`
	JWTAccessTTL         time.Duration `mapstructure:"JWT_ACCESS_TTL"`
	RefreshTTL           time.Duration `mapstructure:"REFRESH_TTL"`
	RefreshRememberMeTTL time.Duration `mapstructure:"REFRESH_REMEMBER_ME_TTL"`
	RefreshHashPepper    string        `mapstructure:"REFRESH_HASH_PEPPER"`

	SweepTimeout                time.Duration `mapstructure:"SWEEP_TIMEOUT"`
	AuthCreateUnmatchedSessions bool          `mapstructure:"AUTH_CREATE_UNMATCHED_SESSIONS"`
	AuthLogoutRoute             string        `mapstructure:"AUTH_LOGOUT_ROUTE"`
	RefreshRateLimitPerMinute   int           `mapstructure:"REFRESH_RATE_LIMIT_PER_MINUTE"`
	NegativeCacheTTL            time.Duration `mapstructure:"NEGATIVE_CACHE_TTL"`

	GoogleClientID     string `mapstructure:"GOOGLE_CLIENT_ID"`
	GoogleClientSecret string `mapstructure:"GOOGLE_CLIENT_SECRET"`
	GoogleUserInfoURL  string `mapstructure:"GOOGLE_USERINFO_URL"`

	OTELMetricsEnabled        bool          `mapstructure:"OTEL_METRICS_ENABLED"`
	OTELTracingEnabled        bool          `mapstructure:"OTEL_TRACING_ENABLED"`
	OTELLogsEnabled           bool          `mapstructure:"OTEL_LOGS_ENABLED"`
	OTELExporterOTLPEndpoint  string        `mapstructure:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	OTELExporterOTLPInsecure  bool          `mapstructure:"OTEL_EXPORTER_OTLP_INSECURE"`
	OTELServiceName           string        `mapstructure:"OTEL_SERVICE_NAME"`
	OTELEnvironment           string        `mapstructure:"OTEL_ENVIRONMENT"`
	OTELMetricsExportInterval time.Duration `mapstructure:"OTEL_METRICS_EXPORT_INTERVAL"`
	OTELTraceSampleRatio      float64       `mapstructure:"OTEL_TRACE_SAMPLE_RATIO"`

	ShutdownTimeout time.Duration `mapstructure:"SHUTDOWN_TIMEOUT"`
}

var defaults = map[string]any{
	"APP_ENV":                        "development",
	"HTTP_ADDR":                      ":8080",
	"LOG_LEVEL":                      "info",
	"DB_DRIVER":                      "postgres",
	"DATABASE_URL":                   "",
	"REDIS_ADDR":                     "",
	"REDIS_PASSWORD":                 "",
	"REDIS_DB":                       0,
	"JWT_SECRET":                     "",
	"JWT_ISSUER":                     "device-session-guard",
	"JWT_AUDIENCE":                   "device-session-guard-api",
	"JWT_ACCESS_TTL":                 "15m",
	"REFRESH_TTL":                    "24h",
	"REFRESH_REMEMBER_ME_TTL":        "720h",
	"REFRESH_HASH_PEPPER":            "",
	"SWEEP_TIMEOUT":                  "10s",
	"AUTH_CREATE_UNMATCHED_SESSIONS": true,
	"AUTH_LOGOUT_ROUTE":              "logout-user",
	"REFRESH_RATE_LIMIT_PER_MINUTE":  10,
	"NEGATIVE_CACHE_TTL":             "5m",
	"GOOGLE_CLIENT_ID":               "",
	"GOOGLE_CLIENT_SECRET":           "",
	"GOOGLE_USERINFO_URL":            "https://openidconnect.googleapis.com/v1/userinfo",
	"OTEL_METRICS_ENABLED":           false,
	"OTEL_TRACING_ENABLED":           false,
	"OTEL_LOGS_ENABLED":              false,
	"OTEL_EXPORTER_OTLP_ENDPOINT":    "localhost:4317",
	"OTEL_EXPORTER_OTLP_INSECURE":    true,
	"OTEL_SERVICE_NAME":              "device-session-guard",
	"OTEL_ENVIRONMENT":               "development",
	"OTEL_METRICS_EXPORT_INTERVAL":   "15s",
	"OTEL_TRACE_SAMPLE_RATIO":        1.0,
	"SHUTDOWN_TIMEOUT":               "20s",
}

// Load reads .env (if present), then builds and validates Config from the environment.
// Environment variables override .env values.
func Load() (*Config, error) {
	return LoadFile(".env")
}

func LoadFile(envFile string) (*Config, error) {
	v := viper.New()
	v.AutomaticEnv()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	cfg, err := load(v, envFile)
	profile := v.GetString("APP_ENV")
	if err != nil {
		recordConfigValidationEvent(context.Background(), profile, "failure", classifyConfigLoadError(err))
		return nil, err
	}
	recordConfigValidationEvent(context.Background(), profile, "success", "none")
	return cfg, nil
}

func load(v *viper.Viper, envFile string) (*Config, error) {
	if envFile != "" {
		if err := readEnvFile(v, envFile); err != nil {
			return nil, &loadError{stage: stageEnvFile, err: err}
		}
	}
	cfg, err := decode(v)
	if err != nil {
		return nil, &loadError{stage: stageParse, err: err}
	}
	if err := cfg.Validate(); err != nil {
		return nil, &loadError{stage: stageValidate, err: err}
	}
	return cfg, nil
}

// A missing env file is fine; environment variables still apply.
func readEnvFile(v *viper.Viper, path string) error {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	v.SetConfigFile(path)
	v.SetConfigType("env")
	return v.ReadInConfig()
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	cfg.DBDriver = strings.ToLower(strings.TrimSpace(cfg.DBDriver))
	cfg.AuthLogoutRoute = strings.Trim(strings.TrimSpace(cfg.AuthLogoutRoute), "/")
	return &cfg, nil
}

func (c *Config) Validate() error {
	var errs []error
	if c.HTTPAddr == "" {
		errs = append(errs, errors.New("HTTP_ADDR is required"))
	}
	switch c.DBDriver {
	case "postgres":
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required for postgres"))
		}
	case "sqlite":
	default:
		errs = append(errs, fmt.Errorf("DB_DRIVER must be postgres or sqlite, got %q", c.DBDriver))
	}
	if len(c.JWTSecret) < 32 {
		errs = append(errs, errors.New("JWT_SECRET must be at least 32 bytes"))
	}
	if len(c.RefreshHashPepper) < 16 {
		errs = append(errs, errors.New("REFRESH_HASH_PEPPER must be at least 16 bytes"))
	}
	if c.JWTAccessTTL <= 0 {
		errs = append(errs, errors.New("JWT_ACCESS_TTL must be positive"))
	}
	if c.RefreshTTL <= 0 {
		errs = append(errs, errors.New("REFRESH_TTL must be positive"))
	}
	if c.RefreshRememberMeTTL < c.RefreshTTL {
		errs = append(errs, errors.New("REFRESH_REMEMBER_ME_TTL must not be shorter than REFRESH_TTL"))
	}
	if c.SweepTimeout <= 0 {
		errs = append(errs, errors.New("SWEEP_TIMEOUT must be positive"))
	}
	if c.AuthLogoutRoute == "" {
		errs = append(errs, errors.New("AUTH_LOGOUT_ROUTE is required"))
	}
	if c.NegativeCacheTTL > c.JWTAccessTTL {
		errs = append(errs, errors.New("NEGATIVE_CACHE_TTL must not exceed JWT_ACCESS_TTL"))
	}
	if c.OTELTraceSampleRatio < 0 || c.OTELTraceSampleRatio > 1 {
		errs = append(errs, errors.New("OTEL_TRACE_SAMPLE_RATIO must be within [0,1]"))
	}
	if c.Env == "production" && c.DBDriver == "sqlite" {
		errs = append(errs, errors.New("DB_DRIVER=sqlite is not allowed when APP_ENV=production"))
	}
	return errors.Join(errs...)
}

// RefreshWindow returns the refresh validity window for a user preference.
func (c *Config) RefreshWindow(rememberMe bool) time.Duration {
	if rememberMe {
		return c.RefreshRememberMeTTL
	}
	return c.RefreshTTL
}
