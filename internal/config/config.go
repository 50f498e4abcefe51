// Package config holds the licensed server configuration. Values come from
// defaults, an optional licensed.yaml and LICENSED_* environment variables,
// merged by viper.
package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/faucetdb/licensed/internal/model"
)

// Config is the top-level configuration file layout.
type Config struct {
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Database  DatabaseConfig  `yaml:"database" mapstructure:"database"`
	Auth      AuthConfig      `yaml:"auth" mapstructure:"auth"`
	RateLimit RateLimitConfig `yaml:"rate_limit" mapstructure:"rate_limit"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
	Metrics   MetricsConfig   `yaml:"metrics" mapstructure:"metrics"`
}

// ServerConfig controls the HTTP server behavior.
type ServerConfig struct {
	Host            string   `yaml:"host" mapstructure:"host"`
	Port            int      `yaml:"port" mapstructure:"port"`
	ShutdownTimeout string   `yaml:"shutdown_timeout" mapstructure:"shutdown_timeout"`
	CORSOrigins     []string `yaml:"cors_origins" mapstructure:"cors_origins"`
}

// DatabaseConfig selects the license store backend.
type DatabaseConfig struct {
	Driver          string `yaml:"driver" mapstructure:"driver"`
	DSN             string `yaml:"dsn" mapstructure:"dsn"`
	MaxOpenConns    int    `yaml:"max_open_conns" mapstructure:"max_open_conns"`
	MaxIdleConns    int    `yaml:"max_idle_conns" mapstructure:"max_idle_conns"`
	ConnMaxLifetime string `yaml:"conn_max_lifetime" mapstructure:"conn_max_lifetime"`
}

// AuthConfig controls admin authentication.
type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret" mapstructure:"jwt_secret"`
	JWTExpiry string `yaml:"jwt_expiry" mapstructure:"jwt_expiry"`
}

// RateLimitConfig bounds requests per client IP. Zero disables a limit.
type RateLimitConfig struct {
	ValidatePerMinute int `yaml:"validate_per_minute" mapstructure:"validate_per_minute"`
	AdminPerMinute    int `yaml:"admin_per_minute" mapstructure:"admin_per_minute"`
}

// LogConfig controls log output.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// MetricsConfig toggles the /metrics endpoint.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`
}

// DefaultDataDir returns ~/.licensed, or ./.licensed when the home
// directory cannot be resolved.
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".licensed"
	}
	return filepath.Join(home, ".licensed")
}

// DefaultSQLiteDSN is the embedded database used when no DSN is configured.
func DefaultSQLiteDSN(dataDir string) string {
	return filepath.Join(dataDir, "licensed.db") +
		"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_time_format=sqlite&_txlock=immediate"
}

// Default returns a Config pre-filled with defaults.
func Default(dataDir string) *Config {
	pool := model.DefaultPoolConfig()
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ShutdownTimeout: "30s",
			CORSOrigins:     []string{"*"},
		},
		Database: DatabaseConfig{
			Driver:          "sqlite",
			DSN:             DefaultSQLiteDSN(dataDir),
			MaxOpenConns:    pool.MaxOpenConns,
			MaxIdleConns:    pool.MaxIdleConns,
			ConnMaxLifetime: pool.ConnMaxLifetime.String(),
		},
		Auth: AuthConfig{
			JWTExpiry: "24h",
		},
		RateLimit: RateLimitConfig{ValidatePerMinute: 60, AdminPerMinute: 600},
		Log:       LogConfig{Level: "info", Format: "text"},
		Metrics:   MetricsConfig{Enabled: true},
	}
}

// SetDefaults registers every key on v so that environment variables
// resolve even when no config file is present.
func SetDefaults(v *viper.Viper, dataDir string) {
	d := Default(dataDir)
	v.SetDefault("server.host", d.Server.Host)
	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("server.shutdown_timeout", d.Server.ShutdownTimeout)
	v.SetDefault("server.cors_origins", d.Server.CORSOrigins)
	v.SetDefault("database.driver", d.Database.Driver)
	v.SetDefault("database.dsn", d.Database.DSN)
	v.SetDefault("database.max_open_conns", d.Database.MaxOpenConns)
	v.SetDefault("database.max_idle_conns", d.Database.MaxIdleConns)
	v.SetDefault("database.conn_max_lifetime", d.Database.ConnMaxLifetime)
	v.SetDefault("auth.jwt_secret", d.Auth.JWTSecret)
	v.SetDefault("auth.jwt_expiry", d.Auth.JWTExpiry)
	v.SetDefault("rate_limit.validate_per_minute", d.RateLimit.ValidatePerMinute)
	v.SetDefault("rate_limit.admin_per_minute", d.RateLimit.AdminPerMinute)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
	v.SetDefault("metrics.enabled", d.Metrics.Enabled)
}

// Load decodes v into a Config and validates it.
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports the first malformed value.
func (c *Config) Validate() error {
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	for key, val := range map[string]string{
		"server.shutdown_timeout":    c.Server.ShutdownTimeout,
		"database.conn_max_lifetime": c.Database.ConnMaxLifetime,
		"auth.jwt_expiry":            c.Auth.JWTExpiry,
	} {
		if val == "" {
			continue
		}
		if _, err := time.ParseDuration(val); err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
	}
	if c.RateLimit.ValidatePerMinute < 0 {
		return fmt.Errorf("rate_limit.validate_per_minute must not be negative")
	}
	if c.RateLimit.AdminPerMinute < 0 {
		return fmt.Errorf("rate_limit.admin_per_minute must not be negative")
	}
	if _, err := parseLevel(c.Log.Level); err != nil {
		return err
	}
	switch strings.ToLower(c.Log.Format) {
	case "", "text", "json":
	default:
		return fmt.Errorf("log.format %q: want text or json", c.Log.Format)
	}
	return nil
}

// ShutdownTimeout returns the parsed graceful shutdown window.
func (c *Config) ShutdownTimeout() time.Duration {
	return durationOr(c.Server.ShutdownTimeout, 30*time.Second)
}

// JWTExpiry returns the parsed admin session lifetime.
func (c *Config) JWTExpiry() time.Duration {
	return durationOr(c.Auth.JWTExpiry, 24*time.Hour)
}

// DatabaseConfig converts the database section for the connector registry.
func (c *Config) DatabaseConfig() model.DatabaseConfig {
	pool := model.DefaultPoolConfig()
	if c.Database.MaxOpenConns > 0 {
		pool.MaxOpenConns = c.Database.MaxOpenConns
	}
	if c.Database.MaxIdleConns > 0 {
		pool.MaxIdleConns = c.Database.MaxIdleConns
	}
	pool.ConnMaxLifetime = durationOr(c.Database.ConnMaxLifetime, pool.ConnMaxLifetime)
	return model.DatabaseConfig{
		Driver: c.Database.Driver,
		DSN:    c.Database.DSN,
		Pool:   pool,
	}
}

func durationOr(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

// NewLogger builds the process logger. debug overrides the configured level.
func (l LogConfig) NewLogger(w io.Writer, debug bool) *slog.Logger {
	level, _ := parseLevel(l.Level)
	if debug {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(l.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func parseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("log.level %q: want debug, info, warn or error", s)
}

// LoadFile reads a YAML configuration file. ${VAR} references are expanded
// before parsing; missing keys keep their defaults.
func LoadFile(path, dataDir string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := Default(dataDir)
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Marshal renders the configuration as YAML with the JWT secret masked.
func (c *Config) Marshal() ([]byte, error) {
	out := *c
	if out.Auth.JWTSecret != "" {
		out.Auth.JWTSecret = "********"
	}
	return yaml.Marshal(&out)
}

// WriteDefault writes the default configuration to path. It refuses to
// overwrite an existing file.
func WriteDefault(path, dataDir string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%s already exists", path)
	}
	data, err := yaml.Marshal(Default(dataDir))
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}
