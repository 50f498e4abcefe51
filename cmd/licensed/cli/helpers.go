package cli

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/viper"

	"github.com/faucetdb/licensed/internal/config"
	"github.com/faucetdb/licensed/internal/connector"
	"github.com/faucetdb/licensed/internal/connector/mssql"
	"github.com/faucetdb/licensed/internal/connector/mysql"
	"github.com/faucetdb/licensed/internal/connector/postgres"
	"github.com/faucetdb/licensed/internal/connector/sqlite"
	"github.com/faucetdb/licensed/internal/license"
	"github.com/faucetdb/licensed/internal/store"
)

// dataDir holds the --data-dir persistent flag value (set on root command).
var dataDir string

// resolveDataDir returns the data directory from --data-dir flag,
// LICENSED_DATA_DIR env var, or ~/.licensed as fallback.
func resolveDataDir() string {
	if dataDir != "" {
		return dataDir
	}
	if envDir := os.Getenv("LICENSED_DATA_DIR"); envDir != "" {
		return envDir
	}
	return config.DefaultDataDir()
}

// loadConfig decodes the merged viper settings.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

// newRegistry creates a connector registry with all supported database drivers registered.
func newRegistry() *connector.Registry {
	registry := connector.NewRegistry()
	registry.RegisterDriver("sqlite", sqlite.New)
	registry.RegisterDriver("mysql", mysql.New)
	registry.RegisterDriver("postgres", postgres.New)
	registry.RegisterDriver("mssql", mssql.New)
	return registry
}

// openStore connects to the configured license database and brings its
// schema up to date.
func openStore(ctx context.Context, cfg *config.Config) (*store.Store, error) {
	db := cfg.DatabaseConfig()
	if db.Driver == "sqlite" {
		if err := os.MkdirAll(resolveDataDir(), 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}

	conn, err := newRegistry().Open(connector.ConnectionConfig{
		Driver:          db.Driver,
		DSN:             db.DSN,
		MaxOpenConns:    db.Pool.MaxOpenConns,
		MaxIdleConns:    db.Pool.MaxIdleConns,
		ConnMaxLifetime: db.Pool.ConnMaxLifetime,
		ConnMaxIdleTime: db.Pool.ConnMaxIdleTime,
	})
	if err != nil {
		return nil, err
	}

	s := store.New(conn)
	if err := s.Migrate(ctx); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

// licenseEnv bundles what the offline commands need to act on the license
// database directly.
type licenseEnv struct {
	cfg       *config.Config
	store     *store.Store
	generator *license.Generator
	engine    *license.Engine
	gateway   *license.Gateway
}

// openLicenseEnv loads config and opens the store. Commands log warnings
// and errors only, to stderr.
func openLicenseEnv(ctx context.Context) (*licenseEnv, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	s, err := openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	opt := license.WithLogger(logger)
	return &licenseEnv{
		cfg:       cfg,
		store:     s,
		generator: license.NewGenerator(s, opt),
		engine:    license.NewEngine(s, opt),
		gateway:   license.NewGateway(s, opt),
	}, nil
}

func (e *licenseEnv) Close() error { return e.store.Close() }

// jwtSecret returns the configured secret, or a random per-process one
// when none is set. Sessions then do not survive a restart.
func jwtSecret(cfg *config.Config, logger *slog.Logger) string {
	if cfg.Auth.JWTSecret != "" {
		return cfg.Auth.JWTSecret
	}
	b := make([]byte, 32)
	rand.Read(b)
	logger.Warn("auth.jwt_secret is not set; using a random secret, admin sessions end on restart")
	return hex.EncodeToString(b)
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

// --- PID file management ---

func pidFilePath() string {
	return filepath.Join(resolveDataDir(), "licensed.pid")
}

func writePID(pid int) error {
	dir := resolveDataDir()
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	return os.WriteFile(pidFilePath(), []byte(strconv.Itoa(pid)), 0644)
}

func readPID() (int, error) {
	data, err := os.ReadFile(pidFilePath())
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(data)))
}

func removePID() {
	os.Remove(pidFilePath())
}

func logFilePath() string {
	return filepath.Join(resolveDataDir(), "licensed.log")
}

// versionString returns a display version string.
func versionString() string {
	if appVersion == "" || appVersion == "dev" {
		return "dev"
	}
	if strings.HasPrefix(appVersion, "v") {
		return appVersion
	}
	return "v" + appVersion
}
