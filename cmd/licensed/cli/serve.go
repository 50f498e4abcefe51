package cli

import (
	"context"
	"fmt"
	"os"
	"os/exec"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/faucetdb/licensed/internal/license"
	"github.com/faucetdb/licensed/internal/metrics"
	"github.com/faucetdb/licensed/internal/server"
	"github.com/faucetdb/licensed/internal/service"
)

const banner = `
 _     ___ ___ ___ _  _ ___ ___ ___
| |   |_ _/ __| __| \| / __| __|   \
| |__  | | (__| _|| .' \__ \ _|| |) |
|____||___\___|___|_|\_|___/___|___/
`

func newServeCmd() *cobra.Command {
	var (
		port       int
		host       string
		dev        bool
		background bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the license server",
		Long: `Start the HTTP server exposing the public /validate endpoint, the admin API
under /api/v1, and the MCP endpoint at /mcp.

With --background the server is re-launched as a detached process; use
'licensed status' and 'licensed stop' to manage it.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if background {
				return runBackground(cmd)
			}
			return runServe(cmd.Context(), dev)
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 8080, "HTTP listen port")
	cmd.Flags().StringVar(&host, "host", "0.0.0.0", "HTTP listen host")
	cmd.Flags().BoolVar(&dev, "dev", false, "Enable development mode (debug logging)")
	cmd.Flags().BoolVarP(&background, "background", "d", false, "Run the server as a detached background process")

	viper.BindPFlag("server.port", cmd.Flags().Lookup("port"))
	viper.BindPFlag("server.host", cmd.Flags().Lookup("host"))

	return cmd
}

func runServe(ctx context.Context, dev bool) error {
	fmt.Print(banner)
	fmt.Println()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := cfg.Log.NewLogger(os.Stderr, dev)

	s, err := openStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("open license store: %w", err)
	}
	logger.Info("license store ready", "driver", s.Driver())

	opts := []license.Option{license.WithLogger(logger)}
	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New()
		opts = append(opts, license.WithRecorder(m))
	}

	authSvc := service.NewAuthService(s, jwtSecret(cfg, logger))

	hasAdmin, err := s.HasAnyAdmin(ctx)
	if err != nil {
		logger.Warn("failed to check for admin", "error", err)
	}
	if !hasAdmin {
		logger.Warn("no admin account found - run: licensed admin create")
	}

	srvCfg := server.Config{
		Host:              cfg.Server.Host,
		Port:              cfg.Server.Port,
		ShutdownTimeout:   cfg.ShutdownTimeout(),
		CORSOrigins:       cfg.Server.CORSOrigins,
		TokenTTL:          cfg.JWTExpiry(),
		ValidatePerMinute: cfg.RateLimit.ValidatePerMinute,
		AdminPerMinute:    cfg.RateLimit.AdminPerMinute,
		Version:           versionString(),
	}

	srv := server.New(srvCfg, server.Deps{
		Store:     s,
		Auth:      authSvc,
		Generator: license.NewGenerator(s, opts...),
		Engine:    license.NewEngine(s, opts...),
		Gateway:   license.NewGateway(s, opts...),
		Metrics:   m,
	}, logger)

	if err := writePID(os.Getpid()); err != nil {
		logger.Warn("failed to write PID file", "path", pidFilePath(), "error", err)
	}
	defer removePID()

	base := fmt.Sprintf("http://%s:%d", srvCfg.Host, srvCfg.Port)
	fmt.Printf("→ Licensed %s\n", versionString())
	fmt.Printf("→ Listening on %s\n", base)
	fmt.Printf("→ Validate:   %s/validate\n", base)
	fmt.Printf("→ Admin API:  %s/api/v1\n", base)
	fmt.Printf("→ MCP:        %s/mcp\n", base)
	fmt.Printf("→ OpenAPI:    %s/openapi.json\n", base)
	fmt.Printf("→ Health:     %s/healthz\n", base)
	if m != nil {
		fmt.Printf("→ Metrics:    %s/metrics\n", base)
	}
	fmt.Println()

	return srv.ListenAndServe()
}

// runBackground re-executes the current binary without --background, with
// output redirected to the log file, and records the child PID.
func runBackground(cmd *cobra.Command) error {
	if pid, err := readPID(); err == nil && isProcessRunning(pid) {
		return fmt.Errorf("server already running (PID %d)", pid)
	}

	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("locate executable: %w", err)
	}
	if err := os.MkdirAll(resolveDataDir(), 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	logFile, err := os.OpenFile(logFilePath(), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer logFile.Close()

	child := exec.Command(exe, foregroundArgs(os.Args[1:])...)
	child.Stdout = logFile
	child.Stderr = logFile
	child.Env = os.Environ()
	setSysProcAttr(child)

	if err := child.Start(); err != nil {
		return fmt.Errorf("start background server: %w", err)
	}
	if err := writePID(child.Process.Pid); err != nil {
		return fmt.Errorf("write PID file: %w", err)
	}
	child.Process.Release()

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Licensed server started in background (PID %d)\n", child.Process.Pid)
	fmt.Fprintf(out, "  Logs: %s\n", logFilePath())
	fmt.Fprintln(out, "  Stop: licensed stop")
	return nil
}

// foregroundArgs strips the background flag from args.
func foregroundArgs(args []string) []string {
	out := make([]string, 0, len(args))
	for _, a := range args {
		switch a {
		case "-d", "--background", "--background=true":
			continue
		}
		out = append(out, a)
	}
	return out
}
