package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/faucetdb/licensed/internal/license"
	lmcp "github.com/faucetdb/licensed/internal/mcp"
)

func newMCPCmd() *cobra.Command {
	var (
		transport string
		port      int
	)

	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Start a standalone MCP server for AI agents",
		Long: `Start a Model Context Protocol (MCP) server that exposes license operations
as tools: generating and listing codes, inspecting and releasing bindings,
checking hardware and reading statistics.

In stdio mode the server speaks JSON-RPC over stdin/stdout, suitable for
desktop MCP clients. In http mode it serves the streamable HTTP transport
without authentication; bind it to a trusted interface only. 'licensed serve'
also mounts an authenticated MCP endpoint at /mcp.`,
		Example: `  licensed mcp                             # stdio mode
  licensed mcp --transport http --port 3001`,
		RunE: func(cmd *cobra.Command, args []string) error {
			// stdout carries the protocol in stdio mode, so logs go to stderr.
			logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			s, err := openStore(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer s.Close()

			opt := license.WithLogger(logger)
			srv := lmcp.NewMCPServer(
				license.NewGenerator(s, opt),
				license.NewGateway(s, opt),
				license.NewEngine(s, opt),
				versionString(),
				logger,
			)

			switch transport {
			case "stdio":
				return srv.ServeStdio()
			case "http":
				return srv.ServeHTTP(fmt.Sprintf("127.0.0.1:%d", port))
			default:
				return fmt.Errorf("unsupported transport %q; use 'stdio' or 'http'", transport)
			}
		},
	}

	cmd.Flags().StringVar(&transport, "transport", "stdio", "Transport mode: stdio or http")
	cmd.Flags().IntVar(&port, "port", 3001, "HTTP port on 127.0.0.1 (only used with --transport http)")

	return cmd
}
