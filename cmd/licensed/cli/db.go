package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/faucetdb/licensed/internal/connector"
)

func newDBCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "db",
		Aliases: []string{"database"},
		Short:   "Inspect the license database",
		Long: `Apply migrations to and test connectivity of the license database
configured under database.driver and database.dsn.`,
	}

	cmd.AddCommand(newDBMigrateCmd())
	cmd.AddCommand(newDBPingCmd())
	cmd.AddCommand(newDBDriversCmd())

	return cmd
}

func newDBMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or upgrade the license tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			// openStore applies pending migrations.
			s, err := openStore(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer s.Close()

			fmt.Fprintf(cmd.OutOrStdout(), "Schema up to date (%s).\n", s.Driver())
			return nil
		},
	}
}

func newDBPingCmd() *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "ping",
		Short: "Test the database connection",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			db := cfg.DatabaseConfig()
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Driver: %s\n", db.Driver)
			fmt.Fprintf(out, "DSN:    %s\n", connector.RedactDSN(db.DSN))

			conn, err := newRegistry().Open(connector.ConnectionConfig{Driver: db.Driver, DSN: db.DSN})
			if err != nil {
				return err
			}
			defer conn.Disconnect()

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			start := time.Now()
			if err := conn.Ping(ctx); err != nil {
				return fmt.Errorf("ping failed: %w", err)
			}
			fmt.Fprintf(out, "OK (%s)\n", time.Since(start).Round(time.Microsecond))
			return nil
		},
	}

	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Second, "Ping timeout")
	return cmd
}

func newDBDriversCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "drivers",
		Short: "List supported database drivers",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), strings.Join(newRegistry().Drivers(), "\n"))
			return nil
		},
	}
}
