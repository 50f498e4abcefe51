package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/faucetdb/licensed/internal/model"
)

func newBindingCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "binding",
		Aliases: []string{"bindings"},
		Short:   "Manage hardware bindings",
		Long: `Inspect and release hardware bindings. Releasing a binding marks its
activation code unused so it can be redeemed again.`,
	}

	cmd.AddCommand(newBindingListCmd())
	cmd.AddCommand(newBindingShowCmd())
	cmd.AddCommand(newBindingDeleteCmd())
	cmd.AddCommand(newBindingReleaseCmd())

	return cmd
}

func newBindingListCmd() *cobra.Command {
	var (
		limit   int
		offset  int
		jsonOut bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List hardware bindings, most recent first",
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := openLicenseEnv(cmd.Context())
			if err != nil {
				return err
			}
			defer env.Close()

			list, err := env.gateway.ListBindings(cmd.Context(), model.Page{Limit: limit, Offset: offset})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if jsonOut {
				return printJSON(out, map[string]interface{}{
					"bindings": list.Bindings,
					"total":    list.Total,
					"limit":    list.Page.Limit,
					"offset":   list.Page.Offset,
				})
			}

			if len(list.Bindings) == 0 {
				fmt.Fprintln(out, "No bindings found.")
				return nil
			}
			fmt.Fprintf(out, "%-6s  %-24s  %-29s  %-12s  %s\n", "ID", "HARDWARE", "CODE", "TYPE", "EXPIRES")
			for _, b := range list.Bindings {
				fmt.Fprintf(out, "%-6d  %-24s  %-29s  %-12s  %s\n",
					b.ID, truncate(b.HardwareID, 24), b.Code, b.LicenseType, model.FormatExpiry(b.ExpiresAt))
			}
			fmt.Fprintf(out, "\nShowing %d of %d\n", len(list.Bindings), list.Total)
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", model.DefaultPageLimit, "Maximum number of bindings to show")
	cmd.Flags().IntVar(&offset, "offset", 0, "Number of bindings to skip")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")

	return cmd
}

func newBindingShowCmd() *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "show <hardware-id>",
		Short: "Show the binding of a hardware id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := openLicenseEnv(cmd.Context())
			if err != nil {
				return err
			}
			defer env.Close()

			b, err := env.gateway.BindingForHardware(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if b == nil {
				return fmt.Errorf("hardware %q is not bound", args[0])
			}

			out := cmd.OutOrStdout()
			if jsonOut {
				return printJSON(out, b)
			}
			fmt.Fprintf(out, "Binding:    %d\n", b.ID)
			fmt.Fprintf(out, "Hardware:   %s\n", b.HardwareID)
			fmt.Fprintf(out, "Code:       %s\n", b.Code)
			fmt.Fprintf(out, "Type:       %s\n", b.LicenseType)
			fmt.Fprintf(out, "Activated:  %s\n", model.FormatExpiry(b.ActivatedAt))
			fmt.Fprintf(out, "Expires:    %s\n", model.FormatExpiry(b.ExpiresAt))
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")
	return cmd
}

func newBindingDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a binding by id and release its code",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}

			env, err := openLicenseEnv(cmd.Context())
			if err != nil {
				return err
			}
			defer env.Close()

			deleted, err := env.gateway.DeleteBinding(cmd.Context(), id)
			if err != nil {
				return err
			}
			if !deleted {
				return fmt.Errorf("binding %d not found", id)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Binding %d deleted, its code is available again.\n", id)
			return nil
		},
	}
}

func newBindingReleaseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "release <hardware-id>",
		Short: "Release the binding held by a hardware id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := openLicenseEnv(cmd.Context())
			if err != nil {
				return err
			}
			defer env.Close()

			released, err := env.gateway.DeleteHardware(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if !released {
				return fmt.Errorf("hardware %q is not bound", args[0])
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Hardware %s released.\n", args[0])
			return nil
		},
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	if n <= 3 {
		return s[:n]
	}
	return s[:n-3] + "..."
}
