package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/faucetdb/licensed/internal/model"
)

func newActivateCmd() *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "activate <code> <hardware-id>",
		Short: "Redeem an activation code for a hardware id",
		Long: `Bind an activation code to a hardware id, exactly as the /validate
endpoint does. Useful for support staff activating a machine by hand.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := openLicenseEnv(cmd.Context())
			if err != nil {
				return err
			}
			defer env.Close()

			act, err := env.engine.Activate(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if jsonOut {
				return printJSON(out, act)
			}
			switch {
			case act.Renewed:
				fmt.Fprintln(out, "License renewed.")
			case act.PreviousCode != "":
				fmt.Fprintf(out, "License moved from %s.\n", act.PreviousCode)
			default:
				fmt.Fprintln(out, "License activated.")
			}
			fmt.Fprintf(out, "  Hardware: %s\n", act.HardwareID)
			fmt.Fprintf(out, "  Type:     %s\n", act.LicenseType)
			fmt.Fprintf(out, "  Expires:  %s\n", model.FormatExpiry(act.ExpiresAt))
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")
	return cmd
}

func newCheckCmd() *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "check <hardware-id>",
		Short: "Check whether a hardware id holds an active license",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := openLicenseEnv(cmd.Context())
			if err != nil {
				return err
			}
			defer env.Close()

			st, err := env.engine.CheckHardware(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if jsonOut {
				return printJSON(out, st)
			}
			switch {
			case st.Activated:
				fmt.Fprintf(out, "Active %s license, expires %s\n", st.LicenseType, model.FormatExpiry(*st.ExpiresAt))
			case st.Expired:
				fmt.Fprintln(out, "License expired.")
			default:
				fmt.Fprintln(out, "No license bound to this hardware.")
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")
	return cmd
}

func newStatsCmd() *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show activation code and binding counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := openLicenseEnv(cmd.Context())
			if err != nil {
				return err
			}
			defer env.Close()

			st, err := env.gateway.Stats(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if jsonOut {
				return printJSON(out, st)
			}
			fmt.Fprintf(out, "Codes:            %d\n", st.TotalCodes)
			fmt.Fprintf(out, "  used:           %d\n", st.UsedCodes)
			fmt.Fprintf(out, "  unused:         %d\n", st.UnusedCodes)
			fmt.Fprintf(out, "Bindings:         %d\n", st.Bindings)
			fmt.Fprintf(out, "  active:         %d\n", st.ActiveBindings)
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")
	return cmd
}
