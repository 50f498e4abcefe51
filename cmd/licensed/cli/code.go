package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/faucetdb/licensed/internal/license"
	"github.com/faucetdb/licensed/internal/model"
)

func newCodeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "code",
		Short: "Manage activation codes",
		Long:  "Generate, list and delete activation codes directly against the license database.",
	}

	cmd.AddCommand(newCodeGenerateCmd())
	cmd.AddCommand(newCodeListCmd())
	cmd.AddCommand(newCodeDeleteCmd())

	return cmd
}

func newCodeGenerateCmd() *cobra.Command {
	var (
		licenseType string
		duration    int
		count       int
		jsonOut     bool
	)

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate a batch of activation codes",
		Example: `  licensed code generate --type pro --duration 30 --count 10
  licensed code generate --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := openLicenseEnv(cmd.Context())
			if err != nil {
				return err
			}
			defer env.Close()

			codes, err := env.generator.Generate(cmd.Context(), license.GenerateRequest{
				LicenseType:  licenseType,
				DurationDays: duration,
				Count:        count,
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if jsonOut {
				return printJSON(out, codes)
			}
			for _, c := range codes {
				fmt.Fprintln(out, c.Code)
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "Generated %d %s code(s) valid for %d day(s)\n", len(codes), licenseType, duration)
			return nil
		},
	}

	cmd.Flags().StringVarP(&licenseType, "type", "t", license.DefaultLicenseType, "License type recorded on each code")
	cmd.Flags().IntVar(&duration, "duration", license.DefaultDurationDays, "License duration in days (1-3650)")
	cmd.Flags().IntVarP(&count, "count", "n", license.DefaultCount, "Number of codes to generate (1-100)")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")

	return cmd
}

func newCodeListCmd() *cobra.Command {
	var (
		filter  string
		limit   int
		offset  int
		jsonOut bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List activation codes, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := model.ParseCodeFilter(filter)
			if err != nil {
				return err
			}

			env, err := openLicenseEnv(cmd.Context())
			if err != nil {
				return err
			}
			defer env.Close()

			list, err := env.gateway.ListCodes(cmd.Context(), f, model.Page{Limit: limit, Offset: offset})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if jsonOut {
				return printJSON(out, map[string]interface{}{
					"codes":  list.Codes,
					"total":  list.Total,
					"limit":  list.Page.Limit,
					"offset": list.Page.Offset,
				})
			}

			if len(list.Codes) == 0 {
				fmt.Fprintln(out, "No activation codes found.")
				return nil
			}
			fmt.Fprintf(out, "%-6s  %-29s  %-12s  %-8s  %-5s  %s\n", "ID", "CODE", "TYPE", "DURATION", "USED", "CREATED")
			for _, c := range list.Codes {
				fmt.Fprintf(out, "%-6d  %-29s  %-12s  %-8d  %-5s  %s\n",
					c.ID, c.Code, c.LicenseType, c.DurationDays, yesNo(c.IsUsed), model.FormatExpiry(c.CreatedAt))
			}
			fmt.Fprintf(out, "\nShowing %d of %d (%s)\n", len(list.Codes), list.Total, f)
			return nil
		},
	}

	cmd.Flags().StringVarP(&filter, "filter", "f", "all", "Filter by state: all, used or unused")
	cmd.Flags().IntVar(&limit, "limit", model.DefaultPageLimit, "Maximum number of codes to show")
	cmd.Flags().IntVar(&offset, "offset", 0, "Number of codes to skip")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")

	return cmd
}

func newCodeDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete an unused activation code",
		Long:  "Delete an activation code by id. Codes that are bound to hardware cannot be deleted.",
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

			deleted, err := env.gateway.DeleteCode(cmd.Context(), id)
			if err != nil {
				return err
			}
			if !deleted {
				return fmt.Errorf("activation code %d not found or already used", id)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Activation code %d deleted.\n", id)
			return nil
		},
	}
}

// parseID parses a positive row id argument.
func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q: must be a positive integer", s)
	}
	return id, nil
}
