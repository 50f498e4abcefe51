package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/faucetdb/licensed/internal/model"
	"github.com/faucetdb/licensed/internal/service"
	"github.com/faucetdb/licensed/internal/store"
)

func newAdminCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Manage admin users",
		Long:  "Create and list the administrators who sign in to the admin API.",
	}

	cmd.AddCommand(newAdminCreateCmd())
	cmd.AddCommand(newAdminListCmd())
	cmd.AddCommand(newAdminResetPasswordCmd())

	return cmd
}

// ---------- admin create ----------

func newAdminCreateCmd() *cobra.Command {
	var (
		email    string
		password string
		name     string
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a new admin user",
		Example: `  licensed admin create --email admin@example.com --password secret123
  licensed admin create --email admin@example.com  # prompts for password`,
		RunE: func(cmd *cobra.Command, args []string) error {
			email = strings.TrimSpace(email)
			if !strings.Contains(email, "@") {
				return fmt.Errorf("invalid email address: %q", email)
			}
			if password == "" {
				var err error
				if password, err = promptPassword(cmd); err != nil {
					return err
				}
			}
			hash, err := service.HashPassword(password)
			if err != nil {
				return err
			}

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			s, err := openStore(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer s.Close()

			admin := &model.Admin{Email: email, PasswordHash: hash, Name: name, IsActive: true}
			if err := s.CreateAdmin(cmd.Context(), admin); err != nil {
				if errors.Is(err, store.ErrDuplicate) {
					return fmt.Errorf("admin %q already exists", email)
				}
				return fmt.Errorf("create admin: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Created admin user %q (id %d)\n", email, admin.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "Admin email address (required)")
	cmd.Flags().StringVar(&password, "password", "", "Admin password (prompted if omitted)")
	cmd.Flags().StringVar(&name, "name", "", "Admin display name")
	cmd.MarkFlagRequired("email")

	return cmd
}

// ---------- admin list ----------

func newAdminListCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List all admin users",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			s, err := openStore(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer s.Close()

			admins, err := s.ListAdmins(cmd.Context())
			if err != nil {
				return fmt.Errorf("list admins: %w", err)
			}

			out := cmd.OutOrStdout()
			if jsonOutput {
				return printJSON(out, admins)
			}
			if len(admins) == 0 {
				fmt.Fprintln(out, "No admin users. Create one with: licensed admin create --email <email>")
				return nil
			}
			fmt.Fprintf(out, "%-6s  %-30s  %-20s  %-6s  %s\n", "ID", "EMAIL", "NAME", "ACTIVE", "LAST LOGIN")
			for _, a := range admins {
				last := "never"
				if a.LastLoginAt != nil {
					last = model.FormatExpiry(*a.LastLoginAt)
				}
				fmt.Fprintf(out, "%-6d  %-30s  %-20s  %-6s  %s\n", a.ID, a.Email, a.Name, yesNo(a.IsActive), last)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

// ---------- admin reset-password ----------

func newAdminResetPasswordCmd() *cobra.Command {
	var (
		email    string
		password string
	)

	cmd := &cobra.Command{
		Use:   "reset-password",
		Short: "Set a new password for an admin user",
		RunE: func(cmd *cobra.Command, args []string) error {
			if password == "" {
				var err error
				if password, err = promptPassword(cmd); err != nil {
					return err
				}
			}
			hash, err := service.HashPassword(password)
			if err != nil {
				return err
			}

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			s, err := openStore(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer s.Close()

			if err := s.UpdateAdminPassword(cmd.Context(), strings.TrimSpace(email), hash); err != nil {
				if errors.Is(err, store.ErrNotFound) {
					return fmt.Errorf("admin %q not found", email)
				}
				return fmt.Errorf("update password: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Password updated for %q\n", email)
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "Admin email address (required)")
	cmd.Flags().StringVar(&password, "password", "", "New password (prompted if omitted)")
	cmd.MarkFlagRequired("email")

	return cmd
}

// promptPassword reads a password and its confirmation. On a terminal input
// is not echoed; otherwise two lines are read from stdin.
func promptPassword(cmd *cobra.Command) (string, error) {
	errOut := cmd.ErrOrStderr()
	fd := int(os.Stdin.Fd())

	read := func(prompt string, r *bufio.Reader) (string, error) {
		fmt.Fprint(errOut, prompt)
		if term.IsTerminal(fd) {
			b, err := term.ReadPassword(fd)
			fmt.Fprintln(errOut)
			return string(b), err
		}
		line, err := r.ReadString('\n')
		if err != nil && !(errors.Is(err, io.EOF) && line != "") {
			return "", err
		}
		return strings.TrimRight(line, "\r\n"), nil
	}

	r := bufio.NewReader(cmd.InOrStdin())
	password, err := read("Password: ", r)
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	confirm, err := read("Confirm password: ", r)
	if err != nil {
		return "", fmt.Errorf("failed to read confirmation: %w", err)
	}
	if password != confirm {
		return "", fmt.Errorf("passwords do not match")
	}
	return password, nil
}
