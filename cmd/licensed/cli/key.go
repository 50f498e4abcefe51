package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/faucetdb/licensed/internal/model"
	"github.com/faucetdb/licensed/internal/service"
	"github.com/faucetdb/licensed/internal/store"
)

func newKeyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "key",
		Aliases: []string{"apikey"},
		Short:   "Manage API keys",
		Long:    "Create, list, and revoke API keys used by automation against the admin API.",
	}

	cmd.AddCommand(newKeyCreateCmd())
	cmd.AddCommand(newKeyListCmd())
	cmd.AddCommand(newKeyRevokeCmd())

	return cmd
}

// ---------- key create ----------

func newKeyCreateCmd() *cobra.Command {
	var (
		scope   string
		label   string
		expires time.Duration
		jsonOut bool
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a new API key",
		Long: `Generate a new API key. Read keys can list codes and bindings; admin keys
can also generate and delete. The raw key is shown once and cannot be
retrieved again.`,
		Example: `  licensed key create --scope read --label "billing sync"
  licensed key create --scope admin --expires 720h`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !model.ValidScope(scope) {
				return fmt.Errorf("invalid scope %q: must be %q or %q", scope, model.ScopeRead, model.ScopeAdmin)
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

			plaintext, hash, prefix, err := service.GenerateAPIKey()
			if err != nil {
				return err
			}
			key := &model.APIKey{
				KeyHash:   hash,
				KeyPrefix: prefix,
				Label:     label,
				Scope:     scope,
				IsActive:  true,
			}
			if expires > 0 {
				exp := time.Now().UTC().Add(expires).Truncate(time.Second)
				key.ExpiresAt = &exp
			}
			if err := s.CreateAPIKey(cmd.Context(), key); err != nil {
				return fmt.Errorf("create api key: %w", err)
			}

			out := cmd.OutOrStdout()
			if jsonOut {
				return printJSON(out, map[string]interface{}{
					"id":         key.ID,
					"key":        plaintext,
					"key_prefix": key.KeyPrefix,
					"label":      key.Label,
					"scope":      key.Scope,
					"expires_at": key.ExpiresAt,
				})
			}
			fmt.Fprintf(out, "API key created (id %d, scope %s)\n\n", key.ID, key.Scope)
			fmt.Fprintf(out, "  %s\n\n", plaintext)
			fmt.Fprintln(out, "Store this key securely. It will not be shown again.")
			return nil
		},
	}

	cmd.Flags().StringVar(&scope, "scope", model.ScopeRead, "Key scope: read or admin")
	cmd.Flags().StringVar(&label, "label", "", "Human-readable label for the key")
	cmd.Flags().DurationVar(&expires, "expires", 0, "Key lifetime, e.g. 720h (default: never expires)")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")

	return cmd
}

// ---------- key list ----------

func newKeyListCmd() *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List API keys",
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

			keys, err := s.ListAPIKeys(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if jsonOut {
				return printJSON(out, keys)
			}
			if len(keys) == 0 {
				fmt.Fprintln(out, "No API keys found.")
				return nil
			}
			fmt.Fprintf(out, "%-6s  %-14s  %-20s  %-6s  %-6s  %s\n", "ID", "PREFIX", "LABEL", "SCOPE", "ACTIVE", "EXPIRES")
			for _, k := range keys {
				exp := "never"
				if k.ExpiresAt != nil {
					exp = model.FormatExpiry(*k.ExpiresAt)
				}
				fmt.Fprintf(out, "%-6d  %-14s  %-20s  %-6s  %-6s  %s\n",
					k.ID, k.KeyPrefix, truncate(k.Label, 20), k.Scope, yesNo(k.IsActive), exp)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")
	return cmd
}

// ---------- key revoke ----------

func newKeyRevokeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "revoke <key-prefix>",
		Short: "Revoke an API key by its prefix",
		Args:  cobra.ExactArgs(1),
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

			if err := s.RevokeAPIKeyByPrefix(cmd.Context(), args[0]); err != nil {
				if errors.Is(err, store.ErrNotFound) {
					return fmt.Errorf("no active API key with prefix %q", args[0])
				}
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "API key %s revoked.\n", args[0])
			return nil
		},
	}
}
