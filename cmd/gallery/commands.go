package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/kalambet/gallery/internal/client"
	"github.com/kalambet/gallery/internal/config"
	"github.com/kalambet/gallery/internal/profile"
	"github.com/kalambet/gallery/internal/storage"
	"github.com/kalambet/gallery/internal/storage/postgres"
	"github.com/kalambet/gallery/internal/ui"
)

// loadConfig is replaced in tests.
var loadConfig = config.Load

// saveToken persists the CLI session token. Replaced in tests.
var saveToken = config.SaveClientToken

var (
	flagServer string
	flagToken  string
)

// clientFromFlags loads the config and applies --server/--token.
func clientFromFlags() (*client.Client, config.Config, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, config.Config{}, fmt.Errorf("loading config: %w", err)
	}
	if flagServer != "" {
		cfg.Client.ServerURL = flagServer
	}
	if flagToken != "" {
		cfg.Client.Token = flagToken
	}
	return newClient(cfg), cfg, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// ownUsername resolves the signed-in account's username.
func ownUsername(ctx context.Context, c *client.Client) (string, error) {
	me, err := c.Me(ctx)
	if err != nil {
		if errors.Is(err, client.ErrUnauthorized) {
			return "", fmt.Errorf("no username given and not signed in: run gallery account login")
		}
		return "", err
	}
	if me.UsernameRequired {
		return "", fmt.Errorf("choose a username first: gallery username set <name>")
	}
	return me.Username, nil
}

// --- migrate ---

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply or roll back database schema migrations",
}

// sqliteSchema opens the SQLite store, which applies pending migrations on
// open, and returns the applied versions.
func sqliteSchema(cfg config.Config) ([]int, error) {
	s, err := storage.Open(cfg.Storage.DataDir)
	if err != nil {
		return nil, err
	}
	defer s.Close()
	return s.AppliedMigrations()
}

func lastVersion(vs []int) int {
	if len(vs) == 0 {
		return 0
	}
	return vs[len(vs)-1]
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply all pending migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		printStep("Applying %s migrations...", cfg.Storage.Driver)
		if cfg.Storage.Driver == "postgres" {
			m, err := postgres.NewMigrator(cfg.Storage.DSN)
			if err != nil {
				return err
			}
			if err := m.Up(); err != nil {
				return err
			}
		} else if _, err := sqliteSchema(cfg); err != nil {
			return err
		}
		printSuccess("Schema up to date")
		return nil
	},
}

var migrateDownCmd = &cobra.Command{
	Use:   "down",
	Short: "Roll back the most recent migration (postgres only)",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if cfg.Storage.Driver != "postgres" {
			return fmt.Errorf("storage.driver is %q: sqlite migrations are forward-only", cfg.Storage.Driver)
		}
		m, err := postgres.NewMigrator(cfg.Storage.DSN)
		if err != nil {
			return err
		}
		if err := m.Down(); err != nil {
			return err
		}
		printSuccess("Rolled back one migration")
		return nil
	},
}

var migrateVersionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show the current schema version",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if cfg.Storage.Driver != "postgres" {
			vs, err := sqliteSchema(cfg)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d\n", lastVersion(vs))
			return nil
		}

		m, err := postgres.NewMigrator(cfg.Storage.DSN)
		if err != nil {
			return err
		}
		v, dirty, err := m.Version()
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%d\n", v)
		if dirty {
			printWarning("schema is dirty: fix the failed migration and force the version")
		}
		return nil
	},
}

func init() {
	migrateCmd.AddCommand(migrateUpCmd, migrateDownCmd, migrateVersionCmd)
}

// --- account ---

var accountCmd = &cobra.Command{
	Use:   "account",
	Short: "Create accounts and manage the CLI session",
}

var accountCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Provision an account directly in the local store",
	RunE: func(cmd *cobra.Command, args []string) error {
		email, _ := cmd.Flags().GetString("email")
		name, _ := cmd.Flags().GetString("name")
		if email == "" {
			return fmt.Errorf("--email is required")
		}
		if name == "" {
			name = email
		}

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		store, err := openStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer store.Close()

		p, err := profile.NewManager(store).Provision(ctx, email, name)
		if err != nil {
			return err
		}
		printSuccess("Account %s ready for %s", p.ID, p.Email)
		if p.Username == "" {
			printStep("Sign in and choose a username: gallery account login --email %s", email)
		}
		return nil
	},
}

var accountLoginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in by email (servers with dev login enabled)",
	RunE: func(cmd *cobra.Command, args []string) error {
		email, _ := cmd.Flags().GetString("email")
		name, _ := cmd.Flags().GetString("name")
		if email == "" {
			return fmt.Errorf("--email is required")
		}

		c, _, err := clientFromFlags()
		if err != nil {
			return err
		}
		s, err := c.Login(cmd.Context(), email, name)
		if err != nil {
			return err
		}
		if err := saveToken(s.Token); err != nil {
			return fmt.Errorf("saving session token: %w", err)
		}

		if s.Username == "" {
			printSuccess("Signed in as %s", s.Name)
			printStep("Choose a username next: gallery username set <name>")
		} else {
			printSuccess("Signed in as %s (@%s)", s.Name, s.Username)
		}
		return nil
	},
}

var accountLogoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Sign out and forget the stored session token",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, _, err := clientFromFlags()
		if err != nil {
			return err
		}
		if err := c.Logout(cmd.Context()); err != nil {
			printWarning("server sign-out failed: %v", err)
		}
		if err := saveToken(""); err != nil {
			return fmt.Errorf("clearing session token: %w", err)
		}
		printSuccess("Signed out")
		return nil
	},
}

func init() {
	for _, c := range []*cobra.Command{accountCreateCmd, accountLoginCmd} {
		c.Flags().String("email", "", "account email")
		c.Flags().String("name", "", "display name")
	}
	accountCmd.AddCommand(accountCreateCmd, accountLoginCmd, accountLogoutCmd)
}

// --- profile ---

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Inspect museum profiles",
}

var profileShowCmd = &cobra.Command{
	Use:   "show [username]",
	Short: "Show a museum document as JSON (default: your own)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, _, err := clientFromFlags()
		if err != nil {
			return err
		}
		ctx := cmd.Context()

		var username string
		if len(args) == 1 {
			username = args[0]
		} else if username, err = ownUsername(ctx, c); err != nil {
			return err
		}

		doc, err := c.Profile(ctx, username)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), doc)
	},
}

func init() {
	profileCmd.AddCommand(profileShowCmd)
}

// --- username ---

var usernameCmd = &cobra.Command{
	Use:   "username",
	Short: "Check or claim a museum username",
}

var usernameCheckCmd = &cobra.Command{
	Use:   "check <name>",
	Short: "Report whether a username is free",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]
		if err := profile.ValidateUsername(name); err != nil {
			return err
		}
		c, _, err := clientFromFlags()
		if err != nil {
			return err
		}
		ok, err := c.UsernameAvailable(cmd.Context(), name)
		if err != nil {
			return err
		}
		if ok {
			printSuccess("%s is available", name)
		} else {
			printWarning("%s is taken", name)
		}
		return nil
	},
}

var usernameSetCmd = &cobra.Command{
	Use:   "set <name>",
	Short: "Claim a username for your museum (once)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]
		if err := profile.ValidateUsername(name); err != nil {
			return err
		}
		c, _, err := clientFromFlags()
		if err != nil {
			return err
		}
		if err := c.SetUsername(cmd.Context(), name); err != nil {
			if errors.Is(err, client.ErrConflict) {
				return fmt.Errorf("%s is taken or your username is already set: %w", name, err)
			}
			return err
		}
		printSuccess("Your museum is at /%s", name)
		return nil
	},
}

func init() {
	usernameCmd.AddCommand(usernameCheckCmd, usernameSetCmd)
}

// --- walk ---

var walkCmd = &cobra.Command{
	Use:   "walk [username]",
	Short: "Walk through a museum in the terminal (default: your own)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, _, err := clientFromFlags()
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}

		var username string
		if len(args) == 1 {
			username = args[0]
		} else if username, err = ownUsername(ctx, c); err != nil {
			return err
		}
		return ui.Run(ctx, c, username)
	},
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or update configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		for _, k := range config.ShowAll(cfg) {
			fmt.Fprintf(cmd.OutOrStdout(), "  %s = %s  %s\n",
				colorize(styleBold, k.Key), k.Value, colorize(styleStep, "("+k.Source+")"))
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]
		if key == "storage.dsn" {
			if err := config.SaveStorageDSN(value); err != nil {
				return err
			}
			printSuccess("Stored %s in the secret store", key)
			return nil
		}
		if err := config.SetKey(key, value); err != nil {
			return err
		}
		printSuccess("Set %s = %s", key, value)
		return nil
	},
}

var configUnsetCmd = &cobra.Command{
	Use:   "unset <key>",
	Short: "Remove a saved value so the default applies",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.UnsetKey(args[0]); err != nil {
			return err
		}
		printSuccess("Unset %s", args[0])
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd, configSetCmd, configUnsetCmd)

	for _, c := range []*cobra.Command{accountCmd, profileCmd, usernameCmd, walkCmd, statusCmd} {
		c.PersistentFlags().StringVar(&flagServer, "server", "", "server URL (overrides client.server_url)")
		c.PersistentFlags().StringVar(&flagToken, "token", "", "session token (overrides the stored one)")
	}
}
