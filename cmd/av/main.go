package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"academic-vault/internal/app"
	"academic-vault/internal/config"
	"academic-vault/internal/model"

	"github.com/spf13/cobra"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, exitError(err))
		os.Exit(1)
	}
}

// loadConfig loads .env files and reads the config file.
func loadConfig() (*config.Config, app.Paths, error) {
	paths, err := app.DefaultPaths()
	if err != nil {
		return nil, app.Paths{}, err
	}
	if err := config.LoadDotEnv(paths.DotEnvFiles()...); err != nil {
		return nil, app.Paths{}, err
	}
	cfg, err := config.ReadFromFile(paths.ConfigFile)
	if err != nil {
		return nil, app.Paths{}, fmt.Errorf("reading config: %w", err)
	}
	return cfg, paths, nil
}

// newApp reads the config and creates an AVApp. The caller must defer app.Close().
func newApp(ctx context.Context) (*app.AVApp, error) {
	cfg, _, err := loadConfig()
	if err != nil {
		return nil, err
	}
	a, err := app.NewAVApp(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}
	return a, nil
}

// withApp runs fn with a fresh AVApp and closes it afterwards.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app.AVApp) error) error {
	ctx := cmd.Context()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a)
}

var rootCmd = &cobra.Command{
	Use:           "av",
	Short:         "Academic Vault: organize, share and study course material",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration and the local database",
	RunE: func(cmd *cobra.Command, args []string) error {
		paths, err := app.DefaultPaths()
		if err != nil {
			return err
		}

		cfg := config.NewConfig(paths.BaseDir)
		if err := config.Init(paths.ConfigFile, cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}
		if err := app.MigrateDatabase(cfg); err != nil {
			return err
		}

		fmt.Printf("Configuration initialized at %s\n", paths.ConfigFile)
		fmt.Printf("Base Dir: %s\n", paths.BaseDir)
		fmt.Printf("Set %s (at least 32 characters) in the environment or %s before signing in.\n",
			config.EnvJWTSecret, paths.DotEnvFiles()[1])
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "View configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, paths, err := loadConfig()
		if err != nil {
			return err
		}

		fmt.Printf("Configuration from %s:\n\n", paths.ConfigFile)
		fmt.Printf("Base Dir:    %s\n", cfg.BaseDir)
		fmt.Printf("Log Dir:     %s\n", cfg.LogDir)
		fmt.Printf("Database:    %s\n", cfg.Database.Type)
		fmt.Printf("Storage:     %s (encrypted: %t)\n", cfg.Storage.Type, cfg.Storage.Encrypt)
		fmt.Printf("Encryption:  %s\n", cfg.Encryption.Type)
		fmt.Printf("Sessions:    %s\n", cfg.Auth.Sessions.Type)
		fmt.Printf("AI:          %s (%s)\n", cfg.AI.BaseURL, cfg.AI.Model)
		fmt.Printf("Status Feed: %s\n", cfg.StatusFeed.Type)
		return nil
	},
}

var configEncryptionCmd = &cobra.Command{
	Use:   "encryption",
	Short: "Generate the key pair for encryption at rest",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.AVApp) error {
			passphrase, err := promptNewSecret("Passphrase")
			if err != nil {
				return err
			}
			created, err := a.SetupEncryption(passphrase)
			if err != nil {
				return err
			}
			if !created {
				fmt.Println("Encryption is disabled or already configured.")
				return nil
			}
			fmt.Println("Key pair created. Keep your passphrase safe: files cannot be read without it.")
			return nil
		})
	},
}

var configCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Verify the object store is reachable and writable",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.AVApp) error {
			if err := a.ValidateStorage(ctx); err != nil {
				return err
			}
			fmt.Println("Object store OK")
			return nil
		})
	},
}

// db command
var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "Maintain the records database",
}

var dbMigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending schema migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := loadConfig()
		if err != nil {
			return err
		}
		if err := app.MigrateDatabase(cfg); err != nil {
			return err
		}
		fmt.Println("Database schema is up to date")
		return nil
	},
}

var dbSchemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Print the records schema produced by the migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		schema, err := app.Schema()
		if err != nil {
			return err
		}
		fmt.Print(schema)
		return nil
	},
}

var dbBackupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Snapshot the database into the object store (admin)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.AVApp) error {
			key, err := a.BackupDatabase(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("Database backed up to %s\n", key)
			return nil
		})
	},
}

var dbGrantAdminCmd = &cobra.Command{
	Use:   "grant-admin EMAIL",
	Short: "Give an account the admin role",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.AVApp) error {
			profile, err := a.SetRole(ctx, args[0], model.RoleAdmin)
			if err != nil {
				return err
			}
			fmt.Printf("%s is now %s\n", args[0], profile.Role)
			return nil
		})
	},
}

func init() {
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configListCmd)
	configCmd.AddCommand(configEncryptionCmd)
	configCmd.AddCommand(configCheckCmd)

	dbCmd.AddCommand(dbMigrateCmd)
	dbCmd.AddCommand(dbSchemaCmd)
	dbCmd.AddCommand(dbBackupCmd)
	dbCmd.AddCommand(dbGrantAdminCmd)

	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(dbCmd)
}

// exitError formats err for stderr. Missing sessions already carry a hint.
func exitError(err error) string {
	if errors.Is(err, app.ErrNotSignedIn) {
		return err.Error()
	}
	return "Error: " + err.Error()
}
