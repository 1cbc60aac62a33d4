// Command migrate manages the database schema and imports data from the
// legacy deployment.
package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/golang-migrate/migrate/v4"
	"github.com/spf13/cobra"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"cogi/internal/config"
	"cogi/internal/database"
	"cogi/internal/legacy"
	"cogi/internal/logger"
)

var (
	configFile string
	sourceDSN  string
)

func main() {
	logger.Init(os.Getenv("ENV"))
	defer logger.Sync()

	if err := rootCmd.Execute(); err != nil {
		logger.Get().Fatalf("Migration error: %v", err)
	}
}

var rootCmd = &cobra.Command{
	Use:           "migrate",
	Short:         "Manage the Cogi database schema",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "YAML config file (default $COGI_CONFIG_FILE or cogi.yaml)")
	importConversationsCmd.Flags().StringVar(&sourceDSN, "source-dsn", "",
		"postgres DSN of the legacy database (default: the configured database)")

	rootCmd.AddCommand(upCmd, downCmd, versionCmd, importUsersCmd, importConversationsCmd)
}

var upCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply all pending migrations",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withManager(func(m *database.Manager) error {
			return m.RunMigrations()
		})
	},
}

var downCmd = &cobra.Command{
	Use:   "down [N]",
	Short: "Roll back N migrations (default 1)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		steps := 1
		if len(args) == 1 {
			n, err := strconv.Atoi(args[0])
			if err != nil || n < 1 {
				return fmt.Errorf("invalid step count %q", args[0])
			}
			steps = n
		}
		return withMigrator(func(mig *migrate.Migrate) error {
			if err := mig.Steps(-steps); err != nil && !errors.Is(err, migrate.ErrNoChange) {
				return fmt.Errorf("migration down failed: %w", err)
			}
			logger.Get().Infof("Rolled back %d migration(s)", steps)
			return nil
		})
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the current schema version",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withMigrator(func(mig *migrate.Migrate) error {
			version, dirty, err := mig.Version()
			if err != nil {
				return fmt.Errorf("failed to get version: %w", err)
			}
			logger.Get().Infof("Version: %d, Dirty: %v", version, dirty)
			return nil
		})
	},
}

var importUsersCmd = &cobra.Command{
	Use:   "import-users <file>",
	Short: "Import accounts from a legacy users.json file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("failed to open %s: %w", args[0], err)
		}
		defer f.Close()

		return withManager(func(m *database.Manager) error {
			if err := m.RunMigrations(); err != nil {
				return err
			}
			stats, err := legacy.ImportUsers(cmd.Context(), m.DB(), f)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "users: read %d, imported %d, skipped %d\n",
				stats.Read, stats.Imported, stats.Skipped)
			return nil
		})
	},
}

var importConversationsCmd = &cobra.Command{
	Use:   "import-conversations",
	Short: "Convert the legacy conversations table into threads and messages",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withManager(func(m *database.Manager) error {
			if err := m.RunMigrations(); err != nil {
				return err
			}

			src := m.DB()
			if sourceDSN != "" {
				legacyDB, err := gorm.Open(postgres.Open(sourceDSN), &gorm.Config{
					Logger: gormlogger.Default.LogMode(gormlogger.Warn),
				})
				if err != nil {
					return fmt.Errorf("failed to connect to legacy database: %w", err)
				}
				if sqlDB, err := legacyDB.DB(); err == nil {
					defer sqlDB.Close()
				}
				src = legacyDB
			}

			stats, err := legacy.ImportConversations(cmd.Context(), src, m.DB())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "conversations: read %d, imported %d, skipped %d\n",
				stats.Read, stats.Imported, stats.Skipped)
			return nil
		})
	},
}

func withManager(fn func(m *database.Manager) error) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	m, err := database.NewManager(cfg.Database)
	if err != nil {
		return err
	}
	defer func() {
		if err := m.Close(); err != nil {
			logger.Get().Warnf("failed to close database: %v", err)
		}
	}()
	return fn(m)
}

func withMigrator(fn func(mig *migrate.Migrate) error) error {
	return withManager(func(m *database.Manager) error {
		mig, err := m.Migrator()
		if err != nil {
			return err
		}
		defer database.CloseMigrator(mig)
		return fn(mig)
	})
}
