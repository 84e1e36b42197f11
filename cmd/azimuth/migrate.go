// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Azimuth Contributors

package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/azimuth-mud/azimuth/internal/config"
	"github.com/azimuth-mud/azimuth/internal/store/postgres"
)

// migrator is the subset of postgres.Migrator the migrate commands use.
type migrator interface {
	Up() error
	Down() error
	Steps(n int) error
	Version() (uint, bool, error)
	Force(version int) error
	PendingMigrations() ([]uint, error)
	Close() error
}

var newMigrator = func(databaseURL string) (migrator, error) {
	return postgres.NewMigrator(databaseURL)
}

// NewMigrateCmd creates the migrate subcommand.
func NewMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage database migrations",
		Long: `Apply or inspect the PostgreSQL schema used by the postgres storage driver.
The database URL comes from --database-url, the config file, or DATABASE_URL.`,
	}
	cmd.PersistentFlags().String("database-url", "", "PostgreSQL URL (default: $DATABASE_URL)")

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrator(cmd, func(m migrator) error {
				pending, err := m.PendingMigrations()
				if err != nil {
					return err
				}
				if len(pending) == 0 {
					cmd.Println("Database is up to date")
					return nil
				}
				if err := m.Up(); err != nil {
					return oops.Code("MIGRATION_FAILED").With("operation", "run migrations").Wrap(err)
				}
				for _, v := range pending {
					name, _ := postgres.MigrationName(v)
					cmd.Printf("Applied %s\n", migrationLabel(v, name))
				}
				return nil
			})
		},
	})
	var steps int
	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrator(cmd, func(m migrator) error {
				if steps > 0 {
					if err := m.Steps(-steps); err != nil {
						return oops.Code("MIGRATION_FAILED").With("operation", "roll back migrations").With("steps", steps).Wrap(err)
					}
					cmd.Printf("Rolled back %d migration(s)\n", steps)
					return nil
				}
				if err := m.Down(); err != nil {
					return oops.Code("MIGRATION_FAILED").With("operation", "roll back migrations").Wrap(err)
				}
				cmd.Println("All migrations rolled back")
				return nil
			})
		},
	}
	down.Flags().IntVar(&steps, "steps", 0, "roll back only this many migrations (0 = all)")
	cmd.AddCommand(down)
	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show the current schema version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrator(cmd, func(m migrator) error {
				v, dirty, err := m.Version()
				if err != nil {
					return err
				}
				pending, err := m.PendingMigrations()
				if err != nil {
					return err
				}
				state := "clean"
				if dirty {
					state = "dirty"
				}
				cmd.Printf("Version: %d (%s), %d pending\n", v, state, len(pending))
				return nil
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "force VERSION",
		Short: "Mark a version as applied without running it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			version, err := parseForceVersion(args[0])
			if err != nil {
				return err
			}
			return withMigrator(cmd, func(m migrator) error {
				if err := m.Force(version); err != nil {
					return err
				}
				cmd.Printf("Forced version %d\n", version)
				return nil
			})
		},
	})
	return cmd
}

func withMigrator(cmd *cobra.Command, fn func(m migrator) error) error {
	databaseURL, err := migrateDatabaseURL(cmd)
	if err != nil {
		return err
	}
	m, err := newMigrator(databaseURL)
	if err != nil {
		return oops.Code("DB_CONNECT_FAILED").With("operation", "create migrator").Wrap(err)
	}
	defer func() {
		if closeErr := m.Close(); closeErr != nil {
			slog.Debug("error closing migrator", "error", closeErr)
		}
	}()
	return fn(m)
}

// migrateDatabaseURL resolves the URL from the flag, the config file's
// storage.database_url, then DATABASE_URL.
func migrateDatabaseURL(cmd *cobra.Command) (string, error) {
	if url, _ := cmd.Flags().GetString("database-url"); url != "" {
		return url, nil
	}
	if configFile != "" {
		cfg, err := config.Load(configFile, nil)
		if err != nil {
			return "", err
		}
		if cfg.Storage.DatabaseURL != "" {
			return cfg.Storage.DatabaseURL, nil
		}
	}
	if url := os.Getenv("DATABASE_URL"); url != "" {
		return url, nil
	}
	return "", oops.Code("CONFIG_INVALID").Errorf("a database URL is required: use --database-url or set DATABASE_URL")
}

// parseForceVersion parses a migration version. Trailing non-digits are
// ignored.
func parseForceVersion(s string) (int, error) {
	s = strings.TrimSpace(s)
	var version int
	if _, err := fmt.Sscanf(s, "%d", &version); err != nil {
		return 0, oops.Code("INVALID_VERSION").With("input", s).Errorf("invalid version %q", s)
	}
	return version, nil
}

func migrationLabel(version uint, name string) string {
	if name == "" {
		return fmt.Sprintf("%06d", version)
	}
	return name
}
