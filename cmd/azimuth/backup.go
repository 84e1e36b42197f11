// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Azimuth Contributors

package main

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/azimuth-mud/azimuth/internal/config"
	"github.com/azimuth-mud/azimuth/internal/store/bolt"
	"github.com/azimuth-mud/azimuth/internal/xdg"
)

// NewBackupCmd creates the backup subcommand.
func NewBackupCmd() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Copy the world file to a backup",
		Long: `Writes a consistent copy of the bbolt world file used by the file storage
driver. The server holds a lock on the file, so run this while it is stopped.
Backups go to XDG_STATE_HOME/azimuth/backups unless --output is given.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configFile, cmd.Flags())
			if err != nil {
				return err
			}
			return runBackup(cmd, cfg, output, time.Now())
		},
	}
	config.RegisterFlags(cmd.Flags())
	cmd.Flags().StringVarP(&output, "output", "o", "", "backup file path")
	return cmd
}

func runBackup(cmd *cobra.Command, cfg *config.Config, output string, now time.Time) error {
	if cfg.Storage.Driver != config.DriverFile {
		return oops.Code(config.CodeInvalidConfig).
			Errorf("backup needs the file storage driver, got %q", cfg.Storage.Driver)
	}
	if output == "" {
		path, err := defaultBackupPath(cfg.World.ID, now)
		if err != nil {
			return err
		}
		output = path
	}
	if err := xdg.EnsureDir(filepath.Dir(output)); err != nil {
		return err
	}

	s, err := bolt.Open(cfg.Storage.Path)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := s.Close(); closeErr != nil {
			slog.Debug("error closing world file", "error", closeErr)
		}
	}()
	if err := s.Backup(output); err != nil {
		return err
	}
	cmd.Printf("Backed up %s to %s\n", cfg.Storage.Path, output)
	return nil
}

func defaultBackupPath(worldID string, now time.Time) (string, error) {
	dir, err := xdg.StateDir()
	if err != nil {
		return "", err
	}
	name := fmt.Sprintf("%s-%s.db", strings.ToLower(worldID), now.UTC().Format("20060102T150405Z"))
	return filepath.Join(dir, "backups", name), nil
}
