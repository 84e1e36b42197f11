// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Azimuth Contributors

package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/azimuth-mud/azimuth/internal/auth"
	"github.com/azimuth-mud/azimuth/internal/config"
)

// Default timeout for seed command.
const defaultSeedTimeout = 30 * time.Second

// NewSeedCmd creates the seed subcommand.
func NewSeedCmd() *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Seed the world with initial data",
		Long: `Creates the world from a seed manifest if it has no objects yet.
This command is idempotent - a world that already exists is left alone.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configFile, cmd.Flags())
			if err != nil {
				return err
			}
			// Use cmd.Context() to respect SIGINT/SIGTERM signals
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()
			return runSeed(ctx, cmd, cfg, auth.NewArgon2idHasher())
		},
	}

	config.RegisterFlags(cmd.Flags())
	cmd.Flags().DurationVar(&timeout, "timeout", defaultSeedTimeout, "timeout for storage operations (e.g., 30s, 1m)")

	return cmd
}

// worldChecker is implemented by backends that can tell whether a world
// has objects without loading it.
type worldChecker interface {
	WorldExists(ctx context.Context, worldID string) (bool, error)
}

func runSeed(ctx context.Context, cmd *cobra.Command, cfg *config.Config, hasher auth.PasswordHasher) error {
	backend, err := openBackend(ctx, &cfg.Storage)
	if err != nil {
		return err
	}
	if wc, ok := backend.(worldChecker); ok {
		exists, err := wc.WorldExists(ctx, cfg.World.ID)
		if err != nil {
			_ = backend.Close()
			return err
		}
		if exists {
			_ = backend.Close()
			cmd.Printf("World %s already seeded, skipping\n", cfg.World.ID)
			return nil
		}
	}
	lw, err := loadWorld(ctx, cfg, backend, hasher, nil)
	if err != nil {
		_ = backend.Close()
		return err
	}
	if err := lw.store.Close(ctx); err != nil {
		return err
	}

	if !lw.seeded {
		cmd.Printf("World %s already seeded (%d objects), skipping\n", cfg.World.ID, lw.graph.Len())
		return nil
	}
	cmd.Printf("Seeded world %s with %d objects\n", cfg.World.ID, lw.graph.Len())
	return nil
}
