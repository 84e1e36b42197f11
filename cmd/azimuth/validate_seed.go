// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Azimuth Contributors

package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/azimuth-mud/azimuth/internal/seed"
)

// NewValidateSeedCmd creates the validate-seed subcommand.
func NewValidateSeedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate-seed [MANIFEST...]",
		Short: "Validate seed manifests without starting the server",
		Long: `Checks seed manifests against the manifest schema and verifies that
every room, exit, object and player reference resolves. With no arguments
the built-in manifest is checked. Does NOT open any storage.

Useful in CI pipelines to catch manifest errors early:
  azimuth validate-seed worlds/*.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidateSeed(cmd, args)
		},
	}
}

func runValidateSeed(cmd *cobra.Command, paths []string) error {
	if len(paths) == 0 {
		if _, err := seed.Default(); err != nil {
			return fmt.Errorf("built-in manifest invalid: %s", seed.FormatSchemaError(err))
		}
		cmd.Println("built-in manifest: ok")
		return nil
	}

	var failed int
	for _, path := range paths {
		m, err := seed.Load(path)
		if err != nil {
			failed++
			slog.Error("seed validation failed", "path", path, "error", err)
			cmd.Printf("%s: %s\n", path, seed.FormatSchemaError(err))
			continue
		}
		cmd.Printf("%s: ok (%d rooms, %d objects, %d players)\n", path, len(m.Rooms), len(m.Objects), len(m.Players))
	}

	if failed > 0 {
		return fmt.Errorf("validation failed: %d of %d manifests invalid", failed, len(paths))
	}
	return nil
}
