// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Azimuth Contributors

package main

import (
	"os"
	"path/filepath"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/azimuth-mud/azimuth/internal/seed"
)

// NewSchemaCmd creates the schema subcommand.
func NewSchemaCmd() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Print the seed manifest JSON Schema",
		Long:  `Generates the JSON Schema for seed manifests, for editor completion and CI checks.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			schema, err := seed.GenerateSchema()
			if err != nil {
				return err
			}
			if output == "" {
				_, err := cmd.OutOrStdout().Write(append(schema, '\n'))
				return err
			}
			if err := os.MkdirAll(filepath.Dir(output), 0o750); err != nil {
				return oops.With("path", output).Wrapf(err, "failed to create directory")
			}
			if err := os.WriteFile(output, schema, 0o600); err != nil {
				return oops.With("path", output).Wrapf(err, "failed to write schema")
			}
			cmd.Printf("Generated %s\n", output)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "write the schema to a file instead of stdout")
	return cmd
}
