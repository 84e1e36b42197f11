// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Azimuth Contributors

package main

import (
	"github.com/spf13/cobra"
)

// Global flags available to all subcommands.
var configFile string

// NewRootCmd creates the root command for the Azimuth CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "azimuth",
		Short: "Azimuth - a multi-user object world server",
		Long: `Azimuth is a multi-user world server. Players connect over telnet or
websocket, move between rooms, and manipulate a persistent graph of objects
whose verbs and properties are checked against ownership and permissions.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path (default: XDG_CONFIG_HOME/azimuth/config.yaml)")

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewSeedCmd())
	cmd.AddCommand(NewBackupCmd())
	cmd.AddCommand(NewValidateSeedCmd())
	cmd.AddCommand(NewSchemaCmd())
	cmd.AddCommand(NewMigrateCmd())
	cmd.AddCommand(NewStatusCmd())

	return cmd
}
