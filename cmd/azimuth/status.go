// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Azimuth Contributors

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/azimuth-mud/azimuth/internal/config"
	"github.com/azimuth-mud/azimuth/internal/observability"
	"github.com/azimuth-mud/azimuth/pkg/errutil"
)

// ServerStatus holds the readiness of a running server.
type ServerStatus struct {
	Addr   string `json:"addr"`
	Ready  bool   `json:"ready"`
	Health string `json:"health"`
	Error  string `json:"error,omitempty"`
}

// statusConfig holds configuration for the status command.
type statusConfig struct {
	addr       string
	jsonOutput bool
	timeout    time.Duration
}

// NewStatusCmd creates the status subcommand.
func NewStatusCmd() *cobra.Command {
	cfg := &statusConfig{}

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show status of a running Azimuth server",
		Long: `Query the readiness endpoint of a running server. The address defaults
to metrics.addr from the config file.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStatus(cmd, cfg)
		},
	}

	cmd.Flags().StringVar(&cfg.addr, "addr", "", "metrics/health address of the server")
	cmd.Flags().BoolVar(&cfg.jsonOutput, "json", false, "output status as JSON")
	cmd.Flags().DurationVar(&cfg.timeout, "timeout", 2*time.Second, "how long to wait for the server")

	return cmd
}

func runStatus(cmd *cobra.Command, cfg *statusConfig) error {
	addr := cfg.addr
	if addr == "" {
		loaded, err := config.Load(configFile, nil)
		if err != nil {
			return err
		}
		addr = loaded.Metrics.Addr
	}
	if addr == "" {
		return fmt.Errorf("no address: metrics are disabled in the config, use --addr")
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), cfg.timeout)
	defer cancel()
	status := queryStatus(ctx, addr)

	var output string
	if cfg.jsonOutput {
		data, err := json.MarshalIndent(status, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to format JSON: %w", err)
		}
		output = string(data)
	} else {
		output = formatStatusTable(status)
	}

	cmd.Println(output)
	return nil
}

func queryStatus(ctx context.Context, addr string) ServerStatus {
	status := ServerStatus{Addr: addr}
	err := observability.Probe(ctx, addr)
	switch {
	case err == nil:
		status.Ready = true
		status.Health = "ready"
	case errutil.HasCode(err, "NOT_READY"):
		status.Health = "starting"
		status.Error = err.Error()
	default:
		status.Health = "unreachable"
		status.Error = err.Error()
	}
	return status
}

// formatStatusTable formats the status as a human-readable table.
func formatStatusTable(status ServerStatus) string {
	var buf []byte
	w := tabwriter.NewWriter((*byteWriter)(&buf), 0, 0, 2, ' ', 0)

	_, _ = fmt.Fprintln(w, "ADDRESS\tSTATUS\tDETAIL")
	detail := "-"
	if status.Error != "" {
		detail = status.Error
	}
	_, _ = fmt.Fprintf(w, "%s\t%s\t%s\n", status.Addr, status.Health, detail)

	_ = w.Flush()
	return string(buf)
}

// byteWriter is a simple writer that appends to a byte slice.
type byteWriter []byte

func (w *byteWriter) Write(p []byte) (int, error) {
	*w = append(*w, p...)
	return len(p), nil
}
