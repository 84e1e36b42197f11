// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Azimuth Contributors

package handlers

import (
	"context"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/azimuth-mud/azimuth/internal/command"
)

// playerInfo holds display information for a connected player.
type playerInfo struct {
	Name     string
	Location string
	IdleTime time.Duration
}

// WhoHandler lists connected players with their location and idle time.
func WhoHandler(ctx context.Context, exec *command.Execution) error {
	v := exec.View()
	now := time.Now()

	var players []playerInfo
	for _, s := range exec.Services.Sessions.ListActiveSessions() {
		if !s.Authenticated() || !v.Exists(s.PlayerID) {
			continue
		}
		players = append(players, playerInfo{
			Name:     v.Name(s.PlayerID),
			Location: v.Name(v.Location(s.PlayerID)),
			IdleTime: now.Sub(s.LastActivity),
		})
	}
	if n, err := writeWhoOutput(exec.Output, players); err != nil {
		logOutputError(ctx, exec.Command.Verb, exec.ActorID, n, err)
	}
	return nil
}

// writeWhoOutput returns total bytes written and the first error.
func writeWhoOutput(w io.Writer, players []playerInfo) (int, error) {
	var totalBytes int
	var firstErr error
	write := func(n int, err error) {
		totalBytes += n
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	if len(players) == 0 {
		write(fmt.Fprintln(w, "No players online."))
		return totalBytes, firstErr
	}

	sort.Slice(players, func(i, j int) bool {
		return players[i].Name < players[j].Name
	})

	write(fmt.Fprintf(w, "  %-20s  %-20s  %s\n", "Player", "Location", "Idle"))
	for _, p := range players {
		write(fmt.Fprintf(w, "  %-20s  %-20s  %s\n", p.Name, p.Location, formatIdleTime(p.IdleTime)))
	}
	if len(players) == 1 {
		write(fmt.Fprintln(w, "1 player online."))
	} else {
		write(fmt.Fprintf(w, "%d players online.\n", len(players)))
	}
	return totalBytes, firstErr
}

// formatIdleTime formats a duration as a human-readable idle time.
func formatIdleTime(d time.Duration) string {
	if d < time.Second {
		return "0s"
	}
	d = d.Round(time.Second)

	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60

	if hours > 0 {
		return fmt.Sprintf("%dh%dm", hours, minutes)
	}
	if minutes > 0 {
		return fmt.Sprintf("%dm%ds", minutes, seconds)
	}
	return fmt.Sprintf("%ds", seconds)
}
