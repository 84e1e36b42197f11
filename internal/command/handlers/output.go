// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Azimuth Contributors

package handlers

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/oklog/ulid/v2"

	"github.com/azimuth-mud/azimuth/internal/command"
	"github.com/azimuth-mud/azimuth/internal/observability"
	"github.com/azimuth-mud/azimuth/internal/world"
)

// logOutputError logs a write failure and counts it. The command itself
// still succeeds.
func logOutputError(ctx context.Context, verb string, playerID ulid.ULID, bytesWritten int, err error) {
	slog.WarnContext(ctx, "failed to write command output",
		"verb", verb,
		"player_id", playerID.String(),
		"bytes_written", bytesWritten,
		"error", err,
	)
	observability.RecordCommandOutputFailure(verb)
}

// writeOutput writes one line to the actor.
func writeOutput(ctx context.Context, exec *command.Execution, msg string) {
	if n, err := fmt.Fprintln(exec.Output, msg); err != nil {
		logOutputError(ctx, exec.Command.Verb, exec.ActorID, n, err)
	}
}

// writeOutputf writes formatted text to the actor.
func writeOutputf(ctx context.Context, exec *command.Execution, format string, args ...any) {
	if n, err := fmt.Fprintf(exec.Output, format, args...); err != nil {
		logOutputError(ctx, exec.Command.Verb, exec.ActorID, n, err)
	}
}

// message returns obj's override for key from its messages map, falling
// back to def. {player} and {self} are replaced by the actor's and obj's
// names.
func message(exec *command.Execution, obj ulid.ULID, key, def string) string {
	v := exec.View()
	text := def
	if m := v.PropertyOr(obj, world.PropMessages, world.Null); !m.IsNull() {
		if s, ok := m.Lookup(key); ok {
			if str, ok := s.Str(); ok && str != "" {
				text = str
			}
		}
	}
	return strings.NewReplacer(
		"{player}", exec.ActorName(),
		"{self}", v.Name(obj),
	).Replace(text)
}

// names joins object names for display.
func names(v *world.View, ids []ulid.ULID) string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		out = append(out, v.Name(id))
	}
	return strings.Join(out, ", ")
}

// isA reports whether id descends from the prototype called proto.
func isA(v *world.View, id ulid.ULID, proto string) bool {
	p, ok := v.Prototype(proto)
	return ok && v.IsA(id, p)
}

// rawAfter returns the argument text following the first occurrence of the
// word prep, keeping quotes and spacing as typed.
func rawAfter(args, prep string) string {
	fields := strings.Fields(args)
	lower := strings.ToLower(args)
	pos := 0
	for _, f := range fields {
		idx := strings.Index(lower[pos:], strings.ToLower(f)) + pos
		pos = idx + len(f)
		if strings.EqualFold(f, prep) {
			return strings.TrimSpace(args[pos:])
		}
	}
	return ""
}

// rawBefore returns the argument text preceding the first occurrence of the
// word prep.
func rawBefore(args, prep string) string {
	fields := strings.Fields(args)
	lower := strings.ToLower(args)
	pos := 0
	for _, f := range fields {
		idx := strings.Index(lower[pos:], strings.ToLower(f)) + pos
		if strings.EqualFold(f, prep) {
			return strings.TrimSpace(args[:idx])
		}
		pos = idx + len(f)
	}
	return strings.TrimSpace(args)
}
