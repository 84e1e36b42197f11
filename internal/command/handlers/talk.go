// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Azimuth Contributors

package handlers

import (
	"context"
	"strings"

	"github.com/azimuth-mud/azimuth/internal/command"
	"github.com/azimuth-mud/azimuth/internal/core"
)

// SayHandler speaks to everyone in the room.
func SayHandler(ctx context.Context, exec *command.Execution) error {
	text := strings.TrimSpace(exec.Command.Args)
	if text == "" {
		return exec.Usage()
	}
	writeOutputf(ctx, exec, "You say, \"%s\"\n", text)
	exec.Announce(exec.Location(), core.EventTypeSay, exec.ActorName()+" says, \""+text+"\"", exec.ActorID)
	return nil
}

// EmoteHandler shows an action to everyone in the room.
func EmoteHandler(ctx context.Context, exec *command.Execution) error {
	text := strings.TrimSpace(exec.Command.Args)
	if text == "" {
		return exec.Usage()
	}
	sep := " "
	if strings.HasPrefix(text, "'") || strings.HasPrefix(text, ",") {
		sep = ""
	}
	line := exec.ActorName() + sep + text
	writeOutput(ctx, exec, line)
	exec.Announce(exec.Location(), core.EventTypeEmote, line, exec.ActorID)
	return nil
}

// WhisperHandler speaks privately to one player in the same room.
func WhisperHandler(ctx context.Context, exec *command.Execution) error {
	text := rawBefore(exec.Command.Args, "to")
	if text == "" || exec.Command.Iobj == "" {
		return exec.Usage()
	}
	if exec.IobjErr != nil {
		return exec.IobjErr
	}
	v := exec.View()
	target := exec.Iobj
	switch {
	case !v.IsPlayer(target):
		return command.WorldError("You can only whisper to players.", nil)
	case target == exec.ActorID:
		return command.WorldError("You mutter to yourself.", nil)
	case v.Location(target) != exec.Location():
		return command.WorldError(v.Name(target)+" is not here.", nil)
	}
	text = strings.Trim(text, `"`)
	exec.TellPlayer(target, core.EventTypeSay, exec.ActorName()+" whispers, \""+text+"\"")
	writeOutputf(ctx, exec, "You whisper, \"%s\" to %s.\n", text, v.Name(target))
	return nil
}
