// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Azimuth Contributors

// Package handlers provides the built-in behaviors that world verbs run.
package handlers

import (
	"context"
	"fmt"
	"strings"

	"github.com/oklog/ulid/v2"

	"github.com/azimuth-mud/azimuth/internal/command"
	"github.com/azimuth-mud/azimuth/internal/world"
)

// Prototype names the seeded world defines.
const (
	ProtoRoom      = "$room"
	ProtoThing     = "$thing"
	ProtoContainer = "$container"
	ProtoExit      = "$exit"
	ProtoPlayer    = "$player"
)

// LookHandler describes the actor's location, or an object when one is named.
func LookHandler(ctx context.Context, exec *command.Execution) error {
	target, err := lookTarget(exec)
	if err != nil {
		return err
	}
	if target == (ulid.ULID{}) || target == exec.Location() {
		describeRoom(ctx, exec, exec.Location())
		return nil
	}
	describeObject(ctx, exec, target)
	return nil
}

// lookTarget handles both "look lamp" and "look at lamp".
func lookTarget(exec *command.Execution) (ulid.ULID, error) {
	switch {
	case exec.Command.Dobj != "":
		return exec.RequireDobj()
	case exec.Command.Iobj != "":
		if exec.IobjErr != nil {
			return ulid.ULID{}, exec.IobjErr
		}
		return exec.Iobj, nil
	default:
		return ulid.ULID{}, nil
	}
}

func describeRoom(ctx context.Context, exec *command.Execution, room ulid.ULID) {
	v := exec.View()
	if room == (ulid.ULID{}) || !v.Exists(room) {
		writeOutput(ctx, exec, "You are nowhere.")
		return
	}
	writeOutput(ctx, exec, v.Name(room))
	if desc := v.StringProperty(room, world.PropDescription); desc != "" {
		writeOutput(ctx, exec, desc)
	}

	var exits, things, people []ulid.ULID
	for _, id := range v.Contents(room) {
		switch {
		case id == exec.ActorID:
		case v.IsPlayer(id):
			people = append(people, id)
		case isA(v, id, ProtoExit):
			exits = append(exits, id)
		default:
			things = append(things, id)
		}
	}
	if len(exits) > 0 {
		writeOutputf(ctx, exec, "Exits: %s\n", names(v, exits))
	}
	if len(things) > 0 {
		writeOutputf(ctx, exec, "You see: %s\n", names(v, things))
	}
	if len(people) > 0 {
		writeOutputf(ctx, exec, "Also here: %s\n", names(v, people))
	}
}

func describeObject(ctx context.Context, exec *command.Execution, id ulid.ULID) {
	v := exec.View()
	writeOutput(ctx, exec, v.Name(id))
	desc := v.StringProperty(id, world.PropDescription)
	if desc == "" {
		desc = "You see nothing special."
	}
	writeOutput(ctx, exec, desc)
	if isA(v, id, ProtoContainer) || v.IsPlayer(id) {
		if contents := v.Contents(id); len(contents) > 0 {
			writeOutputf(ctx, exec, "It contains: %s\n", names(v, contents))
		}
	}
}

// InventoryHandler lists what the actor carries.
func InventoryHandler(ctx context.Context, exec *command.Execution) error {
	v := exec.View()
	items := v.Contents(exec.ActorID)
	if len(items) == 0 {
		writeOutput(ctx, exec, "You are empty-handed.")
		return nil
	}
	writeOutput(ctx, exec, "You are carrying:")
	for _, id := range items {
		writeOutputf(ctx, exec, "  %s\n", v.Name(id))
	}
	return nil
}

// ExamineHandler shows an object's identity, ancestry, properties and verbs.
func ExamineHandler(ctx context.Context, exec *command.Execution) error {
	id, err := exec.RequireDobj()
	if err != nil {
		return err
	}
	v := exec.View()
	obj, err := v.Get(id)
	if err != nil {
		return err
	}

	writeOutputf(ctx, exec, "%s (#%s)\n", obj.Name, obj.ID)
	if len(obj.Aliases) > 0 {
		writeOutputf(ctx, exec, "Aliases: %s\n", strings.Join(obj.Aliases, ", "))
	}
	writeOutputf(ctx, exec, "Owner: %s\n", v.Name(obj.Owner))
	if len(obj.Parents) > 0 {
		writeOutputf(ctx, exec, "Parents: %s\n", names(v, obj.Parents))
	}
	if obj.HasLocation() {
		writeOutputf(ctx, exec, "Location: %s\n", v.Name(obj.Location))
	}
	if obj.Player {
		writeOutputf(ctx, exec, "Level: %s\n", obj.Level)
	}
	if props := obj.PropertyNames(); len(props) > 0 {
		writeOutput(ctx, exec, "Properties:")
		for _, name := range props {
			val, _ := obj.Property(name)
			writeOutputf(ctx, exec, "  %s: %s\n", name, formatValue(val))
		}
	}
	if verbs := v.VerbsOf(id); len(verbs) > 0 {
		writeOutputf(ctx, exec, "Verbs: %s\n", strings.Join(verbs, ", "))
	}
	return nil
}

func formatValue(val world.Value) string {
	s := val.String()
	const limit = 60
	if len(s) > limit {
		return fmt.Sprintf("%s...", s[:limit])
	}
	return s
}
