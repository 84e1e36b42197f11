// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Azimuth Contributors

package handlers

import (
	"context"

	"github.com/oklog/ulid/v2"

	"github.com/azimuth-mud/azimuth/internal/access"
	"github.com/azimuth-mud/azimuth/internal/command"
	"github.com/azimuth-mud/azimuth/internal/core"
	"github.com/azimuth-mud/azimuth/internal/world"
)

// GetHandler moves an object from the room into the actor's inventory.
func GetHandler(ctx context.Context, exec *command.Execution) error {
	id, err := exec.RequireDobj()
	if err != nil {
		return err
	}
	v := exec.View()
	switch {
	case id == exec.ActorID:
		return command.WorldError("You can't take yourself.", nil)
	case v.Location(id) == exec.ActorID:
		return command.WorldError("You already have that.", nil)
	case v.IsPlayer(id) || id == exec.Location() || isA(v, id, ProtoRoom) || isA(v, id, ProtoExit):
		return command.WorldError(message(exec, id, "take_failed", "You can't take that."), nil)
	}
	if err := exec.Move(access.ActionInteract, id, exec.ActorID); err != nil {
		return err
	}
	writeOutput(ctx, exec, message(exec, id, "take", "You take {self}."))
	exec.Announce(exec.Location(), core.EventTypeEmote,
		message(exec, id, "take_others", "{player} takes {self}."), exec.ActorID)
	return nil
}

// DropHandler moves a carried object into the actor's room.
func DropHandler(ctx context.Context, exec *command.Execution) error {
	id, err := exec.RequireDobj()
	if err != nil {
		return err
	}
	v := exec.View()
	if v.Location(id) != exec.ActorID {
		return command.WorldError("You don't have that.", nil)
	}
	room := exec.Location()
	if room == (ulid.ULID{}) {
		return command.WorldError("There is nowhere to drop it.", nil)
	}
	if err := exec.Move(access.ActionInteract, id, room); err != nil {
		return err
	}
	writeOutput(ctx, exec, message(exec, id, "drop", "You drop {self}."))
	exec.Announce(room, core.EventTypeEmote,
		message(exec, id, "drop_others", "{player} drops {self}."), exec.ActorID)
	return nil
}

// PutHandler moves an object into a container.
func PutHandler(ctx context.Context, exec *command.Execution) error {
	id, err := exec.RequireDobj()
	if err != nil {
		return err
	}
	if exec.Command.Iobj == "" {
		return exec.Usage()
	}
	if exec.IobjErr != nil {
		return exec.IobjErr
	}
	v := exec.View()
	box := exec.Iobj
	if !isA(v, box, ProtoContainer) {
		return command.WorldError("You can't put things in "+v.Name(box)+".", nil)
	}
	if v.IsPlayer(id) || isA(v, id, ProtoRoom) || isA(v, id, ProtoExit) {
		return command.WorldError("You can't move that.", nil)
	}
	if err := exec.Move(access.ActionInteract, id, box); err != nil {
		return err
	}
	writeOutputf(ctx, exec, "You put %s in %s.\n", v.Name(id), v.Name(box))
	exec.Announce(exec.Location(), core.EventTypeEmote,
		exec.ActorName()+" puts "+v.Name(id)+" in "+v.Name(box)+".", exec.ActorID)
	return nil
}

// GoHandler moves the actor through an exit in the current room.
func GoHandler(ctx context.Context, exec *command.Execution) error {
	exit, err := exec.RequireDobj()
	if err != nil {
		return err
	}
	v := exec.View()
	if !isA(v, exit, ProtoExit) || v.Location(exit) != exec.Location() {
		return command.WorldError("You can't go that way.", nil)
	}
	dest, ok := v.RefProperty(exit, world.PropDestination)
	if !ok {
		return command.WorldError(message(exec, exit, "nogo", "That exit leads nowhere."), nil)
	}
	return travel(ctx, exec, dest,
		message(exec, exit, "leave_others", "{player} leaves through {self}."),
		message(exec, exit, "arrive_others", "{player} arrives."))
}

// travel moves the actor to dest, tells both rooms, and shows the new room.
func travel(ctx context.Context, exec *command.Execution, dest ulid.ULID, leaveMsg, arriveMsg string) error {
	from := exec.Location()
	if err := exec.Move(access.ActionInteract, exec.ActorID, dest); err != nil {
		return err
	}
	if from != (ulid.ULID{}) && from != dest {
		exec.Announce(from, core.EventTypeLeave, leaveMsg, exec.ActorID)
		exec.Announce(dest, core.EventTypeArrive, arriveMsg, exec.ActorID)
	}
	describeRoom(ctx, exec, dest)
	return nil
}

// HomeHandler returns the actor to their home, or the start room.
func HomeHandler(ctx context.Context, exec *command.Execution) error {
	v := exec.View()
	home, ok := v.RefProperty(exec.ActorID, world.PropHome)
	if !ok {
		home, ok = v.StartRoom()
	}
	if !ok {
		return command.WorldError("You have no home.", nil)
	}
	if home == exec.Location() {
		writeOutput(ctx, exec, "You are already home.")
		return nil
	}
	name := exec.ActorName()
	return travel(ctx, exec, home, name+" goes home.", name+" arrives home.")
}

// SetHomeHandler makes the actor's current room their home.
func SetHomeHandler(ctx context.Context, exec *command.Execution) error {
	room := exec.Location()
	if room == (ulid.ULID{}) || !isA(exec.View(), room, ProtoRoom) {
		return command.WorldError("You can't live here.", nil)
	}
	if err := exec.SetProperty(exec.ActorID, world.PropHome, world.Ref(room)); err != nil {
		return err
	}
	writeOutputf(ctx, exec, "Home set to %s.\n", exec.View().Name(room))
	return nil
}

// TeleportHandler moves any object to any place. Moving objects the actor
// does not own needs wizard rights.
func TeleportHandler(ctx context.Context, exec *command.Execution) error {
	objText := rawBefore(exec.Command.Args, "to")
	destText := rawAfter(exec.Command.Args, "to")
	if objText == "" || destText == "" {
		return exec.Usage()
	}
	id, err := exec.ResolveGlobal(objText)
	if err != nil {
		return err
	}
	dest, err := exec.ResolveGlobal(destText)
	if err != nil {
		return err
	}
	v := exec.View()
	from := v.Location(id)
	if err := exec.Move(access.ActionModifyOwnProperty, id, dest); err != nil {
		return err
	}
	if v.IsPlayer(id) {
		name := v.Name(id)
		if from != (ulid.ULID{}) && from != dest {
			exec.Announce(from, core.EventTypeLeave, name+" vanishes.", id)
			exec.Announce(dest, core.EventTypeArrive, name+" appears.", id)
		}
		if id != exec.ActorID {
			exec.TellPlayer(id, core.EventTypeSystem, "You have been teleported to "+v.Name(dest)+".")
		}
	}
	if id == exec.ActorID {
		describeRoom(ctx, exec, dest)
		return nil
	}
	writeOutputf(ctx, exec, "Teleported %s to %s.\n", v.Name(id), v.Name(dest))
	return nil
}
