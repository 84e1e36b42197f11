// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Azimuth Contributors

package handlers

import (
	"context"
	"strings"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/azimuth-mud/azimuth/internal/access"
	"github.com/azimuth-mud/azimuth/internal/command"
	"github.com/azimuth-mud/azimuth/internal/core"
	"github.com/azimuth-mud/azimuth/internal/world"
)

// splitAt splits the arguments around the word prep, resolving the left
// side anywhere in the world.
func splitAt(exec *command.Execution, prep string) (ulid.ULID, string, error) {
	objText := rawBefore(exec.Command.Args, prep)
	rest := rawAfter(exec.Command.Args, prep)
	if objText == "" || rest == "" {
		return ulid.ULID{}, "", exec.Usage()
	}
	id, err := exec.ResolveGlobal(objText)
	if err != nil {
		return ulid.ULID{}, "", err
	}
	return id, rest, nil
}

// DescribeHandler sets an object's description.
func DescribeHandler(ctx context.Context, exec *command.Execution) error {
	id, text, err := splitAt(exec, "as")
	if err != nil {
		return err
	}
	text = strings.Trim(text, `"`)
	if err := exec.SetProperty(id, world.PropDescription, world.String(text)); err != nil {
		return err
	}
	writeOutputf(ctx, exec, "Description of %s set.\n", exec.View().Name(id))
	return nil
}

// RenameHandler renames an object. Player names must stay valid login names.
func RenameHandler(ctx context.Context, exec *command.Execution) error {
	id, name, err := splitAt(exec, "to")
	if err != nil {
		return err
	}
	name = strings.Trim(name, `"`)
	v := exec.View()
	if v.IsPlayer(id) {
		if err := world.ValidatePlayerName(name); err != nil {
			return oops.Code(world.CodeInvalidObject).Wrap(err)
		}
		if other, ok := v.FindPlayer(name); ok && other != id {
			return command.WorldError("That name is taken.", nil)
		}
	}
	old := v.Name(id)
	if err := exec.SetName(id, name); err != nil {
		return err
	}
	writeOutputf(ctx, exec, "Renamed %s to %s.\n", old, name)
	return nil
}

// SetHandler assigns a property: set <obj>.<prop> to <value>.
func SetHandler(ctx context.Context, exec *command.Execution) error {
	ref := rawBefore(exec.Command.Args, "to")
	valText := rawAfter(exec.Command.Args, "to")
	dot := strings.LastIndex(ref, ".")
	if dot <= 0 || dot == len(ref)-1 || valText == "" {
		return exec.Usage()
	}
	id, err := exec.ResolveGlobal(ref[:dot])
	if err != nil {
		return err
	}
	prop := ref[dot+1:]
	val := world.ParseLiteral(valText)
	if val.IsNull() {
		err = exec.ClearProperty(id, prop)
	} else {
		err = exec.SetProperty(id, prop, val)
	}
	if err != nil {
		return err
	}
	writeOutputf(ctx, exec, "Set %s.%s to %s.\n", exec.View().Name(id), prop, val)
	return nil
}

// CreateHandler creates an object in the actor's inventory:
// @create <name> [from <parent>]. The default parent is $thing.
func CreateHandler(ctx context.Context, exec *command.Execution) error {
	name := strings.Trim(rawBefore(exec.Command.Args, "from"), `"`)
	if name == "" {
		return exec.Usage()
	}
	parentText := rawAfter(exec.Command.Args, "from")
	if parentText == "" {
		parentText = ProtoThing
	}
	parent, err := exec.ResolveGlobal(parentText)
	if err != nil {
		return err
	}
	id, err := exec.CreateObject(world.NewObject{
		Name:     name,
		Parents:  []ulid.ULID{parent},
		Location: exec.ActorID,
	})
	if err != nil {
		return err
	}
	writeOutputf(ctx, exec, "Created %s (#%s) from %s.\n", name, id, exec.View().Name(parent))
	return nil
}

// DigHandler creates a room and an exit to it from the current room:
// @dig <exit>[,<return exit>] to <room name>.
func DigHandler(ctx context.Context, exec *command.Execution) error {
	exitsText := rawBefore(exec.Command.Args, "to")
	roomName := strings.Trim(rawAfter(exec.Command.Args, "to"), `"`)
	if exitsText == "" || roomName == "" {
		return exec.Usage()
	}
	here := exec.Location()
	if here == (ulid.ULID{}) {
		return command.WorldError("You must be somewhere to dig.", nil)
	}
	v := exec.View()
	roomProto, ok := v.Prototype(ProtoRoom)
	if !ok {
		return command.WorldError("This world has no "+ProtoRoom+" prototype.", nil)
	}
	exitProto, ok := v.Prototype(ProtoExit)
	if !ok {
		return command.WorldError("This world has no "+ProtoExit+" prototype.", nil)
	}

	outName, backName, _ := strings.Cut(exitsText, ",")
	outName, backName = strings.TrimSpace(outName), strings.TrimSpace(backName)

	room, err := exec.CreateObject(world.NewObject{
		Name:     roomName,
		Parents:  []ulid.ULID{roomProto},
		Location: v.Root(),
	})
	if err != nil {
		return err
	}
	if _, err := makeExit(exec, outName, exitProto, here, room); err != nil {
		return err
	}
	writeOutputf(ctx, exec, "Dug %s (#%s) to the %s.\n", roomName, room, outName)
	if backName != "" {
		if _, err := makeExit(exec, backName, exitProto, room, here); err != nil {
			return err
		}
		writeOutputf(ctx, exec, "Return exit %s created.\n", backName)
	}
	return nil
}

func makeExit(exec *command.Execution, name string, proto, from, to ulid.ULID) (ulid.ULID, error) {
	var aliases []string
	if alias, ok := command.Abbreviation(name); ok {
		aliases = []string{alias}
	}
	return exec.CreateObject(world.NewObject{
		Name:     name,
		Aliases:  aliases,
		Parents:  []ulid.ULID{proto},
		Location: from,
		Props:    map[string]world.Value{world.PropDestination: world.Ref(to)},
	})
}

// DestroyHandler removes an object from the world.
func DestroyHandler(ctx context.Context, exec *command.Execution) error {
	text := strings.TrimSpace(exec.Command.Args)
	if text == "" {
		return exec.Usage()
	}
	id, err := exec.ResolveGlobal(text)
	if err != nil {
		return err
	}
	v := exec.View()
	switch {
	case id == exec.ActorID:
		return command.WorldError("You can't destroy yourself.", nil)
	case v.IsPlayer(id):
		if _, online := exec.Services.Sessions.SessionForPlayer(id); online {
			return command.WorldError(v.Name(id)+" is connected.", nil)
		}
	case v.Contains(id, exec.ActorID):
		return command.WorldError("You can't destroy something you are inside.", nil)
	}
	name := v.Name(id)
	if err := exec.Destroy(id); err != nil {
		return err
	}
	writeOutputf(ctx, exec, "%s destroyed.\n", name)
	return nil
}

// splitVerbRef splits "<obj>:<verb>".
func splitVerbRef(exec *command.Execution, text string) (ulid.ULID, string, error) {
	objText, verbName, ok := strings.Cut(text, ":")
	objText, verbName = strings.TrimSpace(objText), strings.TrimSpace(verbName)
	if !ok || objText == "" || verbName == "" {
		return ulid.ULID{}, "", exec.Usage()
	}
	id, err := exec.ResolveGlobal(objText)
	if err != nil {
		return ulid.ULID{}, "", err
	}
	return id, verbName, nil
}

// VerbHandler attaches a behavior to an object under a verb name:
// @verb <obj>:<name> as <behavior> [<dobj> [<prep> <iobj>]].
func VerbHandler(ctx context.Context, exec *command.Execution) error {
	ref := rawBefore(exec.Command.Args, "as")
	spec := strings.Fields(rawAfter(exec.Command.Args, "as"))
	if ref == "" || len(spec) == 0 || len(spec) == 3 || len(spec) > 4 {
		return exec.Usage()
	}
	id, name, err := splitVerbRef(exec, ref)
	if err != nil {
		return err
	}
	behavior, ok := exec.Services.Registry.Get(spec[0])
	if !ok {
		return command.WorldError("There is no behavior called "+spec[0]+".", nil)
	}
	verb := behavior.Verb(name)
	if len(spec) >= 2 {
		if verb.Dobj, err = world.ParseArgSpec(spec[1]); err != nil {
			return exec.Usage()
		}
	}
	if len(spec) == 4 {
		verb.Preps = nil
		if spec[2] != "none" {
			verb.Preps = strings.Split(spec[2], "/")
		}
		if verb.Iobj, err = world.ParseArgSpec(spec[3]); err != nil {
			return exec.Usage()
		}
	}
	if err := exec.DefineVerb(id, verb); err != nil {
		return err
	}
	writeOutputf(ctx, exec, "Verb %s on %s now runs %s.\n", name, exec.View().Name(id), behavior.Name)
	return nil
}

// RemoveVerbHandler deletes a verb defined directly on an object.
func RemoveVerbHandler(ctx context.Context, exec *command.Execution) error {
	id, name, err := splitVerbRef(exec, strings.TrimSpace(exec.Command.Args))
	if err != nil {
		return err
	}
	if err := exec.RemoveVerb(id, name); err != nil {
		return err
	}
	writeOutputf(ctx, exec, "Verb %s removed from %s.\n", name, exec.View().Name(id))
	return nil
}

// ChparentHandler replaces an object's parents:
// @chparent <obj> to <parent>[,<parent>...].
func ChparentHandler(ctx context.Context, exec *command.Execution) error {
	id, rest, err := splitAt(exec, "to")
	if err != nil {
		return err
	}
	var parents []ulid.ULID
	for _, text := range strings.Split(rest, ",") {
		if text = strings.TrimSpace(text); text == "" {
			continue
		}
		p, err := exec.ResolveGlobal(text)
		if err != nil {
			return err
		}
		parents = append(parents, p)
	}
	if err := exec.Reparent(id, parents); err != nil {
		return err
	}
	v := exec.View()
	if len(parents) == 0 {
		writeOutputf(ctx, exec, "%s now has no parents.\n", v.Name(id))
		return nil
	}
	writeOutputf(ctx, exec, "%s now inherits from %s.\n", v.Name(id), names(v, parents))
	return nil
}

// LevelHandler changes a player's permission level: @level <player> to <level>.
func LevelHandler(ctx context.Context, exec *command.Execution) error {
	id, levelText, err := splitAt(exec, "to")
	if err != nil {
		return err
	}
	v := exec.View()
	if !v.IsPlayer(id) {
		return command.WorldError(v.Name(id)+" is not a player.", nil)
	}
	level, err := access.ParseLevel(levelText)
	if err != nil {
		return command.WorldError("Levels are player, programmer and wizard.", err)
	}
	if err := exec.SetLevel(id, level); err != nil {
		return err
	}
	writeOutputf(ctx, exec, "%s is now a %s.\n", v.Name(id), level)
	if id != exec.ActorID {
		exec.TellPlayer(id, core.EventTypeSystem, "You are now a "+level.String()+".")
	}
	return nil
}

// FlushHandler forces every pending change out to persistent storage once
// the command has committed.
func FlushHandler(ctx context.Context, exec *command.Execution) error {
	flusher := exec.Services.Flusher
	if flusher == nil {
		writeOutput(ctx, exec, "This world is not persisted; there is nothing to flush.")
		return nil
	}
	sessions, sessionID := exec.Services.Sessions, exec.SessionID
	exec.AfterCommit(func(ctx context.Context) {
		if err := flusher.Flush(ctx); err != nil {
			sessions.Emit(sessionID, core.NewEvent(core.EventTypeError, core.SystemActor, "Flush failed: "+err.Error()))
			return
		}
		sessions.Emit(sessionID, core.Message("World flushed."))
	})
	return nil
}
