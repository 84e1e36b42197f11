// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Azimuth Contributors

package handlers

import (
	"github.com/azimuth-mud/azimuth/internal/access"
	"github.com/azimuth-mud/azimuth/internal/command"
	"github.com/azimuth-mud/azimuth/internal/world"
)

const argAny = world.ArgAny

// Behaviors returns every built-in behavior with its default signature.
func Behaviors() []command.Behavior {
	return []command.Behavior{
		// Looking around
		{
			Name: "look", Handler: LookHandler, Action: access.ActionRead,
			Help: "Look at your surroundings or an object", Usage: "look [[at] <object>]",
			Dobj: argAny, Preps: []string{"at", "in", "on"}, Iobj: argAny,
		},
		{
			Name: "inventory", Handler: InventoryHandler, Action: access.ActionRead,
			Help: "List what you are carrying", Usage: "inventory",
		},
		{
			Name: "examine", Handler: ExamineHandler, Action: access.ActionRead,
			Help: "Show an object's owner, parents, properties and verbs", Usage: "examine <object>",
			Dobj: argAny,
		},
		{
			Name: "@who", Handler: WhoHandler, Action: access.ActionRead,
			Help: "List connected players", Usage: "@who",
		},

		// Moving things
		{
			Name: "get", Handler: GetHandler, Action: access.ActionInteract,
			Help: "Pick up an object", Usage: "get <object>",
			Dobj: argAny,
		},
		{
			Name: "drop", Handler: DropHandler, Action: access.ActionInteract,
			Help: "Drop an object you carry", Usage: "drop <object>",
			Dobj: argAny,
		},
		{
			Name: "put", Handler: PutHandler, Action: access.ActionInteract,
			Help: "Put an object in a container", Usage: "put <object> in <container>",
			Dobj: argAny, Preps: []string{"in", "into", "on", "onto"}, Iobj: argAny,
		},
		{
			Name: "go", Handler: GoHandler, Action: access.ActionInteract,
			Help: "Go through an exit", Usage: "go <exit>",
			Dobj: argAny,
		},
		{
			Name: "@home", Handler: HomeHandler, Action: access.ActionInteract,
			Help: "Return to your home", Usage: "@home",
		},
		{
			Name: "@sethome", Handler: SetHomeHandler, Action: access.ActionInteract,
			Help: "Make this room your home", Usage: "@sethome",
		},
		{
			Name: "@teleport", Handler: TeleportHandler, Action: access.ActionModifyOwnProperty,
			Help: "Move an object anywhere", Usage: "@teleport <object> to <place>",
			Dobj: argAny, Preps: []string{"to"}, Iobj: argAny,
		},

		// Talking
		{
			Name: "say", Handler: SayHandler, Action: access.ActionInteract,
			Help: "Say something to the room", Usage: "say <message>",
			Dobj: argAny, Iobj: argAny,
		},
		{
			Name: "emote", Handler: EmoteHandler, Action: access.ActionInteract,
			Help: "Show an action to the room", Usage: "emote <action>",
			Dobj: argAny, Iobj: argAny,
		},
		{
			Name: "whisper", Handler: WhisperHandler, Action: access.ActionInteract,
			Help: "Say something privately", Usage: "whisper <message> to <player>",
			Dobj: argAny, Preps: []string{"to"}, Iobj: argAny,
		},

		// Building
		{
			Name: "@describe", Handler: DescribeHandler, Action: access.ActionModifyOwnProperty,
			Help: "Describe an object", Usage: "@describe <object> as <text>",
			Dobj: argAny, Preps: []string{"as"}, Iobj: argAny,
		},
		{
			Name: "@rename", Handler: RenameHandler, Action: access.ActionModifyOwnProperty,
			Help: "Rename an object", Usage: "@rename <object> to <name>",
			Dobj: argAny, Preps: []string{"to"}, Iobj: argAny,
		},
		{
			Name: "set", Handler: SetHandler, Action: access.ActionModifyOwnProperty,
			Help: "Set a property", Usage: "set <object>.<property> to <value>",
			Dobj: argAny, Preps: []string{"to"}, Iobj: argAny,
		},
		{
			Name: "@create", Handler: CreateHandler, Action: access.ActionCreateObject,
			Help: "Create an object", Usage: "@create <name> [from <parent>]",
			Dobj: argAny, Preps: []string{"from"}, Iobj: argAny,
		},
		{
			Name: "@dig", Handler: DigHandler, Action: access.ActionCreateObject,
			Help: "Create a room and an exit to it", Usage: "@dig <exit>[,<return exit>] to <room name>",
			Dobj: argAny, Preps: []string{"to"}, Iobj: argAny,
		},
		{
			Name: "@destroy", Handler: DestroyHandler, Action: access.ActionDestroyObject,
			Help: "Destroy an object", Usage: "@destroy <object>",
			Dobj: argAny,
		},
		{
			Name: "@verb", Handler: VerbHandler, Action: access.ActionDefineVerb,
			Help: "Attach a behavior to an object", Usage: "@verb <object>:<name> as <behavior> [<dobj> [<prep> <iobj>]]",
			Dobj: argAny, Preps: []string{"as"}, Iobj: argAny,
		},
		{
			Name: "@rmverb", Handler: RemoveVerbHandler, Action: access.ActionDefineVerb,
			Help: "Remove a verb from an object", Usage: "@rmverb <object>:<name>",
			Dobj: argAny,
		},
		{
			Name: "@chparent", Handler: ChparentHandler, Action: access.ActionReparent,
			Help: "Change an object's parents", Usage: "@chparent <object> to <parent>[,<parent>...]",
			Dobj: argAny, Preps: []string{"to"}, Iobj: argAny,
		},
		{
			Name: "@level", Handler: LevelHandler, Action: access.ActionChangeLevel,
			Help: "Change a player's permission level", Usage: "@level <player> to <level>",
			Dobj: argAny, Preps: []string{"to"}, Iobj: argAny,
		},
		{
			Name: "@flush", Handler: FlushHandler, Action: access.ActionAdmin,
			Help: "Write every pending change to storage", Usage: "@flush",
		},
		{
			Name: "@quit", Handler: QuitHandler, Action: access.ActionRead,
			Help: "Disconnect", Usage: "@quit",
		},
	}
}

// RegisterAll registers every built-in behavior. Panics on a duplicate,
// which is a programming error.
func RegisterAll(reg *command.Registry) {
	reg.MustRegister(Behaviors()...)
}
