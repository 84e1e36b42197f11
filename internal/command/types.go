// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Azimuth Contributors

// Package command parses player input, resolves it to a verb on an object
// in scope, authorizes it, and runs the verb's behavior against the world.
package command

import (
	"bytes"
	"context"
	"slices"

	"github.com/oklog/ulid/v2"

	"github.com/azimuth-mud/azimuth/internal/access"
	"github.com/azimuth-mud/azimuth/internal/core"
	"github.com/azimuth-mud/azimuth/internal/world"
)

// Handler runs one behavior.
type Handler func(ctx context.Context, exec *Execution) error

// Behavior is a built-in Go implementation that world verbs refer to by name.
//
// Action, Dobj, Preps and Iobj are the signature a verb gets when it is
// attached without one, as @verb and the seed manifest do.
type Behavior struct {
	Name    string
	Handler Handler
	Help    string // one line
	Usage   string // e.g. "get <object>"

	Action access.ActionKind
	Dobj   world.ArgSpec
	Preps  []string
	Iobj   world.ArgSpec
}

// Verb returns a verb running b under name with b's default signature.
func (b Behavior) Verb(name string, aliases ...string) *world.Verb {
	action := b.Action
	if action == "" {
		action = access.ActionInteract
	}
	return &world.Verb{
		Name:     name,
		Aliases:  slices.Clone(aliases),
		Action:   action,
		Behavior: b.Name,
		Dobj:     b.Dobj,
		Preps:    slices.Clone(b.Preps),
		Iobj:     b.Iobj,
	}
}

// Sessions is the part of the session manager the dispatcher routes
// output through. *core.SessionManager implements it.
type Sessions interface {
	Emit(sessionID ulid.ULID, event core.Event) bool
	EmitToPlayer(playerID ulid.ULID, event core.Event) bool
	BroadcastExcludingPlayers(roomID ulid.ULID, event core.Event, players ...ulid.ULID) int
	PlayerMoved(playerID, roomID ulid.ULID)
	SessionForPlayer(playerID ulid.ULID) (ulid.ULID, bool)
	ListActiveSessions() []*core.Session
}

// Flusher forces pending persistence writes out.
type Flusher interface {
	Flush(ctx context.Context) error
}

// Services are the collaborators behaviors may use besides the world.
// Handlers must not keep references to them beyond one execution.
type Services struct {
	Sessions Sessions
	Policy   *access.Policy
	Registry *Registry
	Flusher  Flusher // nil when persistence is in-memory only
}

// notice is output addressed to someone other than the actor. Notices are
// delivered only after the command commits.
type notice struct {
	room    ulid.ULID // broadcast target, zero for a direct message
	player  ulid.ULID // direct target
	event   core.Event
	exclude []ulid.ULID // players
}

// Execution is everything a behavior sees while it runs.
//
// Text written to Output goes to the actor. Mutations go through the
// Execution's methods, which authorize each target before changing the
// world; on any error every change made so far is rolled back.
type Execution struct {
	SessionID ulid.ULID
	ActorID   ulid.ULID
	Command   *ParsedCommand
	Verb      *world.Verb
	This      ulid.ULID // the object the verb was found on
	Dobj      ulid.ULID // zero when absent or unresolved
	Iobj      ulid.ULID
	DobjErr   error // why Command.Dobj did not resolve, if it did not
	IobjErr   error
	Output    *bytes.Buffer
	Services  *Services

	view        *world.View
	tx          *world.Tx
	notices     []notice
	afterCommit []func(context.Context)
	quit        bool
}

// View returns read access to the world.
func (e *Execution) View() *world.View {
	return e.view
}

// Writable reports whether the behavior runs with write access.
func (e *Execution) Writable() bool {
	return e.tx != nil
}

// Actor returns the acting player for authorization.
func (e *Execution) Actor() access.Actor {
	return e.view.Actor(e.ActorID)
}

// ActorName returns the acting player's name.
func (e *Execution) ActorName() string {
	return e.view.Name(e.ActorID)
}

// Location returns the actor's current location.
func (e *Execution) Location() ulid.ULID {
	return e.view.Location(e.ActorID)
}

// Resolve finds an object by name among what the actor can see.
func (e *Execution) Resolve(text string) (ulid.ULID, error) {
	return newResolver(e.view, e.ActorID).resolve(text)
}

// ResolveGlobal finds an object anywhere in the world by name, prototype
// name, "#id" or the local aliases me and here.
func (e *Execution) ResolveGlobal(text string) (ulid.ULID, error) {
	return newResolver(e.view, e.ActorID).resolveGlobal(text)
}

// RequireDobj returns the direct object or why it is missing.
func (e *Execution) RequireDobj() (ulid.ULID, error) {
	if e.Dobj != (ulid.ULID{}) {
		return e.Dobj, nil
	}
	if e.DobjErr != nil {
		return ulid.ULID{}, e.DobjErr
	}
	return ulid.ULID{}, ErrInvalidArgs(e.Command.Verb, e.usage())
}

func (e *Execution) usage() string {
	if e.Services != nil && e.Services.Registry != nil && e.Verb != nil {
		if b, ok := e.Services.Registry.Get(e.Verb.Behavior); ok && b.Usage != "" {
			return b.Usage
		}
	}
	return ""
}

// Usage returns an INVALID_ARGS error carrying the behavior's usage line.
func (e *Execution) Usage() error {
	return ErrInvalidArgs(e.Command.Verb, e.usage())
}

// Announce broadcasts text to everyone in room except the given players.
func (e *Execution) Announce(room ulid.ULID, typ core.EventType, text string, exclude ...ulid.ULID) {
	ev := core.NewEvent(typ, core.Actor{Kind: core.ActorPlayer, ID: e.ActorID}, text)
	e.notices = append(e.notices, notice{room: room, event: ev, exclude: exclude})
}

// TellPlayer sends text to the session of player, if connected.
func (e *Execution) TellPlayer(player ulid.ULID, typ core.EventType, text string) {
	ev := core.NewEvent(typ, core.Actor{Kind: core.ActorPlayer, ID: e.ActorID}, text)
	e.notices = append(e.notices, notice{player: player, event: ev})
}

// AfterCommit runs fn once the command has committed.
func (e *Execution) AfterCommit(fn func(ctx context.Context)) {
	e.afterCommit = append(e.afterCommit, fn)
}

// Quit ends the session after the command's output is delivered.
func (e *Execution) Quit() {
	e.quit = true
}

// Authorize checks that the actor may perform action on target.
func (e *Execution) Authorize(action access.ActionKind, target ulid.ULID) error {
	return e.Services.Policy.Check(e.Actor(), action, e.view.Target(target))
}

func (e *Execution) writer(action access.ActionKind, target ulid.ULID) (*world.Tx, error) {
	if e.tx == nil {
		return nil, errReadOnly()
	}
	if !e.view.Exists(target) {
		return nil, ErrObjectNotFound("#" + target.String())
	}
	if err := e.Authorize(action, target); err != nil {
		return nil, err
	}
	return e.tx, nil
}

// SetProperty sets a property on id.
func (e *Execution) SetProperty(id ulid.ULID, name string, val world.Value) error {
	tx, err := e.writer(access.ActionModifyOwnProperty, id)
	if err != nil {
		return err
	}
	return tx.SetProperty(id, name, val)
}

// ClearProperty removes a local property from id.
func (e *Execution) ClearProperty(id ulid.ULID, name string) error {
	tx, err := e.writer(access.ActionModifyOwnProperty, id)
	if err != nil {
		return err
	}
	return tx.ClearProperty(id, name)
}

// SetName renames id.
func (e *Execution) SetName(id ulid.ULID, name string) error {
	tx, err := e.writer(access.ActionModifyOwnProperty, id)
	if err != nil {
		return err
	}
	return tx.SetName(id, name)
}

// SetAliases replaces id's aliases.
func (e *Execution) SetAliases(id ulid.ULID, aliases []string) error {
	tx, err := e.writer(access.ActionModifyOwnProperty, id)
	if err != nil {
		return err
	}
	return tx.SetAliases(id, aliases)
}

// Move relocates id to dest, authorized as action on id.
func (e *Execution) Move(action access.ActionKind, id, dest ulid.ULID) error {
	tx, err := e.writer(action, id)
	if err != nil {
		return err
	}
	return tx.Move(id, dest)
}

// CreateObject creates an object owned by the actor unless spec names
// another owner, which needs wizard rights.
func (e *Execution) CreateObject(spec world.NewObject) (ulid.ULID, error) {
	tx, err := e.writer(access.ActionCreateObject, e.ActorID)
	if err != nil {
		return ulid.ULID{}, err
	}
	if spec.Owner == (ulid.ULID{}) {
		spec.Owner = e.ActorID
	} else if spec.Owner != e.ActorID {
		if err := e.Authorize(access.ActionAdmin, spec.Owner); err != nil {
			return ulid.ULID{}, err
		}
	}
	return tx.CreateObject(spec)
}

// Destroy removes id from the world.
func (e *Execution) Destroy(id ulid.ULID) error {
	tx, err := e.writer(access.ActionDestroyObject, id)
	if err != nil {
		return err
	}
	return tx.Destroy(id)
}

// DefineVerb adds or replaces a verb on id. The behavior must be registered.
func (e *Execution) DefineVerb(id ulid.ULID, verb *world.Verb) error {
	tx, err := e.writer(access.ActionDefineVerb, id)
	if err != nil {
		return err
	}
	if e.Services.Registry != nil {
		if _, ok := e.Services.Registry.Get(verb.Behavior); !ok {
			return WorldError("There is no behavior called "+verb.Behavior+".", nil)
		}
	}
	return tx.DefineVerb(id, verb)
}

// RemoveVerb deletes a local verb from id.
func (e *Execution) RemoveVerb(id ulid.ULID, name string) error {
	tx, err := e.writer(access.ActionDefineVerb, id)
	if err != nil {
		return err
	}
	return tx.RemoveVerb(id, name)
}

// Reparent replaces id's parents.
func (e *Execution) Reparent(id ulid.ULID, parents []ulid.ULID) error {
	tx, err := e.writer(access.ActionReparent, id)
	if err != nil {
		return err
	}
	return tx.Reparent(id, parents)
}

// SetLevel changes a player's permission level.
func (e *Execution) SetLevel(id ulid.ULID, level access.Level) error {
	tx, err := e.writer(access.ActionChangeLevel, id)
	if err != nil {
		return err
	}
	return tx.SetLevel(id, level)
}
