// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Azimuth Contributors

package command

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"slices"
	"strings"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/azimuth-mud/azimuth/internal/access"
	"github.com/azimuth-mud/azimuth/internal/core"
	"github.com/azimuth-mud/azimuth/internal/world"
	"github.com/azimuth-mud/azimuth/pkg/errutil"
)

var tracer = otel.Tracer("azimuth/command")

// ExitPrototype is the prototype whose descendants are exits. A bare exit
// name typed as a command is treated as "go <exit>".
const ExitPrototype = "$exit"

// Result is the outcome of a successful dispatch.
type Result struct {
	Verb string
	Quit bool
}

// Dispatcher runs commands: parse, resolve, authorize, execute, route.
type Dispatcher struct {
	graph            *world.Graph
	registry         *Registry
	services         *Services
	rateLimiter      *RateLimiter
	environmentFirst bool
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithRateLimiter enables per-session rate limiting. Wizards are exempt.
func WithRateLimiter(rl *RateLimiter) DispatcherOption {
	return func(d *Dispatcher) {
		d.rateLimiter = rl
	}
}

// WithEnvironmentFirst makes verbs on the direct and indirect objects and
// the room take precedence over the actor's own verbs.
func WithEnvironmentFirst(on bool) DispatcherOption {
	return func(d *Dispatcher) {
		d.environmentFirst = on
	}
}

// WithFlusher lets @flush force persistence.
func WithFlusher(f Flusher) DispatcherOption {
	return func(d *Dispatcher) {
		d.services.Flusher = f
	}
}

// NewDispatcher creates a dispatcher over graph.
func NewDispatcher(graph *world.Graph, registry *Registry, sessions Sessions, policy *access.Policy, opts ...DispatcherOption) (*Dispatcher, error) {
	if graph == nil || registry == nil || sessions == nil || policy == nil {
		return nil, oops.Code("INVALID_DISPATCHER").Errorf("graph, registry, sessions and policy are required")
	}
	d := &Dispatcher{
		graph:    graph,
		registry: registry,
		services: &Services{Sessions: sessions, Policy: policy, Registry: registry},
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Registry returns the behavior registry.
func (d *Dispatcher) Registry() *Registry {
	return d.registry
}

// Dispatch runs one line of input typed by the player bound to sessionID.
// Errors are meant for the player via PlayerMessage; none of them leave the
// world partly changed.
func (d *Dispatcher) Dispatch(ctx context.Context, sessionID, actorID ulid.ULID, input string) (res Result, err error) {
	metrics := newMetricsRecorder()
	defer metrics.record()

	if actorID == (ulid.ULID{}) {
		return Result{}, ErrNotLoggedIn()
	}
	cmd, err := Parse(input)
	if err != nil {
		metrics.status = StatusNotFound
		return Result{}, err
	}

	ctx, span := tracer.Start(ctx, "command.execute",
		trace.WithAttributes(
			attribute.String("command.verb", cmd.Verb),
			attribute.String("player.id", actorID.String()),
		),
	)
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	if err := d.checkRate(sessionID, actorID, span); err != nil {
		metrics.status = StatusRateLimited
		return Result{}, err
	}

	exec, err := d.run(ctx, sessionID, actorID, cmd, metrics)
	if err != nil {
		metrics.status = statusFor(err)
		if !IsUserError(err) {
			errutil.LogError(ctx, slog.Default(), "command failed", err,
				"verb", cmd.Verb,
				"session_id", sessionID.String(),
				"player_id", actorID.String(),
			)
		}
		return Result{Verb: cmd.Verb}, err
	}
	metrics.status = StatusSuccess
	span.SetAttributes(attribute.String("command.behavior", exec.Verb.Behavior))

	for _, fn := range exec.afterCommit {
		fn(ctx)
	}
	return Result{Verb: exec.Verb.Name, Quit: exec.quit}, nil
}

func (d *Dispatcher) checkRate(sessionID, actorID ulid.ULID, span trace.Span) error {
	if d.rateLimiter == nil {
		return nil
	}
	var level access.Level
	_ = d.graph.View(func(v *world.View) error {
		level = v.Level(actorID)
		return nil
	})
	if level >= access.LevelWizard {
		return nil
	}
	if ok, cooldown := d.rateLimiter.Allow(sessionID); !ok {
		span.SetAttributes(attribute.Bool("command.rate_limited", true))
		return ErrRateLimited(cooldown)
	}
	return nil
}

// run resolves the command under the read lock and executes read-only
// verbs there. Mutating verbs are resolved again and executed under the
// write lock so the whole command is one atomic step.
func (d *Dispatcher) run(ctx context.Context, sessionID, actorID ulid.ULID, cmd *ParsedCommand, metrics *metricsRecorder) (*Execution, error) {
	var exec *Execution
	mutating := false
	err := d.graph.View(func(v *world.View) error {
		e, err := d.prepare(v, sessionID, actorID, cmd)
		if err != nil {
			return err
		}
		metrics.verb = e.Verb.Name
		if e.Verb.Action.Mutating() {
			mutating = true
			return nil
		}
		exec = e
		return d.execute(ctx, e)
	})
	if err != nil {
		return nil, err
	}

	if mutating {
		metrics.mode = "write"
		moves, err := d.graph.Update(func(tx *world.Tx) error {
			e, err := d.prepare(&tx.View, sessionID, actorID, cmd)
			if err != nil {
				return err
			}
			e.tx = tx
			exec = e
			return d.execute(ctx, e)
		})
		if err != nil {
			return nil, err
		}
		d.resubscribe(moves)
	}

	d.route(sessionID, exec)
	return exec, nil
}

// resubscribe moves the sessions of players a command relocated. Each
// player's room is read under the read lock, which no later commit can
// overlap, so racing commands leave every session in its player's room.
func (d *Dispatcher) resubscribe(moves []world.Move) {
	var players []ulid.ULID
	for _, m := range moves {
		if m.Player && !slices.Contains(players, m.ID) {
			players = append(players, m.ID)
		}
	}
	if len(players) == 0 {
		return
	}
	_ = d.graph.View(func(v *world.View) error {
		for _, id := range players {
			d.services.Sessions.PlayerMoved(id, v.Location(id))
		}
		return nil
	})
}

// prepare finds the verb and builds the execution for cmd.
func (d *Dispatcher) prepare(v *world.View, sessionID, actorID ulid.ULID, cmd *ParsedCommand) (*Execution, error) {
	if !v.Exists(actorID) {
		return nil, ErrNotLoggedIn()
	}
	exec := &Execution{
		SessionID: sessionID,
		ActorID:   actorID,
		Command:   cmd,
		Output:    &bytes.Buffer{},
		Services:  d.services,
		view:      v,
	}
	r := newResolver(v, actorID)
	if cmd.Dobj != "" {
		exec.Dobj, exec.DobjErr = r.resolve(cmd.Dobj)
	}
	if cmd.Iobj != "" {
		exec.Iobj, exec.IobjErr = r.resolve(cmd.Iobj)
	}

	loc := v.Location(actorID)
	match, ok := v.FindVerb(d.sources(v, exec), cmd.Verb, func(m world.VerbMatch) bool {
		return offers(m, actorID, loc) && argsFit(m, exec)
	})
	if !ok {
		if exit, isExit := d.bareExit(v, r, cmd); isExit {
			return d.prepare(v, sessionID, actorID, &ParsedCommand{
				Verb:  "go",
				Args:  cmd.Verb,
				Words: []string{cmd.Verb},
				Dobj:  "#" + exit.String(),
				Raw:   cmd.Raw,
			})
		}
		switch {
		case exec.DobjErr != nil:
			return nil, exec.DobjErr
		case exec.IobjErr != nil:
			return nil, exec.IobjErr
		default:
			return nil, ErrVerbNotFound(cmd.Verb)
		}
	}
	exec.Verb = match.Verb
	exec.This = match.Holder

	if err := d.preAuthorize(v, exec); err != nil {
		return nil, err
	}
	return exec, nil
}

// sources lists where verbs are looked up, in precedence order.
func (d *Dispatcher) sources(v *world.View, exec *Execution) []ulid.ULID {
	var env []ulid.ULID
	seen := map[ulid.ULID]bool{exec.ActorID: true}
	add := func(ids ...ulid.ULID) {
		for _, id := range ids {
			if id != (ulid.ULID{}) && !seen[id] {
				seen[id] = true
				env = append(env, id)
			}
		}
	}
	add(exec.Dobj, exec.Iobj)
	if loc := v.Location(exec.ActorID); loc != (ulid.ULID{}) {
		add(loc)
		add(v.Contents(loc)...)
	}
	add(v.Contents(exec.ActorID)...)

	if d.environmentFirst {
		return append(env, exec.ActorID)
	}
	return append([]ulid.ULID{exec.ActorID}, env...)
}

// offers reports whether m's holder lends the verb to the actor. The actor
// and its room offer every verb they have; any other object only offers
// verbs bound to it through a "this" argument.
func offers(m world.VerbMatch, actorID, room ulid.ULID) bool {
	if m.Holder == actorID || (room != (ulid.ULID{}) && m.Holder == room) {
		return true
	}
	return m.Verb.Dobj == world.ArgThis || m.Verb.Iobj == world.ArgThis
}

// argsFit reports whether the command's arguments match the verb's
// argument specification with m.Holder as "this".
func argsFit(m world.VerbMatch, exec *Execution) bool {
	verb, cmd := m.Verb, exec.Command
	switch verb.Dobj {
	case world.ArgNone:
		if cmd.Dobj != "" {
			return false
		}
	case world.ArgThis:
		if exec.Dobj != m.Holder {
			return false
		}
	}
	if !verb.AcceptsPrep(cmd.Prep) {
		return false
	}
	switch verb.Iobj {
	case world.ArgNone:
		if cmd.Iobj != "" {
			return false
		}
	case world.ArgThis:
		if exec.Iobj != m.Holder {
			return false
		}
	}
	return true
}

// bareExit returns the exit in the actor's room named by a verb-less
// command such as "north".
func (d *Dispatcher) bareExit(v *world.View, r resolver, cmd *ParsedCommand) (ulid.ULID, bool) {
	if cmd.Args != "" {
		return ulid.ULID{}, false
	}
	proto, ok := v.Prototype(ExitPrototype)
	if !ok {
		return ulid.ULID{}, false
	}
	loc := v.Location(r.actor)
	for _, id := range v.Contents(loc) {
		if !v.IsA(id, proto) {
			continue
		}
		if obj, err := v.Get(id); err == nil && obj.MatchesName(cmd.Verb) {
			return id, true
		}
	}
	return ulid.ULID{}, false
}

// preAuthorize rejects the verb before it runs if the actor's level cannot
// perform its action on the direct object, or on the verb's holder when
// there is none. Creation targets the actor, who will own the new object.
// Behaviors still authorize every object they change.
func (d *Dispatcher) preAuthorize(v *world.View, exec *Execution) error {
	target := exec.This
	switch {
	case exec.Verb.Action == access.ActionCreateObject:
		target = exec.ActorID
	case exec.Dobj != (ulid.ULID{}):
		target = exec.Dobj
	}
	return d.services.Policy.Check(v.Actor(exec.ActorID), exec.Verb.Action, v.Target(target))
}

// execute runs the behavior, turning a panic into an error so the world
// change is rolled back and the process keeps running.
func (d *Dispatcher) execute(ctx context.Context, exec *Execution) (err error) {
	behavior, ok := d.registry.Get(exec.Verb.Behavior)
	if !ok {
		return oops.Code(CodeInternal).
			With("verb", exec.Verb.Name).
			With("behavior", exec.Verb.Behavior).
			Errorf("verb %s refers to unknown behavior %s", exec.Verb.Name, exec.Verb.Behavior)
	}
	defer func() {
		if r := recover(); r != nil {
			slog.ErrorContext(ctx, "behavior panicked",
				"verb", exec.Verb.Name,
				"behavior", exec.Verb.Behavior,
				"player_id", exec.ActorID.String(),
				"panic", fmt.Sprint(r),
				"stack", string(debug.Stack()),
			)
			err = oops.Code(CodeInternal).
				With("behavior", exec.Verb.Behavior).
				Errorf("behavior %s panicked: %v", exec.Verb.Behavior, r)
		}
	}()
	return behavior.Handler(ctx, exec)
}

// route delivers the committed command's output.
func (d *Dispatcher) route(sessionID ulid.ULID, exec *Execution) {
	sessions := d.services.Sessions
	if text := strings.TrimRight(exec.Output.String(), "\n"); text != "" {
		sessions.Emit(sessionID, core.Message(text))
	}
	for _, n := range exec.notices {
		if n.room != (ulid.ULID{}) {
			sessions.BroadcastExcludingPlayers(n.room, n.event, n.exclude...)
			continue
		}
		sessions.EmitToPlayer(n.player, n.event)
	}
}

func statusFor(err error) string {
	switch errutil.Code(err) {
	case world.CodeVerbNotFound, world.CodeObjectNotFound, CodeAmbiguousReference, CodeParseError:
		return StatusNotFound
	case access.CodePermissionDenied:
		return StatusPermissionDenied
	case CodeRateLimited:
		return StatusRateLimited
	case CodeInternal:
		return StatusPanic
	default:
		return StatusError
	}
}
