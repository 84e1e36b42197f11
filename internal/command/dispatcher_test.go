// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Azimuth Contributors

package command

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/oklog/ulid/v2"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/azimuth-mud/azimuth/internal/access"
	"github.com/azimuth-mud/azimuth/internal/core"
	"github.com/azimuth-mud/azimuth/internal/world"
	"github.com/azimuth-mud/azimuth/pkg/errutil"
)

type broadcast struct {
	room    ulid.ULID
	event   core.Event
	exclude []ulid.ULID
}

// recordingSessions captures everything the dispatcher routes.
type recordingSessions struct {
	mu         sync.Mutex
	emitted    []core.Event
	direct     map[ulid.ULID][]core.Event
	broadcasts []broadcast
	moved      map[ulid.ULID]ulid.ULID
}

func newRecordingSessions() *recordingSessions {
	return &recordingSessions{
		direct: make(map[ulid.ULID][]core.Event),
		moved:  make(map[ulid.ULID]ulid.ULID),
	}
}

func (r *recordingSessions) Emit(_ ulid.ULID, event core.Event) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.emitted = append(r.emitted, event)
	return true
}

func (r *recordingSessions) EmitToPlayer(playerID ulid.ULID, event core.Event) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.direct[playerID] = append(r.direct[playerID], event)
	return true
}

func (r *recordingSessions) BroadcastExcludingPlayers(roomID ulid.ULID, event core.Event, players ...ulid.ULID) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.broadcasts = append(r.broadcasts, broadcast{room: roomID, event: event, exclude: players})
	return 1
}

func (r *recordingSessions) PlayerMoved(playerID, roomID ulid.ULID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.moved[playerID] = roomID
}

func (r *recordingSessions) SessionForPlayer(ulid.ULID) (ulid.ULID, bool) { return ulid.ULID{}, false }
func (r *recordingSessions) ListActiveSessions() []*core.Session          { return nil }

func (r *recordingSessions) texts() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.emitted))
	for _, e := range r.emitted {
		out = append(out, e.Text)
	}
	return out
}

// fixture is a small world: a hall with a lamp, a bell and an exit north
// to a garden, plus a player and a wizard standing in the hall.
type fixture struct {
	graph    *world.Graph
	sessions *recordingSessions
	registry *Registry

	hall, garden, north ulid.ULID
	lamp, bell          ulid.ULID
	alice, wizard       ulid.ULID
	session             ulid.ULID
}

func verb(name string, action access.ActionKind, behavior string, dobj world.ArgSpec) *world.Verb {
	return &world.Verb{Name: name, Action: action, Behavior: behavior, Dobj: dobj}
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		graph:    world.New("test"),
		sessions: newRecordingSessions(),
		registry: NewRegistry(),
		session:  ulid.Make(),
	}
	_, err := f.graph.Update(func(tx *world.Tx) error {
		_, err := tx.CreateRoot("The Void")
		require.NoError(t, err)
		exitProto, err := tx.CreateObject(world.NewObject{Name: ExitPrototype})
		require.NoError(t, err)
		f.hall, err = tx.CreateObject(world.NewObject{Name: "Hall"})
		require.NoError(t, err)
		f.garden, err = tx.CreateObject(world.NewObject{Name: "Garden"})
		require.NoError(t, err)
		f.north, err = tx.CreateObject(world.NewObject{
			Name:     "north",
			Aliases:  []string{"n"},
			Parents:  []ulid.ULID{exitProto},
			Location: f.hall,
			Props:    map[string]world.Value{world.PropDestination: world.Ref(f.garden)},
		})
		require.NoError(t, err)
		f.alice, err = tx.CreateObject(world.NewObject{
			Name:     "Alice",
			Player:   true,
			Location: f.hall,
			Verbs: []*world.Verb{
				verb("poke", access.ActionInteract, "t.actor", world.ArgAny),
				verb("glance", access.ActionRead, "t.read", world.ArgNone),
				verb("shout", access.ActionInteract, "t.shout", world.ArgNone),
				verb("smash", access.ActionModifyOwnProperty, "t.fail", world.ArgThis),
				verb("explode", access.ActionModifyOwnProperty, "t.panic", world.ArgNone),
				verb("zap", access.ActionAdmin, "t.noop", world.ArgNone),
				verb("go", access.ActionInteract, "t.go", world.ArgAny),
				verb("broken", access.ActionInteract, "t.unregistered", world.ArgNone),
			},
		})
		require.NoError(t, err)
		f.wizard, err = tx.CreateObject(world.NewObject{
			Name:     "Merlin",
			Player:   true,
			Level:    access.LevelWizard,
			Location: f.hall,
			Verbs:    []*world.Verb{verb("glance", access.ActionRead, "t.read", world.ArgNone)},
		})
		require.NoError(t, err)
		f.lamp, err = tx.CreateObject(world.NewObject{
			Name:     "brass lamp",
			Owner:    f.alice,
			Location: f.hall,
			Props:    map[string]world.Value{"state": world.String("whole")},
			Verbs:    []*world.Verb{verb("smash", access.ActionModifyOwnProperty, "t.fail", world.ArgThis)},
		})
		require.NoError(t, err)
		f.bell, err = tx.CreateObject(world.NewObject{
			Name:     "bell",
			Location: f.hall,
			Verbs:    []*world.Verb{verb("poke", access.ActionInteract, "t.object", world.ArgThis)},
		})
		require.NoError(t, err)
		return nil
	})
	require.NoError(t, err)

	f.registry.MustRegister(
		Behavior{Name: "t.actor", Handler: func(_ context.Context, e *Execution) error {
			e.Output.WriteString("actor verb")
			return nil
		}},
		Behavior{Name: "t.object", Handler: func(_ context.Context, e *Execution) error {
			e.Output.WriteString("object verb")
			return nil
		}},
		Behavior{Name: "t.read", Handler: func(_ context.Context, e *Execution) error {
			if e.Writable() {
				e.Output.WriteString("writable")
			} else {
				e.Output.WriteString("read-only")
			}
			return nil
		}},
		Behavior{Name: "t.shout", Handler: func(_ context.Context, e *Execution) error {
			e.Output.WriteString("You shout.")
			e.Announce(e.Location(), core.EventTypeSay, e.ActorName()+" shouts.", e.ActorID)
			return nil
		}},
		Behavior{Name: "t.fail", Handler: func(_ context.Context, e *Execution) error {
			if err := e.SetProperty(f.lamp, "state", world.String("broken")); err != nil {
				return err
			}
			e.Announce(e.Location(), core.EventTypeEmote, "crash")
			return WorldError("The lamp resists.", nil)
		}},
		Behavior{Name: "t.panic", Handler: func(_ context.Context, e *Execution) error {
			if err := e.SetProperty(f.lamp, "state", world.String("melted")); err != nil {
				return err
			}
			panic("boom")
		}},
		Behavior{Name: "t.noop", Handler: func(context.Context, *Execution) error { return nil }},
		Behavior{Name: "t.go", Handler: func(_ context.Context, e *Execution) error {
			exit, err := e.RequireDobj()
			if err != nil {
				return err
			}
			dest, ok := e.View().RefProperty(exit, world.PropDestination)
			if !ok {
				return WorldError("You can't go that way.", nil)
			}
			return e.Move(access.ActionInteract, e.ActorID, dest)
		}},
	)
	return f
}

func (f *fixture) dispatcher(t *testing.T, opts ...DispatcherOption) *Dispatcher {
	t.Helper()
	d, err := NewDispatcher(f.graph, f.registry, f.sessions, access.NewPolicy(), opts...)
	require.NoError(t, err)
	return d
}

func (f *fixture) lampState(t *testing.T) string {
	t.Helper()
	var state string
	require.NoError(t, f.graph.View(func(v *world.View) error {
		state = v.StringProperty(f.lamp, "state")
		return nil
	}))
	return state
}

func TestNewDispatcher_RequiresCollaborators(t *testing.T) {
	_, err := NewDispatcher(nil, NewRegistry(), newRecordingSessions(), access.NewPolicy())
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "INVALID_DISPATCHER")
}

func TestDispatch_VerbPrecedence(t *testing.T) {
	tests := []struct {
		name             string
		environmentFirst bool
		want             string
	}{
		{name: "actor verbs win by default", want: "actor verb"},
		{name: "environment first", environmentFirst: true, want: "object verb"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			d := f.dispatcher(t, WithEnvironmentFirst(tt.environmentFirst))

			_, err := d.Dispatch(t.Context(), f.session, f.alice, "poke bell")
			require.NoError(t, err)
			assert.Equal(t, []string{tt.want}, f.sessions.texts())
		})
	}
}

func TestDispatch_ReadVerbRunsReadOnly(t *testing.T) {
	f := newFixture(t)
	d := f.dispatcher(t)

	res, err := d.Dispatch(t.Context(), f.session, f.alice, "GLANCE")
	require.NoError(t, err)
	assert.Equal(t, "glance", res.Verb)
	assert.Equal(t, []string{"read-only"}, f.sessions.texts())
}

func TestDispatch_RoutesNoticesAfterCommit(t *testing.T) {
	f := newFixture(t)
	d := f.dispatcher(t)

	_, err := d.Dispatch(t.Context(), f.session, f.alice, "shout")
	require.NoError(t, err)

	assert.Equal(t, []string{"You shout."}, f.sessions.texts())
	require.Len(t, f.sessions.broadcasts, 1)
	b := f.sessions.broadcasts[0]
	assert.Equal(t, f.hall, b.room)
	assert.Equal(t, "Alice shouts.", b.event.Text)
	assert.Equal(t, []ulid.ULID{f.alice}, b.exclude)
}

func TestDispatch_FailedCommandChangesNothing(t *testing.T) {
	f := newFixture(t)
	d := f.dispatcher(t)

	_, err := d.Dispatch(t.Context(), f.session, f.alice, "smash lamp")
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, CodeWorldError)
	assert.Equal(t, "The lamp resists.", PlayerMessage(err))

	assert.Equal(t, "whole", f.lampState(t))
	assert.Empty(t, f.sessions.broadcasts, "notices from a failed command must not be delivered")
	assert.Empty(t, f.sessions.emitted)
}

func TestDispatch_PanicRollsBack(t *testing.T) {
	f := newFixture(t)
	d := f.dispatcher(t)

	_, err := d.Dispatch(t.Context(), f.session, f.alice, "explode")
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, CodeInternal)
	assert.Equal(t, MsgSomethingWrong, PlayerMessage(err))
	assert.Equal(t, "whole", f.lampState(t))

	// The world lock was released.
	_, err = d.Dispatch(t.Context(), f.session, f.alice, "glance")
	require.NoError(t, err)
}

func TestDispatch_Failures(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		wantCode string
		wantMsg  string
	}{
		{name: "unknown verb", input: "dance", wantCode: world.CodeVerbNotFound, wantMsg: MsgNotUnderstood},
		{name: "unknown verb with unseen object", input: "dance unicorn", wantCode: world.CodeObjectNotFound, wantMsg: MsgCantSee},
		{name: "verb does not accept arguments", input: "glance bell", wantCode: world.CodeVerbNotFound},
		{name: "empty input", input: "   ", wantCode: CodeParseError, wantMsg: MsgNotUnderstood},
		{name: "level too low", input: "zap", wantCode: access.CodePermissionDenied, wantMsg: MsgPermissionDenied},
		{name: "unregistered behavior", input: "broken", wantCode: CodeInternal, wantMsg: MsgSomethingWrong},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			d := f.dispatcher(t)

			_, err := d.Dispatch(t.Context(), f.session, f.alice, tt.input)
			require.Error(t, err)
			errutil.AssertErrorCode(t, err, tt.wantCode)
			if tt.wantMsg != "" {
				assert.Equal(t, tt.wantMsg, PlayerMessage(err))
			}
			assert.Equal(t, "whole", f.lampState(t))
		})
	}
}

func TestDispatch_NotLoggedIn(t *testing.T) {
	f := newFixture(t)
	d := f.dispatcher(t)

	_, err := d.Dispatch(t.Context(), f.session, ulid.ULID{}, "glance")
	errutil.AssertErrorCode(t, err, CodeNotLoggedIn)

	_, err = d.Dispatch(t.Context(), f.session, ulid.Make(), "glance")
	errutil.AssertErrorCode(t, err, CodeNotLoggedIn)
}

func TestDispatch_BareExitMovesPlayer(t *testing.T) {
	for _, input := range []string{"north", "n", "go north"} {
		t.Run(input, func(t *testing.T) {
			f := newFixture(t)
			d := f.dispatcher(t)

			_, err := d.Dispatch(t.Context(), f.session, f.alice, input)
			require.NoError(t, err)

			require.NoError(t, f.graph.View(func(v *world.View) error {
				assert.Equal(t, f.garden, v.Location(f.alice))
				return nil
			}))
			assert.Equal(t, f.garden, f.sessions.moved[f.alice])
		})
	}
}

func TestDispatch_RateLimit(t *testing.T) {
	f := newFixture(t)
	rl := NewRateLimiter(RateLimiterConfig{BurstCapacity: 1, SustainedRate: MinSustainedRate})
	t.Cleanup(rl.Close)
	d := f.dispatcher(t, WithRateLimiter(rl))

	_, err := d.Dispatch(t.Context(), f.session, f.alice, "glance")
	require.NoError(t, err)

	before := testutil.ToFloat64(CommandExecutions.WithLabelValues(unknownVerb, StatusRateLimited))
	_, err = d.Dispatch(t.Context(), f.session, f.alice, "glance")
	errutil.AssertErrorCode(t, err, CodeRateLimited)
	assert.Equal(t, MsgRateLimited, PlayerMessage(err))
	assert.InDelta(t, before+1, testutil.ToFloat64(CommandExecutions.WithLabelValues(unknownVerb, StatusRateLimited)), 0.001)

	wizardSession := ulid.Make()
	for range 5 {
		_, err = d.Dispatch(t.Context(), wizardSession, f.wizard, "glance")
		require.NoError(t, err, "wizards are not rate limited")
	}
}

func TestDispatch_AfterCommitAndQuit(t *testing.T) {
	f := newFixture(t)
	var ran bool
	f.registry.MustRegister(Behavior{Name: "t.quit", Handler: func(_ context.Context, e *Execution) error {
		e.AfterCommit(func(context.Context) { ran = true })
		e.Quit()
		return nil
	}})
	_, err := f.graph.Update(func(tx *world.Tx) error {
		return tx.DefineVerb(f.alice, verb("leave", access.ActionRead, "t.quit", world.ArgNone))
	})
	require.NoError(t, err)

	res, err := f.dispatcher(t).Dispatch(t.Context(), f.session, f.alice, "leave")
	require.NoError(t, err)
	assert.True(t, res.Quit)
	assert.True(t, ran)
}

func TestDispatch_RecordsSuccessMetric(t *testing.T) {
	f := newFixture(t)
	d := f.dispatcher(t)

	before := testutil.ToFloat64(CommandExecutions.WithLabelValues("glance", StatusSuccess))
	_, err := d.Dispatch(t.Context(), f.session, f.alice, "glance")
	require.NoError(t, err)
	assert.InDelta(t, before+1, testutil.ToFloat64(CommandExecutions.WithLabelValues("glance", StatusSuccess)), 0.001)
}

func TestExecution_ReadOnlyViewRejectsWrites(t *testing.T) {
	f := newFixture(t)
	f.registry.MustRegister(Behavior{Name: "t.sneaky", Handler: func(_ context.Context, e *Execution) error {
		return e.SetProperty(f.lamp, "state", world.String("stolen"))
	}})
	_, err := f.graph.Update(func(tx *world.Tx) error {
		return tx.DefineVerb(f.alice, verb("sneak", access.ActionRead, "t.sneaky", world.ArgNone))
	})
	require.NoError(t, err)

	_, err = f.dispatcher(t).Dispatch(t.Context(), f.session, f.alice, "sneak")
	require.Error(t, err)
	assert.True(t, errors.Is(err, world.ErrReadOnly))
	assert.Equal(t, "whole", f.lampState(t))
}

func TestDispatch_OnlyActorAndRoomLendOpenVerbs(t *testing.T) {
	f := newFixture(t)
	_, err := f.graph.Update(func(tx *world.Tx) error {
		if err := tx.DefineVerb(f.wizard, verb("boom", access.ActionInteract, "t.actor", world.ArgAny)); err != nil {
			return err
		}
		if err := tx.DefineVerb(f.lamp, verb("shine", access.ActionInteract, "t.actor", world.ArgAny)); err != nil {
			return err
		}
		return tx.DefineVerb(f.hall, verb("ring", access.ActionInteract, "t.actor", world.ArgNone))
	})
	require.NoError(t, err)

	for _, environmentFirst := range []bool{false, true} {
		d := f.dispatcher(t, WithEnvironmentFirst(environmentFirst))

		for _, input := range []string{"boom", "boom me", "shine lamp"} {
			_, err := d.Dispatch(t.Context(), f.session, f.alice, input)
			errutil.AssertErrorCode(t, err, world.CodeVerbNotFound)
		}

		_, err := d.Dispatch(t.Context(), f.session, f.alice, "ring")
		require.NoError(t, err, "the room offers its verbs to occupants")
	}
}

func TestDispatch_CreateIsAuthorizedAgainstTheActor(t *testing.T) {
	f := newFixture(t)
	_, err := f.graph.Update(func(tx *world.Tx) error {
		return tx.DefineVerb(f.alice, verb("make", access.ActionCreateObject, "t.actor", world.ArgAny))
	})
	require.NoError(t, err)
	d := f.dispatcher(t)

	// The bell is not Alice's, but naming it does not make it the target.
	_, err = d.Dispatch(t.Context(), f.session, f.alice, "make bell")
	errutil.AssertErrorCode(t, err, access.CodePermissionDenied)

	_, err = f.graph.Update(func(tx *world.Tx) error {
		return tx.SetLevel(f.alice, access.LevelProgrammer)
	})
	require.NoError(t, err)

	_, err = d.Dispatch(t.Context(), f.session, f.alice, "make bell")
	require.NoError(t, err)
	assert.Contains(t, f.sessions.texts(), "actor verb")
}

func TestDispatch_RacingMovesLeaveSessionInPlayersRoom(t *testing.T) {
	f := newFixture(t)
	f.registry.MustRegister(Behavior{Name: "t.hop", Handler: func(_ context.Context, e *Execution) error {
		dest, err := e.RequireDobj()
		if err != nil {
			return err
		}
		return e.Move(access.ActionInteract, e.ActorID, dest)
	}})
	_, err := f.graph.Update(func(tx *world.Tx) error {
		return tx.DefineVerb(f.alice, verb("hop", access.ActionInteract, "t.hop", world.ArgAny))
	})
	require.NoError(t, err)
	d := f.dispatcher(t)

	var wg sync.WaitGroup
	for _, room := range []ulid.ULID{f.hall, f.garden} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 50 {
				_, _ = d.Dispatch(context.Background(), ulid.Make(), f.alice, "hop #"+room.String())
			}
		}()
	}
	wg.Wait()

	require.NoError(t, f.graph.View(func(v *world.View) error {
		f.sessions.mu.Lock()
		defer f.sessions.mu.Unlock()
		assert.Equal(t, v.Location(f.alice), f.sessions.moved[f.alice])
		return nil
	}))
}
