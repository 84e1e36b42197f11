// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Azimuth Contributors

package engine_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/azimuth-mud/azimuth/internal/access"
	"github.com/azimuth-mud/azimuth/internal/auth"
	"github.com/azimuth-mud/azimuth/internal/command"
	"github.com/azimuth-mud/azimuth/internal/core"
	"github.com/azimuth-mud/azimuth/internal/engine"
	"github.com/azimuth-mud/azimuth/internal/observability"
	"github.com/azimuth-mud/azimuth/internal/world"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestNew_RequiresGraphAndRegistry(t *testing.T) {
	_, err := engine.New(nil, command.NewRegistry())
	require.Error(t, err)
	_, err = engine.New(world.New("W"), nil)
	require.Error(t, err)
}

func TestConnect_ShowsMotd(t *testing.T) {
	f := newFixture(t)
	sid := f.engine.Connect(nil)
	out, ok := f.engine.Sessions().Outbox(sid)
	require.True(t, ok)

	ev := <-out
	assert.Equal(t, core.EventTypeSystem, ev.Type)
	assert.True(t, strings.HasPrefix(ev.Text, "Welcome to Azimuth."))
	assert.Contains(t, ev.Text, "login <name> <password>")
}

func TestLogin_Succeeds(t *testing.T) {
	f := newFixture(t)
	c := f.connect(t)

	out := c.send("connect wizard wizard")
	assert.Contains(t, out, "Welcome back, wizard!")
	assert.Contains(t, out, "The Starting Chamber")
	assert.Contains(t, out, "rusty sword")

	s := f.engine.Sessions().GetSession(c.sid)
	require.NotNil(t, s)
	assert.True(t, s.Authenticated())
	assert.Equal(t, f.seeded.Owner, s.PlayerID)
}

func TestLogin_NameIsCaseInsensitive(t *testing.T) {
	f := newFixture(t)
	c := f.connect(t)
	assert.Contains(t, c.send("login WIZARD wizard"), "Welcome back, wizard!")
}

func TestLogin_BroadcastsArrival(t *testing.T) {
	f := newFixture(t)
	_, err := f.engine.Authenticator().Register(context.Background(), "alice", "secret")
	require.NoError(t, err)

	wiz := f.connect(t)
	wiz.login(t, "wizard", "wizard")
	alice := f.connect(t)
	alice.login(t, "alice", "secret")

	assert.Contains(t, wiz.drain(), "alice has arrived.")
}

func TestLogin_Failures(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"wrong password", "connect wizard nope", "Username and password do not match."},
		{"unknown player", "connect nobody secret", "Username and password do not match."},
		{"missing password", "connect wizard", "Login requires both username and password."},
		{"missing everything", "login", "Login requires both username and password."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			c := f.connect(t)
			assert.Contains(t, c.send(tt.input), tt.want)
			assert.False(t, f.engine.Sessions().GetSession(c.sid).Authenticated())
		})
	}
}

func TestLogin_Throttled(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	tracker := auth.NewFailureTracker().WithClock(func() time.Time { return now })
	f := newFixture(t, engine.WithFailureTracker(tracker))
	c := f.connect(t)

	assert.Contains(t, c.send("connect wizard nope"), "Username and password do not match.")
	assert.Contains(t, c.send("connect wizard wizard"), "Too many failed attempts. Please wait 1s and try again.")

	now = now.Add(2 * time.Second)
	assert.Contains(t, c.send("connect wizard wizard"), "Welcome back, wizard!")
}

func TestLogin_LocksOut(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	tracker := auth.NewFailureTracker().WithClock(func() time.Time { return now })
	f := newFixture(t, engine.WithFailureTracker(tracker))
	c := f.connect(t)

	var out string
	for range auth.LockoutThreshold {
		out = c.send("connect wizard nope")
		now = now.Add(time.Minute)
	}
	assert.Contains(t, out, "Too many failed attempts. Try again in 15m0s.")
	assert.Contains(t, c.send("connect wizard wizard"), "Too many failed attempts.")

	now = now.Add(auth.LockoutDuration)
	assert.Contains(t, c.send("connect wizard wizard"), "Welcome back, wizard!")
}

func TestLogin_AlreadyLoggedIn(t *testing.T) {
	f := newFixture(t)
	c := f.connect(t)
	c.login(t, "wizard", "wizard")

	// Once authenticated, "connect" is an ordinary command.
	assert.Contains(t, c.send("connect wizard wizard"), command.MsgNotUnderstood)

	other := f.connect(t)
	assert.Contains(t, other.send("connect wizard wizard"), "wizard is already logged in.")
	assert.False(t, f.engine.Sessions().GetSession(other.sid).Authenticated())
}

func TestRegister(t *testing.T) {
	f := newFixture(t)
	c := f.connect(t)

	out := c.send("register alice open sesame")
	assert.Contains(t, out, "Registration successful!")
	assert.Contains(t, out, "Welcome back, alice!")
	assert.Contains(t, out, "The Starting Chamber")

	s := f.engine.Sessions().GetSession(c.sid)
	require.NotNil(t, s)
	err := f.graph.View(func(v *world.View) error {
		assert.True(t, v.IsPlayer(s.PlayerID))
		assert.Equal(t, s.PlayerID, v.Owner(s.PlayerID))
		start, _ := v.StartRoom()
		assert.Equal(t, start, v.Location(s.PlayerID))
		proto, ok := v.Prototype("$player")
		require.True(t, ok)
		assert.True(t, v.IsA(s.PlayerID, proto))
		return nil
	})
	require.NoError(t, err)

	again := f.connect(t)
	assert.Contains(t, again.send("connect alice open sesame"), "alice is already logged in.")
}

func TestRegister_Rejections(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"taken", "register wizard other", "Username 'wizard' is already taken, please try another username."},
		{"taken ignoring case", "create Wizard other", "Username 'Wizard' is already taken"},
		{"reserved", "register me secret", "Username 'me' is invalid, please try again."},
		{"no password", "register bob", "Registration requires both username and password, please try again."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			c := f.connect(t)
			assert.Contains(t, c.send(tt.input), tt.want)
			assert.False(t, f.engine.Sessions().GetSession(c.sid).Authenticated())
		})
	}
}

func TestRegister_Disabled(t *testing.T) {
	f := newFixture(t, engine.WithRegistration(false))
	c := f.connect(t)
	assert.Contains(t, c.send("register alice secret"), "Registration is currently disabled.")
}

func TestPreLogin(t *testing.T) {
	f := newFixture(t)
	c := f.connect(t)

	assert.Empty(t, c.send("   "))
	assert.Contains(t, c.send("look"), "You are not logged in.")
	assert.Contains(t, c.send("help"), "connect <name> <password>")
	assert.Contains(t, c.send("?"), "register <name> <password>")

	assert.True(t, f.engine.HandleLine(context.Background(), c.sid, "quit"))
	assert.Contains(t, c.drain(), "Goodbye!")
}

func TestHandleLine_UnknownSession(t *testing.T) {
	f := newFixture(t)
	assert.True(t, f.engine.HandleLine(context.Background(), core.NewULID(), "look"))
}

func TestHandleLine_ReportsErrors(t *testing.T) {
	f := newFixture(t)
	c := f.connect(t)
	c.login(t, "wizard", "wizard")

	assert.Equal(t, command.MsgNotUnderstood, strings.TrimSpace(c.send("frob")))
	assert.Equal(t, command.MsgCantSee, strings.TrimSpace(c.send("take unicorn")))
	assert.Empty(t, c.send(""))
}

func TestDisconnect_RecordsLastLocation(t *testing.T) {
	f := newFixture(t)
	hallway := f.find(t, "Narrow Hallway")

	c := f.connect(t)
	c.login(t, "wizard", "wizard")
	assert.Contains(t, c.send("north"), "Narrow Hallway")
	f.engine.Disconnect(context.Background(), c.sid)

	assert.Nil(t, f.engine.Sessions().GetSession(c.sid))
	wizard := f.seeded.Owner
	assert.Equal(t, hallway, f.location(wizard), "the player object stays put")
	err := f.graph.View(func(v *world.View) error {
		last, ok := v.RefProperty(wizard, world.PropLastLocation)
		assert.True(t, ok)
		assert.Equal(t, hallway, last)
		return nil
	})
	require.NoError(t, err)

	// A player parked at the root goes back to where they left.
	_, err = f.graph.Update(func(tx *world.Tx) error {
		return tx.Move(wizard, tx.Root())
	})
	require.NoError(t, err)

	again := f.connect(t)
	assert.Contains(t, again.login(t, "wizard", "wizard"), "Narrow Hallway")
	assert.Equal(t, hallway, f.location(wizard))
}

func TestDisconnect_TellsRoom(t *testing.T) {
	f := newFixture(t)
	_, err := f.engine.Authenticator().Register(context.Background(), "alice", "secret")
	require.NoError(t, err)

	wiz := f.connect(t)
	wiz.login(t, "wizard", "wizard")
	alice := f.connect(t)
	alice.login(t, "alice", "secret")
	wiz.drain()

	f.engine.Disconnect(context.Background(), alice.sid)
	assert.Contains(t, wiz.drain(), "alice has disconnected.")
}

func TestWizardVerbsAreNotLentToOccupants(t *testing.T) {
	f := newFixture(t)
	chamber := f.find(t, "The Starting Chamber")
	cave := f.find(t, "Glittering Cave")
	_, err := f.graph.Update(func(tx *world.Tx) error {
		return tx.Move(f.seeded.Owner, chamber)
	})
	require.NoError(t, err)

	c := f.connect(t)
	c.send("register bob secret123")
	bob := f.engine.Sessions().GetSession(c.sid).PlayerID
	require.Equal(t, chamber, f.location(bob))

	assert.NotContains(t, c.send("@teleport me to Glittering Cave"), "sparkling")
	for _, input := range []string{"@tel me to wizard", "@level me to wizard"} {
		assert.Equal(t, command.MsgNotUnderstood, strings.TrimSpace(c.send(input)), input)
	}
	assert.Equal(t, chamber, f.location(bob))
	assert.NotEqual(t, cave, f.location(bob))
	require.NoError(t, f.graph.View(func(v *world.View) error {
		assert.Equal(t, access.LevelPlayer, v.Level(bob))
		return nil
	}))
}

func TestProgrammerCreatesOverSameNamedObject(t *testing.T) {
	f := newFixture(t)
	wiz := f.connect(t)
	wiz.login(t, "wizard", "wizard")
	_, err := f.engine.Authenticator().Register(context.Background(), "carol", "secret")
	require.NoError(t, err)
	assert.NotContains(t, wiz.send("@level carol to programmer"), command.MsgPermissionDenied)

	carol := f.connect(t)
	carol.login(t, "carol", "secret")
	// The starting chamber holds the wizard's "rusty sword".
	assert.Contains(t, carol.send("@create sword"), "Created sword")
	assert.Contains(t, carol.send("inventory"), "sword")
}

func TestShutdown(t *testing.T) {
	f := newFixture(t)
	c := f.connect(t)
	c.login(t, "wizard", "wizard")

	f.engine.Shutdown(context.Background())
	assert.Contains(t, c.drain(), "The server is shutting down.")
}

func TestMetrics(t *testing.T) {
	m := observability.NewMetrics(prometheus.NewRegistry())
	f := newFixture(t, engine.WithMetrics(m))
	c := f.connect(t)

	c.send("connect wizard nope")
	other := f.connect(t)
	other.login(t, "wizard", "wizard")
	fresh := f.connect(t)
	fresh.send("register alice secret")

	assert.InDelta(t, 1, testutil.ToFloat64(m.AuthAttempts.WithLabelValues("login", "failure")), 0)
	assert.InDelta(t, 2, testutil.ToFloat64(m.AuthAttempts.WithLabelValues("login", "success")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.AuthAttempts.WithLabelValues("register", "success")), 0)
}

// readUntil collects output from conn until an event contains want.
func readUntil(t *testing.T, conn *pipeConn, want string) string {
	t.Helper()
	var seen []string
	timeout := time.After(5 * time.Second)
	for {
		select {
		case ev := <-conn.out:
			seen = append(seen, ev.Text)
			if strings.Contains(ev.Text, want) {
				return strings.Join(seen, "\n")
			}
		case <-timeout:
			t.Fatalf("timed out waiting for %q; saw %q", want, seen)
			return ""
		}
	}
}

func TestServe_RunsUntilQuit(t *testing.T) {
	m := observability.NewMetrics(prometheus.NewRegistry())
	f := newFixture(t, engine.WithMetrics(m))
	conn := newPipeConn()

	done := make(chan struct{})
	go func() {
		defer close(done)
		f.engine.Serve(context.Background(), conn, "test")
	}()

	readUntil(t, conn, "Welcome to Azimuth.")
	conn.in <- "connect wizard wizard"
	readUntil(t, conn, "The Starting Chamber")
	conn.in <- "say hello"
	readUntil(t, conn, `You say, "hello"`)
	conn.in <- "@quit"

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after quit")
	}
	assert.Equal(t, 0, f.engine.Sessions().Count())
	assert.InDelta(t, 1, testutil.ToFloat64(m.ConnectionsTotal.WithLabelValues("test")), 0)
	_, online := f.engine.SessionForPlayer(f.seeded.Owner)
	assert.False(t, online)
}

func TestServe_StopsOnCancel(t *testing.T) {
	f := newFixture(t)
	conn := newPipeConn()
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		defer close(done)
		f.engine.Serve(ctx, conn, "test")
	}()
	readUntil(t, conn, "Welcome to Azimuth.")
	cancel()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
	assert.Equal(t, 0, f.engine.Sessions().Count())
}

func TestServe_StopsOnClose(t *testing.T) {
	f := newFixture(t)
	conn := newPipeConn()

	done := make(chan struct{})
	go func() {
		defer close(done)
		f.engine.Serve(context.Background(), conn, "test")
	}()
	readUntil(t, conn, "Welcome to Azimuth.")
	require.NoError(t, conn.Close())

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after the connection closed")
	}
	assert.Equal(t, 0, f.engine.Sessions().Count())
}

func TestServe_StopsOnShutdown(t *testing.T) {
	f := newFixture(t)
	conn := newPipeConn()

	done := make(chan struct{})
	go func() {
		defer close(done)
		f.engine.Serve(context.Background(), conn, "test")
	}()
	readUntil(t, conn, "Welcome to Azimuth.")
	conn.in <- "connect wizard wizard"
	readUntil(t, conn, "Welcome back, wizard!")

	f.engine.Shutdown(context.Background())

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after shutdown")
	}
	// Queued output is written before the connection closes.
	readUntil(t, conn, "The server is shutting down.")
	assert.Equal(t, 0, f.engine.Sessions().Count())
}
