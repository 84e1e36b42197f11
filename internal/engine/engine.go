// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Azimuth Contributors

// Package engine connects transports to the world. Each connection is a
// serial stream of Connected, Line and Disconnected events; lines from an
// unauthenticated session are handled as login commands, the rest go to the
// command dispatcher.
package engine

import (
	"context"
	"strings"
	"sync"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/azimuth-mud/azimuth/internal/access"
	"github.com/azimuth-mud/azimuth/internal/auth"
	"github.com/azimuth-mud/azimuth/internal/command"
	"github.com/azimuth-mud/azimuth/internal/core"
	"github.com/azimuth-mud/azimuth/internal/observability"
	"github.com/azimuth-mud/azimuth/internal/world"
)

// Engine owns the session manager and dispatcher for one world.
type Engine struct {
	graph      *world.Graph
	sessions   *core.SessionManager
	dispatcher *command.Dispatcher
	auth       *Authenticator
	metrics    *observability.Metrics

	policy       *access.Policy
	hasher       auth.PasswordHasher
	failures     *auth.FailureTracker
	dispatchOpts []command.DispatcherOption
	sessionOpts  []core.SessionManagerOption
	registration bool

	closing   chan struct{}
	closeOnce sync.Once
}

// Option configures an Engine.
type Option func(*Engine)

// WithPolicy replaces the default permission policy.
func WithPolicy(p *access.Policy) Option {
	return func(e *Engine) { e.policy = p }
}

// WithHasher replaces the default argon2id hasher.
func WithHasher(h auth.PasswordHasher) Option {
	return func(e *Engine) { e.hasher = h }
}

// WithFailureTracker replaces the login failure tracker.
func WithFailureTracker(t *auth.FailureTracker) Option {
	return func(e *Engine) { e.failures = t }
}

// WithDispatcherOptions passes options through to the command dispatcher.
func WithDispatcherOptions(opts ...command.DispatcherOption) Option {
	return func(e *Engine) { e.dispatchOpts = append(e.dispatchOpts, opts...) }
}

// WithSessionOptions passes options through to the session manager.
func WithSessionOptions(opts ...core.SessionManagerOption) Option {
	return func(e *Engine) { e.sessionOpts = append(e.sessionOpts, opts...) }
}

// WithMetrics records connections and login attempts.
func WithMetrics(m *observability.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithRegistration enables or disables the register command. Enabled by default.
func WithRegistration(on bool) Option {
	return func(e *Engine) { e.registration = on }
}

// New creates an engine over graph running behaviors from registry.
func New(graph *world.Graph, registry *command.Registry, opts ...Option) (*Engine, error) {
	if graph == nil || registry == nil {
		return nil, oops.Code("INVALID_ENGINE").Errorf("graph and registry are required")
	}
	e := &Engine{graph: graph, registration: true, closing: make(chan struct{})}
	for _, opt := range opts {
		opt(e)
	}
	if e.policy == nil {
		e.policy = access.NewPolicy()
	}
	if e.hasher == nil {
		e.hasher = auth.NewArgon2idHasher()
	}

	e.auth = NewAuthenticator(graph, e.hasher, e.failures, e)
	e.sessions = core.NewSessionManager(e.auth, e.sessionOpts...)
	d, err := command.NewDispatcher(graph, registry, e.sessions, e.policy, e.dispatchOpts...)
	if err != nil {
		return nil, err
	}
	e.dispatcher = d
	return e, nil
}

// Sessions returns the session manager.
func (e *Engine) Sessions() *core.SessionManager {
	return e.sessions
}

// Authenticator returns the engine's authenticator.
func (e *Engine) Authenticator() *Authenticator {
	return e.auth
}

// SessionForPlayer implements Presence over the engine's sessions.
func (e *Engine) SessionForPlayer(playerID ulid.ULID) (ulid.ULID, bool) {
	if e.sessions == nil {
		return ulid.ULID{}, false
	}
	return e.sessions.SessionForPlayer(playerID)
}

// Connect handles a Connected event: it creates an unauthenticated session
// and greets it with the message of the day.
func (e *Engine) Connect(handle core.Handle) ulid.ULID {
	sid := e.sessions.OnConnect(handle)
	e.sessions.Emit(sid, core.NewEvent(core.EventTypeSystem, core.SystemActor, e.motd()))
	return sid
}

// HandleLine handles a Line event. It reports whether the session asked to
// quit; the caller then closes the connection and calls Disconnect.
func (e *Engine) HandleLine(ctx context.Context, sessionID ulid.ULID, line string) bool {
	s := e.sessions.GetSession(sessionID)
	if s == nil {
		return true
	}
	e.sessions.Touch(sessionID)
	if !s.Authenticated() {
		return e.preLogin(ctx, sessionID, line)
	}
	if isBlank(line) {
		return false
	}
	res, err := e.dispatcher.Dispatch(ctx, sessionID, s.PlayerID, line)
	if err != nil {
		e.sessions.Emit(sessionID, core.NewEvent(core.EventTypeError, core.SystemActor, command.PlayerMessage(err)))
		return false
	}
	return res.Quit
}

// Disconnect handles a Disconnected event. The player's room is recorded
// as their last location; the player object stays where it is.
func (e *Engine) Disconnect(ctx context.Context, sessionID ulid.ULID) {
	if s := e.sessions.GetSession(sessionID); s != nil && s.Authenticated() {
		e.auth.RecordDeparture(ctx, s.PlayerID)
	}
	e.sessions.OnDisconnect(sessionID)
}

// Shutdown tells every session the server is stopping and ends every
// Serve loop. Each connection is closed once its queued output is written.
func (e *Engine) Shutdown(ctx context.Context) {
	for _, s := range e.sessions.ListActiveSessions() {
		e.sessions.Emit(s.ID, core.NewEvent(core.EventTypeSystem, core.SystemActor, "The server is shutting down."))
		e.auth.RecordDeparture(ctx, s.PlayerID)
	}
	e.closeOnce.Do(func() { close(e.closing) })
}

func (e *Engine) motd() string {
	motd := "Welcome to Azimuth."
	_ = e.graph.View(func(v *world.View) error {
		if text := strings.TrimSpace(v.StringProperty(v.Root(), world.PropMotd)); text != "" {
			motd = text
		}
		return nil
	})
	return motd
}

func (e *Engine) count(kind, status string) {
	if e.metrics != nil {
		e.metrics.AuthAttempts.WithLabelValues(kind, status).Inc()
	}
}
