// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Azimuth Contributors

package core

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/samber/oops"
)

// Error codes for session lifecycle failures.
const (
	CodeSessionNotFound      = "SESSION_NOT_FOUND"
	CodeAlreadyAuthenticated = "ALREADY_AUTHENTICATED"
	CodeAlreadyConnected     = "ALREADY_CONNECTED"
	CodeNotAuthenticated     = "NOT_AUTHENTICATED"
)

// DefaultOutboxSize is the number of undelivered events a session buffers
// before further events are dropped.
const DefaultOutboxSize = 256

// Handle is the transport's view of one live connection.
type Handle interface {
	// Close terminates the underlying connection.
	Close() error
	// RemoteAddr describes the peer for logs and @who.
	RemoteAddr() string
}

// Credentials are the login arguments supplied by a client.
type Credentials struct {
	Username string
	Password string
}

// Identity is the result of a successful authentication.
type Identity struct {
	PlayerID ulid.ULID
	RoomID   ulid.ULID // zero if the player is nowhere
	Name     string
}

// Authenticator verifies credentials against the world.
type Authenticator interface {
	Authenticate(ctx context.Context, sessionID ulid.ULID, creds Credentials) (Identity, error)
}

// Session is a live connection, optionally bound to a player object.
type Session struct {
	ID           ulid.ULID
	PlayerID     ulid.ULID // zero until authenticated
	PlayerName   string
	RoomID       ulid.ULID // zero when not subscribed to a room
	RemoteAddr   string
	ConnectedAt  time.Time
	LastActivity time.Time

	handle Handle
	outbox chan Event
}

// Authenticated reports whether the session is bound to a player.
func (s *Session) Authenticated() bool {
	return !IsZero(s.PlayerID)
}

// copySession returns a copy without the live channel or handle.
func copySession(s *Session) *Session {
	return &Session{
		ID:           s.ID,
		PlayerID:     s.PlayerID,
		PlayerName:   s.PlayerName,
		RoomID:       s.RoomID,
		RemoteAddr:   s.RemoteAddr,
		ConnectedAt:  s.ConnectedAt,
		LastActivity: s.LastActivity,
	}
}

// SessionManager binds connections to player objects and routes output.
// All membership changes and deliveries happen under mu, so a session that
// leaves a room is never handed an event broadcast after it left.
type SessionManager struct {
	mu         sync.RWMutex
	sessions   map[ulid.ULID]*Session
	byPlayer   map[ulid.ULID]ulid.ULID              // player ID -> session ID
	rooms      map[ulid.ULID]map[ulid.ULID]struct{} // room ID -> session IDs
	auth       Authenticator
	outboxSize int

	activeGauge prometheus.Gauge
	dropped     prometheus.Counter
}

// SessionManagerOption configures a SessionManager.
type SessionManagerOption func(*SessionManager)

// WithOutboxSize overrides DefaultOutboxSize.
func WithOutboxSize(n int) SessionManagerOption {
	return func(sm *SessionManager) {
		if n > 0 {
			sm.outboxSize = n
		}
	}
}

// WithSessionMetrics registers session gauges with reg.
func WithSessionMetrics(reg prometheus.Registerer) SessionManagerOption {
	return func(sm *SessionManager) {
		sm.activeGauge = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "azimuth_sessions_active",
			Help: "Current number of live sessions",
		})
		sm.dropped = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "azimuth_session_events_dropped_total",
			Help: "Events dropped because a session outbox was full",
		})
		reg.MustRegister(sm.activeGauge, sm.dropped)
	}
}

// NewSessionManager creates a session manager that authenticates logins with auth.
func NewSessionManager(auth Authenticator, opts ...SessionManagerOption) *SessionManager {
	sm := &SessionManager{
		sessions:   make(map[ulid.ULID]*Session),
		byPlayer:   make(map[ulid.ULID]ulid.ULID),
		rooms:      make(map[ulid.ULID]map[ulid.ULID]struct{}),
		auth:       auth,
		outboxSize: DefaultOutboxSize,
	}
	for _, opt := range opts {
		opt(sm)
	}
	return sm
}

// OnConnect creates an unauthenticated session for a new connection.
func (sm *SessionManager) OnConnect(handle Handle) ulid.ULID {
	now := time.Now()
	s := &Session{
		ID:           NewULID(),
		ConnectedAt:  now,
		LastActivity: now,
		handle:       handle,
		outbox:       make(chan Event, sm.outboxSize),
	}
	if handle != nil {
		s.RemoteAddr = handle.RemoteAddr()
	}

	sm.mu.Lock()
	sm.sessions[s.ID] = s
	sm.updateGauge()
	sm.mu.Unlock()

	slog.Debug("session created", "session_id", s.ID.String(), "remote_addr", s.RemoteAddr)
	return s.ID
}

// Outbox returns the channel a transport drains to deliver events.
// The channel is closed when the session is destroyed.
func (sm *SessionManager) Outbox(sessionID ulid.ULID) (<-chan Event, bool) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	s, ok := sm.sessions[sessionID]
	if !ok {
		return nil, false
	}
	return s.outbox, true
}

// Authenticate verifies credentials and binds the session to the player.
// On success the session joins the player's room and the other occupants
// receive an arrival notice.
func (sm *SessionManager) Authenticate(ctx context.Context, sessionID ulid.ULID, creds Credentials) (ulid.ULID, error) {
	sm.mu.RLock()
	s, ok := sm.sessions[sessionID]
	authed := ok && s.Authenticated()
	sm.mu.RUnlock()
	if !ok {
		return ulid.ULID{}, errSessionNotFound(sessionID)
	}
	if authed {
		return ulid.ULID{}, oops.Code(CodeAlreadyAuthenticated).
			With("session_id", sessionID.String()).
			Errorf("session is already logged in")
	}

	identity, err := sm.auth.Authenticate(ctx, sessionID, creds)
	if err != nil {
		return ulid.ULID{}, err
	}

	sm.mu.Lock()
	s, ok = sm.sessions[sessionID]
	if !ok {
		sm.mu.Unlock()
		return ulid.ULID{}, errSessionNotFound(sessionID)
	}
	if other, exists := sm.byPlayer[identity.PlayerID]; exists && other != sessionID {
		sm.mu.Unlock()
		return ulid.ULID{}, oops.Code(CodeAlreadyConnected).
			With("player_id", identity.PlayerID.String()).
			With("message", identity.Name+" is already logged in.").
			Errorf("player %s is already logged in", identity.Name)
	}
	s.PlayerID = identity.PlayerID
	s.PlayerName = identity.Name
	s.LastActivity = time.Now()
	sm.byPlayer[identity.PlayerID] = sessionID
	if !IsZero(identity.RoomID) {
		sm.subscribeLocked(s, identity.RoomID)
	}
	sm.mu.Unlock()

	slog.InfoContext(ctx, "session authenticated",
		"session_id", sessionID.String(),
		"player_id", identity.PlayerID.String(),
		"room_id", identity.RoomID.String(),
	)

	if !IsZero(identity.RoomID) {
		arrival := NewEvent(EventTypeArrive, Actor{Kind: ActorPlayer, ID: identity.PlayerID},
			identity.Name+" has arrived.")
		sm.Broadcast(identity.RoomID, arrival, sessionID)
	}
	return identity.PlayerID, nil
}

// OnDisconnect unsubscribes the session from its room, tells the remaining
// occupants, and destroys the session. The player object is untouched.
func (sm *SessionManager) OnDisconnect(sessionID ulid.ULID) {
	sm.mu.Lock()
	s, ok := sm.sessions[sessionID]
	if !ok {
		sm.mu.Unlock()
		slog.Debug("disconnect called for non-existent session", "session_id", sessionID.String())
		return
	}
	room := s.RoomID
	sm.unsubscribeLocked(s)
	delete(sm.sessions, sessionID)
	if s.Authenticated() && sm.byPlayer[s.PlayerID] == sessionID {
		delete(sm.byPlayer, s.PlayerID)
	}
	close(s.outbox)
	sm.updateGauge()
	sm.mu.Unlock()

	slog.Info("session destroyed",
		"session_id", sessionID.String(),
		"player_id", s.PlayerID.String(),
	)

	if s.Authenticated() && !IsZero(room) {
		departure := NewEvent(EventTypeLeave, Actor{Kind: ActorPlayer, ID: s.PlayerID},
			s.PlayerName+" has disconnected.")
		sm.Broadcast(room, departure)
	}
}

// Kick closes the session's connection. The transport observes the close
// and reports the disconnect through OnDisconnect.
func (sm *SessionManager) Kick(sessionID ulid.ULID) error {
	sm.mu.RLock()
	s, ok := sm.sessions[sessionID]
	sm.mu.RUnlock()
	if !ok {
		return errSessionNotFound(sessionID)
	}
	if s.handle == nil {
		return nil
	}
	if err := s.handle.Close(); err != nil {
		return oops.Code("SESSION_CLOSE_FAILED").With("session_id", sessionID.String()).Wrap(err)
	}
	return nil
}

// Emit delivers one event to exactly one session. It never blocks: if the
// session's outbox is full the event is dropped. Returns whether the event
// was queued.
func (sm *SessionManager) Emit(sessionID ulid.ULID, event Event) bool {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	s, ok := sm.sessions[sessionID]
	if !ok {
		return false
	}
	return sm.deliverLocked(s, event)
}

// EmitToPlayer delivers an event to the session bound to playerID, if any.
func (sm *SessionManager) EmitToPlayer(playerID ulid.ULID, event Event) bool {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	sid, ok := sm.byPlayer[playerID]
	if !ok {
		return false
	}
	return sm.deliverLocked(sm.sessions[sid], event)
}

// deliverLocked must be called with mu held (read or write).
func (sm *SessionManager) deliverLocked(s *Session, event Event) bool {
	select {
	case s.outbox <- event:
		return true
	default:
		slog.Warn("event dropped: session outbox full",
			"session_id", s.ID.String(),
			"event_id", event.ID.String(),
			"event_type", event.Type,
		)
		if sm.dropped != nil {
			sm.dropped.Inc()
		}
		return false
	}
}

// Touch refreshes the session's last activity time.
func (sm *SessionManager) Touch(sessionID ulid.ULID) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	if s, ok := sm.sessions[sessionID]; ok {
		s.LastActivity = time.Now()
	}
}

// GetSession returns a copy of the session, or nil if none exists.
func (sm *SessionManager) GetSession(sessionID ulid.ULID) *Session {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	s, ok := sm.sessions[sessionID]
	if !ok {
		return nil
	}
	return copySession(s)
}

// SessionForPlayer returns the session bound to playerID.
func (sm *SessionManager) SessionForPlayer(playerID ulid.ULID) (ulid.ULID, bool) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	sid, ok := sm.byPlayer[playerID]
	return sid, ok
}

// ListActiveSessions returns copies of all authenticated sessions.
func (sm *SessionManager) ListActiveSessions() []*Session {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	result := make([]*Session, 0, len(sm.byPlayer))
	for _, s := range sm.sessions {
		if s.Authenticated() {
			result = append(result, copySession(s))
		}
	}
	return result
}

// Count returns the number of live sessions, authenticated or not.
func (sm *SessionManager) Count() int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return len(sm.sessions)
}

func (sm *SessionManager) updateGauge() {
	if sm.activeGauge != nil {
		sm.activeGauge.Set(float64(len(sm.sessions)))
	}
}

func errSessionNotFound(sessionID ulid.ULID) error {
	return oops.Code(CodeSessionNotFound).
		With("session_id", sessionID.String()).
		Errorf("session not found")
}
