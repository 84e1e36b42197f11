// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Azimuth Contributors

package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/azimuth-mud/azimuth/internal/access"
	"github.com/azimuth-mud/azimuth/internal/auth"
	"github.com/azimuth-mud/azimuth/internal/core"
	"github.com/azimuth-mud/azimuth/internal/world"
)

// Error codes returned by login and registration.
const (
	CodeInvalidCredentials = "AUTH_INVALID_CREDENTIALS"
	CodeAccountLocked      = "AUTH_ACCOUNT_LOCKED"
	CodeThrottled          = "AUTH_THROTTLED"
	CodeUsernameTaken      = "AUTH_USERNAME_TAKEN"
	CodeInvalidUsername    = "AUTH_INVALID_USERNAME"
	CodeInvalidPassword    = "AUTH_INVALID_PASSWORD"
)

// PlayerPrototype is the parent of newly registered players.
const PlayerPrototype = "$player"

// Presence reports which players are bound to a live session.
type Presence interface {
	SessionForPlayer(playerID ulid.ULID) (ulid.ULID, bool)
}

// Authenticator checks credentials against player objects in the world
// and places the player on login. Failures are throttled per session.
type Authenticator struct {
	graph    *world.Graph
	hasher   auth.PasswordHasher
	failures *auth.FailureTracker
	presence Presence
}

// NewAuthenticator creates an authenticator. presence may be nil, in which
// case duplicate logins are left to the session manager.
func NewAuthenticator(graph *world.Graph, hasher auth.PasswordHasher, failures *auth.FailureTracker, presence Presence) *Authenticator {
	if failures == nil {
		failures = auth.NewFailureTracker()
	}
	return &Authenticator{graph: graph, hasher: hasher, failures: failures, presence: presence}
}

// Authenticate implements core.Authenticator.
func (a *Authenticator) Authenticate(ctx context.Context, sessionID ulid.ULID, creds core.Credentials) (core.Identity, error) {
	key := sessionID.String()
	if ok, wait := a.failures.Check(key); !ok {
		return core.Identity{}, throttled(wait)
	}

	var (
		id    ulid.ULID
		name  string
		hash  string
		found bool
	)
	_ = a.graph.View(func(v *world.View) error {
		id, found = v.FindPlayer(creds.Username)
		if found {
			if obj, err := v.Get(id); err == nil {
				name, hash = obj.Name, obj.PasswordHash
			}
		}
		return nil
	})
	if !found || hash == "" || creds.Password == "" {
		return core.Identity{}, a.fail(ctx, key, creds.Username)
	}
	ok, err := a.hasher.Verify(creds.Password, hash)
	if err != nil {
		slog.ErrorContext(ctx, "stored password hash is unreadable",
			"player_id", id.String(), "error", err)
	}
	if !ok {
		return core.Identity{}, a.fail(ctx, key, creds.Username)
	}
	a.failures.Reset(key)

	if a.presence != nil {
		if _, online := a.presence.SessionForPlayer(id); online {
			return core.Identity{}, oops.Code(core.CodeAlreadyConnected).
				With("player_id", id.String()).
				With("message", name+" is already logged in.").
				Errorf("player %s is already logged in", name)
		}
	}

	room, err := a.place(id)
	if err != nil {
		return core.Identity{}, err
	}
	return core.Identity{PlayerID: id, RoomID: room, Name: name}, nil
}

func (a *Authenticator) fail(ctx context.Context, key, username string) error {
	result := a.failures.RecordFailure(key)
	slog.WarnContext(ctx, "login failed",
		"session_id", key,
		"username", username,
		"locked_out", result.IsLockedOut,
	)
	if result.IsLockedOut {
		return throttled(result.LockoutRemaining)
	}
	return oops.Code(CodeInvalidCredentials).With("username", username).Errorf("username and password do not match")
}

func throttled(wait time.Duration) error {
	code := CodeThrottled
	if wait > time.Minute {
		code = CodeAccountLocked
	}
	return oops.Code(code).With("retry_after", wait.Round(time.Second).String()).
		Errorf("too many failed logins, retry in %s", wait.Round(time.Second))
}

// place leaves a player where they are if that is somewhere, otherwise
// moves them to their last location or the start room. It returns the
// player's room.
func (a *Authenticator) place(id ulid.ULID) (ulid.ULID, error) {
	var room ulid.ULID
	_, err := a.graph.Update(func(tx *world.Tx) error {
		v := &tx.View
		loc := v.Location(id)
		if loc != (ulid.ULID{}) && loc != v.Root() {
			room = loc
			return nil
		}
		dest, ok := v.RefProperty(id, world.PropLastLocation)
		if !ok || !v.Exists(dest) || dest == id || v.Contains(id, dest) {
			dest, ok = v.StartRoom()
		}
		if !ok {
			room = loc
			return nil
		}
		if err := tx.Move(id, dest); err != nil {
			return err
		}
		room = dest
		return nil
	})
	return room, err
}

// Register creates a player-level player in the start room, owned by
// itself.
func (a *Authenticator) Register(ctx context.Context, name, password string) (ulid.ULID, error) {
	if err := world.ValidatePlayerName(name); err != nil {
		return ulid.ULID{}, oops.Code(CodeInvalidUsername).With("username", name).Wrap(err)
	}
	if password == "" {
		return ulid.ULID{}, oops.Code(CodeInvalidPassword).Errorf("password cannot be empty")
	}
	hash, err := a.hasher.Hash(password)
	if err != nil {
		return ulid.ULID{}, oops.Code(CodeInvalidPassword).Wrap(err)
	}

	var id ulid.ULID
	_, err = a.graph.Update(func(tx *world.Tx) error {
		v := &tx.View
		if _, taken := v.FindPlayer(name); taken {
			return oops.Code(CodeUsernameTaken).With("username", name).Errorf("username %s is already taken", name)
		}
		parent := v.Root()
		if proto, ok := v.Prototype(PlayerPrototype); ok {
			parent = proto
		}
		start, _ := v.StartRoom()
		id, err = tx.CreateObject(world.NewObject{
			Name:     name,
			Parents:  []ulid.ULID{parent},
			Location: start,
			Player:   true,
			Level:    access.LevelPlayer,
		})
		if err != nil {
			return err
		}
		return tx.SetPasswordHash(id, hash)
	})
	if err != nil {
		return ulid.ULID{}, err
	}
	slog.InfoContext(ctx, "player registered", "player_id", id.String(), "username", name)
	return id, nil
}

// RecordDeparture stores the player's room as their last location.
func (a *Authenticator) RecordDeparture(ctx context.Context, playerID ulid.ULID) {
	_, err := a.graph.Update(func(tx *world.Tx) error {
		v := &tx.View
		if !v.Exists(playerID) {
			return nil
		}
		loc := v.Location(playerID)
		if loc == (ulid.ULID{}) || loc == v.Root() {
			return nil
		}
		return tx.SetProperty(playerID, world.PropLastLocation, world.Ref(loc))
	})
	if err != nil {
		slog.WarnContext(ctx, "failed to record last location",
			"player_id", playerID.String(), "error", err)
	}
}
