// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Azimuth Contributors

package engine

import (
	"context"
	"strings"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/azimuth-mud/azimuth/internal/command"
	"github.com/azimuth-mud/azimuth/internal/core"
	"github.com/azimuth-mud/azimuth/internal/world"
	"github.com/azimuth-mud/azimuth/pkg/errutil"
)

const loginHelp = `Commands before you log in:
  connect <name> <password>   log in (also: login)
  register <name> <password>  create a new player (also: create)
  quit                        disconnect`

func isBlank(line string) bool {
	return strings.TrimSpace(line) == ""
}

// preLogin handles a line from an unauthenticated session.
func (e *Engine) preLogin(ctx context.Context, sid ulid.ULID, line string) bool {
	if isBlank(line) {
		return false
	}
	verb, args, _ := strings.Cut(strings.TrimSpace(line), " ")
	switch strings.ToLower(verb) {
	case "connect", "login":
		name, password, ok := credentials(args)
		if !ok {
			e.tell(sid, "Login requires both username and password.")
			return false
		}
		e.login(ctx, sid, name, password)
	case "register", "create":
		name, password, ok := credentials(args)
		if !ok {
			e.tell(sid, "Registration requires both username and password, please try again.")
			return false
		}
		e.register(ctx, sid, name, password)
	case "quit", "@quit", "disconnect":
		e.tell(sid, "Goodbye!")
		return true
	case "help", "?":
		e.tell(sid, loginHelp)
	default:
		e.tell(sid, "You are not logged in. Type help for the login commands.")
	}
	return false
}

// credentials splits "<name> <password>". The password may contain spaces.
func credentials(args string) (string, string, bool) {
	name, password, _ := strings.Cut(strings.TrimSpace(args), " ")
	password = strings.TrimSpace(password)
	if name == "" || password == "" {
		return "", "", false
	}
	return name, password, true
}

func (e *Engine) login(ctx context.Context, sid ulid.ULID, name, password string) {
	playerID, err := e.sessions.Authenticate(ctx, sid, core.Credentials{Username: name, Password: password})
	if err != nil {
		e.count("login", "failure")
		e.tell(sid, loginMessage(err))
		return
	}
	e.count("login", "success")
	e.syncRoom(playerID)
	s := e.sessions.GetSession(sid)
	if s == nil {
		return
	}
	e.sessions.Emit(sid, core.Message("Welcome back, "+s.PlayerName+"!"))
	if _, err := e.dispatcher.Dispatch(ctx, sid, playerID, "look"); err != nil {
		errutil.LogError(ctx, nil, "initial look failed", err, "player_id", playerID.String())
	}
}

// syncRoom subscribes the player's session to the room the player is in
// now. A move committed while the login was binding the session is only
// visible here.
func (e *Engine) syncRoom(playerID ulid.ULID) {
	_ = e.graph.View(func(v *world.View) error {
		e.sessions.PlayerMoved(playerID, v.Location(playerID))
		return nil
	})
}

func (e *Engine) register(ctx context.Context, sid ulid.ULID, name, password string) {
	if !e.registration {
		e.tell(sid, "Registration is currently disabled.")
		return
	}
	if _, err := e.auth.Register(ctx, name, password); err != nil {
		e.count("register", "failure")
		e.tell(sid, registerMessage(name, err))
		return
	}
	e.count("register", "success")
	e.tell(sid, "Registration successful!")
	e.login(ctx, sid, name, password)
}

func (e *Engine) tell(sid ulid.ULID, text string) {
	e.sessions.Emit(sid, core.NewEvent(core.EventTypeSystem, core.SystemActor, text))
}

func loginMessage(err error) string {
	switch errutil.Code(err) {
	case CodeInvalidCredentials:
		return "Username and password do not match."
	case CodeThrottled:
		return "Too many failed attempts. Please wait " + retryAfter(err) + " and try again."
	case CodeAccountLocked:
		return "Too many failed attempts. Try again in " + retryAfter(err) + "."
	case core.CodeAlreadyConnected:
		if o, ok := oops.AsOops(err); ok {
			if msg, ok := o.Context()["message"].(string); ok {
				return msg
			}
		}
		return "That player is already logged in."
	case core.CodeAlreadyAuthenticated:
		return "You are already logged in."
	default:
		errutil.LogError(context.Background(), nil, "login failed", err)
		return "Login failed. Please try again."
	}
}

func registerMessage(name string, err error) string {
	switch errutil.Code(err) {
	case CodeUsernameTaken:
		return "Username '" + name + "' is already taken, please try another username."
	case CodeInvalidUsername:
		return "Username '" + name + "' is invalid, please try again."
	case CodeInvalidPassword:
		return "Registration requires both username and password, please try again."
	default:
		errutil.LogError(context.Background(), nil, "registration failed", err)
		return command.PlayerMessage(err)
	}
}

func retryAfter(err error) string {
	if o, ok := oops.AsOops(err); ok {
		if wait, ok := o.Context()["retry_after"].(string); ok {
			return wait
		}
	}
	return "a while"
}
