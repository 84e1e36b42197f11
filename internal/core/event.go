// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Azimuth Contributors

// Package core contains the session layer: live sessions, room membership,
// and the output events delivered to connected clients.
package core

import (
	"time"

	"github.com/oklog/ulid/v2"
)

// EventType identifies the kind of output event.
type EventType string

const (
	EventTypeMessage EventType = "message"
	EventTypeSay     EventType = "say"
	EventTypeEmote   EventType = "emote"
	EventTypeArrive  EventType = "arrive"
	EventTypeLeave   EventType = "leave"
	EventTypeSystem  EventType = "system"
	EventTypeError   EventType = "error"
)

// ActorKind identifies what type of entity caused an event.
type ActorKind uint8

const (
	ActorPlayer ActorKind = iota
	ActorSystem
)

func (a ActorKind) String() string {
	switch a {
	case ActorPlayer:
		return "player"
	case ActorSystem:
		return "system"
	default:
		return "unknown"
	}
}

// Actor represents who caused an event.
type Actor struct {
	Kind ActorKind
	ID   ulid.ULID // zero for system events
}

// SystemActor is the actor for events the server originates.
var SystemActor = Actor{Kind: ActorSystem}

// Event is one unit of output addressed to a session.
type Event struct {
	ID        ulid.ULID
	Type      EventType
	Room      ulid.ULID // zero unless the event was broadcast to a room
	Actor     Actor
	Text      string
	Timestamp time.Time
}

// NewEvent creates an event with a fresh ID and timestamp.
func NewEvent(typ EventType, actor Actor, text string) Event {
	return Event{
		ID:        NewULID(),
		Type:      typ,
		Actor:     actor,
		Text:      text,
		Timestamp: time.Now(),
	}
}

// Message creates a plain system message event.
func Message(text string) Event {
	return NewEvent(EventTypeMessage, SystemActor, text)
}
