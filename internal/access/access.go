// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Azimuth Contributors

// Package access implements the three-tier permission model.
//
// Every actor has a Level (player, programmer, wizard). Every mutating
// operation names an ActionKind and a target; the Policy answers whether an
// actor at a given level may perform that action on a target it does or does
// not own. Wizard capabilities are a superset of programmer capabilities,
// which are a superset of player capabilities.
package access

import (
	"strings"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Level is an actor's permission tier.
type Level uint8

const (
	LevelPlayer Level = iota
	LevelProgrammer
	LevelWizard
)

// Levels lists every level in ascending order.
var Levels = []Level{LevelPlayer, LevelProgrammer, LevelWizard}

func (l Level) String() string {
	switch l {
	case LevelPlayer:
		return "player"
	case LevelProgrammer:
		return "programmer"
	case LevelWizard:
		return "wizard"
	default:
		return "unknown"
	}
}

// ParseLevel parses a level name (case-insensitive).
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "player":
		return LevelPlayer, nil
	case "programmer":
		return LevelProgrammer, nil
	case "wizard":
		return LevelWizard, nil
	default:
		return 0, oops.Code("INVALID_LEVEL").With("level", s).Errorf("unknown permission level %q", s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (l Level) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (l *Level) UnmarshalText(text []byte) error {
	parsed, err := ParseLevel(string(text))
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}

// ActionKind classifies what a verb or operation does to its target.
type ActionKind string

const (
	ActionRead                 ActionKind = "read"
	ActionInteract             ActionKind = "interact"
	ActionModifyOwnProperty    ActionKind = "modify-own-property"
	ActionModifyOthersProperty ActionKind = "modify-others-property"
	ActionDefineVerb           ActionKind = "define-verb"
	ActionReparent             ActionKind = "reparent"
	ActionChangeLevel          ActionKind = "change-permission-level"
	ActionCreateObject         ActionKind = "create-object"
	ActionDestroyObject        ActionKind = "destroy-object"
	ActionAdmin                ActionKind = "admin"
)

// ActionKinds lists every action kind.
var ActionKinds = []ActionKind{
	ActionRead,
	ActionInteract,
	ActionModifyOwnProperty,
	ActionModifyOthersProperty,
	ActionDefineVerb,
	ActionReparent,
	ActionChangeLevel,
	ActionCreateObject,
	ActionDestroyObject,
	ActionAdmin,
}

// Valid reports whether k is a known action kind.
func (k ActionKind) Valid() bool {
	for _, known := range ActionKinds {
		if k == known {
			return true
		}
	}
	return false
}

// Mutating reports whether the action can change the world.
func (k ActionKind) Mutating() bool {
	return k != ActionRead
}

// Scope says whether a target belongs to the actor.
type Scope string

const (
	ScopeOwn   Scope = "own"
	ScopeOther Scope = "other"
)

// Actor is the subject of an authorization check.
type Actor struct {
	ID    ulid.ULID
	Level Level
}

// Target is the object an action applies to.
type Target struct {
	ID    ulid.ULID
	Owner ulid.ULID
}

// ScopeFor returns whether target belongs to actor. An actor owns itself.
func ScopeFor(actor Actor, target Target) Scope {
	if target.ID == actor.ID || target.Owner == actor.ID {
		return ScopeOwn
	}
	return ScopeOther
}

// Decision is the outcome of an authorization check.
type Decision struct {
	Allowed bool
	Reason  string
}

// Allowed is the decision for a permitted action.
var Allowed = Decision{Allowed: true}

// Denied creates a denial with a reason.
func Denied(reason string) Decision {
	return Decision{Reason: reason}
}
