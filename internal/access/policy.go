// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Azimuth Contributors

package access

import (
	"log/slog"

	"github.com/gobwas/glob"
	"github.com/samber/oops"
)

// CodePermissionDenied is the error code for authorization failures.
const CodePermissionDenied = "PERMISSION_DENIED"

// Policy answers authorization questions from compiled level patterns.
// It is immutable after construction and safe for concurrent use.
type Policy struct {
	roles map[Level][]compiledPermission
}

// compiledPermission holds a permission pattern and its compiled glob.
type compiledPermission struct {
	pattern string
	glob    glob.Glob
}

// NewPolicy creates a policy with DefaultRoles.
//
// Panics if the default patterns fail to compile.
func NewPolicy() *Policy {
	p, err := NewPolicyWithRoles(DefaultRoles())
	if err != nil {
		panic("invalid permission pattern in DefaultRoles: " + err.Error())
	}
	return p
}

// NewPolicyWithRoles creates a policy with custom level patterns.
// Returns an error if any pattern is not a valid glob.
func NewPolicyWithRoles(roles map[Level][]string) (*Policy, error) {
	compiled := make(map[Level][]compiledPermission, len(roles))
	for level, perms := range roles {
		list := make([]compiledPermission, 0, len(perms))
		for _, p := range perms {
			g, err := glob.Compile(p, ':')
			if err != nil {
				return nil, oops.In("access").
					Code("INVALID_PERMISSION_PATTERN").
					With("level", level.String()).
					With("pattern", p).
					Wrap(err)
			}
			list = append(list, compiledPermission{pattern: p, glob: g})
		}
		compiled[level] = list
	}
	return &Policy{roles: compiled}, nil
}

// Authorize decides whether actor may perform action on target.
// Modifying a property of an object the actor does not own is checked as
// ActionModifyOthersProperty regardless of which property action was named.
func (p *Policy) Authorize(actor Actor, action ActionKind, target Target) Decision {
	if !action.Valid() {
		return Denied("unknown action " + string(action))
	}
	scope := ScopeFor(actor, target)
	if action == ActionModifyOwnProperty && scope == ScopeOther {
		action = ActionModifyOthersProperty
	}
	if p.allows(actor.Level, action, scope) {
		return Allowed
	}
	return Denied(denialReason(actor.Level, action, scope))
}

// Check is Authorize returning a PERMISSION_DENIED error on denial.
func (p *Policy) Check(actor Actor, action ActionKind, target Target) error {
	d := p.Authorize(actor, action, target)
	if d.Allowed {
		return nil
	}
	slog.Debug("permission denied",
		"actor_id", actor.ID.String(),
		"level", actor.Level.String(),
		"action", string(action),
		"target_id", target.ID.String(),
		"reason", d.Reason,
	)
	return oops.Code(CodePermissionDenied).
		With("action", string(action)).
		With("level", actor.Level.String()).
		With("target", target.ID.String()).
		With("reason", d.Reason).
		Errorf("permission denied: %s", d.Reason)
}

// Permits reports whether any target in scope would allow the action. Used
// for early rejection before the concrete target is known.
func (p *Policy) Permits(level Level, action ActionKind, scope Scope) bool {
	return p.allows(level, action, scope)
}

// RequiredLevel returns the lowest level allowed to perform action in scope,
// and false if no level is.
func (p *Policy) RequiredLevel(action ActionKind, scope Scope) (Level, bool) {
	for _, level := range Levels {
		if p.allows(level, action, scope) {
			return level, true
		}
	}
	return 0, false
}

func (p *Policy) allows(level Level, action ActionKind, scope Scope) bool {
	requested := string(action) + ":" + string(scope)
	for _, perm := range p.roles[level] {
		if perm.glob.Match(requested) {
			return true
		}
	}
	return false
}

func denialReason(level Level, action ActionKind, scope Scope) string {
	switch {
	case action == ActionModifyOthersProperty:
		return "only wizards may modify objects they do not own"
	case action == ActionChangeLevel:
		return "only wizards may change permission levels"
	case scope == ScopeOther:
		return "only wizards may " + string(action) + " objects they do not own"
	case level == LevelPlayer:
		return "players may not " + string(action)
	default:
		return level.String() + "s may not " + string(action)
	}
}
