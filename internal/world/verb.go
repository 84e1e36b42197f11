// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Azimuth Contributors

package world

import (
	"slices"
	"strings"

	"github.com/samber/oops"

	"github.com/azimuth-mud/azimuth/internal/access"
)

// ArgSpec constrains what a verb accepts in its direct or indirect object slot.
type ArgSpec uint8

const (
	// ArgNone means the slot must be empty.
	ArgNone ArgSpec = iota
	// ArgThis means the slot must name the object that holds the verb.
	ArgThis
	// ArgAny accepts anything, including nothing.
	ArgAny
)

func (a ArgSpec) String() string {
	switch a {
	case ArgNone:
		return "none"
	case ArgThis:
		return "this"
	case ArgAny:
		return "any"
	default:
		return "unknown"
	}
}

// ParseArgSpec parses "none", "this" or "any".
func ParseArgSpec(s string) (ArgSpec, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none":
		return ArgNone, nil
	case "this":
		return ArgThis, nil
	case "any":
		return ArgAny, nil
	default:
		return ArgNone, oops.Code(CodeInvalidObject).With("argspec", s).Errorf("invalid argument spec %q", s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (a ArgSpec) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *ArgSpec) UnmarshalText(text []byte) error {
	parsed, err := ParseArgSpec(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// Prepositions recognized between the direct and indirect object.
var Prepositions = []string{"at", "in", "into", "on", "onto", "to", "with", "as", "from", "through"}

// IsPreposition reports whether word is a known preposition.
func IsPreposition(word string) bool {
	return slices.Contains(Prepositions, strings.ToLower(word))
}

// Verb is a named behavior attached to an object. Behavior names a built-in
// handler; Action is the permission the verb needs.
type Verb struct {
	Name     string            `json:"name"`
	Aliases  []string          `json:"aliases,omitempty"`
	Action   access.ActionKind `json:"action"`
	Behavior string            `json:"behavior"`
	Dobj     ArgSpec           `json:"dobj"`
	Preps    []string          `json:"preps,omitempty"`
	Iobj     ArgSpec           `json:"iobj"`
}

// Matches reports whether name selects this verb (case-insensitive).
func (v *Verb) Matches(name string) bool {
	if strings.EqualFold(v.Name, name) {
		return true
	}
	for _, alias := range v.Aliases {
		if strings.EqualFold(alias, name) {
			return true
		}
	}
	return false
}

// AcceptsPrep reports whether prep is allowed. An empty list accepts only
// the absence of a preposition, unless the indirect slot is ArgAny.
func (v *Verb) AcceptsPrep(prep string) bool {
	if prep == "" {
		return v.Iobj != ArgThis
	}
	if len(v.Preps) == 0 {
		return v.Iobj == ArgAny
	}
	for _, p := range v.Preps {
		if strings.EqualFold(p, prep) {
			return true
		}
	}
	return false
}

// Validate checks the verb's fields.
func (v *Verb) Validate() error {
	if err := ValidateName(v.Name); err != nil {
		return err
	}
	if strings.ContainsAny(v.Name, " \t") {
		return &ValidationError{Field: "verb", Message: "cannot contain spaces"}
	}
	if err := ValidateAliases(v.Aliases); err != nil {
		return err
	}
	if !v.Action.Valid() {
		return &ValidationError{Field: "action", Message: "unknown action kind " + string(v.Action)}
	}
	if v.Behavior == "" {
		return &ValidationError{Field: "behavior", Message: "cannot be empty"}
	}
	for _, p := range v.Preps {
		if !IsPreposition(p) {
			return &ValidationError{Field: "preps", Message: "unknown preposition " + p}
		}
	}
	return nil
}

// Clone returns a deep copy.
func (v *Verb) Clone() *Verb {
	if v == nil {
		return nil
	}
	c := *v
	c.Aliases = slices.Clone(v.Aliases)
	c.Preps = slices.Clone(v.Preps)
	return &c
}
