// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Azimuth Contributors

package world

import (
	"maps"
	"slices"
	"sort"
	"strings"

	"github.com/oklog/ulid/v2"

	"github.com/azimuth-mud/azimuth/internal/access"
)

// Well-known property names.
const (
	PropDescription  = "description"
	PropStartRoom    = "start_room"
	PropHome         = "home"
	PropLastLocation = "last_location"
	PropDestination  = "destination"
	PropMessages     = "messages"
	PropMotd         = "motd"
)

// Object is one node in the world graph.
//
// Parents are searched child-first in declared order for properties and verbs.
// Location is zero only for the world root.
type Object struct {
	ID           ulid.ULID        `json:"id"`
	Name         string           `json:"name"`
	Aliases      []string         `json:"aliases,omitempty"`
	Parents      []ulid.ULID      `json:"parents,omitempty"`
	Owner        ulid.ULID        `json:"owner"`
	Location     ulid.ULID        `json:"location"`
	Player       bool             `json:"player,omitempty"`
	Level        access.Level     `json:"level"`
	PasswordHash string           `json:"password_hash,omitempty"`
	Properties   map[string]Value `json:"properties,omitempty"`
	Verbs        []*Verb          `json:"verbs,omitempty"`
}

// HasLocation reports whether the object is somewhere.
func (o *Object) HasLocation() bool {
	return o.Location != ulid.ULID{}
}

// Property returns a locally defined property.
func (o *Object) Property(name string) (Value, bool) {
	v, ok := o.Properties[name]
	return v, ok
}

// Verb returns a locally defined verb by name or alias.
func (o *Object) Verb(name string) (*Verb, bool) {
	for _, v := range o.Verbs {
		if v.Matches(name) {
			return v, true
		}
	}
	return nil, false
}

// MatchesName reports whether text equals the name or an alias, ignoring case.
func (o *Object) MatchesName(text string) bool {
	if strings.EqualFold(o.Name, text) {
		return true
	}
	for _, a := range o.Aliases {
		if strings.EqualFold(a, text) {
			return true
		}
	}
	return false
}

// PropertyNames returns the local property names sorted.
func (o *Object) PropertyNames() []string {
	names := make([]string, 0, len(o.Properties))
	for k := range o.Properties {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// VerbNames returns the local verb names in definition order.
func (o *Object) VerbNames() []string {
	names := make([]string, len(o.Verbs))
	for i, v := range o.Verbs {
		names[i] = v.Name
	}
	return names
}

// Clone returns a deep copy.
func (o *Object) Clone() *Object {
	if o == nil {
		return nil
	}
	c := *o
	c.Aliases = slices.Clone(o.Aliases)
	c.Parents = slices.Clone(o.Parents)
	c.Properties = maps.Clone(o.Properties)
	if c.Properties == nil {
		c.Properties = map[string]Value{}
	}
	c.Verbs = make([]*Verb, len(o.Verbs))
	for i, v := range o.Verbs {
		c.Verbs[i] = v.Clone()
	}
	return &c
}

// Validate validates the object's own fields. Graph-level invariants are
// checked by the graph.
func (o *Object) Validate() error {
	if err := ValidateName(o.Name); err != nil {
		return err
	}
	if err := ValidateAliases(o.Aliases); err != nil {
		return err
	}
	if d, ok := o.Properties[PropDescription]; ok {
		if s, ok := d.Str(); ok {
			if err := ValidateDescription(s); err != nil {
				return err
			}
		}
	}
	seen := make(map[string]bool, len(o.Verbs))
	for _, v := range o.Verbs {
		if err := v.Validate(); err != nil {
			return err
		}
		key := strings.ToLower(v.Name)
		if seen[key] {
			return &ValidationError{Field: "verbs", Message: "duplicate verb " + v.Name}
		}
		seen[key] = true
	}
	return nil
}
