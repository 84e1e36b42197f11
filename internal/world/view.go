// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Azimuth Contributors

package world

import (
	"slices"
	"strings"

	"github.com/oklog/ulid/v2"

	"github.com/azimuth-mud/azimuth/internal/access"
)

// View is read access to the graph. It is only valid inside the Graph.View
// or Graph.Update call that produced it.
type View struct {
	g *Graph
}

// WorldID returns the world's identifier.
func (v *View) WorldID() string { return v.g.worldID }

// Root returns the root object's id.
func (v *View) Root() ulid.ULID { return v.g.root }

// Exists reports whether id names an object.
func (v *View) Exists(id ulid.ULID) bool {
	_, ok := v.g.objects[id]
	return ok
}

// Get returns a copy of the object.
func (v *View) Get(id ulid.ULID) (*Object, error) {
	o, err := v.lookup(id)
	if err != nil {
		return nil, err
	}
	return o.Clone(), nil
}

func (v *View) lookup(id ulid.ULID) (*Object, error) {
	o, ok := v.g.objects[id]
	if !ok {
		return nil, errObjectNotFound(id)
	}
	return o, nil
}

// Name returns the object's name, or "" if it does not exist.
func (v *View) Name(id ulid.ULID) string {
	if o, ok := v.g.objects[id]; ok {
		return o.Name
	}
	return ""
}

// Location returns where the object is. Zero for the root or unknown ids.
func (v *View) Location(id ulid.ULID) ulid.ULID {
	if o, ok := v.g.objects[id]; ok {
		return o.Location
	}
	return ulid.ULID{}
}

// Owner returns the object's owner.
func (v *View) Owner(id ulid.ULID) ulid.ULID {
	if o, ok := v.g.objects[id]; ok {
		return o.Owner
	}
	return ulid.ULID{}
}

// Parents returns a copy of the object's declared parents.
func (v *View) Parents(id ulid.ULID) []ulid.ULID {
	if o, ok := v.g.objects[id]; ok {
		return slices.Clone(o.Parents)
	}
	return nil
}

// IsPlayer reports whether the object is a player.
func (v *View) IsPlayer(id ulid.ULID) bool {
	o, ok := v.g.objects[id]
	return ok && o.Player
}

// Level returns a player's permission level. Non-players are LevelPlayer.
func (v *View) Level(id ulid.ULID) access.Level {
	if o, ok := v.g.objects[id]; ok && o.Player {
		return o.Level
	}
	return access.LevelPlayer
}

// Actor returns the access subject for a player object.
func (v *View) Actor(id ulid.ULID) access.Actor {
	return access.Actor{ID: id, Level: v.Level(id)}
}

// Target returns the access target for an object.
func (v *View) Target(id ulid.ULID) access.Target {
	return access.Target{ID: id, Owner: v.Owner(id)}
}

// Contents returns the ids located in container, in arrival order.
func (v *View) Contents(container ulid.ULID) []ulid.ULID {
	return slices.Clone(v.g.contents[container])
}

// Contains reports whether id is inside container, directly or nested.
func (v *View) Contains(container, id ulid.ULID) bool {
	seen := make(map[ulid.ULID]bool)
	for cur := v.Location(id); cur != (ulid.ULID{}); cur = v.Location(cur) {
		if cur == container {
			return true
		}
		if seen[cur] {
			return false
		}
		seen[cur] = true
	}
	return false
}

// Ancestors returns id followed by every ancestor in resolution order:
// depth-first over parents in declared order, each object once.
func (v *View) Ancestors(id ulid.ULID) []ulid.ULID {
	var out []ulid.ULID
	seen := make(map[ulid.ULID]bool)
	var walk func(ulid.ULID)
	walk = func(cur ulid.ULID) {
		if seen[cur] {
			return
		}
		seen[cur] = true
		o, ok := v.g.objects[cur]
		if !ok {
			return
		}
		out = append(out, cur)
		for _, p := range o.Parents {
			walk(p)
		}
	}
	walk(id)
	return out
}

// IsA reports whether ancestor is id itself or one of its ancestors.
func (v *View) IsA(id, ancestor ulid.ULID) bool {
	return slices.Contains(v.Ancestors(id), ancestor)
}

// inheritsFrom reports whether ancestor is a strict ancestor of id.
func (v *View) inheritsFrom(id, ancestor ulid.ULID) bool {
	o, ok := v.g.objects[id]
	if !ok {
		return false
	}
	seen := make(map[ulid.ULID]bool)
	stack := slices.Clone(o.Parents)
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if cur == ancestor {
			return true
		}
		if seen[cur] {
			continue
		}
		seen[cur] = true
		if p, ok := v.g.objects[cur]; ok {
			stack = append(stack, p.Parents...)
		}
	}
	return false
}

func (v *View) locationCycle(id ulid.ULID) bool {
	seen := map[ulid.ULID]bool{id: true}
	for cur := v.Location(id); cur != (ulid.ULID{}); cur = v.Location(cur) {
		if seen[cur] {
			return true
		}
		seen[cur] = true
	}
	return false
}

// Children returns the objects that list id as a direct parent.
func (v *View) Children(id ulid.ULID) []ulid.ULID {
	var out []ulid.ULID
	for oid, o := range v.g.objects {
		if slices.Contains(o.Parents, id) {
			out = append(out, oid)
		}
	}
	slices.SortFunc(out, func(a, b ulid.ULID) int { return a.Compare(b) })
	return out
}

// ResolveProperty returns the value defined on the nearest object in id's
// resolution order.
func (v *View) ResolveProperty(id ulid.ULID, name string) (Value, error) {
	if _, err := v.lookup(id); err != nil {
		return Null, err
	}
	for _, cur := range v.Ancestors(id) {
		if val, ok := v.g.objects[cur].Properties[name]; ok {
			return val, nil
		}
	}
	return Null, errPropertyNotFound(id, name)
}

// PropertyOr resolves a property, returning def when it is not defined.
func (v *View) PropertyOr(id ulid.ULID, name string, def Value) Value {
	val, err := v.ResolveProperty(id, name)
	if err != nil {
		return def
	}
	return val
}

// StringProperty resolves a string property, "" when missing or not a string.
func (v *View) StringProperty(id ulid.ULID, name string) string {
	s, _ := v.PropertyOr(id, name, Null).Str()
	return s
}

// RefProperty resolves a reference property to an existing object.
func (v *View) RefProperty(id ulid.ULID, name string) (ulid.ULID, bool) {
	ref, ok := v.PropertyOr(id, name, Null).Ref()
	if !ok || !v.Exists(ref) {
		return ulid.ULID{}, false
	}
	return ref, true
}

// VerbMatch is a resolved verb. Holder is the object the verb was found
// through ("this"); Definer is the ancestor that defines it.
type VerbMatch struct {
	Verb    *Verb
	Holder  ulid.ULID
	Definer ulid.ULID
}

// ResolveVerb finds name on id or its ancestors.
func (v *View) ResolveVerb(id ulid.ULID, name string) (VerbMatch, error) {
	if _, err := v.lookup(id); err != nil {
		return VerbMatch{}, err
	}
	m, ok := v.FindVerb([]ulid.ULID{id}, name, nil)
	if !ok {
		return VerbMatch{}, errVerbNotFound(name)
	}
	return m, nil
}

// FindVerb searches sources in order, each with its own inheritance chain,
// and returns the first verb named name that accept approves. A nil accept
// approves everything. Duplicate sources are searched once.
func (v *View) FindVerb(sources []ulid.ULID, name string, accept func(VerbMatch) bool) (VerbMatch, bool) {
	searched := make(map[ulid.ULID]bool, len(sources))
	for _, src := range sources {
		if searched[src] || !v.Exists(src) {
			continue
		}
		searched[src] = true
		for _, cur := range v.Ancestors(src) {
			verb, ok := v.g.objects[cur].Verb(name)
			if !ok {
				continue
			}
			m := VerbMatch{Verb: verb.Clone(), Holder: src, Definer: cur}
			if accept == nil || accept(m) {
				return m, true
			}
		}
	}
	return VerbMatch{}, false
}

// VerbsOf returns the names of verbs available on id, including inherited
// ones, nearest definition first.
func (v *View) VerbsOf(id ulid.ULID) []string {
	var out []string
	seen := make(map[string]bool)
	for _, cur := range v.Ancestors(id) {
		for _, verb := range v.g.objects[cur].Verbs {
			key := strings.ToLower(verb.Name)
			if !seen[key] {
				seen[key] = true
				out = append(out, verb.Name)
			}
		}
	}
	return out
}

// FindByName returns objects whose name or alias equals name, ignoring case.
func (v *View) FindByName(name string) []ulid.ULID {
	return v.g.names.exact(name)
}

// Search returns objects whose name or alias contains text, exact matches first.
func (v *View) Search(text string) []ulid.ULID {
	return v.g.names.search(text)
}

// FindByPrefix returns objects whose id string starts with prefix (case-insensitive).
func (v *View) FindByPrefix(prefix string) []ulid.ULID {
	prefix = strings.ToUpper(strings.TrimPrefix(prefix, "#"))
	if prefix == "" {
		return nil
	}
	if id, err := ulid.ParseStrict(prefix); err == nil {
		if v.Exists(id) {
			return []ulid.ULID{id}
		}
		return nil
	}
	var out []ulid.ULID
	for id := range v.g.objects {
		if strings.HasPrefix(id.String(), prefix) {
			out = append(out, id)
		}
	}
	slices.SortFunc(out, func(a, b ulid.ULID) int { return a.Compare(b) })
	return out
}

// Prototype returns the object named name (for example "$thing").
func (v *View) Prototype(name string) (ulid.ULID, bool) {
	ids := v.g.names.exact(name)
	if len(ids) == 0 {
		return ulid.ULID{}, false
	}
	return ids[0], true
}

// FindPlayer returns the player with the given name, ignoring case.
func (v *View) FindPlayer(name string) (ulid.ULID, bool) {
	for _, id := range v.g.names.exact(name) {
		if o := v.g.objects[id]; o.Player && strings.EqualFold(o.Name, name) {
			return id, true
		}
	}
	return ulid.ULID{}, false
}

// Players returns every player object.
func (v *View) Players() []ulid.ULID {
	var out []ulid.ULID
	for id, o := range v.g.objects {
		if o.Player {
			out = append(out, id)
		}
	}
	slices.SortFunc(out, func(a, b ulid.ULID) int { return a.Compare(b) })
	return out
}

// StartRoom returns the room new and homeless players are placed in.
func (v *View) StartRoom() (ulid.ULID, bool) {
	if v.g.root == (ulid.ULID{}) {
		return ulid.ULID{}, false
	}
	return v.RefProperty(v.g.root, PropStartRoom)
}
