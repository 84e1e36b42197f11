// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Azimuth Contributors

package command

import (
	"slices"
	"strings"

	"github.com/oklog/ulid/v2"

	"github.com/azimuth-mud/azimuth/internal/world"
)

// Match quality of a name against typed text.
const (
	rankNone = iota
	rankWordPrefix
	rankPrefix
	rankExact
)

// resolver turns typed object references into ids from the actor's point
// of view.
type resolver struct {
	view  *world.View
	actor ulid.ULID
}

func newResolver(v *world.View, actor ulid.ULID) resolver {
	return resolver{view: v, actor: actor}
}

// special handles the references that do not depend on what is nearby.
func (r resolver) special(text string) (ulid.ULID, bool, error) {
	switch strings.ToLower(text) {
	case "me", "myself":
		return r.actor, true, nil
	case "here":
		loc := r.view.Location(r.actor)
		if loc == (ulid.ULID{}) {
			return ulid.ULID{}, true, ErrObjectNotFound(text)
		}
		return loc, true, nil
	}
	if strings.HasPrefix(text, "#") {
		id, err := r.byID(text)
		return id, true, err
	}
	if strings.HasPrefix(text, "$") {
		if id, ok := r.view.Prototype(text); ok {
			return id, true, nil
		}
		return ulid.ULID{}, true, ErrObjectNotFound(text)
	}
	return ulid.ULID{}, false, nil
}

func (r resolver) byID(text string) (ulid.ULID, error) {
	ids := r.view.FindByPrefix(text)
	switch len(ids) {
	case 0:
		return ulid.ULID{}, ErrObjectNotFound(text)
	case 1:
		return ids[0], nil
	default:
		return ulid.ULID{}, ErrAmbiguousReference(text, r.labels(ids))
	}
}

// scope returns what the actor can see: inventory, then the room's
// contents, then the room itself.
func (r resolver) scope() []ulid.ULID {
	out := slices.Clone(r.view.Contents(r.actor))
	if loc := r.view.Location(r.actor); loc != (ulid.ULID{}) {
		out = append(out, r.view.Contents(loc)...)
		out = append(out, loc)
	}
	return out
}

// resolve finds text among the objects in scope. Exact name or alias
// matches beat matches on the start of a name, which beat matches on the
// start of any word in a name. Several candidates at the best rank are
// ambiguous unless exactly one of them is carried.
func (r resolver) resolve(text string) (ulid.ULID, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return ulid.ULID{}, ErrObjectNotFound(text)
	}
	if id, ok, err := r.special(text); ok {
		return id, err
	}
	return r.pick(text, r.scope())
}

// resolveGlobal is resolve that falls back to the whole world's name index.
func (r resolver) resolveGlobal(text string) (ulid.ULID, error) {
	id, err := r.resolve(text)
	if err == nil || !world.HasCode(err, world.CodeObjectNotFound) {
		return id, err
	}
	ids := r.view.FindByName(strings.TrimSpace(text))
	switch len(ids) {
	case 0:
		return ulid.ULID{}, err
	case 1:
		return ids[0], nil
	default:
		return ulid.ULID{}, ErrAmbiguousReference(text, r.labels(ids))
	}
}

func (r resolver) pick(text string, candidates []ulid.ULID) (ulid.ULID, error) {
	best := rankNone
	var found []ulid.ULID
	for _, id := range candidates {
		obj, err := r.view.Get(id)
		if err != nil {
			continue
		}
		rank := matchRank(obj, text)
		switch {
		case rank == rankNone || rank < best:
		case rank > best:
			best = rank
			found = []ulid.ULID{id}
		case !slices.Contains(found, id):
			found = append(found, id)
		}
	}
	if len(found) > 1 {
		// A tie between something carried and things nearby goes to the
		// carried object.
		carried := slices.DeleteFunc(slices.Clone(found), func(id ulid.ULID) bool {
			return r.view.Location(id) != r.actor
		})
		if len(carried) == 1 {
			return carried[0], nil
		}
	}
	switch len(found) {
	case 0:
		return ulid.ULID{}, ErrObjectNotFound(text)
	case 1:
		return found[0], nil
	default:
		return ulid.ULID{}, ErrAmbiguousReference(text, r.labels(found))
	}
}

func matchRank(obj *world.Object, text string) int {
	text = strings.ToLower(text)
	best := rankNone
	for _, name := range append([]string{obj.Name}, obj.Aliases...) {
		name = strings.ToLower(name)
		switch {
		case name == text:
			return rankExact
		case strings.HasPrefix(name, text):
			best = max(best, rankPrefix)
		case wordPrefix(name, text):
			best = max(best, rankWordPrefix)
		}
	}
	return best
}

func wordPrefix(name, text string) bool {
	for _, w := range strings.Fields(name) {
		if strings.HasPrefix(w, text) {
			return true
		}
	}
	return false
}

func (r resolver) labels(ids []ulid.ULID) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		out = append(out, r.view.Name(id))
	}
	return out
}
