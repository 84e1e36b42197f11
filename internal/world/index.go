// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Azimuth Contributors

package world

import (
	"slices"
	"strings"

	"github.com/oklog/ulid/v2"
)

// nameIndex maps lower-cased names and aliases to object ids.
type nameIndex struct {
	byName map[string][]ulid.ULID
}

func newNameIndex() *nameIndex {
	return &nameIndex{byName: make(map[string][]ulid.ULID)}
}

func nameKeys(o *Object) []string {
	keys := make([]string, 0, 1+len(o.Aliases))
	keys = append(keys, strings.ToLower(o.Name))
	for _, a := range o.Aliases {
		k := strings.ToLower(a)
		if !slices.Contains(keys, k) {
			keys = append(keys, k)
		}
	}
	return keys
}

func (ix *nameIndex) add(o *Object) {
	for _, k := range nameKeys(o) {
		ids := ix.byName[k]
		if !slices.Contains(ids, o.ID) {
			ix.byName[k] = append(ids, o.ID)
		}
	}
}

func (ix *nameIndex) remove(o *Object) {
	for _, k := range nameKeys(o) {
		ids := slices.DeleteFunc(ix.byName[k], func(id ulid.ULID) bool { return id == o.ID })
		if len(ids) == 0 {
			delete(ix.byName, k)
		} else {
			ix.byName[k] = ids
		}
	}
}

// exact returns ids whose name or alias equals name, ordered by id.
func (ix *nameIndex) exact(name string) []ulid.ULID {
	ids := slices.Clone(ix.byName[strings.ToLower(strings.TrimSpace(name))])
	slices.SortFunc(ids, func(a, b ulid.ULID) int { return a.Compare(b) })
	return ids
}

// search returns ids whose name or alias contains text, exact matches first.
func (ix *nameIndex) search(text string) []ulid.ULID {
	needle := strings.ToLower(strings.TrimSpace(text))
	if needle == "" {
		return nil
	}
	exact := ix.exact(needle)
	seen := make(map[ulid.ULID]bool, len(exact))
	for _, id := range exact {
		seen[id] = true
	}
	var partial []ulid.ULID
	for k, ids := range ix.byName {
		if !strings.Contains(k, needle) {
			continue
		}
		for _, id := range ids {
			if !seen[id] {
				seen[id] = true
				partial = append(partial, id)
			}
		}
	}
	slices.SortFunc(partial, func(a, b ulid.ULID) int { return a.Compare(b) })
	return append(exact, partial...)
}
