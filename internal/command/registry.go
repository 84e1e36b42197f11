// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Azimuth Contributors

package command

import (
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/samber/oops"
)

// Registry maps behavior names to their Go handlers. Verbs on world objects
// refer to behaviors by name. It is safe for concurrent use.
type Registry struct {
	behaviors map[string]Behavior
	mu        sync.RWMutex
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{behaviors: make(map[string]Behavior)}
}

// Register adds a behavior. Registering a name twice replaces the earlier
// behavior and logs a warning.
func (r *Registry) Register(b Behavior) error {
	name := strings.ToLower(strings.TrimSpace(b.Name))
	if name == "" {
		return oops.Code("INVALID_BEHAVIOR").Errorf("behavior name cannot be empty")
	}
	if b.Handler == nil {
		return oops.Code("INVALID_BEHAVIOR").With("behavior", name).Errorf("behavior %s has no handler", name)
	}
	b.Name = name

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.behaviors[name]; ok {
		slog.Warn("behavior conflict: overwriting existing behavior", "behavior", name)
	}
	r.behaviors[name] = b
	return nil
}

// MustRegister is Register that panics on error. For static tables.
func (r *Registry) MustRegister(behaviors ...Behavior) {
	for _, b := range behaviors {
		if err := r.Register(b); err != nil {
			panic(err)
		}
	}
}

// Get returns the behavior named name.
func (r *Registry) Get(name string) (Behavior, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.behaviors[strings.ToLower(name)]
	return b, ok
}

// Names returns every behavior name, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.behaviors))
	for name := range r.behaviors {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// All returns every behavior sorted by name.
func (r *Registry) All() []Behavior {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Behavior, 0, len(r.behaviors))
	for _, b := range r.behaviors {
		out = append(out, b)
	}
	slices.SortFunc(out, func(a, b Behavior) int { return strings.Compare(a.Name, b.Name) })
	return out
}
