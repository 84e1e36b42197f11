// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Azimuth Contributors

package store

import (
	"context"
	"slices"
	"strings"
	"sync"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/azimuth-mud/azimuth/internal/world"
)

// MemoryPersistence keeps objects in process memory. It backs the "memory"
// storage driver and tests.
type MemoryPersistence struct {
	mu     sync.Mutex
	worlds map[string]map[ulid.ULID]*world.Object
	failFn func(op string, id ulid.ULID) error
	saves  []ulid.ULID
	closed bool
}

// NewMemoryPersistence creates an empty in-memory backend.
func NewMemoryPersistence() *MemoryPersistence {
	return &MemoryPersistence{worlds: make(map[string]map[ulid.ULID]*world.Object)}
}

// FailWith installs a hook consulted before every write; a non-nil result
// fails the write. Pass nil to clear.
func (m *MemoryPersistence) FailWith(fn func(op string, id ulid.ULID) error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failFn = fn
}

// Saves returns the ids written so far, in write order.
func (m *MemoryPersistence) Saves() []ulid.ULID {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.saves)
}

// Object returns a stored object.
func (m *MemoryPersistence) Object(worldID string, id ulid.ULID) (*world.Object, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.worlds[worldID][id]
	return o.Clone(), ok
}

// LoadWorld implements Persistence.
func (m *MemoryPersistence) LoadWorld(_ context.Context, worldID string) ([]*world.Object, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, oops.Code(CodeStoreClosed).Errorf("memory store closed")
	}
	out := make([]*world.Object, 0, len(m.worlds[worldID]))
	for _, o := range m.worlds[worldID] {
		out = append(out, o.Clone())
	}
	slices.SortFunc(out, func(a, b *world.Object) int { return a.ID.Compare(b.ID) })
	return out, nil
}

// SaveObject implements Persistence.
func (m *MemoryPersistence) SaveObject(_ context.Context, worldID string, obj *world.Object) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check("save", obj.ID); err != nil {
		return err
	}
	objs, ok := m.worlds[worldID]
	if !ok {
		objs = make(map[ulid.ULID]*world.Object)
		m.worlds[worldID] = objs
	}
	objs[obj.ID] = obj.Clone()
	m.saves = append(m.saves, obj.ID)
	return nil
}

// DeleteObject implements Persistence.
func (m *MemoryPersistence) DeleteObject(_ context.Context, worldID string, id ulid.ULID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check("delete", id); err != nil {
		return err
	}
	delete(m.worlds[worldID], id)
	return nil
}

// FindByName implements Persistence.
func (m *MemoryPersistence) FindByName(_ context.Context, worldID, name string) ([]ulid.ULID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []ulid.ULID
	for id, o := range m.worlds[worldID] {
		if o.MatchesName(strings.TrimSpace(name)) {
			out = append(out, id)
		}
	}
	slices.SortFunc(out, func(a, b ulid.ULID) int { return a.Compare(b) })
	return out, nil
}

// Close implements Persistence.
func (m *MemoryPersistence) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *MemoryPersistence) check(op string, id ulid.ULID) error {
	if m.closed {
		return oops.Code(CodeStoreClosed).Errorf("memory store closed")
	}
	if m.failFn != nil {
		return m.failFn(op, id)
	}
	return nil
}
