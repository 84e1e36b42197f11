// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Azimuth Contributors

// Package world holds the in-memory object graph of one world.
//
// All access goes through Graph.View (shared, read-only) or Graph.Update
// (exclusive, transactional). An Update either applies every change made by
// its function or none of them, and committed changes are handed to the
// Backend in apply order for durable storage.
package world

import (
	"slices"
	"sync"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// ChangeKind identifies a persistence change.
type ChangeKind uint8

const (
	ChangeSave ChangeKind = iota
	ChangeDelete
)

func (k ChangeKind) String() string {
	if k == ChangeDelete {
		return "delete"
	}
	return "save"
}

// Change is one committed mutation to persist. Object is a private snapshot
// for saves and nil for deletes.
type Change struct {
	Seq    uint64
	Kind   ChangeKind
	ID     ulid.ULID
	Object *Object
}

// Backend receives committed changes and allocates identifiers.
// Enqueue is called with the graph's writer lock held and must not block.
type Backend interface {
	NewID() ulid.ULID
	Enqueue(changes []Change)
}

// Move records one relocation committed by an Update.
type Move struct {
	ID     ulid.ULID
	From   ulid.ULID
	To     ulid.ULID
	Player bool
}

// Graph is the object graph of one world.
type Graph struct {
	mu       sync.RWMutex
	worldID  string
	objects  map[ulid.ULID]*Object
	contents map[ulid.ULID][]ulid.ULID
	names    *nameIndex
	root     ulid.ULID
	backend  Backend
	seq      uint64
}

// Option configures a Graph.
type Option func(*Graph)

// WithBackend sets the persistence backend.
func WithBackend(b Backend) Option {
	return func(g *Graph) {
		g.backend = b
	}
}

// New creates an empty graph for the named world.
func New(worldID string, opts ...Option) *Graph {
	g := &Graph{
		worldID:  worldID,
		objects:  make(map[ulid.ULID]*Object),
		contents: make(map[ulid.ULID][]ulid.ULID),
		names:    newNameIndex(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// WorldID returns the world's identifier.
func (g *Graph) WorldID() string {
	return g.worldID
}

// Root returns the root object's id, zero if the world is empty.
func (g *Graph) Root() ulid.ULID {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.root
}

// Len returns the number of objects.
func (g *Graph) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.objects)
}

// Load replaces the graph's contents with objects after checking every
// structural invariant. Nothing is enqueued for persistence.
func (g *Graph) Load(objects []*Object) error {
	byID := make(map[ulid.ULID]*Object, len(objects))
	var root ulid.ULID
	for _, o := range objects {
		if _, dup := byID[o.ID]; dup {
			return oops.Code(CodeInvalidObject).With("object_id", o.ID.String()).Errorf("duplicate object id")
		}
		if err := o.Validate(); err != nil {
			return oops.Code(CodeInvalidObject).With("object_id", o.ID.String()).Wrap(err)
		}
		if !o.HasLocation() {
			if root != (ulid.ULID{}) {
				return oops.Code(CodeInvalidLocation).
					With("object_id", o.ID.String()).
					With("root_id", root.String()).
					Errorf("more than one object has no location")
			}
			root = o.ID
		}
		byID[o.ID] = o.Clone()
	}
	if len(byID) > 0 && root == (ulid.ULID{}) {
		return oops.Code(CodeInvalidLocation).Errorf("world has no root object")
	}

	for _, o := range byID {
		for _, p := range o.Parents {
			if _, ok := byID[p]; !ok {
				return oops.Code(CodeInvalidParent).
					With("object_id", o.ID.String()).
					With("parent_id", p.String()).
					Errorf("parent does not exist")
			}
		}
		if _, ok := byID[o.Owner]; !ok {
			return oops.Code(CodeInvalidObject).
				With("object_id", o.ID.String()).
				With("owner_id", o.Owner.String()).
				Errorf("owner does not exist")
		}
		if o.HasLocation() {
			if _, ok := byID[o.Location]; !ok {
				return oops.Code(CodeInvalidLocation).
					With("object_id", o.ID.String()).
					With("location_id", o.Location.String()).
					Errorf("location does not exist")
			}
		}
	}

	contents := make(map[ulid.ULID][]ulid.ULID)
	for _, o := range byID {
		if o.HasLocation() {
			contents[o.Location] = append(contents[o.Location], o.ID)
		}
	}
	for k := range contents {
		slices.SortFunc(contents[k], func(a, b ulid.ULID) int { return a.Compare(b) })
	}

	candidate := &Graph{objects: byID, contents: contents}
	v := &View{g: candidate}
	for id := range byID {
		if v.inheritsFrom(id, id) {
			return oops.Code(CodeCycleDetected).With("object_id", id.String()).Errorf("parent chain contains a cycle")
		}
		if v.locationCycle(id) {
			return oops.Code(CodeInvalidLocation).With("object_id", id.String()).Errorf("containment contains a cycle")
		}
	}

	names := newNameIndex()
	for _, o := range byID {
		names.add(o)
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	g.objects = byID
	g.contents = contents
	g.names = names
	g.root = root
	return nil
}

// Snapshot returns copies of every object, ordered by id.
func (g *Graph) Snapshot() []*Object {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]*Object, 0, len(g.objects))
	for _, o := range g.objects {
		out = append(out, o.Clone())
	}
	slices.SortFunc(out, func(a, b *Object) int { return a.ID.Compare(b.ID) })
	return out
}

// View runs fn with shared read access. Concurrent Views may run together
// but never alongside an Update.
func (g *Graph) View(fn func(v *View) error) error {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return fn(&View{g: g})
}

// Update runs fn with exclusive access. If fn returns an error or panics,
// every change it made is undone and nothing is persisted. On success the
// changes are enqueued on the backend and the committed moves returned.
func (g *Graph) Update(fn func(tx *Tx) error) (moves []Move, err error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	tx := newTx(g)
	defer func() {
		if r := recover(); r != nil {
			tx.rollback()
			panic(r)
		}
	}()

	if err := fn(tx); err != nil {
		tx.rollback()
		return nil, err
	}
	tx.commit()
	return tx.moves, nil
}

func (g *Graph) newID() ulid.ULID {
	if g.backend != nil {
		return g.backend.NewID()
	}
	return ulid.Make()
}
