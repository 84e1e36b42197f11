// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Azimuth Contributors

package world

import (
	"slices"
	"strings"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/azimuth-mud/azimuth/internal/access"
)

// Tx is exclusive write access to the graph for the duration of one Update.
// Every mutation validates the graph's invariants before it is applied.
type Tx struct {
	View

	// before holds each touched object as it was before the Update; a nil
	// entry means the object did not exist.
	before        map[ulid.ULID]*Object
	touched       []ulid.ULID
	contentsSaved map[ulid.ULID][]ulid.ULID
	hadContents   map[ulid.ULID]bool
	rootBefore    ulid.ULID
	moves         []Move
}

func newTx(g *Graph) *Tx {
	return &Tx{
		View:          View{g: g},
		before:        make(map[ulid.ULID]*Object),
		contentsSaved: make(map[ulid.ULID][]ulid.ULID),
		hadContents:   make(map[ulid.ULID]bool),
		rootBefore:    g.root,
	}
}

// touch records id's pre-Update state the first time it is mutated.
func (tx *Tx) touch(id ulid.ULID) {
	if _, ok := tx.before[id]; ok {
		return
	}
	tx.before[id] = tx.g.objects[id].Clone()
	tx.touched = append(tx.touched, id)
}

func (tx *Tx) touchContents(container ulid.ULID) {
	if _, ok := tx.hadContents[container]; ok {
		return
	}
	cur, had := tx.g.contents[container]
	tx.hadContents[container] = had
	tx.contentsSaved[container] = slices.Clone(cur)
}

func (tx *Tx) rollback() {
	for i := len(tx.touched) - 1; i >= 0; i-- {
		id := tx.touched[i]
		if cur, ok := tx.g.objects[id]; ok {
			tx.g.names.remove(cur)
		}
		if orig := tx.before[id]; orig != nil {
			tx.g.objects[id] = orig
			tx.g.names.add(orig)
		} else {
			delete(tx.g.objects, id)
		}
	}
	for container, had := range tx.hadContents {
		if had {
			tx.g.contents[container] = tx.contentsSaved[container]
		} else {
			delete(tx.g.contents, container)
		}
	}
	tx.g.root = tx.rootBefore
	tx.moves = nil
}

func (tx *Tx) commit() {
	if len(tx.touched) == 0 {
		return
	}
	changes := make([]Change, 0, len(tx.touched))
	for _, id := range tx.touched {
		cur, exists := tx.g.objects[id]
		switch {
		case exists:
			tx.g.seq++
			changes = append(changes, Change{Seq: tx.g.seq, Kind: ChangeSave, ID: id, Object: cur.Clone()})
		case tx.before[id] != nil:
			tx.g.seq++
			changes = append(changes, Change{Seq: tx.g.seq, Kind: ChangeDelete, ID: id})
		}
	}
	if tx.g.backend != nil && len(changes) > 0 {
		tx.g.backend.Enqueue(changes)
	}
}

// Moves returns the relocations made so far in this Update.
func (tx *Tx) Moves() []Move {
	return slices.Clone(tx.moves)
}

// NewObject describes an object to create.
type NewObject struct {
	Name     string
	Aliases  []string
	Parents  []ulid.ULID
	Owner    ulid.ULID // zero means the object owns itself
	Location ulid.ULID // zero means the root
	Player   bool
	Level    access.Level
	Props    map[string]Value
	Verbs    []*Verb
}

// CreateRoot creates the world's root object. The root has no location and
// owns itself until an owner is assigned.
func (tx *Tx) CreateRoot(name string) (ulid.ULID, error) {
	if tx.g.root != (ulid.ULID{}) {
		return ulid.ULID{}, oops.Code(CodeInvalidObject).
			With("root_id", tx.g.root.String()).
			Errorf("world already has a root")
	}
	id := tx.g.newID()
	o := &Object{ID: id, Name: name, Owner: id, Properties: map[string]Value{}}
	if err := o.Validate(); err != nil {
		return ulid.ULID{}, oops.Code(CodeInvalidObject).Wrap(err)
	}
	tx.touch(id)
	tx.g.objects[id] = o
	tx.g.names.add(o)
	tx.g.root = id
	return id, nil
}

// CreateObject allocates an id and adds a new object. Every parent, the
// owner and the location must exist.
func (tx *Tx) CreateObject(spec NewObject) (ulid.ULID, error) {
	if tx.g.root == (ulid.ULID{}) {
		return ulid.ULID{}, oops.Code(CodeInvalidLocation).Errorf("world has no root")
	}
	for _, p := range spec.Parents {
		if !tx.Exists(p) {
			return ulid.ULID{}, oops.Code(CodeInvalidParent).
				With("parent_id", p.String()).
				Errorf("parent %s does not exist", p)
		}
	}
	if dup := duplicate(spec.Parents); dup != (ulid.ULID{}) {
		return ulid.ULID{}, oops.Code(CodeInvalidParent).
			With("parent_id", dup.String()).
			Errorf("parent %s listed twice", dup)
	}
	location := spec.Location
	if location == (ulid.ULID{}) {
		location = tx.g.root
	}
	if !tx.Exists(location) {
		return ulid.ULID{}, oops.Code(CodeInvalidLocation).
			With("location_id", location.String()).
			Errorf("location %s does not exist", location)
	}
	if spec.Owner != (ulid.ULID{}) && !tx.Exists(spec.Owner) {
		return ulid.ULID{}, errObjectNotFound(spec.Owner)
	}

	id := tx.g.newID()
	owner := spec.Owner
	if owner == (ulid.ULID{}) {
		owner = id
	}
	props := make(map[string]Value, len(spec.Props))
	for k, val := range spec.Props {
		if err := ValidatePropertyName(k); err != nil {
			return ulid.ULID{}, oops.Code(CodeInvalidObject).Wrap(err)
		}
		props[k] = val
	}
	verbs := make([]*Verb, len(spec.Verbs))
	for i, verb := range spec.Verbs {
		verbs[i] = verb.Clone()
	}
	o := &Object{
		ID:         id,
		Name:       strings.TrimSpace(spec.Name),
		Aliases:    slices.Clone(spec.Aliases),
		Parents:    slices.Clone(spec.Parents),
		Owner:      owner,
		Location:   location,
		Player:     spec.Player,
		Level:      spec.Level,
		Properties: props,
		Verbs:      verbs,
	}
	if err := o.Validate(); err != nil {
		return ulid.ULID{}, oops.Code(CodeInvalidObject).With("name", spec.Name).Wrap(err)
	}

	tx.touch(id)
	tx.touchContents(location)
	tx.g.objects[id] = o
	tx.g.contents[location] = append(tx.g.contents[location], id)
	tx.g.names.add(o)
	return id, nil
}

func duplicate(ids []ulid.ULID) ulid.ULID {
	seen := make(map[ulid.ULID]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			return id
		}
		seen[id] = true
	}
	return ulid.ULID{}
}

// mutable returns the live object after recording its prior state.
func (tx *Tx) mutable(id ulid.ULID) (*Object, error) {
	if _, err := tx.lookup(id); err != nil {
		return nil, err
	}
	tx.touch(id)
	return tx.g.objects[id], nil
}

// SetProperty defines or overwrites a property on the object itself.
func (tx *Tx) SetProperty(id ulid.ULID, name string, val Value) error {
	if err := ValidatePropertyName(name); err != nil {
		return oops.Code(CodeInvalidObject).With("object_id", id.String()).Wrap(err)
	}
	if name == PropDescription {
		if s, ok := val.Str(); ok {
			if err := ValidateDescription(s); err != nil {
				return oops.Code(CodeInvalidObject).With("object_id", id.String()).Wrap(err)
			}
		}
	}
	o, err := tx.mutable(id)
	if err != nil {
		return err
	}
	if o.Properties == nil {
		o.Properties = map[string]Value{}
	}
	o.Properties[name] = val
	return nil
}

// ClearProperty removes a local property so the inherited value shows through.
func (tx *Tx) ClearProperty(id ulid.ULID, name string) error {
	o, err := tx.lookup(id)
	if err != nil {
		return err
	}
	if _, ok := o.Properties[name]; !ok {
		return errPropertyNotFound(id, name)
	}
	o, _ = tx.mutable(id)
	delete(o.Properties, name)
	return nil
}

// SetName renames an object.
func (tx *Tx) SetName(id ulid.ULID, name string) error {
	name = strings.TrimSpace(name)
	if err := ValidateName(name); err != nil {
		return oops.Code(CodeInvalidObject).With("object_id", id.String()).Wrap(err)
	}
	o, err := tx.mutable(id)
	if err != nil {
		return err
	}
	tx.g.names.remove(o)
	o.Name = name
	tx.g.names.add(o)
	return nil
}

// SetAliases replaces an object's aliases.
func (tx *Tx) SetAliases(id ulid.ULID, aliases []string) error {
	if err := ValidateAliases(aliases); err != nil {
		return oops.Code(CodeInvalidObject).With("object_id", id.String()).Wrap(err)
	}
	o, err := tx.mutable(id)
	if err != nil {
		return err
	}
	tx.g.names.remove(o)
	o.Aliases = slices.Clone(aliases)
	tx.g.names.add(o)
	return nil
}

// DefineVerb adds a verb to the object, replacing a local verb of the same name.
func (tx *Tx) DefineVerb(id ulid.ULID, verb *Verb) error {
	if err := verb.Validate(); err != nil {
		return oops.Code(CodeInvalidObject).With("object_id", id.String()).With("verb", verb.Name).Wrap(err)
	}
	o, err := tx.mutable(id)
	if err != nil {
		return err
	}
	v := verb.Clone()
	for i, existing := range o.Verbs {
		if strings.EqualFold(existing.Name, v.Name) {
			o.Verbs[i] = v
			return nil
		}
	}
	o.Verbs = append(o.Verbs, v)
	return nil
}

// RemoveVerb deletes a locally defined verb.
func (tx *Tx) RemoveVerb(id ulid.ULID, name string) error {
	o, err := tx.lookup(id)
	if err != nil {
		return err
	}
	idx := slices.IndexFunc(o.Verbs, func(v *Verb) bool { return v.Matches(name) })
	if idx < 0 {
		return errVerbNotFound(name)
	}
	o, _ = tx.mutable(id)
	o.Verbs = slices.Delete(o.Verbs, idx, idx+1)
	return nil
}

// Reparent replaces the object's parents. It fails with CYCLE_DETECTED when
// any new parent is the object itself or one of its descendants.
func (tx *Tx) Reparent(id ulid.ULID, parents []ulid.ULID) error {
	if _, err := tx.lookup(id); err != nil {
		return err
	}
	if dup := duplicate(parents); dup != (ulid.ULID{}) {
		return oops.Code(CodeInvalidParent).
			With("object_id", id.String()).
			With("parent_id", dup.String()).
			Errorf("parent %s listed twice", dup)
	}
	for _, p := range parents {
		if !tx.Exists(p) {
			return oops.Code(CodeInvalidParent).
				With("object_id", id.String()).
				With("parent_id", p.String()).
				Errorf("parent %s does not exist", p)
		}
		if p == id || tx.inheritsFrom(p, id) {
			return oops.Code(CodeCycleDetected).
				With("object_id", id.String()).
				With("parent_id", p.String()).
				Errorf("%s descends from %s", p, id)
		}
	}
	o, _ := tx.mutable(id)
	o.Parents = slices.Clone(parents)
	return nil
}

// Move relocates an object as one step. The destination must exist and must
// not be the object or anything inside it.
func (tx *Tx) Move(id, dest ulid.ULID) error {
	o, err := tx.lookup(id)
	if err != nil {
		return err
	}
	if id == tx.g.root {
		return oops.Code(CodeInvalidLocation).With("object_id", id.String()).Errorf("the root cannot be moved")
	}
	if !tx.Exists(dest) {
		return oops.Code(CodeInvalidLocation).
			With("object_id", id.String()).
			With("location_id", dest.String()).
			Errorf("destination %s does not exist", dest)
	}
	if dest == id || tx.Contains(id, dest) {
		return oops.Code(CodeInvalidLocation).
			With("object_id", id.String()).
			With("location_id", dest.String()).
			Errorf("cannot move an object inside itself")
	}
	from := o.Location
	if from == dest {
		return nil
	}

	tx.touch(id)
	tx.touchContents(from)
	tx.touchContents(dest)
	tx.g.contents[from] = slices.DeleteFunc(tx.g.contents[from], func(c ulid.ULID) bool { return c == id })
	if len(tx.g.contents[from]) == 0 {
		delete(tx.g.contents, from)
	}
	tx.g.contents[dest] = append(tx.g.contents[dest], id)
	o = tx.g.objects[id]
	o.Location = dest
	tx.moves = append(tx.moves, Move{ID: id, From: from, To: dest, Player: o.Player})
	return nil
}

// SetOwner transfers ownership.
func (tx *Tx) SetOwner(id, owner ulid.ULID) error {
	if !tx.Exists(owner) {
		return errObjectNotFound(owner)
	}
	o, err := tx.mutable(id)
	if err != nil {
		return err
	}
	o.Owner = owner
	return nil
}

// SetLevel changes a player's permission level.
func (tx *Tx) SetLevel(id ulid.ULID, level access.Level) error {
	o, err := tx.lookup(id)
	if err != nil {
		return err
	}
	if !o.Player {
		return oops.Code(CodeInvalidObject).With("object_id", id.String()).Errorf("%s is not a player", o.Name)
	}
	o, _ = tx.mutable(id)
	o.Level = level
	return nil
}

// SetPasswordHash stores a player's password hash.
func (tx *Tx) SetPasswordHash(id ulid.ULID, hash string) error {
	o, err := tx.mutable(id)
	if err != nil {
		return err
	}
	o.PasswordHash = hash
	return nil
}

// Destroy removes an object. Objects that still inherit from it must be
// reparented first. Its contents move to its location, and anything it
// owned passes to the root's owner.
func (tx *Tx) Destroy(id ulid.ULID) error {
	o, err := tx.lookup(id)
	if err != nil {
		return err
	}
	root := tx.g.objects[tx.g.root]
	if id == tx.g.root || id == root.Owner {
		return oops.Code(CodeInvalidObject).With("object_id", id.String()).Errorf("%s cannot be destroyed", o.Name)
	}
	if children := tx.Children(id); len(children) > 0 {
		return oops.Code(CodeHasChildren).
			With("object_id", id.String()).
			With("children", len(children)).
			Errorf("%s still has %d children", o.Name, len(children))
	}

	for _, c := range tx.Contents(id) {
		if err := tx.Move(c, o.Location); err != nil {
			return err
		}
	}
	for oid, other := range tx.g.objects {
		if oid != id && other.Owner == id {
			if err := tx.SetOwner(oid, root.Owner); err != nil {
				return err
			}
		}
	}

	tx.touch(id)
	tx.touchContents(o.Location)
	tx.touchContents(id)
	tx.g.contents[o.Location] = slices.DeleteFunc(tx.g.contents[o.Location], func(c ulid.ULID) bool { return c == id })
	delete(tx.g.contents, id)
	tx.g.names.remove(o)
	delete(tx.g.objects, id)
	return nil
}
