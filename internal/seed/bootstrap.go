// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Azimuth Contributors

package seed

import (
	"log/slog"
	"slices"
	"strings"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/azimuth-mud/azimuth/internal/access"
	"github.com/azimuth-mud/azimuth/internal/auth"
	"github.com/azimuth-mud/azimuth/internal/command"
	"github.com/azimuth-mud/azimuth/internal/world"
)

// Prototype names.
const (
	RootName       = "$root"
	ProtoRoom      = "$room"
	ProtoThing     = "$thing"
	ProtoContainer = "$container"
	ProtoExit      = "$exit"
	ProtoPlayer    = "$player"
	ProtoProgram   = "$programmer"
	ProtoWizard    = "$wizard"
)

type prototype struct {
	name   string
	parent string
	verbs  []VerbSpec
}

var rootVerbs = []VerbSpec{
	{Name: "look", Aliases: []string{"l"}, Behavior: "look"},
	{Name: "examine", Aliases: []string{"@show", "ex"}, Behavior: "examine"},
}

// prototypes are created in order, so parents come first.
var prototypes = []prototype{
	{name: ProtoRoom},
	{name: ProtoThing, verbs: []VerbSpec{
		{Name: "get", Aliases: []string{"take"}, Behavior: "get", Dobj: "this"},
		{Name: "drop", Behavior: "drop", Dobj: "this"},
		{Name: "put", Behavior: "put", Dobj: "this"},
	}},
	{name: ProtoContainer, parent: ProtoThing},
	{name: ProtoExit},
	{name: ProtoPlayer, verbs: []VerbSpec{
		{Name: "inventory", Aliases: []string{"i", "inv"}, Behavior: "inventory"},
		{Name: "go", Aliases: []string{"walk"}, Behavior: "go"},
		{Name: "say", Behavior: "say"},
		{Name: "emote", Aliases: []string{"pose"}, Behavior: "emote"},
		{Name: "whisper", Behavior: "whisper"},
		{Name: "@home", Aliases: []string{"home"}, Behavior: "@home"},
		{Name: "@sethome", Behavior: "@sethome"},
		{Name: "@describe", Behavior: "@describe"},
		{Name: "@rename", Behavior: "@rename"},
		{Name: "set", Behavior: "set"},
		{Name: "@who", Aliases: []string{"who"}, Behavior: "@who"},
		{Name: "@quit", Aliases: []string{"quit", "disconnect"}, Behavior: "@quit"},
	}},
	{name: ProtoProgram, parent: ProtoPlayer, verbs: []VerbSpec{
		{Name: "@create", Behavior: "@create"},
		{Name: "@dig", Behavior: "@dig"},
		{Name: "@destroy", Aliases: []string{"@recycle"}, Behavior: "@destroy"},
		{Name: "@verb", Behavior: "@verb"},
		{Name: "@rmverb", Behavior: "@rmverb"},
		{Name: "@chparent", Behavior: "@chparent"},
	}},
	{name: ProtoWizard, parent: ProtoProgram, verbs: []VerbSpec{
		{Name: "@level", Behavior: "@level"},
		{Name: "@teleport", Aliases: []string{"@tel"}, Behavior: "@teleport"},
		{Name: "@flush", Behavior: "@flush"},
	}},
}

// IsPrototype reports whether name is one of the built-in prototypes.
func IsPrototype(name string) bool {
	if strings.EqualFold(name, RootName) {
		return true
	}
	return slices.ContainsFunc(prototypes, func(p prototype) bool {
		return strings.EqualFold(p.name, name)
	})
}

// levelPrototype is the prototype players of a level inherit from.
func levelPrototype(level access.Level) string {
	switch level {
	case access.LevelWizard:
		return ProtoWizard
	case access.LevelProgrammer:
		return ProtoProgram
	default:
		return ProtoPlayer
	}
}

// Result reports what Bootstrap created.
type Result struct {
	Root      ulid.ULID
	StartRoom ulid.ULID
	Owner     ulid.ULID // the first wizard
	Objects   int
}

// Bootstrap builds m into g, which must be empty. Everything is created in
// one update: on error the graph is left empty.
func Bootstrap(g *world.Graph, m *Manifest, reg *command.Registry, hasher auth.PasswordHasher) (*Result, error) {
	if g.Root() != (ulid.ULID{}) {
		return nil, oops.Code(CodeAlreadySeeded).
			With("world_id", g.WorldID()).
			Errorf("world %s is already seeded", g.WorldID())
	}
	if m.World != g.WorldID() {
		slog.Warn("seed manifest names a different world",
			"manifest_world", m.World, "world_id", g.WorldID())
	}

	hashes := make([]string, len(m.Players))
	for i, p := range m.Players {
		h, err := hasher.Hash(p.Password)
		if err != nil {
			return nil, oops.Code(CodeInvalidManifest).With("player", p.Name).Wrap(err)
		}
		hashes[i] = h
	}

	b := &builder{m: m, reg: reg, refs: make(map[string]ulid.ULID)}
	if _, err := g.Update(func(tx *world.Tx) error {
		b.tx = tx
		return b.build(hashes)
	}); err != nil {
		return nil, err
	}
	b.result.Objects = g.Len()
	slog.Info("world seeded",
		"world_id", g.WorldID(),
		"objects", b.result.Objects,
		"players", len(m.Players))
	return &b.result, nil
}

type builder struct {
	m      *Manifest
	reg    *command.Registry
	tx     *world.Tx
	refs   map[string]ulid.ULID
	owned  []ulid.ULID // transferred to the first wizard at the end
	result Result
}

func (b *builder) ref(name string) ulid.ULID {
	return b.refs[strings.ToLower(name)]
}

func (b *builder) build(hashes []string) error {
	root, err := b.tx.CreateRoot(RootName)
	if err != nil {
		return err
	}
	b.result.Root = root
	b.refs[RootName] = root
	b.owned = append(b.owned, root)
	for _, spec := range rootVerbs {
		verb, err := spec.build(b.reg)
		if err != nil {
			return err
		}
		if err := b.tx.DefineVerb(root, verb); err != nil {
			return err
		}
	}

	if err := b.prototypes(); err != nil {
		return err
	}
	if err := b.rooms(); err != nil {
		return err
	}
	if err := b.players(hashes); err != nil {
		return err
	}
	for _, id := range b.owned {
		if err := b.tx.SetOwner(id, b.result.Owner); err != nil {
			return err
		}
	}
	return b.objects()
}

func (b *builder) prototypes() error {
	for _, p := range prototypes {
		verbs, err := buildVerbs(b.reg, p.verbs)
		if err != nil {
			return err
		}
		parents := []ulid.ULID{b.result.Root}
		if p.parent != "" {
			parents = []ulid.ULID{b.ref(p.parent)}
		}
		id, err := b.tx.CreateObject(world.NewObject{
			Name:    p.name,
			Parents: parents,
			Verbs:   verbs,
		})
		if err != nil {
			return oops.With("prototype", p.name).Wrap(err)
		}
		b.refs[p.name] = id
		b.owned = append(b.owned, id)
	}
	return nil
}

func (b *builder) rooms() error {
	for _, r := range b.m.Rooms {
		id, err := b.tx.CreateObject(world.NewObject{
			Name:    r.Name,
			Parents: []ulid.ULID{b.ref(ProtoRoom)},
			Props:   describe(nil, r.Description),
		})
		if err != nil {
			return oops.With("room", r.Key).Wrap(err)
		}
		b.refs[strings.ToLower(r.Key)] = id
		b.owned = append(b.owned, id)
	}
	start := b.ref(b.m.StartRoom)
	b.result.StartRoom = start
	if err := b.tx.SetProperty(b.result.Root, world.PropStartRoom, world.Ref(start)); err != nil {
		return err
	}
	if b.m.Motd != "" {
		if err := b.tx.SetProperty(b.result.Root, world.PropMotd, world.String(b.m.Motd)); err != nil {
			return err
		}
	}

	for _, r := range b.m.Rooms {
		for _, e := range r.Exits {
			aliases := e.Aliases
			if len(aliases) == 0 {
				if short, ok := command.Abbreviation(e.Name); ok {
					aliases = []string{short}
				}
			}
			props := describe(map[string]world.Value{
				world.PropDestination: world.Ref(b.ref(e.To)),
			}, e.Description)
			id, err := b.tx.CreateObject(world.NewObject{
				Name:     e.Name,
				Aliases:  aliases,
				Parents:  []ulid.ULID{b.ref(ProtoExit)},
				Location: b.ref(r.Key),
				Props:    props,
			})
			if err != nil {
				return oops.With("room", r.Key).With("exit", e.Name).Wrap(err)
			}
			b.owned = append(b.owned, id)
		}
	}
	return nil
}

func (b *builder) players(hashes []string) error {
	for i, p := range b.m.Players {
		level, err := p.level()
		if err != nil {
			return oops.Code(CodeInvalidManifest).With("player", p.Name).Wrap(err)
		}
		loc := b.result.StartRoom
		if p.Location != "" {
			loc = b.ref(p.Location)
		}
		id, err := b.tx.CreateObject(world.NewObject{
			Name:     p.Name,
			Parents:  []ulid.ULID{b.ref(levelPrototype(level))},
			Location: loc,
			Player:   true,
			Level:    level,
			Props:    describe(nil, p.Description),
		})
		if err != nil {
			return oops.With("player", p.Name).Wrap(err)
		}
		if err := b.tx.SetPasswordHash(id, hashes[i]); err != nil {
			return err
		}
		b.refs[strings.ToLower(p.Name)] = id
		if level == access.LevelWizard && b.result.Owner == (ulid.ULID{}) {
			b.result.Owner = id
		}
	}
	if b.result.Owner == (ulid.ULID{}) {
		return invalid("at least one wizard is required")
	}
	return nil
}

func (b *builder) objects() error {
	for _, t := range b.m.Objects {
		parent := t.Parent
		if parent == "" {
			parent = ProtoThing
		}
		loc := b.result.StartRoom
		if t.Location != "" {
			loc = b.ref(t.Location)
		}
		props := make(map[string]world.Value, len(t.Properties)+1)
		for name, raw := range t.Properties {
			val, err := world.FromJSON(raw)
			if err != nil {
				return oops.With("object", t.Key).With("property", name).Wrap(err)
			}
			props[name] = val
		}
		verbs, err := buildVerbs(b.reg, t.Verbs)
		if err != nil {
			return oops.With("object", t.Key).Wrap(err)
		}
		id, err := b.tx.CreateObject(world.NewObject{
			Name:     t.Name,
			Aliases:  t.Aliases,
			Parents:  []ulid.ULID{b.ref(parent)},
			Owner:    b.result.Owner,
			Location: loc,
			Props:    describe(props, t.Description),
			Verbs:    verbs,
		})
		if err != nil {
			return oops.With("object", t.Key).Wrap(err)
		}
		b.refs[strings.ToLower(t.Key)] = id
	}
	return nil
}

func describe(props map[string]world.Value, desc string) map[string]world.Value {
	if desc == "" {
		return props
	}
	if props == nil {
		props = make(map[string]world.Value, 1)
	}
	props[world.PropDescription] = world.String(desc)
	return props
}

func buildVerbs(reg *command.Registry, specs []VerbSpec) ([]*world.Verb, error) {
	verbs := make([]*world.Verb, 0, len(specs))
	for _, spec := range specs {
		verb, err := spec.build(reg)
		if err != nil {
			return nil, err
		}
		verbs = append(verbs, verb)
	}
	return verbs, nil
}

// build turns a manifest verb entry into a verb, filling unset fields from the
// behavior's defaults.
func (s VerbSpec) build(reg *command.Registry) (*world.Verb, error) {
	behavior, ok := reg.Get(s.Behavior)
	if !ok {
		return nil, oops.Code(CodeUnknownBehavior).
			With("verb", s.Name).
			With("behavior", s.Behavior).
			Errorf("verb %s names unknown behavior %s", s.Name, s.Behavior)
	}
	if err := s.validate(); err != nil {
		return nil, err
	}
	verb := behavior.Verb(s.Name, s.Aliases...)
	if s.Action != "" {
		verb.Action = access.ActionKind(s.Action)
	}
	if s.Dobj != "" {
		verb.Dobj, _ = world.ParseArgSpec(s.Dobj)
	}
	if s.Iobj != "" {
		verb.Iobj, _ = world.ParseArgSpec(s.Iobj)
	}
	if len(s.Preps) > 0 {
		verb.Preps = slices.Clone(s.Preps)
	}
	if err := verb.Validate(); err != nil {
		return nil, oops.Code(CodeInvalidManifest).With("verb", s.Name).Wrap(err)
	}
	return verb, nil
}
