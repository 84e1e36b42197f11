// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Azimuth Contributors

// Package seed describes an initial world in YAML and builds it into an
// empty world graph.
package seed

import (
	_ "embed"
	"os"
	"strings"

	"github.com/samber/oops"
	"gopkg.in/yaml.v3"

	"github.com/azimuth-mud/azimuth/internal/access"
	"github.com/azimuth-mud/azimuth/internal/world"
)

// Error codes.
const (
	CodeInvalidManifest = "SEED_INVALID_MANIFEST"
	CodeAlreadySeeded   = "SEED_ALREADY_SEEDED"
	CodeUnknownBehavior = "SEED_UNKNOWN_BEHAVIOR"
)

//go:embed default.yaml
var defaultManifest []byte

// Manifest is a world description loaded from YAML.
type Manifest struct {
	World     string   `yaml:"world" json:"world" jsonschema:"minLength=1,description=World identifier"`
	StartRoom string   `yaml:"start_room" json:"start_room" jsonschema:"minLength=1,description=Key of the room new players start in"`
	Motd      string   `yaml:"motd,omitempty" json:"motd,omitempty" jsonschema:"description=Message shown before login"`
	Rooms     []Room   `yaml:"rooms" json:"rooms" jsonschema:"minItems=1"`
	Objects   []Thing  `yaml:"objects,omitempty" json:"objects,omitempty"`
	Players   []Player `yaml:"players" json:"players" jsonschema:"minItems=1"`
}

// Room is a place with exits to other rooms.
type Room struct {
	Key         string `yaml:"key" json:"key" jsonschema:"minLength=1"`
	Name        string `yaml:"name" json:"name" jsonschema:"minLength=1"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
	Exits       []Exit `yaml:"exits,omitempty" json:"exits,omitempty"`
}

// Exit leads from its room to the room keyed To. Direction names get their
// abbreviation as an alias when none are listed.
type Exit struct {
	Name        string   `yaml:"name" json:"name" jsonschema:"minLength=1"`
	Aliases     []string `yaml:"aliases,omitempty" json:"aliases,omitempty"`
	To          string   `yaml:"to" json:"to" jsonschema:"minLength=1"`
	Description string   `yaml:"description,omitempty" json:"description,omitempty"`
}

// Thing is any other object. Parent is a prototype ($thing, $container, ...)
// or the key of an object listed earlier; Location is a room key, an
// earlier object key, or a player name.
type Thing struct {
	Key         string         `yaml:"key" json:"key" jsonschema:"minLength=1"`
	Name        string         `yaml:"name" json:"name" jsonschema:"minLength=1"`
	Aliases     []string       `yaml:"aliases,omitempty" json:"aliases,omitempty"`
	Parent      string         `yaml:"parent,omitempty" json:"parent,omitempty" jsonschema:"description=Defaults to $thing"`
	Location    string         `yaml:"location,omitempty" json:"location,omitempty" jsonschema:"description=Defaults to the start room"`
	Description string         `yaml:"description,omitempty" json:"description,omitempty"`
	Properties  map[string]any `yaml:"properties,omitempty" json:"properties,omitempty"`
	Verbs       []VerbSpec     `yaml:"verbs,omitempty" json:"verbs,omitempty"`
}

// VerbSpec attaches a built-in behavior to an object. Unset fields take the
// behavior's defaults.
type VerbSpec struct {
	Name     string   `yaml:"name" json:"name" jsonschema:"minLength=1"`
	Aliases  []string `yaml:"aliases,omitempty" json:"aliases,omitempty"`
	Behavior string   `yaml:"behavior" json:"behavior" jsonschema:"minLength=1"`
	Action   string   `yaml:"action,omitempty" json:"action,omitempty"`
	Dobj     string   `yaml:"dobj,omitempty" json:"dobj,omitempty" jsonschema:"enum=none,enum=this,enum=any"`
	Preps    []string `yaml:"preps,omitempty" json:"preps,omitempty"`
	Iobj     string   `yaml:"iobj,omitempty" json:"iobj,omitempty" jsonschema:"enum=none,enum=this,enum=any"`
}

// Player is a login. The first wizard listed owns the seeded world.
type Player struct {
	Name        string `yaml:"name" json:"name" jsonschema:"minLength=2,maxLength=32"`
	Password    string `yaml:"password" json:"password" jsonschema:"minLength=1"`
	Level       string `yaml:"level,omitempty" json:"level,omitempty" jsonschema:"enum=player,enum=programmer,enum=wizard"`
	Location    string `yaml:"location,omitempty" json:"location,omitempty"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
}

// Default returns the built-in starter world.
func Default() (*Manifest, error) {
	return Parse(defaultManifest)
}

// DefaultYAML returns the raw built-in manifest.
func DefaultYAML() []byte {
	return defaultManifest
}

// Load reads and parses a manifest file.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, oops.Code(CodeInvalidManifest).With("path", path).Wrapf(err, "read seed manifest")
	}
	m, err := Parse(data)
	if err != nil {
		return nil, oops.With("path", path).Wrap(err)
	}
	return m, nil
}

// Parse schema-checks data, decodes it, and checks the references between
// its entries.
func Parse(data []byte) (*Manifest, error) {
	if err := ValidateSchema(data); err != nil {
		return nil, err
	}
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, oops.Code(CodeInvalidManifest).Wrapf(err, "decode seed manifest")
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

func invalid(format string, args ...any) error {
	return oops.Code(CodeInvalidManifest).Errorf(format, args...)
}

// Validate checks that keys are unique and every reference names something
// defined in the manifest. Behavior names are checked by Bootstrap.
func (m *Manifest) Validate() error {
	if strings.TrimSpace(m.World) == "" {
		return invalid("world id is required")
	}
	rooms := make(map[string]bool, len(m.Rooms))
	keys := make(map[string]string)
	claim := func(key, kind string) error {
		k := strings.ToLower(key)
		if prev, ok := keys[k]; ok {
			return invalid("%s %q clashes with %s of the same name", kind, key, prev)
		}
		keys[k] = kind
		return nil
	}

	for _, r := range m.Rooms {
		if err := claim(r.Key, "room"); err != nil {
			return err
		}
		if err := world.ValidateName(r.Name); err != nil {
			return oops.Code(CodeInvalidManifest).With("room", r.Key).Wrap(err)
		}
		rooms[strings.ToLower(r.Key)] = true
	}
	if !rooms[strings.ToLower(m.StartRoom)] {
		return invalid("start room %q is not a room", m.StartRoom)
	}
	for _, r := range m.Rooms {
		for _, e := range r.Exits {
			if !rooms[strings.ToLower(e.To)] {
				return invalid("exit %q in room %q leads to unknown room %q", e.Name, r.Key, e.To)
			}
		}
	}

	wizards := 0
	for _, p := range m.Players {
		if err := world.ValidatePlayerName(p.Name); err != nil {
			return oops.Code(CodeInvalidManifest).With("player", p.Name).Wrap(err)
		}
		if err := claim(p.Name, "player"); err != nil {
			return err
		}
		level, err := p.level()
		if err != nil {
			return oops.Code(CodeInvalidManifest).With("player", p.Name).Wrap(err)
		}
		if level == access.LevelWizard {
			wizards++
		}
		if p.Location != "" && !rooms[strings.ToLower(p.Location)] {
			return invalid("player %q starts in unknown room %q", p.Name, p.Location)
		}
	}
	if wizards == 0 {
		return invalid("at least one wizard is required")
	}

	for _, t := range m.Objects {
		if t.Parent != "" && !IsPrototype(t.Parent) {
			if kind, ok := keys[strings.ToLower(t.Parent)]; !ok || kind != "object" {
				return invalid("object %q has unknown parent %q", t.Key, t.Parent)
			}
		}
		if t.Location != "" {
			if _, ok := keys[strings.ToLower(t.Location)]; !ok {
				return invalid("object %q is in unknown location %q", t.Key, t.Location)
			}
		}
		if err := claim(t.Key, "object"); err != nil {
			return err
		}
		for _, v := range t.Verbs {
			if err := v.validate(); err != nil {
				return oops.Code(CodeInvalidManifest).With("object", t.Key).With("verb", v.Name).Wrap(err)
			}
		}
	}
	return nil
}

func (s VerbSpec) validate() error {
	if _, err := world.ParseArgSpec(s.Dobj); err != nil {
		return err
	}
	if _, err := world.ParseArgSpec(s.Iobj); err != nil {
		return err
	}
	if s.Action != "" && !access.ActionKind(s.Action).Valid() {
		return invalid("unknown action kind %q", s.Action)
	}
	for _, p := range s.Preps {
		if !world.IsPreposition(p) {
			return invalid("unknown preposition %q", p)
		}
	}
	return nil
}

func (p Player) level() (access.Level, error) {
	if p.Level == "" {
		return access.LevelPlayer, nil
	}
	return access.ParseLevel(p.Level)
}
