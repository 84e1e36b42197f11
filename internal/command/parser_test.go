// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Azimuth Contributors

package command

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/azimuth-mud/azimuth/pkg/errutil"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		wantVerb string
		wantArgs string
		wantDobj string
		wantPrep string
		wantIobj string
	}{
		{name: "bare verb", input: "look", wantVerb: "look"},
		{name: "verb is lower-cased", input: "LOOK", wantVerb: "look"},
		{name: "surrounding whitespace", input: "  look  ", wantVerb: "look"},
		{name: "direct object", input: "get brass lamp", wantVerb: "get", wantArgs: "brass lamp", wantDobj: "brass lamp"},
		{
			name: "preposition splits objects", input: "put lamp in wooden box",
			wantVerb: "put", wantArgs: "lamp in wooden box", wantDobj: "lamp", wantPrep: "in", wantIobj: "wooden box",
		},
		{
			name: "first preposition wins", input: "put lamp on table with care",
			wantVerb: "put", wantArgs: "lamp on table with care", wantDobj: "lamp", wantPrep: "on", wantIobj: "table with care",
		},
		{
			name: "preposition is case-insensitive", input: "put lamp IN box",
			wantVerb: "put", wantArgs: "lamp IN box", wantDobj: "lamp", wantPrep: "in", wantIobj: "box",
		},
		{
			name: "quotes keep a preposition inside a name", input: `get "jack in the box"`,
			wantVerb: "get", wantArgs: `"jack in the box"`, wantDobj: "jack in the box",
		},
		{name: "say shorthand", input: `"hello there`, wantVerb: "say", wantArgs: "hello there", wantDobj: "hello there"},
		{name: "apostrophe shorthand", input: "'hi", wantVerb: "say", wantArgs: "hi", wantDobj: "hi"},
		{name: "emote shorthand", input: ":waves", wantVerb: "emote", wantArgs: "waves", wantDobj: "waves"},
		{name: "semicolon shorthand", input: ";grins", wantVerb: "emote", wantArgs: "grins", wantDobj: "grins"},
		{name: "direction abbreviation", input: "n", wantVerb: "north"},
		{name: "diagonal abbreviation", input: "SW", wantVerb: "southwest"},
		{name: "abbreviation with args stays", input: "n foo", wantVerb: "n", wantArgs: "foo", wantDobj: "foo"},
		{name: "tab separates verb", input: "get\tlamp", wantVerb: "get", wantArgs: "lamp", wantDobj: "lamp"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd, err := Parse(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.wantVerb, cmd.Verb)
			assert.Equal(t, tt.wantArgs, cmd.Args)
			assert.Equal(t, tt.wantDobj, cmd.Dobj)
			assert.Equal(t, tt.wantPrep, cmd.Prep)
			assert.Equal(t, tt.wantIobj, cmd.Iobj)
			assert.Equal(t, tt.input, cmd.Raw)
		})
	}
}

func TestParse_Rejects(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{name: "empty", input: ""},
		{name: "whitespace only", input: " \t "},
		{name: "too long", input: "say " + strings.Repeat("a", MaxInputLength)},
		{name: "control character", input: "say hi\x07"},
		{name: "escape sequence", input: "look\x1b[2J"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.input)
			require.Error(t, err)
			errutil.AssertErrorCode(t, err, CodeParseError)
		})
	}
}

func TestSplitWords(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{in: "", want: nil},
		{in: "a b  c", want: []string{"a", "b", "c"}},
		{in: `"red ball" here`, want: []string{"red ball", "here"}},
		{in: `say "unterminated quote`, want: []string{"say", "unterminated quote"}},
		{in: `""`, want: []string{""}},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, splitWords(tt.in))
		})
	}
}

func TestAbbreviation(t *testing.T) {
	short, ok := Abbreviation("North")
	assert.True(t, ok)
	assert.Equal(t, "n", short)

	short, ok = Abbreviation("southwest")
	assert.True(t, ok)
	assert.Equal(t, "sw", short)

	_, ok = Abbreviation("sideways")
	assert.False(t, ok)
}
