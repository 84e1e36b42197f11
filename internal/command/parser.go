// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Azimuth Contributors

package command

import (
	"strings"
	"unicode"

	"github.com/azimuth-mud/azimuth/internal/world"
)

// MaxInputLength is the longest command line accepted.
const MaxInputLength = 2048

// ParsedCommand is one command line split into its parts.
//
// Dobj, Prep and Iobj follow the "verb dobj prep iobj" shape: the first
// recognized preposition splits the argument words. Args keeps the raw
// argument text for verbs that take free text.
type ParsedCommand struct {
	Verb  string
	Args  string
	Words []string
	Dobj  string
	Prep  string
	Iobj  string
	Raw   string
}

// directions maps movement abbreviations to exit names.
var directions = map[string]string{
	"n":  "north",
	"s":  "south",
	"e":  "east",
	"w":  "west",
	"ne": "northeast",
	"nw": "northwest",
	"se": "southeast",
	"sw": "southwest",
	"u":  "up",
	"d":  "down",
}

// Abbreviation returns the short form of a direction, e.g. "n" for "north".
func Abbreviation(direction string) (string, bool) {
	direction = strings.ToLower(direction)
	for short, full := range directions {
		if full == direction {
			return short, true
		}
	}
	return "", false
}

// Parse splits raw input into a command. Leading ' or " is shorthand for
// say, leading : or ; for emote, and a lone direction abbreviation expands
// to the direction name.
func Parse(input string) (*ParsedCommand, error) {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return nil, ErrParse("no command provided")
	}
	if len(trimmed) > MaxInputLength {
		return nil, ErrParse("command is too long")
	}
	for _, r := range trimmed {
		if r != '\t' && unicode.IsControl(r) {
			return nil, ErrParse("command contains control characters")
		}
	}

	switch trimmed[0] {
	case '\'', '"':
		trimmed = "say " + trimmed[1:]
	case ':', ';':
		trimmed = "emote " + trimmed[1:]
	}

	verb, args := trimmed, ""
	if idx := strings.IndexAny(trimmed, " \t"); idx != -1 {
		verb = trimmed[:idx]
		args = strings.TrimLeft(trimmed[idx+1:], " \t")
	}
	verb = strings.ToLower(verb)
	if args == "" {
		if full, ok := directions[verb]; ok {
			verb = full
		}
	}

	cmd := &ParsedCommand{
		Verb:  verb,
		Args:  args,
		Words: splitWords(args),
		Raw:   input,
	}
	cmd.Dobj, cmd.Prep, cmd.Iobj = splitPrep(cmd.Words)
	return cmd, nil
}

// splitWords splits on whitespace; a double-quoted run is one word with the
// quotes removed. An unterminated quote runs to the end of the input.
func splitWords(s string) []string {
	var words []string
	var cur strings.Builder
	inQuote, started := false, false
	flush := func() {
		if started {
			words = append(words, cur.String())
		}
		cur.Reset()
		started = false
	}
	for _, r := range s {
		switch {
		case r == '"':
			inQuote = !inQuote
			started = true
		case unicode.IsSpace(r) && !inQuote:
			flush()
		default:
			cur.WriteRune(r)
			started = true
		}
	}
	flush()
	return words
}

func splitPrep(words []string) (dobj, prep, iobj string) {
	for i, w := range words {
		if world.IsPreposition(w) {
			return strings.Join(words[:i], " "), strings.ToLower(w), strings.Join(words[i+1:], " ")
		}
	}
	return strings.Join(words, " "), "", ""
}
