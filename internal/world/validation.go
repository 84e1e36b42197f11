// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Azimuth Contributors

package world

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Validation limits for world objects.
const (
	MaxNameLength        = 100
	MaxDescriptionLength = 4000
	MaxAliasCount        = 10
	MaxAliasLength       = 50
	MaxPropertyName      = 64

	MinPlayerNameLength = 2
	MaxPlayerNameLength = 32
)

// reservedPlayerNames cannot be registered.
var reservedPlayerNames = map[string]bool{
	"me": true, "here": true, "id": true, "class": true,
	"all": true, "everyone": true, "nobody": true,
}

// ValidateName checks that a name is valid.
// Names must be non-empty, valid UTF-8, no control characters, and within length limit.
func ValidateName(name string) error {
	if strings.TrimSpace(name) == "" {
		return &ValidationError{Field: "name", Message: "cannot be empty"}
	}
	if !utf8.ValidString(name) {
		return &ValidationError{Field: "name", Message: "must be valid UTF-8"}
	}
	if len(name) > MaxNameLength {
		return &ValidationError{Field: "name", Message: fmt.Sprintf("exceeds maximum length of %d", MaxNameLength)}
	}
	if hasControlChars(name) {
		return &ValidationError{Field: "name", Message: "cannot contain control characters"}
	}
	return nil
}

var playerNameRegex = regexp.MustCompile(`^[\p{L}][\p{L}\p{N}_]*$`)

// ValidatePlayerName checks a name for registration: one word of letters,
// digits and underscores starting with a letter, not reserved.
func ValidatePlayerName(name string) error {
	if name == "" {
		return &ValidationError{Field: "name", Message: "cannot be empty"}
	}
	if len(name) < MinPlayerNameLength {
		return &ValidationError{Field: "name", Message: fmt.Sprintf("must be at least %d characters", MinPlayerNameLength)}
	}
	if len(name) > MaxPlayerNameLength {
		return &ValidationError{Field: "name", Message: fmt.Sprintf("must be at most %d characters", MaxPlayerNameLength)}
	}
	if !playerNameRegex.MatchString(name) {
		return &ValidationError{Field: "name", Message: "must be one word of letters, digits and underscores"}
	}
	if reservedPlayerNames[strings.ToLower(name)] {
		return &ValidationError{Field: "name", Message: "is reserved"}
	}
	return nil
}

// ValidateDescription checks that a description is valid.
// Descriptions may be empty, must be valid UTF-8, no control characters (except newline/tab), and within length limit.
func ValidateDescription(desc string) error {
	if desc == "" {
		return nil
	}
	if !utf8.ValidString(desc) {
		return &ValidationError{Field: "description", Message: "must be valid UTF-8"}
	}
	if len(desc) > MaxDescriptionLength {
		return &ValidationError{Field: "description", Message: fmt.Sprintf("exceeds maximum length of %d", MaxDescriptionLength)}
	}
	if hasControlCharsExceptWhitespace(desc) {
		return &ValidationError{Field: "description", Message: "cannot contain control characters (except newline/tab)"}
	}
	return nil
}

// ValidateAliases checks that aliases are valid.
func ValidateAliases(aliases []string) error {
	if len(aliases) > MaxAliasCount {
		return &ValidationError{Field: "aliases", Message: fmt.Sprintf("exceeds maximum count of %d", MaxAliasCount)}
	}
	for i, alias := range aliases {
		if alias == "" {
			return &ValidationError{Field: "aliases", Message: fmt.Sprintf("alias %d cannot be empty", i)}
		}
		if !utf8.ValidString(alias) {
			return &ValidationError{Field: "aliases", Message: fmt.Sprintf("alias %d must be valid UTF-8", i)}
		}
		if len(alias) > MaxAliasLength {
			return &ValidationError{Field: "aliases", Message: fmt.Sprintf("alias %d exceeds maximum length of %d", i, MaxAliasLength)}
		}
		if hasControlChars(alias) {
			return &ValidationError{Field: "aliases", Message: fmt.Sprintf("alias %d cannot contain control characters", i)}
		}
	}
	return nil
}

// ValidatePropertyName checks that a property name is an identifier.
func ValidatePropertyName(name string) error {
	if name == "" {
		return &ValidationError{Field: "property", Message: "cannot be empty"}
	}
	if len(name) > MaxPropertyName {
		return &ValidationError{Field: "property", Message: fmt.Sprintf("exceeds maximum length of %d", MaxPropertyName)}
	}
	if !isValidIdentifier(name) {
		return &ValidationError{Field: "property", Message: fmt.Sprintf("%q is not a valid identifier", name)}
	}
	return nil
}

func hasControlChars(s string) bool {
	for _, r := range s {
		if unicode.IsControl(r) {
			return true
		}
	}
	return false
}

// hasControlCharsExceptWhitespace returns true if the string contains control characters
// other than newline, carriage return, and tab.
func hasControlCharsExceptWhitespace(s string) bool {
	for _, r := range s {
		if unicode.IsControl(r) && r != '\n' && r != '\r' && r != '\t' {
			return true
		}
	}
	return false
}

// isValidIdentifier returns true if s is alphanumeric plus underscore, starting with a letter.
func isValidIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		if i == 0 {
			if !unicode.IsLetter(r) && r != '_' {
				return false
			}
		} else if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_' {
			return false
		}
	}
	return true
}
