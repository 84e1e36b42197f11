// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Azimuth Contributors

package world

import (
	"errors"
	"fmt"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Error codes for world graph failures.
const (
	CodeObjectNotFound   = "OBJECT_NOT_FOUND"
	CodePropertyNotFound = "PROPERTY_NOT_FOUND"
	CodeVerbNotFound     = "VERB_NOT_FOUND"
	CodeCycleDetected    = "CYCLE_DETECTED"
	CodeInvalidParent    = "INVALID_PARENT"
	CodeInvalidLocation  = "INVALID_LOCATION"
	CodeHasChildren      = "HAS_CHILDREN"
	CodeInvalidObject    = "INVALID_OBJECT"
	CodeReadOnly         = "READ_ONLY"
)

// ErrReadOnly is returned when a mutation is attempted through a View.
var ErrReadOnly = errors.New("world view is read-only")

// ValidationError represents an input validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Code returns the oops error code carried by err, or "" if none.
func Code(err error) string {
	if err == nil {
		return ""
	}
	if oopsErr, ok := oops.AsOops(err); ok {
		if code, ok := any(oopsErr.Code()).(string); ok {
			return code
		}
	}
	return ""
}

// HasCode reports whether err carries the given code.
func HasCode(err error, code string) bool {
	return Code(err) == code
}

func errObjectNotFound(id ulid.ULID) error {
	return oops.Code(CodeObjectNotFound).
		With("object_id", id.String()).
		Errorf("object %s not found", id)
}

func errPropertyNotFound(id ulid.ULID, name string) error {
	return oops.Code(CodePropertyNotFound).
		With("object_id", id.String()).
		With("property", name).
		Errorf("property %q not found on %s", name, id)
}

func errVerbNotFound(name string) error {
	return oops.Code(CodeVerbNotFound).
		With("verb", name).
		Errorf("verb %q not found", name)
}
