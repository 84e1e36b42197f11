// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Azimuth Contributors

package command

import (
	"errors"
	"strings"

	"github.com/samber/oops"

	"github.com/azimuth-mud/azimuth/internal/access"
	"github.com/azimuth-mud/azimuth/internal/world"
	"github.com/azimuth-mud/azimuth/pkg/errutil"
)

// Error codes for command dispatch failures. Resolution misses reuse the
// world package codes.
const (
	CodeParseError         = "PARSE_ERROR"
	CodeAmbiguousReference = "AMBIGUOUS_REFERENCE"
	CodeInvalidArgs        = "INVALID_ARGS"
	CodeWorldError         = "WORLD_ERROR"
	CodeRateLimited        = "RATE_LIMITED"
	CodeNotLoggedIn        = "NOT_LOGGED_IN"
	CodeInternal           = "INTERNAL_ERROR"
)

// Default player-facing messages.
const (
	MsgNotUnderstood    = "I don't understand that."
	MsgCantSee          = "You can't see anything like that here."
	MsgPermissionDenied = "You don't have permission to do that."
	MsgRateLimited      = "Too many commands. Please slow down."
	MsgSomethingWrong   = "Something went wrong. Try again."
)

// ErrParse creates a parse error.
func ErrParse(reason string) error {
	return oops.Code(CodeParseError).
		With("reason", reason).
		Errorf("parse error: %s", reason)
}

// ErrObjectNotFound creates a reference miss for text.
func ErrObjectNotFound(text string) error {
	return oops.Code(world.CodeObjectNotFound).
		With("reference", text).
		Errorf("no object matches %q", text)
}

// ErrAmbiguousReference creates an error listing the names text could mean.
func ErrAmbiguousReference(text string, names []string) error {
	return oops.Code(CodeAmbiguousReference).
		With("reference", text).
		With("candidates", names).
		Errorf("%q is ambiguous", text)
}

// ErrVerbNotFound creates the error for a command nothing in scope handles.
func ErrVerbNotFound(verb string) error {
	return oops.Code(world.CodeVerbNotFound).
		With("verb", verb).
		Errorf("verb %q not found", verb)
}

// ErrInvalidArgs creates an error carrying the usage line.
func ErrInvalidArgs(verb, usage string) error {
	return oops.Code(CodeInvalidArgs).
		With("verb", verb).
		With("usage", usage).
		Errorf("invalid arguments")
}

// WorldError creates an error with a player-facing message. The cause is
// kept as context rather than wrapped so its code does not shadow this one.
func WorldError(message string, cause error) error {
	builder := oops.Code(CodeWorldError).With("message", message)
	if cause != nil {
		return builder.With("cause", cause.Error()).Errorf("%s", message)
	}
	return builder.Errorf("%s", message)
}

// ErrRateLimited creates an error for rate limiting.
func ErrRateLimited(cooldownMs int64) error {
	return oops.Code(CodeRateLimited).
		With("cooldown_ms", cooldownMs).
		Errorf("rate limited")
}

// ErrNotLoggedIn is returned when a world command arrives before login.
func ErrNotLoggedIn() error {
	return oops.Code(CodeNotLoggedIn).Errorf("session is not logged in")
}

// PlayerMessage maps an error to the text shown to the player. Unknown
// errors get a generic message; the caller logs them.
func PlayerMessage(err error) string {
	if err == nil {
		return MsgSomethingWrong
	}
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return MsgSomethingWrong
	}
	ctx := oopsErr.Context()

	switch errutil.Code(err) {
	case CodeParseError, world.CodeVerbNotFound:
		return MsgNotUnderstood
	case world.CodeObjectNotFound:
		return MsgCantSee
	case CodeAmbiguousReference:
		if names, ok := ctx["candidates"].([]string); ok && len(names) > 0 {
			return "I don't know which one you mean: " + strings.Join(names, ", ") + "."
		}
		return "I don't know which one you mean."
	case access.CodePermissionDenied:
		return MsgPermissionDenied
	case world.CodePropertyNotFound:
		return "That object has no such property."
	case world.CodeCycleDetected:
		return "That would make an object its own ancestor."
	case world.CodeInvalidParent:
		return "That parent does not exist."
	case world.CodeInvalidLocation:
		return "You can't put something there."
	case world.CodeHasChildren:
		return "That object still has children."
	case world.CodeInvalidObject:
		var verr *world.ValidationError
		if errors.As(err, &verr) {
			return "Invalid " + verr.Field + ": " + verr.Message + "."
		}
		return "That is not a valid change."
	case CodeInvalidArgs:
		if usage, ok := ctx["usage"].(string); ok && usage != "" {
			return "Usage: " + usage
		}
		return "Invalid arguments."
	case CodeWorldError:
		if msg, ok := ctx["message"].(string); ok && msg != "" {
			return msg
		}
		return MsgSomethingWrong
	case CodeRateLimited:
		return MsgRateLimited
	case CodeNotLoggedIn:
		return "You are not logged in. Use: login <name> <password>"
	default:
		return MsgSomethingWrong
	}
}

// IsUserError reports whether err is an expected, player-caused failure
// that does not need to be logged as a server error.
func IsUserError(err error) bool {
	switch errutil.Code(err) {
	case CodeParseError, CodeAmbiguousReference, CodeInvalidArgs, CodeWorldError,
		CodeRateLimited, CodeNotLoggedIn, access.CodePermissionDenied,
		world.CodeObjectNotFound, world.CodeVerbNotFound, world.CodePropertyNotFound,
		world.CodeCycleDetected, world.CodeInvalidParent, world.CodeInvalidLocation,
		world.CodeHasChildren, world.CodeInvalidObject:
		return true
	default:
		return false
	}
}

func errReadOnly() error {
	return oops.Code(world.CodeReadOnly).Wrap(world.ErrReadOnly)
}
