// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Azimuth Contributors

package command

import (
	"errors"
	"testing"

	"github.com/samber/oops"
	"github.com/stretchr/testify/assert"

	"github.com/azimuth-mud/azimuth/internal/access"
	"github.com/azimuth-mud/azimuth/internal/world"
	"github.com/azimuth-mud/azimuth/pkg/errutil"
)

func TestErrAmbiguousReference(t *testing.T) {
	err := ErrAmbiguousReference("lamp", []string{"brass lamp", "oil lamp"})
	errutil.AssertErrorCode(t, err, CodeAmbiguousReference)
	errutil.AssertErrorContext(t, err, "reference", "lamp")
	errutil.AssertErrorContext(t, err, "candidates", []string{"brass lamp", "oil lamp"})
}

func TestWorldError_KeepsOwnCode(t *testing.T) {
	cause := oops.Code(world.CodeInvalidLocation).Errorf("bad destination")
	err := WorldError("You can't go that way.", cause)

	errutil.AssertErrorCode(t, err, CodeWorldError)
	errutil.AssertErrorContext(t, err, "cause", "bad destination")
	assert.Equal(t, "You can't go that way.", PlayerMessage(err))
}

func TestPlayerMessage(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{name: "nil", err: nil, want: MsgSomethingWrong},
		{name: "plain error", err: errors.New("boom"), want: MsgSomethingWrong},
		{name: "parse", err: ErrParse("empty"), want: MsgNotUnderstood},
		{name: "verb not found", err: ErrVerbNotFound("dance"), want: MsgNotUnderstood},
		{name: "object not found", err: ErrObjectNotFound("unicorn"), want: MsgCantSee},
		{
			name: "ambiguous",
			err:  ErrAmbiguousReference("lamp", []string{"brass lamp", "oil lamp"}),
			want: "I don't know which one you mean: brass lamp, oil lamp.",
		},
		{name: "ambiguous without names", err: ErrAmbiguousReference("x", nil), want: "I don't know which one you mean."},
		{name: "permission", err: oops.Code(access.CodePermissionDenied).Errorf("no"), want: MsgPermissionDenied},
		{name: "usage", err: ErrInvalidArgs("get", "get <object>"), want: "Usage: get <object>"},
		{name: "usage missing", err: ErrInvalidArgs("get", ""), want: "Invalid arguments."},
		{name: "rate limited", err: ErrRateLimited(500), want: MsgRateLimited},
		{name: "not logged in", err: ErrNotLoggedIn(), want: "You are not logged in. Use: login <name> <password>"},
		{name: "cycle", err: oops.Code(world.CodeCycleDetected).Errorf("cycle"), want: "That would make an object its own ancestor."},
		{name: "has children", err: oops.Code(world.CodeHasChildren).Errorf("children"), want: "That object still has children."},
		{
			name: "validation detail",
			err:  oops.Code(world.CodeInvalidObject).Wrap(&world.ValidationError{Field: "name", Message: "cannot be empty"}),
			want: "Invalid name: cannot be empty.",
		},
		{name: "internal", err: oops.Code(CodeInternal).Errorf("panic"), want: MsgSomethingWrong},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, PlayerMessage(tt.err))
		})
	}
}

func TestIsUserError(t *testing.T) {
	assert.True(t, IsUserError(ErrVerbNotFound("x")))
	assert.True(t, IsUserError(ErrRateLimited(1)))
	assert.True(t, IsUserError(oops.Code(access.CodePermissionDenied).Errorf("no")))
	assert.False(t, IsUserError(oops.Code(CodeInternal).Errorf("panic")))
	assert.False(t, IsUserError(errors.New("disk full")))
	assert.False(t, IsUserError(errReadOnly()))
}
