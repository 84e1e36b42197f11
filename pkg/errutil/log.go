// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Azimuth Contributors

// Package errutil holds helpers for oops errors shared across packages.
package errutil

import (
	"context"
	"errors"
	"log/slog"

	"github.com/samber/oops"
)

// Code returns the oops code carried by err, or "" when there is none.
func Code(err error) string {
	if oopsErr, ok := oops.AsOops(err); ok {
		if code, ok := any(oopsErr.Code()).(string); ok {
			return code
		}
	}
	return ""
}

// HasCode reports whether err carries code.
func HasCode(err error, code string) bool {
	return err != nil && Code(err) == code
}

// LogError logs err at error level. Oops errors contribute their code and
// context as attributes; plain errors are logged as a string.
func LogError(ctx context.Context, logger *slog.Logger, msg string, err error, attrs ...any) {
	if logger == nil {
		logger = slog.Default()
	}
	if errors.Is(err, context.Canceled) {
		logger.DebugContext(ctx, msg, append(attrs, "error", err.Error())...)
		return
	}
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		logger.ErrorContext(ctx, msg, append(attrs, "error", err)...)
		return
	}
	attrs = append(attrs, "error", oopsErr.Error())
	if code := Code(err); code != "" {
		attrs = append(attrs, "code", code)
	}
	if c := oopsErr.Context(); len(c) > 0 {
		attrs = append(attrs, "context", c)
	}
	logger.ErrorContext(ctx, msg, attrs...)
}
