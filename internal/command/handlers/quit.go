// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Azimuth Contributors

package handlers

import (
	"context"

	"github.com/azimuth-mud/azimuth/internal/command"
)

// QuitHandler ends the actor's session once the goodbye is delivered.
func QuitHandler(ctx context.Context, exec *command.Execution) error {
	writeOutput(ctx, exec, "Goodbye!")
	exec.Quit()
	return nil
}
