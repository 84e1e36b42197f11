// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Azimuth Contributors

package engine

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"

	"github.com/azimuth-mud/azimuth/internal/core"
)

// Conn is one client connection as seen by a transport adapter.
type Conn interface {
	core.Handle
	// ReadLine blocks for the next line of input without its terminator.
	ReadLine() (string, error)
	// Send writes one output event to the client.
	Send(event core.Event) error
}

// Serve runs a connection until the client quits, the connection fails,
// ctx is cancelled, or the engine shuts down. Lines are handled one at a time in arrival order, and
// output is written by a separate goroutine draining the session's outbox.
func (e *Engine) Serve(ctx context.Context, conn Conn, transport string) {
	if e.metrics != nil {
		e.metrics.ConnectionsTotal.WithLabelValues(transport).Inc()
	}
	sid := e.Connect(conn)
	outbox, _ := e.sessions.Outbox(sid)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for event := range outbox {
			if err := conn.Send(event); err != nil {
				slog.Debug("failed to send event",
					"session_id", sid.String(), "transport", transport, "error", err)
			}
		}
	}()

	lines := make(chan string)
	readErr := make(chan error, 1)
	go func() {
		for {
			line, err := conn.ReadLine()
			if err != nil {
				readErr <- err
				return
			}
			select {
			case lines <- line:
			case <-ctx.Done():
				return
			}
		}
	}()

	defer func() {
		// Disconnect closes the outbox; wait for queued output before closing.
		e.Disconnect(context.WithoutCancel(ctx), sid)
		wg.Wait()
		if err := conn.Close(); err != nil {
			slog.Debug("error closing connection", "session_id", sid.String(), "error", err)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-e.closing:
			return
		case err := <-readErr:
			if !errors.Is(err, io.EOF) {
				slog.Debug("connection read error",
					"session_id", sid.String(), "transport", transport, "error", err)
			}
			return
		case line := <-lines:
			if e.HandleLine(ctx, sid, line) {
				return
			}
		}
	}
}
