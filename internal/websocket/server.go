// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Azimuth Contributors

// Package websocket serves the world to browser clients. Each text frame
// carries one command; each output event goes back as one JSON frame.
package websocket

import (
	"log/slog"
	"net/http"
	"time"

	gws "github.com/gorilla/websocket"

	"github.com/azimuth-mud/azimuth/internal/engine"
)

// Transport is the connection label used in logs and metrics.
const Transport = "websocket"

// Default deadlines. Clients that stay silent past ReadTimeout are dropped.
const (
	DefaultReadTimeout  = 30 * time.Minute
	DefaultWriteTimeout = 5 * time.Second
)

// Server upgrades HTTP requests and hands the connections to the engine.
type Server struct {
	engine       *engine.Engine
	upgrader     gws.Upgrader
	readTimeout  time.Duration
	writeTimeout time.Duration
}

// Option configures a Server.
type Option func(*Server)

// WithAllowedOrigins restricts upgrades to the listed Origin headers.
// Without it every origin is accepted.
func WithAllowedOrigins(origins ...string) Option {
	return func(s *Server) {
		allowed := make(map[string]bool, len(origins))
		for _, o := range origins {
			allowed[o] = true
		}
		s.upgrader.CheckOrigin = func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || allowed[origin]
		}
	}
}

// WithTimeouts overrides the read and write deadlines.
func WithTimeouts(read, write time.Duration) Option {
	return func(s *Server) {
		s.readTimeout = read
		s.writeTimeout = write
	}
}

// NewServer creates a websocket endpoint backed by eng.
func NewServer(eng *engine.Engine, opts ...Option) *Server {
	s := &Server{
		engine: eng,
		upgrader: gws.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		readTimeout:  DefaultReadTimeout,
		writeTimeout: DefaultWriteTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ServeHTTP upgrades the request and runs the session until it ends.
// Sessions are stopped by engine shutdown, which closes their connections.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.DebugContext(r.Context(), "websocket upgrade failed",
			"remote_addr", r.RemoteAddr, "error", err)
		return
	}
	conn.SetReadLimit(64 * 1024)
	slog.DebugContext(r.Context(), "websocket connection opened", "remote_addr", r.RemoteAddr)
	s.engine.Serve(r.Context(), NewConn(conn, s.readTimeout, s.writeTimeout), Transport)
}
