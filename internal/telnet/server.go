// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Azimuth Contributors

// Package telnet serves the world over line-oriented TCP.
package telnet

import (
	"context"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/samber/oops"

	"github.com/azimuth-mud/azimuth/internal/engine"
)

// Transport is the connection label used in logs and metrics.
const Transport = "telnet"

// DefaultWriteTimeout bounds a single write to a slow client.
const DefaultWriteTimeout = 10 * time.Second

// Server is a telnet server.
type Server struct {
	addr         string
	engine       *engine.Engine
	writeTimeout time.Duration

	mu       sync.RWMutex
	listener net.Listener
	conns    sync.WaitGroup
}

// NewServer creates a new telnet server.
func NewServer(addr string, eng *engine.Engine) *Server {
	return &Server{addr: addr, engine: eng, writeTimeout: DefaultWriteTimeout}
}

// Addr returns the server's listen address.
func (s *Server) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Run listens and serves connections until ctx is cancelled. It returns
// once every connection has been closed.
func (s *Server) Run(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return oops.Code("TELNET_LISTEN_FAILED").With("addr", s.addr).Wrap(err)
	}

	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()

	slog.Info("telnet server started", "addr", listener.Addr().String())

	stop := context.AfterFunc(ctx, func() {
		if err := listener.Close(); err != nil {
			slog.Debug("error closing listener", "error", err)
		}
	})
	defer stop()
	defer s.conns.Wait()

	for {
		conn, err := listener.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				slog.Error("accept failed", "error", err)
				continue
			}
		}
		s.conns.Add(1)
		go func() {
			defer s.conns.Done()
			slog.Debug("telnet connection opened", "remote_addr", conn.RemoteAddr().String())
			s.engine.Serve(ctx, NewConn(conn, s.writeTimeout), Transport)
		}()
	}
}
