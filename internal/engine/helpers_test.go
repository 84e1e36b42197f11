// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Azimuth Contributors

package engine_test

import (
	"context"
	"io"
	"strings"
	"sync"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/require"

	"github.com/azimuth-mud/azimuth/internal/auth"
	"github.com/azimuth-mud/azimuth/internal/command"
	"github.com/azimuth-mud/azimuth/internal/command/handlers"
	"github.com/azimuth-mud/azimuth/internal/core"
	"github.com/azimuth-mud/azimuth/internal/engine"
	"github.com/azimuth-mud/azimuth/internal/seed"
	"github.com/azimuth-mud/azimuth/internal/world"
)

// tb is satisfied by *testing.T and GinkgoT().
type tb interface {
	require.TestingT
	Helper()
}

var testHasher = auth.NewArgon2idHasherWithParams(auth.Params{Time: 1, Memory: 64, Threads: 1, SaltLen: 8, KeyLen: 16})

type fixture struct {
	graph  *world.Graph
	engine *engine.Engine
	seeded *seed.Result
}

// newFixture seeds the default world and builds an engine over it.
func newFixture(t tb, opts ...engine.Option) *fixture {
	t.Helper()
	m, err := seed.Default()
	require.NoError(t, err)
	reg := command.NewRegistry()
	handlers.RegisterAll(reg)

	g := world.New(m.World)
	res, err := seed.Bootstrap(g, m, reg, testHasher)
	require.NoError(t, err)

	e, err := engine.New(g, reg, append([]engine.Option{engine.WithHasher(testHasher)}, opts...)...)
	require.NoError(t, err)
	return &fixture{graph: g, engine: e, seeded: res}
}

func (f *fixture) find(t tb, name string) ulid.ULID {
	t.Helper()
	var ids []ulid.ULID
	require.NoError(t, f.graph.View(func(v *world.View) error {
		ids = v.FindByName(name)
		return nil
	}))
	require.Len(t, ids, 1, name)
	return ids[0]
}

func (f *fixture) location(id ulid.ULID) ulid.ULID {
	var loc ulid.ULID
	_ = f.graph.View(func(v *world.View) error {
		loc = v.Location(id)
		return nil
	})
	return loc
}

// client drives one session directly through the engine.
type client struct {
	e   *engine.Engine
	sid ulid.ULID
	out <-chan core.Event
}

func (f *fixture) connect(t tb) *client {
	t.Helper()
	sid := f.engine.Connect(nil)
	out, ok := f.engine.Sessions().Outbox(sid)
	require.True(t, ok)
	c := &client{e: f.engine, sid: sid, out: out}
	c.drain()
	return c
}

// send handles one line and returns everything this session was shown.
func (c *client) send(line string) string {
	c.e.HandleLine(context.Background(), c.sid, line)
	return c.drain()
}

func (c *client) drain() string {
	var lines []string
	for {
		select {
		case ev, ok := <-c.out:
			if !ok {
				return strings.Join(lines, "\n")
			}
			lines = append(lines, ev.Text)
		default:
			return strings.Join(lines, "\n")
		}
	}
}

func (c *client) login(t tb, name, password string) string {
	t.Helper()
	out := c.send("connect " + name + " " + password)
	require.Contains(t, out, "Welcome back, ")
	return out
}

// pipeConn is an in-memory engine.Conn.
type pipeConn struct {
	in     chan string
	out    chan core.Event
	closed chan struct{}
	once   sync.Once
}

func newPipeConn() *pipeConn {
	return &pipeConn{
		in:     make(chan string),
		out:    make(chan core.Event, 64),
		closed: make(chan struct{}),
	}
}

func (p *pipeConn) ReadLine() (string, error) {
	select {
	case line := <-p.in:
		return line, nil
	case <-p.closed:
		return "", io.EOF
	}
}

func (p *pipeConn) Send(ev core.Event) error {
	select {
	case p.out <- ev:
		return nil
	case <-p.closed:
		return io.ErrClosedPipe
	}
}

func (p *pipeConn) Close() error {
	p.once.Do(func() { close(p.closed) })
	return nil
}

func (p *pipeConn) RemoteAddr() string { return "pipe" }
