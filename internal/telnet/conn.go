// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Azimuth Contributors

package telnet

import (
	"bufio"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/samber/oops"

	"github.com/azimuth-mud/azimuth/internal/core"
)

// MaxLineLength bounds a single input line. Longer lines are cut.
const MaxLineLength = 4096

// Telnet protocol bytes.
const (
	iac  = 255
	dont = 254
	do   = 253
	wont = 252
	will = 251
	sb   = 250
	se   = 240
)

// Conn adapts a TCP connection to engine.Conn. Input is read as lines with
// telnet negotiation stripped; output events are written with CRLF endings.
type Conn struct {
	conn         net.Conn
	reader       *bufio.Reader
	writeTimeout time.Duration

	mu sync.Mutex // serializes writes
}

// NewConn wraps conn. A zero writeTimeout disables write deadlines.
func NewConn(conn net.Conn, writeTimeout time.Duration) *Conn {
	return &Conn{conn: conn, reader: bufio.NewReader(conn), writeTimeout: writeTimeout}
}

// ReadLine returns the next line without its terminator.
func (c *Conn) ReadLine() (string, error) {
	var b strings.Builder
	for {
		ch, err := c.reader.ReadByte()
		if err != nil {
			if b.Len() > 0 {
				return b.String(), nil
			}
			return "", err
		}
		switch ch {
		case '\n':
			return b.String(), nil
		case '\r', 0:
		case iac:
			if err := c.skipCommand(); err != nil {
				return "", err
			}
		case '\b', 0x7f:
			if s := b.String(); s != "" {
				b.Reset()
				b.WriteString(s[:len(s)-1])
			}
		default:
			if b.Len() < MaxLineLength {
				b.WriteByte(ch)
			}
		}
	}
}

// skipCommand consumes the rest of a telnet command after IAC. Option
// negotiation is ignored; the server never asks for any options.
func (c *Conn) skipCommand() error {
	cmd, err := c.reader.ReadByte()
	if err != nil {
		return err
	}
	switch cmd {
	case will, wont, do, dont:
		_, err = c.reader.ReadByte()
		return err
	case sb:
		for {
			ch, err := c.reader.ReadByte()
			if err != nil {
				return err
			}
			if ch != iac {
				continue
			}
			next, err := c.reader.ReadByte()
			if err != nil {
				return err
			}
			if next == se {
				return nil
			}
		}
	default:
		return nil
	}
}

// Send writes the event's text.
func (c *Conn) Send(event core.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.writeTimeout > 0 {
		if err := c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
			return oops.Wrap(err)
		}
	}
	if _, err := c.conn.Write([]byte(Render(event))); err != nil {
		return oops.With("event_id", event.ID.String()).Wrap(err)
	}
	return nil
}

// Render formats an event for a telnet client.
func Render(event core.Event) string {
	text := strings.TrimRight(event.Text, "\r\n")
	text = strings.ReplaceAll(text, "\r\n", "\n")
	return strings.ReplaceAll(text, "\n", "\r\n") + "\r\n"
}

// Close closes the underlying connection.
func (c *Conn) Close() error {
	return c.conn.Close()
}

// RemoteAddr returns the peer address.
func (c *Conn) RemoteAddr() string {
	return c.conn.RemoteAddr().String()
}
