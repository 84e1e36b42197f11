// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Azimuth Contributors

package websocket

import (
	"encoding/json"
	"io"
	"strings"
	"sync"
	"time"

	gws "github.com/gorilla/websocket"
	"github.com/samber/oops"

	"github.com/azimuth-mud/azimuth/internal/core"
)

// ClientMessage is a frame sent by the client. Frames that are not JSON
// objects are taken as a raw command line.
type ClientMessage struct {
	Type    string `json:"type"`
	Command string `json:"command"`
}

// ServerMessage is a frame sent to the client, one per output event.
type ServerMessage struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Room      string    `json:"room,omitempty"`
	Actor     string    `json:"actor,omitempty"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// NewServerMessage converts an output event to its wire form.
func NewServerMessage(event core.Event) ServerMessage {
	msg := ServerMessage{
		ID:        event.ID.String(),
		Type:      string(event.Type),
		Text:      strings.TrimRight(event.Text, "\n"),
		Timestamp: event.Timestamp.UTC(),
	}
	if !core.IsZero(event.Room) {
		msg.Room = event.Room.String()
	}
	if event.Actor.Kind == core.ActorPlayer {
		msg.Actor = event.Actor.ID.String()
	}
	return msg
}

// Conn adapts a websocket connection to engine.Conn.
type Conn struct {
	conn         *gws.Conn
	readTimeout  time.Duration
	writeTimeout time.Duration

	mu sync.Mutex // gorilla allows one concurrent writer
}

// NewConn wraps conn. Zero timeouts disable the matching deadline.
func NewConn(conn *gws.Conn, readTimeout, writeTimeout time.Duration) *Conn {
	return &Conn{conn: conn, readTimeout: readTimeout, writeTimeout: writeTimeout}
}

// ReadLine returns the command carried by the next client frame. A normal
// close from the client is reported as io.EOF.
func (c *Conn) ReadLine() (string, error) {
	for {
		if c.readTimeout > 0 {
			_ = c.conn.SetReadDeadline(time.Now().Add(c.readTimeout))
		}
		kind, data, err := c.conn.ReadMessage()
		if err != nil {
			if gws.IsCloseError(err, gws.CloseNormalClosure, gws.CloseGoingAway) {
				return "", io.EOF
			}
			return "", err
		}
		if kind != gws.TextMessage {
			continue
		}
		line, ok, reply := decode(data)
		if ok {
			return line, nil
		}
		if err := c.Send(core.NewEvent(core.EventTypeError, core.SystemActor, reply)); err != nil {
			return "", err
		}
	}
}

// decode extracts a command line from a client frame. When the frame is
// unusable it returns false and the text to send back.
func decode(data []byte) (string, bool, string) {
	text := strings.TrimSpace(string(data))
	if !strings.HasPrefix(text, "{") {
		return strings.TrimRight(string(data), "\r\n"), true, ""
	}
	var msg ClientMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return "", false, "Invalid JSON message."
	}
	switch msg.Type {
	case "", "command", "login":
		return msg.Command, true, ""
	default:
		return "", false, "Unknown message type: " + msg.Type
	}
}

// Send writes one event as a JSON text frame.
func (c *Conn) Send(event core.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.writeTimeout > 0 {
		_ = c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	}
	if err := c.conn.WriteJSON(NewServerMessage(event)); err != nil {
		return oops.With("event_id", event.ID.String()).Wrap(err)
	}
	return nil
}

// Close sends a close frame and closes the connection.
func (c *Conn) Close() error {
	c.mu.Lock()
	_ = c.conn.WriteControl(gws.CloseMessage,
		gws.FormatCloseMessage(gws.CloseNormalClosure, ""), time.Now().Add(time.Second))
	c.mu.Unlock()
	return c.conn.Close()
}

// RemoteAddr returns the peer address.
func (c *Conn) RemoteAddr() string {
	return c.conn.RemoteAddr().String()
}
