// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Azimuth Contributors

package core

import (
	"log/slog"

	"github.com/oklog/ulid/v2"
)

// Broadcast delivers event to every session subscribed to roomID except the
// excluded sessions. Returns the number of sessions the event was queued for.
func (sm *SessionManager) Broadcast(roomID ulid.ULID, event Event, exclude ...ulid.ULID) int {
	event.Room = roomID

	sm.mu.RLock()
	defer sm.mu.RUnlock()

	delivered := 0
	for sid := range sm.rooms[roomID] {
		if containsID(exclude, sid) {
			continue
		}
		if sm.deliverLocked(sm.sessions[sid], event) {
			delivered++
		}
	}
	return delivered
}

// BroadcastExcludingPlayers is Broadcast with exclusions given as player IDs.
func (sm *SessionManager) BroadcastExcludingPlayers(roomID ulid.ULID, event Event, players ...ulid.ULID) int {
	sm.mu.RLock()
	exclude := make([]ulid.ULID, 0, len(players))
	for _, pid := range players {
		if sid, ok := sm.byPlayer[pid]; ok {
			exclude = append(exclude, sid)
		}
	}
	sm.mu.RUnlock()
	return sm.Broadcast(roomID, event, exclude...)
}

// JoinRoom subscribes the session to roomID, leaving any previous room.
func (sm *SessionManager) JoinRoom(sessionID, roomID ulid.ULID) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	s, ok := sm.sessions[sessionID]
	if !ok {
		slog.Debug("JoinRoom called for non-existent session", "session_id", sessionID.String())
		return
	}
	sm.unsubscribeLocked(s)
	if !IsZero(roomID) {
		sm.subscribeLocked(s, roomID)
	}
}

// LeaveRoom unsubscribes the session from its current room.
func (sm *SessionManager) LeaveRoom(sessionID ulid.ULID) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	if s, ok := sm.sessions[sessionID]; ok {
		sm.unsubscribeLocked(s)
	}
}

// PlayerMoved re-subscribes the session bound to playerID (if any) after the
// player object's location changed to roomID.
func (sm *SessionManager) PlayerMoved(playerID, roomID ulid.ULID) {
	sid, ok := sm.SessionForPlayer(playerID)
	if !ok {
		return
	}
	sm.JoinRoom(sid, roomID)
}

// RoomMembers returns the sessions subscribed to roomID.
func (sm *SessionManager) RoomMembers(roomID ulid.ULID) []ulid.ULID {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	members := make([]ulid.ULID, 0, len(sm.rooms[roomID]))
	for sid := range sm.rooms[roomID] {
		members = append(members, sid)
	}
	return members
}

func (sm *SessionManager) subscribeLocked(s *Session, roomID ulid.ULID) {
	members, ok := sm.rooms[roomID]
	if !ok {
		members = make(map[ulid.ULID]struct{})
		sm.rooms[roomID] = members
	}
	members[s.ID] = struct{}{}
	s.RoomID = roomID
}

func (sm *SessionManager) unsubscribeLocked(s *Session) {
	if IsZero(s.RoomID) {
		return
	}
	if members, ok := sm.rooms[s.RoomID]; ok {
		delete(members, s.ID)
		if len(members) == 0 {
			delete(sm.rooms, s.RoomID)
		}
	}
	s.RoomID = ulid.ULID{}
}

func containsID(ids []ulid.ULID, id ulid.ULID) bool {
	for _, x := range ids {
		if x == id {
			return true
		}
	}
	return false
}
