package app

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/TableRelay/internal/core"
	"github.com/dkeye/TableRelay/internal/domain"
)

// ConnState is the lifecycle state of one socket.
type ConnState int

const (
	StateConnected ConnState = iota
	StateAwaitingRoom
	StateInRoom
	StateDisconnected
)

func (s ConnState) String() string {
	switch s {
	case StateConnected:
		return "connected"
	case StateAwaitingRoom:
		return "awaiting_room"
	case StateInRoom:
		return "in_room"
	default:
		return "disconnected"
	}
}

type sessionEntry struct {
	PlayerID domain.PlayerID
	RoomID   domain.RoomID
	State    ConnState
	Signal   core.SignalConnection
	Cancel   context.CancelFunc
}

// SessionInfo is a copy of a registry entry.
type SessionInfo struct {
	SID      core.SessionID
	PlayerID domain.PlayerID
	RoomID   domain.RoomID
	State    ConnState
	Signal   core.SignalConnection
}

// Registry tracks live sockets and which player and room each one speaks for.
type Registry struct {
	mu       sync.RWMutex
	sessions map[core.SessionID]*sessionEntry
	byPlayer map[domain.PlayerID]core.SessionID
}

func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[core.SessionID]*sessionEntry),
		byPlayer: make(map[domain.PlayerID]core.SessionID),
	}
}

func (r *Registry) BindSignal(sid core.SessionID, player domain.PlayerID, conn core.SignalConnection, cancel context.CancelFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[sid] = &sessionEntry{PlayerID: player, State: StateConnected, Signal: conn, Cancel: cancel}
	r.byPlayer[player] = sid
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Str("player", string(player)).Msg("bound signal")
}

func (r *Registry) Get(sid core.SessionID) (SessionInfo, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.sessions[sid]
	if !ok {
		return SessionInfo{}, false
	}
	return SessionInfo{SID: sid, PlayerID: e.PlayerID, RoomID: e.RoomID, State: e.State, Signal: e.Signal}, true
}

func (r *Registry) SetState(sid core.SessionID, st ConnState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.sessions[sid]; ok {
		e.State = st
	}
}

// SessionOf finds the live socket currently speaking for player.
func (r *Registry) SessionOf(player domain.PlayerID) (core.SessionID, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sid, ok := r.byPlayer[player]
	return sid, ok
}

// Rebind makes sid speak for player. It returns the socket that previously
// held player, if any.
func (r *Registry) Rebind(sid core.SessionID, player domain.PlayerID) (core.SessionID, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.sessions[sid]
	if !ok {
		return "", false
	}
	if r.byPlayer[e.PlayerID] == sid {
		delete(r.byPlayer, e.PlayerID)
	}
	prev, had := r.byPlayer[player]
	e.PlayerID = player
	r.byPlayer[player] = sid
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Str("player", string(player)).Msg("rebound session")
	return prev, had && prev != sid
}

func (r *Registry) RoomOf(sid core.SessionID) (domain.RoomID, domain.PlayerID, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.sessions[sid]
	if !ok || e.RoomID == "" {
		return "", "", false
	}
	return e.RoomID, e.PlayerID, true
}

func (r *Registry) UpdateRoom(sid core.SessionID, room domain.RoomID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.sessions[sid]
	if !ok {
		return false
	}
	e.RoomID = room
	e.State = StateInRoom
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Str("room", string(room)).Msg("updated room")
	return true
}

// RemoveRoom clears the room association if it still points at room.
func (r *Registry) RemoveRoom(sid core.SessionID, room domain.RoomID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.sessions[sid]; ok && e.RoomID == room {
		e.RoomID = ""
		e.State = StateAwaitingRoom
		log.Info().Str("module", "app.registry").Str("sid", string(sid)).Msg("removed room association")
	}
}

func (r *Registry) Unbind(sid core.SessionID) (SessionInfo, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.sessions[sid]
	if !ok {
		return SessionInfo{}, false
	}
	delete(r.sessions, sid)
	if r.byPlayer[e.PlayerID] == sid {
		delete(r.byPlayer, e.PlayerID)
	}
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Msg("unbind session")
	return SessionInfo{SID: sid, PlayerID: e.PlayerID, RoomID: e.RoomID, State: StateDisconnected, Signal: e.Signal}, true
}

// Cancel tears the socket down; the read pump then runs the disconnect path.
func (r *Registry) Cancel(sid core.SessionID) bool {
	r.mu.RLock()
	e, ok := r.sessions[sid]
	r.mu.RUnlock()
	if !ok {
		return false
	}
	if e.Cancel != nil {
		e.Cancel()
	}
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Msg("canceled session")
	return true
}
