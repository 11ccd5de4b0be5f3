package core

import "github.com/dkeye/TableRelay/internal/domain"

// SessionID identifies one socket. A player keeps its PlayerID across
// sockets; the SessionID changes on every reconnect.
type SessionID string

// MemberSession binds domain.Member and its transport endpoint.
// This is what a room stores and fans out to.
type MemberSession interface {
	SID() SessionID
	Meta() *domain.Member
	Signal() SignalConnection
}
