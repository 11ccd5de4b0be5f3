package core

import (
	"time"

	"github.com/dkeye/TableRelay/internal/domain"
)

// PublishResult reports delivery stats/backpressure to orchestrator.
type PublishResult struct {
	SendTo  int
	Dropped []MemberSession
}

// MemberDTO is a read-only view for APIs (no transport fields).
type MemberDTO struct {
	ID    domain.PlayerID `json:"id"`
	Name  string          `json:"name"`
	Seat  *int            `json:"seat,omitempty"`
	Ready bool            `json:"ready"`
	Muted bool            `json:"muted"`
	Host  bool            `json:"host"`
}

// RoomService is the core-facing API of a room.
// It owns membership and lockstep state but never touches transport resources.
type RoomService interface {
	Room() *domain.Room
	MemberCount() int
	MembersSnapshot() []MemberDTO
	Info() RoomInfo

	// Exec runs fn while holding the room's serialization point. fn must not
	// block on I/O; sends through the tx are non-blocking.
	Exec(fn func(tx *RoomTx)) PublishResult

	// IdleSince reports when the room last became empty.
	IdleSince() (time.Time, bool)

	// Close marks the room as removed; Admit fails from then on.
	Close()
	// CloseIfIdle checks emptiness and closes in one step.
	CloseIfIdle(now time.Time, idle time.Duration) bool
}

type RoomInfo struct {
	ID        domain.RoomID   `json:"id"`
	Private   bool            `json:"private"`
	Members   int             `json:"members"`
	Host      domain.PlayerID `json:"host,omitempty"`
	Seq       uint64          `json:"seq"`
	Snapshots int             `json:"snapshots"`
	Paused    bool            `json:"paused"`
	CreatedAt time.Time       `json:"created_at"`
}

type RoomManager interface {
	// CreateRoom installs a fresh room. An existing room with the same id is
	// replaced and returned as the second value.
	CreateRoom(room *domain.Room) (created RoomService, replaced RoomService)
	GetRoom(id domain.RoomID) (RoomService, bool)
	GetOrCreate(id domain.RoomID) (RoomService, bool)
	List() []RoomInfo
	StopRoom(id domain.RoomID)
	// Sweep removes rooms that have been empty for longer than idle, unless
	// keep reports true for them.
	Sweep(now time.Time, idle time.Duration, keep func(domain.RoomID) bool) []domain.RoomID
}
