package core

import (
	"errors"
	"slices"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/TableRelay/internal/domain"
	"github.com/dkeye/TableRelay/internal/statehash"
)

var (
	ErrSeatTaken = errors.New("seat taken")
	// ErrFutureSnapshot rejects a snapshot whose seq the room has not assigned
	// yet. Clients push a snapshot only after the INTENT that produced it has
	// been echoed back with its seq.
	ErrFutureSnapshot = errors.New("snapshot ahead of room sequence")
	ErrStaleSnapshot  = errors.New("snapshot older than latest")
	// ErrRoomClosed is returned by Admit once the room has been removed from
	// its manager.
	ErrRoomClosed = errors.New("room closed")
)

// Verdict is the outcome of comparing a client checksum with the recorded one.
type Verdict int

const (
	VerdictUnknownSeq Verdict = iota
	VerdictMatch
	VerdictMismatch
)

func (v Verdict) String() string {
	switch v {
	case VerdictMatch:
		return "match"
	case VerdictMismatch:
		return "mismatch"
	default:
		return "unknown-seq"
	}
}

// roomImpl is a threadsafe in-memory room.
// It never closes adapter-owned resources.
type roomImpl struct {
	room *domain.Room

	mu         sync.Mutex
	members    map[domain.PlayerID]MemberSession
	order      []domain.PlayerID
	host       domain.PlayerID
	seats      map[domain.PlayerID]int
	profiles   map[domain.PlayerID]*domain.Profile
	muted      map[domain.PlayerID]string
	paused     bool
	seq        uint64
	snapshots  *SnapshotRing
	emptySince time.Time
	closed     bool
}

func NewRoomService(room *domain.Room, maxRollback int) RoomService {
	return &roomImpl{
		room:       room,
		members:    make(map[domain.PlayerID]MemberSession),
		seats:      make(map[domain.PlayerID]int),
		profiles:   make(map[domain.PlayerID]*domain.Profile),
		muted:      make(map[domain.PlayerID]string),
		snapshots:  NewSnapshotRing(maxRollback),
		emptySince: time.Now(),
	}
}

func (r *roomImpl) Room() *domain.Room { return r.room }

func (r *roomImpl) MemberCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.members)
}

func (r *roomImpl) MembersSnapshot() []MemberDTO {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]MemberDTO, 0, len(r.order))
	for _, id := range r.order {
		ms := r.members[id]
		dto := MemberDTO{
			ID:    id,
			Name:  ms.Meta().Name(),
			Ready: ms.Meta().Ready,
			Host:  id == r.host,
		}
		if seat, ok := r.seats[id]; ok {
			dto.Seat = &seat
		}
		_, dto.Muted = r.muted[id]
		out = append(out, dto)
	}
	return out
}

func (r *roomImpl) Info() RoomInfo {
	r.mu.Lock()
	defer r.mu.Unlock()
	return RoomInfo{
		ID:        r.room.ID,
		Private:   r.room.Private(),
		Members:   len(r.members),
		Host:      r.host,
		Seq:       r.seq,
		Snapshots: r.snapshots.Len(),
		Paused:    r.paused,
		CreatedAt: r.room.CreatedAt,
	}
}

func (r *roomImpl) IdleSince() (time.Time, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.members) > 0 {
		return time.Time{}, false
	}
	return r.emptySince, true
}

// Close marks the room as unreachable. Closed rooms refuse new members.
func (r *roomImpl) Close() {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
}

// CloseIfIdle closes the room if it has been empty for at least idle as of now.
func (r *roomImpl) CloseIfIdle(now time.Time, idle time.Duration) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return true
	}
	if len(r.members) > 0 || now.Sub(r.emptySince) < idle {
		return false
	}
	r.closed = true
	return true
}

func (r *roomImpl) Exec(fn func(tx *RoomTx)) PublishResult {
	r.mu.Lock()
	tx := &RoomTx{r: r}
	fn(tx)
	r.mu.Unlock()
	if len(tx.res.Dropped) > 0 {
		log.Debug().Str("module", "core.room").Str("room", string(r.room.ID)).Int("sent_to", tx.res.SendTo).Int("dropped", len(tx.res.Dropped)).Msg("publish result")
	}
	return tx.res
}

// RoomTx is the view of a room handed to Exec. It is only valid inside fn.
type RoomTx struct {
	r   *roomImpl
	res PublishResult
}

func (tx *RoomTx) Room() *domain.Room    { return tx.r.room }
func (tx *RoomTx) Host() domain.PlayerID { return tx.r.host }
func (tx *RoomTx) Seq() uint64           { return tx.r.seq }
func (tx *RoomTx) Paused() bool          { return tx.r.paused }
func (tx *RoomTx) SetPaused(p bool)      { tx.r.paused = p }

func (tx *RoomTx) Member(id domain.PlayerID) (MemberSession, bool) {
	ms, ok := tx.r.members[id]
	return ms, ok
}

// Members returns the current sessions in join order.
func (tx *RoomTx) Members() []MemberSession {
	out := make([]MemberSession, 0, len(tx.r.order))
	for _, id := range tx.r.order {
		out = append(out, tx.r.members[id])
	}
	return out
}

// Admit registers ms. A player already present has its session replaced and
// keeps its place in join order.
func (tx *RoomTx) Admit(ms MemberSession) error {
	r := tx.r
	if r.closed {
		return ErrRoomClosed
	}
	id := ms.Meta().ID
	if _, ok := r.members[id]; !ok {
		r.order = append(r.order, id)
	}
	r.members[id] = ms
	if p := ms.Meta().Profile; p != nil {
		r.profiles[id] = p
	}
	if r.host == "" {
		r.host = id
	}
	log.Info().Str("module", "core.room").Str("room", string(r.room.ID)).Str("sid", string(ms.SID())).Str("player", string(id)).Msg("member added")
	return nil
}

// Remove detaches a player. Seat, profile and mute state are kept for a
// later resume.
func (tx *RoomTx) Remove(id domain.PlayerID) (MemberSession, bool) {
	r := tx.r
	ms, ok := r.members[id]
	if !ok {
		return nil, false
	}
	delete(r.members, id)
	r.order = slices.DeleteFunc(r.order, func(p domain.PlayerID) bool { return p == id })
	if r.host == id {
		r.host = ""
		if len(r.order) > 0 {
			r.host = r.order[0]
		}
	}
	if len(r.members) == 0 {
		r.emptySince = time.Now()
	}
	log.Info().Str("module", "core.room").Str("room", string(r.room.ID)).Str("player", string(id)).Str("host", string(r.host)).Msg("member removed")
	return ms, true
}

// Forget drops everything remembered about a player who left for good.
func (tx *RoomTx) Forget(id domain.PlayerID) {
	delete(tx.r.seats, id)
	delete(tx.r.profiles, id)
}

// ForgetAbsent forgets every player that is not a member and for whom keep
// reports false. It returns the forgotten players.
func (tx *RoomTx) ForgetAbsent(keep func(domain.PlayerID) bool) []domain.PlayerID {
	var gone []domain.PlayerID
	for id := range tx.r.seats {
		if _, present := tx.r.members[id]; present || keep(id) {
			continue
		}
		gone = append(gone, id)
	}
	for id := range tx.r.profiles {
		if _, present := tx.r.members[id]; present || keep(id) || slices.Contains(gone, id) {
			continue
		}
		gone = append(gone, id)
	}
	for _, id := range gone {
		tx.Forget(id)
	}
	return gone
}

func (tx *RoomTx) Closed() bool { return tx.r.closed }

func (tx *RoomTx) Profile(id domain.PlayerID) *domain.Profile { return tx.r.profiles[id] }

func (tx *RoomTx) Seat(id domain.PlayerID) (int, bool) {
	s, ok := tx.r.seats[id]
	return s, ok
}

func (tx *RoomTx) SetSeat(id domain.PlayerID, seat int) error {
	for other, s := range tx.r.seats {
		if s == seat && other != id {
			return ErrSeatTaken
		}
	}
	tx.r.seats[id] = seat
	return nil
}

func (tx *RoomTx) SetMuted(id domain.PlayerID, muted bool, reason string) {
	if muted {
		tx.r.muted[id] = reason
		return
	}
	delete(tx.r.muted, id)
}

func (tx *RoomTx) Muted(id domain.PlayerID) (bool, string) {
	reason, ok := tx.r.muted[id]
	return ok, reason
}

// ResetReady clears every member's ready flag.
func (tx *RoomTx) ResetReady() {
	for _, ms := range tx.r.members {
		ms.Meta().Ready = false
	}
}

// NextSeq assigns the next authoritative sequence number.
func (tx *RoomTx) NextSeq() uint64 {
	tx.r.seq++
	return tx.r.seq
}

func (tx *RoomTx) LatestSnapshot() (SnapshotEntry, bool) { return tx.r.snapshots.Latest() }

// RecordSnapshot checksums state server-side and appends it to the history.
func (tx *RoomTx) RecordSnapshot(seq uint64, state json.RawMessage) (SnapshotEntry, error) {
	if seq > tx.r.seq {
		return SnapshotEntry{}, ErrFutureSnapshot
	}
	if latest, ok := tx.r.snapshots.Latest(); ok && seq < latest.Seq {
		return SnapshotEntry{}, ErrStaleSnapshot
	}
	sum, err := statehash.Checksum(state)
	if err != nil {
		return SnapshotEntry{}, err
	}
	e := SnapshotEntry{
		Seq:        seq,
		State:      append(json.RawMessage(nil), state...),
		Checksum:   sum,
		RecordedAt: time.Now(),
	}
	if tx.r.snapshots.Push(e) {
		log.Debug().Str("module", "core.room").Str("room", string(tx.r.room.ID)).Msg("oldest snapshot evicted")
	}
	return e, nil
}

func (tx *RoomTx) VerifyChecksum(seq uint64, claimed string) Verdict {
	e, ok := tx.r.snapshots.Find(seq)
	if !ok {
		return VerdictUnknownSeq
	}
	if e.Checksum == claimed {
		return VerdictMatch
	}
	return VerdictMismatch
}

// Broadcast sends f to every member except the given player, in join order.
func (tx *RoomTx) Broadcast(except domain.PlayerID, f Frame) {
	for _, id := range tx.r.order {
		if id == except {
			continue
		}
		tx.deliver(tx.r.members[id], f)
	}
}

// SendTo delivers f to one member.
func (tx *RoomTx) SendTo(id domain.PlayerID, f Frame) bool {
	ms, ok := tx.r.members[id]
	if !ok {
		return false
	}
	return tx.deliver(ms, f)
}

func (tx *RoomTx) deliver(ms MemberSession, f Frame) bool {
	if err := ms.Signal().TrySend(f); err != nil {
		if !slices.Contains(tx.res.Dropped, ms) {
			tx.res.Dropped = append(tx.res.Dropped, ms)
		}
		return false
	}
	tx.res.SendTo++
	return true
}
