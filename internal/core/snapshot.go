package core

import (
	"time"

	json "github.com/goccy/go-json"
)

// SnapshotEntry is a full copy of a room's game state at seq. Checksum is
// always computed by the server.
type SnapshotEntry struct {
	Seq        uint64          `json:"seq"`
	State      json.RawMessage `json:"state"`
	Checksum   string          `json:"checksum"`
	RecordedAt time.Time       `json:"-"`
}

// SnapshotRing is a fixed-capacity FIFO of snapshots. The oldest entry is
// evicted when a push would exceed capacity. Not safe for concurrent use; the
// owning room serializes access.
type SnapshotRing struct {
	buf   []SnapshotEntry
	start int
	n     int
}

func NewSnapshotRing(capacity int) *SnapshotRing {
	if capacity < 1 {
		capacity = 1
	}
	return &SnapshotRing{buf: make([]SnapshotEntry, capacity)}
}

func (r *SnapshotRing) Len() int { return r.n }
func (r *SnapshotRing) Cap() int { return len(r.buf) }

// Push appends e and reports whether an older entry was evicted.
func (r *SnapshotRing) Push(e SnapshotEntry) bool {
	if r.n < len(r.buf) {
		r.buf[(r.start+r.n)%len(r.buf)] = e
		r.n++
		return false
	}
	r.buf[r.start] = e
	r.start = (r.start + 1) % len(r.buf)
	return true
}

func (r *SnapshotRing) at(i int) SnapshotEntry { return r.buf[(r.start+i)%len(r.buf)] }

func (r *SnapshotRing) Latest() (SnapshotEntry, bool) {
	if r.n == 0 {
		return SnapshotEntry{}, false
	}
	return r.at(r.n - 1), true
}

// Find returns the newest entry recorded for seq.
func (r *SnapshotRing) Find(seq uint64) (SnapshotEntry, bool) {
	for i := r.n - 1; i >= 0; i-- {
		if e := r.at(i); e.Seq == seq {
			return e, true
		}
	}
	return SnapshotEntry{}, false
}

// Entries returns a copy, oldest first.
func (r *SnapshotRing) Entries() []SnapshotEntry {
	out := make([]SnapshotEntry, 0, r.n)
	for i := 0; i < r.n; i++ {
		out = append(out, r.at(i))
	}
	return out
}

func (r *SnapshotRing) Reset() {
	clear(r.buf)
	r.start, r.n = 0, 0
}
