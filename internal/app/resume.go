package app

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/TableRelay/internal/domain"
)

var (
	ErrTokenUnknown = errors.New("resume token unknown")
	ErrTokenExpired = errors.New("resume token expired")
)

// ResumeGrant is what a resume token stands for.
type ResumeGrant struct {
	RoomID   domain.RoomID
	PlayerID domain.PlayerID
	Seq      uint64
	IssuedAt time.Time
}

// ResumeStore issues single-use resume tokens with a fixed lifetime.
type ResumeStore struct {
	mu     sync.Mutex
	grants map[string]ResumeGrant
	ttl    time.Duration
	now    func() time.Time
}

func NewResumeStore(ttl time.Duration) *ResumeStore {
	return &ResumeStore{
		grants: make(map[string]ResumeGrant),
		ttl:    ttl,
		now:    time.Now,
	}
}

// WithClock replaces the time source; used by tests.
func (s *ResumeStore) WithClock(now func() time.Time) *ResumeStore {
	s.now = now
	return s
}

func (s *ResumeStore) Issue(room domain.RoomID, player domain.PlayerID, seq uint64) string {
	token := uuid.NewString()
	s.mu.Lock()
	s.grants[token] = ResumeGrant{RoomID: room, PlayerID: player, Seq: seq, IssuedAt: s.now()}
	s.mu.Unlock()
	log.Debug().Str("module", "app.resume").Str("room", string(room)).Str("player", string(player)).Uint64("seq", seq).Msg("resume token issued")
	return token
}

// Redeem consumes token. A token can be redeemed once; the caller issues a
// fresh one after a successful resume.
func (s *ResumeStore) Redeem(token string) (ResumeGrant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.grants[token]
	if !ok {
		return ResumeGrant{}, ErrTokenUnknown
	}
	delete(s.grants, token)
	if s.ttl > 0 && s.now().Sub(g.IssuedAt) > s.ttl {
		return ResumeGrant{}, ErrTokenExpired
	}
	return g, nil
}

// Revoke drops every token held by player.
func (s *ResumeStore) Revoke(player domain.PlayerID) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for tok, g := range s.grants {
		if g.PlayerID == player {
			delete(s.grants, tok)
			n++
		}
	}
	return n
}

// Outstanding reports whether any live token points into room.
func (s *ResumeStore) Outstanding(room domain.RoomID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	for _, g := range s.grants {
		if g.RoomID == room && (s.ttl <= 0 || now.Sub(g.IssuedAt) <= s.ttl) {
			return true
		}
	}
	return false
}

// Holds reports whether player still has a live token into room.
func (s *ResumeStore) Holds(room domain.RoomID, player domain.PlayerID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	for _, g := range s.grants {
		if g.RoomID == room && g.PlayerID == player && (s.ttl <= 0 || now.Sub(g.IssuedAt) <= s.ttl) {
			return true
		}
	}
	return false
}

func (s *ResumeStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.grants)
}

// Purge removes expired tokens.
func (s *ResumeStore) Purge() int {
	if s.ttl <= 0 {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	n := 0
	for tok, g := range s.grants {
		if now.Sub(g.IssuedAt) > s.ttl {
			delete(s.grants, tok)
			n++
		}
	}
	return n
}
