package app

import (
	"sort"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/TableRelay/internal/core"
	"github.com/dkeye/TableRelay/internal/domain"
)

const roomShards = 16

type roomShard struct {
	mu    sync.RWMutex
	rooms map[domain.RoomID]core.RoomService
}

// RoomManagerImpl spreads rooms over shards so lookups of unrelated rooms do
// not contend. Room state itself is guarded by each room.
type RoomManagerImpl struct {
	shards      [roomShards]*roomShard
	maxRollback int
}

func NewRoomManager(maxRollback int) core.RoomManager {
	m := &RoomManagerImpl{maxRollback: maxRollback}
	for i := range m.shards {
		m.shards[i] = &roomShard{rooms: make(map[domain.RoomID]core.RoomService)}
	}
	return m
}

func (m *RoomManagerImpl) shard(id domain.RoomID) *roomShard {
	return m.shards[xxhash.Sum64String(string(id))%roomShards]
}

func (m *RoomManagerImpl) CreateRoom(room *domain.Room) (core.RoomService, core.RoomService) {
	s := m.shard(room.ID)
	created := core.NewRoomService(room, m.maxRollback)
	s.mu.Lock()
	replaced := s.rooms[room.ID]
	s.rooms[room.ID] = created
	s.mu.Unlock()
	if replaced != nil {
		replaced.Close()
		log.Warn().Str("module", "app.rooms").Str("room", string(room.ID)).Msg("room id reused, previous room replaced")
	}
	log.Info().Str("module", "app.rooms").Str("room", string(room.ID)).Bool("private", room.Private()).Msg("room created")
	return created, replaced
}

func (m *RoomManagerImpl) GetRoom(id domain.RoomID) (core.RoomService, bool) {
	s := m.shard(id)
	s.mu.RLock()
	defer s.mu.RUnlock()
	room, ok := s.rooms[id]
	return room, ok
}

// GetOrCreate returns the room and whether it was created by this call.
func (m *RoomManagerImpl) GetOrCreate(id domain.RoomID) (core.RoomService, bool) {
	if room, ok := m.GetRoom(id); ok {
		return room, false
	}
	s := m.shard(id)
	s.mu.Lock()
	defer s.mu.Unlock()
	if room, ok := s.rooms[id]; ok {
		return room, false
	}
	room := core.NewRoomService(domain.NewRoom(id, "", nil), m.maxRollback)
	s.rooms[id] = room
	log.Info().Str("module", "app.rooms").Str("room", string(id)).Msg("room auto-created")
	return room, true
}

func (m *RoomManagerImpl) List() []core.RoomInfo {
	out := make([]core.RoomInfo, 0)
	for _, s := range m.shards {
		s.mu.RLock()
		for _, r := range s.rooms {
			out = append(out, r.Info())
		}
		s.mu.RUnlock()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func (m *RoomManagerImpl) StopRoom(id domain.RoomID) {
	s := m.shard(id)
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.rooms[id]; ok {
		r.Close()
		delete(s.rooms, id)
	}
}

func (m *RoomManagerImpl) Sweep(now time.Time, idle time.Duration, keep func(domain.RoomID) bool) []domain.RoomID {
	var removed []domain.RoomID
	for _, s := range m.shards {
		s.mu.Lock()
		for id, r := range s.rooms {
			if keep != nil && keep(id) {
				continue
			}
			if r.CloseIfIdle(now, idle) {
				delete(s.rooms, id)
				removed = append(removed, id)
			}
		}
		s.mu.Unlock()
	}
	if len(removed) > 0 {
		log.Info().Str("module", "app.rooms").Int("count", len(removed)).Msg("idle rooms removed")
	}
	return removed
}
