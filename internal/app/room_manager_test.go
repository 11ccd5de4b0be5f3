package app

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dkeye/TableRelay/internal/core"
	"github.com/dkeye/TableRelay/internal/domain"
)

func TestRoomManagerCreateReplacesOnCollision(t *testing.T) {
	m := NewRoomManager(20)
	first, replaced := m.CreateRoom(domain.NewRoom("table", "", nil))
	if replaced != nil {
		t.Fatal("first create must not replace anything")
	}
	second, replaced := m.CreateRoom(domain.NewRoom("table", "9999", nil))
	if replaced != first {
		t.Fatal("second create should report the replaced room")
	}
	got, ok := m.GetRoom("table")
	if !ok || got != second {
		t.Fatal("lookup should return the newest room")
	}
	if !got.Room().Private() {
		t.Fatal("newest room carries the new pin")
	}
}

func TestRoomManagerGeneratesIDs(t *testing.T) {
	m := NewRoomManager(20)
	a, _ := m.CreateRoom(domain.NewRoom("", "", nil))
	b, _ := m.CreateRoom(domain.NewRoom("", "", nil))
	if a.Room().ID == "" || a.Room().ID == b.Room().ID {
		t.Fatalf("expected distinct generated ids, got %q and %q", a.Room().ID, b.Room().ID)
	}
	if len(m.List()) != 2 {
		t.Fatalf("expected 2 rooms, got %d", len(m.List()))
	}
}

func TestRoomManagerGetOrCreateIsRaceFree(t *testing.T) {
	m := NewRoomManager(20)
	var wg sync.WaitGroup
	var mu sync.Mutex
	created := 0
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, ok := m.GetOrCreate("lobby"); ok {
				mu.Lock()
				created++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if created != 1 {
		t.Fatalf("expected exactly one creation, got %d", created)
	}
}

func TestRoomManagerSweep(t *testing.T) {
	m := NewRoomManager(20)
	m.CreateRoom(domain.NewRoom("idle", "", nil))
	m.CreateRoom(domain.NewRoom("held", "", nil))

	removed := m.Sweep(time.Now().Add(time.Hour), time.Minute, func(id domain.RoomID) bool { return id == "held" })
	if len(removed) != 1 || removed[0] != "idle" {
		t.Fatalf("expected only idle to be removed, got %v", removed)
	}
	if _, ok := m.GetRoom("held"); !ok {
		t.Fatal("kept room should survive the sweep")
	}
	if removed := m.Sweep(time.Now(), time.Hour, nil); len(removed) != 0 {
		t.Fatalf("recently emptied rooms must survive, got %v", removed)
	}
	m.StopRoom("held")
	if _, ok := m.GetRoom("held"); ok {
		t.Fatal("stopped room should be gone")
	}
}

func TestRoomManagerClosesRoomsItDrops(t *testing.T) {
	m := NewRoomManager(20)
	replacedRoom, _ := m.CreateRoom(domain.NewRoom("table", "", nil))
	m.CreateRoom(domain.NewRoom("table", "", nil))
	idle, _ := m.CreateRoom(domain.NewRoom("idle", "", nil))
	stopped, _ := m.CreateRoom(domain.NewRoom("stopped", "", nil))

	m.Sweep(time.Now().Add(time.Hour), time.Minute, func(id domain.RoomID) bool { return id != "idle" })
	m.StopRoom("stopped")

	for name, r := range map[string]core.RoomService{"replaced": replacedRoom, "swept": idle, "stopped": stopped} {
		ms := core.NewMemberSession("s1", domain.NewMember("late", nil), nil)
		var err error
		r.Exec(func(tx *core.RoomTx) { err = tx.Admit(ms) })
		if !errors.Is(err, core.ErrRoomClosed) {
			t.Fatalf("%s room: expected ErrRoomClosed, got %v", name, err)
		}
	}
	cur, ok := m.GetRoom("table")
	if !ok {
		t.Fatal("replacement room missing")
	}
	cur.Exec(func(tx *core.RoomTx) {
		if tx.Closed() {
			t.Fatal("the replacement room must stay open")
		}
	})
}
