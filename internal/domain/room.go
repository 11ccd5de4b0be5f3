package domain

import (
	"crypto/subtle"
	"time"

	"github.com/google/uuid"
)

const MaxRoomIDLen = 64

type RoomID string

func NewRoomID() RoomID { return RoomID(uuid.NewString()) }

type Room struct {
	ID        RoomID
	PIN       string
	Config    map[string]any
	CreatedAt time.Time
}

func NewRoom(id RoomID, pin string, cfg map[string]any) *Room {
	if id == "" {
		id = NewRoomID()
	}
	return &Room{ID: id, PIN: pin, Config: cfg, CreatedAt: time.Now()}
}

func (r *Room) Private() bool { return r.PIN != "" }

// CheckPIN reports whether pin opens the room. Rooms without a PIN accept anything.
func (r *Room) CheckPIN(pin string) bool {
	if r.PIN == "" {
		return true
	}
	return subtle.ConstantTimeCompare([]byte(r.PIN), []byte(pin)) == 1
}
