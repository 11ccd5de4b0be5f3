// Package protocol defines the closed set of frames exchanged between table
// clients and the relay.
package protocol

import (
	json "github.com/goccy/go-json"

	"github.com/dkeye/TableRelay/internal/domain"
)

type Type string

const (
	TypeHello         Type = "HELLO"
	TypeCreateRoom    Type = "CREATE_ROOM"
	TypeJoin          Type = "JOIN"
	TypeLeave         Type = "LEAVE"
	TypeSeat          Type = "SEAT"
	TypeReady         Type = "READY"
	TypePause         Type = "PAUSE"
	TypeResume        Type = "RESUME"
	TypeEndGame       Type = "END_GAME"
	TypeIntent        Type = "INTENT"
	TypeStateHash     Type = "STATE_HASH"
	TypeStateSnapshot Type = "STATE_SNAPSHOT"
	TypeResumeToken   Type = "RESUME_TOKEN"
	TypeKick          Type = "KICK"
	TypeMute          Type = "MUTE"
	TypeChat          Type = "CHAT"
	TypeRTCOffer      Type = "RTC_OFFER"
	TypeRTCAnswer     Type = "RTC_ANSWER"
)

// Header carries the discriminator. Every message embeds it so the tag is
// flattened next to the payload fields.
type Header struct {
	Type Type `json:"type"`
}

func (h *Header) header() *Header { return h }

// Message is implemented only by the frame types of this package.
type Message interface {
	MsgType() Type
	header() *Header
}

type Hello struct {
	Header
	ClientID    domain.PlayerID `json:"clientId,omitempty"`
	ResumeToken string          `json:"resumeToken,omitempty"`
}

type CreateRoom struct {
	Header
	RoomID domain.RoomID  `json:"roomId,omitempty" validate:"max=64"`
	PIN    string         `json:"pin,omitempty"`
	Config map[string]any `json:"config,omitempty"`
}

type Join struct {
	Header
	RoomID   domain.RoomID   `json:"roomId" validate:"required,max=64"`
	PIN      string          `json:"pin,omitempty"`
	PlayerID domain.PlayerID `json:"playerId,omitempty"`
	Profile  *domain.Profile `json:"profile,omitempty"`
}

type Leave struct {
	Header
	RoomID   domain.RoomID   `json:"roomId" validate:"required"`
	PlayerID domain.PlayerID `json:"playerId" validate:"required"`
}

type Seat struct {
	Header
	PlayerID domain.PlayerID `json:"playerId" validate:"required"`
	Seat     *int            `json:"seat" validate:"required,min=0"`
}

type Ready struct {
	Header
	PlayerID domain.PlayerID `json:"playerId" validate:"required"`
	Ready    *bool           `json:"ready" validate:"required"`
}

// HostControl is the shared shape of PAUSE, RESUME and END_GAME.
type HostControl struct {
	Header
	RoomID domain.RoomID `json:"roomId,omitempty"`
}

type Pause struct{ HostControl }
type Resume struct{ HostControl }
type EndGame struct{ HostControl }

type Intent struct {
	Header
	PlayerID domain.PlayerID `json:"playerId" validate:"required"`
	Seq      *uint64         `json:"seq" validate:"required"`
	Intent   json.RawMessage `json:"intent" validate:"required"`
}

type StateHash struct {
	Header
	Seq      *uint64 `json:"seq" validate:"required"`
	Checksum string  `json:"checksum" validate:"required"`
}

type StateSnapshot struct {
	Header
	Seq      *uint64         `json:"seq" validate:"required"`
	State    json.RawMessage `json:"state" validate:"required"`
	Checksum string          `json:"checksum" validate:"required"`
}

type ResumeToken struct {
	Header
	ResumeToken string `json:"resumeToken" validate:"required"`
}

type Kick struct {
	Header
	PlayerID domain.PlayerID `json:"playerId" validate:"required"`
}

type Mute struct {
	Header
	PlayerID domain.PlayerID `json:"playerId" validate:"required"`
	Muted    *bool           `json:"muted" validate:"required"`
	Reason   string          `json:"reason,omitempty"`
}

type Chat struct {
	Header
	PlayerID domain.PlayerID `json:"playerId,omitempty"`
	Message  string          `json:"message" validate:"required"`
	TS       int64           `json:"ts,omitempty"`
}

// RTCSignal is the shared shape of RTC_OFFER and RTC_ANSWER. The SDP blob is
// never interpreted by the relay.
type RTCSignal struct {
	Header
	SDP  string `json:"sdp" validate:"required"`
	From string `json:"from" validate:"required"`
}

type RTCOffer struct{ RTCSignal }
type RTCAnswer struct{ RTCSignal }

func (*Hello) MsgType() Type         { return TypeHello }
func (*CreateRoom) MsgType() Type    { return TypeCreateRoom }
func (*Join) MsgType() Type          { return TypeJoin }
func (*Leave) MsgType() Type         { return TypeLeave }
func (*Seat) MsgType() Type          { return TypeSeat }
func (*Ready) MsgType() Type         { return TypeReady }
func (*Pause) MsgType() Type         { return TypePause }
func (*Resume) MsgType() Type        { return TypeResume }
func (*EndGame) MsgType() Type       { return TypeEndGame }
func (*Intent) MsgType() Type        { return TypeIntent }
func (*StateHash) MsgType() Type     { return TypeStateHash }
func (*StateSnapshot) MsgType() Type { return TypeStateSnapshot }
func (*ResumeToken) MsgType() Type   { return TypeResumeToken }
func (*Kick) MsgType() Type          { return TypeKick }
func (*Mute) MsgType() Type          { return TypeMute }
func (*Chat) MsgType() Type          { return TypeChat }
func (*RTCOffer) MsgType() Type      { return TypeRTCOffer }
func (*RTCAnswer) MsgType() Type     { return TypeRTCAnswer }

var registry = map[Type]func() Message{
	TypeHello:         func() Message { return &Hello{} },
	TypeCreateRoom:    func() Message { return &CreateRoom{} },
	TypeJoin:          func() Message { return &Join{} },
	TypeLeave:         func() Message { return &Leave{} },
	TypeSeat:          func() Message { return &Seat{} },
	TypeReady:         func() Message { return &Ready{} },
	TypePause:         func() Message { return &Pause{} },
	TypeResume:        func() Message { return &Resume{} },
	TypeEndGame:       func() Message { return &EndGame{} },
	TypeIntent:        func() Message { return &Intent{} },
	TypeStateHash:     func() Message { return &StateHash{} },
	TypeStateSnapshot: func() Message { return &StateSnapshot{} },
	TypeResumeToken:   func() Message { return &ResumeToken{} },
	TypeKick:          func() Message { return &Kick{} },
	TypeMute:          func() Message { return &Mute{} },
	TypeChat:          func() Message { return &Chat{} },
	TypeRTCOffer:      func() Message { return &RTCOffer{} },
	TypeRTCAnswer:     func() Message { return &RTCAnswer{} },
}

// U64 and Bool build the pointer fields used for presence checks.
func U64(v uint64) *uint64 { return &v }
func Bool(v bool) *bool    { return &v }
func Int(v int) *int       { return &v }
