// Package orch wires sessions, rooms and moderation together. Every inbound
// frame of a socket is dispatched here from that socket's read pump.
package orch

import (
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/TableRelay/internal/app"
	"github.com/dkeye/TableRelay/internal/app/moderation"
	"github.com/dkeye/TableRelay/internal/core"
	"github.com/dkeye/TableRelay/internal/domain"
	"github.com/dkeye/TableRelay/internal/protocol"
)

// Settings are the behaviour switches read from config.
type Settings struct {
	// AutoCreate makes JOIN to an unknown room create it instead of answering KICK.
	AutoCreate bool
	// ValidateSDP drops RTC blobs that do not parse as SDP.
	ValidateSDP bool
	// IdleTTL is how long an empty room is kept.
	IdleTTL time.Duration
}

type Orchestrator struct {
	Registry *app.Registry
	Rooms    core.RoomManager
	Policy   app.Policy
	Resume   *app.ResumeStore
	Limiter  *moderation.RateLimiter
	Chat     moderation.ChatPipeline
	Settings Settings
}

// Connect registers a fresh socket and greets it with its player id.
func (o *Orchestrator) Connect(sid core.SessionID, conn core.SignalConnection, cancel func()) domain.PlayerID {
	player := domain.NewPlayerID()
	o.Registry.BindSignal(sid, player, conn, cancel)
	info, _ := o.Registry.Get(sid)
	o.sendDirect(info, &protocol.Hello{ClientID: player})
	o.Registry.SetState(sid, app.StateAwaitingRoom)
	return player
}

// OnFrame decodes one inbound text frame and dispatches it. Undecodable
// frames are dropped.
func (o *Orchestrator) OnFrame(sid core.SessionID, data []byte) {
	msg, err := protocol.Decode(data)
	if err != nil {
		log.Debug().Str("module", "orch").Str("sid", string(sid)).Err(err).Msg("frame dropped")
		return
	}
	o.Handle(sid, msg, data)
}

// Handle dispatches a decoded message. raw is the original frame, forwarded
// as-is where the relay does not interpret the payload.
func (o *Orchestrator) Handle(sid core.SessionID, msg protocol.Message, raw []byte) {
	info, ok := o.Registry.Get(sid)
	if !ok {
		return
	}
	switch m := msg.(type) {
	case *protocol.Hello:
		o.onHello(info, m)
	case *protocol.CreateRoom:
		o.onCreateRoom(info, m)
	case *protocol.Join:
		o.onJoin(info, m)
	case *protocol.Leave:
		o.onLeave(info, m)
	case *protocol.Seat:
		o.onSeat(info, m)
	case *protocol.Ready:
		o.onReady(info, m)
	case *protocol.Pause:
		o.onPause(info, true)
	case *protocol.Resume:
		o.onPause(info, false)
	case *protocol.EndGame:
		o.onEndGame(info)
	case *protocol.Intent:
		o.onIntent(info, m)
	case *protocol.StateHash:
		o.onStateHash(info, m)
	case *protocol.StateSnapshot:
		o.onStateSnapshot(info, m)
	case *protocol.Chat:
		o.onChat(info, m)
	case *protocol.Mute:
		o.onMute(info, m)
	case *protocol.Kick:
		o.onKick(info, m)
	case *protocol.RTCOffer:
		o.onRTC(info, m.SDP, raw)
	case *protocol.RTCAnswer:
		o.onRTC(info, m.SDP, raw)
	default:
		log.Debug().Str("module", "orch").Str("sid", string(sid)).Str("type", string(msg.MsgType())).Msg("server-only message ignored")
	}
}

// Disconnect runs when a socket is gone. Membership is dropped and peers
// get LEAVE; the resume token stays valid.
func (o *Orchestrator) Disconnect(sid core.SessionID) {
	info, ok := o.Registry.Unbind(sid)
	if !ok {
		return
	}
	if info.RoomID != "" {
		o.leaveRoom(info, false)
	}
	if o.Limiter != nil {
		o.Limiter.Forget(sid)
	}
	log.Info().Str("module", "orch").Str("sid", string(sid)).Str("player", string(info.PlayerID)).Msg("disconnected")
}

// withRoom runs fn under the lock of the room the session is in. fn is only
// called while the session is still the live member for its player.
func (o *Orchestrator) withRoom(info app.SessionInfo, fn func(tx *core.RoomTx)) bool {
	if info.State != app.StateInRoom || info.RoomID == "" {
		return false
	}
	room, ok := o.Rooms.GetRoom(info.RoomID)
	if !ok {
		return false
	}
	member := false
	res := room.Exec(func(tx *core.RoomTx) {
		ms, ok := tx.Member(info.PlayerID)
		if !ok || ms.SID() != info.SID {
			return
		}
		member = true
		fn(tx)
	})
	o.applyPolicy(room, res)
	return member
}

func (o *Orchestrator) applyPolicy(room core.RoomService, res core.PublishResult) {
	if o.Policy == nil {
		return
	}
	for _, slow := range res.Dropped {
		action := o.Policy.OnBackPressure(room, slow)
		log.Warn().Str("module", "orch").Str("room", string(room.Room().ID)).Str("sid", string(slow.SID())).Stringer("action", action).Msg("send buffer full")
		switch action {
		case app.KickMember:
			o.Registry.Cancel(slow.SID())
		case app.MarkSlow, app.DropFrame, app.NoAction:
		}
	}
}

// sendDirect writes to a socket that is not reached through a room.
func (o *Orchestrator) sendDirect(info app.SessionInfo, m protocol.Message) {
	if info.Signal == nil {
		return
	}
	if err := info.Signal.TrySend(frame(m)); err != nil {
		log.Warn().Str("module", "orch").Str("sid", string(info.SID)).Err(err).Msg("direct send failed")
		o.Registry.Cancel(info.SID)
	}
}

func frame(m protocol.Message) core.Frame {
	return core.Frame(protocol.MustEncode(m))
}

func snapshotFrame(e core.SnapshotEntry) core.Frame {
	return frame(&protocol.StateSnapshot{Seq: protocol.U64(e.Seq), State: e.State, Checksum: e.Checksum})
}
