package orch

import (
	"github.com/rs/zerolog/log"

	"github.com/dkeye/TableRelay/internal/app"
	"github.com/dkeye/TableRelay/internal/core"
	"github.com/dkeye/TableRelay/internal/domain"
	"github.com/dkeye/TableRelay/internal/protocol"
)

// onHello handles the reconnect flow. A HELLO without a token carries nothing
// the server needs.
func (o *Orchestrator) onHello(info app.SessionInfo, m *protocol.Hello) {
	if m.ResumeToken == "" {
		return
	}
	grant, err := o.Resume.Redeem(m.ResumeToken)
	if err != nil {
		log.Info().Str("module", "orch").Str("sid", string(info.SID)).Err(err).Msg("resume refused")
		return
	}
	room, ok := o.Rooms.GetRoom(grant.RoomID)
	if !ok {
		log.Info().Str("module", "orch").Str("sid", string(info.SID)).Str("room", string(grant.RoomID)).Msg("resume refused: room gone")
		return
	}
	pid := grant.PlayerID
	// The socket already speaking for this player in this room only needs a
	// resync; leaving first would drop the seat it is resuming.
	if info.RoomID != "" && (info.RoomID != grant.RoomID || info.PlayerID != pid) {
		o.leaveRoom(info, true)
	}
	if prev, had := o.Registry.Rebind(info.SID, pid); had {
		log.Info().Str("module", "orch").Str("sid", string(prev)).Str("player", string(pid)).Msg("closing superseded connection")
		o.Registry.Cancel(prev)
	}

	for attempt := 1; ; attempt++ {
		if o.resume(info, room, pid, grant.RoomID) {
			log.Info().Str("module", "orch").Str("sid", string(info.SID)).Str("player", string(pid)).Str("room", string(grant.RoomID)).Msg("session resumed")
			return
		}
		if attempt == joinAttempts {
			log.Info().Str("module", "orch").Str("sid", string(info.SID)).Str("room", string(grant.RoomID)).Msg("resume refused: room closed")
			return
		}
		if room, ok = o.Rooms.GetRoom(grant.RoomID); !ok {
			log.Info().Str("module", "orch").Str("sid", string(info.SID)).Str("room", string(grant.RoomID)).Msg("resume refused: room gone")
			return
		}
	}
}

// resume reattaches pid to room on socket info. It reports false if the room
// was closed before the player could be admitted.
func (o *Orchestrator) resume(info app.SessionInfo, room core.RoomService, pid domain.PlayerID, id domain.RoomID) bool {
	admitted := false
	res := room.Exec(func(tx *core.RoomTx) {
		old, present := tx.Member(pid)
		profile := tx.Profile(pid)
		meta := domain.NewMember(pid, profile)
		if present {
			meta.Ready = old.Meta().Ready
		}
		if err := tx.Admit(core.NewMemberSession(info.SID, meta, info.Signal)); err != nil {
			return
		}
		admitted = true
		o.Registry.UpdateRoom(info.SID, id)

		tx.SendTo(pid, frame(&protocol.Hello{ClientID: pid}))
		if seat, ok := tx.Seat(pid); ok {
			tx.SendTo(pid, frame(&protocol.Seat{PlayerID: pid, Seat: protocol.Int(seat)}))
		}
		if snap, ok := tx.LatestSnapshot(); ok {
			tx.SendTo(pid, snapshotFrame(snap))
		}
		tx.SendTo(pid, frame(&protocol.ResumeToken{ResumeToken: o.Resume.Issue(id, pid, tx.Seq())}))
		if !present {
			tx.Broadcast(pid, frame(&protocol.Join{RoomID: id, PlayerID: pid, Profile: profile}))
		}
	})
	o.applyPolicy(room, res)
	return admitted
}
