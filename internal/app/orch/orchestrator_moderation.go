package orch

import (
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/TableRelay/internal/app"
	"github.com/dkeye/TableRelay/internal/core"
	"github.com/dkeye/TableRelay/internal/protocol"
)

func (o *Orchestrator) onChat(info app.SessionInfo, m *protocol.Chat) {
	if info.State != app.StateInRoom {
		return
	}
	if o.Limiter != nil && !o.Limiter.Allow(info.SID) {
		log.Debug().Str("module", "orch").Str("sid", string(info.SID)).Msg("chat rate limited")
		return
	}
	text, ok := o.Chat.Process(m.Message)
	if !ok {
		return
	}
	o.withRoom(info, func(tx *core.RoomTx) {
		if muted, _ := tx.Muted(info.PlayerID); muted {
			log.Debug().Str("module", "orch").Str("player", string(info.PlayerID)).Msg("chat from muted player dropped")
			return
		}
		tx.Broadcast("", frame(&protocol.Chat{PlayerID: info.PlayerID, Message: text, TS: time.Now().UnixMilli()}))
	})
}

func (o *Orchestrator) onMute(info app.SessionInfo, m *protocol.Mute) {
	o.withRoom(info, func(tx *core.RoomTx) {
		if tx.Host() != info.PlayerID {
			log.Debug().Str("module", "orch").Str("sid", string(info.SID)).Msg("mute from non-host ignored")
			return
		}
		tx.SetMuted(m.PlayerID, *m.Muted, m.Reason)
		tx.Broadcast("", frame(&protocol.Mute{PlayerID: m.PlayerID, Muted: protocol.Bool(*m.Muted), Reason: m.Reason}))
		log.Info().Str("module", "orch").Str("room", string(info.RoomID)).Str("player", string(m.PlayerID)).Bool("muted", *m.Muted).Msg("mute changed")
	})
}

func (o *Orchestrator) onKick(info app.SessionInfo, m *protocol.Kick) {
	target := m.PlayerID
	kicked := false
	o.withRoom(info, func(tx *core.RoomTx) {
		if tx.Host() != info.PlayerID || target == info.PlayerID {
			log.Debug().Str("module", "orch").Str("sid", string(info.SID)).Msg("kick refused")
			return
		}
		ms, ok := tx.Remove(target)
		if !ok {
			return
		}
		tx.Forget(target)
		f := frame(&protocol.Kick{PlayerID: target})
		if err := ms.Signal().TrySend(f); err != nil {
			log.Debug().Str("module", "orch").Str("sid", string(ms.SID())).Err(err).Msg("kick not delivered")
		}
		tx.Broadcast("", f)
		o.Registry.RemoveRoom(ms.SID(), info.RoomID)
		kicked = true
	})
	if kicked {
		o.Resume.Revoke(target)
		log.Info().Str("module", "orch").Str("room", string(info.RoomID)).Str("player", string(target)).Msg("player kicked")
	}
}
