package orch

import (
	"github.com/rs/zerolog/log"

	"github.com/dkeye/TableRelay/internal/app"
	"github.com/dkeye/TableRelay/internal/core"
	"github.com/dkeye/TableRelay/internal/protocol"
)

// onIntent orders an intent. The sequence number is assigned and the frame
// fanned out under the same room lock, so every socket sees intents in seq
// order.
func (o *Orchestrator) onIntent(info app.SessionInfo, m *protocol.Intent) {
	o.withRoom(info, func(tx *core.RoomTx) {
		if tx.Paused() {
			log.Debug().Str("module", "orch").Str("room", string(info.RoomID)).Msg("intent dropped while paused")
			return
		}
		seq := tx.NextSeq()
		tx.Broadcast("", frame(&protocol.Intent{PlayerID: info.PlayerID, Seq: protocol.U64(seq), Intent: m.Intent}))
	})
}

func (o *Orchestrator) onStateHash(info app.SessionInfo, m *protocol.StateHash) {
	o.withRoom(info, func(tx *core.RoomTx) {
		verdict := tx.VerifyChecksum(*m.Seq, m.Checksum)
		if verdict != core.VerdictMismatch {
			return
		}
		log.Warn().Str("module", "orch").Str("room", string(info.RoomID)).Str("player", string(info.PlayerID)).Uint64("seq", *m.Seq).Msg("desync reported")
		if snap, ok := tx.LatestSnapshot(); ok {
			tx.SendTo(info.PlayerID, snapshotFrame(snap))
		}
	})
}

func (o *Orchestrator) onStateSnapshot(info app.SessionInfo, m *protocol.StateSnapshot) {
	o.withRoom(info, func(tx *core.RoomTx) {
		e, err := tx.RecordSnapshot(*m.Seq, m.State)
		if err != nil {
			log.Debug().Str("module", "orch").Str("room", string(info.RoomID)).Uint64("seq", *m.Seq).Err(err).Msg("snapshot dropped")
			return
		}
		if e.Checksum != m.Checksum {
			log.Debug().Str("module", "orch").Str("room", string(info.RoomID)).Str("claimed", m.Checksum).Str("computed", e.Checksum).Msg("client checksum differs")
		}
		tx.Broadcast(info.PlayerID, snapshotFrame(e))
	})
}
