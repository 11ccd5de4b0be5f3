package orch

import (
	"github.com/pion/sdp/v3"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/TableRelay/internal/app"
	"github.com/dkeye/TableRelay/internal/core"
)

// onRTC forwards an offer or answer untouched to every other member. Media
// never flows through the relay.
func (o *Orchestrator) onRTC(info app.SessionInfo, blob string, raw []byte) {
	if o.Settings.ValidateSDP {
		var sd sdp.SessionDescription
		if err := sd.Unmarshal([]byte(blob)); err != nil {
			log.Debug().Str("module", "orch").Str("sid", string(info.SID)).Err(err).Msg("unparsable sdp dropped")
			return
		}
	}
	f := append(core.Frame(nil), raw...)
	o.withRoom(info, func(tx *core.RoomTx) {
		tx.Broadcast(info.PlayerID, f)
	})
}
