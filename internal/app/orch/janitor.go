package orch

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/TableRelay/internal/core"
	"github.com/dkeye/TableRelay/internal/domain"
)

// RunJanitor purges expired resume tokens and idle rooms every interval until
// ctx is done. Rooms that a live token still points into are kept. Seats of
// departed players whose tokens lapsed are released.
func (o *Orchestrator) RunJanitor(ctx context.Context, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			o.Sweep(now)
		}
	}
}

// Sweep runs one janitor pass.
func (o *Orchestrator) Sweep(now time.Time) {
	if n := o.Resume.Purge(); n > 0 {
		log.Info().Str("module", "orch.janitor").Int("count", n).Msg("expired resume tokens purged")
	}
	o.releaseLapsed()
	if o.Settings.IdleTTL <= 0 {
		return
	}
	for _, id := range o.Rooms.Sweep(now, o.Settings.IdleTTL, o.Resume.Outstanding) {
		log.Debug().Str("module", "orch.janitor").Str("room", string(id)).Msg("idle room removed")
	}
}

// releaseLapsed forgets the seat and profile of every absent player that can
// no longer resume.
func (o *Orchestrator) releaseLapsed() {
	for _, info := range o.Rooms.List() {
		room, ok := o.Rooms.GetRoom(info.ID)
		if !ok {
			continue
		}
		var gone []domain.PlayerID
		room.Exec(func(tx *core.RoomTx) {
			gone = tx.ForgetAbsent(func(pid domain.PlayerID) bool {
				return o.Resume.Holds(info.ID, pid)
			})
		})
		for _, pid := range gone {
			log.Debug().Str("module", "orch.janitor").Str("room", string(info.ID)).Str("player", string(pid)).Msg("lapsed seat released")
		}
	}
}
