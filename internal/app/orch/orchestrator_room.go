package orch

import (
	"github.com/rs/zerolog/log"

	"github.com/dkeye/TableRelay/internal/app"
	"github.com/dkeye/TableRelay/internal/core"
	"github.com/dkeye/TableRelay/internal/domain"
	"github.com/dkeye/TableRelay/internal/protocol"
)

// joinAttempts bounds how often a join chases a room that was closed between
// lookup and admission.
const joinAttempts = 3

func (o *Orchestrator) onCreateRoom(info app.SessionInfo, m *protocol.CreateRoom) {
	if info.RoomID != "" {
		o.leaveRoom(info, true)
		info.RoomID, info.State = "", app.StateAwaitingRoom
	}
	created, replaced := o.Rooms.CreateRoom(domain.NewRoom(m.RoomID, m.PIN, m.Config))
	if replaced != nil {
		o.evictMembers(replaced)
	}
	id := created.Room().ID
	o.sendDirect(info, &protocol.CreateRoom{RoomID: id})
	log.Info().Str("module", "orch").Str("sid", string(info.SID)).Str("room", string(id)).Msg("room created")
	if !o.admit(info, created, nil) {
		log.Info().Str("module", "orch").Str("sid", string(info.SID)).Str("room", string(id)).Msg("room replaced before its creator joined")
		o.sendDirect(info, &protocol.Kick{PlayerID: info.PlayerID})
	}
}

func (o *Orchestrator) onJoin(info app.SessionInfo, m *protocol.Join) {
	profile := sanitizeProfile(m.Profile)
	for range joinAttempts {
		room, ok := o.joinTarget(m.RoomID)
		if !ok {
			log.Info().Str("module", "orch").Str("sid", string(info.SID)).Str("room", string(m.RoomID)).Msg("join to unknown room refused")
			o.sendDirect(info, &protocol.Kick{PlayerID: info.PlayerID})
			return
		}
		if !room.Room().CheckPIN(m.PIN) {
			log.Info().Str("module", "orch").Str("sid", string(info.SID)).Str("room", string(m.RoomID)).Msg("join refused: bad pin")
			o.sendDirect(info, &protocol.Kick{PlayerID: info.PlayerID})
			return
		}
		if info.RoomID != "" && info.RoomID != m.RoomID {
			o.leaveRoom(info, true)
			info.RoomID, info.State = "", app.StateAwaitingRoom
		}
		if o.admit(info, room, profile) {
			return
		}
		log.Debug().Str("module", "orch").Str("sid", string(info.SID)).Str("room", string(m.RoomID)).Msg("room closed during join, retrying")
	}
	o.sendDirect(info, &protocol.Kick{PlayerID: info.PlayerID})
}

// joinTarget finds the room a JOIN names, creating it when auto-create is on.
func (o *Orchestrator) joinTarget(id domain.RoomID) (core.RoomService, bool) {
	if room, ok := o.Rooms.GetRoom(id); ok {
		return room, true
	}
	if !o.Settings.AutoCreate {
		return nil, false
	}
	room, _ := o.Rooms.GetOrCreate(id)
	return room, true
}

// admit puts the session into room. A session already in the room only gets
// a fresh resume token. It reports false if the room was closed meanwhile.
func (o *Orchestrator) admit(info app.SessionInfo, room core.RoomService, profile *domain.Profile) bool {
	id := room.Room().ID
	pid := info.PlayerID
	admitted := false
	res := room.Exec(func(tx *core.RoomTx) {
		if ms, ok := tx.Member(pid); ok && ms.SID() == info.SID {
			tx.SendTo(pid, frame(&protocol.ResumeToken{ResumeToken: o.Resume.Issue(id, pid, tx.Seq())}))
			admitted = true
			return
		}
		if profile == nil {
			profile = tx.Profile(pid)
		}
		if err := tx.Admit(core.NewMemberSession(info.SID, domain.NewMember(pid, profile), info.Signal)); err != nil {
			return
		}
		admitted = true
		o.Registry.UpdateRoom(info.SID, id)

		tx.Broadcast("", frame(&protocol.Join{RoomID: id, PlayerID: pid, Profile: profile}))
		tx.SendTo(pid, frame(&protocol.ResumeToken{ResumeToken: o.Resume.Issue(id, pid, tx.Seq())}))
		if snap, ok := tx.LatestSnapshot(); ok {
			tx.SendTo(pid, snapshotFrame(snap))
		}
	})
	o.applyPolicy(room, res)
	return admitted
}

func (o *Orchestrator) onLeave(info app.SessionInfo, m *protocol.Leave) {
	if m.PlayerID != info.PlayerID || m.RoomID != info.RoomID {
		log.Debug().Str("module", "orch").Str("sid", string(info.SID)).Msg("leave for another player or room ignored")
		return
	}
	o.leaveRoom(info, true)
}

// leaveRoom removes the session's player from its room and tells the rest.
// forget also drops the seat and every resume token of the player; it is
// false when the socket merely went away.
func (o *Orchestrator) leaveRoom(info app.SessionInfo, forget bool) {
	pid := info.PlayerID
	if room, ok := o.Rooms.GetRoom(info.RoomID); ok {
		res := room.Exec(func(tx *core.RoomTx) {
			ms, ok := tx.Member(pid)
			if !ok || ms.SID() != info.SID {
				return
			}
			tx.Remove(pid)
			if forget {
				tx.Forget(pid)
			}
			tx.Broadcast(pid, frame(&protocol.Leave{RoomID: info.RoomID, PlayerID: pid}))
		})
		o.applyPolicy(room, res)
	}
	o.Registry.RemoveRoom(info.SID, info.RoomID)
	if forget {
		o.Resume.Revoke(pid)
	}
}

// evictMembers detaches everyone from a room that is no longer reachable,
// each of them receiving KICK.
func (o *Orchestrator) evictMembers(room core.RoomService) {
	id := room.Room().ID
	var evicted []domain.PlayerID
	room.Exec(func(tx *core.RoomTx) {
		for _, ms := range tx.Members() {
			pid := ms.Meta().ID
			tx.Remove(pid)
			if err := ms.Signal().TrySend(frame(&protocol.Kick{PlayerID: pid})); err != nil {
				log.Debug().Str("module", "orch").Str("sid", string(ms.SID())).Err(err).Msg("kick not delivered")
			}
			o.Registry.RemoveRoom(ms.SID(), id)
			evicted = append(evicted, pid)
		}
	})
	for _, pid := range evicted {
		o.Resume.Revoke(pid)
	}
	if len(evicted) > 0 {
		log.Info().Str("module", "orch").Str("room", string(id)).Int("count", len(evicted)).Msg("members evicted")
	}
}

// EvictRoom kicks everyone out of a room and removes it.
func (o *Orchestrator) EvictRoom(id domain.RoomID) bool {
	room, ok := o.Rooms.GetRoom(id)
	if !ok {
		return false
	}
	o.Rooms.StopRoom(id)
	o.evictMembers(room)
	return true
}

func (o *Orchestrator) onSeat(info app.SessionInfo, m *protocol.Seat) {
	o.withRoom(info, func(tx *core.RoomTx) {
		target := m.PlayerID
		if target != info.PlayerID && tx.Host() != info.PlayerID {
			log.Debug().Str("module", "orch").Str("sid", string(info.SID)).Msg("seat change for another player refused")
			return
		}
		if _, ok := tx.Member(target); !ok {
			return
		}
		if err := tx.SetSeat(target, *m.Seat); err != nil {
			log.Debug().Str("module", "orch").Str("player", string(target)).Int("seat", *m.Seat).Err(err).Msg("seat refused")
			return
		}
		tx.Broadcast(info.PlayerID, frame(&protocol.Seat{PlayerID: target, Seat: protocol.Int(*m.Seat)}))
	})
}

func (o *Orchestrator) onReady(info app.SessionInfo, m *protocol.Ready) {
	o.withRoom(info, func(tx *core.RoomTx) {
		ms, _ := tx.Member(info.PlayerID)
		ms.Meta().Ready = *m.Ready
		tx.Broadcast(info.PlayerID, frame(&protocol.Ready{PlayerID: info.PlayerID, Ready: protocol.Bool(*m.Ready)}))
	})
}

func (o *Orchestrator) onPause(info app.SessionInfo, paused bool) {
	o.withRoom(info, func(tx *core.RoomTx) {
		if tx.Host() != info.PlayerID {
			return
		}
		tx.SetPaused(paused)
		hc := protocol.HostControl{RoomID: info.RoomID}
		if paused {
			tx.Broadcast("", frame(&protocol.Pause{HostControl: hc}))
		} else {
			tx.Broadcast("", frame(&protocol.Resume{HostControl: hc}))
		}
		log.Info().Str("module", "orch").Str("room", string(info.RoomID)).Bool("paused", paused).Msg("pause toggled")
	})
}

func (o *Orchestrator) onEndGame(info app.SessionInfo) {
	o.withRoom(info, func(tx *core.RoomTx) {
		if tx.Host() != info.PlayerID {
			return
		}
		tx.SetPaused(false)
		tx.ResetReady()
		tx.Broadcast("", frame(&protocol.EndGame{HostControl: protocol.HostControl{RoomID: info.RoomID}}))
		log.Info().Str("module", "orch").Str("room", string(info.RoomID)).Msg("game ended")
	})
}

func sanitizeProfile(p *domain.Profile) *domain.Profile {
	if p == nil {
		return nil
	}
	clean, err := domain.NewProfile(p.Name, p.Avatar)
	if err != nil {
		log.Debug().Str("module", "orch").Err(err).Msg("profile ignored")
		return nil
	}
	return clean
}
