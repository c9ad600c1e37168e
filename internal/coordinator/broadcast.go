package coordinator

import "github.com/upperlevel/carcassonne-server/internal/ids"

// broadcastLobby delivers ev to every member of rm except skip (if set),
// skipping any recipient currently in_game. This is the lobby-phase
// broadcast used by JoinRoom/EditCosmetics: in-game players never see
// lobby chatter (original_source/src/server_actor.rs's broadcast_event_room).
func (c *Coordinator) broadcastLobby(rm *room, ev OutEvent, skip *ids.IdType) {
	for _, pid := range rm.players.UnsortedList() {
		if skip != nil && pid == *skip {
			continue
		}
		p, ok := c.reg.players[pid]
		if !ok || p.inGame {
			continue
		}
		p.addr.PushEvent(ev)
	}
}

// broadcastRoomStart delivers ev to every member of rm, in-game or not
// (StartRoom's push reaches everyone, unlike the lobby-only broadcasts).
func (c *Coordinator) broadcastRoomStart(rm *room, ev OutEvent) {
	for _, pid := range rm.players.UnsortedList() {
		if p, ok := c.reg.players[pid]; ok {
			p.addr.PushEvent(ev)
		}
	}
}

// broadcastLeave delivers the dual leave notification to every remaining
// member of rm: in-game recipients get the PlayerLeftGame wire variant,
// everyone else gets EventPlayerLeft. Unlike broadcastLobby this never
// skips an in-game recipient — it routes to a different event for them.
func (c *Coordinator) broadcastLeave(rm *room, leaver ids.IdType, newHost *ids.IdType) {
	lobbyEvent := EventPlayerLeft{Player: leaver, NewHost: newHost}
	gameEvent := PlayerLeftGame{Player: leaver, NewHost: newHost}
	for _, pid := range rm.players.UnsortedList() {
		p, ok := c.reg.players[pid]
		if !ok {
			continue
		}
		if p.inGame {
			p.addr.PushEvent(gameEvent)
		} else {
			p.addr.PushEvent(lobbyEvent)
		}
	}
}
