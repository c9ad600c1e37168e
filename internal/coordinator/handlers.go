package coordinator

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/upperlevel/carcassonne-server/internal/ids"
	"github.com/upperlevel/carcassonne-server/internal/logging"
	"go.uber.org/zap"
)

func (c *Coordinator) handleRegisterSession(ctx context.Context, r RegisterSession) {
	if r.ID != nil {
		p, ok := c.reg.players[*r.ID]
		if !ok {
			panic("coordinator: RegisterSession re-login for unknown player id")
		}
		p.addr = r.Addr
		if !p.inRoom {
			p.obj.Username = r.Username
			p.obj.Cosmetics = r.Cosmetics
		}
		r.Reply <- RegisterSessionResult{ID: *r.ID}
		return
	}

	id := c.newPlayerID()
	c.reg.players[id] = &player{
		addr: r.Addr,
		obj: PlayerObject{
			ID:        id,
			Username:  r.Username,
			Cosmetics: r.Cosmetics,
		},
	}
	r.Reply <- RegisterSessionResult{ID: id}
}

func (c *Coordinator) handleDisconnect(ctx context.Context, r Disconnect) {
	c.leaveRoomIfAny(ctx, r.ID)
	delete(c.reg.players, r.ID)
}

func (c *Coordinator) handleEditCosmetics(ctx context.Context, r EditCosmetics) {
	p, ok := c.reg.players[r.ID]
	if !ok {
		panic("coordinator: EditCosmetics for unknown player id")
	}
	if p.obj.Cosmetics == r.Cosmetics {
		return
	}
	p.obj.Cosmetics = r.Cosmetics

	if !p.inRoom {
		return
	}
	rm, ok := c.reg.rooms[p.room]
	if !ok {
		return
	}
	id := r.ID
	c.broadcastLobby(rm, EventPlayerAvatarChange{Player: p.obj.ID, Cosmetics: r.Cosmetics}, &id)
}

func (c *Coordinator) handleFindRoom(ctx context.Context, r FindRoom) {
	var roomID ids.IdType
	justCreated := false

	found := false
	for _, candidate := range c.reg.pubRoomsAvailable.UnsortedList() {
		roomID = candidate
		found = true
		break
	}

	if found {
		res := c.joinRoomInternal(ctx, r.ID, roomID, r.EnforceNameUniqueness)
		// FindRoom never surfaces JoinRoom's failure variants: a room
		// drawn from pub_rooms_available is always joinable by
		// construction (I4), so Success is the only reachable outcome
		// here.
		r.Reply <- FindRoomResult{
			RoomID:      roomID,
			Players:     res.Players,
			JustCreated: false,
		}
		return
	}

	roomID = c.createRoomInternal(ctx, r.ID, true)
	justCreated = true
	rm := c.reg.rooms[roomID]
	r.Reply <- FindRoomResult{
		RoomID:      roomID,
		Players:     c.reg.rosterOf(rm),
		JustCreated: justCreated,
	}
}

func (c *Coordinator) handleCreateRoom(ctx context.Context, r CreateRoom) {
	c.leaveRoomIfAny(ctx, r.ID)
	roomID := c.createRoomInternal(ctx, r.ID, false)
	p := c.reg.players[r.ID]
	r.Reply <- CreateRoomResult{RoomID: roomID, Player: p.obj}
}

// createRoomInternal allocates a fresh room with host as its sole member
// and, if public, adds it to both matchmaking indices.
func (c *Coordinator) createRoomInternal(ctx context.Context, host ids.IdType, public bool) ids.IdType {
	roomID := c.newRoomID()
	rm := newRoom(roomID)
	rm.players.Insert(host)
	c.reg.rooms[roomID] = rm

	p := c.reg.players[host]
	p.isHost = true
	p.obj.IsHost = true
	p.room = roomID
	p.inRoom = true

	if public {
		c.reg.pubRooms.Insert(roomID)
		c.reg.pubRoomsAvailable.Insert(roomID)
	}

	c.opts.Publisher.Publish(ctx, "room_created", struct {
		RoomID string `json:"roomId"`
	}{RoomID: ids.SerId(roomID)})

	return roomID
}

func (c *Coordinator) handleJoinRoom(ctx context.Context, r JoinRoom) {
	res := c.joinRoomInternal(ctx, r.ID, r.RoomID, r.EnforceNameUniqueness)
	r.Reply <- res
}

// joinRoomInternal implements JoinRoom's full algorithm and is also used
// directly by FindRoom's "found an existing room" path so both produce
// identical observable broadcasts, per spec.md's requirement (the original
// Rust source achieves this via ctx.notify(JoinRoom{...}); a direct call
// is equivalent here because the coordinator is strictly single-writer).
// enforceNameUniqueness is the effective per-call decision: the coordinator's
// process-wide default, or the caller's own override, whichever demands it.
func (c *Coordinator) joinRoomInternal(ctx context.Context, playerID, roomID ids.IdType, enforceNameUniqueness bool) JoinRoomResult {
	c.leaveRoomIfAny(ctx, playerID)

	rm, ok := c.reg.rooms[roomID]
	if !ok {
		return JoinRoomResult{Outcome: JoinRoomNotFound}
	}
	if rm.state != Matchmaking {
		return JoinRoomResult{Outcome: JoinAlreadyPlaying}
	}
	if rm.players.Len() >= MaxPlayersPerRoom {
		return JoinRoomResult{Outcome: JoinRoomIsFull}
	}
	if c.opts.EnforceNameUniqueness || enforceNameUniqueness {
		p := c.reg.players[playerID]
		for _, pid := range rm.players.UnsortedList() {
			if other, ok := c.reg.players[pid]; ok && other.obj.Username == p.obj.Username {
				return JoinRoomResult{Outcome: JoinNameConflict}
			}
		}
	}

	rm.players.Insert(playerID)
	p := c.reg.players[playerID]
	p.room = roomID
	p.inRoom = true

	c.broadcastLobby(rm, EventPlayerJoined{Player: p.obj}, nil)
	logging.Info(ctx, "room joined", zap.String("room_id", ids.SerId(roomID)), zap.String("player_id", ids.SerId(playerID)))

	if rm.players.Len() == MinPlayersPerRoom {
		rm.startCountdown = c.scheduleStartRoomCountdown(roomID)
	}
	if rm.players.Len() == MaxPlayersPerRoom {
		c.reg.pubRoomsAvailable.Delete(roomID)
	}

	return JoinRoomResult{Outcome: JoinSuccess, Players: c.reg.rosterOf(rm)}
}

func (c *Coordinator) scheduleStartRoomCountdown(roomID ids.IdType) *countdownHandle {
	return c.scheduleStartRoom(roomID, RoomCountdownOnMinPlayers*time.Second)
}

func (c *Coordinator) handleLeaveRoom(ctx context.Context, r LeaveRoom) {
	c.leaveRoomIfAny(ctx, r.ID)
}

// leaveRoomIfAny implements leave_room_if_any: remove the player from
// their room (if any), maintain I3-I6, and broadcast either the
// host-promotion-carrying leave event or nothing if the room is now empty.
func (c *Coordinator) leaveRoomIfAny(ctx context.Context, playerID ids.IdType) {
	p, ok := c.reg.players[playerID]
	if !ok || !p.inRoom {
		return
	}
	roomID := p.room
	rm, ok := c.reg.rooms[roomID]
	if !ok {
		panic("coordinator: player references nonexistent room")
	}

	rm.players.Delete(playerID)

	if rm.players.Len() < MinPlayersPerRoom {
		c.cancelCountdown(rm)
	}
	if c.reg.pubRooms.Has(roomID) && rm.state == Matchmaking && rm.players.Len() < MaxPlayersPerRoom {
		c.reg.pubRoomsAvailable.Insert(roomID)
	}
	if p.inGame {
		rm.inGameCount--
	}

	wasHost := p.isHost
	p.room = 0
	p.inRoom = false
	p.isHost = false
	p.obj.IsHost = false

	if rm.players.Len() == 0 {
		delete(c.reg.rooms, roomID)
		c.reg.pubRooms.Delete(roomID)
		c.reg.pubRoomsAvailable.Delete(roomID)
		c.opts.Publisher.Publish(ctx, "room_destroyed", struct {
			RoomID string `json:"roomId"`
		}{RoomID: ids.SerId(roomID)})
		return
	}

	var newHost *ids.IdType
	if wasHost {
		for _, pid := range rm.players.UnsortedList() {
			other := c.reg.players[pid]
			other.isHost = true
			other.obj.IsHost = true
			h := pid
			newHost = &h
			break
		}
	}

	c.broadcastLeave(rm, playerID, newHost)
}

func (c *Coordinator) handleStartRoom(ctx context.Context, r StartRoom) {
	var roomID ids.IdType
	if r.fromCountdown {
		roomID = r.countdownRoom
	} else {
		p, ok := c.reg.players[r.ID]
		if !ok || !p.inRoom {
			return
		}
		roomID = p.room
	}

	rm, ok := c.reg.rooms[roomID]
	if !ok {
		return
	}
	// A countdown StartRoom that was already queued when its countdown got
	// cancelled finds no pending handle and does nothing.
	if r.fromCountdown && rm.startCountdown == nil {
		return
	}

	c.cancelCountdown(rm)
	c.reg.pubRoomsAvailable.Delete(roomID)

	if rm.state != Matchmaking || rm.players.Len() < 2 {
		return
	}

	connType := r.ConnectionType
	if connType == "" {
		connType = "server_broadcast"
	}
	event := EventRoomStart{
		ConnectionType: connType,
		BroadcastID:    strconv.FormatUint(uint64(roomID), 10),
	}

	if rm.inGameCount > 0 {
		var stragglers []ids.IdType
		for _, pid := range rm.players.UnsortedList() {
			if p, ok := c.reg.players[pid]; ok && p.inGame {
				stragglers = append(stragglers, pid)
			}
		}
		for _, pid := range stragglers {
			c.leaveRoomIfAny(ctx, pid)
		}
		rm, ok = c.reg.rooms[roomID]
		if !ok {
			return
		}
	}

	rm.state = Playing
	c.broadcastRoomStart(rm, event)
	for _, pid := range rm.players.UnsortedList() {
		if p, ok := c.reg.players[pid]; ok {
			p.inGame = true
		}
	}
	rm.inGameCount = rm.players.Len()

	c.opts.Publisher.Publish(ctx, "match_started", struct {
		RoomID string `json:"roomId"`
	}{RoomID: ids.SerId(roomID)})
}

func (c *Coordinator) handleSendRelayMex(ctx context.Context, r SendRelayMex) {
	if r.Data == "" {
		return
	}
	sender, ok := c.reg.players[r.SenderID]
	if !ok || !sender.inRoom {
		return
	}
	rm, ok := c.reg.rooms[sender.room]
	if !ok {
		return
	}
	if !strings.HasPrefix(r.Data, "{") {
		return
	}
	raw := "{\"sender\":\"" + ids.SerId(r.SenderID) + "\"," + r.Data[1:]

	for _, pid := range rm.players.UnsortedList() {
		if pid == r.SenderID {
			continue
		}
		if p, ok := c.reg.players[pid]; ok && p.inGame {
			p.addr.PushRelay(raw)
		}
	}
}

func (c *Coordinator) handleGameEndRequest(ctx context.Context, r GameEndRequest) {
	p, ok := c.reg.players[r.ID]
	if !ok || !p.inRoom || !p.inGame {
		r.Reply <- GameEndResult{Ok: false}
		return
	}
	rm, ok := c.reg.rooms[p.room]
	if !ok {
		r.Reply <- GameEndResult{Ok: false}
		return
	}

	rm.state = Matchmaking
	p.inGame = false
	rm.inGameCount--

	c.opts.Publisher.Publish(ctx, "match_ended", struct {
		RoomID string `json:"roomId"`
	}{RoomID: ids.SerId(p.room)})

	r.Reply <- GameEndResult{Ok: true, Players: c.reg.rosterOf(rm)}
}
