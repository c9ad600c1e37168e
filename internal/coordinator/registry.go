package coordinator

import (
	"github.com/upperlevel/carcassonne-server/internal/ids"
	"k8s.io/utils/set"
)

// SessionHandle is how the coordinator pushes events and relayed game
// payloads to a connected session without depending on the transport or
// session packages, mirroring the teacher's wsConnection abstraction: the
// coordinator only needs "can I hand this session a message", never the
// concrete websocket.
type SessionHandle interface {
	// PushEvent delivers a lobby/lifecycle event (EventPlayerJoined, etc.).
	PushEvent(ev OutEvent)
	// PushRelay delivers an opaque in-game relay frame.
	PushRelay(data string)
}

// player is the coordinator's internal record for a registered player. It
// is never exposed outside the package; PlayerObject is the public
// projection sent over the wire.
type player struct {
	addr      SessionHandle
	obj       PlayerObject
	room      ids.IdType // 0 == not in a room
	inRoom    bool
	isHost    bool
	inGame    bool
}

// room is the coordinator's internal record for a room.
type room struct {
	id        ids.IdType
	state     RoomState
	players   set.Set[ids.IdType]
	inGameCount int

	startCountdown *countdownHandle
}

func newRoom(id ids.IdType) *room {
	return &room{
		id:      id,
		state:   Matchmaking,
		players: set.New[ids.IdType](),
	}
}

// registry holds every player and room record, plus the public-room
// matchmaking indices (I4). It is only ever touched from the coordinator's
// run loop.
type registry struct {
	players map[ids.IdType]*player
	rooms   map[ids.IdType]*room

	pubRooms          set.Set[ids.IdType] // every live room created by FindRoom (I4)
	pubRoomsAvailable set.Set[ids.IdType] // public rooms still open to FindRoom
}

func newRegistry() *registry {
	return &registry{
		players:           make(map[ids.IdType]*player),
		rooms:             make(map[ids.IdType]*room),
		pubRooms:          set.New[ids.IdType](),
		pubRoomsAvailable: set.New[ids.IdType](),
	}
}

func (r *registry) playerIDs() ids.Set {
	return ids.FromMap(r.players)
}

func (r *registry) roomIDs() ids.Set {
	return ids.FromMap(r.rooms)
}

// rosterOf returns the current PlayerObject list for a room, in the
// registry's iteration order (spec.md does not mandate a stable order).
func (r *registry) rosterOf(rm *room) []PlayerObject {
	roster := make([]PlayerObject, 0, rm.players.Len())
	for _, pid := range rm.players.UnsortedList() {
		if p, ok := r.players[pid]; ok {
			roster = append(roster, p.obj)
		}
	}
	return roster
}
