package coordinator

import "github.com/upperlevel/carcassonne-server/internal/ids"

// Request is the sealed set of messages the coordinator's run loop accepts.
// RPC-style requests embed a reply channel that receives exactly one value
// (the coordinator does not close it); fire-and-forget requests have none.
type Request interface {
	request()
}

// RegisterSession registers a new session or re-registers an existing one
// (re-login). If ID is nil, a fresh id is allocated. Addr is the session's
// push handle, installed (or replaced) on every call so a re-login always
// points the registry at the caller's current connection.
type RegisterSession struct {
	ID       *ids.IdType
	Addr     SessionHandle
	Username string
	Cosmetics Cosmetics
	Reply    chan RegisterSessionResult
}

func (RegisterSession) request() {}

// RegisterSessionResult is the synchronous reply to RegisterSession.
type RegisterSessionResult struct {
	ID ids.IdType
}

// Disconnect removes a player entirely: it first runs the full leave
// sequence (as LeaveRoom would) and then deletes the player record.
// Fire-and-forget: a session tears itself down regardless of reply.
type Disconnect struct {
	ID ids.IdType
}

func (Disconnect) request() {}

// EditCosmetics updates a registered player's cosmetics and, if they are
// currently in a lobby-phase room, broadcasts EventPlayerAvatarChange.
type EditCosmetics struct {
	ID        ids.IdType
	Cosmetics Cosmetics
}

func (EditCosmetics) request() {}

// FindRoom joins the caller into an available public room, or creates one
// if none is available.
type FindRoom struct {
	ID    ids.IdType
	Reply chan FindRoomResult

	// EnforceNameUniqueness requests the username-collision check on this
	// call regardless of the coordinator's process-wide default, so a
	// legacy entry point can opt a single connection into the stricter
	// behavior. See SPEC_FULL.md's supplemented features.
	EnforceNameUniqueness bool
}

func (FindRoom) request() {}

// FindRoomResult is the synchronous reply to FindRoom.
type FindRoomResult struct {
	RoomID     ids.IdType
	Players    []PlayerObject
	JustCreated bool
}

// CreateRoom creates a new private room with the caller as host.
type CreateRoom struct {
	ID    ids.IdType
	Reply chan CreateRoomResult
}

func (CreateRoom) request() {}

// CreateRoomResult is the synchronous reply to CreateRoom.
type CreateRoomResult struct {
	RoomID ids.IdType
	Player PlayerObject
}

// JoinRoomOutcome enumerates JoinRoom's (and FindRoom's existing-room path's)
// possible terminal results.
type JoinRoomOutcome int

const (
	JoinSuccess JoinRoomOutcome = iota
	JoinRoomNotFound
	JoinNameConflict
	JoinAlreadyPlaying
	JoinRoomIsFull
	// JoinGameIsFull is reserved for wire compatibility with the original
	// protocol's GameIsFull reply variant. The coordinator never constructs
	// it: FindRoom has no room-count ceiling that would produce it, matching
	// original_source/src/server_actor.rs's find_room.
	JoinGameIsFull
)

// JoinRoom adds the caller to an existing room.
type JoinRoom struct {
	ID     ids.IdType
	RoomID ids.IdType
	Reply  chan JoinRoomResult

	// EnforceNameUniqueness requests the username-collision check on this
	// call regardless of the coordinator's process-wide default. See
	// FindRoom's field of the same name.
	EnforceNameUniqueness bool
}

func (JoinRoom) request() {}

// JoinRoomResult is the synchronous reply to JoinRoom.
type JoinRoomResult struct {
	Outcome JoinRoomOutcome
	Players []PlayerObject
}

// LeaveRoom removes the caller from their current room, if any.
// Fire-and-forget.
type LeaveRoom struct {
	ID ids.IdType
}

func (LeaveRoom) request() {}

// StartRoom requests (or countdown-triggers) the transition to Playing.
// Fire-and-forget: the caller observes the transition via the
// EventRoomStart push, not a reply.
type StartRoom struct {
	ID             ids.IdType
	ConnectionType string

	// fromCountdown marks a self-scheduled StartRoom fired by the
	// coordinator's own countdown timer rather than a client request. The
	// room id is resolved directly rather than via the (possibly
	// now-stale) caller id.
	fromCountdown bool
	countdownRoom ids.IdType
}

func (StartRoom) request() {}

// SendRelayMex fans out an opaque in-game payload. Fire-and-forget.
type SendRelayMex struct {
	SenderID ids.IdType
	Data     string
}

func (SendRelayMex) request() {}

// GameEndRequest reports that the caller's match has ended.
type GameEndRequest struct {
	ID    ids.IdType
	Reply chan GameEndResult
}

func (GameEndRequest) request() {}

// GameEndResult is the synchronous reply to GameEndRequest. Ok is false when
// the caller was not in a room or not in-game, corresponding to the
// original's `None`.
type GameEndResult struct {
	Ok      bool
	Players []PlayerObject
}
