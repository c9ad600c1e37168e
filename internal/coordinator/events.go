package coordinator

import "github.com/upperlevel/carcassonne-server/internal/ids"

// OutEvent is a lobby/lifecycle event the coordinator pushes to one or more
// sessions. It is adjacently tagged on the wire ("type" field plus payload
// fields at the top level); the session/transport layer owns the actual
// JSON envelope, the coordinator only builds these typed values.
type OutEvent interface {
	outEvent()
}

// EventPlayerJoined is broadcast to every room member not currently in_game
// (joiner included) when a player joins an existing room via JoinRoom or
// FindRoom. CreateRoom sends no join event.
type EventPlayerJoined struct {
	Player PlayerObject `json:"player"`
}

func (EventPlayerJoined) outEvent() {}

// EventPlayerLeft is the lobby-phase leave notification (wire tag
// "event_player_left"), delivered to every remaining room member who is NOT
// currently in_game.
type EventPlayerLeft struct {
	Player  ids.IdType  `json:"player"`
	NewHost *ids.IdType `json:"newHost,omitempty"`
}

func (EventPlayerLeft) outEvent() {}

// PlayerLeftGame is the in-game leave notification (wire tag "player_left"),
// delivered to every remaining room member who IS currently in_game. It
// carries the same fields as EventPlayerLeft but a distinct wire tag, per
// the original protocol's OutGameEvent::PlayerLeft.
type PlayerLeftGame struct {
	Player  ids.IdType  `json:"player"`
	NewHost *ids.IdType `json:"newHost,omitempty"`
}

func (PlayerLeftGame) outEvent() {}

// EventPlayerAvatarChange is broadcast to lobby-phase (non in_game) room
// members when a player's cosmetics change.
type EventPlayerAvatarChange struct {
	Player ids.IdType `json:"player"`
	Cosmetics
}

func (EventPlayerAvatarChange) outEvent() {}

// EventRoomStart is pushed to every room member when StartRoom transitions
// the room to Playing. BroadcastID is the decimal string form of the room
// id (not SerId — the original protocol keeps this one field as a plain
// decimal string for the game client's own session correlation).
type EventRoomStart struct {
	ConnectionType string `json:"connectionType"`
	BroadcastID    string `json:"broadcastId"`
}

func (EventRoomStart) outEvent() {}
