// Package coordinator implements the single-writer game room coordinator:
// the authoritative owner of every player and room record. All mutation of
// that state happens on one goroutine draining a typed request channel, the
// way the teacher backend's Hub owns its room map from a single loop, except
// here the loop reads a channel of explicit request structs instead of
// locking a shared map from many goroutines.
package coordinator

import (
	"github.com/upperlevel/carcassonne-server/internal/ids"
)

// RoomState is the lifecycle state of a room.
type RoomState int

const (
	// Matchmaking is a room accepting players, pre-game.
	Matchmaking RoomState = iota
	// Playing is a room whose match has started.
	Playing
)

func (s RoomState) String() string {
	switch s {
	case Matchmaking:
		return "matchmaking"
	case Playing:
		return "playing"
	default:
		return "unknown"
	}
}

// Cosmetics is the client-supplied appearance payload. Its fields flatten
// into the wire object that embeds it (PlayerObject, EventPlayerAvatarChange)
// rather than nesting under a "cosmetics" key, matching the original
// protocol's #[serde(flatten)] PlayerObject.cosmetics field. The
// coordinator never inspects these values, only stores and relays them.
type Cosmetics struct {
	Avatar uint32 `json:"avatar"`
	Color  uint64 `json:"color"`
}

// PlayerObject is the player-facing record broadcast in room rosters and
// join/create replies. It deliberately excludes connection-plumbing fields
// (the session address, room membership bookkeeping) that are internal to
// the coordinator's player registry.
type PlayerObject struct {
	ID       ids.IdType `json:"id"`
	Username string     `json:"username"`
	Cosmetics
	IsHost bool `json:"isHost"`
}

// Constants from spec.md section 3.
const (
	MaxPlayersPerRoom        = 8
	MinPlayersPerRoom        = 3
	RoomCountdownOnMinPlayers = 30 // seconds
	RelayQueueMaxSize        = 64
)
