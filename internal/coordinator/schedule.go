package coordinator

import (
	"time"

	"github.com/upperlevel/carcassonne-server/internal/ids"
)

// countdownHandle is the cancellable handle for a room's pending
// auto-start countdown (I5). It wraps a time.Timer whose fire action is
// "enqueue a StartRoom into the coordinator's own inbox" — the runtime
// primitive SPEC_FULL.md's design notes call schedule_after/cancel.
type countdownHandle struct {
	timer *time.Timer
}

// scheduleStartRoom arms a countdown that, after d, submits a
// coordinator-originated StartRoom request for roomID. The returned handle
// must be stored on the room and cancelled by cancelCountdown on any
// transition that would otherwise violate I5.
func (c *Coordinator) scheduleStartRoom(roomID ids.IdType, d time.Duration) *countdownHandle {
	h := &countdownHandle{}
	h.timer = time.AfterFunc(d, func() {
		// A timer that fires after the room has already transitioned out
		// of the state that armed it is harmless: handleStartRoom
		// re-resolves the room and no-ops if conditions no longer hold.
		c.inbox <- StartRoom{
			fromCountdown: true,
			countdownRoom: roomID,
			ConnectionType: "server_broadcast",
		}
	})
	return h
}

// cancelCountdown stops rm's pending countdown, if any, and reports
// whether one was actually pending.
func (c *Coordinator) cancelCountdown(rm *room) bool {
	if rm.startCountdown == nil {
		return false
	}
	rm.startCountdown.timer.Stop()
	rm.startCountdown = nil
	return true
}
