package coordinator

import (
	"context"
	"time"

	"github.com/upperlevel/carcassonne-server/internal/ids"
	"github.com/upperlevel/carcassonne-server/internal/logging"
	"github.com/upperlevel/carcassonne-server/internal/metrics"
	"go.uber.org/zap"
)

// LifecyclePublisher is the coordinator's one-way hook into an external
// telemetry mirror (internal/events). It is never required for correctness:
// a nil publisher simply means lifecycle events aren't mirrored anywhere.
// Publish is called synchronously from the run loop and returns nothing;
// the coordinator never reads state back through it.
type LifecyclePublisher interface {
	Publish(ctx context.Context, event string, payload any)
}

type noopPublisher struct{}

func (noopPublisher) Publish(context.Context, string, any) {}

// Options configures a Coordinator.
type Options struct {
	// EnforceNameUniqueness gates the legacy username-collision check
	// (JoinNameConflict) described in SPEC_FULL.md's supplemented features.
	// Defaults to false, matching the current upstream behavior.
	EnforceNameUniqueness bool

	// Publisher mirrors room lifecycle events externally. Optional.
	Publisher LifecyclePublisher

	// IdleReapInterval controls the defensive invariant-check sweep.
	// Defaults to 60s; set negative to disable (tests).
	IdleReapInterval time.Duration

	// InboxSize bounds the request channel. Defaults to 256.
	InboxSize int
}

func (o Options) withDefaults() Options {
	if o.Publisher == nil {
		o.Publisher = noopPublisher{}
	}
	if o.IdleReapInterval == 0 {
		o.IdleReapInterval = 60 * time.Second
	}
	if o.InboxSize == 0 {
		o.InboxSize = 256
	}
	return o
}

// Coordinator is the single-writer owner of every player and room record.
// Callers enqueue a Request onto inbox through Submit and, for RPC-style
// requests, then block on that request's own reply channel; all mutation
// happens on the goroutine started by Run.
type Coordinator struct {
	opts Options
	reg  *registry
	inbox chan Request
}

// New constructs a Coordinator. Call Run to start processing requests.
func New(opts Options) *Coordinator {
	opts = opts.withDefaults()
	return &Coordinator{
		opts:  opts,
		reg:   newRegistry(),
		inbox: make(chan Request, opts.InboxSize),
	}
}

// Run drains the inbox sequentially until ctx is cancelled. It is intended
// to be the body of the coordinator's single goroutine; invariant
// violations panic here so the process dies loudly with a stack trace
// rather than continuing with corrupted state (SPEC_FULL.md's ambient
// error-handling stance).
func (c *Coordinator) Run(ctx context.Context) {
	var reapTicker *time.Ticker
	var reapC <-chan time.Time
	if c.opts.IdleReapInterval > 0 {
		reapTicker = time.NewTicker(c.opts.IdleReapInterval)
		defer reapTicker.Stop()
		reapC = reapTicker.C
	}

	for {
		select {
		case <-ctx.Done():
			logging.Info(ctx, "coordinator: run loop stopping")
			return
		case req := <-c.inbox:
			metrics.CoordinatorMailboxDepth.Set(float64(len(c.inbox)))
			c.dispatch(ctx, req)
		case <-reapC:
			c.reapIdleRooms(ctx)
		}
	}
}

// Submit enqueues a fire-and-forget request. It never blocks the caller on
// coordinator processing, only on inbox capacity.
func (c *Coordinator) Submit(req Request) {
	c.inbox <- req
}

func (c *Coordinator) dispatch(ctx context.Context, req Request) {
	start := time.Now()
	name, outcome := "unknown", "ok"
	defer func() {
		if r := recover(); r != nil {
			logging.Error(ctx, "coordinator: invariant violation", zap.Any("request", name), zap.Any("panic", r))
			panic(r)
		}
		metrics.CoordinatorRequests.WithLabelValues(name, outcome).Inc()
		metrics.CoordinatorRequestDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
	}()

	switch r := req.(type) {
	case RegisterSession:
		name = "register_session"
		c.handleRegisterSession(ctx, r)
	case Disconnect:
		name = "disconnect"
		c.handleDisconnect(ctx, r)
	case EditCosmetics:
		name = "edit_cosmetics"
		c.handleEditCosmetics(ctx, r)
	case FindRoom:
		name = "find_room"
		c.handleFindRoom(ctx, r)
	case CreateRoom:
		name = "create_room"
		c.handleCreateRoom(ctx, r)
	case JoinRoom:
		name = "join_room"
		c.handleJoinRoom(ctx, r)
	case LeaveRoom:
		name = "leave_room"
		c.handleLeaveRoom(ctx, r)
	case StartRoom:
		name = "start_room"
		c.handleStartRoom(ctx, r)
	case SendRelayMex:
		name = "send_relay_mex"
		c.handleSendRelayMex(ctx, r)
	case GameEndRequest:
		name = "game_end_request"
		c.handleGameEndRequest(ctx, r)
	default:
		outcome = "unknown_request_type"
		logging.Error(ctx, "coordinator: unknown request type")
	}

	c.refreshGauges()
}

func (c *Coordinator) refreshGauges() {
	metrics.ActiveRooms.Set(float64(len(c.reg.rooms)))
	metrics.PublicRoomsAvailable.Set(float64(c.reg.pubRoomsAvailable.Len()))
}

// newPlayerID allocates a fresh id against the live player registry.
func (c *Coordinator) newPlayerID() ids.IdType {
	return ids.Generate(c.reg.playerIDs())
}

// newRoomID allocates a fresh id against the live room registry.
func (c *Coordinator) newRoomID() ids.IdType {
	return ids.Generate(c.reg.roomIDs())
}
