package session

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/upperlevel/carcassonne-server/internal/coordinator"
	"github.com/upperlevel/carcassonne-server/internal/ids"
	"github.com/upperlevel/carcassonne-server/internal/logging"
	"github.com/upperlevel/carcassonne-server/internal/metrics"
	"go.uber.org/zap"
)

const (
	textMessageType = websocket.TextMessage
	pingMessageType = websocket.PingMessage
	pongMessageType = websocket.PongMessage
)

const (
	// HeartbeatInterval mirrors internal/config.HeartbeatInterval; kept as
	// a local constant so this package has no import-time dependency on
	// config for its own timing.
	HeartbeatInterval = 5 * time.Second
	// ClientTimeout mirrors internal/config.ClientTimeout.
	ClientTimeout = 10 * time.Second

	writeWait = 10 * time.Second

	// sendBufferSize bounds the outbound frame channel. A full buffer
	// means the client isn't draining its socket fast enough; the session
	// treats that as a liveness failure, the same verdict the original
	// reaches via heartbeat timeout, just detected earlier.
	sendBufferSize = 256
)

// wsConnection is the transport surface the session needs from a websocket
// connection. Satisfied by *websocket.Conn in production; mocked in tests,
// mirroring the teacher's wsConnection interface in session/client.go.
type wsConnection interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	WriteControl(messageType int, data []byte, deadline time.Time) error
	Close() error
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	SetPongHandler(h func(appData string) error)
	SetPingHandler(h func(appData string) error)
}

// Coordinator is the subset of *coordinator.Coordinator a session needs:
// enqueue a request, fire-and-forget or RPC-style (the request itself
// carries its own reply channel).
type Coordinator interface {
	Submit(req coordinator.Request)
}

// Session is a single connected client's protocol state machine. It owns a
// websocket connection, a coordinator handle, and the outbound message-id
// counter; it implements coordinator.SessionHandle so the coordinator can
// push events and relay frames back to it without knowing about websockets.
type Session struct {
	conn  wsConnection
	coord Coordinator

	// enforceNameUniqueness is fixed at construction from which endpoint
	// accepted the connection (the legacy /api/matchmaking alias sets this
	// true); it is carried on every JoinRoom/FindRoom this session submits,
	// per SPEC_FULL.md's supplemented features.
	enforceNameUniqueness bool

	mu         sync.Mutex
	state      clientState
	sessionID  ids.IdType
	registered bool
	nextSendID uint64
	relayQueue [][]byte

	send chan []byte
	done chan struct{}

	hbMu   sync.Mutex
	lastHB time.Time

	closeOnce sync.Once
}

// New constructs a Session in PreLogin, ready to have Run called on it.
// enforceNameUniqueness is true for connections accepted on the legacy
// matchmaking alias, false for the primary endpoint.
func New(conn wsConnection, coord Coordinator, enforceNameUniqueness bool) *Session {
	return &Session{
		conn:                  conn,
		coord:                 coord,
		enforceNameUniqueness: enforceNameUniqueness,
		state:                 clientState{kind: PreLogin},
		send:                  make(chan []byte, sendBufferSize),
		done:                  make(chan struct{}),
		lastHB:                time.Now(),
	}
}

// Run drives the session to completion: starts the write pump and
// heartbeat checker, then blocks on the read pump until the connection
// closes. On return the session has already torn itself down (including
// submitting Disconnect to the coordinator, if it had logged in).
func (s *Session) Run(ctx context.Context) {
	metrics.ActiveWebSocketConnections.Inc()
	defer metrics.ActiveWebSocketConnections.Dec()

	s.conn.SetPingHandler(func(data string) error {
		s.touchHeartbeat()
		return s.conn.WriteControl(pongMessageType, []byte(data), time.Now().Add(writeWait))
	})
	s.conn.SetPongHandler(func(string) error {
		s.touchHeartbeat()
		return nil
	})

	go s.writePump()
	go s.heartbeatChecker(ctx)

	s.readPump(ctx)
	s.teardown(ctx)
}

func (s *Session) touchHeartbeat() {
	s.hbMu.Lock()
	s.lastHB = time.Now()
	s.hbMu.Unlock()
}

func (s *Session) heartbeatExpired() bool {
	s.hbMu.Lock()
	defer s.hbMu.Unlock()
	return time.Since(s.lastHB) > ClientTimeout
}

func (s *Session) heartbeatChecker(ctx context.Context) {
	ticker := time.NewTicker(HeartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.done:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if s.heartbeatExpired() {
				logging.Warn(ctx, "session: heartbeat timed out, closing")
				s.Close()
				return
			}
			_ = s.conn.WriteControl(pingMessageType, nil, time.Now().Add(writeWait))
		}
	}
}

func (s *Session) writePump() {
	defer s.conn.Close()
	for {
		select {
		case <-s.done:
			return
		case frame, ok := <-s.send:
			if !ok {
				return
			}
			if err := s.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := s.conn.WriteMessage(textMessageType, frame); err != nil {
				return
			}
		}
	}
}

func (s *Session) readPump(ctx context.Context) {
	for {
		msgType, data, err := s.conn.ReadMessage()
		if err != nil {
			return
		}
		if msgType != textMessageType {
			continue
		}
		s.touchHeartbeat()
		s.handleFrame(ctx, data)
	}
}

func (s *Session) handleFrame(ctx context.Context, data []byte) {
	s.mu.Lock()
	kind := s.state.kind
	s.mu.Unlock()

	if kind == Playing {
		if isEndGameFrame(data) {
			s.handleEndGame(ctx)
			return
		}
		s.coord.Submit(coordinator.SendRelayMex{SenderID: s.sessionID, Data: string(data)})
		return
	}

	var env inboundEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		s.sendFrame(ctx, mustBuild(buildErrorFrame(nil, "Invalid Json", "")))
		return
	}
	if env.ID == nil {
		s.sendFrame(ctx, mustBuild(buildErrorFrame(nil, "Id missing", "")))
		return
	}
	id := *env.ID

	switch kind {
	case PreLogin:
		s.handlePreLogin(ctx, id, env.Type, data)
	case MatchMaking:
		s.handleMatchMaking(ctx, id, env.Type, data)
	case Lobby, PrePlaying:
		s.handleLobby(ctx, id, env.Type, data)
	}
}

func mustBuild(frame []byte, err error) []byte {
	if err != nil {
		return []byte(`{"type":"error","error":"internal encoding error"}`)
	}
	return frame
}

func (s *Session) sendFrame(ctx context.Context, frame []byte) {
	select {
	case s.send <- frame:
	default:
		logging.Warn(ctx, "session: outbound buffer full, closing")
		s.Close()
	}
}

// allocateSendID returns the next outbound message id, starting at 0 and
// increasing by exactly one per call.
func (s *Session) allocateSendID() uint64 {
	id := s.nextSendID
	s.nextSendID++
	return id
}

func (s *Session) sendError(ctx context.Context, originID uint64, code, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sendFrame(ctx, mustBuild(buildErrorFrame(&originID, code, message)))
}

// Close idempotently tears down the connection side of the session; the
// read pump noticing the closed connection drives teardown (Disconnect
// submission) exactly once.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		close(s.done)
		s.conn.Close()
	})
}

func (s *Session) teardown(ctx context.Context) {
	s.Close()
	close(s.send)

	s.mu.Lock()
	registered := s.registered
	id := s.sessionID
	s.mu.Unlock()

	if registered {
		s.coord.Submit(coordinator.Disconnect{ID: id})
		logging.Info(ctx, "session: torn down", zap.String("player_id", ids.SerId(id)))
	}
}

// PushEvent implements coordinator.SessionHandle.
func (s *Session) PushEvent(ev coordinator.OutEvent) {
	s.mu.Lock()
	id := s.allocateSendID()
	frame, err := buildEventFrame(id, ev)
	if _, ok := ev.(coordinator.EventRoomStart); ok {
		s.state = clientState{kind: PrePlaying, reqID: id}
	}
	s.mu.Unlock()

	if err != nil {
		logging.Error(context.Background(), "session: failed to encode event frame", zap.Error(err))
		return
	}
	s.sendFrame(context.Background(), frame)
}

// PushRelay implements coordinator.SessionHandle.
func (s *Session) PushRelay(data string) {
	s.mu.Lock()
	kind := s.state.kind
	switch kind {
	case PreLogin, MatchMaking, Lobby:
		s.mu.Unlock()
		return
	case PrePlaying:
		if len(s.relayQueue) >= coordinator.RelayQueueMaxSize {
			s.mu.Unlock()
			logging.Warn(context.Background(), "session: pre-playing relay queue overflowed, kicking client")
			s.Close()
			return
		}
		s.relayQueue = append(s.relayQueue, []byte(data))
		s.mu.Unlock()
	case Playing:
		s.mu.Unlock()
		s.sendFrame(context.Background(), []byte(data))
	}
}
