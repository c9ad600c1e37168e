package session

import (
	"context"
	"encoding/json"

	"github.com/upperlevel/carcassonne-server/internal/coordinator"
	"github.com/upperlevel/carcassonne-server/internal/ids"
)

// handlePreLogin accepts only a Login frame; everything else is rejected
// with "Login Required", matching client_ws.rs's handle_message_login.
func (s *Session) handlePreLogin(ctx context.Context, id uint64, ptype string, raw []byte) {
	if ptype != "login" {
		s.sendError(ctx, id, "Login Required", "")
		return
	}
	var payload loginPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		s.sendError(ctx, id, "Invalid Json", "")
		return
	}
	s.registerAndRespond(ctx, id, nil, payload)
}

// handleMatchMaking accepts Login (re-login), RoomFind, RoomCreate and
// RoomJoin, matching client_ws.rs's handle_message_matchmaking.
func (s *Session) handleMatchMaking(ctx context.Context, id uint64, ptype string, raw []byte) {
	switch ptype {
	case "login":
		var payload loginPayload
		if err := json.Unmarshal(raw, &payload); err != nil {
			s.sendError(ctx, id, "Invalid Json", "")
			return
		}
		existing := s.sessionID
		s.registerAndRespond(ctx, id, &existing, payload)

	case "room_find":
		reply := make(chan coordinator.FindRoomResult, 1)
		s.coord.Submit(coordinator.FindRoom{ID: s.sessionID, Reply: reply, EnforceNameUniqueness: s.enforceNameUniqueness})
		res := <-reply

		s.mu.Lock()
		outID := s.allocateSendID()
		s.state = clientState{kind: Lobby}
		s.mu.Unlock()

		frame, err := buildResponseFrame(outID, "room_find_response", id, "ok", struct {
			RoomID      string                     `json:"roomId"`
			Players     []coordinator.PlayerObject `json:"players"`
			JustCreated bool                       `json:"justCreated"`
		}{
			RoomID:      ids.SerId(res.RoomID),
			Players:     res.Players,
			JustCreated: res.JustCreated,
		})
		s.sendFrame(ctx, mustBuild(frame, err))

	case "room_create":
		reply := make(chan coordinator.CreateRoomResult, 1)
		s.coord.Submit(coordinator.CreateRoom{ID: s.sessionID, Reply: reply})
		res := <-reply

		s.mu.Lock()
		outID := s.allocateSendID()
		s.state = clientState{kind: Lobby}
		s.mu.Unlock()

		frame, err := buildResponseFrame(outID, "room_create_response", id, "ok", struct {
			Players  []coordinator.PlayerObject `json:"players"`
			InviteID string                     `json:"inviteId"`
		}{
			Players:  []coordinator.PlayerObject{res.Player},
			InviteID: ids.SerId(res.RoomID),
		})
		s.sendFrame(ctx, mustBuild(frame, err))

	case "room_join":
		var payload roomJoinPayload
		if err := json.Unmarshal(raw, &payload); err != nil {
			s.sendError(ctx, id, "Invalid Json", "")
			return
		}
		roomID, err := parseSerIDField(payload.InviteID)
		if err != nil {
			s.sendResultOnly(ctx, id, "room_join_response", "room_not_found")
			return
		}
		reply := make(chan coordinator.JoinRoomResult, 1)
		s.coord.Submit(coordinator.JoinRoom{ID: s.sessionID, RoomID: roomID, Reply: reply, EnforceNameUniqueness: s.enforceNameUniqueness})
		res := <-reply

		switch res.Outcome {
		case coordinator.JoinSuccess:
			s.mu.Lock()
			outID := s.allocateSendID()
			s.state = clientState{kind: Lobby}
			s.mu.Unlock()
			frame, err := buildResponseFrame(outID, "room_join_response", id, "ok", struct {
				Players []coordinator.PlayerObject `json:"players"`
			}{Players: res.Players})
			s.sendFrame(ctx, mustBuild(frame, err))
		case coordinator.JoinRoomNotFound:
			s.sendResultOnly(ctx, id, "room_join_response", "room_not_found")
		case coordinator.JoinNameConflict:
			s.sendResultOnly(ctx, id, "room_join_response", "name_conflict")
		case coordinator.JoinAlreadyPlaying:
			s.sendResultOnly(ctx, id, "room_join_response", "already_playing")
		case coordinator.JoinRoomIsFull, coordinator.JoinGameIsFull:
			s.sendResultOnly(ctx, id, "room_join_response", "room_is_full")
		}

	default:
		s.sendError(ctx, id, "Invalid message type", "")
	}
}

// handleLobby accepts ChangeAvatar, RoomLeave, RoomStart and
// EventRoomStartAck, serving both Lobby and PrePlaying states exactly as
// client_ws.rs's handle_message_lobby does (a single match arm for both).
func (s *Session) handleLobby(ctx context.Context, id uint64, ptype string, raw []byte) {
	switch ptype {
	case "change_avatar":
		var payload coordinator.Cosmetics
		if err := json.Unmarshal(raw, &payload); err != nil {
			s.sendError(ctx, id, "Invalid Json", "")
			return
		}
		s.coord.Submit(coordinator.EditCosmetics{ID: s.sessionID, Cosmetics: payload})

	case "room_leave":
		s.coord.Submit(coordinator.LeaveRoom{ID: s.sessionID})
		s.mu.Lock()
		s.state = clientState{kind: MatchMaking}
		outID := s.allocateSendID()
		s.mu.Unlock()
		frame, err := buildResponseFrame(outID, "room_leave_response", id, "ok", struct{}{})
		s.sendFrame(ctx, mustBuild(frame, err))

	case "room_start":
		var payload roomStartPayload
		if err := json.Unmarshal(raw, &payload); err != nil {
			s.sendError(ctx, id, "Invalid Json", "")
			return
		}
		s.coord.Submit(coordinator.StartRoom{ID: s.sessionID, ConnectionType: payload.ConnectionType})

	case "event_room_start_ack":
		var payload eventRoomStartAckPayload
		if err := json.Unmarshal(raw, &payload); err != nil {
			s.sendError(ctx, id, "Invalid Json", "")
			return
		}
		s.mu.Lock()
		if s.state.kind != PrePlaying {
			s.mu.Unlock()
			s.sendError(ctx, id, "Invalid state", "No message to acknowledge")
			return
		}
		if s.state.reqID != payload.RequestID {
			s.mu.Unlock()
			s.sendError(ctx, id, "Invalid request_id", "")
			return
		}
		s.state = clientState{kind: Playing}
		queued := s.relayQueue
		s.relayQueue = nil
		s.mu.Unlock()
		for _, frame := range queued {
			s.sendFrame(ctx, frame)
		}

	default:
		s.sendError(ctx, id, "Invalid message type", "")
	}
}

// handleEndGame answers the reserved end_game control frame. See
// SPEC_FULL.md SUPPLEMENTED FEATURES #4.
func (s *Session) handleEndGame(ctx context.Context) {
	reply := make(chan coordinator.GameEndResult, 1)
	s.coord.Submit(coordinator.GameEndRequest{ID: s.sessionID, Reply: reply})
	res := <-reply
	if !res.Ok {
		return
	}

	s.mu.Lock()
	s.state = clientState{kind: MatchMaking}
	outID := s.allocateSendID()
	s.mu.Unlock()

	frame, err := buildEndGameAckFrame(outID, res.Players)
	s.sendFrame(ctx, mustBuild(frame, err))
}

// registerAndRespond submits RegisterSession (first login if existing is
// nil, re-login otherwise) and replies with login_response on success.
func (s *Session) registerAndRespond(ctx context.Context, id uint64, existing *ids.IdType, payload loginPayload) {
	reply := make(chan coordinator.RegisterSessionResult, 1)
	s.coord.Submit(coordinator.RegisterSession{
		ID:       existing,
		Addr:     s,
		Username: payload.Details.Username,
		Cosmetics: coordinator.Cosmetics{
			Avatar: payload.Details.Avatar,
			Color:  payload.Details.Color,
		},
		Reply: reply,
	})
	res := <-reply

	s.mu.Lock()
	s.sessionID = res.ID
	s.registered = true
	if s.state.kind == PreLogin {
		s.state = clientState{kind: MatchMaking}
	}
	outID := s.allocateSendID()
	s.mu.Unlock()

	frame, err := buildResponseFrame(outID, "login_response", id, "ok", struct {
		PlayerID ids.IdType `json:"playerId"`
	}{PlayerID: res.ID})
	s.sendFrame(ctx, mustBuild(frame, err))
}

func (s *Session) sendResultOnly(ctx context.Context, id uint64, ptype string, result string) {
	s.mu.Lock()
	outID := s.allocateSendID()
	s.mu.Unlock()
	frame, err := buildResponseFrame(outID, ptype, id, result, struct{}{})
	s.sendFrame(ctx, mustBuild(frame, err))
}
