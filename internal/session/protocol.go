// Package session implements the per-client protocol state machine:
// PreLogin -> MatchMaking -> Lobby -> PrePlaying(req_id) -> Playing, the
// inbound JSON envelope decode, the outbound message-id counter, the
// deferred relay queue, and the heartbeat liveness check. It is the wire
// boundary between a connected client and internal/coordinator.
package session

import (
	"encoding/json"
	"fmt"

	"github.com/upperlevel/carcassonne-server/internal/coordinator"
	"github.com/upperlevel/carcassonne-server/internal/ids"
)

// inboundEnvelope is the minimal shape every non-Playing inbound frame must
// have: a top-level numeric id and a type tag, peeked before the full typed
// decode (mirrors the original's two-pass IdMessage / ReceivedMessage
// deserialize).
type inboundEnvelope struct {
	ID   *uint64 `json:"id"`
	Type string  `json:"type"`
}

type loginCosmetics struct {
	Avatar uint32 `json:"avatar"`
	Color  uint64 `json:"color"`
}

type loginPayload struct {
	Details struct {
		Username string `json:"username"`
		loginCosmetics
	} `json:"details"`
}

type roomJoinPayload struct {
	InviteID string `json:"inviteId"`
}

type roomStartPayload struct {
	ConnectionType string `json:"connectionType"`
}

type eventRoomStartAckPayload struct {
	RequestID uint64 `json:"requestId"`
}

// endGameSniff is the reserved in-game control frame recognized in Playing
// before anything else is treated as opaque relay traffic (SPEC_FULL.md
// SUPPLEMENTED FEATURES #4).
type endGameSniff struct {
	Type string `json:"type"`
}

func isEndGameFrame(raw []byte) bool {
	var sniff endGameSniff
	if err := json.Unmarshal(raw, &sniff); err != nil {
		return false
	}
	return sniff.Type == "end_game"
}

// buildResponseFrame constructs an outbound typed response:
// {"id": outboundID, "type": ptype, "requestId": requestID, "result"?: ..., ...data}.
func buildResponseFrame(outboundID uint64, ptype string, requestID uint64, result string, data any) ([]byte, error) {
	fields, err := flattenToFields(data)
	if err != nil {
		return nil, err
	}
	fields["id"] = jsonNumber(outboundID)
	fields["type"] = jsonString(ptype)
	fields["requestId"] = jsonNumber(requestID)
	if result != "" {
		fields["result"] = jsonString(result)
	}
	return json.Marshal(fields)
}

// buildEventFrame constructs an outbound server-push event:
// {"id": outboundID, "type": <tag>, ...fields}.
func buildEventFrame(outboundID uint64, ev coordinator.OutEvent) ([]byte, error) {
	tag, err := eventTag(ev)
	if err != nil {
		return nil, err
	}
	fields, err := flattenToFields(ev)
	if err != nil {
		return nil, err
	}
	fields["id"] = jsonNumber(outboundID)
	fields["type"] = jsonString(tag)
	return json.Marshal(fields)
}

// buildEndGameAckFrame constructs the end_game_ack response to the reserved
// in-game control frame.
func buildEndGameAckFrame(outboundID uint64, players []coordinator.PlayerObject) ([]byte, error) {
	fields := map[string]json.RawMessage{
		"id":   jsonNumber(outboundID),
		"type": jsonString("end_game_ack"),
	}
	playersJSON, err := json.Marshal(players)
	if err != nil {
		return nil, err
	}
	fields["players"] = playersJSON
	return json.Marshal(fields)
}

// buildErrorFrame constructs the protocol error frame. originID is nil for
// errors that occur before an inbound id could be determined.
func buildErrorFrame(originID *uint64, errCode string, errMessage string) ([]byte, error) {
	fields := map[string]json.RawMessage{
		"type":  jsonString("error"),
		"error": jsonString(errCode),
	}
	if originID != nil {
		fields["originId"] = jsonNumber(*originID)
	}
	if errMessage != "" {
		fields["errorMessage"] = jsonString(errMessage)
	}
	return json.Marshal(fields)
}

func eventTag(ev coordinator.OutEvent) (string, error) {
	switch ev.(type) {
	case coordinator.EventPlayerJoined:
		return "event_player_joined", nil
	case coordinator.EventPlayerLeft:
		return "event_player_left", nil
	case coordinator.PlayerLeftGame:
		return "player_left", nil
	case coordinator.EventPlayerAvatarChange:
		return "event_player_avatar_change", nil
	case coordinator.EventRoomStart:
		return "event_room_start", nil
	default:
		return "", fmt.Errorf("session: unknown OutEvent type %T", ev)
	}
}

func flattenToFields(v any) (map[string]json.RawMessage, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	fields := map[string]json.RawMessage{}
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, err
	}
	return fields, nil
}

func jsonString(s string) json.RawMessage {
	b, _ := json.Marshal(s)
	return b
}

func jsonNumber(n uint64) json.RawMessage {
	b, _ := json.Marshal(n)
	return b
}

// parseSerIDField decodes an inbound SerId string field (such as
// roomJoinPayload.InviteID) into an ids.IdType.
func parseSerIDField(s string) (ids.IdType, error) {
	return ids.ParseSerId(s)
}
