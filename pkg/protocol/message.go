package protocol

import (
	"encoding/json"
	"errors"
)

type MessageType string

const (
	MsgConnected         MessageType = "connected"
	MsgJoinRoom          MessageType = "join_room"
	MsgLeaveRoom         MessageType = "leave_room"
	MsgRoomJoined        MessageType = "room_joined"
	MsgRoomLeft          MessageType = "room_left"
	MsgPing              MessageType = "ping"
	MsgPong              MessageType = "pong"
	MsgError             MessageType = "error"
	MsgSubmissionCreated MessageType = "submission_created"
	MsgSubmissionResult  MessageType = "submission_result"
	MsgLeaderboardUpdate MessageType = "leaderboard_update"
	MsgContestEvent      MessageType = "contest_event"
)

var ErrMissingType = errors.New("message type is required")

// Message is the socket service envelope.
type Message struct {
	Type      MessageType     `json:"type"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	RequestID string          `json:"requestId,omitempty"`
}

type ConnectedPayload struct {
	UserID     string `json:"userId"`
	InstanceID string `json:"instanceId"`
}

type JoinRoomPayload struct {
	RoomID string `json:"roomId"`
}

type RoomJoinedPayload struct {
	RoomID      string `json:"roomId"`
	MemberCount int    `json:"memberCount"`
}

type RoomLeftPayload struct {
	RoomID string `json:"roomId"`
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func NewMessage(t MessageType, payload any) (*Message, error) {
	return NewMessageWithRequestID(t, payload, "")
}

func NewMessageWithRequestID(t MessageType, payload any, requestID string) (*Message, error) {
	msg := &Message{Type: t, RequestID: requestID}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		msg.Payload = data
	}
	return msg, nil
}

func ParseMessage(data []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.Type == "" {
		return nil, ErrMissingType
	}
	return &msg, nil
}

func (m *Message) ToBytes() ([]byte, error) {
	return json.Marshal(m)
}

// Decode unmarshals the payload into v.
func (m *Message) Decode(v any) error {
	if len(m.Payload) == 0 {
		return errors.New("message has no payload")
	}
	return json.Unmarshal(m.Payload, v)
}

// ContestRoom is the room carrying a contest's live events.
func ContestRoom(contestID string) string {
	return "contest:" + contestID
}
