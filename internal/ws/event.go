package ws

import (
	"encoding/json"
	"fmt"

	"github.com/playerchat/internal/model"
)

type EventType string

const (
	// Server → client.
	EventNewMessage     EventType = "new_message"
	EventUserTyping     EventType = "user_typing"
	EventUserStopTyping EventType = "user_stop_typing"
	EventUserStatus     EventType = "user_status"
	EventOnlineUsers    EventType = "online_users"

	// Client → server.
	EventPrivateMessage EventType = "private_message"
	EventTyping         EventType = "typing"
	EventStopTyping     EventType = "stop_typing"
)

// Envelope is one frame on the push channel in either direction.
// Data is decoded per event type by the consumer.
type Envelope struct {
	Event EventType       `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// NewEnvelope encodes a typed payload into an outbound envelope.
func NewEnvelope(ev EventType, payload any) (Envelope, error) {
	if payload == nil {
		return Envelope{Event: ev}, nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("ws encode %s: %w", ev, err)
	}
	return Envelope{Event: ev, Data: data}, nil
}

// --- Typed payloads ---

// TypingPayload arrives with user_typing / user_stop_typing.
type TypingPayload struct {
	UserID   int64  `json:"user_id"`
	Username string `json:"username,omitempty"`
}

// StatusPayload arrives with user_status.
type StatusPayload struct {
	UserID int64        `json:"user_id"`
	Status model.Status `json:"status"`
}

// OnlineUsersPayload arrives with online_users: the full online-id set.
type OnlineUsersPayload []int64

// PrivateMessagePayload is the outbound send request.
type PrivateMessagePayload struct {
	ReceiverID int64  `json:"receiver_id"`
	Message    string `json:"message"`
}

// ReceiverPayload is the outbound typing / stop_typing notice.
type ReceiverPayload struct {
	ReceiverID int64 `json:"receiver_id"`
}
