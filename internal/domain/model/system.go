package model

import (
	"time"

	"github.com/google/uuid"
)

// ConnectedPayload is the first frame a client receives after activation.
type ConnectedPayload struct {
	ConnectionID uuid.UUID `json:"connection_id"`
	UserID       uuid.UUID `json:"user_id"`
	ServerTime   int64     `json:"server_time"`
}

// DisconnectedPayload is the last frame sent before the server closes a channel.
type DisconnectedPayload struct {
	Reason string `json:"reason"`
}

// AckPayload confirms an inbound request by its client-side reference.
type AckPayload struct {
	Ref    string `json:"ref,omitempty"`
	Action string `json:"action"`
	Result any    `json:"result,omitempty"`
}

// ErrorPayload reports a rejected inbound request.
type ErrorPayload struct {
	Ref     string `json:"ref,omitempty"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// StatusChange is broadcast when an identity's coarse status changes.
type StatusChange struct {
	UserID   uuid.UUID      `json:"user_id"`
	Status   PresenceStatus `json:"status"`
	LastSeen time.Time      `json:"last_seen,omitzero"`
}

// TypingChange is broadcast to a topic while an identity composes a reply.
type TypingChange struct {
	UserID   uuid.UUID `json:"user_id"`
	Topic    TopicKey  `json:"topic"`
	IsTyping bool      `json:"is_typing"`
}

// ReadReceipt tells a sender which of their messages were read.
type ReadReceipt struct {
	ReaderID   uuid.UUID   `json:"reader_id"`
	MessageIDs []uuid.UUID `json:"message_ids,omitempty"`
	Topic      TopicKey    `json:"topic"`
	Count      int64       `json:"count"`
	ReadAt     time.Time   `json:"read_at"`
}

// Deletion references a removed record.
type Deletion struct {
	ID    uuid.UUID `json:"id"`
	Topic TopicKey  `json:"topic"`
}
