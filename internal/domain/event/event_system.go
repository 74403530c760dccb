package event

import (
	"github.com/google/uuid"
	"github.com/webitel/im-realtime-service/internal/domain/model"
)

// [GUARD] Ensure compliance with the Eventer interface.
var (
	_ Eventer = (*SystemEvent)(nil)
	_ Eventer = (*StatusEvent)(nil)
	_ Eventer = (*TypingEvent)(nil)
)

// SystemEvent is a generic envelope for connection-level signals
// (connected, ack, error, disconnected). It always targets one identity.
type SystemEvent struct {
	envelope
	payload any
}

// NewSystemEvent is a universal factory for creating any signal.
func NewSystemEvent(userID uuid.UUID, kind Kind, priority Priority, payload any) *SystemEvent {
	return &SystemEvent{
		envelope: newEnvelope(kind, ToUser(userID), priority),
		payload:  payload,
	}
}

func (e *SystemEvent) GetPayload() any { return e.payload }

// StatusEvent broadcasts a presence transition.
type StatusEvent struct {
	envelope
	Change model.StatusChange
}

func NewStatusEvent(target Target, change model.StatusChange) *StatusEvent {
	return &StatusEvent{
		envelope: newEnvelope(PresenceChanged, target, PriorityLow),
		Change:   change,
	}
}

func (e *StatusEvent) GetPayload() any { return e.Change }

// TypingEvent is an ephemeral indicator; it is never persisted or pushed.
type TypingEvent struct {
	envelope
	Change model.TypingChange
}

func NewTypingEvent(change model.TypingChange) *TypingEvent {
	return &TypingEvent{
		envelope: newEnvelope(Typing, ToTopic(change.Topic), PriorityLow),
		Change:   change,
	}
}

func (e *TypingEvent) GetPayload() any { return e.Change }
