package event

import (
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/webitel/im-realtime-service/internal/domain/model"
)

type Kind int16

const (
	Connected Kind = iota + 1 // [SYSTEM]
	Disconnected
	Ack
	Error
	MessageCreated // [BUSINESS]
	MessageUpdated
	MessageDeleted
	MessageRead
	CommentCreated
	CommentUpdated
	CommentDeleted
	NotificationCreated
	PresenceChanged // [EPHEMERAL]
	Typing
)

var kindNames = map[Kind]string{
	Connected:           "connected",
	Disconnected:        "disconnected",
	Ack:                 "ack",
	Error:               "error",
	MessageCreated:      "message.created",
	MessageUpdated:      "message.updated",
	MessageDeleted:      "message.deleted",
	MessageRead:         "message.read",
	CommentCreated:      "comment.created",
	CommentUpdated:      "comment.updated",
	CommentDeleted:      "comment.deleted",
	NotificationCreated: "notification",
	PresenceChanged:     "presence.changed",
	Typing:              "typing",
}

// String returns the wire name of the outbound frame.
func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "unknown"
}

type Priority int32

const (
	PriorityLow    Priority = 10
	PriorityNormal Priority = 20
	PriorityHigh   Priority = 30
)

// PriorityOf maps a notification priority onto mailbox priority.
func PriorityOf(p model.Priority) Priority {
	switch p {
	case model.PriorityHigh:
		return PriorityHigh
	case model.PriorityLow:
		return PriorityLow
	}
	return PriorityNormal
}

// Target is either one identity (all of its live connections) or a topic.
// Exactly one of the fields is set.
type Target struct {
	User  uuid.UUID
	Topic model.TopicKey
}

func ToUser(id uuid.UUID) Target { return Target{User: id} }
func ToTopic(key model.TopicKey) Target { return Target{Topic: key} }

func (t Target) IsTopic() bool { return !t.Topic.IsZero() }

func (t Target) String() string {
	if t.IsTopic() {
		return t.Topic.String()
	}
	return "user/" + t.User.String()
}

// Eventer defines the contract for all data packets flowing through the Hub.
// The set of implementations is closed to this package.
type Eventer interface {
	GetID() string
	GetKind() Kind
	GetTarget() Target
	GetPriority() Priority
	GetOccurredAt() int64
	GetPayload() any
	GetCached() any
	SetCached(any)

	sealed()
}

// Exportable defines an event that should be re-published to the message bus.
type Exportable interface {
	// If it returns an empty string, the dispatcher will skip publishing.
	GetRoutingKey() string
}

// envelope carries the fields shared by every variant.
// Events are delivered to many connections at once; the cache is written by
// whichever writer marshals first, so it is held in an atomic.Value.
type envelope struct {
	id         uuid.UUID
	kind       Kind
	target     Target
	priority   Priority
	occurredAt int64
	cached     atomic.Value
}

func newEnvelope(kind Kind, target Target, priority Priority) envelope {
	return envelope{
		id:         uuid.New(),
		kind:       kind,
		target:     target,
		priority:   priority,
		occurredAt: time.Now().UnixMilli(),
	}
}

func (e *envelope) GetID() string         { return e.id.String() }
func (e *envelope) GetKind() Kind         { return e.kind }
func (e *envelope) GetTarget() Target     { return e.target }
func (e *envelope) GetPriority() Priority { return e.priority }
func (e *envelope) GetOccurredAt() int64  { return e.occurredAt }
func (e *envelope) GetCached() any        { return e.cached.Load() }
func (e *envelope) sealed()               {}

func (e *envelope) SetCached(v any) {
	if v == nil {
		return
	}
	e.cached.Store(v)
}
