package event

import (
	"fmt"
	"maps"
	"slices"

	"github.com/webitel/im-realtime-service/internal/domain/model"
)

var (
	_ Eventer    = (*MessageEvent)(nil)
	_ Exportable = (*MessageEvent)(nil)
	_ Eventer    = (*CommentEvent)(nil)
	_ Eventer    = (*NotificationEvent)(nil)
	_ Exportable = (*NotificationEvent)(nil)
)

// MessageEvent carries a direct message to its conversation topic.
type MessageEvent struct {
	envelope
	Message *model.Message
}

// NewMessageEvent snapshots msg; later changes to the record are not visible
// to queued frames.
func NewMessageEvent(kind Kind, msg *model.Message) *MessageEvent {
	cp := *msg
	cp.Attachments = slices.Clone(msg.Attachments)
	return &MessageEvent{
		envelope: newEnvelope(kind, ToTopic(msg.Topic()), PriorityHigh),
		Message:  &cp,
	}
}

func (e *MessageEvent) GetPayload() any { return e.Message }

// GetRoutingKey exports only newly created messages.
// [PATTERN] im_realtime.v1.{receiver_id}.message.created
func (e *MessageEvent) GetRoutingKey() string {
	if e.kind != MessageCreated {
		return ""
	}
	return fmt.Sprintf("im_realtime.v1.%s.message.created", e.Message.ReceiverID)
}

// ReadEvent tells the other participant which messages were read.
type ReadEvent struct {
	envelope
	Receipt model.ReadReceipt
}

func NewReadEvent(target Target, receipt model.ReadReceipt) *ReadEvent {
	return &ReadEvent{
		envelope: newEnvelope(MessageRead, target, PriorityNormal),
		Receipt:  receipt,
	}
}

func (e *ReadEvent) GetPayload() any { return e.Receipt }

// CommentEvent carries comment changes to the content thread topic.
type CommentEvent struct {
	envelope
	Comment *model.Comment
}

func NewCommentEvent(kind Kind, c *model.Comment) *CommentEvent {
	cp := *c
	return &CommentEvent{
		envelope: newEnvelope(kind, ToTopic(c.Topic()), PriorityNormal),
		Comment:  &cp,
	}
}

func (e *CommentEvent) GetPayload() any { return e.Comment }

// DeletedEvent references a removed message or comment.
type DeletedEvent struct {
	envelope
	Deletion model.Deletion
}

func NewDeletedEvent(kind Kind, d model.Deletion) *DeletedEvent {
	return &DeletedEvent{
		envelope: newEnvelope(kind, ToTopic(d.Topic), PriorityNormal),
		Deletion: d,
	}
}

func (e *DeletedEvent) GetPayload() any { return e.Deletion }

// NotificationEvent delivers a stored notification to the recipient's personal channel.
type NotificationEvent struct {
	envelope
	Notification *model.Notification
}

// NewNotificationEvent snapshots n as it was when routed. Delivery status
// written afterwards stays on the record only.
func NewNotificationEvent(n *model.Notification) *NotificationEvent {
	cp := *n
	cp.Data = maps.Clone(n.Data)
	return &NotificationEvent{
		envelope:     newEnvelope(NotificationCreated, ToUser(n.RecipientID), PriorityOf(n.Priority)),
		Notification: &cp,
	}
}

func (e *NotificationEvent) GetPayload() any { return e.Notification }

// [PATTERN] im_realtime.v1.{recipient_id}.notification.{kind}
func (e *NotificationEvent) GetRoutingKey() string {
	return fmt.Sprintf("im_realtime.v1.%s.notification.%s", e.Notification.RecipientID, e.Notification.Kind)
}
