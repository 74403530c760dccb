package event

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/webitel/im-realtime-service/internal/domain/model"
)

func TestMessageEventTargetsConversation(t *testing.T) {
	req := require.New(t)

	// Given
	a, b := uuid.New(), uuid.New()
	msg := &model.Message{ID: uuid.New(), SenderID: a, ReceiverID: b, Content: "hi"}

	// When
	ev := NewMessageEvent(MessageCreated, msg)

	// Then
	req.True(ev.GetTarget().IsTopic())
	req.Equal(model.ConversationTopic(b, a), ev.GetTarget().Topic)
	req.Equal(PriorityHigh, ev.GetPriority())
	req.Contains(ev.GetRoutingKey(), b.String())
	req.Equal("message.created", ev.GetKind().String())
}

func TestMessageEventExportsOnlyCreated(t *testing.T) {
	msg := &model.Message{ID: uuid.New(), SenderID: uuid.New(), ReceiverID: uuid.New()}
	require.Empty(t, NewMessageEvent(MessageUpdated, msg).GetRoutingKey())
}

func TestNotificationEventPriority(t *testing.T) {
	req := require.New(t)

	n := &model.Notification{ID: uuid.New(), RecipientID: uuid.New(), Kind: model.NotifyMatch, Priority: model.PriorityHigh}
	ev := NewNotificationEvent(n)

	req.False(ev.GetTarget().IsTopic())
	req.Equal(n.RecipientID, ev.GetTarget().User)
	req.Equal(PriorityHigh, ev.GetPriority())
	req.Equal("im_realtime.v1."+n.RecipientID.String()+".notification.match", ev.GetRoutingKey())
}

func TestCacheIgnoresNil(t *testing.T) {
	req := require.New(t)

	ev := NewSystemEvent(uuid.New(), Ack, PriorityNormal, model.AckPayload{Action: "room.join"})
	req.Nil(ev.GetCached())

	ev.SetCached(nil)
	req.Nil(ev.GetCached())

	ev.SetCached([]byte(`{}`))
	req.Equal([]byte(`{}`), ev.GetCached())
}

func TestEventIDsAreUnique(t *testing.T) {
	id := uuid.New()
	a := NewSystemEvent(id, Connected, PriorityHigh, nil)
	b := NewSystemEvent(id, Connected, PriorityHigh, nil)
	require.NotEqual(t, a.GetID(), b.GetID())
}

func TestNotificationEventCopiesRecord(t *testing.T) {
	req := require.New(t)
	n := &model.Notification{ID: uuid.New(), RecipientID: uuid.New(), Data: map[string]string{"k": "v"}}

	ev := NewNotificationEvent(n)
	n.Delivery.Live = true
	n.Data["k"] = "changed"

	req.False(ev.Notification.Delivery.Live)
	req.Equal("v", ev.Notification.Data["k"])
}
