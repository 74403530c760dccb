package pubsub

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/webitel/im-realtime-service/internal/domain/event"
	"github.com/webitel/im-realtime-service/internal/domain/model"
)

func newInProcess(t *testing.T) (*Provider, EventDispatcher) {
	t.Helper()
	p := NewInProcessProvider(watermill.NopLogger{})
	t.Cleanup(func() { _ = p.Close() })

	pub, err := NewPublisherProvider(p).Build(ExportExchange)
	require.NoError(t, err)
	return p, NewEventDispatcher(pub, slog.New(slog.DiscardHandler))
}

func receive(t *testing.T, ch <-chan *message.Message) *message.Message {
	t.Helper()
	select {
	case msg := <-ch:
		msg.Ack()
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("no message published")
		return nil
	}
}

func TestExport_MessageCreated(t *testing.T) {
	req := require.New(t)
	p, d := newInProcess(t)

	msg := &model.Message{ID: uuid.New(), SenderID: uuid.New(), ReceiverID: uuid.New(), Content: "hi"}
	ev := event.NewMessageEvent(event.MessageCreated, msg)
	key := ev.GetRoutingKey()

	sub, err := NewSubscriberProvider(p).Build("test", ExportExchange, key)
	req.NoError(err)
	ch, err := sub.Subscribe(t.Context(), key)
	req.NoError(err)

	req.NoError(d.Export(context.Background(), ev))

	got := receive(t, ch)
	req.Equal(key, got.Metadata.Get(MetadataRoutingKey))
	req.Equal("message.created", got.Metadata.Get(MetadataKind))
	req.Contains(string(got.Payload), `"kind":"message.created"`)
	req.Contains(string(got.Payload), msg.ID.String())
}

func TestExport_NotificationRoutingKey(t *testing.T) {
	req := require.New(t)
	p, d := newInProcess(t)

	n := &model.Notification{ID: uuid.New(), RecipientID: uuid.New(), Kind: model.NotificationKind("match"), Title: "It's a match"}
	ev := event.NewNotificationEvent(n)
	key := "im_realtime.v1." + n.RecipientID.String() + ".notification.match"
	req.Equal(key, ev.GetRoutingKey())

	sub, err := NewSubscriberProvider(p).Build("test", ExportExchange, key)
	req.NoError(err)
	ch, err := sub.Subscribe(t.Context(), key)
	req.NoError(err)

	req.NoError(d.Export(context.Background(), ev))
	got := receive(t, ch)
	req.Contains(string(got.Payload), "It's a match")
}

func TestExport_SkipsNonExportable(t *testing.T) {
	req := require.New(t)
	pub := &countingPublisher{}
	d := NewEventDispatcher(pub, slog.New(slog.DiscardHandler))

	// edits are never exported
	upd := event.NewMessageEvent(event.MessageUpdated, &model.Message{ID: uuid.New(), ReceiverID: uuid.New()})
	req.NoError(d.Export(context.Background(), upd))

	// system frames are not exportable at all
	ack := event.NewSystemEvent(uuid.New(), event.Ack, event.PriorityHigh, model.AckPayload{Ref: "1"})
	req.NoError(d.Export(context.Background(), ack))

	req.Zero(pub.n)
	req.Error(d.Export(context.Background(), nil))
}

type countingPublisher struct{ n int }

func (c *countingPublisher) Publish(string, ...*message.Message) error { c.n++; return nil }
func (c *countingPublisher) Close() error                             { return nil }
