package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/webitel/im-realtime-service/internal/adapter/push"
	"github.com/webitel/im-realtime-service/internal/domain/event"
	"github.com/webitel/im-realtime-service/internal/domain/model"
	"go.uber.org/mock/gomock"
)

func TestMessenger_SendRules(t *testing.T) {
	h := newHarness(t)
	a := h.seedUser(t, "alice")
	actor := Actor{UserID: a.ID}

	cases := []struct {
		name string
		in   SendMessage
		err  error
	}{
		{name: "empty receiver", in: SendMessage{Content: "hi"}, err: model.ErrInvalidArgument},
		{name: "self", in: SendMessage{ReceiverID: a.ID, Content: "hi"}, err: model.ErrInvalidTarget},
		{name: "blank content", in: SendMessage{ReceiverID: uuid.New(), Content: "   "}, err: model.ErrInvalidArgument},
		{name: "unknown type", in: SendMessage{ReceiverID: uuid.New(), Content: "hi", Type: "video"}, err: model.ErrInvalidArgument},
		{name: "unknown receiver", in: SendMessage{ReceiverID: uuid.New(), Content: "hi"}, err: model.ErrNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := h.messenger.Send(context.Background(), actor, tc.in)
			require.ErrorIs(t, err, tc.err)
		})
	}
}

func TestMessenger_SendReachesReceiverAndNotifies(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	h := newHarness(t)
	a, b := h.seedUser(t, "alice"), h.seedUser(t, "bob")
	sa, sb := h.connect(t, a), h.connect(t, b)
	drain(sa.Conn())
	drain(sb.Conn())

	// When a sends from its live connection
	msg, err := h.messenger.Send(ctx, Actor{UserID: a.ID, ConnID: sa.ConnID()}, SendMessage{ReceiverID: b.ID, Content: "  hello  "})
	req.NoError(err)
	req.Equal("hello", msg.Content)
	req.Equal(model.MessageText, msg.Type)
	h.notifier.Wait()

	// Then b gets the message and a notification, a gets no echo
	events := drain(sb.Conn())
	created := ofKind(events, event.MessageCreated)
	req.Len(created, 1)
	req.Equal(msg.ID, created[0].(*event.MessageEvent).Message.ID)

	notes := ofKind(events, event.NotificationCreated)
	req.Len(notes, 1)
	n := notes[0].(*event.NotificationEvent).Notification
	req.Equal(model.NotifyMessage, n.Kind)
	req.Contains(n.Title, "alice")

	req.Empty(ofKind(drain(sa.Conn()), event.MessageCreated))
}

func TestMessenger_SendToOfflineReceiverDoesNotWaitForPush(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	h := newHarness(t)
	a, b := h.seedUser(t, "alice"), h.seedUser(t, "bob")
	sa := h.connect(t, a)
	drain(sa.Conn())
	req.NoError(h.tokens.Add(ctx, b.ID, "good", "ios"))
	req.NoError(h.tokens.Add(ctx, b.ID, "bad", "android"))

	// Given a gateway that holds the push until released
	called := make(chan struct{})
	release := make(chan struct{})
	h.gateway.EXPECT().SendBulk(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, r push.Request) ([]push.TokenOutcome, error) {
			close(called)
			<-release
			return []push.TokenOutcome{
				{Token: "good", Status: push.Success},
				{Token: "bad", Status: push.PermanentInvalid, Reason: "unregistered"},
			}, nil
		})

	// When a sends to offline b
	msg, err := h.messenger.Send(ctx, Actor{UserID: a.ID, ConnID: sa.ConnID()}, SendMessage{ReceiverID: b.ID, Content: "ping"})

	// Then the send has returned while the push is still in flight
	req.NoError(err)
	req.NotNil(msg)
	select {
	case <-called:
	case <-time.After(5 * time.Second):
		t.Fatal("push gateway was never called")
	}
	close(release)
	h.notifier.Wait()

	notes, total, err := h.notifications.List(ctx, b.ID, model.ListOptions{})
	req.NoError(err)
	req.EqualValues(1, total)
	req.Equal(model.NotifyMessage, notes[0].Kind)
	req.False(notes[0].Delivery.Live)
	req.True(notes[0].Delivery.Push)

	tokens, err := h.tokens.ListByUser(ctx, b.ID)
	req.NoError(err)
	req.Len(tokens, 1)
	req.Equal("good", tokens[0].Token)
}

func TestMessenger_OnlySenderEditsAndDeletes(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	h := newHarness(t)
	a, b := h.seedUser(t, "alice"), h.seedUser(t, "bob")

	msg, err := h.messenger.Send(ctx, Actor{UserID: a.ID}, SendMessage{ReceiverID: b.ID, Content: "first"})
	req.NoError(err)

	_, err = h.messenger.Update(ctx, Actor{UserID: b.ID}, msg.ID, "hacked")
	req.ErrorIs(err, model.ErrForbidden)
	req.ErrorIs(h.messenger.Delete(ctx, Actor{UserID: b.ID}, msg.ID), model.ErrForbidden)

	updated, err := h.messenger.Update(ctx, Actor{UserID: a.ID}, msg.ID, "second")
	req.NoError(err)
	req.True(updated.Edited)
	req.Equal("second", updated.Content)

	req.NoError(h.messenger.Delete(ctx, Actor{UserID: a.ID}, msg.ID))
}

func TestMessenger_ReadReceipts(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	h := newHarness(t)
	a, b := h.seedUser(t, "alice"), h.seedUser(t, "bob")

	var ids []uuid.UUID
	for _, text := range []string{"one", "two", "three"} {
		msg, err := h.messenger.Send(ctx, Actor{UserID: a.ID}, SendMessage{ReceiverID: b.ID, Content: text})
		req.NoError(err)
		ids = append(ids, msg.ID)
	}
	h.notifier.Wait()

	sa := h.connect(t, a)
	drain(sa.Conn())

	// Only the receiver may mark a message read
	_, err := h.messenger.MarkRead(ctx, Actor{UserID: a.ID}, ids[0])
	req.ErrorIs(err, model.ErrForbidden)

	read, err := h.messenger.MarkRead(ctx, Actor{UserID: b.ID}, ids[0])
	req.NoError(err)
	req.True(read.Read)

	// repeating it changes nothing and sends no second receipt
	_, err = h.messenger.MarkRead(ctx, Actor{UserID: b.ID}, ids[0])
	req.NoError(err)

	n, err := h.messenger.MarkConversationRead(ctx, Actor{UserID: b.ID}, a.ID)
	req.NoError(err)
	req.EqualValues(2, n)

	receipts := ofKind(drain(sa.Conn()), event.MessageRead)
	req.Len(receipts, 2)
	req.ElementsMatch(ids[1:], receipts[1].(*event.ReadEvent).Receipt.MessageIDs)

	unread, err := h.messenger.UnreadCount(ctx, b.ID)
	req.NoError(err)
	req.Zero(unread)

	_, err = h.messenger.MarkConversationRead(ctx, Actor{UserID: b.ID}, b.ID)
	req.ErrorIs(err, model.ErrInvalidTarget)
}

func TestMessenger_HistoryAndConversations(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	h := newHarness(t)
	a, b, c := h.seedUser(t, "alice"), h.seedUser(t, "bob"), h.seedUser(t, "carol")

	for range 3 {
		_, err := h.messenger.Send(ctx, Actor{UserID: a.ID}, SendMessage{ReceiverID: b.ID, Content: "ab"})
		req.NoError(err)
	}
	_, err := h.messenger.Send(ctx, Actor{UserID: c.ID}, SendMessage{ReceiverID: a.ID, Content: "ca"})
	req.NoError(err)

	page, err := h.messenger.History(ctx, b.ID, a.ID, "", model.Page{Limit: 2})
	req.NoError(err)
	req.Len(page.Messages, 2)
	req.EqualValues(3, page.Pagination.Total)

	convs, err := h.messenger.Conversations(ctx, a.ID, 0)
	req.NoError(err)
	req.Len(convs, 2)

	_, err = h.messenger.History(ctx, a.ID, a.ID, "", model.Page{})
	req.ErrorIs(err, model.ErrInvalidTarget)
}
