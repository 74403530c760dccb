package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/webitel/im-realtime-service/internal/domain/event"
	"github.com/webitel/im-realtime-service/internal/domain/model"
)

func TestLifecycle_RejectsBadToken(t *testing.T) {
	h := newHarness(t)

	_, err := h.lifecycle.Open(context.Background(), model.Credentials{Token: "not-a-jwt"})

	require.ErrorIs(t, err, model.ErrUnauthenticated)
}

func TestLifecycle_ActivateSendsConnectedFirst(t *testing.T) {
	req := require.New(t)
	h := newHarness(t)
	u := h.seedUser(t, "alice")

	s := h.connect(t, u)

	req.Equal(model.ConnActive, s.State())
	events := drain(s.Conn())
	req.NotEmpty(events)
	req.Equal(event.Connected, events[0].GetKind())
	req.True(h.hub.Rooms().IsSubscribed(s.ConnID(), model.PersonalTopic(u.ID)))
}

func TestLifecycle_OnlineUntilLastDeviceCloses(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	h := newHarness(t)
	u := h.seedUser(t, "bob")

	// Given two devices of the same identity
	phone, laptop := h.connect(t, u), h.connect(t, u)

	st, err := h.directory.Status(ctx, u.ID)
	req.NoError(err)
	req.Equal(model.StatusOnline, st.Status)

	// When the first one closes the identity stays online
	h.lifecycle.Close(ctx, phone, "bye")
	st, err = h.directory.Status(ctx, u.ID)
	req.NoError(err)
	req.Equal(model.StatusOnline, st.Status)

	// Then the last close takes it offline, live and durable
	h.lifecycle.Close(ctx, laptop, "bye")
	st, err = h.directory.Status(ctx, u.ID)
	req.NoError(err)
	req.Equal(model.StatusOffline, st.Status)
	req.False(st.LastSeen.IsZero())

	stored, err := h.users.Get(ctx, u.ID)
	req.NoError(err)
	req.Equal(model.StatusOffline, stored.Status)
	req.NotNil(stored.LastSeenAt)
}

func TestLifecycle_PartnersSeePresenceChanges(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	h := newHarness(t)
	a, b := h.seedUser(t, "carol"), h.seedUser(t, "dave")

	// Given a and b have a conversation
	_, err := h.messenger.Send(ctx, Actor{UserID: a.ID}, SendMessage{ReceiverID: b.ID, Content: "hi"})
	req.NoError(err)
	h.notifier.Wait()

	sb := h.connect(t, b)
	drain(sb.Conn())

	// When a comes online and then leaves
	sa := h.connect(t, a)
	h.lifecycle.Close(ctx, sa, "bye")

	// Then b observes both transitions in order
	changes := ofKind(drain(sb.Conn()), event.PresenceChanged)
	req.Len(changes, 2)
	req.Equal(model.StatusOnline, changes[0].(*event.StatusEvent).Change.Status)
	last := changes[1].(*event.StatusEvent).Change
	req.Equal(a.ID, last.UserID)
	req.Equal(model.StatusOffline, last.Status)
}

func TestLifecycle_ConversationJoinRequiresMembership(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	h := newHarness(t)
	a := h.seedUser(t, "erin")
	s := h.connect(t, a)

	err := h.lifecycle.Join(ctx, s, model.ConversationTopic(uuid.New(), uuid.New()))
	req.ErrorIs(err, model.ErrForbidden)

	err = h.lifecycle.Join(ctx, s, model.PersonalTopic(uuid.New()))
	req.ErrorIs(err, model.ErrForbidden)

	own := model.ConversationTopic(a.ID, uuid.New())
	req.NoError(h.lifecycle.Join(ctx, s, own))
	req.True(h.hub.Rooms().IsSubscribed(s.ConnID(), own))

	thread := model.ThreadTopic(model.TargetPost, "post-1")
	req.NoError(h.lifecycle.Join(ctx, s, thread))
	req.NoError(h.lifecycle.Leave(ctx, s, thread))
	req.False(h.hub.Rooms().IsSubscribed(s.ConnID(), thread))
}

func TestLifecycle_PersonalChannelCannotBeLeft(t *testing.T) {
	h := newHarness(t)
	u := h.seedUser(t, "frank")
	s := h.connect(t, u)

	err := h.lifecycle.Leave(context.Background(), s, model.PersonalTopic(u.ID))

	require.ErrorIs(t, err, model.ErrInvalidTarget)
}

func TestLifecycle_TypingIsRelayedNotEchoed(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	h := newHarness(t)
	a, b := h.seedUser(t, "gina"), h.seedUser(t, "hank")
	sa, sb := h.connect(t, a), h.connect(t, b)
	drain(sa.Conn())
	drain(sb.Conn())

	topic := model.ConversationTopic(a.ID, b.ID)
	req.NoError(h.lifecycle.Typing(ctx, sa, topic, true))

	got := ofKind(drain(sb.Conn()), event.Typing)
	req.Len(got, 1)
	change := got[0].(*event.TypingEvent).Change
	req.Equal(a.ID, change.UserID)
	req.True(change.IsTyping)
	req.Empty(ofKind(drain(sa.Conn()), event.Typing))

	// clearing twice relays once
	req.NoError(h.lifecycle.Typing(ctx, sa, topic, false))
	req.NoError(h.lifecycle.Typing(ctx, sa, topic, false))
	req.Len(ofKind(drain(sb.Conn()), event.Typing), 1)
}

func TestLifecycle_DeclaredStatus(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	h := newHarness(t)
	u := h.seedUser(t, "ivy")
	s := h.connect(t, u)

	req.NoError(h.lifecycle.SetStatus(ctx, s, model.StatusBusy))

	st, err := h.directory.Status(ctx, u.ID)
	req.NoError(err)
	req.Equal(model.StatusBusy, st.Status)

	stored, err := h.users.Get(ctx, u.ID)
	req.NoError(err)
	req.Equal(model.StatusBusy, stored.Status)
}

func TestLifecycle_CloseIsIdempotent(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	h := newHarness(t)
	u := h.seedUser(t, "jack")
	s := h.connect(t, u)
	connID := s.ConnID()

	h.lifecycle.Close(ctx, s, "first")
	h.lifecycle.Close(ctx, s, "second")

	req.Equal(model.ConnClosed, s.State())
	_, ok := h.hub.Connection(connID)
	req.False(ok)
	req.Empty(h.hub.Rooms().TopicsOf(connID))
	req.ErrorIs(h.lifecycle.Join(ctx, s, model.ThreadTopic(model.TargetPost, "p")), model.ErrConnClosed)
	req.ErrorIs(h.lifecycle.Activate(ctx, s), model.ErrConnClosed)
}
