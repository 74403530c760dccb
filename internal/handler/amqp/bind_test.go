package amqp

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	"github.com/webitel/im-realtime-service/internal/domain/model"
	"github.com/webitel/im-realtime-service/internal/metrics"
	"github.com/webitel/im-realtime-service/internal/service"
)

type recordingNotifier struct {
	reqs []service.NotifyRequest
	err  error
}

func (r *recordingNotifier) Notify(_ context.Context, req service.NotifyRequest) (*model.Notification, error) {
	if r.err != nil {
		return nil, r.err
	}
	r.reqs = append(r.reqs, req)
	return &model.Notification{ID: uuid.New(), RecipientID: req.RecipientID, Kind: req.Kind}, nil
}

type staticProfiles map[uuid.UUID]*model.User

func (s staticProfiles) Resolve(_ context.Context, id uuid.UUID) (*model.User, error) {
	if u, ok := s[id]; ok {
		return u, nil
	}
	return &model.User{ID: id}, nil
}

func (s staticProfiles) ResolvePair(ctx context.Context, a, b uuid.UUID) (*model.User, *model.User, error) {
	ua, _ := s.Resolve(ctx, a)
	ub, _ := s.Resolve(ctx, b)
	return ua, ub, nil
}

func (s staticProfiles) Remember(*model.User) {}

type fixture struct {
	handler  *SocialHandler
	notifier *recordingNotifier
	metrics  *metrics.Metrics
	alice    *model.User
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	alice := &model.User{ID: uuid.New(), Username: "alice"}
	n := &recordingNotifier{}
	m := metrics.New(prometheus.NewRegistry())
	h := newSocialHandler(n, staticProfiles{alice.ID: alice}, nil, m, slog.New(slog.DiscardHandler))
	return &fixture{handler: h, notifier: n, metrics: m, alice: alice}
}

func newMsg(payload, routingKey string) *message.Message {
	msg := message.NewMessage(watermill.NewUUID(), []byte(payload))
	if routingKey != "" {
		msg.Metadata.Set("routing_key", routingKey)
	}
	return msg
}

func TestBind_PostLikedUsesPayloadOwner(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	owner := uuid.New()

	fn := Bind(f.handler, "ON_POST_LIKED", f.handler.OnPostLikedV1)
	payload := `{"post_id":"p1","owner_id":"` + owner.String() + `","actor_id":"` + f.alice.ID.String() + `"}`
	req.NoError(fn(newMsg(payload, "")))

	req.Len(f.notifier.reqs, 1)
	got := f.notifier.reqs[0]
	req.Equal(owner, got.RecipientID)
	req.Equal(model.NotifyPostLike, got.Kind)
	req.Contains(got.Body, "alice")
	req.InDelta(1, testutil.ToFloat64(f.metrics.ConsumedMessages.WithLabelValues("ON_POST_LIKED", "ok")), 0)
}

func TestBind_RecipientFromRoutingKey(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	mentioned := uuid.New()

	fn := Bind(f.handler, "ON_USER_MENTIONED", f.handler.OnUserMentionedV1)
	payload := `{"post_id":"p1","comment_id":"c9","content":"hey","actor_id":"` + f.alice.ID.String() + `"}`
	req.NoError(fn(newMsg(payload, "im_social."+mentioned.String()+".user.mentioned.v1")))

	req.Len(f.notifier.reqs, 1)
	got := f.notifier.reqs[0]
	req.Equal(mentioned, got.RecipientID)
	req.Equal(model.NotifyMention, got.Kind)
	req.Equal("c9", got.Data["comment_id"])
}

func TestBind_TerminalFailuresAreAcked(t *testing.T) {
	f := newFixture(t)
	shared := Bind(f.handler, "ON_POST_SHARED", f.handler.OnPostSharedV1)
	interaction := Bind(f.handler, "ON_POST_INTERACTION", f.handler.OnPostInteractionV1)
	actor := f.alice.ID.String()

	cases := []struct {
		name    string
		fn      message.NoPublishHandlerFunc
		payload string
	}{
		{"malformed json", shared, `{"post_id":`},
		{"missing post", shared, `{"actor_id":"` + actor + `","owner_id":"` + uuid.NewString() + `"}`},
		{"no recipient anywhere", shared, `{"post_id":"p1","actor_id":"` + actor + `"}`},
		{"empty interaction", interaction, `{"post_id":"p1","actor_id":"` + actor + `","owner_id":"` + uuid.NewString() + `"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.NoError(t, tc.fn(newMsg(tc.payload, "")))
		})
	}
	require.Empty(t, f.notifier.reqs)
}

func TestBind_TransientFailureIsNacked(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	f.notifier.err = errors.New("database is locked")

	fn := Bind(f.handler, "ON_POST_LIKED", f.handler.OnPostLikedV1)
	payload := `{"post_id":"p1","owner_id":"` + uuid.NewString() + `","actor_id":"` + f.alice.ID.String() + `"}`
	err := fn(newMsg(payload, ""))
	req.Error(err)
	req.Contains(err.Error(), "ON_POST_LIKED")
	req.InDelta(1, testutil.ToFloat64(f.metrics.ConsumedMessages.WithLabelValues("ON_POST_LIKED", "error")), 0)
}

func TestBind_PanicIsRecovered(t *testing.T) {
	f := newFixture(t)
	fn := Bind(f.handler, "BOOM", func(context.Context, uuid.UUID, *PostEventV1) error {
		panic("boom")
	})
	payload := `{"post_id":"p1","actor_id":"` + f.alice.ID.String() + `"}`
	require.NotPanics(t, func() {
		require.NoError(t, fn(newMsg(payload, "")))
	})
}

func TestPostInteraction_Report(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	owner := uuid.New()

	fn := Bind(f.handler, "ON_POST_INTERACTION", f.handler.OnPostInteractionV1)
	payload := `{"post_id":"p1","owner_id":"` + owner.String() + `","actor_id":"` + f.alice.ID.String() + `","interaction":"report"}`
	req.NoError(fn(newMsg(payload, "")))

	req.Len(f.notifier.reqs, 1)
	req.Equal(model.NotifyPostReport, f.notifier.reqs[0].Kind)
	req.Equal(model.PriorityHigh, f.notifier.reqs[0].Priority)
}
