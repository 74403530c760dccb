package registry

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/webitel/im-realtime-service/internal/domain/model"
)

func TestRooms_SubscribeLifecycle(t *testing.T) {
	req := require.New(t)
	r := NewRooms(4)
	topic := model.ThreadTopic(model.TargetPost, "p1")
	c1, c2 := uuid.New(), uuid.New()

	req.Empty(r.SubscribersOf(topic))
	req.NotNil(r.SubscribersOf(topic))

	req.True(r.Subscribe(c1, topic))
	req.False(r.Subscribe(c1, topic))
	req.True(r.Subscribe(c2, topic))
	req.ElementsMatch([]uuid.UUID{c1, c2}, r.SubscribersOf(topic))
	req.Equal(1, r.Len())

	req.True(r.Unsubscribe(c1, topic))
	req.False(r.Unsubscribe(c1, topic))
	req.True(r.Unsubscribe(c2, topic))

	// empty topics are removed
	req.Equal(0, r.Len())
}

func TestRooms_DropConnection(t *testing.T) {
	req := require.New(t)
	r := NewRooms(4)
	conn, other := uuid.New(), uuid.New()
	a := model.ConversationTopic(uuid.New(), uuid.New())
	b := model.ThreadTopic(model.TargetProfile, "x")

	r.Subscribe(conn, a)
	r.Subscribe(conn, b)
	r.Subscribe(other, b)

	dropped := r.DropConnection(conn)

	req.ElementsMatch([]model.TopicKey{a, b}, dropped)
	req.Empty(r.SubscribersOf(a))
	req.Equal([]uuid.UUID{other}, r.SubscribersOf(b))
	req.Empty(r.TopicsOf(conn))
	req.Nil(r.DropConnection(conn))
	req.Equal(1, r.Len())
}

func TestRooms_ConversationTopicIsOrderIndependent(t *testing.T) {
	req := require.New(t)
	r := NewRooms(4)
	a, b := uuid.New(), uuid.New()
	conn := uuid.New()

	r.Subscribe(conn, model.ConversationTopic(a, b))

	req.True(r.IsSubscribed(conn, model.ConversationTopic(b, a)))
	req.Equal([]uuid.UUID{conn}, r.SubscribersOf(model.ConversationTopic(b, a)))
}
