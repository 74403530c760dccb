package registry

import (
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/webitel/im-realtime-service/internal/domain/model"
)

func TestPresence_OnlineIffLiveConnection(t *testing.T) {
	req := require.New(t)
	p := NewPresence(4)
	user := uuid.New()
	c1, c2 := uuid.New(), uuid.New()

	// Given two devices
	req.True(p.MarkOnline(user, c1).Changed)
	req.False(p.MarkOnline(user, c2).Changed)
	req.True(p.IsOnline(user))
	req.ElementsMatch([]uuid.UUID{c1, c2}, p.Connections(user))

	// When one closes the identity stays online
	tr := p.MarkOffline(user, c1)
	req.False(tr.Changed)
	req.True(p.IsOnline(user))
	req.Equal(model.StatusOnline, p.Status(user).Status)

	// When the second closes the identity goes offline
	tr = p.MarkOffline(user, c2)
	req.True(tr.Changed)
	req.Equal(model.StatusOffline, tr.Status)
	req.False(p.IsOnline(user))
	req.Equal(model.StatusOffline, p.Status(user).Status)
	req.False(p.Status(user).LastSeen.IsZero())
}

func TestPresence_MarkOfflineIdempotent(t *testing.T) {
	req := require.New(t)
	p := NewPresence(4)
	user, conn := uuid.New(), uuid.New()

	p.MarkOnline(user, conn)
	first := p.MarkOffline(user, conn)
	second := p.MarkOffline(user, conn)

	req.True(first.Changed)
	req.False(second.Changed)
	req.Equal(model.StatusOffline, second.Status)

	// unknown identity and connection are no-ops
	req.False(p.MarkOffline(uuid.New(), uuid.New()).Changed)
}

func TestPresence_MarkOnlineSameConnTwice(t *testing.T) {
	req := require.New(t)
	p := NewPresence(4)
	user, conn := uuid.New(), uuid.New()

	p.MarkOnline(user, conn)
	p.MarkOnline(user, conn)
	req.Len(p.Connections(user), 1)

	p.MarkOffline(user, conn)
	req.False(p.IsOnline(user))
}

func TestPresence_DeclaredStatus(t *testing.T) {
	req := require.New(t)
	p := NewPresence(4)
	user, conn := uuid.New(), uuid.New()

	// Given no live connection
	_, err := p.SetDeclaredStatus(user, model.StatusAway)
	req.ErrorIs(err, model.ErrNotOnline)

	p.MarkOnline(user, conn)

	// offline cannot be declared
	_, err = p.SetDeclaredStatus(user, model.StatusOffline)
	req.ErrorIs(err, model.ErrInvalidTarget)

	tr, err := p.SetDeclaredStatus(user, model.StatusBusy)
	req.NoError(err)
	req.True(tr.Changed)
	req.Equal(model.StatusBusy, p.Status(user).Status)
	req.Len(p.Connections(user), 1)

	// override is dropped when the identity goes offline
	p.MarkOffline(user, conn)
	p.MarkOnline(user, uuid.New())
	req.Equal(model.StatusOnline, p.Status(user).Status)
}

func TestPresence_Typing(t *testing.T) {
	req := require.New(t)
	p := NewPresence(4)
	user, conn := uuid.New(), uuid.New()
	topic := model.ConversationTopic(user, uuid.New())

	req.ErrorIs(p.SetTyping(user, topic), model.ErrNotOnline)

	p.MarkOnline(user, conn)
	req.NoError(p.SetTyping(user, topic))
	req.Equal(topic, *p.Status(user).TypingTo)

	req.False(p.ClearTyping(user, model.PersonalTopic(user)))
	req.True(p.ClearTyping(user, topic))
	req.Nil(p.Status(user).TypingTo)

	req.NoError(p.SetTyping(user, topic))
	p.MarkOffline(user, conn)
	req.Nil(p.Status(user).TypingTo)
}

func TestPresence_BulkStatusDefaultsOffline(t *testing.T) {
	req := require.New(t)
	p := NewPresence(4)
	online, unknown := uuid.New(), uuid.New()
	p.MarkOnline(online, uuid.New())

	got := p.BulkStatus([]uuid.UUID{online, unknown})

	req.Len(got, 2)
	req.Equal(model.StatusOnline, got[online].Status)
	req.Equal(model.StatusOffline, got[unknown].Status)
	req.True(got[unknown].LastSeen.IsZero())
}

func TestPresence_Evict(t *testing.T) {
	req := require.New(t)
	p := NewPresence(2)
	gone, live := uuid.New(), uuid.New()
	goneConn := uuid.New()

	p.MarkOnline(gone, goneConn)
	p.MarkOffline(gone, goneConn)
	p.MarkOnline(live, uuid.New())

	req.Equal(1, p.Evict(time.Now().Add(time.Minute)))
	req.True(p.IsOnline(live))
	req.True(p.Status(gone).LastSeen.IsZero())
}

func TestPresence_ConcurrentMembership(t *testing.T) {
	p := NewPresence(8)
	user := uuid.New()

	var wg sync.WaitGroup
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			conn := uuid.New()
			p.MarkOnline(user, conn)
			p.MarkOffline(user, conn)
		}()
	}
	wg.Wait()

	require.False(t, p.IsOnline(user))
	require.Empty(t, p.Connections(user))
}
