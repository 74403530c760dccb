package store

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/webitel/im-realtime-service/internal/domain/model"
	"gorm.io/gorm"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := Open(dsn, 1, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func seedUser(t *testing.T, users *Users, mutate func(*model.User)) *model.User {
	t.Helper()
	u := &model.User{ID: uuid.New(), Username: "u-" + uuid.NewString()[:8], Active: true, CreatedAt: time.Now().UTC()}
	if mutate != nil {
		mutate(u)
	}
	require.NoError(t, users.Upsert(context.Background(), u))
	return u
}

func TestComments_ThreadRoundTrip(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	comments := NewComments(openTestDB(t))
	author := uuid.New()

	// Given a top-level comment
	root := &model.Comment{ID: uuid.New(), AuthorID: author, TargetType: model.TargetPost, TargetID: "p1", Content: "root", Approved: true}
	req.NoError(comments.Create(ctx, root))

	// When two replies are added
	for i := 0; i < 2; i++ {
		parent := root.ID
		reply := &model.Comment{ID: uuid.New(), AuthorID: uuid.New(), TargetType: model.TargetPost, TargetID: "p1", ParentID: &parent, Content: "reply", Approved: true}
		req.NoError(comments.Create(ctx, reply))
	}

	// Then the parent counts them and the thread lists them
	got, err := comments.Get(ctx, root.ID)
	req.NoError(err)
	req.Equal(2, got.RepliesCount)

	replies, total, err := comments.Replies(ctx, root.ID, model.Page{Page: 1, Limit: 10})
	req.NoError(err)
	req.Len(replies, 2)
	req.EqualValues(2, total)

	top, total, err := comments.ListByTarget(ctx, model.TargetPost, "p1", model.Page{Page: 1, Limit: 10})
	req.NoError(err)
	req.Len(top, 1)
	req.EqualValues(1, total)

	stats, err := comments.Stats(ctx, model.TargetPost, "p1")
	req.NoError(err)
	req.Equal(model.CommentStats{Total: 3, TopLevel: 1, Replies: 2}, stats)

	// When one reply is deleted the counter drops
	req.NoError(comments.Delete(ctx, &replies[0]))
	got, err = comments.Get(ctx, root.ID)
	req.NoError(err)
	req.Equal(1, got.RepliesCount)

	// Deleting the root removes the remaining reply too
	req.NoError(comments.Delete(ctx, got))
	_, err = comments.Get(ctx, replies[1].ID)
	req.ErrorIs(err, model.ErrNotFound)
}

func TestNotifications_MarkAllReadTwice(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	store := NewNotifications(openTestDB(t))
	recipient := uuid.New()

	for i := 0; i < 3; i++ {
		req.NoError(store.Create(ctx, &model.Notification{
			ID: uuid.New(), RecipientID: recipient, Kind: model.NotifySystem, Title: "t", Priority: model.PriorityNormal,
			CreatedAt: time.Now().UTC(),
		}))
	}

	now := time.Now().UTC()
	n, err := store.MarkAllRead(ctx, recipient, now)
	req.NoError(err)
	req.EqualValues(3, n)

	n, err = store.MarkAllRead(ctx, recipient, now)
	req.NoError(err)
	req.EqualValues(0, n)

	unread, err := store.UnreadCount(ctx, recipient)
	req.NoError(err)
	req.Zero(unread)
}

func TestNotifications_MarkReadOwnership(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	store := NewNotifications(openTestDB(t))
	owner := uuid.New()
	n := &model.Notification{ID: uuid.New(), RecipientID: owner, Kind: model.NotifySystem, Title: "t", Priority: model.PriorityNormal, CreatedAt: time.Now().UTC()}
	req.NoError(store.Create(ctx, n))

	_, err := store.MarkRead(ctx, n.ID, uuid.New(), time.Now().UTC())
	req.ErrorIs(err, model.ErrNotFound)

	got, err := store.MarkRead(ctx, n.ID, owner, time.Now().UTC())
	req.NoError(err)
	req.True(got.Read)

	// idempotent
	got, err = store.MarkRead(ctx, n.ID, owner, time.Now().UTC())
	req.NoError(err)
	req.True(got.Read)

	req.ErrorIs(store.Delete(ctx, n.ID, uuid.New()), model.ErrNotFound)
	req.NoError(store.Delete(ctx, n.ID, owner))
}

func TestNotifications_DeliveryAndPurge(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	store := NewNotifications(openTestDB(t))
	recipient := uuid.New()
	old := time.Now().UTC().Add(-40 * 24 * time.Hour)

	n := &model.Notification{ID: uuid.New(), RecipientID: recipient, Kind: model.NotifySystem, Title: "t", Priority: model.PriorityNormal, CreatedAt: old}
	req.NoError(store.Create(ctx, n))

	at := time.Now().UTC()
	req.NoError(store.UpdateDelivery(ctx, n.ID, model.DeliveryStatus{Push: false, AttemptedAt: &at, PushError: "no tokens"}))
	got, err := store.Get(ctx, n.ID)
	req.NoError(err)
	req.Equal("no tokens", got.Delivery.PushError)
	req.NotNil(got.Delivery.AttemptedAt)

	// unread records survive retention
	purged, err := store.PurgeRead(ctx, time.Now().UTC().Add(-30*24*time.Hour))
	req.NoError(err)
	req.Zero(purged)

	_, err = store.MarkRead(ctx, n.ID, recipient, at)
	req.NoError(err)
	purged, err = store.PurgeRead(ctx, time.Now().UTC().Add(-30*24*time.Hour))
	req.NoError(err)
	req.EqualValues(1, purged)
}

func TestUsers_SelectCriteria(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	db := openTestDB(t)
	users, tokens := NewUsers(db), NewTokens(db)

	recent := time.Now().UTC().Add(-time.Hour)
	stale := time.Now().UTC().Add(-60 * 24 * time.Hour)

	active := seedUser(t, users, nil)
	req.NoError(users.UpdateStatus(ctx, active.ID, model.StatusOnline, recent))
	dormant := seedUser(t, users, nil)
	req.NoError(users.UpdateStatus(ctx, dormant.ID, model.StatusOffline, stale))
	disabled := seedUser(t, users, func(u *model.User) { u.Active = false })
	req.NoError(tokens.Add(ctx, dormant.ID, "tok-1", "ios"))

	weekAgo := time.Now().UTC().Add(-7 * 24 * time.Hour)
	monthAgo := time.Now().UTC().Add(-30 * 24 * time.Hour)

	got, err := users.Select(ctx, model.RecipientCriteria{ActiveOnly: true, SeenAfter: &weekAgo})
	req.NoError(err)
	req.Equal([]uuid.UUID{active.ID}, got)

	got, err = users.Select(ctx, model.RecipientCriteria{ActiveOnly: true, SeenBefore: &monthAgo})
	req.NoError(err)
	req.Equal([]uuid.UUID{dormant.ID}, got)

	got, err = users.Select(ctx, model.RecipientCriteria{WithTokens: true})
	req.NoError(err)
	req.Equal([]uuid.UUID{dormant.ID}, got)

	got, err = users.Select(ctx, model.RecipientCriteria{ExcludeIDs: []uuid.UUID{active.ID, dormant.ID}})
	req.NoError(err)
	req.Equal([]uuid.UUID{disabled.ID}, got)

	// stale online rows are reset unless still live
	n, err := users.ResetStale(ctx, nil, time.Now().UTC())
	req.NoError(err)
	req.EqualValues(1, n)
}

func TestMessages_HistoryAndConversations(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	msgs := NewMessages(openTestDB(t))
	a, b, c := uuid.New(), uuid.New(), uuid.New()
	base := time.Now().UTC().Add(-time.Hour)

	send := func(from, to uuid.UUID, offset time.Duration, text string) *model.Message {
		m := &model.Message{ID: uuid.New(), SenderID: from, ReceiverID: to, Content: text, Type: model.MessageText, CreatedAt: base.Add(offset)}
		req.NoError(msgs.Create(ctx, m))
		return m
	}
	send(a, b, 0, "one")
	send(b, a, time.Minute, "two")
	send(a, b, 2*time.Minute, "three")
	last := send(c, a, 3*time.Minute, "hey")

	history, total, err := msgs.History(ctx, b, a, "", model.Page{Page: 1, Limit: 10})
	req.NoError(err)
	req.EqualValues(3, total)
	req.Equal([]string{"one", "two", "three"}, []string{history[0].Content, history[1].Content, history[2].Content})

	convs, err := msgs.Conversations(ctx, a, 10)
	req.NoError(err)
	req.Len(convs, 2)
	req.Equal(c, convs[0].PartnerID)
	req.Equal(last.ID, convs[0].LastMessage.ID)
	req.EqualValues(1, convs[0].UnreadCount)
	req.Equal(b, convs[1].PartnerID)

	// reading the conversation with b flips only b's messages
	ids, err := msgs.MarkConversationRead(ctx, a, b, time.Now().UTC())
	req.NoError(err)
	req.Len(ids, 1)
	unread, err := msgs.UnreadCount(ctx, a)
	req.NoError(err)
	req.EqualValues(1, unread)

	// soft-deleted messages disappear from history
	req.NoError(msgs.SoftDelete(ctx, history[0].ID, time.Now().UTC()))
	_, err = msgs.Get(ctx, history[0].ID)
	req.ErrorIs(err, model.ErrNotFound)
	_, total, err = msgs.History(ctx, a, b, "", model.Page{Page: 1, Limit: 10})
	req.NoError(err)
	req.EqualValues(2, total)
}

func TestReactions_FavoritesAndLikes(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	r := NewReactions(openTestDB(t))
	user := uuid.New()

	fav := &model.Favorite{UserID: user, TargetType: model.TargetPost, TargetID: "p1", CreatedAt: time.Now().UTC()}
	req.NoError(r.AddFavorite(ctx, fav))
	dup := *fav
	req.ErrorIs(r.AddFavorite(ctx, &dup), model.ErrConflict)

	set, err := r.FavoriteTargets(ctx, user, model.TargetPost, []string{"p1", "p2"})
	req.NoError(err)
	req.Equal(map[string]bool{"p1": true}, set)

	req.NoError(r.RemoveFavorite(ctx, user, model.TargetPost, "p1"))
	req.ErrorIs(r.RemoveFavorite(ctx, user, model.TargetPost, "p1"), model.ErrNotFound)

	liked := uuid.New()
	req.NoError(r.UpsertLike(ctx, &model.Like{LikerID: user, LikedID: liked, Status: model.LikeSkip}))
	req.NoError(r.UpsertLike(ctx, &model.Like{LikerID: user, LikedID: liked, Status: model.LikeLike}))
	got, err := r.GetLike(ctx, user, liked)
	req.NoError(err)
	req.Equal(model.LikeLike, got.Status)

	none, err := r.GetLike(ctx, liked, user)
	req.NoError(err)
	req.Nil(none)
}

func TestSchedules_DueAndComplete(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	s := NewSchedules(openTestDB(t))
	now := time.Now().UTC()

	due := &model.ScheduledNotification{ID: uuid.New(), DueAt: now.Add(-time.Minute), State: model.SchedulePending,
		Recipients: []uuid.UUID{uuid.New()}, Template: model.NotificationTemplate{Kind: model.NotifyAnnouncement, Title: "hi"}, CreatedAt: now}
	later := &model.ScheduledNotification{ID: uuid.New(), DueAt: now.Add(time.Hour), State: model.SchedulePending, CreatedAt: now}
	req.NoError(s.Create(ctx, due))
	req.NoError(s.Create(ctx, later))

	rows, err := s.Due(ctx, now, 10)
	req.NoError(err)
	req.Len(rows, 1)
	req.Equal(due.ID, rows[0].ID)
	req.Equal("hi", rows[0].Template.Title)

	ok, err := s.Complete(ctx, due.ID, model.ScheduleSent, 1, 0, "", now)
	req.NoError(err)
	req.True(ok)
	ok, err = s.Complete(ctx, due.ID, model.ScheduleSent, 1, 0, "", now)
	req.NoError(err)
	req.False(ok)

	rows, err = s.Due(ctx, now, 10)
	req.NoError(err)
	req.Empty(rows)
}
