package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/webitel/im-realtime-service/internal/domain/model"
)

func TestScheduler_RejectsBadSpec(t *testing.T) {
	h := newHarness(t)

	_, err := NewScheduler(SchedulerConfig{DueSpec: "every now and then"}, h.notifier, h.users, h.hub, discardLogger())

	require.Error(t, err)
}

func TestScheduler_ReconcileResetsStaleRows(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	h := newHarness(t)

	// Given a row left online by a previous process and one live identity
	stale := h.seedUser(t, "stale")
	req.NoError(h.users.UpdateStatus(ctx, stale.ID, model.StatusOnline, time.Now().UTC()))
	live := h.seedUser(t, "live")
	h.connect(t, live)

	s, err := NewScheduler(SchedulerConfig{
		DueSpec:       "@every 1m",
		RetentionSpec: "0 3 * * *",
		ReconcileSpec: "*/30 * * * * *",
	}, h.notifier, h.users, h.hub, discardLogger())
	req.NoError(err)

	req.NoError(s.Reconcile(ctx))

	got, err := h.users.Get(ctx, stale.ID)
	req.NoError(err)
	req.Equal(model.StatusOffline, got.Status)

	got, err = h.users.Get(ctx, live.ID)
	req.NoError(err)
	req.Equal(model.StatusOnline, got.Status)
}

func TestScheduler_StartAndStop(t *testing.T) {
	req := require.New(t)
	h := newHarness(t)

	s, err := NewScheduler(SchedulerConfig{DueSpec: "@every 1h"}, h.notifier, h.users, h.hub, discardLogger())
	req.NoError(err)

	req.NoError(s.Start(t.Context()))
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	req.NoError(s.Stop(ctx))
}

func TestScheduler_JobsDrainDueEntries(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	h := newHarness(t)
	u := h.seedUser(t, "alice")

	now := time.Now().UTC()
	_, err := h.notifier.Schedule(ctx, now.Add(time.Minute), []uuid.UUID{u.ID}, tmpl(model.NotifyAnnouncement))
	req.NoError(err)
	h.notifier.clock = func() time.Time { return now.Add(time.Hour) }

	s, err := NewScheduler(SchedulerConfig{Retention: 24 * time.Hour}, h.notifier, h.users, h.hub, discardLogger())
	req.NoError(err)

	// wrapped jobs never panic or return; the effect is observable in the store
	s.wrap("due_notifications", s.RunDue)()
	s.wrap("notification_retention", s.Retention)()

	n, err := h.notifier.UnreadCount(ctx, u.ID)
	req.NoError(err)
	req.EqualValues(1, n)
}
