package service

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"github.com/webitel/im-realtime-service/internal/adapter/auth"
	"github.com/webitel/im-realtime-service/internal/adapter/push/pushmock"
	"github.com/webitel/im-realtime-service/internal/domain/event"
	"github.com/webitel/im-realtime-service/internal/domain/model"
	"github.com/webitel/im-realtime-service/internal/domain/registry"
	"github.com/webitel/im-realtime-service/internal/metrics"
	"github.com/webitel/im-realtime-service/internal/store"
	"go.uber.org/mock/gomock"
)

const testMaxBatch = 100

type harness struct {
	hub           *registry.Hub
	router        *Router
	fallback      *Fallback
	notifier      *Notifier
	lifecycle     *Lifecycle
	messenger     *Messenger
	commenter     *Commenter
	reactions     *Reactions
	directory     *Directory
	users         *store.Users
	tokens        *store.Tokens
	notifications *store.Notifications
	schedules     *store.Schedules
	gateway       *pushmock.MockGateway
	auth          *auth.Authenticator
	metrics       *metrics.Metrics
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	logger := discardLogger()

	db, err := store.Open("file:"+uuid.NewString()+"?mode=memory&cache=shared", 1, logger)
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	ctrl := gomock.NewController(t)
	gw := pushmock.NewMockGateway(ctrl)
	gw.EXPECT().MaxBatch().Return(testMaxBatch).AnyTimes()

	authn, err := auth.NewAuthenticator(auth.Config{Secret: []byte("test-secret")})
	require.NoError(t, err)

	h := &harness{
		hub:           registry.NewHub(logger, registry.WithMailboxSize(1024)),
		users:         store.NewUsers(db),
		tokens:        store.NewTokens(db),
		notifications: store.NewNotifications(db),
		schedules:     store.NewSchedules(db),
		gateway:       gw,
		auth:          authn,
		metrics:       metrics.New(prometheus.NewRegistry()),
	}
	messages := store.NewMessages(db)
	profiles := NewProfileCache(h.users, 128, time.Minute)

	h.router = NewRouter(h.hub, h.metrics, logger)
	h.fallback = NewFallback(h.tokens, h.notifications, gw, h.metrics, logger)
	h.notifier = NewNotifier(NotifierDeps{
		Notifications: h.notifications,
		Schedules:     h.schedules,
		Users:         h.users,
		Tokens:        h.tokens,
		Hub:           h.hub,
		Router:        h.router,
		Fallback:      h.fallback,
		Profiles:      profiles,
		Metrics:       h.metrics,
		Logger:        logger,
	}, NotifierConfig{BatchSize: 10, Concurrency: 4})
	h.lifecycle = NewLifecycle(LifecycleDeps{
		Hub:      h.hub,
		Router:   h.router,
		Auth:     authn,
		Users:    h.users,
		Messages: messages,
		Profiles: profiles,
		Metrics:  h.metrics,
		Logger:   logger,
	}, 50)
	h.messenger = NewMessenger(messages, h.users, h.router, h.notifier, nil, logger)
	h.commenter = NewCommenter(store.NewComments(db), h.router, h.notifier, logger)
	h.reactions = NewReactions(store.NewReactions(db), h.users, h.notifier, logger)
	h.directory = NewDirectory(h.hub, h.users, h.tokens)

	// registered last so it runs before the database closes
	t.Cleanup(h.notifier.Shutdown)
	return h
}

func (h *harness) seedUser(t *testing.T, name string) *model.User {
	t.Helper()
	u := &model.User{
		ID:          uuid.New(),
		Username:    name,
		DisplayName: name,
		Active:      true,
		Status:      model.StatusOffline,
		CreatedAt:   time.Now().UTC(),
	}
	require.NoError(t, h.users.Upsert(context.Background(), u))
	return u
}

// connect opens and activates a live channel for u.
func (h *harness) connect(t *testing.T, u *model.User) *Session {
	t.Helper()
	ctx := context.Background()

	token, err := h.auth.Issue(model.Principal{UserID: u.ID, Username: u.Username, DisplayName: u.DisplayName}, time.Hour)
	require.NoError(t, err)

	s, err := h.lifecycle.Open(ctx, model.Credentials{Token: token, Metadata: model.ConnectMetadata{Platform: "test"}})
	require.NoError(t, err)
	require.NoError(t, h.lifecycle.Activate(ctx, s))
	t.Cleanup(func() { h.lifecycle.Close(context.Background(), s, "test done") })
	return s
}

// drain returns every queued event of conn without blocking.
func drain(conn registry.Connector) []event.Eventer {
	var out []event.Eventer
	for {
		select {
		case ev, ok := <-conn.Recv():
			if !ok {
				return out
			}
			out = append(out, ev)
		default:
			return out
		}
	}
}

func ofKind(events []event.Eventer, kind event.Kind) []event.Eventer {
	var out []event.Eventer
	for _, ev := range events {
		if ev.GetKind() == kind {
			out = append(out, ev)
		}
	}
	return out
}

func tmpl(kind model.NotificationKind) model.NotificationTemplate {
	return model.NotificationTemplate{Kind: kind, Title: "Hello", Body: "World"}
}
