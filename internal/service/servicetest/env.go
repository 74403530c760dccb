// Package servicetest wires the real services over an in-memory store for
// handler tests.
package servicetest

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
	"github.com/webitel/im-realtime-service/internal/adapter/push"
	"github.com/webitel/im-realtime-service/internal/domain/model"
	"github.com/webitel/im-realtime-service/internal/domain/registry"
	"github.com/webitel/im-realtime-service/internal/metrics"
	"github.com/webitel/im-realtime-service/internal/service"
	"github.com/webitel/im-realtime-service/internal/store"
)

type Env struct {
	Hub       *registry.Hub
	Users     *store.Users
	Auth      *auth.Authenticator
	Registry  *prometheus.Registry
	Metrics   *metrics.Metrics
	Router    *service.Router
	Notifier  *service.Notifier
	Lifecycle *service.Lifecycle
	Messenger *service.Messenger
	Commenter *service.Commenter
	Reactions *service.Reactions
	Directory *service.Directory
	Logger    *slog.Logger
}

func New(t testing.TB) *Env {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	db, err := store.Open("file:"+uuid.NewString()+"?mode=memory&cache=shared", 1, logger)
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	authn, err := auth.NewAuthenticator(auth.Config{Secret: []byte("test-secret")})
	require.NoError(t, err)

	reg := prometheus.NewRegistry()
	e := &Env{
		Hub:      registry.NewHub(logger, registry.WithMailboxSize(256)),
		Users:    store.NewUsers(db),
		Auth:     authn,
		Registry: reg,
		Metrics:  metrics.New(reg),
		Logger:   logger,
	}
	tokens := store.NewTokens(db)
	notifications := store.NewNotifications(db)
	messages := store.NewMessages(db)
	profiles := service.NewProfileCache(e.Users, 128, time.Minute)

	e.Router = service.NewRouter(e.Hub, e.Metrics, logger)
	fallback := service.NewFallback(tokens, notifications, push.NewLogGateway(100, logger), e.Metrics, logger)
	e.Notifier = service.NewNotifier(service.NotifierDeps{
		Notifications: notifications,
		Schedules:     store.NewSchedules(db),
		Users:         e.Users,
		Tokens:        tokens,
		Hub:           e.Hub,
		Router:        e.Router,
		Fallback:      fallback,
		Profiles:      profiles,
		Metrics:       e.Metrics,
		Logger:        logger,
	}, service.NotifierConfig{BatchSize: 10, Concurrency: 4})
	e.Lifecycle = service.NewLifecycle(service.LifecycleDeps{
		Hub:      e.Hub,
		Router:   e.Router,
		Auth:     authn,
		Users:    e.Users,
		Messages: messages,
		Profiles: profiles,
		Metrics:  e.Metrics,
		Logger:   logger,
	}, 50)
	e.Messenger = service.NewMessenger(messages, e.Users, e.Router, e.Notifier, nil, logger)
	e.Commenter = service.NewCommenter(store.NewComments(db), e.Router, e.Notifier, logger)
	e.Reactions = service.NewReactions(store.NewReactions(db), e.Users, e.Notifier, logger)
	e.Directory = service.NewDirectory(e.Hub, e.Users, tokens)

	t.Cleanup(e.Notifier.Shutdown)
	return e
}

// SeedUser stores an active profile named name.
func (e *Env) SeedUser(t testing.TB, name string) *model.User {
	t.Helper()
	u := &model.User{
		ID:          uuid.New(),
		Username:    name,
		DisplayName: name,
		Active:      true,
		Status:      model.StatusOffline,
		CreatedAt:   time.Now().UTC(),
	}
	require.NoError(t, e.Users.Upsert(context.Background(), u))
	return u
}

// Token issues a bearer token for u.
func (e *Env) Token(t testing.TB, u *model.User) string {
	t.Helper()
	tok, err := e.Auth.Issue(model.Principal{UserID: u.ID, Username: u.Username, DisplayName: u.DisplayName}, time.Hour)
	require.NoError(t, err)
	return tok
}

// Admin issues a token carrying the admin role.
func (e *Env) Admin(t testing.TB, u *model.User) string {
	t.Helper()
	tok, err := e.Auth.Issue(model.Principal{UserID: u.ID, Username: u.Username, Roles: []string{"admin"}}, time.Hour)
	require.NoError(t, err)
	return tok
}
