package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/webitel/im-realtime-service/config"
	"github.com/webitel/im-realtime-service/internal/adapter/auth"
	"github.com/webitel/im-realtime-service/internal/domain/registry"
	"github.com/webitel/im-realtime-service/internal/metrics"
	"github.com/webitel/im-realtime-service/internal/store"
	"go.uber.org/fx"
)

var Module = fx.Module(
	"service",

	fx.Provide(
		// Store contracts
		func(s *store.Users) UserDirectory { return s },
		func(s *store.Tokens) TokenStore { return s },
		func(s *store.Notifications) NotificationStore { return s },
		func(s *store.Schedules) ScheduleStore { return s },
		func(s *store.Messages) MessageStore { return s },
		func(s *store.Comments) CommentStore { return s },
		func(s *store.Reactions) ReactionStore { return s },
		fx.Annotate(
			func(a *auth.Authenticator) *auth.Authenticator { return a },
			fx.As(new(Authenticator)),
		),

		// Domain services
		NewRouter,
		NewFallback,
		fx.Annotate(
			func(cfg *config.Config, users UserDirectory) *ProfileCache {
				return NewProfileCache(users, cfg.Profiles.CacheSize, cfg.Profiles.TTL)
			},
			fx.As(new(Profiles)),
		),
		newNotifier,
		newLifecycle,
		func(l *Lifecycle) SessionManager { return l },
		NewMessenger,
		NewCommenter,
		NewReactions,
		NewDirectory,
		newScheduler,
	),

	// [DECORATION_LAYER] Intercept Profiles to add cross-cutting concerns
	fx.Decorate(func(orig Profiles, logger *slog.Logger) Profiles {
		return NewProfilesMiddleware(orig, logger)
	}),

	fx.Invoke(func(lc fx.Lifecycle, s *Scheduler, n *Notifier) {
		lc.Append(fx.Hook{
			OnStart: s.Start,
			OnStop: func(ctx context.Context) error {
				err := s.Stop(ctx)
				// [GRACEFUL_SHUTDOWN] Let detached notifications finish
				n.Shutdown()
				return err
			},
		})
	}),
)

type notifierParams struct {
	fx.In

	Config        *config.Config
	Notifications NotificationStore
	Schedules     ScheduleStore
	Users         UserDirectory
	Tokens        TokenStore
	Hub           registry.Hubber
	Router        *Router
	Fallback      *Fallback
	Profiles      Profiles
	Exporter      Exporter `optional:"true"`
	Metrics       *metrics.Metrics
	Logger        *slog.Logger
}

func newNotifier(p notifierParams) *Notifier {
	return NewNotifier(NotifierDeps{
		Notifications: p.Notifications,
		Schedules:     p.Schedules,
		Users:         p.Users,
		Tokens:        p.Tokens,
		Hub:           p.Hub,
		Router:        p.Router,
		Fallback:      p.Fallback,
		Profiles:      p.Profiles,
		Exporter:      p.Exporter,
		Metrics:       p.Metrics,
		Logger:        p.Logger,
	}, NotifierConfig{
		BatchSize:     p.Config.Notify.BatchSize,
		Concurrency:   p.Config.Notify.Concurrency,
		PreviewLength: p.Config.Notify.PreviewLength,
	})
}

type lifecycleParams struct {
	fx.In

	Config   *config.Config
	Hub      registry.Hubber
	Router   *Router
	Auth     Authenticator
	Users    UserDirectory
	Messages MessageStore
	Profiles Profiles
	Metrics  *metrics.Metrics
	Logger   *slog.Logger
}

func newLifecycle(p lifecycleParams) *Lifecycle {
	return NewLifecycle(LifecycleDeps{
		Hub:      p.Hub,
		Router:   p.Router,
		Auth:     p.Auth,
		Users:    p.Users,
		Messages: p.Messages,
		Profiles: p.Profiles,
		Metrics:  p.Metrics,
		Logger:   p.Logger,
	}, p.Config.Notify.PartnerLimit)
}

func newScheduler(cfg *config.Config, n *Notifier, users UserDirectory, hub registry.Hubber, logger *slog.Logger) (*Scheduler, error) {
	return NewScheduler(SchedulerConfig{
		DueSpec:       cfg.Scheduler.DueSpec,
		RetentionSpec: cfg.Scheduler.RetentionSpec,
		ReconcileSpec: cfg.Scheduler.ReconcileSpec,
		Retention:     time.Duration(cfg.Notify.RetentionDays) * 24 * time.Hour,
	}, n, users, hub, logger)
}
