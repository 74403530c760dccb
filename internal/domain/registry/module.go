package registry

import (
	"context"
	"log/slog"

	"github.com/webitel/im-realtime-service/config"
	"go.uber.org/fx"
)

var Module = fx.Module("registry",
	fx.Provide(
		// [CLEAN_INJECTION] Configure Hub using Functional Options
		func(cfg *config.Config, logger *slog.Logger) *Hub {
			return NewHub(logger,
				WithShards(cfg.Registry.Shards),
				WithMailboxSize(cfg.Registry.MailboxSize),
				WithEvictionInterval(cfg.Registry.EvictionInterval),
				WithIdleTimeout(cfg.Registry.IdleTimeout),
			)
		},
		fx.Annotate(
			func(h *Hub) Hubber { return h },
			fx.As(new(Hubber)),
		),
	),
	fx.Invoke(func(lc fx.Lifecycle, h Hubber) {
		lc.Append(fx.Hook{
			OnStart: func(context.Context) error {
				h.Start()
				return nil
			},
			OnStop: func(context.Context) error {
				h.Shutdown() // [GRACEFUL_SHUTDOWN] Close every live channel
				return nil
			},
		})
	}),
)
