package amqp

import (
	"context"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/webitel/im-realtime-service/internal/adapter/pubsub"
	"go.uber.org/fx"
)

var Module = fx.Module("amqp-handler",
	fx.Provide(
		NewSocialHandler,
		NewWatermillRouter,
	),

	fx.Invoke(register),
)

// register attaches the consumers and runs the router for the app lifetime.
// Without a broker there is nothing to consume.
func register(lc fx.Lifecycle, h *SocialHandler, router *message.Router, provider *pubsub.Provider, subs *pubsub.SubscriberProvider, logger *slog.Logger) error {
	if !provider.Enabled() {
		logger.Info("AMQP_CONSUMERS_DISABLED")
		return nil
	}
	if err := h.RegisterHandlers(router, subs); err != nil {
		return err
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := router.Run(context.Background()); err != nil {
					logger.Error("AMQP_ROUTER_STOPPED", slog.Any("err", err))
				}
			}()
			select {
			case <-router.Running():
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		},
		OnStop: func(context.Context) error {
			return router.Close()
		},
	})
	return nil
}
