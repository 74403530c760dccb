package pubsub

import (
	"context"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/webitel/im-realtime-service/internal/service"
	"go.uber.org/fx"
)

var Module = fx.Module("pubsub",
	fx.Provide(
		NewProvider,
		NewPublisherProvider,
		NewSubscriberProvider,
		func(pp *PublisherProvider) (message.Publisher, error) {
			return pp.Build(ExportExchange)
		},
		NewEventDispatcher,
		func(d EventDispatcher) service.Exporter { return d },
	),

	fx.Invoke(func(lc fx.Lifecycle, p *Provider, pub message.Publisher) {
		lc.Append(fx.Hook{
			OnStop: func(context.Context) error {
				if p.Enabled() {
					if err := pub.Close(); err != nil {
						return err
					}
				}
				return p.Close()
			},
		})
	}),
)
