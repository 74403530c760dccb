package cmd

import (
	"log/slog"

	"github.com/webitel/im-realtime-service/config"
	"github.com/webitel/im-realtime-service/internal/adapter/auth"
	"github.com/webitel/im-realtime-service/internal/adapter/pubsub"
	"github.com/webitel/im-realtime-service/internal/adapter/push"
	"github.com/webitel/im-realtime-service/internal/domain/registry"
	amqpdi "github.com/webitel/im-realtime-service/internal/handler/amqp"
	"github.com/webitel/im-realtime-service/internal/handler/api"
	"github.com/webitel/im-realtime-service/internal/handler/ws"
	"github.com/webitel/im-realtime-service/internal/metrics"
	"github.com/webitel/im-realtime-service/internal/service"
	"github.com/webitel/im-realtime-service/internal/store"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
)

func NewApp(cfg *config.Config) *fx.App {
	return fx.New(
		fx.Provide(
			func() *config.Config { return cfg },
			ProvideLogger,
			ProvideWatermillLogger,
			ProvideTracer,
		),
		fx.WithLogger(func(logger *slog.Logger) fxevent.Logger {
			l := &fxevent.SlogLogger{Logger: logger.With(slog.String("component", "fx"))}
			l.UseLogLevel(slog.LevelDebug)
			return l
		}),
		fx.Invoke(WatchConfig),
		fx.Invoke(func(*sdktrace.TracerProvider) {}),
		metrics.Module,
		store.Module,
		auth.Module,
		push.Module,
		registry.Module,
		pubsub.Module,
		service.Module,
		amqpdi.Module,
		ws.Module,
		api.Module,
	)
}
