package cmd

import (
	"context"
	"log/slog"
	"os"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/webitel/im-realtime-service/config"
	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
)

// ProvideLogger builds the process logger. The level lives in a LevelVar so
// a config file change can adjust it at runtime.
func ProvideLogger(cfg *config.Config) (*slog.Logger, *slog.LevelVar) {
	level := new(slog.LevelVar)
	level.Set(config.ParseLevel(cfg.Log.Level))

	var h slog.Handler
	switch {
	case cfg.Log.Exporter == "otel":
		// records go to the globally registered otel LoggerProvider
		h = &leveled{Handler: otelslog.NewHandler(cfg.Service.Name), level: level}
	case cfg.Log.Format == "text":
		h = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	default:
		h = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	}

	logger := slog.New(&traced{Handler: h}).With(
		slog.String("service", cfg.Service.Name),
		slog.String("env", cfg.Service.Env),
	)
	slog.SetDefault(logger)
	return logger, level
}

func ProvideWatermillLogger(logger *slog.Logger) watermill.LoggerAdapter {
	return watermill.NewSlogLogger(logger.With(slog.String("component", "watermill")))
}

// ProvideTracer installs the SDK tracer provider globally. Spans carry trace
// ids into log records; exporting them is left to the deployment.
func ProvideTracer(lc fx.Lifecycle, cfg *config.Config) *sdktrace.TracerProvider {
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithResource(resource.NewSchemaless(
			attribute.String("service.name", cfg.Service.Name),
			attribute.String("service.namespace", ServiceNamespace),
			attribute.String("service.instance.id", cfg.Service.ID),
			attribute.String("deployment.environment", cfg.Service.Env),
			attribute.String("service.version", version),
		)),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.AlwaysSample())),
	)
	otel.SetTracerProvider(tp)

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error { return tp.Shutdown(ctx) },
	})
	return tp
}

// WatchConfig applies log level changes from the config file.
func WatchConfig(cfg *config.Config, level *slog.LevelVar) {
	cfg.Watch(level.Set)
}

// leveled gates a handler that has no level option of its own.
type leveled struct {
	slog.Handler
	level slog.Leveler
}

func (h *leveled) Enabled(ctx context.Context, l slog.Level) bool {
	return l >= h.level.Level() && h.Handler.Enabled(ctx, l)
}

func (h *leveled) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &leveled{Handler: h.Handler.WithAttrs(attrs), level: h.level}
}

func (h *leveled) WithGroup(name string) slog.Handler {
	return &leveled{Handler: h.Handler.WithGroup(name), level: h.level}
}

// traced adds the active span's ids to every record logged with a context.
type traced struct {
	slog.Handler
}

func (h *traced) Handle(ctx context.Context, r slog.Record) error {
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		r.AddAttrs(
			slog.String("trace_id", sc.TraceID().String()),
			slog.String("span_id", sc.SpanID().String()),
		)
	}
	return h.Handler.Handle(ctx, r)
}

func (h *traced) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &traced{Handler: h.Handler.WithAttrs(attrs)}
}

func (h *traced) WithGroup(name string) slog.Handler {
	return &traced{Handler: h.Handler.WithGroup(name)}
}
