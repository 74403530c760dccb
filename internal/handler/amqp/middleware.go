package amqp

import (
	"log/slog"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("github.com/webitel/im-realtime-service/internal/handler/amqp")

// [TRACE_MIDDLEWARE]
// Opens a consumer span and keeps the trace id on the message metadata so
// retries and poison copies carry it.
func TraceMiddleware(h message.HandlerFunc) message.HandlerFunc {
	return func(msg *message.Message) ([]*message.Message, error) {
		ctx, span := tracer.Start(msg.Context(), "amqp.consume")
		defer span.End()
		span.SetAttributes(
			attribute.String("messaging.message.id", msg.UUID),
			attribute.String("messaging.routing_key", msg.Metadata.Get("routing_key")),
		)

		if msg.Metadata.Get("trace_id") == "" {
			msg.Metadata.Set("trace_id", span.SpanContext().TraceID().String())
		}
		msg.SetContext(ctx)

		msgs, err := h(msg)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "handler failed")
		}
		return msgs, err
	}
}

// [LOGGING_MIDDLEWARE]
// Structured logging with latency and TraceID.
func LoggingMiddleware(logger *slog.Logger) message.HandlerMiddleware {
	return func(h message.HandlerFunc) message.HandlerFunc {
		return func(msg *message.Message) ([]*message.Message, error) {
			start := time.Now()
			msgs, err := h(msg)

			logger.Debug("MESSAGE_HANDLED",
				slog.String("msg_id", msg.UUID),
				slog.String("trace_id", msg.Metadata.Get("trace_id")),
				slog.Int64("duration_ms", time.Since(start).Milliseconds()),
				slog.Bool("success", err == nil),
			)
			return msgs, err
		}
	}
}

// [RETRY_MIDDLEWARE]
func NewRetryMiddleware(logger *slog.Logger) middleware.Retry {
	return middleware.Retry{
		MaxRetries:      3,
		InitialInterval: time.Second * 2,
		MaxInterval:     time.Second * 15,
		Multiplier:      2.0,
		OnRetryHook: func(n int, delay time.Duration) {
			logger.Warn("MESSAGE_RETRY", slog.Int("attempt", n), slog.Duration("delay", delay))
		},
	}
}
