package pubsub

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/webitel/im-realtime-service/internal/domain/event"
	"github.com/webitel/im-realtime-service/internal/handler/marshaller"
)

const (
	MetadataRoutingKey = "routing_key"
	MetadataKind       = "kind"
)

// EventDispatcher re-publishes domain events to the bus.
// This allows the services to stay agnostic of the transport implementation.
type EventDispatcher interface {
	Export(ctx context.Context, ev event.Eventer) error
	Publisher() message.Publisher
}

type eventDispatcher struct {
	publisher message.Publisher
	logger    *slog.Logger
}

func NewEventDispatcher(pub message.Publisher, logger *slog.Logger) EventDispatcher {
	return &eventDispatcher{
		publisher: pub,
		logger:    logger,
	}
}

// Export publishes ev under its routing key. Events that are not exportable,
// or report an empty key, are skipped.
func (d *eventDispatcher) Export(ctx context.Context, ev event.Eventer) error {
	if ev == nil {
		return fmt.Errorf("event dispatcher: cannot publish nil event")
	}
	exp, ok := ev.(event.Exportable)
	if !ok {
		return nil
	}
	key := exp.GetRoutingKey()
	if key == "" {
		return nil
	}

	payload, err := marshaller.MarshallDeliveryEvent(ev)
	if err != nil {
		return fmt.Errorf("event dispatcher: %w", err)
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.Metadata.Set(MetadataRoutingKey, key)
	msg.Metadata.Set(MetadataKind, ev.GetKind().String())
	msg.SetContext(ctx)

	if err := d.publisher.Publish(key, msg); err != nil {
		return fmt.Errorf("event dispatcher: failed to publish to topic %s: %w", key, err)
	}
	d.logger.Debug("EVENT_EXPORTED", slog.String("routing_key", key), slog.String("event_id", ev.GetID()))
	return nil
}

func (d *eventDispatcher) Publisher() message.Publisher {
	return d.publisher
}
