package amqp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"
	"github.com/webitel/im-realtime-service/internal/domain/model"
)

// DomainHandler defines the functional signature for business logic.
// recipient is taken from the routing key and may be uuid.Nil when the
// producer put it in the payload only.
type DomainHandler[T any] func(ctx context.Context, recipient uuid.UUID, payload *T) error

// [INFRASTRUCTURE_BRIDGE]
// Bind connects Watermill to Domain logic, handling Panic Recovery, Decoding and Validation.
func Bind[T any](h *SocialHandler, name string, fn DomainHandler[T]) message.NoPublishHandlerFunc {
	return func(msg *message.Message) (err error) {
		// [PANIC_RECOVERY]
		// Safely handle runtime panics to keep the consumer alive.
		defer func() {
			if r := recover(); r != nil {
				h.logger.Error("PANIC_RECOVERED",
					slog.Any("err", r),
					slog.String("stack", string(debug.Stack())),
					slog.String("msg_id", msg.UUID))
				err = nil
			}
			h.metrics.Consumed(name, err)
		}()

		// [DECODING]
		payload := new(T)
		if err := json.Unmarshal(msg.Payload, payload); err != nil {
			h.logger.Error("DECODE_FAILED", slog.Any("err", err), slog.String("msg_id", msg.UUID))
			return nil // ACK: Poison Pill protection.
		}
		if err := h.validate.Struct(payload); err != nil {
			h.logger.Warn("PAYLOAD_REJECTED", slog.Any("err", err), slog.String("msg_id", msg.UUID))
			return nil
		}

		recipient, _ := resolveUserID(msg)

		// [EXECUTION]
		if err := fn(msg.Context(), recipient, payload); err != nil {
			if terminal(err) {
				h.logger.Warn("EVENT_DROPPED",
					slog.String("handler", name),
					slog.String("msg_id", msg.UUID),
					slog.Any("err", err))
				return nil // ACK: retrying cannot fix a bad request.
			}
			return fmt.Errorf("%s: %w", name, err) // NACK: triggers Retry policy.
		}
		return nil
	}
}

func terminal(err error) bool {
	return errors.Is(err, model.ErrInvalidArgument) ||
		errors.Is(err, model.ErrInvalidTarget) ||
		errors.Is(err, model.ErrNotFound) ||
		errors.Is(err, model.ErrForbidden)
}

// resolveUserID extracts the first uuid segment of the routing key.
func resolveUserID(msg *message.Message) (uuid.UUID, bool) {
	rk := msg.Metadata.Get("x-routing-key")
	if rk == "" {
		rk = msg.Metadata.Get("routing_key")
	}

	for part := range strings.SplitSeq(rk, ".") {
		if uid, err := uuid.Parse(part); err == nil {
			return uid, true
		}
	}
	return uuid.Nil, false
}
