// Package marshaller renders domain events as JSON frames for the websocket
// channel and the message bus.
package marshaller

import (
	"encoding/json"
	"fmt"

	"github.com/webitel/im-realtime-service/internal/domain/event"
)

// Frame is the outbound wire envelope.
type Frame struct {
	ID   string `json:"id"`
	Kind string `json:"kind"`
	TS   int64  `json:"ts"`
	Data any    `json:"data,omitempty"`
}

// MarshallDeliveryEvent encodes ev once and caches the bytes on the event, so
// fan-out to many connections pays for a single encoding.
func MarshallDeliveryEvent(ev event.Eventer) ([]byte, error) {
	if cached := ev.GetCached(); cached != nil {
		if b, ok := cached.([]byte); ok {
			return b, nil
		}
	}

	b, err := json.Marshal(Frame{
		ID:   ev.GetID(),
		Kind: ev.GetKind().String(),
		TS:   ev.GetOccurredAt(),
		Data: ev.GetPayload(),
	})
	if err != nil {
		return nil, fmt.Errorf("marshal %s frame: %w", ev.GetKind(), err)
	}

	ev.SetCached(b)
	return b, nil
}
