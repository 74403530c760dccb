package marshaller

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/webitel/im-realtime-service/internal/domain/event"
	"github.com/webitel/im-realtime-service/internal/domain/model"
)

func TestMarshallDeliveryEvent_FrameShape(t *testing.T) {
	req := require.New(t)
	user := uuid.New()
	ev := event.NewSystemEvent(user, event.Ack, event.PriorityHigh, model.AckPayload{Ref: "r1", Action: "room.join"})

	b, err := MarshallDeliveryEvent(ev)
	req.NoError(err)

	var got map[string]any
	req.NoError(json.Unmarshal(b, &got))
	req.Equal(ev.GetID(), got["id"])
	req.Equal("ack", got["kind"])
	req.EqualValues(ev.GetOccurredAt(), got["ts"])
	req.Equal(map[string]any{"ref": "r1", "action": "room.join"}, got["data"])
}

func TestMarshallDeliveryEvent_EncodesOnce(t *testing.T) {
	req := require.New(t)
	ev := event.NewNotificationEvent(&model.Notification{ID: uuid.New(), RecipientID: uuid.New(), Title: "first"})

	first, err := MarshallDeliveryEvent(ev)
	req.NoError(err)

	// later payload changes are not visible: the cached frame wins
	ev.Notification.Title = "second"
	again, err := MarshallDeliveryEvent(ev)
	req.NoError(err)
	req.Equal(first, again)
	req.Contains(string(again), "first")
}
