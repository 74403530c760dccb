package ws

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"
	"github.com/webitel/im-realtime-service/internal/handler/marshaller"
	"github.com/webitel/im-realtime-service/internal/service"
)

// client binds one websocket to one session.
type client struct {
	ws      *websocket.Conn
	sess    *service.Session
	cfg     Config
	actions *Actions
	logger  *slog.Logger
}

// writePump drains the connector mailbox until it is closed, pinging the peer
// every PingInterval. Queued events are flushed before the close frame.
func (c *client) writePump() {
	ticker := time.NewTicker(c.cfg.PingInterval)
	defer ticker.Stop()
	// a failed write must unblock the reader
	defer c.ws.Close()

	conn := c.sess.Conn()
	for {
		select {
		case ev, ok := <-conn.Recv():
			if !ok {
				_ = c.ws.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
					time.Now().Add(c.cfg.WriteWait))
				return
			}

			data, err := marshaller.MarshallDeliveryEvent(ev)
			if err != nil {
				c.logger.Error("failed to marshal ws event", slog.Any("err", err))
				continue
			}

			_ = c.ws.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
				c.logger.Debug("ws send failed", slog.Any("err", err))
				return
			}

		case <-ticker.C:
			if err := c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.cfg.WriteWait)); err != nil {
				c.logger.Debug("ws ping failed", slog.Any("err", err))
				return
			}
		}
	}
}

// readPump reads frames until the peer goes away and returns the close reason.
// Frames are handled in arrival order.
func (c *client) readPump(ctx context.Context) string {
	c.ws.SetReadLimit(c.cfg.MaxMessageSize)
	_ = c.ws.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
	})

	for {
		typ, data, err := c.ws.ReadMessage()
		if err != nil {
			return closeReason(err)
		}
		if typ != websocket.TextMessage && typ != websocket.BinaryMessage {
			continue
		}
		// any inbound traffic proves liveness
		_ = c.ws.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
		c.actions.Handle(ctx, c.sess, data)
	}
}

func closeReason(err error) string {
	var ce *websocket.CloseError
	switch {
	case errors.As(err, &ce) && (ce.Code == websocket.CloseNormalClosure || ce.Code == websocket.CloseGoingAway):
		return "client closed"
	case errors.Is(err, websocket.ErrReadLimit):
		return "frame too large"
	case websocket.IsUnexpectedCloseError(err):
		return "abrupt disconnect"
	default:
		return "read failed"
	}
}
