// Package ws serves the live channel: one websocket per connection, one
// writer goroutine draining the connector mailbox and a reader dispatching
// inbound actions.
package ws

import (
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/gorilla/websocket"
	"github.com/webitel/im-realtime-service/config"
	"github.com/webitel/im-realtime-service/internal/adapter/auth"
	"github.com/webitel/im-realtime-service/internal/domain/model"
	"github.com/webitel/im-realtime-service/internal/metrics"
	"github.com/webitel/im-realtime-service/internal/service"
)

type Config struct {
	PingInterval   time.Duration
	PongWait       time.Duration
	WriteWait      time.Duration
	MaxMessageSize int64
	AllowedOrigins []string
}

func ConfigFrom(cfg *config.Config) Config {
	return Config{
		PingInterval:   cfg.HTTP.PingInterval,
		PongWait:       cfg.HTTP.PongWait,
		WriteWait:      cfg.HTTP.WriteWait,
		MaxMessageSize: cfg.HTTP.MaxMessageSize,
		AllowedOrigins: cfg.HTTP.AllowedOrigins,
	}
}

type WSHandler struct {
	cfg      Config
	sessions service.SessionManager
	actions  *Actions
	metrics  *metrics.Metrics
	logger   *slog.Logger
	upgrader websocket.Upgrader
}

func NewWSHandler(cfg Config, sessions service.SessionManager, actions *Actions, m *metrics.Metrics, logger *slog.Logger) *WSHandler {
	h := &WSHandler{
		cfg:      cfg,
		sessions: sessions,
		actions:  actions,
		metrics:  m,
		logger:   logger,
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

// checkOrigin accepts every origin when none are configured or "*" is listed.
// Non-browser clients send no Origin header and are always accepted.
func (h *WSHandler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || len(h.cfg.AllowedOrigins) == 0 {
		return true
	}
	return slices.Contains(h.cfg.AllowedOrigins, "*") || slices.Contains(h.cfg.AllowedOrigins, origin)
}

func (h *WSHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// 1. AUTHENTICATE before the upgrade so failures are plain HTTP 401
	sess, err := h.sessions.Open(r.Context(), model.Credentials{
		Token: auth.TokenFromRequest(r),
		Metadata: model.ConnectMetadata{
			Platform:  r.URL.Query().Get("platform"),
			Version:   r.URL.Query().Get("version"),
			RemoteIP:  remoteIP(r),
			UserAgent: r.UserAgent(),
		},
	})
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	// 2. UPGRADE TO WEBSOCKET
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("ws upgrade failed", slog.Any("err", err))
		h.sessions.Close(r.Context(), sess, "upgrade failed")
		return
	}
	defer ws.Close()

	// 3. ACTIVATE: registers the connector and queues the Connected frame
	if err := h.sessions.Activate(r.Context(), sess); err != nil {
		h.logger.Warn("ws activate failed", slog.Any("err", err))
		return
	}

	c := &client{
		ws:      ws,
		sess:    sess,
		cfg:     h.cfg,
		actions: h.actions,
		logger:  h.logger.With(slog.String("conn_id", sess.ConnID().String())),
	}

	// 4. PUMPS: the writer owns every write to ws
	done := make(chan struct{})
	go func() {
		defer close(done)
		c.writePump()
	}()

	reason := c.readPump(r.Context())
	h.sessions.Close(r.Context(), sess, reason)
	<-done
}

func remoteIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		return fwd
	}
	return r.RemoteAddr
}
