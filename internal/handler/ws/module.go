package ws

import (
	"log/slog"

	"github.com/webitel/im-realtime-service/internal/metrics"
	"github.com/webitel/im-realtime-service/internal/service"
	"go.uber.org/fx"
)

var Module = fx.Module("ws-handler",
	fx.Provide(
		ConfigFrom,
		func(sessions service.SessionManager, msg *service.Messenger, cm *service.Commenter, r *service.Reactions, n *service.Notifier, m *metrics.Metrics, logger *slog.Logger) *Actions {
			return NewActions(ActionsDeps{
				Sessions:  sessions,
				Messenger: msg,
				Commenter: cm,
				Reactions: r,
				Notifier:  n,
				Metrics:   m,
				Logger:    logger,
			})
		},
		NewWSHandler,
	),
)
