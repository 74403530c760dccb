// Package api exposes the hub over HTTP: the websocket upgrade, REST reads
// and writes for the durable records, admin sends, stats and metrics.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/webitel/im-realtime-service/config"
	"github.com/webitel/im-realtime-service/internal/domain/registry"
	"github.com/webitel/im-realtime-service/internal/handler/ws"
	"github.com/webitel/im-realtime-service/internal/service"
	"go.opentelemetry.io/otel"
	"go.uber.org/fx"
)

var tracer = otel.Tracer("github.com/webitel/im-realtime-service/internal/handler/api")

type Server struct {
	hub       registry.Hubber
	auth      service.Authenticator
	notifier  *service.Notifier
	messenger *service.Messenger
	commenter *service.Commenter
	reactions *service.Reactions
	directory *service.Directory
	ws        http.Handler
	registry  *prometheus.Registry
	logger    *slog.Logger
	validate  *validator.Validate
}

type Deps struct {
	fx.In

	Hub       registry.Hubber
	Auth      service.Authenticator
	Notifier  *service.Notifier
	Messenger *service.Messenger
	Commenter *service.Commenter
	Reactions *service.Reactions
	Directory *service.Directory
	WS        *ws.WSHandler
	Registry  *prometheus.Registry
	Logger    *slog.Logger
}

func NewServer(d Deps) *Server {
	return &Server{
		hub:       d.Hub,
		auth:      d.Auth,
		notifier:  d.Notifier,
		messenger: d.Messenger,
		commenter: d.Commenter,
		reactions: d.Reactions,
		directory: d.Directory,
		ws:        d.WS,
		registry:  d.Registry,
		logger:    d.Logger,
		validate:  newValidator(),
	}
}

// Routes builds the full router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{Registry: s.registry}))
	r.Get("/stats", s.stats)
	r.Get("/stats/connections", s.connections)
	r.Handle("/ws", s.ws)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(s.logRequests, s.trace, s.authenticate)

		r.Route("/notifications", func(r chi.Router) {
			r.Get("/", s.listNotifications)
			r.Get("/unread", s.unreadNotifications)
			r.Post("/read-all", s.readAllNotifications)
			r.Post("/{id}/read", s.readNotification)
			r.Delete("/{id}", s.deleteNotification)
		})

		r.Get("/users/{id}/status", s.userStatus)
		r.Post("/statuses", s.bulkStatus)

		r.Route("/devices", func(r chi.Router) {
			r.Get("/", s.listDevices)
			r.Post("/", s.addDevice)
			r.Delete("/{token}", s.removeDevice)
		})

		r.Get("/conversations", s.conversations)
		r.Get("/conversations/{partnerID}/messages", s.history)
		r.Get("/messages/unread", s.unreadMessages)

		r.Get("/comments", s.listComments)
		r.Get("/comments/stats", s.commentStats)
		r.Get("/comments/{id}/thread", s.thread)

		r.Get("/likes/{userID}", s.likeState)
		r.Get("/favorites", s.listFavorites)
		r.Get("/favorites/count", s.favoriteCount)
		r.Post("/favorites/check", s.checkFavorites)

		r.Route("/admin/notifications", func(r chi.Router) {
			r.Use(s.requireAdmin)
			r.Post("/bulk", s.adminBulk)
			r.Post("/mass", s.adminMass)
			r.Post("/segment", s.adminSegment)
			r.Post("/targeted", s.adminTargeted)
			r.Post("/schedule", s.adminSchedule)
		})
	})
	return r
}

func (s *Server) stats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.hub.Stats())
}

func (s *Server) connections(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.hub.Connections())
}

// Run binds the listener in OnStart so a taken port fails startup, serves in
// the background and drains on OnStop.
func Run(lc fx.Lifecycle, cfg *config.Config, s *Server, logger *slog.Logger) {
	srv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: cfg.HTTP.ReadTimeout,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			ln, err := net.Listen("tcp", srv.Addr)
			if err != nil {
				return err
			}
			logger.Info("HTTP_SERVER_STARTED", slog.String("addr", ln.Addr().String()))
			go func() {
				if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Error("HTTP_SERVER_FAILED", slog.Any("err", err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			timeout := cfg.HTTP.ShutdownTimeout
			if timeout <= 0 {
				timeout = 10 * time.Second
			}
			ctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()
			return srv.Shutdown(ctx)
		},
	})
}
