package amqp

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/webitel/im-realtime-service/internal/adapter/pubsub"
	"github.com/webitel/im-realtime-service/internal/domain/model"
	"github.com/webitel/im-realtime-service/internal/metrics"
	"github.com/webitel/im-realtime-service/internal/service"
)

const (
	// ------------------- EXCHANGES (SOURCES) -------------------
	SocialEventsExchange = "im_social.events"

	// ------------------- TOPICS (ROUTING KEYS) -----------------
	TopicPostLiked       = "im_social.#.post.liked.v1"
	TopicPostShared      = "im_social.#.post.shared.v1"
	TopicPostInteraction = "im_social.#.post.interaction.v1"
	TopicUserMentioned   = "im_social.#.user.mentioned.v1"

	// ------------------- QUEUES (CONSUMERS) --------------------
	// Queues are shared by every node: each social event is persisted as
	// exactly one notification, whichever node consumes it.
	NotifyProcessorQueue = "im-realtime.social-processor.v1"
	NotifyPoisonTopic    = "im-realtime.social-processor.v1.poison"
)

// Notifier is the part of the notification service fed by the bus.
type Notifier interface {
	Notify(ctx context.Context, req service.NotifyRequest) (*model.Notification, error)
}

type SocialHandler struct {
	notifier   Notifier
	profiles   service.Profiles
	dispatcher pubsub.EventDispatcher
	metrics    *metrics.Metrics
	validate   *validator.Validate
	logger     *slog.Logger
}

func NewSocialHandler(notifier *service.Notifier, profiles service.Profiles, dispatcher pubsub.EventDispatcher, m *metrics.Metrics, logger *slog.Logger) *SocialHandler {
	return newSocialHandler(notifier, profiles, dispatcher, m, logger)
}

func newSocialHandler(notifier Notifier, profiles service.Profiles, dispatcher pubsub.EventDispatcher, m *metrics.Metrics, logger *slog.Logger) *SocialHandler {
	return &SocialHandler{
		notifier:   notifier,
		profiles:   profiles,
		dispatcher: dispatcher,
		metrics:    m,
		validate:   validator.New(),
		logger:     logger,
	}
}

func NewWatermillRouter(logger watermill.LoggerAdapter) (*message.Router, error) {
	return message.NewRouter(message.RouterConfig{CloseTimeout: 15 * time.Second}, logger)
}

// [REGISTRATION_PIPELINE]
func (h *SocialHandler) RegisterHandlers(router *message.Router, subProvider *pubsub.SubscriberProvider) error {
	poison, err := middleware.PoisonQueue(h.dispatcher.Publisher(), NotifyPoisonTopic)
	if err != nil {
		return fmt.Errorf("POISON_SETUP_FAILED: %w", err)
	}

	configs := []struct {
		name     string
		exchange string
		topic    string
		handler  message.NoPublishHandlerFunc
	}{
		{"ON_POST_LIKED", SocialEventsExchange, TopicPostLiked, Bind(h, "ON_POST_LIKED", h.OnPostLikedV1)},
		{"ON_POST_SHARED", SocialEventsExchange, TopicPostShared, Bind(h, "ON_POST_SHARED", h.OnPostSharedV1)},
		{"ON_POST_INTERACTION", SocialEventsExchange, TopicPostInteraction, Bind(h, "ON_POST_INTERACTION", h.OnPostInteractionV1)},
		{"ON_USER_MENTIONED", SocialEventsExchange, TopicUserMentioned, Bind(h, "ON_USER_MENTIONED", h.OnUserMentionedV1)},
	}

	for _, c := range configs {
		// Format: im-realtime.social-processor.v1.ON_POST_LIKED
		handlerQueue := fmt.Sprintf("%s.%s", NotifyProcessorQueue, c.name)

		sub, err := subProvider.Build(handlerQueue, c.exchange, c.topic)
		if err != nil {
			return err
		}

		router.AddConsumerHandler(c.name, c.topic, sub, c.handler).AddMiddleware(
			TraceMiddleware,
			LoggingMiddleware(h.logger),
			NewRetryMiddleware(h.logger).Middleware,
			poison,
			middleware.NewThrottle(100, time.Second).Middleware,
			middleware.Timeout(time.Second*30),
		)
	}

	h.logger.Info("AMQP_PIPELINE_READY", slog.String("queue", NotifyProcessorQueue), slog.Int("handlers", len(configs)))
	return nil
}
