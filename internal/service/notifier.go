package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/webitel/im-realtime-service/internal/domain/event"
	"github.com/webitel/im-realtime-service/internal/domain/model"
	"github.com/webitel/im-realtime-service/internal/domain/registry"
	"github.com/webitel/im-realtime-service/internal/metrics"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// NotifyRequest is one notification addressed to one recipient.
type NotifyRequest struct {
	RecipientID uuid.UUID
	model.NotificationTemplate
}

// NotifierConfig tunes bulk fan-out and retention.
type NotifierConfig struct {
	BatchSize     int
	Concurrency   int
	PreviewLength int
	// AsyncTimeout bounds a detached notification started by NotifyAsync.
	AsyncTimeout time.Duration
}

// Notifier is the notification dispatch engine: it records notifications,
// routes them to live connections and falls back to push.
type Notifier struct {
	notifications NotificationStore
	schedules     ScheduleStore
	users         UserDirectory
	tokens        TokenStore
	hub           registry.Hubber
	router        *Router
	fallback      *Fallback
	profiles      Profiles
	exporter      Exporter
	metrics       *metrics.Metrics
	logger        *slog.Logger
	validate      *validator.Validate
	cfg           NotifierConfig
	clock         func() time.Time

	// mu guards stopped and every wg.Add, so Go never races Wait.
	mu      sync.Mutex
	stopped bool
	wg      sync.WaitGroup
}

type NotifierDeps struct {
	Notifications NotificationStore
	Schedules     ScheduleStore
	Users         UserDirectory
	Tokens        TokenStore
	Hub           registry.Hubber
	Router        *Router
	Fallback      *Fallback
	Profiles      Profiles
	Exporter      Exporter
	Metrics       *metrics.Metrics
	Logger        *slog.Logger
}

func NewNotifier(d NotifierDeps, cfg NotifierConfig) *Notifier {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 8
	}
	if cfg.PreviewLength <= 0 {
		cfg.PreviewLength = 100
	}
	if cfg.AsyncTimeout <= 0 {
		cfg.AsyncTimeout = 30 * time.Second
	}
	exporter := d.Exporter
	if exporter == nil {
		exporter = NoopExporter
	}
	return &Notifier{
		notifications: d.Notifications,
		schedules:     d.Schedules,
		users:         d.Users,
		tokens:        d.Tokens,
		hub:           d.Hub,
		router:        d.Router,
		fallback:      d.Fallback,
		profiles:      d.Profiles,
		exporter:      exporter,
		metrics:       d.Metrics,
		logger:        d.Logger,
		validate:      validator.New(),
		cfg:           cfg,
		clock:         time.Now,
	}
}

// Notify records one notification and delivers it live or through push.
//
// Interaction kinds are suppressed when the actor is the recipient: the call
// returns (nil, nil) and nothing is recorded or delivered.
func (s *Notifier) Notify(ctx context.Context, req NotifyRequest) (*model.Notification, error) {
	if req.RecipientID == uuid.Nil {
		return nil, fmt.Errorf("notify: empty recipient: %w", model.ErrInvalidArgument)
	}
	if err := s.validateTemplate(req.NotificationTemplate); err != nil {
		return nil, err
	}
	if req.Kind.Interaction() && req.SenderID != nil && *req.SenderID == req.RecipientID {
		return nil, nil
	}

	ctx, span := tracer.Start(ctx, "notifier.notify")
	defer span.End()
	span.SetAttributes(
		attribute.String("notification.kind", string(req.Kind)),
		attribute.String("notification.recipient", req.RecipientID.String()),
	)

	n := s.newRecord(req.RecipientID, req.NotificationTemplate)
	if err := s.notifications.Create(ctx, n); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "persist")
		return nil, fmt.Errorf("persist notification: %w", err)
	}

	s.deliver(ctx, n)
	return n, nil
}

// deliver routes n to the recipient's personal channel and falls back to push
// when no live connection accepted it.
func (s *Notifier) deliver(ctx context.Context, n *model.Notification) {
	ev := event.NewNotificationEvent(n)

	out, err := s.router.Route(ctx, ev)
	if err != nil {
		s.logger.Warn("NOTIFICATION_ROUTE_FAILED",
			slog.String("notification_id", n.ID.String()),
			slog.Any("err", err),
		)
	}

	if out.Delivered {
		now := s.clock().UTC()
		n.Delivery.Live = true
		n.Delivery.AttemptedAt = &now
		if err := s.notifications.UpdateDelivery(ctx, n.ID, n.Delivery); err != nil {
			s.logger.Error("DELIVERY_STATUS_PERSIST_FAILED",
				slog.String("notification_id", n.ID.String()),
				slog.Any("err", err),
			)
		}
		s.metrics.Notified(string(n.Kind), "live")
	} else {
		s.fallback.PersistAndFallback(ctx, n.RecipientID, n)
	}

	if err := s.exporter.Export(ctx, ev); err != nil {
		s.logger.Warn("NOTIFICATION_EXPORT_FAILED",
			slog.String("notification_id", n.ID.String()),
			slog.Any("err", err),
		)
	}
}

// NotifyAsync runs Notify detached from the caller's cancellation. The domain
// action that triggered it has already succeeded, so failures are only logged.
func (s *Notifier) NotifyAsync(ctx context.Context, req NotifyRequest) {
	s.Go(ctx, func(ctx context.Context) {
		if _, err := s.Notify(ctx, req); err != nil {
			s.logger.Error("NOTIFY_ASYNC_FAILED",
				slog.String("kind", string(req.Kind)),
				slog.String("recipient", req.RecipientID.String()),
				slog.Any("err", err),
			)
		}
	})
}

// NotifyFrom resolves the actor's profile, builds the request and sends it in
// the background.
func (s *Notifier) NotifyFrom(ctx context.Context, actorID uuid.UUID, build func(actor *model.User) NotifyRequest) {
	s.Go(ctx, func(ctx context.Context) {
		actor, err := s.profiles.Resolve(ctx, actorID)
		if err != nil || actor == nil {
			// texts fall back to a generic name
			actor = &model.User{ID: actorID}
		}
		req := build(actor)
		if _, err := s.Notify(ctx, req); err != nil {
			s.logger.Error("NOTIFY_ASYNC_FAILED",
				slog.String("kind", string(req.Kind)),
				slog.String("recipient", req.RecipientID.String()),
				slog.Any("err", err),
			)
		}
	})
}

// Go runs fn on a context detached from ctx's cancellation and bounded by
// the async timeout. Once Shutdown has started fn is dropped and Go reports
// false.
func (s *Notifier) Go(ctx context.Context, fn func(ctx context.Context)) bool {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		s.logger.Warn("NOTIFY_ASYNC_REJECTED", slog.String("reason", "shutting down"))
		return false
	}
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		detached, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.AsyncTimeout)
		defer cancel()
		fn(detached)
	}()
	return true
}

// Wait blocks until every background notification started so far has
// finished. Callers must not start new ones concurrently; use Shutdown when
// other goroutines may still call Go.
func (s *Notifier) Wait() {
	s.wg.Wait()
}

// Shutdown rejects further background work and waits for the running
// notifications. Safe to call more than once.
func (s *Notifier) Shutdown() {
	s.mu.Lock()
	s.stopped = true
	s.mu.Unlock()
	s.wg.Wait()
}

func (s *Notifier) newRecord(recipient uuid.UUID, t model.NotificationTemplate) *model.Notification {
	priority := t.Priority
	if priority == "" {
		priority = model.PriorityNormal
	}
	var sender *uuid.UUID
	if t.SenderID != nil && *t.SenderID != uuid.Nil {
		id := *t.SenderID
		sender = &id
	}
	return &model.Notification{
		ID:          uuid.New(),
		RecipientID: recipient,
		SenderID:    sender,
		Kind:        t.Kind,
		Title:       t.Title,
		Body:        t.Body,
		Data:        t.Data,
		ActionURL:   t.ActionURL,
		Priority:    priority,
		CreatedAt:   s.clock().UTC(),
	}
}

func (s *Notifier) validateTemplate(t model.NotificationTemplate) error {
	if err := s.validate.Struct(t); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return fmt.Errorf("notification %s: %w", verrs[0].Field(), model.ErrInvalidArgument)
		}
		return fmt.Errorf("notification: %w", model.ErrInvalidArgument)
	}
	return nil
}

// MarkRead is idempotent; it reports NotFound when the notification is not
// owned by recipient.
func (s *Notifier) MarkRead(ctx context.Context, id, recipient uuid.UUID) (*model.Notification, error) {
	return s.notifications.MarkRead(ctx, id, recipient, s.clock().UTC())
}

// MarkAllRead returns how many notifications changed state.
func (s *Notifier) MarkAllRead(ctx context.Context, recipient uuid.UUID) (int64, error) {
	return s.notifications.MarkAllRead(ctx, recipient, s.clock().UTC())
}

func (s *Notifier) Delete(ctx context.Context, id, recipient uuid.UUID) error {
	return s.notifications.Delete(ctx, id, recipient)
}

// NotificationPage is one page of a recipient's notifications.
type NotificationPage struct {
	Notifications []model.Notification `json:"notifications"`
	UnreadCount   int64                `json:"unread_count"`
	Pagination    model.Pagination     `json:"pagination"`
}

func (s *Notifier) List(ctx context.Context, recipient uuid.UUID, opts model.ListOptions) (*NotificationPage, error) {
	opts = opts.Normalize()
	items, total, err := s.notifications.List(ctx, recipient, opts)
	if err != nil {
		return nil, err
	}
	unread, err := s.notifications.UnreadCount(ctx, recipient)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []model.Notification{}
	}
	return &NotificationPage{
		Notifications: items,
		UnreadCount:   unread,
		Pagination:    model.NewPagination(total, model.Page{Page: opts.Page, Limit: opts.Limit}),
	}, nil
}

func (s *Notifier) UnreadCount(ctx context.Context, recipient uuid.UUID) (int64, error) {
	return s.notifications.UnreadCount(ctx, recipient)
}

// PurgeOld deletes read notifications older than olderThan. Unread ones are kept.
func (s *Notifier) PurgeOld(ctx context.Context, olderThan time.Duration) (int64, error) {
	n, err := s.notifications.PurgeRead(ctx, s.clock().UTC().Add(-olderThan))
	if err != nil {
		return 0, fmt.Errorf("purge notifications: %w", err)
	}
	s.logger.Info("NOTIFICATIONS_PURGED", slog.Int64("deleted", n))
	return n, nil
}
