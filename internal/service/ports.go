package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/webitel/im-realtime-service/internal/domain/event"
	"github.com/webitel/im-realtime-service/internal/domain/model"
	"github.com/webitel/im-realtime-service/internal/store"
)

// Durable store contracts consumed by the services. The gorm repositories in
// internal/store satisfy them; tests may substitute their own.

type UserDirectory interface {
	Upsert(ctx context.Context, u *model.User) error
	Get(ctx context.Context, id uuid.UUID) (*model.User, error)
	Exists(ctx context.Context, id uuid.UUID) (bool, error)
	GetMany(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*model.User, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status model.PresenceStatus, lastSeen time.Time) error
	ResetStale(ctx context.Context, live []uuid.UUID, now time.Time) (int64, error)
	Select(ctx context.Context, c model.RecipientCriteria) ([]uuid.UUID, error)
}

type TokenStore interface {
	Add(ctx context.Context, userID uuid.UUID, token, device string) error
	Remove(ctx context.Context, userID uuid.UUID, token string) error
	Invalidate(ctx context.Context, userID uuid.UUID, tokens []string) (int64, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]model.DeviceToken, error)
	ListByUsers(ctx context.Context, userIDs []uuid.UUID) ([]model.DeviceToken, error)
}

type NotificationStore interface {
	Create(ctx context.Context, n *model.Notification) error
	Get(ctx context.Context, id uuid.UUID) (*model.Notification, error)
	UpdateDelivery(ctx context.Context, id uuid.UUID, st model.DeliveryStatus) error
	MarkRead(ctx context.Context, id, recipient uuid.UUID, at time.Time) (*model.Notification, error)
	MarkAllRead(ctx context.Context, recipient uuid.UUID, at time.Time) (int64, error)
	Delete(ctx context.Context, id, recipient uuid.UUID) error
	List(ctx context.Context, recipient uuid.UUID, opts model.ListOptions) ([]model.Notification, int64, error)
	UnreadCount(ctx context.Context, recipient uuid.UUID) (int64, error)
	PurgeRead(ctx context.Context, before time.Time) (int64, error)
}

type ScheduleStore interface {
	Create(ctx context.Context, sn *model.ScheduledNotification) error
	Get(ctx context.Context, id uuid.UUID) (*model.ScheduledNotification, error)
	Due(ctx context.Context, now time.Time, limit int) ([]model.ScheduledNotification, error)
	Complete(ctx context.Context, id uuid.UUID, state model.ScheduleState, succeeded, failed int, lastErr string, at time.Time) (bool, error)
}

type MessageStore interface {
	Create(ctx context.Context, m *model.Message) error
	Get(ctx context.Context, id uuid.UUID) (*model.Message, error)
	UpdateContent(ctx context.Context, id uuid.UUID, content string, at time.Time) error
	SoftDelete(ctx context.Context, id uuid.UUID, at time.Time) error
	MarkRead(ctx context.Context, id uuid.UUID, at time.Time) error
	MarkConversationRead(ctx context.Context, reader, partner uuid.UUID, at time.Time) ([]uuid.UUID, error)
	History(ctx context.Context, a, b uuid.UUID, postID string, page model.Page) ([]model.Message, int64, error)
	Partners(ctx context.Context, userID uuid.UUID, limit int) ([]uuid.UUID, error)
	Conversations(ctx context.Context, userID uuid.UUID, limit int) ([]model.ConversationSummary, error)
	UnreadCount(ctx context.Context, userID uuid.UUID) (int64, error)
}

type CommentStore interface {
	Create(ctx context.Context, c *model.Comment) error
	Get(ctx context.Context, id uuid.UUID) (*model.Comment, error)
	UpdateContent(ctx context.Context, id uuid.UUID, content string, at time.Time) error
	Delete(ctx context.Context, c *model.Comment) error
	ListByTarget(ctx context.Context, typ model.TargetType, targetID string, page model.Page) ([]model.Comment, int64, error)
	Replies(ctx context.Context, parentID uuid.UUID, page model.Page) ([]model.Comment, int64, error)
	Stats(ctx context.Context, typ model.TargetType, targetID string) (model.CommentStats, error)
}

type ReactionStore interface {
	UpsertLike(ctx context.Context, l *model.Like) error
	DeleteLike(ctx context.Context, liker, liked uuid.UUID) error
	GetLike(ctx context.Context, liker, liked uuid.UUID) (*model.Like, error)
	AddFavorite(ctx context.Context, f *model.Favorite) error
	RemoveFavorite(ctx context.Context, userID uuid.UUID, typ model.TargetType, targetID string) error
	IsFavorite(ctx context.Context, userID uuid.UUID, typ model.TargetType, targetID string) (bool, error)
	ListFavorites(ctx context.Context, userID uuid.UUID, typ model.TargetType, page model.Page) ([]model.Favorite, int64, error)
	FavoriteTargets(ctx context.Context, userID uuid.UUID, typ model.TargetType, ids []string) (map[string]bool, error)
	FavoriteCount(ctx context.Context, typ model.TargetType, targetID string) (int64, error)
}

// Exporter re-publishes domain events to the message bus.
type Exporter interface {
	Export(ctx context.Context, ev event.Eventer) error
}

type noopExporter struct{}

func (noopExporter) Export(context.Context, event.Eventer) error { return nil }

// NoopExporter is used when the bus is disabled.
var NoopExporter Exporter = noopExporter{}

// Interface guards
var (
	_ UserDirectory     = (*store.Users)(nil)
	_ TokenStore        = (*store.Tokens)(nil)
	_ NotificationStore = (*store.Notifications)(nil)
	_ ScheduleStore     = (*store.Schedules)(nil)
	_ MessageStore      = (*store.Messages)(nil)
	_ CommentStore      = (*store.Comments)(nil)
	_ ReactionStore     = (*store.Reactions)(nil)
)
