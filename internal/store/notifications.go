package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/webitel/im-realtime-service/internal/domain/model"
	"gorm.io/gorm"
)

type Notifications struct {
	db *gorm.DB
}

func NewNotifications(db *gorm.DB) *Notifications { return &Notifications{db: db} }

func (s *Notifications) Create(ctx context.Context, n *model.Notification) error {
	return translate(conn(ctx, s.db).Create(n).Error, "create notification")
}

// CreateBatch inserts many records in one statement per batch.
func (s *Notifications) CreateBatch(ctx context.Context, ns []*model.Notification) error {
	if len(ns) == 0 {
		return nil
	}
	return translate(conn(ctx, s.db).CreateInBatches(ns, 100).Error, "create notifications")
}

func (s *Notifications) Get(ctx context.Context, id uuid.UUID) (*model.Notification, error) {
	var n model.Notification
	if err := conn(ctx, s.db).Where("id = ?", id).Take(&n).Error; err != nil {
		return nil, translate(err, "get notification "+id.String())
	}
	return &n, nil
}

// UpdateDelivery overwrites the delivery status block.
func (s *Notifications) UpdateDelivery(ctx context.Context, id uuid.UUID, st model.DeliveryStatus) error {
	err := conn(ctx, s.db).Model(&model.Notification{}).Where("id = ?", id).Updates(map[string]any{
		"delivery_live":         st.Live,
		"delivery_push":         st.Push,
		"delivery_attempted_at": st.AttemptedAt,
		"delivery_push_error":   st.PushError,
	}).Error
	return translate(err, "update delivery")
}

// MarkRead sets the read flag on a notification owned by recipient.
// Marking an already read notification is not an error.
func (s *Notifications) MarkRead(ctx context.Context, id, recipient uuid.UUID, at time.Time) (*model.Notification, error) {
	n, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if n.RecipientID != recipient {
		return nil, translate(gorm.ErrRecordNotFound, "get notification "+id.String())
	}
	if n.Read {
		return n, nil
	}
	err = conn(ctx, s.db).Model(&model.Notification{}).
		Where("id = ? AND read = ?", id, false).
		Updates(map[string]any{"read": true, "read_at": at}).Error
	if err != nil {
		return nil, translate(err, "mark read")
	}
	n.Read, n.ReadAt = true, &at
	return n, nil
}

// MarkAllRead returns how many notifications changed state.
func (s *Notifications) MarkAllRead(ctx context.Context, recipient uuid.UUID, at time.Time) (int64, error) {
	res := conn(ctx, s.db).Model(&model.Notification{}).
		Where("recipient_id = ? AND read = ?", recipient, false).
		Updates(map[string]any{"read": true, "read_at": at})
	return res.RowsAffected, translate(res.Error, "mark all read")
}

func (s *Notifications) Delete(ctx context.Context, id, recipient uuid.UUID) error {
	res := conn(ctx, s.db).Where("id = ? AND recipient_id = ?", id, recipient).Delete(&model.Notification{})
	if res.Error != nil {
		return translate(res.Error, "delete notification")
	}
	if res.RowsAffected == 0 {
		return translate(gorm.ErrRecordNotFound, "delete notification "+id.String())
	}
	return nil
}

// List pages through a recipient's notifications, newest first.
func (s *Notifications) List(ctx context.Context, recipient uuid.UUID, opts model.ListOptions) ([]model.Notification, int64, error) {
	opts = opts.Normalize()
	q := conn(ctx, s.db).Model(&model.Notification{}).Where("recipient_id = ?", recipient)
	if opts.UnreadOnly {
		q = q.Where("read = ?", false)
	}
	if opts.Kind != "" {
		q = q.Where("kind = ?", opts.Kind)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, translate(err, "count notifications")
	}
	var rows []model.Notification
	err := q.Order("created_at DESC").Offset(opts.Offset()).Limit(opts.Limit).Find(&rows).Error
	return rows, total, translate(err, "list notifications")
}

func (s *Notifications) UnreadCount(ctx context.Context, recipient uuid.UUID) (int64, error) {
	var n int64
	err := conn(ctx, s.db).Model(&model.Notification{}).
		Where("recipient_id = ? AND read = ?", recipient, false).Count(&n).Error
	return n, translate(err, "unread count")
}

// PurgeRead deletes read notifications created before the cutoff.
func (s *Notifications) PurgeRead(ctx context.Context, before time.Time) (int64, error) {
	res := conn(ctx, s.db).Where("read = ? AND created_at < ?", true, before).Delete(&model.Notification{})
	return res.RowsAffected, translate(res.Error, "purge notifications")
}
