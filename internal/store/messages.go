package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/webitel/im-realtime-service/internal/domain/model"
	"gorm.io/gorm"
)

type Messages struct {
	db *gorm.DB
}

func NewMessages(db *gorm.DB) *Messages { return &Messages{db: db} }

func (s *Messages) Create(ctx context.Context, m *model.Message) error {
	return translate(conn(ctx, s.db).Create(m).Error, "create message")
}

// Get returns a message that is not soft-deleted.
func (s *Messages) Get(ctx context.Context, id uuid.UUID) (*model.Message, error) {
	var m model.Message
	if err := conn(ctx, s.db).Where("id = ? AND deleted = ?", id, false).Take(&m).Error; err != nil {
		return nil, translate(err, "get message "+id.String())
	}
	return &m, nil
}

func (s *Messages) UpdateContent(ctx context.Context, id uuid.UUID, content string, at time.Time) error {
	err := conn(ctx, s.db).Model(&model.Message{}).Where("id = ?", id).Updates(map[string]any{
		"content":    content,
		"edited":     true,
		"edited_at":  at,
		"updated_at": at,
	}).Error
	return translate(err, "update message")
}

func (s *Messages) SoftDelete(ctx context.Context, id uuid.UUID, at time.Time) error {
	err := conn(ctx, s.db).Model(&model.Message{}).Where("id = ?", id).Updates(map[string]any{
		"deleted":    true,
		"deleted_at": at,
		"updated_at": at,
	}).Error
	return translate(err, "delete message")
}

func (s *Messages) MarkRead(ctx context.Context, id uuid.UUID, at time.Time) error {
	err := conn(ctx, s.db).Model(&model.Message{}).
		Where("id = ? AND read = ?", id, false).
		Updates(map[string]any{"read": true, "read_at": at}).Error
	return translate(err, "mark message read")
}

// MarkConversationRead marks everything partner sent to reader as read and
// returns the ids that changed.
func (s *Messages) MarkConversationRead(ctx context.Context, reader, partner uuid.UUID, at time.Time) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := conn(ctx, s.db).Transaction(func(tx *gorm.DB) error {
		var rows []model.Message
		if err := tx.Select("id").
			Where("sender_id = ? AND receiver_id = ? AND read = ? AND deleted = ?", partner, reader, false, false).
			Find(&rows).Error; err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		ids = make([]uuid.UUID, len(rows))
		for i := range rows {
			ids[i] = rows[i].ID
		}
		return tx.Model(&model.Message{}).Where("id IN ?", ids).
			Updates(map[string]any{"read": true, "read_at": at}).Error
	})
	return ids, translate(err, "mark conversation read")
}

// History pages through a conversation, oldest first.
func (s *Messages) History(ctx context.Context, a, b uuid.UUID, postID string, page model.Page) ([]model.Message, int64, error) {
	q := conn(ctx, s.db).Model(&model.Message{}).
		Where("((sender_id = ? AND receiver_id = ?) OR (sender_id = ? AND receiver_id = ?)) AND deleted = ?", a, b, b, a, false)
	if postID != "" {
		q = q.Where("post_id = ?", postID)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, translate(err, "count history")
	}
	var rows []model.Message
	err := q.Order("created_at ASC").Offset(page.Offset()).Limit(page.Limit).Find(&rows).Error
	return rows, total, translate(err, "history")
}

// Partners lists the identities userID exchanged messages with, most recent first.
func (s *Messages) Partners(ctx context.Context, userID uuid.UUID, limit int) ([]uuid.UUID, error) {
	var raw []string
	err := conn(ctx, s.db).Raw(`
		SELECT partner_id FROM (
			SELECT CASE WHEN sender_id = @u THEN receiver_id ELSE sender_id END AS partner_id,
			       MAX(created_at) AS last_at
			FROM messages
			WHERE (sender_id = @u OR receiver_id = @u) AND deleted = false
			GROUP BY partner_id
		) ORDER BY last_at DESC LIMIT @n`,
		sql.Named("u", userID), sql.Named("n", limit),
	).Scan(&raw).Error
	if err != nil {
		return nil, translate(err, "partners")
	}
	out := make([]uuid.UUID, 0, len(raw))
	for _, v := range raw {
		if id, err := uuid.Parse(v); err == nil {
			out = append(out, id)
		}
	}
	return out, nil
}

// Conversations returns the latest message and unread count per partner.
func (s *Messages) Conversations(ctx context.Context, userID uuid.UUID, limit int) ([]model.ConversationSummary, error) {
	partners, err := s.Partners(ctx, userID, limit)
	if err != nil {
		return nil, err
	}

	out := make([]model.ConversationSummary, 0, len(partners))
	for _, p := range partners {
		var last model.Message
		err := conn(ctx, s.db).
			Where("((sender_id = ? AND receiver_id = ?) OR (sender_id = ? AND receiver_id = ?)) AND deleted = ?", userID, p, p, userID, false).
			Order("created_at DESC").Take(&last).Error
		if err != nil {
			return nil, translate(err, "last message")
		}
		var unread int64
		err = conn(ctx, s.db).Model(&model.Message{}).
			Where("sender_id = ? AND receiver_id = ? AND read = ? AND deleted = ?", p, userID, false, false).
			Count(&unread).Error
		if err != nil {
			return nil, translate(err, "unread messages")
		}
		out = append(out, model.ConversationSummary{PartnerID: p, LastMessage: last, UnreadCount: unread})
	}
	return out, nil
}

func (s *Messages) UnreadCount(ctx context.Context, userID uuid.UUID) (int64, error) {
	var n int64
	err := conn(ctx, s.db).Model(&model.Message{}).
		Where("receiver_id = ? AND read = ? AND deleted = ?", userID, false, false).Count(&n).Error
	return n, translate(err, "unread messages")
}
