package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/webitel/im-realtime-service/internal/domain/model"
	"gorm.io/gorm"
)

type Comments struct {
	db *gorm.DB
}

func NewComments(db *gorm.DB) *Comments { return &Comments{db: db} }

// Create inserts a comment; for replies the parent's counter is bumped in the
// same transaction.
func (s *Comments) Create(ctx context.Context, c *model.Comment) error {
	err := conn(ctx, s.db).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(c).Error; err != nil {
			return err
		}
		if c.ParentID == nil {
			return nil
		}
		return tx.Model(&model.Comment{}).Where("id = ?", *c.ParentID).
			UpdateColumn("replies_count", gorm.Expr("replies_count + 1")).Error
	})
	return translate(err, "create comment")
}

func (s *Comments) Get(ctx context.Context, id uuid.UUID) (*model.Comment, error) {
	var c model.Comment
	if err := conn(ctx, s.db).Where("id = ?", id).Take(&c).Error; err != nil {
		return nil, translate(err, "get comment "+id.String())
	}
	return &c, nil
}

func (s *Comments) UpdateContent(ctx context.Context, id uuid.UUID, content string, at time.Time) error {
	err := conn(ctx, s.db).Model(&model.Comment{}).Where("id = ?", id).Updates(map[string]any{
		"content":    content,
		"edited":     true,
		"edited_at":  at,
		"updated_at": at,
	}).Error
	return translate(err, "update comment")
}

// Delete removes the comment and its direct replies and decrements the
// parent's counter when the comment was itself a reply.
func (s *Comments) Delete(ctx context.Context, c *model.Comment) error {
	err := conn(ctx, s.db).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("parent_id = ?", c.ID).Delete(&model.Comment{}).Error; err != nil {
			return err
		}
		if err := tx.Where("id = ?", c.ID).Delete(&model.Comment{}).Error; err != nil {
			return err
		}
		if c.ParentID == nil {
			return nil
		}
		return tx.Model(&model.Comment{}).Where("id = ? AND replies_count > 0", *c.ParentID).
			UpdateColumn("replies_count", gorm.Expr("replies_count - 1")).Error
	})
	return translate(err, "delete comment")
}

// ListByTarget pages through top-level comments on a target, newest first.
func (s *Comments) ListByTarget(ctx context.Context, typ model.TargetType, targetID string, page model.Page) ([]model.Comment, int64, error) {
	q := conn(ctx, s.db).Model(&model.Comment{}).
		Where("target_type = ? AND target_id = ? AND parent_id IS NULL AND approved = ?", typ, targetID, true)

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, translate(err, "count comments")
	}
	var rows []model.Comment
	err := q.Order("created_at DESC").Offset(page.Offset()).Limit(page.Limit).Find(&rows).Error
	return rows, total, translate(err, "list comments")
}

// Replies pages through direct replies, oldest first.
func (s *Comments) Replies(ctx context.Context, parentID uuid.UUID, page model.Page) ([]model.Comment, int64, error) {
	q := conn(ctx, s.db).Model(&model.Comment{}).Where("parent_id = ? AND approved = ?", parentID, true)

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, translate(err, "count replies")
	}
	var rows []model.Comment
	err := q.Order("created_at ASC").Offset(page.Offset()).Limit(page.Limit).Find(&rows).Error
	return rows, total, translate(err, "list replies")
}

func (s *Comments) Stats(ctx context.Context, typ model.TargetType, targetID string) (model.CommentStats, error) {
	var st model.CommentStats
	base := func() *gorm.DB {
		return conn(ctx, s.db).Model(&model.Comment{}).
			Where("target_type = ? AND target_id = ? AND approved = ?", typ, targetID, true)
	}
	if err := base().Count(&st.Total).Error; err != nil {
		return st, translate(err, "comment stats")
	}
	if err := base().Where("parent_id IS NULL").Count(&st.TopLevel).Error; err != nil {
		return st, translate(err, "comment stats")
	}
	st.Replies = st.Total - st.TopLevel
	return st, nil
}
