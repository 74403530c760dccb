package store

import (
	"context"

	"github.com/google/uuid"
	"github.com/webitel/im-realtime-service/internal/domain/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Reactions stores identity likes and content favorites.
type Reactions struct {
	db *gorm.DB
}

func NewReactions(db *gorm.DB) *Reactions { return &Reactions{db: db} }

// UpsertLike records liker's verdict, replacing an earlier one.
func (s *Reactions) UpsertLike(ctx context.Context, l *model.Like) error {
	err := conn(ctx, s.db).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "liker_id"}, {Name: "liked_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"status", "updated_at"}),
	}).Create(l).Error
	return translate(err, "upsert like")
}

func (s *Reactions) DeleteLike(ctx context.Context, liker, liked uuid.UUID) error {
	res := conn(ctx, s.db).Where("liker_id = ? AND liked_id = ?", liker, liked).Delete(&model.Like{})
	if res.Error != nil {
		return translate(res.Error, "delete like")
	}
	if res.RowsAffected == 0 {
		return translate(gorm.ErrRecordNotFound, "delete like")
	}
	return nil
}

// GetLike returns nil without error when no verdict exists.
func (s *Reactions) GetLike(ctx context.Context, liker, liked uuid.UUID) (*model.Like, error) {
	var rows []model.Like
	if err := conn(ctx, s.db).Where("liker_id = ? AND liked_id = ?", liker, liked).Limit(1).Find(&rows).Error; err != nil {
		return nil, translate(err, "get like")
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

func (s *Reactions) AddFavorite(ctx context.Context, f *model.Favorite) error {
	return translate(conn(ctx, s.db).Create(f).Error, "add favorite")
}

func (s *Reactions) RemoveFavorite(ctx context.Context, userID uuid.UUID, typ model.TargetType, targetID string) error {
	res := conn(ctx, s.db).
		Where("user_id = ? AND target_type = ? AND target_id = ?", userID, typ, targetID).
		Delete(&model.Favorite{})
	if res.Error != nil {
		return translate(res.Error, "remove favorite")
	}
	if res.RowsAffected == 0 {
		return translate(gorm.ErrRecordNotFound, "remove favorite")
	}
	return nil
}

func (s *Reactions) IsFavorite(ctx context.Context, userID uuid.UUID, typ model.TargetType, targetID string) (bool, error) {
	var n int64
	err := conn(ctx, s.db).Model(&model.Favorite{}).
		Where("user_id = ? AND target_type = ? AND target_id = ?", userID, typ, targetID).Count(&n).Error
	return n > 0, translate(err, "is favorite")
}

// ListFavorites pages through a user's favorites, newest first. An empty typ lists all.
func (s *Reactions) ListFavorites(ctx context.Context, userID uuid.UUID, typ model.TargetType, page model.Page) ([]model.Favorite, int64, error) {
	q := conn(ctx, s.db).Model(&model.Favorite{}).Where("user_id = ?", userID)
	if typ != "" {
		q = q.Where("target_type = ?", typ)
	}
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, translate(err, "count favorites")
	}
	var rows []model.Favorite
	err := q.Order("created_at DESC").Offset(page.Offset()).Limit(page.Limit).Find(&rows).Error
	return rows, total, translate(err, "list favorites")
}

// FavoriteTargets returns the subset of target ids of one type the user favorited.
func (s *Reactions) FavoriteTargets(ctx context.Context, userID uuid.UUID, typ model.TargetType, ids []string) (map[string]bool, error) {
	out := make(map[string]bool, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var rows []model.Favorite
	err := conn(ctx, s.db).Select("target_id").
		Where("user_id = ? AND target_type = ? AND target_id IN ?", userID, typ, ids).Find(&rows).Error
	if err != nil {
		return nil, translate(err, "check favorites")
	}
	for _, r := range rows {
		out[r.TargetID] = true
	}
	return out, nil
}

func (s *Reactions) FavoriteCount(ctx context.Context, typ model.TargetType, targetID string) (int64, error) {
	var n int64
	err := conn(ctx, s.db).Model(&model.Favorite{}).
		Where("target_type = ? AND target_id = ?", typ, targetID).Count(&n).Error
	return n, translate(err, "count favorite")
}
