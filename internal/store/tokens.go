package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/webitel/im-realtime-service/internal/domain/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Tokens struct {
	db *gorm.DB
}

func NewTokens(db *gorm.DB) *Tokens { return &Tokens{db: db} }

// Add registers a device token; re-adding refreshes its device label.
func (s *Tokens) Add(ctx context.Context, userID uuid.UUID, token, device string) error {
	t := &model.DeviceToken{UserID: userID, Token: token, Device: device, CreatedAt: time.Now().UTC()}
	err := conn(ctx, s.db).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "token"}},
		DoUpdates: clause.AssignmentColumns([]string{"device"}),
	}).Create(t).Error
	return translate(err, "add token")
}

// Remove deletes one of the owner's tokens.
func (s *Tokens) Remove(ctx context.Context, userID uuid.UUID, token string) error {
	res := conn(ctx, s.db).Where("user_id = ? AND token = ?", userID, token).Delete(&model.DeviceToken{})
	if res.Error != nil {
		return translate(res.Error, "remove token")
	}
	if res.RowsAffected == 0 {
		return translate(gorm.ErrRecordNotFound, "remove token")
	}
	return nil
}

// Invalidate drops tokens the push provider reported as permanently invalid.
func (s *Tokens) Invalidate(ctx context.Context, userID uuid.UUID, tokens []string) (int64, error) {
	if len(tokens) == 0 {
		return 0, nil
	}
	res := conn(ctx, s.db).Where("user_id = ? AND token IN ?", userID, tokens).Delete(&model.DeviceToken{})
	return res.RowsAffected, translate(res.Error, "invalidate tokens")
}

func (s *Tokens) ListByUser(ctx context.Context, userID uuid.UUID) ([]model.DeviceToken, error) {
	var rows []model.DeviceToken
	err := conn(ctx, s.db).Where("user_id = ?", userID).Order("created_at").Find(&rows).Error
	return rows, translate(err, "list tokens")
}

func (s *Tokens) ListByUsers(ctx context.Context, userIDs []uuid.UUID) ([]model.DeviceToken, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}
	var rows []model.DeviceToken
	err := conn(ctx, s.db).Where("user_id IN ?", userIDs).Order("user_id, created_at").Find(&rows).Error
	return rows, translate(err, "list tokens")
}
