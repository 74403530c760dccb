package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/webitel/im-realtime-service/internal/domain/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Users is the user directory: profiles and the durable status projection.
type Users struct {
	db *gorm.DB
}

func NewUsers(db *gorm.DB) *Users { return &Users{db: db} }

// Upsert inserts a profile or refreshes its descriptive fields.
func (s *Users) Upsert(ctx context.Context, u *model.User) error {
	err := conn(ctx, s.db).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"username", "display_name", "email", "photo_url", "updated_at"}),
	}).Create(u).Error
	return translate(err, "upsert user")
}

func (s *Users) Get(ctx context.Context, id uuid.UUID) (*model.User, error) {
	var u model.User
	if err := conn(ctx, s.db).Where("id = ?", id).Take(&u).Error; err != nil {
		return nil, translate(err, "get user "+id.String())
	}
	return &u, nil
}

func (s *Users) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	var n int64
	if err := conn(ctx, s.db).Model(&model.User{}).Where("id = ?", id).Count(&n).Error; err != nil {
		return false, translate(err, "count user")
	}
	return n > 0, nil
}

func (s *Users) GetMany(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*model.User, error) {
	out := make(map[uuid.UUID]*model.User, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var rows []model.User
	if err := conn(ctx, s.db).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, translate(err, "get users")
	}
	for i := range rows {
		out[rows[i].ID] = &rows[i]
	}
	return out, nil
}

// UpdateStatus writes the durable projection of a presence transition.
func (s *Users) UpdateStatus(ctx context.Context, id uuid.UUID, status model.PresenceStatus, lastSeen time.Time) error {
	err := conn(ctx, s.db).Model(&model.User{}).Where("id = ?", id).Updates(map[string]any{
		"status":       status,
		"last_seen_at": lastSeen,
	}).Error
	return translate(err, "update status")
}

// ResetStale marks every non-offline row offline except the given live identities.
func (s *Users) ResetStale(ctx context.Context, live []uuid.UUID, now time.Time) (int64, error) {
	q := conn(ctx, s.db).Model(&model.User{}).Where("status <> ?", model.StatusOffline)
	if len(live) > 0 {
		q = q.Where("id NOT IN ?", live)
	}
	res := q.Updates(map[string]any{"status": model.StatusOffline, "last_seen_at": now})
	return res.RowsAffected, translate(res.Error, "reset stale status")
}

// Select resolves recipient criteria into identities.
func (s *Users) Select(ctx context.Context, c model.RecipientCriteria) ([]uuid.UUID, error) {
	q := conn(ctx, s.db).Model(&model.User{})
	if len(c.UserIDs) > 0 {
		q = q.Where("id IN ?", c.UserIDs)
	}
	if len(c.ExcludeIDs) > 0 {
		q = q.Where("id NOT IN ?", c.ExcludeIDs)
	}
	if c.ActiveOnly {
		q = q.Where("active = ?", true)
	}
	if c.Status != "" {
		q = q.Where("status = ?", c.Status)
	}
	if c.CreatedAfter != nil {
		q = q.Where("created_at >= ?", *c.CreatedAfter)
	}
	if c.CreatedBefore != nil {
		q = q.Where("created_at < ?", *c.CreatedBefore)
	}
	if c.SeenAfter != nil {
		q = q.Where("last_seen_at >= ?", *c.SeenAfter)
	}
	if c.SeenBefore != nil {
		q = q.Where("(last_seen_at < ? OR last_seen_at IS NULL)", *c.SeenBefore)
	}
	if c.WithTokens {
		q = q.Where("EXISTS (SELECT 1 FROM device_tokens t WHERE t.user_id = users.id)")
	}

	var rows []model.User
	if err := q.Select("id").Order("id").Find(&rows).Error; err != nil {
		return nil, translate(err, "select recipients")
	}
	out := make([]uuid.UUID, len(rows))
	for i := range rows {
		out[i] = rows[i].ID
	}
	return out, nil
}
