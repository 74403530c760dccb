package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/webitel/im-realtime-service/internal/domain/model"
	"gorm.io/gorm"
)

type Schedules struct {
	db *gorm.DB
}

func NewSchedules(db *gorm.DB) *Schedules { return &Schedules{db: db} }

func (s *Schedules) Create(ctx context.Context, sn *model.ScheduledNotification) error {
	return translate(conn(ctx, s.db).Create(sn).Error, "create schedule")
}

func (s *Schedules) Get(ctx context.Context, id uuid.UUID) (*model.ScheduledNotification, error) {
	var sn model.ScheduledNotification
	if err := conn(ctx, s.db).Where("id = ?", id).Take(&sn).Error; err != nil {
		return nil, translate(err, "get schedule "+id.String())
	}
	return &sn, nil
}

// Due returns pending entries whose due time has passed, oldest first.
func (s *Schedules) Due(ctx context.Context, now time.Time, limit int) ([]model.ScheduledNotification, error) {
	var rows []model.ScheduledNotification
	err := conn(ctx, s.db).
		Where("state = ? AND due_at <= ?", model.SchedulePending, now).
		Order("due_at").Limit(limit).Find(&rows).Error
	return rows, translate(err, "due schedules")
}

// Complete records the outcome of a drained entry. Only pending entries are
// updated, so an entry is never completed twice.
func (s *Schedules) Complete(ctx context.Context, id uuid.UUID, state model.ScheduleState, succeeded, failed int, lastErr string, at time.Time) (bool, error) {
	res := conn(ctx, s.db).Model(&model.ScheduledNotification{}).
		Where("id = ? AND state = ?", id, model.SchedulePending).
		Updates(map[string]any{
			"state":      state,
			"succeeded":  succeeded,
			"failed":     failed,
			"last_error": lastErr,
			"sent_at":    at,
		})
	return res.RowsAffected > 0, translate(res.Error, "complete schedule")
}
