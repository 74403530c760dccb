package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/webitel/im-realtime-service/internal/adapter/push"
	"github.com/webitel/im-realtime-service/internal/domain/model"
	"golang.org/x/sync/errgroup"
)

const (
	activeWindow   = 7 * 24 * time.Hour
	inactiveWindow = 30 * 24 * time.Hour
	newUserWindow  = 7 * 24 * time.Hour

	dueBatch = 50
)

// BulkResult counts per-recipient outcomes of a fan-out. Partial failure is
// reported here and never as an error.
type BulkResult struct {
	Total     int `json:"total"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
}

// MassOptions narrows a send to every known identity.
type MassOptions struct {
	ExcludeIDs []uuid.UUID
	ActiveOnly bool
}

// NotifyMany sends the same template to every recipient, in batches of
// BatchSize with at most Concurrency sends in flight.
func (s *Notifier) NotifyMany(ctx context.Context, recipients []uuid.UUID, t model.NotificationTemplate) (BulkResult, error) {
	if err := s.validateTemplate(t); err != nil {
		return BulkResult{}, err
	}

	ids := lo.Uniq(lo.Filter(recipients, func(id uuid.UUID, _ int) bool { return id != uuid.Nil }))
	res := BulkResult{Total: len(ids)}
	if len(ids) == 0 {
		return res, nil
	}

	ctx, span := tracer.Start(ctx, "notifier.notify_many")
	defer span.End()

	var succeeded, failed atomic.Int64
	for _, batch := range lo.Chunk(ids, s.cfg.BatchSize) {
		g, gCtx := errgroup.WithContext(ctx)
		g.SetLimit(s.cfg.Concurrency)

		for _, id := range batch {
			g.Go(func() error {
				if _, err := s.Notify(gCtx, NotifyRequest{RecipientID: id, NotificationTemplate: t}); err != nil {
					failed.Add(1)
					s.logger.Warn("BULK_NOTIFY_RECIPIENT_FAILED",
						slog.String("recipient", id.String()),
						slog.Any("err", err),
					)
					return nil
				}
				succeeded.Add(1)
				return nil
			})
		}
		_ = g.Wait()
	}

	res.Succeeded = int(succeeded.Load())
	res.Failed = int(failed.Load())
	s.logger.Info("BULK_NOTIFY_COMPLETED",
		slog.String("kind", string(t.Kind)),
		slog.Int("total", res.Total),
		slog.Int("succeeded", res.Succeeded),
		slog.Int("failed", res.Failed),
	)
	return res, nil
}

// NotifyAll sends t to every known identity.
func (s *Notifier) NotifyAll(ctx context.Context, t model.NotificationTemplate, opts MassOptions) (BulkResult, error) {
	return s.NotifyTargeted(ctx, model.RecipientCriteria{
		ExcludeIDs: opts.ExcludeIDs,
		ActiveOnly: opts.ActiveOnly,
	}, t)
}

// NotifySegment resolves a symbolic segment once, at dispatch time.
func (s *Notifier) NotifySegment(ctx context.Context, segment model.Segment, t model.NotificationTemplate) (BulkResult, error) {
	now := s.clock().UTC()

	switch segment {
	case model.SegmentOnline:
		if err := s.validateTemplate(t); err != nil {
			return BulkResult{}, err
		}
		return s.NotifyMany(ctx, s.hub.Presence().Online(), t)
	case model.SegmentActive:
		after := now.Add(-activeWindow)
		return s.NotifyTargeted(ctx, model.RecipientCriteria{ActiveOnly: true, SeenAfter: &after}, t)
	case model.SegmentInactive:
		before := now.Add(-inactiveWindow)
		return s.NotifyTargeted(ctx, model.RecipientCriteria{SeenBefore: &before}, t)
	case model.SegmentNew:
		after := now.Add(-newUserWindow)
		return s.NotifyTargeted(ctx, model.RecipientCriteria{CreatedAfter: &after}, t)
	}
	return BulkResult{}, fmt.Errorf("segment %q: %w", segment, model.ErrInvalidArgument)
}

// NotifyTargeted sends t to the identities matching c.
func (s *Notifier) NotifyTargeted(ctx context.Context, c model.RecipientCriteria, t model.NotificationTemplate) (BulkResult, error) {
	if err := s.validateTemplate(t); err != nil {
		return BulkResult{}, err
	}
	ids, err := s.users.Select(ctx, c)
	if err != nil {
		return BulkResult{}, fmt.Errorf("select recipients: %w", err)
	}
	return s.NotifyMany(ctx, ids, t)
}

// PushAll is a push-only mass send: no records, no live delivery. Tokens are
// multicast at the gateway's batch maximum and rejected tokens are pruned.
func (s *Notifier) PushAll(ctx context.Context, t model.NotificationTemplate, opts MassOptions) (DeliveryResult, error) {
	if err := s.validateTemplate(t); err != nil {
		return DeliveryResult{}, err
	}
	ids, err := s.users.Select(ctx, model.RecipientCriteria{
		ExcludeIDs: opts.ExcludeIDs,
		ActiveOnly: opts.ActiveOnly,
		WithTokens: true,
	})
	if err != nil {
		return DeliveryResult{}, fmt.Errorf("select recipients: %w", err)
	}
	if len(ids) == 0 {
		return DeliveryResult{}, nil
	}
	tokens, err := s.tokens.ListByUsers(ctx, ids)
	if err != nil {
		return DeliveryResult{}, fmt.Errorf("list device tokens: %w", err)
	}

	byOwner := make(map[uuid.UUID][]string, len(ids))
	for _, tok := range tokens {
		byOwner[tok.UserID] = append(byOwner[tok.UserID], tok.Token)
	}

	data := make(map[string]string, len(t.Data)+1)
	for k, v := range t.Data {
		data[k] = v
	}
	data["kind"] = string(t.Kind)

	res := s.fallback.sendChunks(ctx, byOwner, push.Request{
		Title:    t.Title,
		Body:     t.Body,
		Data:     data,
		Priority: t.Priority,
	})
	s.logger.Info("MASS_PUSH_COMPLETED",
		slog.Int("attempted", res.Attempted),
		slog.Int("succeeded", res.Succeeded),
		slog.Int("failed", res.Failed),
		slog.Int("invalidated", res.Invalidated),
	)
	return res, nil
}

// Schedule persists t for delivery at dueAt. The scheduler drains due entries,
// so a pending entry survives a restart.
func (s *Notifier) Schedule(ctx context.Context, dueAt time.Time, recipients []uuid.UUID, t model.NotificationTemplate) (*model.ScheduledNotification, error) {
	if err := s.validateTemplate(t); err != nil {
		return nil, err
	}
	now := s.clock().UTC()
	if !dueAt.After(now) {
		return nil, fmt.Errorf("due time %s is in the past: %w", dueAt.Format(time.RFC3339), model.ErrInvalidTarget)
	}
	ids := lo.Uniq(lo.Filter(recipients, func(id uuid.UUID, _ int) bool { return id != uuid.Nil }))
	if len(ids) == 0 {
		return nil, fmt.Errorf("schedule: no recipients: %w", model.ErrInvalidArgument)
	}

	sn := &model.ScheduledNotification{
		ID:         uuid.New(),
		DueAt:      dueAt.UTC(),
		State:      model.SchedulePending,
		Recipients: ids,
		Template:   t,
		CreatedAt:  now,
	}
	if err := s.schedules.Create(ctx, sn); err != nil {
		return nil, fmt.Errorf("persist schedule: %w", err)
	}
	s.logger.Info("NOTIFICATION_SCHEDULED",
		slog.String("id", sn.ID.String()),
		slog.Time("due_at", sn.DueAt),
		slog.Int("recipients", len(ids)),
	)
	return sn, nil
}

// RunDue sends every pending entry whose due time has passed and returns how
// many entries it completed.
func (s *Notifier) RunDue(ctx context.Context) (int, error) {
	done := 0
	for {
		due, err := s.schedules.Due(ctx, s.clock().UTC(), dueBatch)
		if err != nil {
			return done, fmt.Errorf("load due schedules: %w", err)
		}
		if len(due) == 0 {
			return done, nil
		}

		for _, sn := range due {
			res, sendErr := s.NotifyMany(ctx, sn.Recipients, sn.Template)
			state, lastErr := model.ScheduleSent, ""
			if sendErr != nil {
				state, lastErr = model.ScheduleFailed, model.Truncate(sendErr.Error(), 512)
			} else if res.Total > 0 && res.Succeeded == 0 {
				state, lastErr = model.ScheduleFailed, "every recipient failed"
			}

			ok, err := s.schedules.Complete(ctx, sn.ID, state, res.Succeeded, res.Failed, lastErr, s.clock().UTC())
			if err != nil {
				return done, fmt.Errorf("complete schedule %s: %w", sn.ID, err)
			}
			if ok {
				done++
			}
		}
		if len(due) < dueBatch {
			return done, nil
		}
	}
}
