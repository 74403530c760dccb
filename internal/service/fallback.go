package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/webitel/im-realtime-service/internal/adapter/push"
	"github.com/webitel/im-realtime-service/internal/domain/model"
	"github.com/webitel/im-realtime-service/internal/metrics"
)

const noTokensReason = "no device tokens"

// DeliveryResult summarizes one push fallback attempt.
type DeliveryResult struct {
	Attempted   int
	Succeeded   int
	Failed      int
	Invalidated int
	Err         error
}

// Fallback delivers notifications through the push gateway when the
// recipient has no live connection.
type Fallback struct {
	tokens        TokenStore
	notifications NotificationStore
	gateway       push.Gateway
	metrics       *metrics.Metrics
	logger        *slog.Logger
	clock         func() time.Time
}

func NewFallback(tokens TokenStore, notifications NotificationStore, gw push.Gateway, m *metrics.Metrics, logger *slog.Logger) *Fallback {
	return &Fallback{
		tokens:        tokens,
		notifications: notifications,
		gateway:       gw,
		metrics:       m,
		logger:        logger,
		clock:         time.Now,
	}
}

// PersistAndFallback pushes n to every device token of recipient, prunes
// tokens the provider rejected for good and records the delivery status on n.
//
// Failures never propagate: they end up in DeliveryResult.Err, in
// n.Delivery.PushError and in the log.
func (f *Fallback) PersistAndFallback(ctx context.Context, recipient uuid.UUID, n *model.Notification) DeliveryResult {
	var res DeliveryResult
	now := f.clock().UTC()
	n.Delivery.AttemptedAt = &now

	tokens, err := f.tokens.ListByUser(ctx, recipient)
	switch {
	case err != nil:
		res.Err = fmt.Errorf("list device tokens: %w", err)
	case len(tokens) == 0:
		res.Err = errors.New(noTokensReason)
	default:
		values := lo.Map(tokens, func(t model.DeviceToken, _ int) string { return t.Token })
		res = f.sendChunks(ctx, map[uuid.UUID][]string{recipient: values}, push.Request{
			Title:    n.Title,
			Body:     n.Body,
			Data:     pushData(n),
			Priority: n.Priority,
		})
	}

	n.Delivery.Push = res.Succeeded > 0
	n.Delivery.PushError = ""
	if res.Err != nil {
		n.Delivery.PushError = model.Truncate(res.Err.Error(), 512)
	}
	if n.Delivery.Push {
		f.metrics.Notified(string(n.Kind), "push")
	}

	if err := f.notifications.UpdateDelivery(ctx, n.ID, n.Delivery); err != nil {
		f.logger.Error("DELIVERY_STATUS_PERSIST_FAILED",
			slog.String("notification_id", n.ID.String()),
			slog.Any("err", err),
		)
	}
	if res.Err != nil {
		f.logger.Warn("PUSH_FALLBACK_INCOMPLETE",
			slog.String("recipient", recipient.String()),
			slog.String("notification_id", n.ID.String()),
			slog.Int("succeeded", res.Succeeded),
			slog.Int("failed", res.Failed),
			slog.String("reason", n.Delivery.PushError),
		)
	}
	return res
}

// sendChunks multicasts req to the tokens of every owner, at most
// gateway.MaxBatch() tokens per call. A call-level error marks its whole chunk
// failed; transient failures are recorded without retrying inline.
func (f *Fallback) sendChunks(ctx context.Context, byOwner map[uuid.UUID][]string, req push.Request) DeliveryResult {
	var res DeliveryResult

	owner := make(map[string]uuid.UUID)
	var all []string
	for uid, toks := range byOwner {
		for _, t := range toks {
			if _, dup := owner[t]; dup {
				continue
			}
			owner[t] = uid
			all = append(all, t)
		}
	}

	size := f.gateway.MaxBatch()
	if size <= 0 {
		size = 1
	}

	invalid := make(map[uuid.UUID][]string)
	for _, chunk := range lo.Chunk(all, size) {
		res.Attempted += len(chunk)
		call := req
		call.Tokens = chunk

		outcomes, err := f.gateway.SendBulk(ctx, call)
		if err != nil {
			res.Failed += len(chunk)
			res.Err = errors.Join(res.Err, err)
			f.metrics.PushOutcome(push.TransientFailure.String(), len(chunk))
			continue
		}
		for _, o := range outcomes {
			f.metrics.PushOutcome(o.Status.String(), 1)
			switch o.Status {
			case push.Success:
				res.Succeeded++
			case push.PermanentInvalid:
				res.Failed++
				if uid, ok := owner[o.Token]; ok {
					invalid[uid] = append(invalid[uid], o.Token)
				}
			default:
				res.Failed++
			}
		}
	}

	for uid, toks := range invalid {
		removed, err := f.tokens.Invalidate(ctx, uid, toks)
		if err != nil {
			f.logger.Error("TOKEN_INVALIDATION_FAILED",
				slog.String("user_id", uid.String()),
				slog.Any("err", err),
			)
			continue
		}
		res.Invalidated += int(removed)
	}
	f.metrics.Invalidated(res.Invalidated)

	if res.Err == nil && res.Succeeded == 0 && res.Failed > 0 {
		res.Err = fmt.Errorf("%d of %d tokens failed", res.Failed, res.Attempted)
	}
	return res
}

func pushData(n *model.Notification) map[string]string {
	data := make(map[string]string, len(n.Data)+3)
	for k, v := range n.Data {
		data[k] = v
	}
	data["notification_id"] = n.ID.String()
	data["kind"] = string(n.Kind)
	if n.ActionURL != "" {
		data["action_url"] = n.ActionURL
	}
	return data
}
