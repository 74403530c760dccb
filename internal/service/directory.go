package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/webitel/im-realtime-service/internal/domain/model"
	"github.com/webitel/im-realtime-service/internal/domain/registry"
)

const maxBulkStatus = 500

// Directory answers presence queries and manages device tokens.
type Directory struct {
	hub    registry.Hubber
	users  UserDirectory
	tokens TokenStore
}

func NewDirectory(hub registry.Hubber, users UserDirectory, tokens TokenStore) *Directory {
	return &Directory{hub: hub, users: users, tokens: tokens}
}

// Status returns the live presence of userID, completed with the durable
// last-seen time when the identity is not in the registry.
func (d *Directory) Status(ctx context.Context, userID uuid.UUID) (model.Presence, error) {
	p := d.hub.Presence().Status(userID)
	if p.Status != model.StatusOffline || !p.LastSeen.IsZero() {
		return p, nil
	}
	u, err := d.users.Get(ctx, userID)
	switch {
	case errors.Is(err, model.ErrNotFound):
		return p, nil
	case err != nil:
		return p, err
	}
	if u.LastSeenAt != nil {
		p.LastSeen = *u.LastSeenAt
	}
	return p, nil
}

// BulkStatus reports every requested identity; unknown ones are offline.
func (d *Directory) BulkStatus(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]model.Presence, error) {
	ids = lo.Uniq(ids)
	if len(ids) > maxBulkStatus {
		return nil, fmt.Errorf("bulk status of %d identities: %w", len(ids), model.ErrInvalidArgument)
	}
	out := d.hub.Presence().BulkStatus(ids)

	var missing []uuid.UUID
	for id, p := range out {
		if p.Status == model.StatusOffline && p.LastSeen.IsZero() {
			missing = append(missing, id)
		}
	}
	if len(missing) == 0 {
		return out, nil
	}
	profiles, err := d.users.GetMany(ctx, missing)
	if err != nil {
		return nil, err
	}
	for id, u := range profiles {
		if u.LastSeenAt != nil {
			p := out[id]
			p.LastSeen = *u.LastSeenAt
			out[id] = p
		}
	}
	return out, nil
}

func (d *Directory) RegisterToken(ctx context.Context, userID uuid.UUID, token, device string) error {
	token = strings.TrimSpace(token)
	if token == "" || len(token) > 512 {
		return fmt.Errorf("device token: %w", model.ErrInvalidArgument)
	}
	return d.tokens.Add(ctx, userID, token, device)
}

// RemoveToken only removes a token owned by userID; NotFound otherwise.
func (d *Directory) RemoveToken(ctx context.Context, userID uuid.UUID, token string) error {
	return d.tokens.Remove(ctx, userID, strings.TrimSpace(token))
}

func (d *Directory) Tokens(ctx context.Context, userID uuid.UUID) ([]model.DeviceToken, error) {
	return d.tokens.ListByUser(ctx, userID)
}
