package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/webitel/im-realtime-service/internal/domain/model"
	"golang.org/x/sync/errgroup"
)

// Profiles resolves the human-readable side of identities for notification texts.
type Profiles interface {
	// Resolve returns the profile of id. Unknown identities resolve to a bare
	// profile so notification texts fall back to a generic name.
	Resolve(ctx context.Context, id uuid.UUID) (*model.User, error)
	// ResolvePair performs concurrent lookups for both sides of an interaction.
	ResolvePair(ctx context.Context, a, b uuid.UUID) (*model.User, *model.User, error)
	// Remember refreshes the cached profile after a write.
	Remember(u *model.User)
}

type ProfileCache struct {
	users UserDirectory
	cache *expirable.LRU[uuid.UUID, *model.User]
}

// NewProfileCache returns a read-through cache over the user directory.
func NewProfileCache(users UserDirectory, size int, ttl time.Duration) *ProfileCache {
	if size <= 0 {
		size = 1024
	}
	// [MEMORY_MANAGEMENT] Bounded and expiring, so renamed profiles heal on their own
	return &ProfileCache{
		users: users,
		cache: expirable.NewLRU[uuid.UUID, *model.User](size, nil, ttl),
	}
}

func (p *ProfileCache) Resolve(ctx context.Context, id uuid.UUID) (*model.User, error) {
	if id == uuid.Nil {
		return nil, nil
	}
	// [HOT_PATH]
	if u, ok := p.cache.Get(id); ok {
		return u, nil
	}

	u, err := p.users.Get(ctx, id)
	switch {
	case errors.Is(err, model.ErrNotFound):
		u = &model.User{ID: id}
	case err != nil:
		return nil, fmt.Errorf("resolve profile %s: %w", id, err)
	}
	p.cache.Add(id, u)
	return u, nil
}

func (p *ProfileCache) ResolvePair(ctx context.Context, a, b uuid.UUID) (*model.User, *model.User, error) {
	g, gCtx := errgroup.WithContext(ctx)

	var ua, ub *model.User
	g.Go(func() error {
		var err error
		ua, err = p.Resolve(gCtx, a)
		return err
	})
	g.Go(func() error {
		var err error
		ub, err = p.Resolve(gCtx, b)
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, nil, fmt.Errorf("parallel profile resolution failed: %w", err)
	}
	return ua, ub, nil
}

func (p *ProfileCache) Remember(u *model.User) {
	if u == nil || u.ID == uuid.Nil {
		return
	}
	p.cache.Add(u.ID, u)
}
