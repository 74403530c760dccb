package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/webitel/im-realtime-service/internal/domain/model"
)

// ProfilesMiddleware implements [DECORATOR_PATTERN] to add observability
// to profile resolution without touching the cache logic.
type ProfilesMiddleware struct {
	Next   Profiles
	Logger *slog.Logger
}

// NewProfilesMiddleware creates a new logging decorator for Profiles.
func NewProfilesMiddleware(next Profiles, logger *slog.Logger) Profiles {
	return &ProfilesMiddleware{
		Next:   next,
		Logger: logger,
	}
}

func (m *ProfilesMiddleware) Resolve(ctx context.Context, id uuid.UUID) (*model.User, error) {
	start := time.Now()

	u, err := m.Next.Resolve(ctx, id)
	if err != nil {
		m.Logger.Warn("PROFILE_RESOLUTION_FAILED",
			"user_id", id,
			"err", err,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}
	return u, err
}

// ResolvePair wraps the concurrent lookup with execution timing and outcome logging.
func (m *ProfilesMiddleware) ResolvePair(ctx context.Context, a, b uuid.UUID) (*model.User, *model.User, error) {
	start := time.Now()

	ua, ub, err := m.Next.ResolvePair(ctx, a, b)

	// [OBSERVABILITY] Scoped logging for performance auditing
	duration := time.Since(start)
	if err != nil {
		m.Logger.Error("PROFILE_PAIR_RESOLUTION_FAILED",
			"err", err,
			"a", a,
			"b", b,
			"duration_ms", duration.Milliseconds(),
		)
	} else {
		m.Logger.Debug("PROFILE_PAIR_RESOLVED",
			"duration_ms", duration.Milliseconds(),
		)
	}
	return ua, ub, err
}

func (m *ProfilesMiddleware) Remember(u *model.User) {
	m.Next.Remember(u)
}
