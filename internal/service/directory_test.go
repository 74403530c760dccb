package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/webitel/im-realtime-service/internal/domain/model"
)

func TestDirectory_StatusFallsBackToDurableLastSeen(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	h := newHarness(t)
	u := h.seedUser(t, "alice")

	seen := time.Now().UTC().Add(-time.Hour).Truncate(time.Second)
	req.NoError(h.users.UpdateStatus(ctx, u.ID, model.StatusOffline, seen))

	st, err := h.directory.Status(ctx, u.ID)
	req.NoError(err)
	req.Equal(model.StatusOffline, st.Status)
	req.True(seen.Equal(st.LastSeen))

	// unknown identities are simply offline
	st, err = h.directory.Status(ctx, uuid.New())
	req.NoError(err)
	req.Equal(model.StatusOffline, st.Status)
	req.True(st.LastSeen.IsZero())
}

func TestDirectory_BulkStatus(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	h := newHarness(t)
	a, b := h.seedUser(t, "alice"), h.seedUser(t, "bob")
	h.connect(t, a)
	unknown := uuid.New()

	out, err := h.directory.BulkStatus(ctx, []uuid.UUID{a.ID, b.ID, unknown, a.ID})
	req.NoError(err)
	req.Len(out, 3)
	req.Equal(model.StatusOnline, out[a.ID].Status)
	req.Equal(model.StatusOffline, out[b.ID].Status)
	req.Equal(model.StatusOffline, out[unknown].Status)

	many := make([]uuid.UUID, maxBulkStatus+1)
	for i := range many {
		many[i] = uuid.New()
	}
	_, err = h.directory.BulkStatus(ctx, many)
	req.ErrorIs(err, model.ErrInvalidArgument)
}

func TestDirectory_DeviceTokens(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	h := newHarness(t)
	a, b := h.seedUser(t, "alice"), h.seedUser(t, "bob")

	req.ErrorIs(h.directory.RegisterToken(ctx, a.ID, "  ", "ios"), model.ErrInvalidArgument)
	req.ErrorIs(h.directory.RegisterToken(ctx, a.ID, strings.Repeat("x", 513), "ios"), model.ErrInvalidArgument)

	req.NoError(h.directory.RegisterToken(ctx, a.ID, "tok-a", "ios"))
	// registering twice is idempotent
	req.NoError(h.directory.RegisterToken(ctx, a.ID, "tok-a", "android"))

	tokens, err := h.directory.Tokens(ctx, a.ID)
	req.NoError(err)
	req.Len(tokens, 1)
	req.Equal("android", tokens[0].Device)

	// another identity cannot remove it
	req.ErrorIs(h.directory.RemoveToken(ctx, b.ID, "tok-a"), model.ErrNotFound)
	req.NoError(h.directory.RemoveToken(ctx, a.ID, "tok-a"))
}
