package registry

import (
	"time"

	"github.com/google/uuid"
	"github.com/webitel/im-realtime-service/internal/domain/model"
)

// cell is the presence record of one identity. It is only touched under
// the owning shard lock.
type cell struct {
	userID uuid.UUID

	// [SESSIONS]
	// Live connection ids. Non-empty iff the identity is online.
	conns map[uuid.UUID]struct{}

	// declared is an away/busy override; it is cleared when the last
	// connection goes away.
	declared model.PresenceStatus

	typing   *model.TopicKey
	lastSeen time.Time
}

func newCell(userID uuid.UUID, now time.Time) *cell {
	return &cell{
		userID:   userID,
		conns:    make(map[uuid.UUID]struct{}, 1),
		lastSeen: now,
	}
}

func (c *cell) online() bool { return len(c.conns) > 0 }

func (c *cell) status() model.PresenceStatus {
	switch {
	case !c.online():
		return model.StatusOffline
	case c.declared != "":
		return c.declared
	default:
		return model.StatusOnline
	}
}

func (c *cell) snapshot() model.Presence {
	p := model.Presence{
		UserID:      c.userID,
		Status:      c.status(),
		LastSeen:    c.lastSeen,
		Connections: len(c.conns),
	}
	if c.typing != nil {
		t := *c.typing
		p.TypingTo = &t
	}
	return p
}

// isIdle reports whether the cell may be evicted from memory.
func (c *cell) isIdle(before time.Time) bool {
	return !c.online() && c.lastSeen.Before(before)
}
