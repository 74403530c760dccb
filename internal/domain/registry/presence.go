package registry

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/webitel/im-realtime-service/internal/domain/model"
)

// Transition describes the effect of a membership change on coarse status.
type Transition struct {
	Changed  bool
	Status   model.PresenceStatus
	LastSeen time.Time
}

// Presence tracks which identities hold live connections.
//
// [STRIPING]
// Identities are spread over N shards by hash; each shard has its own
// RWMutex so unrelated identities never contend.
type Presence struct {
	shards []*presenceShard
	now    func() time.Time
}

type presenceShard struct {
	mu    sync.RWMutex
	cells map[uuid.UUID]*cell
}

func NewPresence(shards int) *Presence {
	n := normShards(shards)
	p := &Presence{
		shards: make([]*presenceShard, n),
		now:    time.Now,
	}
	for i := range p.shards {
		p.shards[i] = &presenceShard{cells: make(map[uuid.UUID]*cell)}
	}
	return p
}

func (p *Presence) shard(userID uuid.UUID) *presenceShard {
	return p.shards[shardOfID(userID, len(p.shards))]
}

// MarkOnline records a live connection. Repeating it for the same connID is a no-op.
func (p *Presence) MarkOnline(userID, connID uuid.UUID) Transition {
	s := p.shard(userID)
	now := p.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.cells[userID]
	if !ok {
		c = newCell(userID, now)
		s.cells[userID] = c
	}
	wasOnline := c.online()
	c.conns[connID] = struct{}{}
	c.lastSeen = now

	return Transition{Changed: !wasOnline, Status: c.status(), LastSeen: now}
}

// MarkOffline removes a live connection. Unknown connIDs are ignored.
// When the last connection goes away the identity becomes offline and any
// declared status or typing indicator is cleared.
func (p *Presence) MarkOffline(userID, connID uuid.UUID) Transition {
	s := p.shard(userID)

	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.cells[userID]
	if !ok {
		return Transition{Status: model.StatusOffline}
	}
	if _, live := c.conns[connID]; !live {
		return Transition{Status: c.status(), LastSeen: c.lastSeen}
	}

	delete(c.conns, connID)
	if c.online() {
		return Transition{Status: c.status(), LastSeen: c.lastSeen}
	}

	c.lastSeen = p.now()
	c.declared = ""
	c.typing = nil

	return Transition{Changed: true, Status: model.StatusOffline, LastSeen: c.lastSeen}
}

func (p *Presence) IsOnline(userID uuid.UUID) bool {
	s := p.shard(userID)
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.cells[userID]
	return ok && c.online()
}

// Status returns a snapshot; unknown identities are reported offline.
func (p *Presence) Status(userID uuid.UUID) model.Presence {
	s := p.shard(userID)
	s.mu.RLock()
	defer s.mu.RUnlock()

	if c, ok := s.cells[userID]; ok {
		return c.snapshot()
	}
	return model.OfflinePresence(userID)
}

// BulkStatus resolves many identities, shard by shard.
func (p *Presence) BulkStatus(userIDs []uuid.UUID) map[uuid.UUID]model.Presence {
	out := make(map[uuid.UUID]model.Presence, len(userIDs))
	for _, id := range userIDs {
		out[id] = p.Status(id)
	}
	return out
}

// SetDeclaredStatus sets an away/busy/online override while the identity is live.
func (p *Presence) SetDeclaredStatus(userID uuid.UUID, status model.PresenceStatus) (Transition, error) {
	if !status.Declarable() {
		return Transition{}, fmt.Errorf("status %q cannot be declared: %w", status, model.ErrInvalidTarget)
	}

	s := p.shard(userID)
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.cells[userID]
	if !ok || !c.online() {
		return Transition{}, fmt.Errorf("set status %s: %w", userID, model.ErrNotOnline)
	}

	before := c.status()
	if status == model.StatusOnline {
		c.declared = ""
	} else {
		c.declared = status
	}
	c.lastSeen = p.now()

	return Transition{Changed: before != c.status(), Status: c.status(), LastSeen: c.lastSeen}, nil
}

// SetTyping records the topic the identity is composing in. It requires a live connection.
func (p *Presence) SetTyping(userID uuid.UUID, topic model.TopicKey) error {
	s := p.shard(userID)
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.cells[userID]
	if !ok || !c.online() {
		return fmt.Errorf("typing %s: %w", userID, model.ErrNotOnline)
	}
	c.typing = &topic
	return nil
}

// ClearTyping removes the typing indicator when it points at topic.
// A zero topic clears any indicator.
func (p *Presence) ClearTyping(userID uuid.UUID, topic model.TopicKey) bool {
	s := p.shard(userID)
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.cells[userID]
	if !ok || c.typing == nil {
		return false
	}
	if !topic.IsZero() && *c.typing != topic {
		return false
	}
	c.typing = nil
	return true
}

// Connections returns the live connection ids of an identity.
func (p *Presence) Connections(userID uuid.UUID) []uuid.UUID {
	s := p.shard(userID)
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.cells[userID]
	if !ok {
		return nil
	}
	out := make([]uuid.UUID, 0, len(c.conns))
	for id := range c.conns {
		out = append(out, id)
	}
	return out
}

// Online lists identities with at least one live connection.
func (p *Presence) Online() []uuid.UUID {
	var out []uuid.UUID
	for _, s := range p.shards {
		s.mu.RLock()
		for id, c := range s.cells {
			if c.online() {
				out = append(out, id)
			}
		}
		s.mu.RUnlock()
	}
	return out
}

// Evict drops offline records last seen before the cutoff and returns how many were removed.
func (p *Presence) Evict(before time.Time) int {
	removed := 0
	for _, s := range p.shards {
		s.mu.Lock()
		for id, c := range s.cells {
			if c.isIdle(before) {
				delete(s.cells, id)
				removed++
			}
		}
		s.mu.Unlock()
	}
	return removed
}

// Stats returns per-shard counts of online identities and connections.
func (p *Presence) Stats() (users, conns int, shards []model.ShardStats) {
	shards = make([]model.ShardStats, 0, len(p.shards))
	for i, s := range p.shards {
		st := model.ShardStats{ShardID: i}
		s.mu.RLock()
		for _, c := range s.cells {
			if c.online() {
				st.UserCount++
				st.Connections += len(c.conns)
			}
		}
		s.mu.RUnlock()
		users += st.UserCount
		conns += st.Connections
		shards = append(shards, st)
	}
	return users, conns, shards
}
