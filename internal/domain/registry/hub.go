/*
Package registry holds the in-memory state of live delivery.

Key Architectural Concepts:
  - Presence: per-identity cells recording live connection ids, declared
    status and typing target, striped over independently locked shards.
  - Rooms: topic to connection index with a per-connection reverse index,
    striped the same way.
  - Connectors: one bounded FIFO mailbox per live channel. Senders never
    block on a slow consumer; overflow is shed and counted.
  - Hub: the connection table tying the three together, plus a janitor that
    reclaims memory from identities that went offline long ago.
*/
package registry

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/webitel/im-realtime-service/internal/domain/event"
	"github.com/webitel/im-realtime-service/internal/domain/model"
)

// Hubber defines the gateway for connection bookkeeping and per-connection delivery.
type Hubber interface {
	NewConnector(ctx context.Context, userID uuid.UUID, meta model.ConnectMetadata) Connector
	Register(conn Connector)
	Unregister(connID uuid.UUID) (Connector, bool)
	Connection(connID uuid.UUID) (Connector, bool)
	Deliver(connID uuid.UUID, ev event.Eventer) bool
	Presence() *Presence
	Rooms() *Rooms
	Connections() []model.ConnectionInfo
	Stats() model.HubStats
	Start()
	Shutdown()
}

type hubConfig struct {
	shards           int
	mailboxSize      int
	evictionInterval time.Duration
	idleTimeout      time.Duration
}

// Hub implements a [SCALABLE_REGISTRY] keyed by connection id.
type Hub struct {
	// conns stores Map[uuid.UUID]Connector. Optimized for [READ_HEAVY] workloads.
	conns    sync.Map
	presence *Presence
	rooms    *Rooms
	config   hubConfig
	logger   *slog.Logger

	startedAt time.Time
	stopCh    chan struct{}
	startOnce sync.Once
	stopOnce  sync.Once
	wg        sync.WaitGroup
}

func NewHub(logger *slog.Logger, opts ...Option) *Hub {
	h := &Hub{
		config: hubConfig{
			shards:           defaultShards,
			mailboxSize:      256,
			evictionInterval: 15 * time.Minute,
			idleTimeout:      30 * time.Minute,
		},
		logger:    logger,
		startedAt: time.Now(),
		stopCh:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.presence = NewPresence(h.config.shards)
	h.rooms = NewRooms(h.config.shards)
	return h
}

func (h *Hub) Presence() *Presence { return h.presence }
func (h *Hub) Rooms() *Rooms       { return h.rooms }

func (h *Hub) NewConnector(ctx context.Context, userID uuid.UUID, meta model.ConnectMetadata) Connector {
	return NewConnector(ctx, userID, meta, h.config.mailboxSize)
}

func (h *Hub) Register(conn Connector) {
	h.conns.Store(conn.GetID(), conn)
}

// Unregister removes the connection from the table. It does not close it.
func (h *Hub) Unregister(connID uuid.UUID) (Connector, bool) {
	val, ok := h.conns.LoadAndDelete(connID)
	if !ok {
		return nil, false
	}
	return val.(Connector), true
}

func (h *Hub) Connection(connID uuid.UUID) (Connector, bool) {
	val, ok := h.conns.Load(connID)
	if !ok {
		return nil, false
	}
	return val.(Connector), true
}

// Deliver enqueues ev into one connection's mailbox. Returns false on a stale
// id, a closed connector or an overflow drop.
func (h *Hub) Deliver(connID uuid.UUID, ev event.Eventer) bool {
	conn, ok := h.Connection(connID)
	if !ok {
		return false
	}
	return conn.Send(ev)
}

func (h *Hub) Connections() []model.ConnectionInfo {
	var out []model.ConnectionInfo
	h.conns.Range(func(_, val any) bool {
		c := val.(Connector)
		out = append(out, model.ConnectionInfo{
			ID:          c.GetID(),
			UserID:      c.GetUserID(),
			ConnectedAt: c.ConnectedAt(),
			Queued:      c.Queued(),
			Dropped:     c.Dropped(),
			Metadata:    c.Metadata(),
		})
		return true
	})
	return out
}

func (h *Hub) Stats() model.HubStats {
	users, conns, shards := h.presence.Stats()
	st := model.HubStats{
		TotalUsers:       users,
		TotalConnections: conns,
		TotalTopics:      h.rooms.Len(),
		Uptime:           time.Since(h.startedAt).Truncate(time.Second),
		Shards:           shards,
	}
	h.conns.Range(func(_, val any) bool {
		c := val.(Connector)
		st.QueuedEvents += c.Queued()
		st.DroppedEvents += c.Dropped()
		return true
	})
	return st
}

// Start launches the [JANITOR] that evicts long-offline presence records.
func (h *Hub) Start() {
	h.startOnce.Do(func() {
		if h.config.evictionInterval <= 0 {
			return
		}
		h.wg.Add(1)
		go h.janitor()
	})
}

func (h *Hub) janitor() {
	defer h.wg.Done()

	ticker := time.NewTicker(h.config.evictionInterval)
	defer ticker.Stop()

	for {
		select {
		case <-h.stopCh:
			return
		case now := <-ticker.C:
			if n := h.presence.Evict(now.Add(-h.config.idleTimeout)); n > 0 {
				h.logger.Debug("PRESENCE_EVICTED", slog.Int("count", n))
			}
		}
	}
}

// Shutdown stops the janitor and closes every live connector.
func (h *Hub) Shutdown() {
	h.stopOnce.Do(func() {
		close(h.stopCh)
		h.wg.Wait()

		closed := 0
		h.conns.Range(func(key, val any) bool {
			val.(Connector).Close()
			h.conns.Delete(key)
			closed++
			return true
		})
		h.logger.Info("HUB_SHUTDOWN", slog.Int("closed_connections", closed))
	})
}
