package registry

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/webitel/im-realtime-service/internal/domain/event"
	"github.com/webitel/im-realtime-service/internal/domain/model"
)

// Interface guard
var _ Connector = (*connect)(nil)

// [CONNECTOR] THE INTERFACE FOR EXTERNAL LAYERS (REGISTRY/HUB)
type Connector interface {
	GetID() uuid.UUID
	GetUserID() uuid.UUID
	Metadata() model.ConnectMetadata
	ConnectedAt() time.Time
	Send(ev event.Eventer) bool // Non-blocking, thread-safe send with backpressure handling
	Recv() <-chan event.Eventer
	Done() <-chan struct{}
	Queued() int
	Dropped() uint64
	Close() // Terminate connection and release resources
}

// [CONNECT] CONCRETE IMPLEMENTATION (UNEXPORTED TO FORCE INTERFACE USAGE)
//
// A connector is created per accepted channel and never reused after Close.
type connect struct {
	id        uuid.UUID
	userID    uuid.UUID
	metadata  model.ConnectMetadata
	createdAt time.Time

	ctx      context.Context
	cancelFn context.CancelFunc

	// mu guards closed and every write to sendCh, so Send never races Close.
	mu     sync.Mutex
	closed bool
	sendCh chan event.Eventer

	lastActivityAt atomic.Int64
	droppedCount   atomic.Uint64
}

// NewConnector allocates a mailbox of bufferSize events.
func NewConnector(ctx context.Context, userID uuid.UUID, meta model.ConnectMetadata, bufferSize int) Connector {
	if bufferSize <= 0 {
		bufferSize = 1
	}
	childCtx, cancel := context.WithCancel(ctx)

	c := &connect{
		id:        uuid.New(),
		userID:    userID,
		metadata:  meta,
		createdAt: time.Now(),
		ctx:       childCtx,
		cancelFn:  cancel,
		sendCh:    make(chan event.Eventer, bufferSize),
	}
	c.lastActivityAt.Store(c.createdAt.UnixNano())
	return c
}

func (c *connect) GetID() uuid.UUID                { return c.id }
func (c *connect) GetUserID() uuid.UUID            { return c.userID }
func (c *connect) Metadata() model.ConnectMetadata { return c.metadata }
func (c *connect) ConnectedAt() time.Time          { return c.createdAt }
func (c *connect) Recv() <-chan event.Eventer      { return c.sendCh }
func (c *connect) Done() <-chan struct{}           { return c.ctx.Done() }
func (c *connect) Queued() int                     { return len(c.sendCh) }
func (c *connect) Dropped() uint64                 { return c.droppedCount.Load() }

// Send enqueues ev without blocking. The mailbox is FIFO, so events sent
// by one goroutine are received in the same order.
//
// [BACKPRESSURE]
//   - low/normal priority on a full mailbox: the new event is dropped.
//   - high priority on a full mailbox: the oldest queued event is evicted.
func (c *connect) Send(ev event.Eventer) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return false
	}

	select {
	case c.sendCh <- ev:
		c.lastActivityAt.Store(time.Now().UnixNano())
		return true
	default:
	}

	return c.handleBackpressure(ev)
}

// handleBackpressure runs with mu held.
func (c *connect) handleBackpressure(ev event.Eventer) bool {
	if ev.GetPriority() < event.PriorityHigh {
		c.droppedCount.Add(1)
		return false
	}

	select {
	case <-c.sendCh:
		c.droppedCount.Add(1)
	default:
		// the writer drained it meanwhile
	}

	select {
	case c.sendCh <- ev:
		c.lastActivityAt.Store(time.Now().UnixNano())
		return true
	default:
		c.droppedCount.Add(1)
		return false
	}
}

// Close cancels the connection context and closes the mailbox. Queued events
// stay readable from Recv until drained. Safe to call more than once.
func (c *connect) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	c.cancelFn()
	close(c.sendCh)
}
