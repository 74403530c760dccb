package service

import (
	"context"
	"fmt"
	"hash/fnv"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/webitel/im-realtime-service/internal/domain/event"
	"github.com/webitel/im-realtime-service/internal/domain/model"
	"github.com/webitel/im-realtime-service/internal/domain/registry"
	"github.com/webitel/im-realtime-service/internal/metrics"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var tracer = otel.Tracer("github.com/webitel/im-realtime-service/internal/service")

const routeStripes = 256

// RoutingOutcome reports which live connections accepted an event.
// Delivered is false when no connection did; that is the push fallback signal.
type RoutingOutcome struct {
	Delivered     bool
	ConnectionIDs []uuid.UUID
	Failed        int
}

// Router resolves an event target to live connections and enqueues the event
// into each mailbox.
//
// [ORDERING] Every route for the same topic (or the same identity) holds one
// stripe lock while enqueueing into all resolved mailboxes. Mailboxes are FIFO,
// so every subscriber observes events in invocation order.
type Router struct {
	hub     registry.Hubber
	metrics *metrics.Metrics
	logger  *slog.Logger
	stripes [routeStripes]sync.Mutex
}

func NewRouter(hub registry.Hubber, m *metrics.Metrics, logger *slog.Logger) *Router {
	return &Router{hub: hub, metrics: m, logger: logger}
}

// Route delivers ev to every live connection of its target.
// Zero connections is not an error.
func (r *Router) Route(ctx context.Context, ev event.Eventer) (RoutingOutcome, error) {
	return r.RouteExcept(ctx, ev, uuid.Nil)
}

// RouteExcept is Route with one connection (usually the originator) skipped.
func (r *Router) RouteExcept(ctx context.Context, ev event.Eventer, skip uuid.UUID) (RoutingOutcome, error) {
	target := ev.GetTarget()
	key := target.Topic
	if !target.IsTopic() {
		if target.User == uuid.Nil {
			return RoutingOutcome{}, fmt.Errorf("route %s: empty target: %w", ev.GetKind(), model.ErrInvalidTarget)
		}
		key = model.PersonalTopic(target.User)
	}

	_, span := tracer.Start(ctx, "router.route")
	defer span.End()
	span.SetAttributes(
		attribute.String("event.kind", ev.GetKind().String()),
		attribute.String("event.target", target.String()),
	)

	mu := r.stripe(key)
	mu.Lock()
	conns := r.resolve(target, key)

	out := RoutingOutcome{ConnectionIDs: make([]uuid.UUID, 0, len(conns))}
	for _, id := range conns {
		if id == skip {
			continue
		}
		if r.hub.Deliver(id, ev) {
			out.ConnectionIDs = append(out.ConnectionIDs, id)
			continue
		}
		// stale or closed connection ids count per connection, never as an error
		out.Failed++
	}
	mu.Unlock()

	out.Delivered = len(out.ConnectionIDs) > 0
	span.SetAttributes(
		attribute.Int("route.delivered", len(out.ConnectionIDs)),
		attribute.Int("route.failed", out.Failed),
	)

	r.metrics.Routed(ev.GetKind().String(), out.Delivered)
	for range out.ConnectionIDs {
		r.metrics.Delivery(true)
	}
	for range out.Failed {
		r.metrics.Delivery(false)
	}
	if out.Failed > 0 {
		r.logger.Debug("ROUTE_PARTIAL",
			slog.String("kind", ev.GetKind().String()),
			slog.String("target", target.String()),
			slog.Int("delivered", len(out.ConnectionIDs)),
			slog.Int("failed", out.Failed),
		)
	}
	return out, nil
}

// resolve returns the live connections of a target. Conversation topics also
// reach every live connection of both participants, joined or not.
func (r *Router) resolve(target event.Target, key model.TopicKey) []uuid.UUID {
	if !target.IsTopic() {
		return r.hub.Presence().Connections(target.User)
	}
	conns := r.hub.Rooms().SubscribersOf(key)
	if a, b, ok := key.Participants(); ok {
		conns = append(conns, r.hub.Presence().Connections(a)...)
		conns = append(conns, r.hub.Presence().Connections(b)...)
		conns = lo.Uniq(conns)
	}
	return conns
}

func (r *Router) stripe(key model.TopicKey) *sync.Mutex {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key.Kind))
	_, _ = h.Write([]byte(key.Target))
	return &r.stripes[h.Sum32()%routeStripes]
}
