package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/webitel/im-realtime-service/internal/domain/event"
	"github.com/webitel/im-realtime-service/internal/domain/model"
	"github.com/webitel/im-realtime-service/internal/domain/registry"
	"github.com/webitel/im-realtime-service/internal/metrics"
)

// Authenticator verifies the credentials presented by a client.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*model.Principal, error)
}

// [LIFECYCLE_SERVICE] PRIMARY INTERFACE FOR TRANSPORT HANDLERS (websocket)
type SessionManager interface {
	Open(ctx context.Context, creds model.Credentials) (*Session, error)
	Activate(ctx context.Context, s *Session) error
	Join(ctx context.Context, s *Session, topic model.TopicKey) error
	Leave(ctx context.Context, s *Session, topic model.TopicKey) error
	SetStatus(ctx context.Context, s *Session, status model.PresenceStatus) error
	Typing(ctx context.Context, s *Session, topic model.TopicKey, typing bool) error
	Close(ctx context.Context, s *Session, reason string)
}

// Session is one live channel from authentication to close.
type Session struct {
	principal *model.Principal
	meta      model.ConnectMetadata
	conn      registry.Connector
	state     atomic.Int32
	closeOnce sync.Once
}

func (s *Session) UserID() uuid.UUID          { return s.principal.UserID }
func (s *Session) Principal() model.Principal { return *s.principal }
func (s *Session) State() model.ConnState     { return model.ConnState(s.state.Load()) }

// Conn returns the connector of an activated session, nil before that.
func (s *Session) Conn() registry.Connector { return s.conn }

// ConnID returns uuid.Nil before activation.
func (s *Session) ConnID() uuid.UUID {
	if s.conn == nil {
		return uuid.Nil
	}
	return s.conn.GetID()
}

// Lifecycle is the only owner of live membership: it alone calls
// MarkOnline/MarkOffline and drops room subscriptions.
type Lifecycle struct {
	hub          registry.Hubber
	router       *Router
	auth         Authenticator
	users        UserDirectory
	messages     MessageStore
	profiles     Profiles
	metrics      *metrics.Metrics
	logger       *slog.Logger
	partnerLimit int
	clock        func() time.Time
}

type LifecycleDeps struct {
	Hub      registry.Hubber
	Router   *Router
	Auth     Authenticator
	Users    UserDirectory
	Messages MessageStore
	Profiles Profiles
	Metrics  *metrics.Metrics
	Logger   *slog.Logger
}

func NewLifecycle(d LifecycleDeps, partnerLimit int) *Lifecycle {
	return &Lifecycle{
		hub:          d.Hub,
		router:       d.Router,
		auth:         d.Auth,
		users:        d.Users,
		messages:     d.Messages,
		profiles:     d.Profiles,
		metrics:      d.Metrics,
		logger:       d.Logger,
		partnerLimit: partnerLimit,
		clock:        time.Now,
	}
}

// Open authenticates the credentials and records the caller's profile claims.
// On failure the channel never leaves Connecting and the error wraps
// model.ErrUnauthenticated.
func (l *Lifecycle) Open(ctx context.Context, creds model.Credentials) (*Session, error) {
	p, err := l.auth.Authenticate(ctx, creds.Token)
	if err != nil {
		l.logger.Debug("CONNECTION_REJECTED", slog.String("remote_ip", creds.Metadata.RemoteIP), slog.Any("err", err))
		return nil, err
	}

	u := &model.User{
		ID:          p.UserID,
		Username:    p.Username,
		DisplayName: p.DisplayName,
		Email:       p.Email,
		PhotoURL:    p.PhotoURL,
		Active:      true,
		Status:      model.StatusOffline,
		CreatedAt:   l.clock().UTC(),
	}
	if err := l.users.Upsert(ctx, u); err != nil {
		// a stale profile only degrades notification texts
		l.logger.Warn("PROFILE_UPSERT_FAILED", slog.String("user_id", p.UserID.String()), slog.Any("err", err))
	} else {
		l.profiles.Remember(u)
	}

	s := &Session{principal: p, meta: creds.Metadata}
	s.state.Store(int32(model.ConnAuthenticated))
	return s, nil
}

// Activate registers the live channel: hub table, presence, personal channel.
// ctx bounds the connector; cancelling it closes the mailbox.
func (l *Lifecycle) Activate(ctx context.Context, s *Session) error {
	if !s.state.CompareAndSwap(int32(model.ConnAuthenticated), int32(model.ConnActive)) {
		return fmt.Errorf("activate in state %s: %w", s.State(), model.ErrConnClosed)
	}

	userID := s.UserID()
	conn := l.hub.NewConnector(ctx, userID, s.meta)
	s.conn = conn

	l.hub.Register(conn)
	tr := l.hub.Presence().MarkOnline(userID, conn.GetID())
	l.hub.Rooms().Subscribe(conn.GetID(), model.PersonalTopic(userID))
	l.metrics.ConnectionOpened()

	conn.Send(event.NewSystemEvent(userID, event.Connected, event.PriorityHigh, model.ConnectedPayload{
		ConnectionID: conn.GetID(),
		UserID:       userID,
		ServerTime:   l.clock().UnixMilli(),
	}))

	l.logger.Info("CONNECTION_ACTIVATED",
		slog.String("user_id", userID.String()),
		slog.String("conn_id", conn.GetID().String()),
		slog.String("platform", s.meta.Platform),
	)

	// [IO_OUTSIDE_LOCKS] durable projection and broadcast run after registry mutations
	if tr.Changed {
		l.persistStatus(ctx, userID, tr)
		l.broadcastStatus(ctx, userID, tr, nil)
	}
	return nil
}

// Join subscribes the session to a topic. Conversations require membership;
// content threads are open to everyone; personal channels only to their owner.
func (l *Lifecycle) Join(_ context.Context, s *Session, topic model.TopicKey) error {
	if err := l.authorizeTopic(s, topic); err != nil {
		return err
	}
	l.hub.Rooms().Subscribe(s.ConnID(), topic)
	return nil
}

func (l *Lifecycle) Leave(_ context.Context, s *Session, topic model.TopicKey) error {
	if s.State() != model.ConnActive {
		return fmt.Errorf("leave in state %s: %w", s.State(), model.ErrConnClosed)
	}
	if topic == model.PersonalTopic(s.UserID()) {
		return fmt.Errorf("personal channel cannot be left: %w", model.ErrInvalidTarget)
	}
	l.hub.Rooms().Unsubscribe(s.ConnID(), topic)
	return nil
}

func (l *Lifecycle) authorizeTopic(s *Session, topic model.TopicKey) error {
	if s.State() != model.ConnActive {
		return fmt.Errorf("join in state %s: %w", s.State(), model.ErrConnClosed)
	}
	if err := topic.Validate(); err != nil {
		return err
	}
	switch topic.Kind {
	case model.TopicConversation:
		if !topic.Includes(s.UserID()) {
			return fmt.Errorf("not a participant of %s: %w", topic, model.ErrForbidden)
		}
	case model.TopicPersonal:
		if topic != model.PersonalTopic(s.UserID()) {
			return fmt.Errorf("personal channel of another identity: %w", model.ErrForbidden)
		}
	}
	return nil
}

// SetStatus declares away/busy/online for a live identity.
func (l *Lifecycle) SetStatus(ctx context.Context, s *Session, status model.PresenceStatus) error {
	if s.State() != model.ConnActive {
		return fmt.Errorf("status in state %s: %w", s.State(), model.ErrConnClosed)
	}
	tr, err := l.hub.Presence().SetDeclaredStatus(s.UserID(), status)
	if err != nil {
		return err
	}
	if tr.Changed {
		l.persistStatus(ctx, s.UserID(), tr)
		l.broadcastStatus(ctx, s.UserID(), tr, nil)
	}
	return nil
}

// Typing records or clears the typing target and relays it to the topic.
// The originating connection does not receive its own indicator.
func (l *Lifecycle) Typing(ctx context.Context, s *Session, topic model.TopicKey, typing bool) error {
	if err := l.authorizeTopic(s, topic); err != nil {
		return err
	}
	if typing {
		if err := l.hub.Presence().SetTyping(s.UserID(), topic); err != nil {
			return err
		}
	} else if !l.hub.Presence().ClearTyping(s.UserID(), topic) {
		return nil
	}

	ev := event.NewTypingEvent(model.TypingChange{UserID: s.UserID(), Topic: topic, IsTyping: typing})
	_, err := l.router.RouteExcept(ctx, ev, s.ConnID())
	return err
}

// Close tears the session down. It is idempotent and safe on abrupt or
// duplicate disconnects; Closed is terminal.
//
// [ORDER] DropConnection -> MarkOffline -> unregister and close the mailbox,
// then the durable projection and the "went offline" broadcast.
func (l *Lifecycle) Close(ctx context.Context, s *Session, reason string) {
	s.closeOnce.Do(func() {
		prev := model.ConnState(s.state.Swap(int32(model.ConnClosed)))
		if prev != model.ConnActive || s.conn == nil {
			return
		}

		userID, connID := s.UserID(), s.conn.GetID()
		topics := l.hub.Rooms().DropConnection(connID)
		tr := l.hub.Presence().MarkOffline(userID, connID)
		if conn, ok := l.hub.Unregister(connID); ok {
			conn.Close()
		} else {
			s.conn.Close()
		}
		l.metrics.ConnectionClosed()

		l.logger.Info("CONNECTION_CLOSED",
			slog.String("user_id", userID.String()),
			slog.String("conn_id", connID.String()),
			slog.String("reason", reason),
			slog.Uint64("dropped_events", s.conn.Dropped()),
		)

		if !tr.Changed {
			return
		}
		// the request context is usually gone by now
		bg := context.WithoutCancel(ctx)
		l.persistStatus(bg, userID, tr)
		l.broadcastStatus(bg, userID, tr, topics)
	})
}

func (l *Lifecycle) persistStatus(ctx context.Context, userID uuid.UUID, tr registry.Transition) {
	if err := l.users.UpdateStatus(ctx, userID, tr.Status, tr.LastSeen); err != nil {
		l.logger.Error("STATUS_PERSIST_FAILED",
			slog.String("user_id", userID.String()),
			slog.String("status", string(tr.Status)),
			slog.Any("err", err),
		)
	}
}

// broadcastStatus routes the change to the conversation topics in joined and
// to the personal channels of the identity's conversation partners.
func (l *Lifecycle) broadcastStatus(ctx context.Context, userID uuid.UUID, tr registry.Transition, joined []model.TopicKey) {
	change := model.StatusChange{UserID: userID, Status: tr.Status, LastSeen: tr.LastSeen}

	covered := make(map[uuid.UUID]struct{})
	for _, topic := range joined {
		if topic.Kind != model.TopicConversation {
			continue
		}
		// conversation routes already reach both participants
		if a, b, ok := topic.Participants(); ok {
			covered[a], covered[b] = struct{}{}, struct{}{}
		}
		if _, err := l.router.Route(ctx, event.NewStatusEvent(event.ToTopic(topic), change)); err != nil {
			l.logger.Warn("STATUS_BROADCAST_FAILED", slog.String("topic", topic.String()), slog.Any("err", err))
		}
	}

	if l.partnerLimit <= 0 {
		return
	}
	partners, err := l.messages.Partners(ctx, userID, l.partnerLimit)
	if err != nil {
		l.logger.Warn("PARTNER_LOOKUP_FAILED", slog.String("user_id", userID.String()), slog.Any("err", err))
		return
	}
	for _, p := range lo.Uniq(partners) {
		if _, done := covered[p]; done || p == userID {
			continue
		}
		if _, err := l.router.Route(ctx, event.NewStatusEvent(event.ToUser(p), change)); err != nil {
			l.logger.Warn("STATUS_BROADCAST_FAILED", slog.String("partner", p.String()), slog.Any("err", err))
		}
	}
}
