package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/webitel/im-realtime-service/internal/domain/event"
	"github.com/webitel/im-realtime-service/internal/domain/model"
	"github.com/webitel/im-realtime-service/internal/metrics"
	"github.com/webitel/im-realtime-service/internal/service"
)

// InboundFrame is what clients send. Ref is echoed back in the ack or error.
type InboundFrame struct {
	Ref    string          `json:"ref,omitempty" validate:"max=64"`
	Action string          `json:"action" validate:"required,max=64"`
	Data   json.RawMessage `json:"data,omitempty"`
}

type action func(ctx context.Context, s *service.Session, raw json.RawMessage) (any, error)

// Actions maps inbound action names onto the domain services.
type Actions struct {
	sessions  service.SessionManager
	messenger *service.Messenger
	commenter *service.Commenter
	reactions *service.Reactions
	notifier  *service.Notifier
	metrics   *metrics.Metrics
	logger    *slog.Logger
	validate  *validator.Validate
	table     map[string]action
}

type ActionsDeps struct {
	Sessions  service.SessionManager
	Messenger *service.Messenger
	Commenter *service.Commenter
	Reactions *service.Reactions
	Notifier  *service.Notifier
	Metrics   *metrics.Metrics
	Logger    *slog.Logger
}

func NewActions(d ActionsDeps) *Actions {
	a := &Actions{
		sessions:  d.Sessions,
		messenger: d.Messenger,
		commenter: d.Commenter,
		reactions: d.Reactions,
		notifier:  d.Notifier,
		metrics:   d.Metrics,
		logger:    d.Logger,
		validate:  validator.New(),
	}

	a.table = map[string]action{
		"message.send":      bind(a, a.sendMessage),
		"message.update":    bind(a, a.updateMessage),
		"message.delete":    bind(a, a.deleteMessage),
		"message.read":      bind(a, a.readMessage),
		"conversation.read": bind(a, a.readConversation),

		"comment.create": bind(a, a.createComment),
		"comment.update": bind(a, a.updateComment),
		"comment.delete": bind(a, a.deleteComment),

		"like.create": bind(a, a.like),
		"like.delete": bind(a, a.unlike),

		"favorite.add":    bind(a, a.addFavorite),
		"favorite.remove": bind(a, a.removeFavorite),
		"favorite.toggle": bind(a, a.toggleFavorite),

		"status.update": bind(a, a.setStatus),
		"typing.start":  bind(a, a.typing(true)),
		"typing.stop":   bind(a, a.typing(false)),
		"room.join":     bind(a, a.join),
		"room.leave":    bind(a, a.leave),

		"history.conversation":  bind(a, a.conversationHistory),
		"history.thread":        bind(a, a.threadHistory),
		"history.notifications": bind(a, a.notificationHistory),

		"notification.read":     bind(a, a.readNotification),
		"notification.read_all": bind(a, a.readAllNotifications),
	}
	return a
}

// Handle decodes one frame, runs its action and queues the ack or error
// frame on the session's own connector.
func (a *Actions) Handle(ctx context.Context, s *service.Session, data []byte) {
	var in InboundFrame
	if err := json.Unmarshal(data, &in); err != nil {
		a.reply(s, in, nil, fmt.Errorf("malformed frame: %w", model.ErrInvalidArgument))
		return
	}
	if err := a.validate.Struct(&in); err != nil {
		a.reply(s, in, nil, fmt.Errorf("frame: %v: %w", err, model.ErrInvalidArgument))
		return
	}

	fn, ok := a.table[in.Action]
	if !ok {
		a.reply(s, in, nil, fmt.Errorf("unknown action %q: %w", in.Action, model.ErrInvalidArgument))
		return
	}

	result, err := a.run(ctx, fn, s, in)
	a.reply(s, in, result, err)
}

func (a *Actions) run(ctx context.Context, fn action, s *service.Session, in InboundFrame) (result any, err error) {
	// [PANIC_RECOVERY] one bad frame must not kill the channel
	defer func() {
		if r := recover(); r != nil {
			a.logger.Error("PANIC_RECOVERED",
				slog.Any("err", r),
				slog.String("action", in.Action),
				slog.String("stack", string(debug.Stack())))
			result, err = nil, errors.New("internal error")
		}
	}()
	return fn(ctx, s, in.Data)
}

func (a *Actions) reply(s *service.Session, in InboundFrame, result any, err error) {
	code := model.ErrorCode(err)
	a.metrics.Inbound(in.Action, code)

	conn := s.Conn()
	if conn == nil {
		return
	}
	if err == nil {
		conn.Send(event.NewSystemEvent(s.UserID(), event.Ack, event.PriorityHigh, model.AckPayload{
			Ref:    in.Ref,
			Action: in.Action,
			Result: result,
		}))
		return
	}

	msg := err.Error()
	if code == "INTERNAL" {
		a.logger.Error("ACTION_FAILED", slog.String("action", in.Action), slog.Any("err", err))
		msg = "internal error"
	}
	conn.Send(event.NewSystemEvent(s.UserID(), event.Error, event.PriorityHigh, model.ErrorPayload{
		Ref:     in.Ref,
		Action:  in.Action,
		Code:    code,
		Message: msg,
	}))
}

// bind decodes and validates the action payload before calling fn.
func bind[T any](a *Actions, fn func(ctx context.Context, s *service.Session, in *T) (any, error)) action {
	return func(ctx context.Context, s *service.Session, raw json.RawMessage) (any, error) {
		in := new(T)
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, in); err != nil {
				return nil, fmt.Errorf("payload: %v: %w", err, model.ErrInvalidArgument)
			}
		}
		if err := a.validate.Struct(in); err != nil {
			return nil, fmt.Errorf("payload: %v: %w", err, model.ErrInvalidArgument)
		}
		return fn(ctx, s, in)
	}
}

func actor(s *service.Session) service.Actor {
	return service.Actor{UserID: s.UserID(), ConnID: s.ConnID()}
}

type (
	byID struct {
		ID uuid.UUID `json:"id" validate:"required"`
	}
	editContent struct {
		ID      uuid.UUID `json:"id" validate:"required"`
		Content string    `json:"content" validate:"required,max=4096"`
	}
	byPartner struct {
		PartnerID uuid.UUID `json:"partner_id" validate:"required"`
	}
	likeInput struct {
		UserID uuid.UUID        `json:"user_id" validate:"required"`
		Status model.LikeStatus `json:"status" validate:"omitempty,oneof=like skip"`
	}
	favoriteInput struct {
		TargetType model.TargetType `json:"target_type" validate:"required,oneof=post profile"`
		TargetID   string           `json:"target_id" validate:"required,max=128"`
	}
	statusInput struct {
		Status model.PresenceStatus `json:"status" validate:"required,oneof=online away busy"`
	}
	// topicInput names a topic directly or, for conversations, by partner.
	topicInput struct {
		Topic     model.TopicKey `json:"topic"`
		PartnerID uuid.UUID      `json:"partner_id"`
	}
	conversationHistory struct {
		PartnerID uuid.UUID `json:"partner_id" validate:"required"`
		PostID    string    `json:"post_id,omitempty" validate:"max=128"`
		Page      int       `json:"page" validate:"gte=0"`
		Limit     int       `json:"limit" validate:"gte=0"`
	}
	threadHistory struct {
		CommentID  uuid.UUID        `json:"comment_id"`
		TargetType model.TargetType `json:"target_type" validate:"omitempty,oneof=post profile"`
		TargetID   string           `json:"target_id" validate:"max=128"`
		Page       int              `json:"page" validate:"gte=0"`
		Limit      int              `json:"limit" validate:"gte=0"`
	}
	notificationHistory struct {
		Page       int                    `json:"page" validate:"gte=0"`
		Limit      int                    `json:"limit" validate:"gte=0"`
		UnreadOnly bool                   `json:"unread_only"`
		Kind       model.NotificationKind `json:"kind,omitempty"`
	}
	empty struct{}
)

// [MESSAGES]

func (a *Actions) sendMessage(ctx context.Context, s *service.Session, in *service.SendMessage) (any, error) {
	return a.messenger.Send(ctx, actor(s), *in)
}

func (a *Actions) updateMessage(ctx context.Context, s *service.Session, in *editContent) (any, error) {
	return a.messenger.Update(ctx, actor(s), in.ID, in.Content)
}

func (a *Actions) deleteMessage(ctx context.Context, s *service.Session, in *byID) (any, error) {
	return map[string]uuid.UUID{"id": in.ID}, a.messenger.Delete(ctx, actor(s), in.ID)
}

func (a *Actions) readMessage(ctx context.Context, s *service.Session, in *byID) (any, error) {
	return a.messenger.MarkRead(ctx, actor(s), in.ID)
}

func (a *Actions) readConversation(ctx context.Context, s *service.Session, in *byPartner) (any, error) {
	n, err := a.messenger.MarkConversationRead(ctx, actor(s), in.PartnerID)
	return map[string]int64{"count": n}, err
}

// [COMMENTS]

func (a *Actions) createComment(ctx context.Context, s *service.Session, in *service.CreateComment) (any, error) {
	return a.commenter.Create(ctx, actor(s), *in)
}

func (a *Actions) updateComment(ctx context.Context, s *service.Session, in *editContent) (any, error) {
	return a.commenter.Update(ctx, actor(s), in.ID, in.Content)
}

func (a *Actions) deleteComment(ctx context.Context, s *service.Session, in *byID) (any, error) {
	return map[string]uuid.UUID{"id": in.ID}, a.commenter.Delete(ctx, actor(s), in.ID)
}

// [REACTIONS]

func (a *Actions) like(ctx context.Context, s *service.Session, in *likeInput) (any, error) {
	status := in.Status
	if status == "" {
		status = model.LikeLike
	}
	return a.reactions.Like(ctx, actor(s), in.UserID, status)
}

func (a *Actions) unlike(ctx context.Context, s *service.Session, in *likeInput) (any, error) {
	return map[string]uuid.UUID{"user_id": in.UserID}, a.reactions.Unlike(ctx, actor(s), in.UserID)
}

func (a *Actions) addFavorite(ctx context.Context, s *service.Session, in *favoriteInput) (any, error) {
	return a.reactions.AddFavorite(ctx, actor(s), in.TargetType, in.TargetID)
}

func (a *Actions) removeFavorite(ctx context.Context, s *service.Session, in *favoriteInput) (any, error) {
	err := a.reactions.RemoveFavorite(ctx, actor(s), in.TargetType, in.TargetID)
	return model.FavoriteRef{TargetType: in.TargetType, TargetID: in.TargetID}, err
}

func (a *Actions) toggleFavorite(ctx context.Context, s *service.Session, in *favoriteInput) (any, error) {
	on, err := a.reactions.ToggleFavorite(ctx, actor(s), in.TargetType, in.TargetID)
	return model.FavoriteRef{TargetType: in.TargetType, TargetID: in.TargetID, IsFavorited: on}, err
}

// [PRESENCE]

func (a *Actions) setStatus(ctx context.Context, s *service.Session, in *statusInput) (any, error) {
	return map[string]model.PresenceStatus{"status": in.Status}, a.sessions.SetStatus(ctx, s, in.Status)
}

func (a *Actions) typing(on bool) func(ctx context.Context, s *service.Session, in *topicInput) (any, error) {
	return func(ctx context.Context, s *service.Session, in *topicInput) (any, error) {
		topic, err := in.resolve(s)
		if err != nil {
			return nil, err
		}
		return map[string]any{"topic": topic, "is_typing": on}, a.sessions.Typing(ctx, s, topic, on)
	}
}

func (a *Actions) join(ctx context.Context, s *service.Session, in *topicInput) (any, error) {
	topic, err := in.resolve(s)
	if err != nil {
		return nil, err
	}
	return map[string]model.TopicKey{"topic": topic}, a.sessions.Join(ctx, s, topic)
}

func (a *Actions) leave(ctx context.Context, s *service.Session, in *topicInput) (any, error) {
	topic, err := in.resolve(s)
	if err != nil {
		return nil, err
	}
	return map[string]model.TopicKey{"topic": topic}, a.sessions.Leave(ctx, s, topic)
}

func (in *topicInput) resolve(s *service.Session) (model.TopicKey, error) {
	switch {
	case !in.Topic.IsZero():
		return in.Topic, nil
	case in.PartnerID != uuid.Nil:
		return model.ConversationTopic(s.UserID(), in.PartnerID), nil
	default:
		return model.TopicKey{}, fmt.Errorf("topic or partner_id required: %w", model.ErrInvalidTarget)
	}
}

// [HISTORY]

func (a *Actions) conversationHistory(ctx context.Context, s *service.Session, in *conversationHistory) (any, error) {
	return a.messenger.History(ctx, s.UserID(), in.PartnerID, in.PostID, model.Page{Page: in.Page, Limit: in.Limit})
}

func (a *Actions) threadHistory(ctx context.Context, _ *service.Session, in *threadHistory) (any, error) {
	page := model.Page{Page: in.Page, Limit: in.Limit}
	if in.CommentID != uuid.Nil {
		return a.commenter.Thread(ctx, in.CommentID, page)
	}
	return a.commenter.List(ctx, in.TargetType, in.TargetID, page)
}

func (a *Actions) notificationHistory(ctx context.Context, s *service.Session, in *notificationHistory) (any, error) {
	return a.notifier.List(ctx, s.UserID(), model.ListOptions{
		Page:       in.Page,
		Limit:      in.Limit,
		UnreadOnly: in.UnreadOnly,
		Kind:       in.Kind,
	})
}

// [NOTIFICATIONS]

func (a *Actions) readNotification(ctx context.Context, s *service.Session, in *byID) (any, error) {
	return a.notifier.MarkRead(ctx, in.ID, s.UserID())
}

func (a *Actions) readAllNotifications(ctx context.Context, s *service.Session, _ *empty) (any, error) {
	n, err := a.notifier.MarkAllRead(ctx, s.UserID())
	return map[string]int64{"count": n}, err
}
