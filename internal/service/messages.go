package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/webitel/im-realtime-service/internal/domain/event"
	"github.com/webitel/im-realtime-service/internal/domain/model"
)

// Actor is the identity behind a domain action and, for actions arriving over
// a live channel, the originating connection. Events produced by the action
// are not echoed back to ConnID.
type Actor struct {
	UserID uuid.UUID
	ConnID uuid.UUID
}

type SendMessage struct {
	ReceiverID  uuid.UUID          `json:"receiver_id" validate:"required"`
	Content     string             `json:"content" validate:"max=4096"`
	Type        model.MessageType  `json:"type" validate:"omitempty,oneof=text image file post"`
	Attachments []model.Attachment `json:"attachments,omitempty" validate:"max=10"`
	PostID      string             `json:"post_id,omitempty" validate:"max=128"`
}

// MessagePage is one page of a conversation history, oldest first.
type MessagePage struct {
	Messages   []model.Message  `json:"messages"`
	Pagination model.Pagination `json:"pagination"`
}

const (
	historyDefaultLimit = 50
	historyMaxLimit     = 200
)

// Messenger implements direct messaging on top of the router and notifier.
type Messenger struct {
	messages MessageStore
	users    UserDirectory
	router   *Router
	notifier *Notifier
	exporter Exporter
	logger   *slog.Logger
	clock    func() time.Time
}

func NewMessenger(messages MessageStore, users UserDirectory, router *Router, notifier *Notifier, exporter Exporter, logger *slog.Logger) *Messenger {
	if exporter == nil {
		exporter = NoopExporter
	}
	return &Messenger{
		messages: messages,
		users:    users,
		router:   router,
		notifier: notifier,
		exporter: exporter,
		logger:   logger,
		clock:    time.Now,
	}
}

// Send persists a message, fans it out to the conversation and notifies the
// receiver in the background. The send never waits on notification delivery.
func (s *Messenger) Send(ctx context.Context, actor Actor, in SendMessage) (*model.Message, error) {
	if in.ReceiverID == uuid.Nil {
		return nil, fmt.Errorf("message: empty receiver: %w", model.ErrInvalidArgument)
	}
	if in.ReceiverID == actor.UserID {
		return nil, fmt.Errorf("message to self: %w", model.ErrInvalidTarget)
	}
	if in.Type == "" {
		in.Type = model.MessageText
	}
	if !in.Type.Valid() {
		return nil, fmt.Errorf("message type %q: %w", in.Type, model.ErrInvalidArgument)
	}
	if strings.TrimSpace(in.Content) == "" && len(in.Attachments) == 0 {
		return nil, fmt.Errorf("message: empty content: %w", model.ErrInvalidArgument)
	}

	ok, err := s.users.Exists(ctx, in.ReceiverID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("receiver %s: %w", in.ReceiverID, model.ErrNotFound)
	}

	now := s.clock().UTC()
	msg := &model.Message{
		ID:          uuid.New(),
		SenderID:    actor.UserID,
		ReceiverID:  in.ReceiverID,
		Content:     strings.TrimSpace(in.Content),
		Type:        in.Type,
		Attachments: in.Attachments,
		PostID:      in.PostID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.messages.Create(ctx, msg); err != nil {
		return nil, fmt.Errorf("persist message: %w", err)
	}

	ev := event.NewMessageEvent(event.MessageCreated, msg)
	s.route(ctx, ev, actor.ConnID)
	if err := s.exporter.Export(ctx, ev); err != nil {
		s.logger.Warn("MESSAGE_EXPORT_FAILED", slog.String("message_id", msg.ID.String()), slog.Any("err", err))
	}

	preview := s.notifier.cfg.PreviewLength
	s.notifier.NotifyFrom(ctx, actor.UserID, func(sender *model.User) NotifyRequest {
		return MessageNotice(sender, msg, preview)
	})
	return msg, nil
}

// Update edits the content of a message. Only its sender may edit it.
func (s *Messenger) Update(ctx context.Context, actor Actor, id uuid.UUID, content string) (*model.Message, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, fmt.Errorf("message: empty content: %w", model.ErrInvalidArgument)
	}
	msg, err := s.messages.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if msg.SenderID != actor.UserID {
		return nil, fmt.Errorf("edit message %s: %w", id, model.ErrForbidden)
	}

	now := s.clock().UTC()
	if err := s.messages.UpdateContent(ctx, id, content, now); err != nil {
		return nil, err
	}
	msg.Content, msg.Edited, msg.EditedAt, msg.UpdatedAt = content, true, &now, now

	s.route(ctx, event.NewMessageEvent(event.MessageUpdated, msg), actor.ConnID)
	return msg, nil
}

// Delete soft-deletes a message. Only its sender may delete it.
func (s *Messenger) Delete(ctx context.Context, actor Actor, id uuid.UUID) error {
	msg, err := s.messages.Get(ctx, id)
	if err != nil {
		return err
	}
	if msg.SenderID != actor.UserID {
		return fmt.Errorf("delete message %s: %w", id, model.ErrForbidden)
	}
	if err := s.messages.SoftDelete(ctx, id, s.clock().UTC()); err != nil {
		return err
	}

	s.route(ctx, event.NewDeletedEvent(event.MessageDeleted, model.Deletion{ID: id, Topic: msg.Topic()}), actor.ConnID)
	return nil
}

// MarkRead marks one message read. Only its receiver may do so; repeating it
// is a no-op.
func (s *Messenger) MarkRead(ctx context.Context, actor Actor, id uuid.UUID) (*model.Message, error) {
	msg, err := s.messages.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if msg.ReceiverID != actor.UserID {
		return nil, fmt.Errorf("read message %s: %w", id, model.ErrForbidden)
	}
	if msg.Read {
		return msg, nil
	}

	now := s.clock().UTC()
	if err := s.messages.MarkRead(ctx, id, now); err != nil {
		return nil, err
	}
	msg.Read, msg.ReadAt = true, &now

	receipt := model.ReadReceipt{
		ReaderID:   actor.UserID,
		MessageIDs: []uuid.UUID{id},
		Topic:      msg.Topic(),
		Count:      1,
		ReadAt:     now,
	}
	s.route(ctx, event.NewReadEvent(event.ToUser(msg.SenderID), receipt), uuid.Nil)
	return msg, nil
}

// MarkConversationRead marks every unread message from partner as read and
// returns how many changed.
func (s *Messenger) MarkConversationRead(ctx context.Context, actor Actor, partner uuid.UUID) (int64, error) {
	if partner == actor.UserID {
		return 0, fmt.Errorf("conversation with self: %w", model.ErrInvalidTarget)
	}
	now := s.clock().UTC()
	ids, err := s.messages.MarkConversationRead(ctx, actor.UserID, partner, now)
	if err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, nil
	}

	receipt := model.ReadReceipt{
		ReaderID:   actor.UserID,
		MessageIDs: ids,
		Topic:      model.ConversationTopic(actor.UserID, partner),
		Count:      int64(len(ids)),
		ReadAt:     now,
	}
	s.route(ctx, event.NewReadEvent(event.ToUser(partner), receipt), uuid.Nil)
	return int64(len(ids)), nil
}

// History pages through the conversation between userID and partner, oldest
// first, optionally narrowed to one post.
func (s *Messenger) History(ctx context.Context, userID, partner uuid.UUID, postID string, page model.Page) (*MessagePage, error) {
	if partner == uuid.Nil || partner == userID {
		return nil, fmt.Errorf("conversation partner: %w", model.ErrInvalidTarget)
	}
	page = page.Normalize(historyDefaultLimit, historyMaxLimit)
	msgs, total, err := s.messages.History(ctx, userID, partner, postID, page)
	if err != nil {
		return nil, err
	}
	if msgs == nil {
		msgs = []model.Message{}
	}
	return &MessagePage{Messages: msgs, Pagination: model.NewPagination(total, page)}, nil
}

func (s *Messenger) Conversations(ctx context.Context, userID uuid.UUID, limit int) ([]model.ConversationSummary, error) {
	if limit <= 0 || limit > historyMaxLimit {
		limit = historyDefaultLimit
	}
	return s.messages.Conversations(ctx, userID, limit)
}

func (s *Messenger) UnreadCount(ctx context.Context, userID uuid.UUID) (int64, error) {
	return s.messages.UnreadCount(ctx, userID)
}

func (s *Messenger) route(ctx context.Context, ev event.Eventer, skip uuid.UUID) {
	if _, err := s.router.RouteExcept(ctx, ev, skip); err != nil {
		s.logger.Warn("MESSAGE_ROUTE_FAILED",
			slog.String("kind", ev.GetKind().String()),
			slog.Any("err", err),
		)
	}
}
