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

type CreateComment struct {
	TargetType model.TargetType `json:"target_type" validate:"required,oneof=post profile"`
	TargetID   string           `json:"target_id" validate:"required,max=128"`
	ParentID   *uuid.UUID       `json:"parent_id,omitempty"`
	Content    string           `json:"content" validate:"required,max=4096"`
	// OwnerID is the author of the commented content, when the caller knows it.
	// Profile threads are owned by the profile itself.
	OwnerID *uuid.UUID `json:"owner_id,omitempty"`
}

type CommentPage struct {
	Comments   []model.Comment  `json:"comments"`
	Pagination model.Pagination `json:"pagination"`
}

const (
	commentsDefaultLimit = 20
	commentsMaxLimit     = 100
)

// Commenter implements threaded comments on posts and profiles.
type Commenter struct {
	comments CommentStore
	router   *Router
	notifier *Notifier
	logger   *slog.Logger
	clock    func() time.Time
}

func NewCommenter(comments CommentStore, router *Router, notifier *Notifier, logger *slog.Logger) *Commenter {
	return &Commenter{
		comments: comments,
		router:   router,
		notifier: notifier,
		logger:   logger,
		clock:    time.Now,
	}
}

// Create posts a comment or, with ParentID, a reply. A reply must belong to
// the same content as its parent.
func (s *Commenter) Create(ctx context.Context, actor Actor, in CreateComment) (*model.Comment, error) {
	content := strings.TrimSpace(in.Content)
	if content == "" {
		return nil, fmt.Errorf("comment: empty content: %w", model.ErrInvalidArgument)
	}
	if !in.TargetType.Valid() || in.TargetID == "" {
		return nil, fmt.Errorf("comment target %s:%s: %w", in.TargetType, in.TargetID, model.ErrInvalidTarget)
	}

	var parent *model.Comment
	if in.ParentID != nil && *in.ParentID != uuid.Nil {
		p, err := s.comments.Get(ctx, *in.ParentID)
		if err != nil {
			return nil, fmt.Errorf("parent comment: %w", err)
		}
		if p.TargetType != in.TargetType || p.TargetID != in.TargetID {
			return nil, fmt.Errorf("reply to a comment of other content: %w", model.ErrInvalidArgument)
		}
		parent = p
	}

	now := s.clock().UTC()
	c := &model.Comment{
		ID:         uuid.New(),
		AuthorID:   actor.UserID,
		TargetType: in.TargetType,
		TargetID:   in.TargetID,
		Content:    content,
		Approved:   true,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if parent != nil {
		c.ParentID = &parent.ID
	}
	if err := s.comments.Create(ctx, c); err != nil {
		return nil, fmt.Errorf("persist comment: %w", err)
	}

	s.route(ctx, event.NewCommentEvent(event.CommentCreated, c), actor.ConnID)

	switch {
	case parent != nil:
		author := parent.AuthorID
		s.notifier.NotifyFrom(ctx, actor.UserID, func(replier *model.User) NotifyRequest {
			return CommentReplyNotice(replier, author, c)
		})
	case contentOwner(in) != uuid.Nil:
		owner := contentOwner(in)
		s.notifier.NotifyFrom(ctx, actor.UserID, func(commenter *model.User) NotifyRequest {
			return PostCommentNotice(commenter, owner, c)
		})
	}
	return c, nil
}

func contentOwner(in CreateComment) uuid.UUID {
	if in.OwnerID != nil {
		return *in.OwnerID
	}
	if in.TargetType == model.TargetProfile {
		if id, err := uuid.Parse(in.TargetID); err == nil {
			return id
		}
	}
	return uuid.Nil
}

// Update edits a comment. Only its author may edit it.
func (s *Commenter) Update(ctx context.Context, actor Actor, id uuid.UUID, content string) (*model.Comment, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, fmt.Errorf("comment: empty content: %w", model.ErrInvalidArgument)
	}
	c, err := s.comments.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.AuthorID != actor.UserID {
		return nil, fmt.Errorf("edit comment %s: %w", id, model.ErrForbidden)
	}

	now := s.clock().UTC()
	if err := s.comments.UpdateContent(ctx, id, content, now); err != nil {
		return nil, err
	}
	c.Content, c.Edited, c.EditedAt, c.UpdatedAt = content, true, &now, now

	s.route(ctx, event.NewCommentEvent(event.CommentUpdated, c), actor.ConnID)
	return c, nil
}

// Delete removes a comment with its replies. Only its author may delete it.
func (s *Commenter) Delete(ctx context.Context, actor Actor, id uuid.UUID) error {
	c, err := s.comments.Get(ctx, id)
	if err != nil {
		return err
	}
	if c.AuthorID != actor.UserID {
		return fmt.Errorf("delete comment %s: %w", id, model.ErrForbidden)
	}
	if err := s.comments.Delete(ctx, c); err != nil {
		return err
	}

	s.route(ctx, event.NewDeletedEvent(event.CommentDeleted, model.Deletion{ID: id, Topic: c.Topic()}), actor.ConnID)
	return nil
}

// Thread returns a comment with one page of its direct replies.
func (s *Commenter) Thread(ctx context.Context, id uuid.UUID, page model.Page) (*model.CommentThread, error) {
	c, err := s.comments.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	page = page.Normalize(commentsDefaultLimit, commentsMaxLimit)
	replies, total, err := s.comments.Replies(ctx, id, page)
	if err != nil {
		return nil, err
	}
	if replies == nil {
		replies = []model.Comment{}
	}
	return &model.CommentThread{Comment: *c, Replies: replies, Pagination: model.NewPagination(total, page)}, nil
}

// List pages through the top-level comments of a piece of content, newest first.
func (s *Commenter) List(ctx context.Context, typ model.TargetType, targetID string, page model.Page) (*CommentPage, error) {
	if !typ.Valid() || targetID == "" {
		return nil, fmt.Errorf("comment target %s:%s: %w", typ, targetID, model.ErrInvalidTarget)
	}
	page = page.Normalize(commentsDefaultLimit, commentsMaxLimit)
	items, total, err := s.comments.ListByTarget(ctx, typ, targetID, page)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []model.Comment{}
	}
	return &CommentPage{Comments: items, Pagination: model.NewPagination(total, page)}, nil
}

func (s *Commenter) Stats(ctx context.Context, typ model.TargetType, targetID string) (model.CommentStats, error) {
	if !typ.Valid() || targetID == "" {
		return model.CommentStats{}, fmt.Errorf("comment target %s:%s: %w", typ, targetID, model.ErrInvalidTarget)
	}
	return s.comments.Stats(ctx, typ, targetID)
}

func (s *Commenter) route(ctx context.Context, ev event.Eventer, skip uuid.UUID) {
	if _, err := s.router.RouteExcept(ctx, ev, skip); err != nil {
		s.logger.Warn("COMMENT_ROUTE_FAILED",
			slog.String("kind", ev.GetKind().String()),
			slog.Any("err", err),
		)
	}
}
