package amqp

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/webitel/im-realtime-service/internal/domain/model"
	"github.com/webitel/im-realtime-service/internal/service"
)

// PostEventV1 is published by the social service for likes, shares and other
// post interactions.
type PostEventV1 struct {
	PostID      string    `json:"post_id" validate:"required,max=128"`
	OwnerID     uuid.UUID `json:"owner_id"`
	ActorID     uuid.UUID `json:"actor_id" validate:"required"`
	Interaction string    `json:"interaction,omitempty" validate:"omitempty,max=32"`
}

// MentionEventV1 names one mentioned identity in a post or a comment.
type MentionEventV1 struct {
	PostID      string    `json:"post_id" validate:"required,max=128"`
	CommentID   string    `json:"comment_id,omitempty" validate:"max=128"`
	Content     string    `json:"content"`
	ActorID     uuid.UUID `json:"actor_id" validate:"required"`
	MentionedID uuid.UUID `json:"mentioned_id"`
}

// [ON_POST_LIKED]
func (h *SocialHandler) OnPostLikedV1(ctx context.Context, recipient uuid.UUID, raw *PostEventV1) error {
	return h.notify(ctx, raw.ActorID, pick(raw.OwnerID, recipient), func(actor *model.User, to uuid.UUID) service.NotifyRequest {
		return service.PostLikeNotice(actor, to, raw.PostID)
	})
}

// [ON_POST_SHARED]
func (h *SocialHandler) OnPostSharedV1(ctx context.Context, recipient uuid.UUID, raw *PostEventV1) error {
	return h.notify(ctx, raw.ActorID, pick(raw.OwnerID, recipient), func(actor *model.User, to uuid.UUID) service.NotifyRequest {
		return service.PostShareNotice(actor, to, raw.PostID)
	})
}

// [ON_POST_INTERACTION] bookmark, save, report and anything newer
func (h *SocialHandler) OnPostInteractionV1(ctx context.Context, recipient uuid.UUID, raw *PostEventV1) error {
	if raw.Interaction == "" {
		return fmt.Errorf("post interaction: empty type: %w", model.ErrInvalidArgument)
	}
	return h.notify(ctx, raw.ActorID, pick(raw.OwnerID, recipient), func(actor *model.User, to uuid.UUID) service.NotifyRequest {
		return service.PostInteractionNotice(actor, to, raw.PostID, raw.Interaction)
	})
}

// [ON_USER_MENTIONED]
func (h *SocialHandler) OnUserMentionedV1(ctx context.Context, recipient uuid.UUID, raw *MentionEventV1) error {
	return h.notify(ctx, raw.ActorID, pick(raw.MentionedID, recipient), func(actor *model.User, to uuid.UUID) service.NotifyRequest {
		return service.MentionNotice(actor, to, raw.PostID, raw.CommentID, raw.Content)
	})
}

func (h *SocialHandler) notify(ctx context.Context, actorID, recipient uuid.UUID, build func(actor *model.User, to uuid.UUID) service.NotifyRequest) error {
	if recipient == uuid.Nil {
		return fmt.Errorf("recipient missing: %w", model.ErrInvalidTarget)
	}

	// [ENRICHMENT] unknown actors resolve to a bare profile
	actor, err := h.profiles.Resolve(ctx, actorID)
	if err != nil {
		return fmt.Errorf("resolve actor: %w", err)
	}
	if actor == nil {
		actor = &model.User{ID: actorID}
	}

	_, err = h.notifier.Notify(ctx, build(actor, recipient))
	return err
}

// pick prefers the id carried in the payload over the routing key.
func pick(fromPayload, fromKey uuid.UUID) uuid.UUID {
	if fromPayload != uuid.Nil {
		return fromPayload
	}
	return fromKey
}
