package service

import (
	"github.com/google/uuid"
	"github.com/webitel/im-realtime-service/internal/domain/model"
)

// Notification texts for the interactions the hub produces or relays.

func MessageNotice(sender *model.User, m *model.Message, previewLen int) NotifyRequest {
	return NotifyRequest{
		RecipientID: m.ReceiverID,
		NotificationTemplate: model.NotificationTemplate{
			Kind:  model.NotifyMessage,
			Title: "New message from " + sender.Name(),
			Body:  m.Preview(previewLen),
			Data: map[string]string{
				"message_id":      m.ID.String(),
				"sender_id":       m.SenderID.String(),
				"conversation_id": m.Topic().Target,
			},
			ActionURL: "/messages/" + m.SenderID.String(),
			Priority:  model.PriorityHigh,
			SenderID:  idRef(m.SenderID),
		},
	}
}

func PostLikeNotice(liker *model.User, owner uuid.UUID, postID string) NotifyRequest {
	return NotifyRequest{
		RecipientID: owner,
		NotificationTemplate: model.NotificationTemplate{
			Kind:      model.NotifyPostLike,
			Title:     "New Like",
			Body:      liker.Name() + " liked your post",
			Data:      map[string]string{"post_id": postID, "liker_id": liker.ID.String()},
			ActionURL: "/posts/" + postID,
			Priority:  model.PriorityLow,
			SenderID:  idRef(liker.ID),
		},
	}
}

func PostCommentNotice(commenter *model.User, owner uuid.UUID, c *model.Comment) NotifyRequest {
	return NotifyRequest{
		RecipientID: owner,
		NotificationTemplate: model.NotificationTemplate{
			Kind:  model.NotifyPostComment,
			Title: "New Comment",
			Body:  commenter.Name() + " commented on your post",
			Data: map[string]string{
				"post_id":      c.TargetID,
				"comment_id":   c.ID.String(),
				"commenter_id": c.AuthorID.String(),
				"preview":      model.Truncate(c.Content, 100),
			},
			ActionURL: "/posts/" + c.TargetID + "#comment-" + c.ID.String(),
			Priority:  model.PriorityNormal,
			SenderID:  idRef(c.AuthorID),
		},
	}
}

func CommentReplyNotice(replier *model.User, parentAuthor uuid.UUID, reply *model.Comment) NotifyRequest {
	data := map[string]string{
		"post_id":    reply.TargetID,
		"reply_id":   reply.ID.String(),
		"replier_id": reply.AuthorID.String(),
		"preview":    model.Truncate(reply.Content, 100),
	}
	if reply.ParentID != nil {
		data["comment_id"] = reply.ParentID.String()
	}
	return NotifyRequest{
		RecipientID: parentAuthor,
		NotificationTemplate: model.NotificationTemplate{
			Kind:      model.NotifyCommentReply,
			Title:     "New Reply",
			Body:      replier.Name() + " replied to your comment",
			Data:      data,
			ActionURL: "/posts/" + reply.TargetID + "#comment-" + reply.ID.String(),
			Priority:  model.PriorityNormal,
			SenderID:  idRef(reply.AuthorID),
		},
	}
}

func PostShareNotice(sharer *model.User, owner uuid.UUID, postID string) NotifyRequest {
	return NotifyRequest{
		RecipientID: owner,
		NotificationTemplate: model.NotificationTemplate{
			Kind:      model.NotifyPostShare,
			Title:     "Post Shared",
			Body:      sharer.Name() + " shared your post",
			Data:      map[string]string{"post_id": postID, "sharer_id": sharer.ID.String()},
			ActionURL: "/posts/" + postID,
			Priority:  model.PriorityLow,
			SenderID:  idRef(sharer.ID),
		},
	}
}

// MentionNotice addresses a mention in a post (commentID empty) or in a comment.
func MentionNotice(mentioner *model.User, mentioned uuid.UUID, postID, commentID, content string) NotifyRequest {
	contentType, url := "post", "/posts/"+postID
	data := map[string]string{
		"post_id":      postID,
		"mentioner_id": mentioner.ID.String(),
		"preview":      model.Truncate(content, 100),
	}
	if commentID != "" {
		contentType, url = "comment", url+"#comment-"+commentID
		data["comment_id"] = commentID
	}
	data["content_type"] = contentType

	return NotifyRequest{
		RecipientID: mentioned,
		NotificationTemplate: model.NotificationTemplate{
			Kind:      model.NotifyMention,
			Title:     "You were mentioned",
			Body:      mentioner.Name() + " mentioned you in a " + contentType,
			Data:      data,
			ActionURL: url,
			Priority:  model.PriorityHigh,
			SenderID:  idRef(mentioner.ID),
		},
	}
}

var interactionKinds = map[string]model.NotificationKind{
	"bookmark": model.NotifyPostBookmark,
	"save":     model.NotifyPostSave,
	"report":   model.NotifyPostReport,
}

// PostInteractionNotice covers bookmark, save and report, plus a generic
// text for any other interaction.
func PostInteractionNotice(actor *model.User, owner uuid.UUID, postID, interaction string) NotifyRequest {
	kind, ok := interactionKinds[interaction]
	if !ok {
		kind = model.NotificationKind("post_" + interaction)
	}

	title, body := "Post Interaction", actor.Name()+" interacted with your post"
	priority := model.PriorityLow
	switch interaction {
	case "bookmark":
		title, body = "Post Bookmarked", actor.Name()+" bookmarked your post"
	case "save":
		title, body = "Post Saved", actor.Name()+" saved your post"
	case "report":
		title, body = "Post Reported", "Your post was reported"
		priority = model.PriorityHigh
	}

	return NotifyRequest{
		RecipientID: owner,
		NotificationTemplate: model.NotificationTemplate{
			Kind:  kind,
			Title: title,
			Body:  body,
			Data: map[string]string{
				"post_id":          postID,
				"actor_id":         actor.ID.String(),
				"interaction_type": interaction,
			},
			ActionURL: "/posts/" + postID,
			Priority:  priority,
			SenderID:  idRef(actor.ID),
		},
	}
}

func ProfileLikeNotice(liker *model.User, liked uuid.UUID) NotifyRequest {
	return NotifyRequest{
		RecipientID: liked,
		NotificationTemplate: model.NotificationTemplate{
			Kind:      model.NotifyProfileLike,
			Title:     "New Like",
			Body:      liker.Name() + " liked your profile",
			Data:      map[string]string{"liker_id": liker.ID.String()},
			ActionURL: "/profile/" + liker.ID.String(),
			Priority:  model.PriorityNormal,
			SenderID:  idRef(liker.ID),
		},
	}
}

// MatchNotice tells recipient that the like with partner is mutual.
func MatchNotice(partner *model.User, recipient uuid.UUID) NotifyRequest {
	return NotifyRequest{
		RecipientID: recipient,
		NotificationTemplate: model.NotificationTemplate{
			Kind:      model.NotifyMatch,
			Title:     "It's a match!",
			Body:      "You and " + partner.Name() + " liked each other",
			Data:      map[string]string{"partner_id": partner.ID.String()},
			ActionURL: "/messages/" + partner.ID.String(),
			Priority:  model.PriorityHigh,
			SenderID:  idRef(partner.ID),
		},
	}
}

func idRef(id uuid.UUID) *uuid.UUID {
	if id == uuid.Nil {
		return nil
	}
	return &id
}
