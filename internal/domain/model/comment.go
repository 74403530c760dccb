package model

import (
	"time"

	"github.com/google/uuid"
)

type Comment struct {
	ID           uuid.UUID  `gorm:"column:id;type:text;primaryKey" json:"id"`
	AuthorID     uuid.UUID  `gorm:"column:author_id;type:text;not null;index" json:"author_id"`
	TargetType   TargetType `gorm:"column:target_type;size:16;not null;index:idx_comments_target,priority:1" json:"target_type"`
	TargetID     string     `gorm:"column:target_id;size:128;not null;index:idx_comments_target,priority:2" json:"target_id"`
	ParentID     *uuid.UUID `gorm:"column:parent_id;type:text;index" json:"parent_id,omitempty"`
	Content      string     `gorm:"column:content;size:4096;not null" json:"content"`
	RepliesCount int        `gorm:"column:replies_count;not null;default:0" json:"replies_count"`
	Approved     bool       `gorm:"column:approved;not null" json:"approved"`
	Edited       bool       `gorm:"column:edited;not null;default:false" json:"edited"`
	EditedAt     *time.Time `gorm:"column:edited_at" json:"edited_at,omitempty"`
	CreatedAt    time.Time  `gorm:"column:created_at;not null;index" json:"created_at"`
	UpdatedAt    time.Time  `gorm:"column:updated_at" json:"updated_at"`
}

func (Comment) TableName() string { return "comments" }

// Topic returns the content thread the comment is posted to.
func (c *Comment) Topic() TopicKey {
	return ThreadTopic(c.TargetType, c.TargetID)
}

// CommentThread is a comment with its direct replies.
type CommentThread struct {
	Comment    Comment    `json:"comment"`
	Replies    []Comment  `json:"replies"`
	Pagination Pagination `json:"pagination"`
}

type CommentStats struct {
	Total    int64 `json:"total"`
	TopLevel int64 `json:"top_level"`
	Replies  int64 `json:"replies"`
}
