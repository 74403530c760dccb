package model

import (
	"time"

	"github.com/google/uuid"
)

type LikeStatus string

const (
	LikeLike LikeStatus = "like"
	LikeSkip LikeStatus = "skip"
)

func (s LikeStatus) Valid() bool { return s == LikeLike || s == LikeSkip }

// Like is one identity's verdict on another identity.
type Like struct {
	LikerID   uuid.UUID  `gorm:"column:liker_id;type:text;primaryKey" json:"liker_id"`
	LikedID   uuid.UUID  `gorm:"column:liked_id;type:text;primaryKey;index" json:"liked_id"`
	Status    LikeStatus `gorm:"column:status;size:8;not null" json:"status"`
	CreatedAt time.Time  `gorm:"column:created_at;not null" json:"created_at"`
	UpdatedAt time.Time  `gorm:"column:updated_at" json:"updated_at"`
}

func (Like) TableName() string { return "likes" }

// LikeState describes the relation between two identities from the first one's side.
type LikeState struct {
	UserLiked      *LikeStatus `json:"user_liked"`
	OtherUserLiked *LikeStatus `json:"other_user_liked"`
	Mutual         bool        `json:"is_mutual"`
}

type Favorite struct {
	UserID     uuid.UUID  `gorm:"column:user_id;type:text;primaryKey" json:"user_id"`
	TargetType TargetType `gorm:"column:target_type;size:16;primaryKey" json:"target_type"`
	TargetID   string     `gorm:"column:target_id;size:128;primaryKey;index" json:"target_id"`
	CreatedAt  time.Time  `gorm:"column:created_at;not null" json:"created_at"`
}

func (Favorite) TableName() string { return "favorites" }

// FavoriteRef identifies favorited content in bulk checks.
type FavoriteRef struct {
	TargetType  TargetType `json:"target_type" validate:"required,oneof=post profile"`
	TargetID    string     `json:"target_id" validate:"required,max=128"`
	IsFavorited bool       `json:"is_favorited"`
}
