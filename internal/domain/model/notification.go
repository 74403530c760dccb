package model

import (
	"time"

	"github.com/google/uuid"
)

type NotificationKind string

const (
	NotifyMessage          NotificationKind = "message"
	NotifyPostLike         NotificationKind = "post_like"
	NotifyPostComment      NotificationKind = "post_comment"
	NotifyCommentReply     NotificationKind = "comment_reply"
	NotifyPostShare        NotificationKind = "post_share"
	NotifyMention          NotificationKind = "mention"
	NotifyPostBookmark     NotificationKind = "post_bookmark"
	NotifyPostSave         NotificationKind = "post_save"
	NotifyPostReport       NotificationKind = "post_report"
	NotifyProfileLike      NotificationKind = "profile_like"
	NotifyMatch            NotificationKind = "match"
	NotifySystem           NotificationKind = "system"
	NotifyAnnouncement     NotificationKind = "announcement"
	NotifyConnectionAccept NotificationKind = "connection_accepted"
)

// Interaction reports whether the kind is produced by one identity acting on
// another's content. Interaction notifications are never sent to the actor.
func (k NotificationKind) Interaction() bool {
	switch k {
	case NotifyPostLike, NotifyPostComment, NotifyCommentReply, NotifyPostShare,
		NotifyMention, NotifyPostBookmark, NotifyPostSave, NotifyProfileLike:
		return true
	}
	return false
}

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
)

func (p Priority) Valid() bool {
	return p == PriorityLow || p == PriorityNormal || p == PriorityHigh
}

// DeliveryStatus records which delivery path(s) reached the recipient.
type DeliveryStatus struct {
	Live        bool       `gorm:"column:live;not null;default:false" json:"delivered_live"`
	Push        bool       `gorm:"column:push;not null;default:false" json:"delivered_push"`
	AttemptedAt *time.Time `gorm:"column:attempted_at" json:"attempted_at,omitempty"`
	PushError   string     `gorm:"column:push_error;size:512" json:"push_error,omitempty"`
}

// Notification is the durable record of one delivered-or-attempted notification.
type Notification struct {
	ID          uuid.UUID         `gorm:"column:id;type:text;primaryKey" json:"id"`
	RecipientID uuid.UUID         `gorm:"column:recipient_id;type:text;not null;index:idx_notifications_recipient,priority:1" json:"recipient_id"`
	SenderID    *uuid.UUID        `gorm:"column:sender_id;type:text" json:"sender_id,omitempty"`
	Kind        NotificationKind  `gorm:"column:kind;size:64;not null" json:"kind"`
	Title       string            `gorm:"column:title;size:256" json:"title"`
	Body        string            `gorm:"column:body;size:1024" json:"body"`
	Data        map[string]string `gorm:"column:data;serializer:json" json:"data,omitempty"`
	ActionURL   string            `gorm:"column:action_url;size:512" json:"action_url,omitempty"`
	Priority    Priority          `gorm:"column:priority;size:16;not null;default:normal" json:"priority"`
	Read        bool              `gorm:"column:read;not null;default:false;index:idx_notifications_recipient,priority:2" json:"read"`
	ReadAt      *time.Time        `gorm:"column:read_at" json:"read_at,omitempty"`
	Delivery    DeliveryStatus    `gorm:"embedded;embeddedPrefix:delivery_" json:"delivery_status"`
	CreatedAt   time.Time         `gorm:"column:created_at;not null;index" json:"created_at"`
}

func (Notification) TableName() string { return "notifications" }

// NotificationTemplate is the recipient-independent part of a notification,
// shared by bulk, segmented and scheduled sends.
type NotificationTemplate struct {
	Kind      NotificationKind  `json:"kind" validate:"required"`
	Title     string            `json:"title" validate:"required,max=256"`
	Body      string            `json:"body" validate:"max=1024"`
	Data      map[string]string `json:"data,omitempty"`
	ActionURL string            `json:"action_url,omitempty" validate:"omitempty,max=512"`
	Priority  Priority          `json:"priority,omitempty" validate:"omitempty,oneof=low normal high"`
	SenderID  *uuid.UUID        `json:"sender_id,omitempty"`
}

// Segment is a symbolic recipient selection resolved once at dispatch time.
type Segment string

const (
	SegmentActive   Segment = "active_users"
	SegmentInactive Segment = "inactive_users"
	SegmentNew      Segment = "new_users"
	SegmentOnline   Segment = "online_users"
)

// RecipientCriteria selects identities from the user directory.
type RecipientCriteria struct {
	UserIDs       []uuid.UUID
	ExcludeIDs    []uuid.UUID
	ActiveOnly    bool
	Status        PresenceStatus
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
	SeenAfter     *time.Time
	SeenBefore    *time.Time
	WithTokens    bool
}

// ListOptions pages through a recipient's notifications, newest first.
type ListOptions struct {
	Page       int
	Limit      int
	UnreadOnly bool
	Kind       NotificationKind
}

func (o ListOptions) Normalize() ListOptions {
	if o.Page < 1 {
		o.Page = 1
	}
	if o.Limit <= 0 || o.Limit > 100 {
		o.Limit = 20
	}
	return o
}

func (o ListOptions) Offset() int { return (o.Page - 1) * o.Limit }

type ScheduleState string

const (
	SchedulePending ScheduleState = "pending"
	ScheduleSent    ScheduleState = "sent"
	ScheduleFailed  ScheduleState = "failed"
)

// ScheduledNotification is a persisted due-time entry drained by the scheduler.
type ScheduledNotification struct {
	ID         uuid.UUID            `gorm:"column:id;type:text;primaryKey" json:"id"`
	DueAt      time.Time            `gorm:"column:due_at;not null;index:idx_scheduled_due,priority:2" json:"due_at"`
	State      ScheduleState        `gorm:"column:state;size:16;not null;index:idx_scheduled_due,priority:1" json:"state"`
	Recipients []uuid.UUID          `gorm:"column:recipients;serializer:json" json:"recipients"`
	Template   NotificationTemplate `gorm:"column:template;serializer:json" json:"template"`
	Succeeded  int                  `gorm:"column:succeeded" json:"succeeded"`
	Failed     int                  `gorm:"column:failed" json:"failed"`
	LastError  string               `gorm:"column:last_error;size:512" json:"last_error,omitempty"`
	CreatedAt  time.Time            `gorm:"column:created_at;not null" json:"created_at"`
	SentAt     *time.Time           `gorm:"column:sent_at" json:"sent_at,omitempty"`
}

func (ScheduledNotification) TableName() string { return "scheduled_notifications" }
