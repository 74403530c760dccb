package model

import (
	"time"

	"github.com/google/uuid"
)

type MessageType string

const (
	MessageText  MessageType = "text"
	MessageImage MessageType = "image"
	MessageFile  MessageType = "file"
	MessagePost  MessageType = "post"
)

func (t MessageType) Valid() bool {
	switch t {
	case MessageText, MessageImage, MessageFile, MessagePost:
		return true
	}
	return false
}

// [MESSAGE] CORE ENTITY OF A DIRECT CONVERSATION
type Message struct {
	ID          uuid.UUID    `gorm:"column:id;type:text;primaryKey" json:"id"`
	SenderID    uuid.UUID    `gorm:"column:sender_id;type:text;not null;index:idx_messages_pair,priority:1" json:"sender_id"`
	ReceiverID  uuid.UUID    `gorm:"column:receiver_id;type:text;not null;index:idx_messages_pair,priority:2;index:idx_messages_unread,priority:1" json:"receiver_id"`
	Content     string       `gorm:"column:content;size:4096;not null" json:"content"`
	Type        MessageType  `gorm:"column:type;size:16;not null;default:text" json:"type"`
	Attachments []Attachment `gorm:"column:attachments;serializer:json" json:"attachments,omitempty"`
	PostID      string       `gorm:"column:post_id;size:128;index" json:"post_id,omitempty"`
	Read        bool         `gorm:"column:read;not null;default:false;index:idx_messages_unread,priority:2" json:"read"`
	ReadAt      *time.Time   `gorm:"column:read_at" json:"read_at,omitempty"`
	Edited      bool         `gorm:"column:edited;not null;default:false" json:"edited"`
	EditedAt    *time.Time   `gorm:"column:edited_at" json:"edited_at,omitempty"`
	Deleted     bool         `gorm:"column:deleted;not null;default:false" json:"deleted"`
	DeletedAt   *time.Time   `gorm:"column:deleted_at" json:"deleted_at,omitempty"`
	CreatedAt   time.Time    `gorm:"column:created_at;not null;index" json:"created_at"`
	UpdatedAt   time.Time    `gorm:"column:updated_at" json:"updated_at"`
}

func (Message) TableName() string { return "messages" }

// Topic returns the conversation topic the message belongs to.
func (m *Message) Topic() TopicKey {
	return ConversationTopic(m.SenderID, m.ReceiverID)
}

// Preview returns the text shown in notification bodies.
func (m *Message) Preview(limit int) string {
	if m.Type != MessageText && m.Type != "" {
		return "Sent a " + string(m.Type)
	}
	return Truncate(m.Content, limit)
}

type Attachment struct {
	ID       string `json:"id"`
	URL      string `json:"url"`
	FileName string `json:"file_name,omitempty"`
	MimeType string `json:"mime_type,omitempty"`
	Size     int64  `json:"size,omitempty"`
}

// ConversationSummary is one row of a user's conversation list.
type ConversationSummary struct {
	PartnerID   uuid.UUID `json:"partner_id"`
	LastMessage Message   `json:"last_message"`
	UnreadCount int64     `json:"unread_count"`
}

// Page describes offset pagination of a history request.
type Page struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
}

func (p Page) Normalize(def, max int) Page {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Limit <= 0 {
		p.Limit = def
	}
	if p.Limit > max {
		p.Limit = max
	}
	return p
}

func (p Page) Offset() int { return (p.Page - 1) * p.Limit }

// Pagination is returned alongside paged results.
type Pagination struct {
	Total      int64 `json:"total"`
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	TotalPages int64 `json:"total_pages"`
}

func NewPagination(total int64, p Page) Pagination {
	pages := int64(0)
	if p.Limit > 0 {
		pages = (total + int64(p.Limit) - 1) / int64(p.Limit)
	}
	return Pagination{Total: total, Page: p.Page, Limit: p.Limit, TotalPages: pages}
}

// Truncate cuts s to at most n runes.
func Truncate(s string, n int) string {
	r := []rune(s)
	if n <= 0 || len(r) <= n {
		return s
	}
	return string(r[:n])
}
