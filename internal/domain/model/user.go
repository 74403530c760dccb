package model

import (
	"slices"
	"time"

	"github.com/google/uuid"
)

// User holds the profile fields the hub reads for notification bodies,
// plus the durable projection of presence used by segment queries.
type User struct {
	ID          uuid.UUID      `gorm:"column:id;type:text;primaryKey" json:"id"`
	Username    string         `gorm:"column:username;size:128;index" json:"username"`
	DisplayName string         `gorm:"column:display_name;size:256" json:"display_name"`
	Email       string         `gorm:"column:email;size:256" json:"email,omitempty"`
	PhotoURL    string         `gorm:"column:photo_url;size:512" json:"photo_url,omitempty"`
	Active      bool           `gorm:"column:active;not null" json:"active"`
	Status      PresenceStatus `gorm:"column:status;size:16;not null;default:offline;index" json:"status"`
	LastSeenAt  *time.Time     `gorm:"column:last_seen_at;index" json:"last_seen_at,omitempty"`
	CreatedAt   time.Time      `gorm:"column:created_at;not null" json:"created_at"`
	UpdatedAt   time.Time      `gorm:"column:updated_at" json:"updated_at"`
}

func (User) TableName() string { return "users" }

// Name returns the best human-readable label for notification titles.
func (u *User) Name() string {
	if u == nil {
		return "Someone"
	}
	if u.DisplayName != "" {
		return u.DisplayName
	}
	if u.Username != "" {
		return u.Username
	}
	return "Someone"
}

// Principal is the verified identity returned by the auth collaborator.
type Principal struct {
	UserID      uuid.UUID
	Username    string
	DisplayName string
	Email       string
	PhotoURL    string
	Roles       []string
}

// RoleAdmin grants the bulk and scheduled notification endpoints.
const RoleAdmin = "admin"

func (p Principal) HasRole(role string) bool {
	return slices.Contains(p.Roles, role)
}

// DeviceToken is a push endpoint registered by an identity.
type DeviceToken struct {
	UserID    uuid.UUID `gorm:"column:user_id;type:text;primaryKey" json:"user_id"`
	Token     string    `gorm:"column:token;size:512;primaryKey" json:"token"`
	Device    string    `gorm:"column:device;size:64" json:"device,omitempty"`
	CreatedAt time.Time `gorm:"column:created_at;not null" json:"created_at"`
}

func (DeviceToken) TableName() string { return "device_tokens" }
