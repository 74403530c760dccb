package model

import (
	"time"

	"github.com/google/uuid"
)

type PresenceStatus string

const (
	StatusOnline  PresenceStatus = "online"
	StatusAway    PresenceStatus = "away"
	StatusBusy    PresenceStatus = "busy"
	StatusOffline PresenceStatus = "offline"
)

// Valid reports whether s is one of the known coarse statuses.
func (s PresenceStatus) Valid() bool {
	switch s {
	case StatusOnline, StatusAway, StatusBusy, StatusOffline:
		return true
	}
	return false
}

// Declarable reports whether a client may set s explicitly.
// Offline is derived from the absence of live connections and is never declared.
func (s PresenceStatus) Declarable() bool {
	return s == StatusOnline || s == StatusAway || s == StatusBusy
}

// Presence is a point-in-time snapshot of an identity's reachability.
type Presence struct {
	UserID      uuid.UUID      `json:"user_id"`
	Status      PresenceStatus `json:"status"`
	LastSeen    time.Time      `json:"last_seen,omitzero"`
	TypingTo    *TopicKey      `json:"typing_to,omitempty"`
	Connections int            `json:"connections"`
}

// OfflinePresence is the default reported for identities without a record.
func OfflinePresence(userID uuid.UUID) Presence {
	return Presence{UserID: userID, Status: StatusOffline}
}
