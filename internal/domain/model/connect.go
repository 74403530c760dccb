package model

import (
	"time"

	"github.com/google/uuid"
)

// ConnState is the lifecycle state of one live connection.
//
// [TRANSITIONS]
//
//	Connecting -> Authenticated -> Active -> Closed
//	Connecting -> Closed (auth failure)
//
// Closed is terminal; a closed connection is never reused.
type ConnState int32

const (
	ConnConnecting ConnState = iota
	ConnAuthenticated
	ConnActive
	ConnClosed
)

func (s ConnState) String() string {
	switch s {
	case ConnConnecting:
		return "connecting"
	case ConnAuthenticated:
		return "authenticated"
	case ConnActive:
		return "active"
	case ConnClosed:
		return "closed"
	}
	return "unknown"
}

// [METADATA] EXPORTED FOR TRANSPORT AND ANALYTICS LAYERS
type ConnectMetadata struct {
	Platform  string `json:"platform,omitempty"`
	Version   string `json:"version,omitempty"`
	RemoteIP  string `json:"remote_ip,omitempty"`
	UserAgent string `json:"user_agent,omitempty"`
}

// ConnectionInfo is a read-only snapshot of a live connection for stats surfaces.
type ConnectionInfo struct {
	ID          uuid.UUID       `json:"id"`
	UserID      uuid.UUID       `json:"user_id"`
	ConnectedAt time.Time       `json:"connected_at"`
	Queued      int             `json:"queued"`
	Dropped     uint64          `json:"dropped"`
	Metadata    ConnectMetadata `json:"metadata"`
}

// Credentials are presented by a client when opening a live channel.
type Credentials struct {
	Token    string
	Metadata ConnectMetadata
}
